// Package blob stores uploaded payment proofs. The ledger only ever sees the
// URL Put returns.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/sentinel"
)

var (
	ErrTooLarge    = fmt.Errorf("%w: file too large", sentinel.ErrValidation)
	ErrUnsupported = fmt.Errorf("%w: unsupported file type", sentinel.ErrValidation)
	ErrEmpty       = fmt.Errorf("%w: empty file", sentinel.ErrValidation)
	ErrNotFound    = fmt.Errorf("proof %w", sentinel.ErrNotFound)
)

var allowed = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "application/pdf"}

// FileStore keeps blobs as files in a single directory.
type FileStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewFileStore creates dir if needed. URLs handed out are baseURL + "/" + name.
func NewFileStore(dir, baseURL string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}

	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// Object is a stored blob.
type Object struct {
	Name        string
	URL         string
	ContentType string
	Size        int64
}

// Put sniffs r, rejects anything but images and PDFs, and stores it under a
// fresh name.
func (s *FileStore) Put(ctx context.Context, r io.Reader) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	if len(data) == 0 {
		return nil, ErrEmpty
	}

	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowed...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mt.String())
	}

	name := uuid.NewString() + mt.Extension()

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating blob: %w", err)
	}

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return nil, fmt.Errorf("writing blob: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("closing blob: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("storing blob: %w", err)
	}

	return &Object{
		Name:        name,
		URL:         s.baseURL + "/" + name,
		ContentType: mt.String(),
		Size:        int64(len(data)),
	}, nil
}

// Open returns the named blob. Callers must close it.
func (s *FileStore) Open(name string) (io.ReadSeekCloser, string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, "", ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrNotFound
		}

		return nil, "", fmt.Errorf("opening blob: %w", err)
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("sniffing blob: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("rewinding blob: %w", err)
	}

	return f, mt.String(), nil
}

// MaxBytes is the largest blob Put accepts.
func (s *FileStore) MaxBytes() int64 {
	return s.maxBytes
}

// NameFromURL returns the blob name of a URL this store handed out, or false
// for foreign URLs.
func (s *FileStore) NameFromURL(rawURL string) (string, bool) {
	name, ok := strings.CutPrefix(rawURL, s.baseURL+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}

	return name, true
}

// Accepts reports whether rawURL is one of this store's URLs or points at an
// allowed external host.
func (s *FileStore) Accepts(rawURL string, hosts []string) bool {
	if _, ok := s.NameFromURL(rawURL); ok {
		return true
	}

	return HostAllowed(rawURL, hosts)
}

// HostAllowed reports whether rawURL is an http(s) URL whose host is listed in
// hosts. An entry with a port must match host:port exactly, an entry without
// one matches any port.
func HostAllowed(rawURL string, hosts []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || u.User != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}

		if _, _, err := net.SplitHostPort(h); err == nil {
			if strings.EqualFold(u.Host, h) {
				return true
			}

			continue
		}

		if strings.EqualFold(u.Hostname(), h) {
			return true
		}
	}

	return false
}
