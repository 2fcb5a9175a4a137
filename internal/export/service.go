package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/blob"
	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
)

// LedgerFile is the name of the CSV written next to the proofs.
const LedgerFile = "donations.csv"

// DefaultMaxProofBytes caps a single proof written during export.
const DefaultMaxProofBytes int64 = 5 << 20

var (
	ErrForeignProof  = errors.New("proof host not allowed")
	ErrProofTooLarge = errors.New("proof exceeds size limit")
)

// Item represents a single exported donation with its local proof path.
type Item struct {
	Donation *donation.Donation
	FilePath string
}

// Result is a campaign ledger written to disk.
type Result struct {
	Campaign *campaign.Campaign
	Items    []Item
}

// Service exports a campaign's donations together with their payment proofs.
type Service struct {
	registry *campaign.Service
	ledger   *donation.Ledger
	blobs    *blob.FileStore
	client   *http.Client
	hosts    []string
	maxBytes int64
}

type Option func(*Service)

// WithProofHosts lists the external hosts proofs may be downloaded from.
// Proofs elsewhere are left out of the export without being requested.
func WithProofHosts(hosts ...string) Option {
	return func(s *Service) {
		s.hosts = append(s.hosts, hosts...)
	}
}

// WithMaxProofBytes caps the size of each proof written to disk.
func WithMaxProofBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// NewService creates a new export Service. Proofs held by blobs are copied
// directly, blobs may be nil.
func NewService(registry *campaign.Service, ledger *donation.Ledger, blobs *blob.FileStore, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		ledger:   ledger,
		blobs:    blobs,
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: DefaultMaxProofBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("too many redirects")
		}

		if !blob.HostAllowed(req.URL.String(), s.hosts) {
			return fmt.Errorf("%w: redirect to %s", ErrForeignProof, req.URL.Host)
		}

		return nil
	}

	return s
}

// Export writes donations.csv and every retrievable proof of the campaign to
// outputDir. Proofs that cannot be fetched are logged and left out.
func (s *Service) Export(ctx context.Context, campaignID uuid.UUID, outputDir string) (*Result, error) {
	c, err := s.registry.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	donations, err := s.ledger.ListByCampaign(ctx, campaignID, nil)
	if err != nil {
		return nil, fmt.Errorf("listing donations: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	items := make([]Item, 0, len(donations))

	for _, d := range donations {
		item := Item{Donation: d}

		if d.ProofURL != "" {
			path, err := s.fetchProof(ctx, d, outputDir)
			if err != nil {
				slog.Warn("skipping proof", "donation_id", d.ID, "url", d.ProofURL, "error", err)
			} else {
				item.FilePath = path
			}
		}

		items = append(items, item)
	}

	if err := writeLedger(filepath.Join(outputDir, LedgerFile), items); err != nil {
		return nil, err
	}

	return &Result{Campaign: c, Items: items}, nil
}

func (s *Service) fetchProof(ctx context.Context, d *donation.Donation, dir string) (string, error) {
	if s.blobs != nil {
		if name, ok := s.blobs.NameFromURL(d.ProofURL); ok {
			return s.copyBlob(d, name, dir)
		}
	}

	if !blob.HostAllowed(d.ProofURL, s.hosts) {
		return "", ErrForeignProof
	}

	return s.downloadProof(ctx, d, dir)
}

func (s *Service) copyBlob(d *donation.Donation, name, dir string) (string, error) {
	src, _, err := s.blobs.Open(name)
	if err != nil {
		return "", err
	}
	defer src.Close()

	return s.writeFile(filepath.Join(dir, safeName(d.PaymentReference)+"_"+name), src)
}

func (s *Service) downloadProof(ctx context.Context, d *donation.Donation, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.ProofURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for url %s", resp.StatusCode, d.ProofURL)
	}

	if resp.ContentLength > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrProofTooLarge, resp.ContentLength)
	}

	return s.writeFile(filepath.Join(dir, proofFilename(resp, d)), resp.Body)
}

func (s *Service) writeFile(path string, r io.Reader) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err == nil && n > s.maxBytes {
		err = ErrProofTooLarge
	}

	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing file: %w", err)
	}

	return path, nil
}

func proofFilename(resp *http.Response, d *donation.Donation) string {
	prefix := safeName(d.PaymentReference)

	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if filename, ok := params["filename"]; ok && filename != "" {
				return prefix + "_" + safeName(filepath.Base(filename))
			}
		}
	}

	ext := ".bin"

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 {
			ext = exts[0]
		}
	}

	return prefix + ext
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}

		return '_'
	}, s)
}

var ledgerHeader = []string{
	"payment_reference", "created_at", "donor_name", "donor_email", "anonymous",
	"amount", "status", "decided_at", "reason", "proof_file",
}

func writeLedger(path string, items []Item) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating ledger file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(ledgerHeader); err != nil {
		return fmt.Errorf("writing ledger header: %w", err)
	}

	for _, item := range items {
		d := item.Donation

		decidedAt := ""
		if d.DecidedAt != nil {
			decidedAt = d.DecidedAt.UTC().Format(time.RFC3339)
		}

		proof := ""
		if item.FilePath != "" {
			proof = filepath.Base(item.FilePath)
		}

		if err := w.Write([]string{
			d.PaymentReference,
			d.CreatedAt.UTC().Format(time.RFC3339),
			d.DonorName,
			d.DonorEmail,
			strconv.FormatBool(d.IsAnonymous),
			strconv.FormatInt(d.Amount, 10),
			string(d.Status),
			decidedAt,
			d.Reason,
			proof,
		}); err != nil {
			return fmt.Errorf("writing ledger row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing ledger: %w", err)
	}

	return nil
}

// GenerateSummary creates a plain-text recap of the exported ledger.
func (s *Service) GenerateSummary(res *Result) string {
	var sb strings.Builder

	c := res.Campaign
	fmt.Fprintf(&sb, "%s\n", c.Title)
	fmt.Fprintf(&sb, "Terkumpul %s dari %s (%d donatur)\n\n",
		notify.Rupiah(c.CollectedAmount), notify.Rupiah(c.TargetAmount), c.DonorCount)

	for _, item := range res.Items {
		d := item.Donation

		fileStatus := "Tanpa Bukti"
		if item.FilePath != "" {
			fileStatus = filepath.Base(item.FilePath)
		}

		fmt.Fprintf(&sb, "* %s | %s | %s | %s | %s\n",
			d.CreatedAt.Format("2006-01-02"), d.DonorName, notify.Rupiah(d.Amount), d.Status, fileStatus)
	}

	return sb.String()
}
