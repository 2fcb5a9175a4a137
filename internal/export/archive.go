package export

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
)

// Zip writes every regular file under dir to w as a zip archive.
func Zip(w io.Writer, dir string) error {
	zipWriter := zip.NewWriter(w)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		relPath, _ := filepath.Rel(dir, path)

		zf, err := zipWriter.Create(relPath)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(zf, f)

		return err
	})
	if err != nil {
		zipWriter.Close()
		return err
	}

	return zipWriter.Close()
}
