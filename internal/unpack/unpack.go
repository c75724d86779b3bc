// Package unpack extracts a gzipped tar artifact into a fresh scratch
// directory that a framework adapter can then load from (spec §4.E).
package unpack

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/aiserve/modelserver/internal/apperr"
)

// maxFileSize bounds a single extracted file to guard against a
// corrupt or hostile archive expanding without limit.
const maxFileSize = 2 << 30 // 2 GiB

// ToScratch extracts the gzipped tar in data under root, into a
// freshly named subdirectory (root/<uuid>) so concurrent unpacks of
// the same model name never collide. It returns the directory the
// archive's contents were written to.
func ToScratch(root string, data []byte) (string, error) {
	dest := filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("%w: scratch dir: %v", apperr.ErrLoadError, err)
	}

	if err := extract(dest, data); err != nil {
		os.RemoveAll(dest)
		return "", err
	}
	return dest, nil
}

func extract(dest string, data []byte) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: gzip header: %v", apperr.ErrLoadError, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: tar entry: %v", apperr.ErrLoadError, err)
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("%w: mkdir %q: %v", apperr.ErrLoadError, hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.Size); err != nil {
				return err
			}
		default:
			// symlinks, devices etc. have no place in a model artifact.
			continue
		}
	}
}

func writeFile(target string, r io.Reader, size int64) error {
	if size > maxFileSize {
		return fmt.Errorf("%w: entry exceeds %d bytes", apperr.ErrLoadError, maxFileSize)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %q: %v", apperr.ErrLoadError, target, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create %q: %v", apperr.ErrLoadError, target, err)
	}
	defer f.Close()

	if _, err := io.CopyN(f, r, size); err != nil && err != io.EOF {
		return fmt.Errorf("%w: write %q: %v", apperr.ErrLoadError, target, err)
	}
	return nil
}

// safeJoin rejects tar entries that try to escape dest via an
// absolute path or a ".." traversal (a "zip slip" style attack).
func safeJoin(dest, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(dest, name))
	if cleaned != dest && !strings.HasPrefix(cleaned, dest+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: tar entry %q escapes extraction root", apperr.ErrLoadError, name)
	}
	return cleaned, nil
}
