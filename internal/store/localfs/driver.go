// Package localfs implements store.Store over a plain directory of
// "<framework>-<model_name>.tar.gz" files (spec §4.D).
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aiserve/modelserver/internal/store"
)

// Driver lists and reads artifacts from a local directory.
type Driver struct {
	dir string
}

// New returns a Driver rooted at dir. dir must already exist.
func New(dir string) (*Driver, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("model_dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model_dir %q is not a directory", dir)
	}
	return &Driver{dir: dir}, nil
}

// List scans the directory for *.tar.gz files. Non-matching entries are
// left for the caller (artifact.Parse) to skip with a warning.
func (d *Driver) List(ctx context.Context) ([]store.Artifact, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", d.dir, err)
	}

	var out []store.Artifact
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tar.gz") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, store.Artifact{
			Key:         e.Name(),
			ETagOrMTime: info.ModTime().UTC().Format("20060102T150405.000000000Z"),
			Size:        info.Size(),
		})
	}
	return out, nil
}

// Fetch reads the named file's full contents.
func (d *Driver) Fetch(ctx context.Context, key string) ([]byte, error) {
	path, err := d.safePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", key, err)
	}
	return data, nil
}

// Exists reports whether key names a regular file under dir.
func (d *Driver) Exists(ctx context.Context, key string) (bool, error) {
	path, err := d.safePath(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// safePath joins key onto dir and rejects any attempt to escape it via
// ".." or an absolute path — store keys come from artifact listings,
// not from trusted input, but defense in depth costs nothing here.
func (d *Driver) safePath(key string) (string, error) {
	if filepath.IsAbs(key) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return filepath.Join(d.dir, key), nil
}
