// Package artifact manages the temp directory holding uploaded and generated
// audio. Files are named by content hash or a fixed name; nothing is cleaned up.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for names that would escape the directory.
var ErrInvalidName = errors.New("invalid artifact name")

// Dir is a flat artifact directory. Upload also accepts slash-separated keys.
type Dir struct {
	root string
}

// Open creates root if needed.
func Open(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// Path returns the location of name inside the directory.
func (d *Dir) Path(name string) string { return filepath.Join(d.root, name) }

// Write stores data under name and returns the file path.
func (d *Dir) Write(name string, data []byte) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	path := d.Path(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	return path, nil
}

// Save copies r under name, failing once more than limit bytes arrive
// (limit <= 0 disables the check).
func (d *Dir) Save(name string, r io.Reader, limit int64) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	path := d.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact %s: %w", name, err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && limit > 0 && n > limit {
		err = fmt.Errorf("artifact %s exceeds %d bytes", name, limit)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save artifact %s: %w", name, err)
	}
	return path, nil
}

// Upload stores data under a slash-separated key, creating subdirectories.
func (d *Dir) Upload(_ context.Context, key string, data []byte) error {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrInvalidName, key)
	}

	path := filepath.Join(d.root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", key, err)
	}
	return nil
}

// Download reads an object written by Upload.
func (d *Dir) Download(_ context.Context, key string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, key)
	}
	data, err := os.ReadFile(filepath.Join(d.root, clean))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

// UploadName reduces a client-supplied file name to its base name.
func UploadName(name string) string {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	if base == "." || base == string(filepath.Separator) || base == ".." {
		return "upload"
	}
	return base
}

// HashName returns prefix_<first 16 hex chars of sha256(parts joined by "|")>.
func HashName(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return prefix + "_" + hex.EncodeToString(sum[:])[:16]
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
