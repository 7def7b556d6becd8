package images

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/storefront/catalog-service/internal/apperrors"
)

// Files locates path-backed images inside the uploads directory.
type Files struct {
	root   string
	prefix string
}

// NewFiles serves files below root; urlPrefix is the URL segment that maps
// onto root (e.g. "/uploads/").
func NewFiles(root, urlPrefix string) Files {
	return Files{root: root, prefix: strings.Trim(urlPrefix, "/") + "/"}
}

// Root returns the uploads directory.
func (f Files) Root() string {
	return f.root
}

// Locate maps a stored path to a file on disk. References escaping the
// uploads directory and missing files report apperrors.ErrNotFound.
func (f Files) Locate(ref string) (string, error) {
	rel := strings.TrimPrefix(strings.TrimSpace(ref), "/")
	rel = strings.TrimPrefix(rel, f.prefix)
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("image path %q: %w", ref, apperrors.ErrNotFound)
	}

	full := filepath.Join(f.root, rel)
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("image file %q: %w", rel, apperrors.ErrNotFound)
		}
		return "", fmt.Errorf("stat image file %q: %w", rel, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("image file %q is a directory: %w", rel, apperrors.ErrNotFound)
	}
	return full, nil
}
