package images

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/storefront/catalog-service/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesLocate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "products"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "products", "p.jpg"), []byte("x"), 0o644))

	files := NewFiles(root, "/uploads/")
	want := filepath.Join(root, "products", "p.jpg")

	for _, ref := range []string{"products/p.jpg", "uploads/products/p.jpg", "/uploads/products/p.jpg", "/products/p.jpg"} {
		got, err := files.Locate(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, got, ref)
	}
}

func TestFilesLocateNotFound(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "products"), 0o755))
	files := NewFiles(root, "/uploads/")

	for _, ref := range []string{"missing.jpg", "../etc/passwd", "uploads/../../secret", "products", ""} {
		_, err := files.Locate(ref)
		assert.ErrorIs(t, err, apperrors.ErrNotFound, ref)
	}
}
