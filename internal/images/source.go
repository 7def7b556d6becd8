// Package images turns raw image references stored with products and variants
// into client-fetchable URLs.
package images

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// Source is a raw image reference: a Blob, a Path or an External URL.
type Source interface {
	isSource()
}

// Blob is image data stored inline in the row.
type Blob struct {
	Data []byte
}

// Path is a file reference relative to the uploads area, stored as
// "photo.jpg", "uploads/photo.jpg" or "/uploads/photo.jpg".
type Path struct {
	Path string
}

// External is an absolute URL served by someone else.
type External struct {
	URL string
}

func (Blob) isSource()     {}
func (Path) isSource()     {}
func (External) isSource() {}

// Classify inspects a raw column value. It returns nil for empty values.
// Bytes that are not valid UTF-8 or that sniff as an image are blobs.
func Classify(raw []byte) Source {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if !utf8.Valid(raw) || isImageData(raw) {
		return Blob{Data: raw}
	}

	s := strings.TrimSpace(string(raw))
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(s, "//") {
		return External{URL: s}
	}
	return Path{Path: s}
}

func isImageData(raw []byte) bool {
	mt := mimetype.Detect(raw)
	return strings.HasPrefix(mt.String(), "image/")
}

// ContentType sniffs the MIME type of blob data, falling back to JPEG which
// is what the storefront historically stored.
func ContentType(data []byte) string {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "image/jpeg"
	}
	return mt.String()
}

// URLPolicy rewrites sources into client URLs.
type URLPolicy struct {
	// BlobRoute prefixes the product id for blob-backed images, e.g. "/api/products/image/".
	BlobRoute string
	// UploadsPrefix is where path-backed files are served, e.g. "/uploads/".
	UploadsPrefix string
}

// DefaultURLPolicy matches the routes registered by the API layer.
var DefaultURLPolicy = URLPolicy{BlobRoute: "/api/products/image/", UploadsPrefix: "/uploads/"}

// URL resolves src for productID. Paths end up with exactly one leading
// "/uploads/" segment whichever way they were stored.
func (p URLPolicy) URL(src Source, productID int64) string {
	switch s := src.(type) {
	case Blob:
		return p.BlobRoute + strconv.FormatInt(productID, 10)
	case External:
		return s.URL
	case Path:
		return p.resolvePath(s.Path)
	default:
		return ""
	}
}

func (p URLPolicy) resolvePath(path string) string {
	prefix := strings.Trim(p.UploadsPrefix, "/") + "/"
	switch {
	case strings.HasPrefix(path, "/"):
		return path
	case strings.HasPrefix(path, prefix):
		return "/" + path
	default:
		return "/" + prefix + path
	}
}
