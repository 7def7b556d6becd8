package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want Source
	}{
		{"empty", nil, nil},
		{"blank", []byte("   "), nil},
		{"bare file", []byte("photo.jpg"), Path{Path: "photo.jpg"}},
		{"uploads relative", []byte("uploads/photo.jpg"), Path{Path: "uploads/photo.jpg"}},
		{"absolute path", []byte("/uploads/photo.jpg"), Path{Path: "/uploads/photo.jpg"}},
		{"https", []byte("https://cdn.example.com/a.jpg"), External{URL: "https://cdn.example.com/a.jpg"}},
		{"scheme relative", []byte("//cdn.example.com/a.jpg"), External{URL: "//cdn.example.com/a.jpg"}},
		{"png bytes", pngHeader, Blob{Data: pngHeader}},
		{"binary garbage", []byte{0xff, 0xfe, 0x00, 0x81}, Blob{Data: []byte{0xff, 0xfe, 0x00, 0x81}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.raw))
		})
	}
}

func TestURLPolicyNormalizesPaths(t *testing.T) {
	policy := DefaultURLPolicy

	for _, raw := range []string{"photo.jpg", "uploads/photo.jpg", "/uploads/photo.jpg"} {
		got := policy.URL(Classify([]byte(raw)), 4)
		assert.Equal(t, "/uploads/photo.jpg", got, raw)
		// resolving an already resolved URL is a no-op
		assert.Equal(t, got, policy.URL(Classify([]byte(got)), 4), raw)
	}
}

func TestURLPolicySources(t *testing.T) {
	policy := URLPolicy{BlobRoute: "/api/products/image/", UploadsPrefix: "/uploads/"}

	assert.Equal(t, "/api/products/image/12", policy.URL(Blob{Data: pngHeader}, 12))
	assert.Equal(t, "https://cdn.example.com/x.png", policy.URL(External{URL: "https://cdn.example.com/x.png"}, 12))
	assert.Equal(t, "/uploads/variants/v.png", policy.URL(Path{Path: "variants/v.png"}, 12))
	assert.Equal(t, "/custom/x.png", policy.URL(Path{Path: "/custom/x.png"}, 12))
	assert.Equal(t, "", policy.URL(nil, 12))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType(pngHeader))
	assert.Equal(t, "image/jpeg", ContentType([]byte("not an image")))
}
