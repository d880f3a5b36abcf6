package images

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

// MaxUploadBytes caps a single product photo.
const MaxUploadBytes = 6 << 20

var ErrNotFound = errors.New("image not found")

// Store keeps product photos. Keys look like products/<product id>/<file>.
type Store interface {
	Put(ctx context.Context, productID, contentType string, r io.Reader) (key string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	// Delete removes one stored image. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteProduct removes every stored image of a product and returns how
	// many were removed. A product without images is not an error.
	DeleteProduct(ctx context.Context, productID string) (int, error)
}

// URL maps a stored key onto the public media route.
func URL(key string) string { return "/media/" + key }

func productPrefix(productID string) string { return "products/" + productID + "/" }

func newKey(productID, contentType string) string {
	ext := ".img"
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		ext = exts[len(exts)-1]
	}
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	}
	return productPrefix(productID) + uuid.NewString() + ext
}

// CleanKey rejects keys that would escape the products namespace.
func CleanKey(key string) (string, bool) {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "..") || strings.Contains(lower, "%2e") || strings.Contains(lower, "\x00") {
		return "", false
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || !strings.HasPrefix(clean, "products/") {
		return "", false
	}
	return clean, true
}
