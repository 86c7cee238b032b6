package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

var ErrUnsupportedContentType = errors.New("unsupported image content type")

// ProofKind: категория загружаемого изображения.
type ProofKind string

const (
	ProofPayment  ProofKind = "payment-proofs"
	ProofRefund   ProofKind = "refund-proofs"
	ProofRefundQR ProofKind = "refund-qr"
)

// ProofStore uploads proof images under opaque keys. The engine only ever
// stores the returned key.
type ProofStore struct {
	uploader FileUploader
}

func NewProofStore(uploader FileUploader) *ProofStore {
	return &ProofStore{uploader: uploader}
}

// Save uploads an image as <kind>/<ownerID>/<uuid><ext>.
func (s *ProofStore) Save(ctx context.Context, kind ProofKind, ownerID int, contentType string, r io.Reader) (*UploadResult, error) {
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%d/%s%s", kind, ownerID, uuid.NewString(), ext)
	return s.uploader.Upload(ctx, key, contentType, r)
}

// Discard removes an object whose key was never recorded.
func (s *ProofStore) Discard(ctx context.Context, key string) error {
	return s.uploader.Delete(ctx, key)
}

func (s *ProofStore) URL(key string) string {
	return s.uploader.GetPublicURL(key)
}

// GetExtensionFromContentType maps raster image types to a file extension.
func GetExtensionFromContentType(contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
}
