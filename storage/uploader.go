package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
)

type UploadResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	ETag     string `json:"etag,omitempty"`
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// MemoryUploader keeps objects in memory. Used when R2 is not configured
// and in tests.
type MemoryUploader struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	base    *url.URL
}

type memoryObject struct {
	contentType string
	data        []byte
}

func NewMemoryUploader(publicBaseURL string) *MemoryUploader {
	base, _ := url.Parse(publicBaseURL)
	if base != nil && !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return &MemoryUploader{objects: make(map[string]memoryObject), base: base}
}

func (m *MemoryUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{contentType: contentType, data: buf.Bytes()}
	return &UploadResult{Key: key, Location: m.GetPublicURL(key)}, nil
}

func (m *MemoryUploader) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryUploader) GetPublicURL(key string) string {
	return publicURL(m.base, key)
}

// Object returns a stored object's bytes and content type.
func (m *MemoryUploader) Object(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj.data, obj.contentType, ok
}
