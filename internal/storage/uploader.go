package storage

import (
	"context"
	"strings"
)

// FileUploader adapts a FileStore to the archive-uploader contract: objects
// land on the local filesystem and are served from StorageBaseURL. Intended
// for development, where the trainer endpoint is stubbed or tunnelled.
type FileUploader struct {
	store   *FileStore
	baseURL string
}

// NewFileUploader wires a FileStore with its public base URL.
func NewFileUploader(store *FileStore, baseURL string) *FileUploader {
	return &FileUploader{store: store, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload writes the object under the given key and returns its public URL.
func (u *FileUploader) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key, err := u.store.Write(ctx, filename, data)
	if err != nil {
		return "", err
	}
	return u.baseURL + "/" + key, nil
}
