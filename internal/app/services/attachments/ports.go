package attachments

//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../../../mocks/mock_object_storage.go -package=mocks

import (
	"context"
	"io"
)

// ObjectStorage holds attachment bytes under a key and serves them at a public URL.
type ObjectStorage interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (publicURL string, err error)
	Remove(ctx context.Context, key string) error
}
