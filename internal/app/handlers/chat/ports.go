package chat

//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../../../mocks/mock_chat_ports.go -package=mocks

import (
	"context"

	"dmchat/internal/app/services/attachments"
	domainchat "dmchat/internal/domain/chat"
)

// Publisher pushes a payload to a real-time topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Attachments stores message files and cleans them up.
type Attachments interface {
	Upload(ctx context.Context, params attachments.UploadParams) (domainchat.Attachment, error)
	Destroy(ctx context.Context, publicID string)
}
