package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

var (
	ErrUnsupportedType = errors.New("attachments: file type is invalid")
	ErrEmptyPayload    = errors.New("attachments: file is empty")
	ErrUpload          = errors.New("attachments: upload failed")
)

const defaultDestroyTimeout = 15 * time.Second

var allowedTypes = map[string]string{
	"image/webp":      ".webp",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// IsAllowedType reports whether contentType may be attached to a message.
func IsAllowedType(contentType string) bool {
	_, ok := allowedTypes[normalizeType(contentType)]
	return ok
}

// MessageSource enumerates stored attachments for account purges.
type MessageSource interface {
	AttachmentsForUser(ctx context.Context, userID domainuser.ID) ([]domainchat.Attachment, error)
}

type Service struct {
	Storage        ObjectStorage
	Messages       MessageSource
	Logger         *slog.Logger
	DestroyTimeout time.Duration
	Now            func() time.Time
}

type UploadParams struct {
	OwnerID     domainuser.ID
	Filename    string
	ContentType string
	Data        []byte
}

// Upload validates the payload type and stores it. Nothing reaches storage
// unless both the declared and the sniffed type are allowed.
func (s *Service) Upload(ctx context.Context, params UploadParams) (domainchat.Attachment, error) {
	if s.Storage == nil {
		return domainchat.Attachment{}, fmt.Errorf("%w: storage not configured", ErrUpload)
	}
	if len(params.Data) == 0 {
		return domainchat.Attachment{}, ErrEmptyPayload
	}
	declared := normalizeType(params.ContentType)
	if declared == "application/octet-stream" {
		declared = ""
	}
	if declared != "" && !IsAllowedType(declared) {
		return domainchat.Attachment{}, fmt.Errorf("%w: %s", ErrUnsupportedType, declared)
	}
	detected := mimetype.Detect(params.Data)
	sniffed := normalizeType(detected.String())
	if !IsAllowedType(sniffed) {
		return domainchat.Attachment{}, fmt.Errorf("%w: %s", ErrUnsupportedType, sniffed)
	}
	if declared != "" && declared != sniffed {
		return domainchat.Attachment{}, fmt.Errorf("%w: declared %s but content is %s", ErrUnsupportedType, declared, sniffed)
	}

	name := strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + sanitizeFilename(params.Filename, allowedTypes[sniffed])
	key := path.Join("uploads", params.OwnerID.String(), uuid.NewString()[:8]+"-"+name)

	url, err := s.Storage.Put(ctx, key, bytes.NewReader(params.Data), int64(len(params.Data)), sniffed)
	if err != nil {
		s.logger().Error("attachment upload failed", "owner_id", params.OwnerID, "key", key, "err", err)
		return domainchat.Attachment{}, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	s.logger().Info("attachment uploaded", "owner_id", params.OwnerID, "key", key, "type", sniffed, "size", len(params.Data))
	return domainchat.Attachment{URL: url, Type: sniffed, Name: name, PublicID: key}, nil
}

// Destroy removes an object on a best effort basis. It outlives the caller's
// cancellation and never reports failure.
func (s *Service) Destroy(ctx context.Context, publicID string) {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" || s.Storage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.destroyTimeout())
	defer cancel()
	if err := s.Storage.Remove(ctx, publicID); err != nil {
		s.logger().Warn("attachment destroy failed", "public_id", publicID, "err", err)
		return
	}
	s.logger().Info("attachment destroyed", "public_id", publicID)
}

type PurgeReport struct {
	UserID    domainuser.ID
	Attempted int
	Removed   int
	// Err joins every individual destroy failure.
	Err error
}

// PurgeUser destroys every attachment on messages the user sent or received.
// Individual failures land in the report; only enumeration failure is returned.
func (s *Service) PurgeUser(ctx context.Context, userID domainuser.ID) (PurgeReport, error) {
	report := PurgeReport{UserID: userID}
	if s.Messages == nil {
		return report, errors.New("attachments: message source required")
	}
	found, err := s.Messages.AttachmentsForUser(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("attachments: list for user %s: %w", userID, err)
	}
	seen := make(map[string]struct{}, len(found))
	var failures []error
	for _, a := range found {
		if a.PublicID == "" {
			continue
		}
		if _, dup := seen[a.PublicID]; dup {
			continue
		}
		seen[a.PublicID] = struct{}{}
		report.Attempted++
		if err := s.remove(ctx, a.PublicID); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", a.PublicID, err))
			continue
		}
		report.Removed++
	}
	report.Err = errors.Join(failures...)
	s.logger().Info("attachment purge finished", "user_id", userID, "attempted", report.Attempted, "removed", report.Removed, "failed", len(failures))
	return report, nil
}

func (s *Service) remove(ctx context.Context, publicID string) error {
	if s.Storage == nil {
		return errors.New("attachments: storage not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.destroyTimeout())
	defer cancel()
	return s.Storage.Remove(ctx, publicID)
}

func (s *Service) destroyTimeout() time.Duration {
	if s.DestroyTimeout > 0 {
		return s.DestroyTimeout
	}
	return defaultDestroyTimeout
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func normalizeType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return contentType
}

func sanitizeFilename(name, fallbackExt string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "attachment" + fallbackExt
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
