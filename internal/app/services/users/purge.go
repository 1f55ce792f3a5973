package users

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dmchat/internal/app/services/attachments"
	domainuser "dmchat/internal/domain/user"
)

type AttachmentPurger interface {
	PurgeUser(ctx context.Context, userID domainuser.ID) (attachments.PurgeReport, error)
}

// BackgroundPurge runs the attachment purge of a deleted account on its own
// goroutine, detached from the request. Used when no broker is configured.
type BackgroundPurge struct {
	Purger  AttachmentPurger
	Logger  *slog.Logger
	Timeout time.Duration

	wg sync.WaitGroup
}

func (b *BackgroundPurge) AccountDeleted(ctx context.Context, event domainuser.Deleted) error {
	detached := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(detached, b.timeout())
		defer cancel()
		RunPurge(ctx, b.Purger, b.Logger, event.UserID)
	}()
	return nil
}

// Wait blocks until every started purge has finished.
func (b *BackgroundPurge) Wait() {
	b.wg.Wait()
}

func (b *BackgroundPurge) timeout() time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}
	return 5 * time.Minute
}

// RunPurge purges and logs the outcome. Failures are only logged.
func RunPurge(ctx context.Context, purger AttachmentPurger, logger *slog.Logger, userID domainuser.ID) {
	if logger == nil {
		logger = slog.Default()
	}
	if purger == nil {
		logger.Warn("attachment purge skipped: no purger", "user_id", userID)
		return
	}
	report, err := purger.PurgeUser(ctx, userID)
	if err != nil {
		logger.Error("attachment purge failed", "user_id", userID, "err", err)
		return
	}
	if report.Err != nil {
		logger.Warn("attachment purge incomplete", "user_id", userID, "removed", report.Removed, "attempted", report.Attempted, "err", report.Err)
	}
}

var _ AccountEvents = (*BackgroundPurge)(nil)
