package middleware

import (
	"context"
	"log/slog"
	"time"

	"dmchat/internal/app/commands"
	"dmchat/internal/app/queries"
)

// Logging records every dispatched command with its outcome and latency.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			started := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			logOutcome(ctx, logger, "command", cmd.Key(), started, err)
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			started := time.Now()
			res, err := next.Ask(ctx, q)
			logOutcome(ctx, logger, "query", q.Key(), started, err)
			return res, err
		})
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, kind, key string, started time.Time, err error) {
	attrs := []any{kind, key, "duration_ms", time.Since(started).Milliseconds()}
	if err != nil {
		logger.DebugContext(ctx, kind+" failed", append(attrs, "err", err)...)
		return
	}
	logger.DebugContext(ctx, kind+" handled", attrs...)
}
