package mysql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger forwards gorm's query log to slog. Only slow or failed queries
// are logged above debug.
type GormLogger struct {
	Logger        *slog.Logger
	Level         logger.LogLevel
	SlowThreshold time.Duration
}

func NewGormLogger(l *slog.Logger, slow time.Duration) *GormLogger {
	if l == nil {
		l = slog.Default()
	}
	return &GormLogger{Logger: l, Level: logger.Warn, SlowThreshold: slow}
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	copied := *l
	copied.Level = level
	return &copied
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.Level >= logger.Info {
		l.Logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.Level >= logger.Warn {
		l.Logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.Level >= logger.Error {
		l.Logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey) && l.Level >= logger.Error:
		sql, rows := fc()
		l.Logger.ErrorContext(ctx, "sql failed", "err", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.Level >= logger.Warn:
		sql, rows := fc()
		l.Logger.WarnContext(ctx, "slow sql", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.Level >= logger.Info:
		sql, rows := fc()
		l.Logger.DebugContext(ctx, "sql", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}

var _ logger.Interface = (*GormLogger)(nil)
