package orm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/guoxiaopeng875/txcorrelation/pkg/txtrack"
)

var _ logger.Interface = (*Logger)(nil)

// Logger routes GORM logs to a kratos logger. Statement traces carry the
// token of the transaction they ran in, so SQL can be matched with lifecycle
// events.
type Logger struct {
	log           *log.Helper
	level         logger.LogLevel
	slowThreshold time.Duration
}

// NewLogger creates a Logger at warn level.
func NewLogger(l log.Logger, slowThreshold time.Duration) *Logger {
	return &Logger{
		log:           log.NewHelper(log.With(l, "module", "pkg/orm")),
		level:         logger.Warn,
		slowThreshold: slowThreshold,
	}
}

// LogMode implements logger.Interface.
func (l *Logger) LogMode(level logger.LogLevel) logger.Interface {
	nl := *l
	nl.level = level
	return &nl
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		l.log.WithContext(ctx).Infof(msg, args...)
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		l.log.WithContext(ctx).Warnf(msg, args...)
	}
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		l.log.WithContext(ctx).Errorf(msg, args...)
	}
}

// Trace implements logger.Interface.
func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	token, _ := txtrack.CurrentToken(ctx)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.WithContext(ctx).Errorw("sql", sql, "rows", rows, "elapsed", elapsed, "tx_token", token.String(), "err", err)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.WithContext(ctx).Warnw("sql", sql, "rows", rows, "elapsed", elapsed, "tx_token", token.String(),
			"slow", fmt.Sprintf(">= %v", l.slowThreshold))
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.WithContext(ctx).Debugw("sql", sql, "rows", rows, "elapsed", elapsed, "tx_token", token.String())
	}
}
