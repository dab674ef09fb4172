package txtrack

import (
	"context"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Sink receives lifecycle events. Implementations may fail; the Tracker
// never lets a failure reach the transaction.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) error { return nil }

// MultiSink fans an event out to every sink, even when some of them fail.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to a kratos logger.
type LogSink struct {
	log *log.Helper
}

// NewLogSink creates a LogSink.
func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{log: log.NewHelper(log.With(logger, "module", "pkg/txtrack"))}
}

// Emit implements Sink.
func (s *LogSink) Emit(ctx context.Context, ev Event) error {
	s.log.WithContext(ctx).Infow(
		"event", ev.Kind.String(),
		"token", ev.Token.String(),
		"target", ev.Target,
		"time", ev.Time.Format(time.RFC3339Nano),
	)
	return nil
}
