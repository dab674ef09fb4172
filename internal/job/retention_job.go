package job

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/guoxiaopeng875/txcorrelation/internal/biz"
	"github.com/guoxiaopeng875/txcorrelation/internal/conf"
)

const (
	defaultRetentionInterval = time.Hour
	defaultRetentionMaxAge   = 30 * 24 * time.Hour
)

// purger is the part of biz.ChangeUsecase the retention job drives.
type purger interface {
	Purge(ctx context.Context, maxAge time.Duration) (int64, error)
}

// RetentionJob periodically deletes change records older than the
// configured maximum age.
type RetentionJob struct {
	TickerJob
	purger purger
	maxAge time.Duration
}

// NewRetentionJob creates the retention job. It returns nil when c is nil,
// which disables the job.
func NewRetentionJob(c *conf.Retention, uc *biz.ChangeUsecase, logger log.Logger) *RetentionJob {
	if c == nil {
		return nil
	}
	return newRetentionJob(c, uc, logger)
}

func newRetentionJob(c *conf.Retention, p purger, logger log.Logger) *RetentionJob {
	interval := c.Interval.AsDuration()
	if interval <= 0 {
		interval = defaultRetentionInterval
	}
	maxAge := c.MaxAge.AsDuration()
	if maxAge <= 0 {
		maxAge = defaultRetentionMaxAge
	}

	j := &RetentionJob{purger: p, maxAge: maxAge}
	j.TickerJob = newTickerJob("retention", interval, logger, j.purge, true)
	return j
}

func (j *RetentionJob) purge(ctx context.Context) error {
	_, err := j.purger.Purge(ctx, j.maxAge)
	return err
}
