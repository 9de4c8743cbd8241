// Package retention runs housekeeping jobs once at startup and then at every
// UTC midnight.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is one housekeeping run. Errors are logged and the schedule continues.
type Job func(ctx context.Context) error

type MidnightScheduler struct {
	Name   string
	Job    Job
	Logger *zap.Logger

	// now and after are swapped in tests.
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewMidnightScheduler(name string, job Job, logger *zap.Logger) *MidnightScheduler {
	return &MidnightScheduler{
		Name:   name,
		Job:    job,
		Logger: logger.Named("retention").With(zap.String("job", name)),
		now:    time.Now,
		after:  time.After,
	}
}

// NextMidnight returns the first UTC midnight strictly after t.
func NextMidnight(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// Run executes the job immediately, then at every UTC midnight until ctx is
// done. It blocks.
func (m *MidnightScheduler) Run(ctx context.Context) error {
	m.runOnce(ctx)

	for {
		wait := NextMidnight(m.now()).Sub(m.now())
		m.Logger.Debug("next run scheduled", zap.Duration("in", wait))

		select {
		case <-ctx.Done():
			return nil
		case <-m.after(wait):
			m.runOnce(ctx)
		}
	}
}

func (m *MidnightScheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := m.Job(ctx); err != nil {
		m.Logger.Warn("job failed", zap.Error(err))
		return
	}
	m.Logger.Info("job completed", zap.Duration("took", time.Since(start)))
}

// PurgeFunc deletes rows older than a cutoff and reports how many it removed.
type PurgeFunc func(ctx context.Context, before time.Time) (int64, error)

// PurgeOlderThan builds a Job that removes history older than keep.
func PurgeOlderThan(keep time.Duration, purge PurgeFunc, logger *zap.Logger) Job {
	return func(ctx context.Context) error {
		cutoff := time.Now().Add(-keep)
		n, err := purge(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("purged history", zap.Int64("rows", n), zap.Time("before", cutoff))
		return nil
	}
}
