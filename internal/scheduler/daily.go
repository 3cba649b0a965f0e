package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// JobFunc is invoked at every daily fire time.
type JobFunc func(ctx context.Context) error

// DailyOptions tune the daily scheduler.
type DailyOptions struct {
	// FireAt is the offset from local midnight, e.g. 17h30m.
	FireAt time.Duration
	// Location is the exchange timezone the fire time is anchored to.
	Location *time.Location
	// WeekdaysOnly skips Saturdays and Sundays.
	WeekdaysOnly bool
}

// Daily fires a job once per day at a fixed local time.
type Daily struct {
	opts   DailyOptions
	logger zerolog.Logger
}

// NewDaily constructs a Daily scheduler.
func NewDaily(opts DailyOptions, logger zerolog.Logger) *Daily {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Daily{opts: opts, logger: logger.With().Str("component", "daily_scheduler").Logger()}
}

// Run blocks, invoking the job at each fire time until ctx is cancelled.
func (d *Daily) Run(ctx context.Context, job JobFunc) error {
	for {
		next := d.Next(time.Now().In(d.opts.Location))
		d.logger.Debug().Time("next_fire", next).Msg("waiting for next fire time")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		d.logger.Info().Time("fire", next).Msg("executing daily job")
		if err := job(ctx); err != nil {
			d.logger.Error().Err(err).Time("fire", next).Msg("daily job failed")
		}
	}
}

// Next computes the first fire time strictly after now.
func (d *Daily) Next(now time.Time) time.Time {
	now = now.In(d.opts.Location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.opts.Location)

	candidate := midnight.Add(d.opts.FireAt)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	for d.opts.WeekdaysOnly && isWeekend(candidate) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
