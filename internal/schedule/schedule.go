// Package schedule provides the in-process timer service: one-shot
// callbacks at a wall-clock offset plus recurring daily and monthly
// jobs. Everything runs on goroutines owned by the Service and stops
// when the service context is cancelled.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Service schedules deferred and recurring callbacks.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	clock  func() time.Time
}

// NewService creates a timer service. Jobs stop when ctx is cancelled or
// Stop is called.
func NewService(ctx context.Context) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{ctx: ctx, cancel: cancel, clock: time.Now}
}

// Schedule runs fn once after d. A non-positive d fires immediately.
// Timers are fire-and-forget: once scheduled they run exactly once
// unless the service is stopped first.
func (s *Service) Schedule(d time.Duration, fn func(ctx context.Context)) {
	if d < 0 {
		d = 0
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-s.ctx.Done():
		case <-t.C:
			fn(s.ctx)
		}
	}()
}

// Daily runs fn every day at the given local time.
func (s *Service) Daily(hour, minute int, fn func(ctx context.Context)) {
	s.recurring(func(now time.Time) time.Time {
		return nextDaily(now, hour, minute)
	}, fn)
}

// Monthly runs fn on the given day of every month at the given local
// time. Months without that day are skipped.
func (s *Service) Monthly(day, hour, minute int, fn func(ctx context.Context)) {
	s.recurring(func(now time.Time) time.Time {
		return nextMonthly(now, day, hour, minute)
	}, fn)
}

// recurring is the shared job loop: sleep until the next occurrence,
// fire, repeat until the service context is cancelled.
func (s *Service) recurring(next func(now time.Time) time.Time, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			at := next(s.clock())
			t := time.NewTimer(at.Sub(s.clock()))
			select {
			case <-s.ctx.Done():
				t.Stop()
				return
			case <-t.C:
				fn(s.ctx)
			}
		}
	}()
}

// Stop cancels every pending timer and waits for running callbacks to
// return.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("Timer service stopped")
}

// nextDaily returns the first time strictly after now that lands on
// hour:minute.
func nextDaily(now time.Time, hour, minute int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// nextMonthly returns the first time strictly after now that lands on
// the given day of a month at hour:minute, skipping months where the
// day does not exist.
func nextMonthly(now time.Time, day, hour, minute int) time.Time {
	year, month := now.Year(), now.Month()
	for i := 0; i < 48; i++ {
		at := time.Date(year, month, day, hour, minute, 0, 0, now.Location())
		// time.Date normalizes overflow (Feb 31 -> Mar 3); a changed day
		// means the month is too short.
		if at.Day() == day && at.After(now) {
			return at
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	// Unreachable for day 1..31, but keep the loop bounded.
	return now.AddDate(0, 1, 0)
}
