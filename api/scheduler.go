/*
scheduler.go - Daily recurring-run scheduler

PURPOSE:
  Fires the recurring execution batch once per day at a configured hour.
  This is the in-process convenience form of the trigger surface; an
  external cron hitting POST /api/recurring/run works identically, and
  both can coexist because the engine re-derives due-ness from the
  execution history table.

DESIGN:
  - Background goroutine with a coarse check interval
  - Remembers the last day it fired so it triggers once per day, but the
    engine would skip duplicates anyway
  - Stop() waits for an in-flight run to finish

CONFIGURATION:
  - RunHour:       local hour of day to fire (default 8, i.e. 08:00)
  - CheckInterval: how often to check the clock (default 10 minutes)
  - Enabled:       whether the scheduler is active

SEE ALSO:
  - handlers.go: RunRecurring (the manual trigger)
  - wallet/recurring.go: ExecuteDue
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/wallet-engine/wallet"
)

// RecurringScheduler triggers the daily recurring run.
type RecurringScheduler struct {
	Recurring     *wallet.RecurringService
	Logger        zerolog.Logger
	RunHour       int
	CheckInterval time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastDay time.Time
}

// NewRecurringScheduler creates a scheduler with the default 08:00 run
// hour and a 10-minute check interval.
func NewRecurringScheduler(recurring *wallet.RecurringService, logger zerolog.Logger) *RecurringScheduler {
	return &RecurringScheduler{
		Recurring:     recurring,
		Logger:        logger,
		RunHour:       8,
		CheckInterval: 10 * time.Minute,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RecurringScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info().Msg("recurring scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)
	go rs.run(rs.ticker)

	rs.Logger.Info().
		Int("run_hour", rs.RunHour).
		Dur("check_interval", rs.CheckInterval).
		Msg("recurring scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run.
func (rs *RecurringScheduler) Stop() {
	rs.mu.Lock()
	ticker := rs.ticker
	rs.ticker = nil
	if ticker != nil {
		ticker.Stop()
		close(rs.stop)
	}
	rs.mu.Unlock()

	if ticker != nil {
		rs.wg.Wait()
		rs.Logger.Info().Msg("recurring scheduler stopped")
	}
}

func (rs *RecurringScheduler) run(ticker *time.Ticker) {
	defer rs.wg.Done()

	rs.maybeFire(time.Now())
	for {
		select {
		case <-ticker.C:
			rs.maybeFire(time.Now())
		case <-rs.stop:
			return
		}
	}
}

// maybeFire triggers the batch if the run hour has passed and it has not
// fired today.
func (rs *RecurringScheduler) maybeFire(now time.Time) {
	if now.Hour() < rs.RunHour {
		return
	}
	today := wallet.DayOf(now)
	rs.mu.Lock()
	already := rs.lastDay.Equal(today)
	if !already {
		rs.lastDay = today
	}
	rs.mu.Unlock()
	if already {
		return
	}

	summary, err := rs.Recurring.ExecuteDue(context.Background())
	if err != nil {
		rs.Logger.Error().Err(err).Msg("recurring run failed")
		return
	}
	rs.Logger.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Msg("scheduled recurring run finished")
}
