package booking

import (
	"context"
	"log"
	"time"

	"github.com/stagebook/backend/internal/clock"
	"github.com/stagebook/backend/internal/model"
)

// Sweeper cancels bank-transfer reservations whose payment never
// arrived within the grace period, giving their capacity back.  It is
// the only timeout-driven cancellation path in the system and runs on
// its own schedule, independent of request traffic.
type Sweeper struct {
	engine   *Engine
	store    Store
	clock    clock.Clock
	grace    time.Duration
	interval time.Duration
	stopChan chan struct{}

	// OnExpired, when set, is invoked after each successful
	// cancellation (event publishing, metrics).  Failures there do
	// not affect the sweep.
	OnExpired func(ctx context.Context, r *model.Reservation)

	// OnSweepDone, when set, receives the summary and duration of
	// every completed sweep pass.
	OnSweepDone func(sum SweepSummary, elapsed time.Duration)
}

// SweepSummary reports what one sweep pass did.
type SweepSummary struct {
	Checked   int // candidates matched by the scan
	Cancelled int // reservations transitioned to CANCELLED
	Skipped   int // lost races (confirmed or cancelled meanwhile)
	Failed    int // per-reservation errors, logged and passed over
}

// NewSweeper builds a sweeper with the given grace period and run
// interval.  The reference deployment sweeps hourly with a 72 hour
// grace window.
func NewSweeper(engine *Engine, store Store, clk clock.Clock, grace, interval time.Duration) *Sweeper {
	return &Sweeper{
		engine:   engine,
		store:    store,
		clock:    clk,
		grace:    grace,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.  It is meant to be
// launched as a goroutine from main.
func (s *Sweeper) Start() {
	log.Printf("sweeper: started (interval=%s grace=%s)", s.interval, s.grace)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval/2)
			started := s.clock.Now()
			sum, err := s.RunOnce(ctx)
			if err != nil {
				// A systemic failure aborts this cycle; the next tick
				// retries, never a tight loop.
				log.Printf("sweeper: sweep aborted: %v", err)
			} else if s.OnSweepDone != nil {
				s.OnSweepDone(sum, s.clock.Now().Sub(started))
			}
			cancel()
		case <-s.stopChan:
			log.Printf("sweeper: stopped")
			return
		}
	}
}

// Stop terminates the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

// RunOnce performs a single sweep pass.  Each candidate is cancelled
// independently: one reservation failing (or being confirmed by a
// racing manager) never aborts the batch.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepSummary, error) {
	cutoff := s.clock.Now().Add(-s.grace)
	ids, err := s.store.ListExpiredPendingIDs(ctx, cutoff)
	if err != nil {
		return SweepSummary{}, err
	}
	sum := SweepSummary{Checked: len(ids)}
	for _, id := range ids {
		r, cancelled, err := s.engine.ExpireOne(ctx, id)
		if err != nil {
			sum.Failed++
			log.Printf("sweeper: expire reservation %d failed: %v", id, err)
			continue
		}
		if !cancelled {
			sum.Skipped++
			continue
		}
		sum.Cancelled++
		if s.OnExpired != nil {
			s.OnExpired(ctx, r)
		}
	}
	if sum.Checked > 0 {
		log.Printf("sweeper: cancelled %d unpaid reservations (checked=%d skipped=%d failed=%d cutoff=%s)",
			sum.Cancelled, sum.Checked, sum.Skipped, sum.Failed, cutoff.Format(time.RFC3339))
	}
	return sum, nil
}
