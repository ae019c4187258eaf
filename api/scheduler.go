/*
scheduler.go - Statement snapshot scheduler

PURPOSE:
  Periodically derives the statement of every configured credit card and
  stores it, one snapshot per asset and payment date. A later run for the
  same payment date replaces the earlier snapshot, so the table keeps the
  latest view of each billing cycle.

DESIGN:
  - robfig/cron drives the job from a standard cron spec (SNAPSHOT_SCHEDULE)
  - Overlapping runs are skipped (cron.SkipIfStillRunning)
  - A failing asset is logged and skipped; the run continues
  - Snapshots are read-side output only, the ledger is never written

USAGE:
  scheduler := NewSnapshotScheduler(store, "@daily", log)
  if err := scheduler.Start(); err != nil { ... }
  defer scheduler.Stop()

SEE ALSO:
  - handlers.go: ListSnapshots endpoint
  - billing/statement.go: StatementFor
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/finance-engine/billing"
	"github.com/warp/finance-engine/generic"
	"github.com/warp/finance-engine/store/sqlite"
)

// SnapshotScheduler takes statement snapshots on a cron schedule.
type SnapshotScheduler struct {
	Store    *sqlite.Store
	Schedule string // standard cron spec, empty disables the job
	Log      logrus.FieldLogger

	// Now supplies the evaluation date of each run.
	Now func() generic.TimePoint

	cron *cron.Cron
	mu   sync.Mutex
}

// NewSnapshotScheduler creates a new scheduler.
func NewSnapshotScheduler(store *sqlite.Store, schedule string, log logrus.FieldLogger) *SnapshotScheduler {
	return &SnapshotScheduler{
		Store:    store,
		Schedule: schedule,
		Log:      log,
		Now:      generic.Today,
	}
}

// Start registers the job and begins the scheduler.
func (s *SnapshotScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Schedule == "" {
		s.Log.Info("snapshot scheduler disabled")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	logger := cron.PrintfLogger(cronLogAdapter{s.Log})
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.Schedule, s.run); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", s.Schedule, err)
	}
	c.Start()
	s.cron = c

	s.Log.WithField("schedule", s.Schedule).Info("snapshot scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.Log.Info("snapshot scheduler stopped")
}

func (s *SnapshotScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.Log.WithError(err).Error("snapshot run failed")
	}
}

// RunOnce snapshots every credit card with a configured cycle and returns
// how many snapshots were written.
func (s *SnapshotScheduler) RunOnce(ctx context.Context) (int, error) {
	today := s.Now().Date()

	assets, err := s.Store.ListAssets(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing assets: %w", err)
	}

	written := 0
	for _, asset := range assets {
		if asset.Type != generic.AssetCreditCard || asset.Credit == nil {
			continue
		}
		ok, err := s.snapshot(ctx, asset, today)
		if err != nil {
			s.Log.WithError(err).WithField("asset_id", asset.ID).Warn("snapshot skipped")
			continue
		}
		if ok {
			written++
		}
	}

	s.Log.WithFields(logrus.Fields{"date": today.String(), "written": written}).Info("snapshot run completed")
	return written, nil
}

// snapshot stores the asset's statement. It reports false when the card
// has no usable window and nothing was written.
func (s *SnapshotScheduler) snapshot(ctx context.Context, asset generic.Asset, today generic.TimePoint) (bool, error) {
	txs, err := s.Store.LoadTransactions(ctx, asset.ID)
	if err != nil {
		return false, err
	}

	statement := billing.StatementFor(asset, txs, today)
	if statement.Window.IsZero() {
		return false, nil
	}

	body, err := json.Marshal(toStatementDTO(statement, today))
	if err != nil {
		return false, fmt.Errorf("encoding statement: %w", err)
	}

	err = s.Store.SaveSnapshot(ctx, sqlite.SnapshotRecord{
		ID:            uuid.NewString(),
		AssetID:       string(asset.ID),
		PaymentDate:   statement.PaymentDate.Date().String(),
		UsageStart:    statement.Window.UsageStart.Date().String(),
		UsageEnd:      statement.Window.UsageEnd.Date().String(),
		StatementJSON: string(body),
	})
	return err == nil, err
}

// cronLogAdapter routes cron's Printf-style logging through logrus.
type cronLogAdapter struct {
	log logrus.FieldLogger
}

func (a cronLogAdapter) Printf(format string, args ...any) {
	a.log.WithField("component", "cron").Debugf(format, args...)
}
