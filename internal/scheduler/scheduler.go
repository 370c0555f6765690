// Package scheduler places due accountability calls on a fixed tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"voicecoach/internal/accounts"
	"voicecoach/internal/telephony"
)

// Config for the call scheduler.
type Config struct {
	// Tick is how often due accounts are scanned.
	Tick time.Duration

	// FromNumber is the caller id for placed calls.
	FromNumber string

	// WebhookBaseURL is the public base the provider posts callbacks to.
	WebhookBaseURL string
}

// Scheduler scans for due accounts every tick and places one call per due
// account. It also implements accounts.Dialer so the immediate welcome call
// and the manual call-now endpoint share the trigger path.
type Scheduler struct {
	store  accounts.Store
	placer telephony.CallPlacer
	slots  *telephony.SlotTracker
	cfg    Config
	log    *slog.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func New(store accounts.Store, placer telephony.CallPlacer, slots *telephony.SlotTracker, cfg Config, log *slog.Logger) *Scheduler {
	if slots == nil {
		slots = telephony.NewSlotTracker(nil)
	}
	return &Scheduler{
		store:  store,
		placer: placer,
		slots:  slots,
		cfg:    cfg,
		log:    log,
		clock:  time.Now,
	}
}

// Start begins ticking. SkipIfStillRunning guarantees ticks never overlap: a
// slow scan delays the next one instead of running concurrently with it.
func (s *Scheduler) Start() error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))
	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.Tick), s.tick)
	if err != nil {
		return fmt.Errorf("scheduler: register tick: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.log.Info("call scheduler started", "tick", s.cfg.Tick)
	return nil
}

// Stop halts ticking and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("call scheduler stopped")
}

// tick scans and dials. One account's failure is logged and never blocks the
// rest of the batch.
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Tick)
	defer cancel()

	now := s.clock().UTC()
	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		s.log.Error("due scan failed", "err", err)
		return
	}
	for _, a := range due {
		err := s.Trigger(ctx, a.ID)
		switch {
		case err == nil:
		case errors.Is(err, accounts.ErrInactive):
			// Deactivated between the scan and the trigger; not a failure.
			s.log.Info("skipping call to deactivated account", "account_id", a.ID)
		default:
			s.log.Error("scheduled call failed", "account_id", a.ID, "err", err)
		}
	}
}

// ErrSaturated reports that the concurrent-call cap is reached. The account's
// next_due_at is left untouched, so the next tick retries.
var ErrSaturated = errors.New("scheduler: concurrent call limit reached")

// Trigger places one call to the account and, on successful placement only,
// advances next_due_at by the account's interval. A failed placement leaves
// the account due so the next tick retries it. The placed call's id is bound
// to its concurrency slot; the slot is released when a terminal call event
// (or the session sweep) reports that id.
func (s *Scheduler) Trigger(ctx context.Context, accountID string) error {
	a, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !a.Active {
		return accounts.ErrInactive
	}

	ok, err := s.slots.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: acquire call slot: %w", err)
	}
	if !ok {
		s.log.Warn("deferring call, concurrent limit reached", "account_id", a.ID)
		return ErrSaturated
	}

	res, err := s.placer.PlaceCall(ctx, telephony.PlaceCallRequest{
		To:                a.PhoneNumber,
		From:              s.cfg.FromNumber,
		CallbackURL:       s.webhookURL(telephony.VoiceWebhookPath),
		StatusCallbackURL: s.webhookURL(telephony.StatusWebhookPath),
	})
	if err != nil {
		// The call never went out; give the slot back immediately.
		if relErr := s.slots.Abort(ctx); relErr != nil {
			s.log.Warn("call slot release failed", "err", relErr)
		}
		return fmt.Errorf("scheduler: place call: %w", err)
	}
	s.slots.Bind(res.ProviderCallID)

	next := s.clock().UTC().Add(a.Interval())
	if err := s.store.AdvanceNextDue(ctx, a.ID, next); err != nil {
		// The call is already in flight; a stale next_due_at means one
		// extra call at worst, so log and move on.
		s.log.Error("failed to advance next due time", "account_id", a.ID, "err", err)
	}

	s.log.Info("call placed",
		"account_id", a.ID,
		"provider_call_id", res.ProviderCallID,
		"next_due_at", next,
	)
	return nil
}

func (s *Scheduler) webhookURL(path string) string {
	return strings.TrimRight(s.cfg.WebhookBaseURL, "/") + path
}
