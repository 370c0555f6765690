package accounts

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDialer struct {
	calls []string
	err   error
}

func (d *fakeDialer) Trigger(ctx context.Context, accountID string) error {
	d.calls = append(d.calls, accountID)
	return d.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRegister_CreatesActiveDueRecordAndDialsOnce(t *testing.T) {
	repo := NewMemoryRepo()
	dialer := &fakeDialer{}
	svc := NewService(repo, dialer)
	now := time.Unix(1700000000, 0).UTC()
	svc.clock = fixedClock(now)

	res, err := svc.Register(context.Background(), RegisterRequest{
		PhoneNumber:     "+1 555 123 4567",
		IntervalMinutes: 60,
		Personality:     "strict",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	a := res.Account
	if !a.Active {
		t.Fatalf("expected active account")
	}
	if a.PhoneNumber != "+15551234567" {
		t.Fatalf("unexpected normalized phone: %q", a.PhoneNumber)
	}
	if got, want := a.NextDueAt, now.Add(60*time.Minute); !got.Equal(want) {
		t.Fatalf("expected next due %v, got %v", want, got)
	}
	if len(dialer.calls) != 1 || dialer.calls[0] != a.ID {
		t.Fatalf("expected exactly one immediate call, got %v", dialer.calls)
	}
}

func TestRegister_DialFailureDoesNotFailRegistration(t *testing.T) {
	repo := NewMemoryRepo()
	dialer := &fakeDialer{err: errors.New("placement down")}
	svc := NewService(repo, dialer)

	res, err := svc.Register(context.Background(), RegisterRequest{
		PhoneNumber:     "5551234567",
		IntervalMinutes: 30,
		Personality:     "supportive",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.CallStatus == "call initiated" {
		t.Fatalf("expected failure status, got %q", res.CallStatus)
	}
	if _, err := repo.GetByID(context.Background(), res.Account.ID); err != nil {
		t.Fatalf("expected account persisted: %v", err)
	}
}

func TestRegister_Rejections(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &fakeDialer{})

	if _, err := svc.Register(context.Background(), RegisterRequest{PhoneNumber: "5551234567", IntervalMinutes: 60, Personality: "angry"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid personality, got %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterRequest{PhoneNumber: "5551234567", IntervalMinutes: 2, Personality: "strict"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected interval rejection, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{PhoneNumber: "5551234567", IntervalMinutes: 60, Personality: "strict"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterRequest{PhoneNumber: "+1 (555) 123-4567", IntervalMinutes: 60, Personality: "strict"}); !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestActivate_ResetsNextDue(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &fakeDialer{})
	now := time.Unix(1700000000, 0).UTC()
	svc.clock = fixedClock(now)

	a := Account{ID: "a1", PhoneNumber: "+15550001111", IntervalMinutes: 15, Personality: PersonalityStrict, Active: false, NextDueAt: now.Add(-time.Hour), CreatedAt: now.Add(-24 * time.Hour)}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.Activate(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !got.Active {
		t.Fatalf("expected active")
	}
	if want := now.Add(15 * time.Minute); !got.NextDueAt.Equal(want) {
		t.Fatalf("expected next due %v, got %v", want, got.NextDueAt)
	}
}

func TestDeactivate_ExcludesFromDueScan(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &fakeDialer{})
	now := time.Unix(1700000000, 0).UTC()

	a := Account{ID: "a1", PhoneNumber: "+15550001111", IntervalMinutes: 15, Personality: PersonalityStrict, Active: true, NextDueAt: now.Add(-time.Minute), CreatedAt: now}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	due, err := repo.ListDue(context.Background(), now)
	if err != nil || len(due) != 1 {
		t.Fatalf("expected 1 due before deactivation, got %d (%v)", len(due), err)
	}

	if _, err := svc.Deactivate(context.Background(), "a1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// next_due_at is in the past, but the account must no longer be due.
	due, err = repo.ListDue(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected inactive account excluded from due scan, got %d", len(due))
	}
}

func TestCallNow_UnknownAccount(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &fakeDialer{})
	if err := svc.CallNow(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCallNow_InactiveAccountReportedNotSilentlySkipped(t *testing.T) {
	repo := NewMemoryRepo()
	dialer := &fakeDialer{}
	svc := NewService(repo, dialer)
	now := time.Unix(1700000000, 0).UTC()

	a := Account{ID: "a1", PhoneNumber: "+15550001111", IntervalMinutes: 15, Personality: PersonalityStrict, Active: false, NextDueAt: now, CreatedAt: now}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := svc.CallNow(context.Background(), "a1"); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	if len(dialer.calls) != 0 {
		t.Fatalf("inactive account was dialed")
	}
}

func TestAdvanceNextDue_SkipsInactiveAccount(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()

	active := Account{ID: "a1", PhoneNumber: "+15550001111", IntervalMinutes: 60, Personality: PersonalityStrict, Active: true, NextDueAt: now, CreatedAt: now}
	inactive := Account{ID: "a2", PhoneNumber: "+15550002222", IntervalMinutes: 60, Personality: PersonalityStrict, Active: false, NextDueAt: now, CreatedAt: now}
	for _, a := range []Account{active, inactive} {
		if err := repo.Create(context.Background(), a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	next := now.Add(time.Hour)
	if err := repo.AdvanceNextDue(context.Background(), "a1", next); err != nil {
		t.Fatalf("advance active: %v", err)
	}
	if err := repo.AdvanceNextDue(context.Background(), "a2", next); err != nil {
		t.Fatalf("advance inactive: %v", err)
	}
	if err := repo.AdvanceNextDue(context.Background(), "missing", next); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	got, _ := repo.GetByID(context.Background(), "a1")
	if !got.NextDueAt.Equal(next) {
		t.Fatalf("active account not advanced: %v", got.NextDueAt)
	}
	got, _ = repo.GetByID(context.Background(), "a2")
	if !got.NextDueAt.Equal(now) {
		t.Fatalf("inactive account advanced: %v", got.NextDueAt)
	}
}
