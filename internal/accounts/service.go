package accounts

import (
	"context"
	"fmt"
	"time"

	"voicecoach/pkg/logger"

	"github.com/google/uuid"
)

// Dialer triggers an outbound call to an account. The scheduler implements it;
// the service reuses the same trigger path so manual calls get the identical
// active-check and due-advance behavior.
type Dialer interface {
	Trigger(ctx context.Context, accountID string) error
}

const (
	minIntervalMinutes = 5
	maxIntervalMinutes = 1440
)

// Service provides registration and activation control.
//
// Scheduling invariants:
// - Registration activates immediately and sets next_due_at = now + interval.
// - (Re)activation resets next_due_at = now + interval.
// - Deleting an account never touches in-flight call sessions.
type Service struct {
	store  Store
	dialer Dialer
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store, dialer Dialer) *Service {
	return &Service{store: store, dialer: dialer, clock: time.Now}
}

type RegisterRequest struct {
	PhoneNumber     string `json:"phone_number"`
	IntervalMinutes int    `json:"interval_minutes"`
	Personality     string `json:"personality"`
}

// RegisterResult reports the created account and, separately, the best-effort
// outcome of the immediate welcome call.
type RegisterResult struct {
	Account    Account `json:"account"`
	CallStatus string  `json:"call_status"`
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return RegisterResult{}, err
	}
	personality, err := ParsePersonality(req.Personality)
	if err != nil {
		return RegisterResult{}, err
	}
	if req.IntervalMinutes < minIntervalMinutes || req.IntervalMinutes > maxIntervalMinutes {
		return RegisterResult{}, fmt.Errorf("%w: interval must be %d-%d minutes, got %d",
			ErrInvalidArgument, minIntervalMinutes, maxIntervalMinutes, req.IntervalMinutes)
	}

	if _, err := s.store.GetByPhone(ctx, phone); err == nil {
		return RegisterResult{}, ErrDuplicatePhone
	}

	now := s.clock().UTC()
	a := Account{
		ID:              uuid.NewString(),
		PhoneNumber:     phone,
		IntervalMinutes: req.IntervalMinutes,
		Personality:     personality,
		Active:          true,
		NextDueAt:       now.Add(time.Duration(req.IntervalMinutes) * time.Minute),
		CreatedAt:       now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return RegisterResult{}, err
	}

	// Immediate welcome call is best-effort; its failure never fails registration.
	status := "call initiated"
	if s.dialer == nil {
		status = "call skipped: dialer not configured"
	} else if err := s.dialer.Trigger(ctx, a.ID); err != nil {
		logger.From(ctx).Warn("welcome call failed", "account_id", a.ID, "err", err)
		status = "registered, but the welcome call failed; the scheduler will retry"
	}
	return RegisterResult{Account: a, CallStatus: status}, nil
}

func (s *Service) Activate(ctx context.Context, id string) (Account, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	a.Active = true
	a.NextDueAt = s.clock().UTC().Add(a.Interval())
	if err := s.store.Update(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) (Account, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	a.Active = false
	if err := s.store.Update(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

// CallNow bypasses the due check but still goes through the trigger path.
// An inactive account is reported as such rather than silently skipped.
func (s *Service) CallNow(ctx context.Context, id string) error {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !a.Active {
		return ErrInactive
	}
	if s.dialer == nil {
		return fmt.Errorf("%w: dialer not configured", ErrInvalidArgument)
	}
	return s.dialer.Trigger(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.store.List(ctx)
}
