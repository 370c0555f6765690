package accounts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("accounts: not found")
	ErrDuplicatePhone  = errors.New("accounts: phone number already registered")
	ErrInvalidArgument = errors.New("accounts: invalid argument")
	ErrInactive        = errors.New("accounts: account is deactivated")
)

// Store abstracts persistence of scheduling records.
//
// ListDue must return exactly the accounts with active = true AND
// next_due_at <= now; an inactive account is never due regardless of its
// stale next_due_at.
type Store interface {
	Create(ctx context.Context, a Account) error
	GetByID(ctx context.Context, id string) (Account, error)
	GetByPhone(ctx context.Context, phone string) (Account, error)
	Update(ctx context.Context, a Account) error
	Delete(ctx context.Context, id string) error

	// AdvanceNextDue moves the account's next due time after a successful
	// call placement. The account's Active flag is re-checked atomically: a
	// deactivation that raced the placement wins, and no other field is
	// touched.
	AdvanceNextDue(ctx context.Context, id string, next time.Time) error

	List(ctx context.Context) ([]Account, error)
	ListActive(ctx context.Context) ([]Account, error)
	ListDue(ctx context.Context, now time.Time) ([]Account, error)
}
