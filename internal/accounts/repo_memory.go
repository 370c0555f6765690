package accounts

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory account store for tests and early development.

type MemoryRepo struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{accounts: map[string]Account{}}
}

func (r *MemoryRepo) Create(ctx context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.PhoneNumber == a.PhoneNumber {
			return ErrDuplicatePhone
		}
	}
	r.accounts[a.ID] = a
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) GetByPhone(ctx context.Context, phone string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.PhoneNumber == phone {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *MemoryRepo) Update(ctx context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	r.accounts[a.ID] = a
	return nil
}

func (r *MemoryRepo) AdvanceNextDue(ctx context.Context, id string, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if !a.Active {
		return nil
	}
	a.NextDueAt = next
	r.accounts[id] = a
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Account, 0)
	for _, a := range r.accounts {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListDue(ctx context.Context, now time.Time) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Account, 0)
	for _, a := range r.accounts {
		if a.Active && !a.NextDueAt.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}
