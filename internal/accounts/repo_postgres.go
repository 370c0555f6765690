package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"voicecoach/pkg/utils"
)

// PostgresRepo persists accounts in a single table:
//
// CREATE TABLE accounts (
//   id               UUID PRIMARY KEY,
//   phone_number     TEXT NOT NULL UNIQUE,
//   interval_minutes INT NOT NULL,
//   personality      TEXT NOT NULL,
//   active           BOOLEAN NOT NULL DEFAULT FALSE,
//   next_due_at      TIMESTAMPTZ NOT NULL,
//   created_at       TIMESTAMPTZ NOT NULL
// );

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const accountColumns = `id, phone_number, interval_minutes, personality, active, next_due_at, created_at`

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var a Account
	if err := row.Scan(
		&a.ID,
		&a.PhoneNumber,
		&a.IntervalMinutes,
		&a.Personality,
		&a.Active,
		&a.NextDueAt,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *PostgresRepo) Create(ctx context.Context, a Account) error {
	const q = `
INSERT INTO accounts (` + accountColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q,
		a.ID,
		a.PhoneNumber,
		a.IntervalMinutes,
		a.Personality,
		a.Active,
		a.NextDueAt,
		a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicatePhone
	}
	return err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`
	return scanAccount(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetByPhone(ctx context.Context, phone string) (Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts
WHERE phone_number = $1
`
	return scanAccount(r.db.QueryRowContext(ctx, q, phone))
}

func (r *PostgresRepo) Update(ctx context.Context, a Account) error {
	const q = `
UPDATE accounts
SET phone_number = $2,
    interval_minutes = $3,
    personality = $4,
    active = $5,
    next_due_at = $6
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		a.ID,
		a.PhoneNumber,
		a.IntervalMinutes,
		a.Personality,
		a.Active,
		a.NextDueAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicatePhone
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceNextDue is a read-modify-write: the row is locked so a concurrent
// Activate/Deactivate cannot interleave, and a deactivation that landed
// while the call was being placed is not overwritten.
func (r *PostgresRepo) AdvanceNextDue(ctx context.Context, id string, next time.Time) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var active bool
		err := tx.QueryRowContext(ctx,
			`SELECT active FROM accounts WHERE id = $1 FOR UPDATE`, id,
		).Scan(&active)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !active {
			// Inactive accounts ignore next_due_at; leave it alone.
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE accounts SET next_due_at = $2 WHERE id = $1`, id, next,
		)
		return err
	})
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM accounts WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts
ORDER BY created_at
`
	return r.queryAccounts(ctx, q)
}

func (r *PostgresRepo) ListActive(ctx context.Context) ([]Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts
WHERE active = TRUE
ORDER BY created_at
`
	return r.queryAccounts(ctx, q)
}

func (r *PostgresRepo) ListDue(ctx context.Context, now time.Time) ([]Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts
WHERE active = TRUE AND next_due_at <= $1
ORDER BY next_due_at
`
	return r.queryAccounts(ctx, q, now)
}

func (r *PostgresRepo) queryAccounts(ctx context.Context, q string, args ...any) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
