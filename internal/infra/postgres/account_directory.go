package postgres

import (
	"context"
	"errors"
	"fmt"

	"battle-arena/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AccountDirectory resolves accounts from the accounts table.
type AccountDirectory struct {
	pool *pgxpool.Pool
}

func NewAccountDirectory(pool *pgxpool.Pool) *AccountDirectory {
	return &AccountDirectory{pool: pool}
}

func (d *AccountDirectory) Account(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	err := d.pool.QueryRow(ctx, `SELECT id, full_name, grade FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.FullName, &a.Grade)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	return a, nil
}

func (d *AccountDirectory) Classmates(ctx context.Context, grade string) ([]domain.Account, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, full_name, grade FROM accounts
		WHERE $1 = '' OR grade = $1
		ORDER BY full_name, id`, grade)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Account, 0)
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.FullName, &a.Grade); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
