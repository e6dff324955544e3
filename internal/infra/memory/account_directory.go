package memory

import (
	"context"
	"fmt"
	"sort"

	"battle-arena/internal/domain"
)

// AccountDirectory resolves accounts from a fixed set.
type AccountDirectory struct {
	accounts map[string]domain.Account
}

func NewAccountDirectory(accounts []domain.Account) *AccountDirectory {
	d := &AccountDirectory{accounts: make(map[string]domain.Account, len(accounts))}
	for _, a := range accounts {
		d.accounts[a.ID] = a
	}
	return d
}

func (d *AccountDirectory) Account(_ context.Context, id string) (domain.Account, error) {
	a, ok := d.accounts[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return a, nil
}

func (d *AccountDirectory) Classmates(_ context.Context, grade string) ([]domain.Account, error) {
	out := make([]domain.Account, 0)
	for _, a := range d.accounts {
		if grade == "" || a.Grade == grade {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
