package port

import (
	"context"
	"time"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

// MutateFunc validates and adjusts an account, returning the entry that
// records the change. Returning an error aborts the whole mutation.
type MutateFunc func(acc *domain.Account) (*domain.LedgerEntry, error)

// LedgerStore handles the append-only points ledger.
type LedgerStore interface {
	// Apply loads the account, runs mutate, appends the returned entry and
	// saves the account atomically. Before committing it replays the
	// account's ledger and aborts with *domain.ErrLedgerMismatch when the
	// stored balance disagrees.
	Apply(ctx context.Context, accountID string, mutate MutateFunc) (*domain.Account, *domain.LedgerEntry, error)

	// ListEntries returns an account's entries in chronological order.
	ListEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error)

	// ListEntriesSince returns every entry created at or after since,
	// across all accounts, in chronological order. The zero time returns all.
	ListEntriesSince(ctx context.Context, since time.Time) ([]domain.LedgerEntry, error)
}

// AdminStore handles back-office users.
type AdminStore interface {
	CreateAdmin(ctx context.Context, admin *domain.AdminUser) (*domain.AdminUser, error)
	GetAdmin(ctx context.Context, adminID string) (*domain.AdminUser, error)
	GetAdminByEmail(ctx context.Context, email string) (*domain.AdminUser, error)
}
