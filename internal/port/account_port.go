package port

import (
	"context"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

// AccountStore handles account records.
type AccountStore interface {
	// CreateAccount inserts the account together with its opening ledger
	// entries in one atomic unit. acc.TotalPoints must equal their sum.
	CreateAccount(ctx context.Context, acc *domain.Account, opening []domain.LedgerEntry) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error)
	CountAccounts(ctx context.Context) (int, error)

	// UpdateAccount applies mutate to the stored account. It must not be
	// used to change points; stores reject a mutate that does.
	UpdateAccount(ctx context.Context, accountID string, mutate func(acc *domain.Account) error) (*domain.Account, error)
}
