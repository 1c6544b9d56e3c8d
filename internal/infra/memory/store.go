// Package memory provides an in-process implementation of the store ports.
// It is the default backend and the reference the gorm store is tested against.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/port"
)

// Store keeps accounts, ledger entries and admins in maps guarded by one lock.
// Apply holds the write lock for the whole load-mutate-append-save cycle.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	byEmail  map[string]string
	entries  map[string][]domain.LedgerEntry // per account, append order
	journal  []domain.LedgerEntry            // all accounts, append order
	admins   map[string]*domain.AdminUser
	seq      int64
}

var _ port.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
		byEmail:  make(map[string]string),
		entries:  make(map[string][]domain.LedgerEntry),
		admins:   make(map[string]*domain.AdminUser),
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// ============================================================
// Accounts
// ============================================================

func (s *Store) CreateAccount(_ context.Context, acc *domain.Account, opening []domain.LedgerEntry) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := domain.NormalizeEmail(acc.Email)
	if _, taken := s.byEmail[email]; taken {
		return nil, &domain.ErrConflict{Message: fmt.Sprintf("email already registered: %s", email)}
	}
	if _, taken := s.accounts[acc.ID]; taken {
		return nil, &domain.ErrConflict{Message: fmt.Sprintf("account already exists: %s", acc.ID)}
	}
	if sum := domain.ReplayBalance(opening); sum != acc.TotalPoints {
		return nil, &domain.ErrLedgerMismatch{AccountID: acc.ID, Stored: acc.TotalPoints, Replayed: sum}
	}

	stored := acc.Clone()
	stored.Email = email
	s.accounts[stored.ID] = stored
	s.byEmail[email] = stored.ID
	for _, e := range opening {
		s.appendLocked(e)
	}
	return stored.Clone(), nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return acc.Clone(), nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: email}
	}
	return s.accounts[id].Clone(), nil
}

func (s *Store) ListAccounts(_ context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]domain.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		if q != "" && !matches(acc, q) {
			continue
		}
		out = append(out, *acc.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].ID < out[j].ID
	})

	return paginate(out, filter.Offset, filter.Limit), nil
}

func (s *Store) CountAccounts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

func (s *Store) UpdateAccount(_ context.Context, accountID string, mutate func(acc *domain.Account) error) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}

	working := current.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	if working.TotalPoints != current.TotalPoints {
		return nil, fmt.Errorf("update account %s: points may only change through the ledger", accountID)
	}
	if working.ID != current.ID || domain.NormalizeEmail(working.Email) != current.Email {
		return nil, fmt.Errorf("update account %s: identity fields are immutable", accountID)
	}

	s.accounts[accountID] = working
	return working.Clone(), nil
}

// ============================================================
// Ledger
// ============================================================

func (s *Store) Apply(_ context.Context, accountID string, mutate port.MutateFunc) (*domain.Account, *domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[accountID]
	if !ok {
		return nil, nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}

	working := current.Clone()
	entry, err := mutate(working)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, fmt.Errorf("apply %s: mutation produced no ledger entry", accountID)
	}
	entry.AccountID = accountID

	replayed := domain.ReplayBalance(s.entries[accountID]) + entry.Delta
	if replayed != working.TotalPoints {
		return nil, nil, &domain.ErrLedgerMismatch{AccountID: accountID, Stored: working.TotalPoints, Replayed: replayed}
	}

	stored := s.appendLocked(*entry)
	s.accounts[accountID] = working
	return working.Clone(), &stored, nil
}

func (s *Store) ListEntries(_ context.Context, accountID string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[accountID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return cloneEntries(s.entries[accountID]), nil
}

func (s *Store) ListEntriesSince(_ context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// journal is in append order, which is chronological
	i := sort.Search(len(s.journal), func(i int) bool { return !s.journal[i].CreatedAt.Before(since) })
	return cloneEntries(s.journal[i:]), nil
}

func (s *Store) appendLocked(e domain.LedgerEntry) domain.LedgerEntry {
	s.seq++
	e.Seq = s.seq
	if n := len(s.journal); n > 0 && e.CreatedAt.Before(s.journal[n-1].CreatedAt) {
		// keep the journal sorted even if the caller's clock stepped back
		e.CreatedAt = s.journal[n-1].CreatedAt
	}
	s.entries[e.AccountID] = append(s.entries[e.AccountID], e)
	s.journal = append(s.journal, e)
	return e
}

// ============================================================
// Admins
// ============================================================

func (s *Store) CreateAdmin(_ context.Context, admin *domain.AdminUser) (*domain.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := domain.NormalizeEmail(admin.Email)
	for _, a := range s.admins {
		if a.Email == email {
			return nil, &domain.ErrConflict{Message: fmt.Sprintf("admin already exists: %s", email)}
		}
	}
	stored := admin.Clone()
	stored.Email = email
	s.admins[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) GetAdmin(_ context.Context, adminID string) (*domain.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.admins[adminID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "admin", ID: adminID}
	}
	return a.Clone(), nil
}

func (s *Store) GetAdminByEmail(_ context.Context, email string) (*domain.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = domain.NormalizeEmail(email)
	for _, a := range s.admins {
		if a.Email == email {
			return a.Clone(), nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "admin", ID: email}
}

// ============================================================
// Helpers
// ============================================================

func matches(acc *domain.Account, q string) bool {
	return strings.Contains(acc.Email, q) ||
		strings.Contains(strings.ToLower(acc.FullName()), q) ||
		acc.ID == q
}

func paginate(in []domain.Account, offset, limit int) []domain.Account {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(in) {
		return []domain.Account{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func cloneEntries(in []domain.LedgerEntry) []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, len(in))
	copy(out, in)
	return out
}
