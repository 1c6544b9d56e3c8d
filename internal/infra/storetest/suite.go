// Package storetest holds the behaviour every port.Store implementation must
// share. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/port"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) port.Store

// Run executes the shared store suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("OpeningMismatch", func(t *testing.T) { testOpeningMismatch(t, newStore(t)) })
	t.Run("ApplyAppendsAndSaves", func(t *testing.T) { testApply(t, newStore(t)) })
	t.Run("ApplyErrorLeavesState", func(t *testing.T) { testApplyError(t, newStore(t)) })
	t.Run("ApplyDetectsMismatch", func(t *testing.T) { testApplyMismatch(t, newStore(t)) })
	t.Run("ApplyConcurrent", func(t *testing.T) { testApplyConcurrent(t, newStore(t)) })
	t.Run("UpdateRejectsPoints", func(t *testing.T) { testUpdateRejectsPoints(t, newStore(t)) })
	t.Run("ListAndSearch", func(t *testing.T) { testListAndSearch(t, newStore(t)) })
	t.Run("EntriesSince", func(t *testing.T) { testEntriesSince(t, newStore(t)) })
	t.Run("Admins", func(t *testing.T) { testAdmins(t, newStore(t)) })
}

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// NewAccount builds an account with a welcome entry of bonus points.
func NewAccount(email string, bonus int64) (*domain.Account, []domain.LedgerEntry) {
	acc := &domain.Account{
		ID:             uuid.NewString(),
		Email:          email,
		FirstName:      "Jane",
		LastName:       "Doe",
		JoinedAt:       base,
		TotalPoints:    bonus,
		TotalPurchases: decimal.Zero,
		PurchasePeriod: domain.BillingPeriod(base),
		IsActive:       true,
		LastActivityAt: base,
	}
	if bonus == 0 {
		return acc, nil
	}
	return acc, []domain.LedgerEntry{{
		ID:        uuid.NewString(),
		AccountID: acc.ID,
		Delta:     bonus,
		Category:  domain.CategoryBonus,
		Reason:    "Welcome bonus",
		CreatedAt: base,
	}}
}

func award(points int64, at time.Time) port.MutateFunc {
	return func(acc *domain.Account) (*domain.LedgerEntry, error) {
		acc.TotalPoints += points
		acc.LastActivityAt = at
		return &domain.LedgerEntry{
			ID:        uuid.NewString(),
			Delta:     points,
			Category:  domain.CategoryBonus,
			Reason:    "test",
			CreatedAt: at,
		}, nil
	}
}

func testCreateAndGet(t *testing.T, s port.Store) {
	ctx := context.Background()
	acc, opening := NewAccount("Jane@Example.com", 100)

	created, err := s.CreateAccount(ctx, acc, opening)
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", created.Email)

	got, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.TotalPoints)
	require.True(t, got.IsActive)

	byEmail, err := s.GetAccountByEmail(ctx, "  JANE@example.COM ")
	require.NoError(t, err)
	require.Equal(t, acc.ID, byEmail.ID)

	entries, err := s.ListEntries(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.CategoryBonus, entries[0].Category)

	_, err = s.GetAccount(ctx, "missing")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf))

	n, err := s.CountAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func testDuplicateEmail(t *testing.T, s port.Store) {
	ctx := context.Background()
	a, opening := NewAccount("dup@example.com", 0)
	_, err := s.CreateAccount(ctx, a, opening)
	require.NoError(t, err)

	b, opening := NewAccount("DUP@example.com", 0)
	_, err = s.CreateAccount(ctx, b, opening)
	var conflict *domain.ErrConflict
	require.True(t, errors.As(err, &conflict), "got %v", err)
}

func testOpeningMismatch(t *testing.T, s port.Store) {
	ctx := context.Background()
	acc, opening := NewAccount("bad@example.com", 100)
	acc.TotalPoints = 150

	_, err := s.CreateAccount(ctx, acc, opening)
	var mismatch *domain.ErrLedgerMismatch
	require.True(t, errors.As(err, &mismatch), "got %v", err)

	_, err = s.GetAccountByEmail(ctx, "bad@example.com")
	require.Error(t, err)
}

func testApply(t *testing.T, s port.Store) {
	ctx := context.Background()
	acc, opening := NewAccount("apply@example.com", 100)
	_, err := s.CreateAccount(ctx, acc, opening)
	require.NoError(t, err)

	updated, entry, err := s.Apply(ctx, acc.ID, award(250, base.Add(time.Hour)))
	require.NoError(t, err)
	require.Equal(t, int64(350), updated.TotalPoints)
	require.Equal(t, acc.ID, entry.AccountID)
	require.NotZero(t, entry.Seq)

	entries, err := s.ListEntries(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Less(t, entries[0].Seq, entries[1].Seq)
	require.Equal(t, updated.TotalPoints, domain.ReplayBalance(entries))
}

func testApplyError(t *testing.T, s port.Store) {
	ctx := context.Background()
	acc, opening := NewAccount("err@example.com", 100)
	_, err := s.CreateAccount(ctx, acc, opening)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, _, err = s.Apply(ctx, acc.ID, func(a *domain.Account) (*domain.LedgerEntry, error) {
		a.TotalPoints = 0
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.TotalPoints)

	_, _, err = s.Apply(ctx, "missing", award(1, base))
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf))
}

func testApplyMismatch(t *testing.T, s port.Store) {
	ctx := context.Background()
	acc, opening := NewAccount("mismatch@example.com", 100)
	_, err := s.CreateAccount(ctx, acc, opening)
	require.NoError(t, err)

	_, _, err = s.Apply(ctx, acc.ID, func(a *domain.Account) (*domain.LedgerEntry, error) {
		a.TotalPoints += 10
		return &domain.LedgerEntry{ID: uuid.NewString(), Delta: 5, Category: domain.CategoryBonus, Reason: "x", CreatedAt: base}, nil
	})
	var mismatch *domain.ErrLedgerMismatch
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	require.Equal(t, int64(110), mismatch.Stored)
	require.Equal(t, int64(105), mismatch.Replayed)

	entries, err := s.ListEntries(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func testApplyConcurrent(t *testing.T, s port.Store) {
	ctx := context.Background()
	acc, opening := NewAccount("conc@example.com", 0)
	_, err := s.CreateAccount(ctx, acc, opening)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Apply(ctx, acc.ID, award(1, base)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(n), got.TotalPoints)
}

func testUpdateRejectsPoints(t *testing.T, s port.Store) {
	ctx := context.Background()
	acc, opening := NewAccount("upd@example.com", 100)
	_, err := s.CreateAccount(ctx, acc, opening)
	require.NoError(t, err)

	_, err = s.UpdateAccount(ctx, acc.ID, func(a *domain.Account) error {
		a.TotalPoints = 9999
		return nil
	})
	require.Error(t, err)

	updated, err := s.UpdateAccount(ctx, acc.ID, func(a *domain.Account) error {
		a.Phone = "+1 555 0100"
		a.IsActive = false
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "+1 555 0100", updated.Phone)
	require.False(t, updated.IsActive)
	require.Equal(t, int64(100), updated.TotalPoints)
}

func testListAndSearch(t *testing.T, s port.Store) {
	ctx := context.Background()
	for i, name := range []string{"Alice", "Bob", "Carol"} {
		acc, opening := NewAccount(fmt.Sprintf("%s@example.com", name), 0)
		acc.FirstName = name
		acc.LastActivityAt = base.Add(time.Duration(i) * time.Hour)
		_, err := s.CreateAccount(ctx, acc, opening)
		require.NoError(t, err)
	}

	all, err := s.ListAccounts(ctx, domain.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Carol", all[0].FirstName, "most recent activity first")

	found, err := s.ListAccounts(ctx, domain.AccountFilter{Query: "BOB"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "bob@example.com", found[0].Email)

	page, err := s.ListAccounts(ctx, domain.AccountFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "Bob", page[0].FirstName)
}

func testEntriesSince(t *testing.T, s port.Store) {
	ctx := context.Background()
	acc, opening := NewAccount("since@example.com", 10)
	_, err := s.CreateAccount(ctx, acc, opening)
	require.NoError(t, err)

	later := base.Add(48 * time.Hour)
	_, _, err = s.Apply(ctx, acc.ID, award(5, later))
	require.NoError(t, err)

	all, err := s.ListEntriesSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	recent, err := s.ListEntriesSince(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, int64(5), recent[0].Delta)
}

func testAdmins(t *testing.T, s port.Store) {
	ctx := context.Background()
	admin := &domain.AdminUser{
		ID:          uuid.NewString(),
		Email:       "Ops@Example.com",
		Name:        "Ops",
		Role:        domain.RoleManager,
		Permissions: domain.DefaultPermissions(domain.RoleManager),
		CreatedAt:   base,
	}
	_, err := s.CreateAdmin(ctx, admin)
	require.NoError(t, err)

	got, err := s.GetAdmin(ctx, admin.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RoleManager, got.Role)
	require.True(t, got.Can(domain.PermViewDashboard))
	require.False(t, got.Can(domain.PermAwardPoints))

	byEmail, err := s.GetAdminByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.Equal(t, admin.ID, byEmail.ID)

	_, err = s.CreateAdmin(ctx, &domain.AdminUser{ID: uuid.NewString(), Email: "ops@example.com", Role: domain.RoleAdmin})
	var conflict *domain.ErrConflict
	require.True(t, errors.As(err, &conflict))

	_, err = s.GetAdmin(ctx, "nope")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf))
}
