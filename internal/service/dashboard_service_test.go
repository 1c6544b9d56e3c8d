package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/cache"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/client"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/memory"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/observability"
	"github.com/BnaryBlade/loyalty-hive-core/internal/service"
)

func purchase(accountID string, amount string, at time.Time) domain.LedgerEntry {
	d := decimal.RequireFromString(amount)
	return domain.LedgerEntry{
		AccountID:      accountID,
		Delta:          d.IntPart(),
		Category:       domain.CategoryPurchase,
		PurchaseAmount: &d,
		CreatedAt:      at,
	}
}

func TestAggregate(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	accounts := []domain.Account{
		{ID: "a", IsActive: true},
		{ID: "b", IsActive: true},
		{ID: "c", IsActive: false},
		{ID: "d", IsActive: true},
	}
	entries := []domain.LedgerEntry{
		purchase("a", "100.00", lastMonth),
		purchase("a", "60.00", now.AddDate(0, 0, -2)),
		purchase("b", "90.00", now.AddDate(0, 0, -1)),
		purchase("c", "30.00", now), // inactive, not counted as active
		{AccountID: "d", Delta: -150, Category: domain.CategoryRedeemed, CreatedAt: lastMonth},
		{AccountID: "d", Delta: 50, Category: domain.CategoryBonus, CreatedAt: lastMonth},
	}

	stats := service.Aggregate(accounts, entries, now)

	require.Equal(t, 4, stats.TotalUsers)
	require.Equal(t, 2, stats.ActiveUsers)
	require.Equal(t, int64(100+60+90+30+50), stats.TotalPointsAwarded)
	require.Equal(t, 4, stats.PurchaseCount)
	require.True(t, stats.TotalPurchases.Equal(decimal.RequireFromString("280")))
	require.True(t, stats.AverageOrderValue.Equal(decimal.RequireFromString("70")))
	require.Equal(t, 80.0, stats.MonthlyGrowth) // 180 vs 100
	require.Equal(t, "2026-03", stats.Period)
}

func TestAggregate_Empty(t *testing.T) {
	stats := service.Aggregate(nil, nil, time.Now())
	require.Equal(t, 0, stats.TotalUsers)
	require.Equal(t, 0.0, stats.MonthlyGrowth)
	require.True(t, stats.AverageOrderValue.IsZero())
}

func TestAggregate_GrowthRounding(t *testing.T) {
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	entries := []domain.LedgerEntry{
		purchase("a", "30.00", time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)),
		purchase("a", "20.00", now),
	}
	stats := service.Aggregate([]domain.Account{{ID: "a", IsActive: true}}, entries, now)
	require.Equal(t, -33.3, stats.MonthlyGrowth)
}

func TestGetDashboardStats_CachedUntilMutation(t *testing.T) {
	f := newFixture(t, noWelcome)
	ctx := context.Background()
	acc := f.open(t, "dash@example.com")

	first, err := f.svc.GetDashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalUsers)
	require.Equal(t, 0, first.PurchaseCount)

	again, err := f.svc.GetDashboardStats(ctx)
	require.NoError(t, err)
	require.Same(t, first, again)

	_, err = f.svc.RecordPurchase(ctx, domain.PurchaseRequest{AccountID: acc.ID, AmountSpent: decimal.NewFromInt(25)})
	require.NoError(t, err)

	fresh, err := f.svc.GetDashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, fresh.PurchaseCount)
	require.Equal(t, 1, fresh.ActiveUsers)

	// two misses and one hit
	require.InDelta(t, 1.0/3.0, f.metrics.Snapshot().CacheHitRate, 0.0001)
}

func TestRecentUsers(t *testing.T) {
	f := newFixture(t, noWelcome)
	ctx := context.Background()

	older := f.open(t, "older@example.com")
	f.now = f.now.Add(time.Hour)
	newer := f.open(t, "newer@example.com")
	f.award(t, newer.ID, 600)

	users, err := f.svc.RecentUsers(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, newer.ID, users[0].ID)
	require.Equal(t, "Silver", users[0].Level)
	require.Equal(t, older.ID, users[1].ID)
	require.Equal(t, "Bronze", users[1].Level)

	filtered, err := f.svc.RecentUsers(ctx, "OLDER", 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
}

// gatedStore parks the first ledger scan after it has read its snapshot.
type gatedStore struct {
	*memory.Store
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) ListEntriesSince(ctx context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	entries, err := g.Store.ListEntriesSince(ctx, since)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return entries, err
}

func TestGetDashboardStats_MutationDuringLoadIsNotCached(t *testing.T) {
	store := &gatedStore{Store: memory.New(), loaded: make(chan struct{}), release: make(chan struct{})}
	dash := cache.New[*domain.DashboardStats](time.Minute)
	t.Cleanup(dash.Close)

	svc := service.NewLoyaltyService(store, domain.DefaultProgram(), client.NopPublisher{}, dash, observability.NewMetrics(), zap.NewNop())
	auth := service.NewAuthService(store, svc, "test-secret", time.Hour, bcrypt.MinCost, zap.NewNop())

	ctx := context.Background()
	admin, err := auth.CreateAdmin(ctx, "admin@example.com", "admin-password", "Admin", domain.RoleAdmin)
	require.NoError(t, err)
	acc, err := svc.OpenAccount(ctx, domain.Account{Email: "race@example.com", FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)

	done := make(chan *domain.DashboardStats, 1)
	go func() {
		stats, err := svc.GetDashboardStats(ctx)
		if err != nil {
			done <- nil
			return
		}
		done <- stats
	}()

	<-store.loaded
	_, err = svc.AwardPoints(ctx, domain.AwardRequest{
		AccountID: acc.ID, Amount: 500, Reason: "during load", AuthorizedBy: admin.ID,
	})
	require.NoError(t, err)
	close(store.release)

	first := <-done
	require.NotNil(t, first)
	require.Equal(t, int64(100), first.TotalPointsAwarded)

	fresh, err := svc.GetDashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(600), fresh.TotalPointsAwarded)
}
