package observability_test

import (
	"testing"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/observability"
)

func TestSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordEntry(domain.CategoryPurchase, 85)
	m.RecordEntry(domain.CategoryPurchase, 15)
	m.RecordEntry(domain.CategoryRedeemed, -100)
	m.IncrRejected("validation")
	m.IncrRejected("insufficient_balance")
	m.RecordLevelChange(true)
	m.IncrExternalError("notifier")
	m.IncrCacheHit("dashboard")
	m.IncrCacheHit("dashboard")
	m.IncrCacheHit("dashboard")
	m.IncrCacheMiss("dashboard")

	snap := m.Snapshot()

	if got := snap.EntriesByCategory["purchase"]; got != 2 {
		t.Errorf("expected 2 purchase entries, got %d", got)
	}
	if got := snap.PointsByCategory["purchase"]; got != 100 {
		t.Errorf("expected 100 purchase points, got %d", got)
	}
	if got := snap.PointsByCategory["redeemed"]; got != 100 {
		t.Errorf("expected redeemed points counted as magnitude 100, got %d", got)
	}
	if snap.RejectedOperations != 2 {
		t.Errorf("expected 2 rejections, got %d", snap.RejectedOperations)
	}
	if snap.LevelUpgrades != 1 || snap.LevelDowngrades != 0 {
		t.Errorf("unexpected level changes: up=%d down=%d", snap.LevelUpgrades, snap.LevelDowngrades)
	}
	if snap.NotifyErrors != 1 {
		t.Errorf("expected 1 notify error, got %d", snap.NotifyErrors)
	}
	if snap.CacheHitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got %f", snap.CacheHitRate)
	}
}

func TestNewMetrics_Independent(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()
	a.RecordEntry(domain.CategoryBonus, 10)

	if got := b.Snapshot().EntriesByCategory["bonus"]; got != 0 {
		t.Errorf("registries must not share state, got %d", got)
	}
}
