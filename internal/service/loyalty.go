// Package service provides the business logic layer (use cases).
// LoyaltyService owns every change to point balances; AuthService handles
// customer and admin credentials.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/observability"
	"github.com/BnaryBlade/loyalty-hive-core/internal/port"
)

var loyaltyTracer = otel.Tracer("service/loyalty")

const (
	dashboardCacheKey = "dashboard:stats"
	notifyTimeout     = 30 * time.Second
)

// LoyaltyService orchestrates accounts, the points ledger and the dashboard.
type LoyaltyService struct {
	store     port.Store
	program   *domain.Program
	publisher port.LevelChangePublisher
	cache     port.Cache[*domain.DashboardStats]
	metrics   *observability.Metrics
	logger    *zap.Logger

	locks    stripedLocks
	now      func() time.Time
	inflight sync.WaitGroup
	// dashGen counts dashboard invalidations; a snapshot is only kept when
	// no mutation committed while it was being built.
	dashGen atomic.Uint64
}

// NewLoyaltyService creates the loyalty service with all dependencies injected.
func NewLoyaltyService(
	store port.Store,
	program *domain.Program,
	publisher port.LevelChangePublisher,
	cache port.Cache[*domain.DashboardStats],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LoyaltyService {
	return &LoyaltyService{
		store:     store,
		program:   program,
		publisher: publisher,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests only.
func (s *LoyaltyService) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the service clock's current time.
func (s *LoyaltyService) Now() time.Time {
	return s.now()
}

// Program returns the loaded program (levels and settings).
func (s *LoyaltyService) Program() *domain.Program {
	return s.program
}

// Wait blocks until pending level-change notifications have been delivered.
func (s *LoyaltyService) Wait() {
	s.inflight.Wait()
}

// Ping checks the store.
func (s *LoyaltyService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// apply runs one ledger mutation under the account's lock and handles
// everything that follows a committed entry: metrics, cache invalidation
// and level-change notification.
func (s *LoyaltyService) apply(ctx context.Context, op, accountID string, fn port.MutateFunc) (*domain.MutationResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration(op, time.Since(start)) }()

	unlock := s.locks.lock(accountID)
	defer unlock()

	now := s.now()
	var before int64
	acc, entry, err := s.store.Apply(ctx, accountID, func(a *domain.Account) (*domain.LedgerEntry, error) {
		if !a.IsActive {
			return nil, &domain.ErrAccountInactive{AccountID: a.ID}
		}
		before = a.TotalPoints
		e, err := fn(a)
		if err != nil {
			return nil, err
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		return e, nil
	})
	if err != nil {
		if !errors.Is(err, errNothingToExpire) {
			s.reject(op, accountID, err)
		}
		return nil, err
	}

	s.metrics.RecordEntry(entry.Category, entry.Delta)
	s.invalidateDashboard()

	level, err := s.program.Levels.LevelFor(acc.TotalPoints)
	if err != nil {
		return nil, err
	}
	if prev, err := s.program.Levels.LevelFor(before); err == nil && prev.ID != level.ID {
		s.notifyLevelChange(domain.LevelChangeEvent{
			AccountID: acc.ID,
			Email:     acc.Email,
			From:      prev,
			To:        level,
			Points:    acc.TotalPoints,
			EntryID:   entry.ID,
			At:        entry.CreatedAt,
		})
	}

	s.logger.Info("ledger entry appended",
		zap.String("op", op),
		zap.String("account_id", accountID),
		zap.String("entry_id", entry.ID),
		zap.String("category", string(entry.Category)),
		zap.Int64("delta", entry.Delta),
		zap.Int64("balance", acc.TotalPoints),
	)

	return &domain.MutationResult{Entry: entry, Account: acc, Level: level}, nil
}

// notifyLevelChange publishes asynchronously so a slow webhook never holds
// the account lock. Delivery failures are logged and counted.
func (s *LoyaltyService) notifyLevelChange(evt domain.LevelChangeEvent) {
	s.metrics.RecordLevelChange(evt.Upgrade())
	s.logger.Info("loyalty level changed",
		zap.String("account_id", evt.AccountID),
		zap.String("from", evt.From.ID),
		zap.String("to", evt.To.ID),
		zap.Int64("points", evt.Points),
	)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.publisher.PublishLevelChange(ctx, evt); err != nil {
			s.metrics.IncrExternalError("notifier")
			s.logger.Warn("level change notification failed",
				zap.String("account_id", evt.AccountID),
				zap.Error(err),
			)
		}
	}()
}

// invalidateDashboard drops the cached dashboard after a committed change.
func (s *LoyaltyService) invalidateDashboard() {
	s.dashGen.Add(1)
	s.cache.Delete(dashboardCacheKey)
}

// reject records a refused mutation.
func (s *LoyaltyService) reject(op, accountID string, err error) {
	reason := rejectReason(err)
	s.metrics.IncrRejected(reason)

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("account_id", accountID),
		zap.String("reason", reason),
		zap.Error(err),
	}
	if reason == "internal" || reason == "ledger_mismatch" {
		s.logger.Error("ledger mutation failed", fields...)
		return
	}
	s.logger.Warn("ledger mutation rejected", fields...)
}

func rejectReason(err error) string {
	var (
		validation   *domain.ErrValidation
		forbidden    *domain.ErrForbidden
		notFound     *domain.ErrNotFound
		insufficient *domain.ErrInsufficientBalance
		inactive     *domain.ErrAccountInactive
		mismatch     *domain.ErrLedgerMismatch
	)
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &forbidden):
		return "forbidden"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &insufficient):
		return "insufficient_balance"
	case errors.As(err, &inactive):
		return "inactive"
	case errors.As(err, &mismatch):
		return "ledger_mismatch"
	default:
		return "internal"
	}
}
