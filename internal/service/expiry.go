package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

// errNothingToExpire aborts an expiration whose account became active again
// between the scan and the lock.
var errNothingToExpire = errors.New("nothing to expire")

// ExpireInactive expires the full balance of every active account whose last
// earning or spending activity is older than the program's expiration
// window. A window of 0 days disables expiration.
func (s *LoyaltyService) ExpireInactive(ctx context.Context, now time.Time) (*domain.ExpiryReport, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.ExpireInactive")
	defer span.End()

	days := s.program.Settings.PointsExpirationDays
	report := &domain.ExpiryReport{}
	if days <= 0 {
		return report, nil
	}
	cutoff := now.UTC().AddDate(0, 0, -days)
	report.Cutoff = cutoff

	accounts, err := s.store.ListAccounts(ctx, domain.AccountFilter{})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if !expirable(&a, cutoff) {
			continue
		}

		res, err := s.apply(ctx, "expire_points", a.ID, func(acc *domain.Account) (*domain.LedgerEntry, error) {
			if !expirable(acc, cutoff) {
				return nil, errNothingToExpire
			}
			points := acc.TotalPoints
			acc.TotalPoints = 0
			// expiration is not customer activity; LastActivityAt stays put
			return &domain.LedgerEntry{
				Delta:    -points,
				Category: domain.CategoryExpired,
				Reason:   fmt.Sprintf("Points expired after %d days of inactivity", days),
			}, nil
		})
		switch {
		case errors.Is(err, errNothingToExpire):
			continue
		case err != nil:
			s.logger.Error("expire account failed", zap.String("account_id", a.ID), zap.Error(err))
			continue
		}
		report.Expired++
		report.PointsExpired += -res.Entry.Delta
	}

	s.logger.Info("expiration sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("scanned", report.Scanned),
		zap.Int("expired", report.Expired),
		zap.Int64("points", report.PointsExpired),
	)
	return report, nil
}

func expirable(acc *domain.Account, cutoff time.Time) bool {
	return acc.IsActive && acc.TotalPoints > 0 && acc.LastActivityAt.Before(cutoff)
}

// RunExpirySweeper calls ExpireInactive every interval until ctx is done.
func (s *LoyaltyService) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireInactive(ctx, s.now()); err != nil && ctx.Err() == nil {
				s.logger.Error("expiration sweep failed", zap.Error(err))
			}
		}
	}
}
