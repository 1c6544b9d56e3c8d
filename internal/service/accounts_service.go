package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

// ============================================================
// Accounts
// ============================================================

// OpenAccount creates an account together with its welcome-bonus entry.
// Identity fields and the password hash come from draft; everything else
// is initialised here.
func (s *LoyaltyService) OpenAccount(ctx context.Context, draft domain.Account) (*domain.Account, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.OpenAccount")
	defer span.End()

	now := s.now()
	acc := &domain.Account{
		ID:                    uuid.NewString(),
		Email:                 domain.NormalizeEmail(draft.Email),
		FirstName:             strings.TrimSpace(draft.FirstName),
		LastName:              strings.TrimSpace(draft.LastName),
		Phone:                 strings.TrimSpace(draft.Phone),
		PasswordHash:          draft.PasswordHash,
		JoinedAt:              now,
		TotalPurchases:        decimal.Zero,
		CurrentMonthPurchases: decimal.Zero,
		PurchasePeriod:        domain.BillingPeriod(now),
		IsActive:              true,
		LastActivityAt:        now,
	}

	var opening []domain.LedgerEntry
	if bonus := s.program.Settings.WelcomeBonus; bonus > 0 {
		acc.TotalPoints = bonus
		opening = append(opening, domain.LedgerEntry{
			ID:        uuid.NewString(),
			AccountID: acc.ID,
			Delta:     bonus,
			Category:  domain.CategoryBonus,
			Reason:    "Welcome bonus",
			CreatedAt: now,
		})
	}

	created, err := s.store.CreateAccount(ctx, acc, opening)
	if err != nil {
		return nil, err
	}
	for _, e := range opening {
		s.metrics.RecordEntry(e.Category, e.Delta)
	}
	s.invalidateDashboard()

	s.logger.Info("account opened",
		zap.String("account_id", created.ID),
		zap.Int64("welcome_bonus", created.TotalPoints),
	)
	return created, nil
}

func (s *LoyaltyService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	return s.store.GetAccount(ctx, accountID)
}

// ResolveAccount accepts either an account id or an email address.
func (s *LoyaltyService) ResolveAccount(ctx context.Context, idOrEmail string) (*domain.Account, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.ResolveAccount")
	defer span.End()

	key := strings.TrimSpace(idOrEmail)
	if key == "" {
		return nil, &domain.ErrValidation{Field: "userId", Message: "user id or email is required"}
	}
	if strings.Contains(key, "@") {
		return s.store.GetAccountByEmail(ctx, key)
	}
	return s.store.GetAccount(ctx, key)
}

// LevelFor resolves the level a balance belongs to.
func (s *LoyaltyService) LevelFor(points int64) (domain.LoyaltyLevel, error) {
	return s.program.Levels.LevelFor(points)
}

// GetAccountStatus returns the account with its derived level data.
func (s *LoyaltyService) GetAccountStatus(ctx context.Context, accountID string) (*domain.AccountStatus, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.GetAccountStatus")
	defer span.End()

	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	progress, err := s.program.Levels.ProgressFor(acc.TotalPoints)
	if err != nil {
		return nil, err
	}
	return &domain.AccountStatus{
		Account:      acc,
		Level:        progress.Current,
		NextLevel:    progress.Next,
		Progress:     progress.Fraction,
		PointsNeeded: progress.PointsNeeded,
	}, nil
}

// ListAccounts returns accounts matching filter, most recently active first,
// and the total account count.
func (s *LoyaltyService) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, int, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.ListAccounts")
	defer span.End()

	accounts, err := s.store.ListAccounts(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountAccounts(ctx)
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

// RecentUsers is the admin dashboard's recent-activity list.
func (s *LoyaltyService) RecentUsers(ctx context.Context, query string, limit int) ([]domain.RecentUser, error) {
	accounts, _, err := s.ListAccounts(ctx, domain.AccountFilter{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]domain.RecentUser, 0, len(accounts))
	for _, a := range accounts {
		level, err := s.program.Levels.LevelFor(a.TotalPoints)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.RecentUser{
			ID:           a.ID,
			Name:         a.FullName(),
			Email:        a.Email,
			Points:       a.TotalPoints,
			Level:        level.Name,
			IsActive:     a.IsActive,
			LastActivity: a.LastActivityAt,
		})
	}
	return out, nil
}

// ============================================================
// Profile & activation
// ============================================================

// UpdateProfile changes names and phone. Points are never touched here.
func (s *LoyaltyService) UpdateProfile(ctx context.Context, accountID string, upd domain.ProfileUpdate) (*domain.Account, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.UpdateProfile")
	defer span.End()

	if upd.FirstName != nil && strings.TrimSpace(*upd.FirstName) == "" {
		return nil, &domain.ErrValidation{Field: "firstName", Message: "must not be blank"}
	}
	if upd.LastName != nil && strings.TrimSpace(*upd.LastName) == "" {
		return nil, &domain.ErrValidation{Field: "lastName", Message: "must not be blank"}
	}

	return s.store.UpdateAccount(ctx, accountID, func(acc *domain.Account) error {
		if upd.FirstName != nil {
			acc.FirstName = strings.TrimSpace(*upd.FirstName)
		}
		if upd.LastName != nil {
			acc.LastName = strings.TrimSpace(*upd.LastName)
		}
		if upd.Phone != nil {
			acc.Phone = strings.TrimSpace(*upd.Phone)
		}
		return nil
	})
}

// SetActive flips the account's active flag. Inactive accounts keep their
// balance and history but refuse ledger mutations.
func (s *LoyaltyService) SetActive(ctx context.Context, accountID string, active bool) (*domain.Account, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.SetActive")
	defer span.End()

	unlock := s.locks.lock(accountID)
	defer unlock()

	acc, err := s.store.UpdateAccount(ctx, accountID, func(acc *domain.Account) error {
		acc.IsActive = active
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	s.invalidateDashboard()

	s.logger.Info("account activation changed",
		zap.String("account_id", accountID),
		zap.Bool("active", active),
	)
	return acc, nil
}
