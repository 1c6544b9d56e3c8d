package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	luhn "github.com/EClaesson/go-luhn"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

// ============================================================
// Awards — POST /v1/admin/awards
// ============================================================

// AwardPoints grants points outside purchase accrual. manual_award entries
// need an admin holding award_points; bonus entries may name one.
func (s *LoyaltyService) AwardPoints(ctx context.Context, req domain.AwardRequest) (*domain.MutationResult, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.AwardPoints")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", req.AccountID),
		attribute.Int64("points", req.Amount),
	)

	if req.Category == "" {
		req.Category = domain.CategoryManualAward
	}
	if err := s.authorizeAward(ctx, req); err != nil {
		s.reject("award_points", req.AccountID, err)
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	return s.apply(ctx, "award_points", req.AccountID, func(acc *domain.Account) (*domain.LedgerEntry, error) {
		total, err := domain.AddPoints(acc.TotalPoints, req.Amount)
		if err != nil {
			return nil, err
		}
		acc.TotalPoints = total
		acc.LastActivityAt = s.now()
		return &domain.LedgerEntry{
			Delta:        req.Amount,
			Category:     req.Category,
			Reason:       reason,
			AuthorizedBy: req.AuthorizedBy,
		}, nil
	})
}

func (s *LoyaltyService) authorizeAward(ctx context.Context, req domain.AwardRequest) error {
	if req.Amount <= 0 {
		return &domain.ErrValidation{Field: "points", Message: "must be greater than zero"}
	}
	if limit := s.program.Settings.MaxAwardPoints; limit > 0 && req.Amount > limit {
		return &domain.ErrValidation{Field: "points", Message: fmt.Sprintf("a single award is limited to %d points", limit)}
	}
	if strings.TrimSpace(req.Reason) == "" {
		return &domain.ErrValidation{Field: "reason", Message: "is required"}
	}

	switch req.Category {
	case domain.CategoryManualAward:
		if req.AuthorizedBy == "" {
			return &domain.ErrValidation{Field: "authorizedBy", Message: "is required for manual awards"}
		}
		admin, err := s.store.GetAdmin(ctx, req.AuthorizedBy)
		if err != nil {
			return err
		}
		if !admin.Can(domain.PermAwardPoints) {
			return &domain.ErrForbidden{Action: "award points"}
		}
	case domain.CategoryBonus:
		if req.AuthorizedBy != "" {
			if _, err := s.store.GetAdmin(ctx, req.AuthorizedBy); err != nil {
				return err
			}
		}
	default:
		return &domain.ErrValidation{Field: "category", Message: fmt.Sprintf("%q cannot be awarded", req.Category)}
	}
	return nil
}

// ============================================================
// Purchases — POST /v1/admin/purchases
// ============================================================

// RecordPurchase accrues floor(amount × pointsPerDollar) points and adds
// the amount to the lifetime and monthly purchase totals.
func (s *LoyaltyService) RecordPurchase(ctx context.Context, req domain.PurchaseRequest) (*domain.MutationResult, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.RecordPurchase")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", req.AccountID),
		attribute.String("amount", req.AmountSpent.String()),
	)

	if err := validatePurchase(req); err != nil {
		s.reject("record_purchase", req.AccountID, err)
		return nil, err
	}

	amount := req.AmountSpent
	points, err := PointsForPurchase(amount, s.program.Settings)
	if err != nil {
		s.reject("record_purchase", req.AccountID, err)
		return nil, err
	}

	return s.apply(ctx, "record_purchase", req.AccountID, func(acc *domain.Account) (*domain.LedgerEntry, error) {
		total, err := domain.AddPoints(acc.TotalPoints, points)
		if err != nil {
			return nil, err
		}
		now := s.now()
		acc.RollPeriod(now)
		acc.TotalPurchases = acc.TotalPurchases.Add(amount)
		acc.CurrentMonthPurchases = acc.CurrentMonthPurchases.Add(amount)
		acc.TotalPoints = total
		acc.LastActivityAt = now
		return &domain.LedgerEntry{
			Delta:          points,
			Category:       domain.CategoryPurchase,
			Reason:         fmt.Sprintf("Purchase of $%s", amount.StringFixed(2)),
			PurchaseAmount: &amount,
			OrderNumber:    req.OrderNumber,
			CreatedAt:      now,
		}, nil
	})
}

var maxPoints = decimal.NewFromInt(math.MaxInt64)

// PointsForPurchase is the accrual rule: whole points only, rounded down.
// A product that does not fit in int64 is a validation error.
func PointsForPurchase(amount decimal.Decimal, settings domain.ProgramSettings) (int64, error) {
	points := amount.Mul(settings.PointsPerDollar).Floor()
	if !points.LessThan(maxPoints) {
		return 0, &domain.ErrValidation{Field: "amount", Message: "earns more points than a balance can hold"}
	}
	return points.IntPart(), nil
}

func validatePurchase(req domain.PurchaseRequest) error {
	if !req.AmountSpent.IsPositive() {
		return &domain.ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if !req.AmountSpent.LessThan(domain.MaxPurchaseAmount) {
		return &domain.ErrValidation{Field: "amount", Message: fmt.Sprintf("must be below %s", domain.MaxPurchaseAmount.String())}
	}
	if !req.AmountSpent.Equal(req.AmountSpent.Round(2)) {
		return &domain.ErrValidation{Field: "amount", Message: "must have at most two decimal places"}
	}
	if req.OrderNumber == "" {
		return nil
	}
	for _, r := range req.OrderNumber {
		if r < '0' || r > '9' {
			return &domain.ErrValidation{Field: "orderNumber", Message: "must contain digits only"}
		}
	}
	ok, err := luhn.IsValid(req.OrderNumber)
	if err != nil || !ok {
		return &domain.ErrValidation{Field: "orderNumber", Message: "failed checksum"}
	}
	return nil
}

// ============================================================
// Redemptions — POST /v1/me/redeem, POST /v1/admin/redemptions
// ============================================================

// RedeemPoints spends points. A refused redemption leaves the balance as is.
func (s *LoyaltyService) RedeemPoints(ctx context.Context, req domain.RedeemRequest) (*domain.MutationResult, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.RedeemPoints")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", req.AccountID),
		attribute.Int64("points", req.Amount),
	)

	if req.Amount <= 0 {
		err := &domain.ErrValidation{Field: "points", Message: "must be greater than zero"}
		s.reject("redeem_points", req.AccountID, err)
		return nil, err
	}
	if minimum := s.program.Settings.MinimumRedemption; req.Amount < minimum {
		err := &domain.ErrValidation{Field: "points", Message: fmt.Sprintf("minimum redemption is %d points", minimum)}
		s.reject("redeem_points", req.AccountID, err)
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Points redeemed"
	}

	return s.apply(ctx, "redeem_points", req.AccountID, func(acc *domain.Account) (*domain.LedgerEntry, error) {
		if req.Amount > acc.TotalPoints {
			return nil, &domain.ErrInsufficientBalance{Available: acc.TotalPoints, Required: req.Amount}
		}
		acc.TotalPoints -= req.Amount
		acc.LastActivityAt = s.now()
		return &domain.LedgerEntry{
			Delta:    -req.Amount,
			Category: domain.CategoryRedeemed,
			Reason:   reason,
		}, nil
	})
}

// ============================================================
// Ledger reads — GET /v1/me/ledger, GET /v1/admin/accounts/{id}/ledger
// ============================================================

// GetLedger returns an account's entries in chronological order, starting
// after the entry with sequence afterSeq (0 for the beginning). limit <= 0
// returns everything remaining.
func (s *LoyaltyService) GetLedger(ctx context.Context, accountID string, afterSeq int64, limit int) ([]domain.LedgerEntry, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.GetLedger")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	entries, err := s.store.ListEntries(ctx, accountID)
	if err != nil {
		return nil, err
	}

	start := 0
	for start < len(entries) && entries[start].Seq <= afterSeq {
		start++
	}
	entries = entries[start:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// VerifyBalance replays an account's ledger against its stored balance.
func (s *LoyaltyService) VerifyBalance(ctx context.Context, accountID string) (*domain.ReplayResult, error) {
	ctx, span := loyaltyTracer.Start(ctx, "LoyaltyService.VerifyBalance")
	defer span.End()

	unlock := s.locks.lock(accountID)
	defer unlock()

	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, accountID)
	if err != nil {
		return nil, err
	}

	replayed := domain.ReplayBalance(entries)
	res := &domain.ReplayResult{
		AccountID:  accountID,
		Stored:     acc.TotalPoints,
		Replayed:   replayed,
		Entries:    len(entries),
		Consistent: replayed == acc.TotalPoints,
	}
	if !res.Consistent {
		s.logger.Error("ledger replay disagrees with stored balance",
			zap.String("account_id", accountID),
			zap.Int64("stored", res.Stored),
			zap.Int64("replayed", res.Replayed),
		)
	}
	return res, nil
}
