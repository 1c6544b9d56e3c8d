package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/service"
)

// ============================================================
// Admin ledger mutations
// ============================================================

// userId accepts an account id or an email address.
type awardBody struct {
	UserID   string          `json:"userId"`
	Points   int64           `json:"points"`
	Reason   string          `json:"reason"`
	Category domain.Category `json:"category,omitempty"`
}

type purchaseBody struct {
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	OrderNumber string          `json:"orderNumber,omitempty"`
}

type redemptionBody struct {
	UserID string `json:"userId"`
	Points int64  `json:"points"`
	Reason string `json:"reason,omitempty"`
}

func awardPointsHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/awards")
		defer span.End()

		var body awardBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		acc, err := svc.ResolveAccount(ctx, body.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		res, err := svc.AwardPoints(ctx, domain.AwardRequest{
			AccountID:    acc.ID,
			Amount:       body.Points,
			Reason:       body.Reason,
			AuthorizedBy: SubjectIDFromContext(ctx),
			Category:     body.Category,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func recordPurchaseHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/purchases")
		defer span.End()

		var body purchaseBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		acc, err := svc.ResolveAccount(ctx, body.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		res, err := svc.RecordPurchase(ctx, domain.PurchaseRequest{
			AccountID:   acc.ID,
			AmountSpent: body.Amount,
			OrderNumber: body.OrderNumber,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func adminRedeemHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/redemptions")
		defer span.End()

		var body redemptionBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		acc, err := svc.ResolveAccount(ctx, body.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		res, err := svc.RedeemPoints(ctx, domain.RedeemRequest{
			AccountID: acc.ID,
			Amount:    body.Points,
			Reason:    body.Reason,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func expirePointsHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/expire")
		defer span.End()

		report, err := svc.ExpireInactive(ctx, svc.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
