package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/service"
)

// ============================================================
// Customer self-service — /v1/me
// ============================================================

func getMyStatusHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me")
		defer span.End()

		accountID := SubjectIDFromContext(ctx)
		span.SetAttributes(attribute.String("account.id", accountID))

		status, err := svc.GetAccountStatus(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func updateMyProfileHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/me")
		defer span.End()

		var upd domain.ProfileUpdate
		if err := decodeJSON(r, &upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		acc, err := svc.UpdateProfile(ctx, SubjectIDFromContext(ctx), upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	}
}

func getMyLedgerHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/ledger")
		defer span.End()

		writeLedgerPage(w, r.WithContext(ctx), svc, SubjectIDFromContext(ctx), logger)
	}
}

func redeemMyPointsHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/redeem")
		defer span.End()

		var req domain.RedeemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.AccountID = SubjectIDFromContext(ctx)

		res, err := svc.RedeemPoints(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// ============================================================
// Ledger pages (shared by /v1/me/ledger and the admin view)
// ============================================================

type ledgerPage struct {
	Entries   []domain.LedgerEntry `json:"entries"`
	NextAfter int64                `json:"nextAfter,omitempty"`
	HasMore   bool                 `json:"hasMore"`
}

func writeLedgerPage(w http.ResponseWriter, r *http.Request, svc *service.LoyaltyService, accountID string, logger *zap.Logger) {
	after, limit, err := parseLedgerCursor(r)
	if err != nil {
		handleServiceError(w, err, logger)
		return
	}

	// one extra entry tells whether another page exists
	entries, err := svc.GetLedger(r.Context(), accountID, after, limit+1)
	if err != nil {
		handleServiceError(w, err, logger)
		return
	}

	page := ledgerPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.HasMore = true
	}
	if page.Entries == nil {
		page.Entries = []domain.LedgerEntry{}
	}
	if n := len(page.Entries); n > 0 {
		page.NextAfter = page.Entries[n-1].Seq
	}
	writeJSON(w, http.StatusOK, page)
}
