package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/service"
)

// ============================================================
// Admin accounts — /v1/admin/accounts
// ============================================================

func listAccountsHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/accounts")
		defer span.End()

		page, pageSize := parsePagination(r)
		query := strings.TrimSpace(r.URL.Query().Get("q"))

		accounts, total, err := svc.ListAccounts(ctx, domain.AccountFilter{
			Query:  query,
			Limit:  pageSize,
			Offset: (page - 1) * pageSize,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if accounts == nil {
			accounts = []domain.Account{}
		}

		// total counts every account; with a search it is an upper bound
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Account]{
			Data:     accounts,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
			HasMore:  len(accounts) == pageSize && page*pageSize < total,
		})
	}
}

func getAccountHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/accounts/{accountId}")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		status, err := svc.GetAccountStatus(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func getAccountLedgerHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/accounts/{accountId}/ledger")
		defer span.End()

		writeLedgerPage(w, r.WithContext(ctx), svc, chi.URLParam(r, "accountId"), logger)
	}
}

func verifyBalanceHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/accounts/{accountId}/verify")
		defer span.End()

		res, err := svc.VerifyBalance(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func setActiveHandler(svc *service.LoyaltyService, active bool, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/accounts/{accountId}/activation")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(
			attribute.String("account.id", accountID),
			attribute.Bool("active", active),
		)

		acc, err := svc.SetActive(ctx, accountID, active)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("admin changed account activation",
			zap.String("admin_id", SubjectIDFromContext(ctx)),
			zap.String("account_id", accountID),
			zap.Bool("active", active),
		)
		writeJSON(w, http.StatusOK, acc)
	}
}
