package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/service"
)

// ============================================================
// Admin dashboard
// ============================================================

func dashboardHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/dashboard")
		defer span.End()

		stats, err := svc.GetDashboardStats(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func recentUsersHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/users/recent")
		defer span.End()

		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		users, err := svc.RecentUsers(ctx, r.URL.Query().Get("q"), limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}
