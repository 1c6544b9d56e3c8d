package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/handler"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/cache"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/client"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/memory"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/observability"
	"github.com/BnaryBlade/loyalty-hive-core/internal/service"
)

type testServer struct {
	router http.Handler
	svc    *service.LoyaltyService
	auth   *service.AuthService
}

func newTestServer(t *testing.T, opts handler.Options) *testServer {
	t.Helper()

	store := memory.New()
	metrics := observability.NewMetrics()
	dash := cache.New[*domain.DashboardStats](time.Minute)
	t.Cleanup(dash.Close)

	svc := service.NewLoyaltyService(store, domain.DefaultProgram(), client.NopPublisher{}, dash, metrics, zap.NewNop())
	auth := service.NewAuthService(store, svc, "router-secret", time.Hour, bcrypt.MinCost, zap.NewNop())

	ctx := context.Background()
	_, err := auth.CreateAdmin(ctx, "admin@example.com", "admin-password", "Admin", domain.RoleAdmin)
	require.NoError(t, err)
	_, err = auth.CreateAdmin(ctx, "manager@example.com", "manager-password", "Manager", domain.RoleManager)
	require.NoError(t, err)

	return &testServer{
		router: handler.NewRouter(svc, auth, metrics, zap.NewNop(), opts),
		svc:    svc,
		auth:   auth,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email string) domain.LoginResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": "super-secret", "firstName": "Jane", "lastName": "Doe",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp domain.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *testServer) adminToken(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/admin/auth/login", "", domain.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- Operational endpoints ---

func TestHealthz(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", decode[domain.HealthStatus](t, rec).Status)
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	rec := s.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	s.do(t, http.MethodGet, "/v1/levels", "", nil)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "loyalty_operation_duration_seconds")
}

func TestLevels(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	rec := s.do(t, http.MethodGet, "/v1/levels", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	levels := decode[[]domain.LoyaltyLevel](t, rec)
	require.Len(t, levels, 4)
	require.Equal(t, "bronze", levels[0].ID)
	require.Equal(t, int64(2000), levels[3].MinPoints)
}

// --- Customer flows ---

func TestRegisterThenStatus(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	login := s.register(t, "jane@example.com")

	rec := s.do(t, http.MethodGet, "/v1/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	status := decode[domain.AccountStatus](t, rec)
	require.Equal(t, int64(100), status.Account.TotalPoints)
	require.Equal(t, "bronze", status.Level.ID)
	require.Equal(t, int64(400), status.PointsNeeded)
}

func TestMe_RequiresCustomerToken(t *testing.T) {
	s := newTestServer(t, handler.Options{})

	rec := s.do(t, http.MethodGet, "/v1/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/me", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	admin := s.adminToken(t, "admin@example.com", "admin-password")
	rec = s.do(t, http.MethodGet, "/v1/me", admin, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateProfile_RejectsUnknownFields(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	login := s.register(t, "fields@example.com")

	rec := s.do(t, http.MethodPut, "/v1/me", login.AccessToken, map[string]any{"totalPoints": 99999})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/v1/me", login.AccessToken, map[string]any{"phone": "+1 555 0101"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "+1 555 0101", decode[domain.Account](t, rec).Phone)
}

func TestRedeem_InsufficientBalance(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	login := s.register(t, "poor@example.com")

	rec := s.do(t, http.MethodPost, "/v1/me/redeem", login.AccessToken, map[string]any{"points": 500})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/me/redeem", login.AccessToken, map[string]any{"points": 10})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedeem_IdempotencyKeyReplays(t *testing.T) {
	idem := cache.New[handler.StoredResponse](time.Hour)
	t.Cleanup(idem.Close)
	s := newTestServer(t, handler.Options{Idempotency: idem})
	login := s.register(t, "twice@example.com")

	first := s.do(t, http.MethodPost, "/v1/me/redeem", login.AccessToken, map[string]any{"points": 100}, "Idempotency-Key", "redeem-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := s.do(t, http.MethodPost, "/v1/me/redeem", login.AccessToken, map[string]any{"points": 100}, "Idempotency-Key", "redeem-1")
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, first.Body.String(), second.Body.String())

	acc, err := s.svc.GetAccount(context.Background(), login.SubjectID)
	require.NoError(t, err)
	require.Equal(t, int64(0), acc.TotalPoints)
}

func TestLedgerPaging(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	login := s.register(t, "ledger@example.com")
	admin := s.adminToken(t, "admin@example.com", "admin-password")

	for i := 0; i < 3; i++ {
		rec := s.do(t, http.MethodPost, "/v1/admin/awards", admin, map[string]any{
			"userId": login.SubjectID, "points": 10, "reason": "goodwill",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	type page struct {
		Entries   []domain.LedgerEntry `json:"entries"`
		NextAfter int64                `json:"nextAfter"`
		HasMore   bool                 `json:"hasMore"`
	}

	rec := s.do(t, http.MethodGet, "/v1/me/ledger?limit=2", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p1 := decode[page](t, rec)
	require.Len(t, p1.Entries, 2)
	require.True(t, p1.HasMore)
	require.Equal(t, domain.CategoryBonus, p1.Entries[0].Category)

	rec = s.do(t, http.MethodGet, "/v1/me/ledger?limit=2&after="+jsonInt(p1.NextAfter), login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p2 := decode[page](t, rec)
	require.Len(t, p2.Entries, 2)
	require.False(t, p2.HasMore)

	rec = s.do(t, http.MethodGet, "/v1/me/ledger?after=-1", login.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// --- Admin flows ---

func TestAdminAward_ByEmail(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	login := s.register(t, "award@example.com")
	admin := s.adminToken(t, "admin@example.com", "admin-password")

	rec := s.do(t, http.MethodPost, "/v1/admin/awards", admin, map[string]any{
		"userId": "AWARD@example.com", "points": 900, "reason": "Service recovery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := decode[domain.MutationResult](t, rec)
	require.Equal(t, login.SubjectID, res.Account.ID)
	require.Equal(t, int64(1000), res.Account.TotalPoints)
	require.Equal(t, "gold", res.Level.ID)
}

func TestAdminAward_ManagerForbidden(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	login := s.register(t, "m@example.com")
	manager := s.adminToken(t, "manager@example.com", "manager-password")

	rec := s.do(t, http.MethodPost, "/v1/admin/awards", manager, map[string]any{
		"userId": login.SubjectID, "points": 5, "reason": "nope",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/admin/dashboard", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutes_RejectCustomerToken(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	login := s.register(t, "sneaky@example.com")

	rec := s.do(t, http.MethodGet, "/v1/admin/dashboard", login.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminPurchase(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	login := s.register(t, "shopper@example.com")
	admin := s.adminToken(t, "admin@example.com", "admin-password")

	rec := s.do(t, http.MethodPost, "/v1/admin/purchases", admin, map[string]any{
		"userId": login.SubjectID, "amount": "85.50", "orderNumber": "79927398713",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[domain.MutationResult](t, rec)
	require.Equal(t, int64(85), res.Entry.Delta)
	require.Equal(t, int64(185), res.Account.TotalPoints)

	rec = s.do(t, http.MethodPost, "/v1/admin/purchases", admin, map[string]any{
		"userId": login.SubjectID, "amount": "-1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/admin/purchases", admin, map[string]any{
		"userId": "missing@example.com", "amount": "10",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDeactivateBlocksMutations(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	login := s.register(t, "off@example.com")
	admin := s.adminToken(t, "admin@example.com", "admin-password")

	rec := s.do(t, http.MethodPost, "/v1/admin/accounts/"+login.SubjectID+"/deactivate", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/me/redeem", login.AccessToken, map[string]any{"points": 100})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/admin/accounts/"+login.SubjectID+"/verify", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[domain.ReplayResult](t, rec).Consistent)
}

func TestAdminListAccounts(t *testing.T) {
	s := newTestServer(t, handler.Options{})
	s.register(t, "one@example.com")
	s.register(t, "two@example.com")
	admin := s.adminToken(t, "admin@example.com", "admin-password")

	rec := s.do(t, http.MethodGet, "/v1/admin/accounts?page_size=1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[domain.ListResponse[domain.Account]](t, rec)
	require.Len(t, list.Data, 1)
	require.Equal(t, 2, list.Total)
	require.True(t, list.HasMore)

	rec = s.do(t, http.MethodGet, "/v1/admin/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, decode[domain.DashboardStats](t, rec).TotalUsers)
}

// --- Rate limiting ---

func TestLoginRateLimited(t *testing.T) {
	s := newTestServer(t, handler.Options{LoginLimit: handler.RateLimit{RequestsPerMinute: 1, Burst: 2}})

	body := domain.LoginRequest{Email: "nobody@example.com", Password: "wrong-password"}
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/v1/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/v1/auth/login", "", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

// --- CORS ---

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, handler.Options{AllowedOrigins: []string{"https://shop.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/me/redeem", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	other := s.do(t, http.MethodGet, "/v1/levels", "", nil, "Origin", "https://evil.example.com")
	require.Equal(t, http.StatusOK, other.Code)
	require.Empty(t, other.Header().Get("Access-Control-Allow-Origin"))
}
