package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/internal/reservation"
	pkgAuth "github.com/packrescue/packrescue-backend/pkg/auth"
	"github.com/packrescue/packrescue-backend/pkg/config"
	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/enums"
	"github.com/packrescue/packrescue-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubReservationService struct{}

func (stubReservationService) ReserveSingle(context.Context, uuid.UUID, uuid.UUID) (*reservation.ReserveResult, error) {
	return &reservation.ReserveResult{OrderID: uuid.New(), NewStock: 1}, nil
}

func (stubReservationService) CheckoutCart(context.Context, uuid.UUID) (*reservation.CheckoutResult, error) {
	return &reservation.CheckoutResult{OrderID: uuid.New(), Created: true}, nil
}

func (stubReservationService) Cancel(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubReservationService) Redeem(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubReservationService) MarkPaid(context.Context, uuid.UUID) error {
	return nil
}

func (stubReservationService) MarkPaidTx(context.Context, *gorm.DB, uuid.UUID) error {
	return nil
}

func (stubReservationService) GetForUser(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubReservationService) ListForUser(context.Context, uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
	return cfg
}

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	return NewRouter(cfg, logg, stubPinger{}, nil, Services{
		Reservations: stubReservationService{},
	})
}

func mintToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if env := resp.Header().Get("X-PackRescue-Env"); env != "test" {
		t.Fatalf("expected env header test got %q", env)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t, testConfig())

	targets := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/packs/" + uuid.NewString() + "/reserve"},
	}

	for _, target := range targets {
		req := httptest.NewRequest(target.method, target.path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", target.method, target.path, resp.Code)
		}
	}
}

func TestPublicListingSkipsAuth(t *testing.T) {
	router := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/packs", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	// No pack service wired, so the handler reports internal rather than 401.
	if resp.Code == http.StatusUnauthorized {
		t.Fatal("public listing should not require auth")
	}
}

func TestMerchantRoutesRequireRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/merchant/packs", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.UserRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestMockApprovalRouteGated(t *testing.T) {
	cfg := testConfig()
	target := "/api/v1/orders/" + uuid.NewString() + "/payments/approve-mock"

	router := newTestRouter(t, cfg)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.UserRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when mock payments disabled, got %d", resp.Code)
	}

	cfg.FeatureFlags.MockPayments = true
	router = newTestRouter(t, cfg)
	req = httptest.NewRequest(http.MethodPost, target, strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.UserRoleBuyer))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code == http.StatusNotFound {
		t.Fatal("expected mock approval route when flag enabled outside prod")
	}
}
