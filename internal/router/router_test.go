package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/database"
	"github.com/iliyamo/floor-allocation/internal/floor"
	"github.com/iliyamo/floor-allocation/internal/handler"
	"github.com/iliyamo/floor-allocation/internal/router"
	"github.com/iliyamo/floor-allocation/internal/utils"
)

const secret = "test-secret"

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "floor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))

	reg := prometheus.NewRegistry()
	cfg := config.DefaultFloor()
	svc := floor.NewService(db, database.SQLite, cfg, floor.WithMetrics(floor.NewMetrics(reg)))
	cells, err := floor.GenerateGrid(cfg, map[string]int{"F": 2})
	require.NoError(t, err)
	require.NoError(t, svc.Repo().SeedBulk(context.Background(), cells))

	e := echo.New()
	fh := handler.NewFloorHandler(svc)
	router.RegisterRoutes(e)
	router.RegisterPublic(e, fh, passThrough)
	router.RegisterAdmin(e, fh, secret, passThrough)
	router.RegisterMetrics(e, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return e
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "ops", role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func request(e *echo.Echo, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutesNeedNoToken(t *testing.T) {
	e := newServer(t)
	for _, path := range []string{"/healthz", "/v1/floor", "/v1/floor/stats", "/v1/floor/packages"} {
		rec := request(e, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	e := newServer(t)
	body := `{"kind":"pledge","ref":"P-1","package_id":"full"}`

	rec := request(e, http.MethodPost, "/v1/admin/allocations", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(e, http.MethodPost, "/v1/admin/allocations", "Bearer not-a-jwt", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(e, http.MethodPost, "/v1/admin/allocations", bearer(t, "VIEWER"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	other, err := utils.NewAccessToken("other-secret", "ops", utils.RoleAdmin, 5)
	require.NoError(t, err)
	rec = request(e, http.MethodPost, "/v1/admin/allocations", "Bearer "+other.Token, body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(e, http.MethodPost, "/v1/admin/allocations", bearer(t, utils.RoleAdmin), body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	e := newServer(t)
	rec := request(e, http.MethodPost, "/v1/admin/allocations", bearer(t, utils.RoleAdmin), `{"kind":"pledge","ref":"P-1","amount_pence":40000}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = request(e, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `floor_operations_total{op="allocate",outcome="ok"} 1`)
}
