package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/floor"
	"github.com/iliyamo/floor-allocation/internal/utils"
)

func TestJWTAuthStoresClaims(t *testing.T) {
	tok, err := utils.NewAccessToken("k", "approvals", utils.RoleAdmin, 5)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotSub, gotRole any
	h := JWTAuth("k")(RequireRole(utils.RoleAdmin)(func(c echo.Context) error {
		gotSub, gotRole = c.Get(CtxSubject), c.Get(CtxRole)
		assert.Equal(t, "approvals", subject(c))
		return c.NoContent(http.StatusNoContent)
	}))
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "approvals", gotSub)
	assert.Equal(t, utils.RoleAdmin, gotRole)
}

func TestSubjectDefaultsToAnon(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, "anon", subject(c))
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestCacheDisabledWithoutRedis(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, Prefix: "floorcache"}
	inv := NewCacheInvalidator(cfg, nil, nil)
	assert.Nil(t, inv)

	// A nil invalidator is a valid notifier.
	var n floor.Notifier = inv
	n.Notify(context.Background(), floor.Event{Type: floor.EventAllocated})
	removed, err := inv.Purge(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)

	called := false
	h := NewRedisCache(cfg, nil)(func(c echo.Context) error { called = true; return nil })
	require.NoError(t, h(echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/v1/floor", nil), httptest.NewRecorder())))
	assert.True(t, called)
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/allocations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/admin/allocations")
	c.Set(CtxSubject, "ops")

	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
	assert.Equal(t, "rl:user:ops", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
	assert.Equal(t, "rl:ip:10.0.0.1:user:ops:route:POST /v1/admin/allocations",
		buildRateKey(config.RateLimitConfig{Prefix: "rl"}, c))
}
