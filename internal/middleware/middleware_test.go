package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mpg-server/internal/config"

	"github.com/alicebob/miniredis/v2"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(method, target, body string) (*beegocontext.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := beegocontext.NewContext()
	ctx.Reset(rec, req)
	return ctx, rec
}

func TestCheckRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, checkRateLimit(ctx, rdb, "account", "1", 3, 60), "request %d", i)
	}
	assert.False(t, checkRateLimit(ctx, rdb, "account", "1", 3, 60))
	// 其他账户不受影响
	assert.True(t, checkRateLimit(ctx, rdb, "account", "2", 3, 60))
	assert.True(t, checkRateLimit(ctx, nil, "account", "1", 1, 60))
}

func TestRequestIDFilter(t *testing.T) {
	ctx, rec := newContext(http.MethodGet, "/api/rounds/roulette/current", "")
	RequestIDFilter(ctx)
	id := rec.Header().Get("X-Request-Id")
	require.NotEmpty(t, id)
	assert.Equal(t, id, ctx.Input.GetData("trace_id"))

	ctx, rec = newContext(http.MethodGet, "/", "")
	ctx.Request.Header.Set("X-Request-Id", "abc")
	RequestIDFilter(ctx)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
}

func TestAccountFromBody(t *testing.T) {
	ctx, _ := newContext(http.MethodPost, "/api/rounds/1/action", "")
	ctx.Request.Header.Set("Content-Type", "application/json")
	ctx.Input.RequestBody = []byte(`{"account_id":42,"action":"bet"}`)
	assert.Equal(t, int64(42), accountFromBody(ctx))

	ctx.Input.RequestBody = []byte(`{`)
	assert.Equal(t, int64(0), accountFromBody(ctx))
}

func TestGetClientIP(t *testing.T) {
	ctx, _ := newContext(http.MethodGet, "/", "")
	ctx.Request.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	assert.Equal(t, "10.0.0.1", getClientIP(ctx))
	ctx.Request.Header.Set("X-Real-IP", "10.0.0.9")
	assert.Equal(t, "10.0.0.9", getClientIP(ctx))
}

func TestCORSFilter(t *testing.T) {
	cfg := &config.Config{}
	cfg.CORS.Enabled = true
	cfg.CORS.AllowedOrigins = []string{"https://play.example.com"}
	cfg.ApplyDefaults()
	prev := config.GetCurrent()
	config.SetCurrent(cfg)
	t.Cleanup(func() { config.SetCurrent(prev) })

	ctx, rec := newContext(http.MethodGet, "/", "")
	ctx.Request.Header.Set("Origin", "https://play.example.com")
	CORSFilter(ctx)
	assert.Equal(t, "https://play.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	ctx, rec = newContext(http.MethodGet, "/", "")
	ctx.Request.Header.Set("Origin", "https://evil.example.com")
	CORSFilter(ctx)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
