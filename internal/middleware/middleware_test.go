package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/config"
)

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "booking:cache",
		MaxBodyBytes: 1 << 20,
	}
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestEncodeDecodePayload(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	raw, err := encodePayload(http.StatusOK, hdr, []byte(`[1]`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(raw)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `[1]`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func moviesKey(t *testing.T, cfg config.CacheConfig, epoch string) string {
	t.Helper()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/movies", nil), httptest.NewRecorder())
	c.SetPath("/movies")
	return cacheKeyFrom(cfg, c, epoch)
}

// storedAs matches a SETEX on key whose payload carries wantBody.
func storedAs(key, wantBody string) redismock.CustomMatch {
	return func(_, actual []interface{}) error {
		if actual[1] != key {
			return fmt.Errorf("setex key %v, want %s", actual[1], key)
		}
		raw, ok := actual[3].([]byte)
		if !ok {
			return fmt.Errorf("setex value is %T", actual[3])
		}
		status, hdr, body, ok := decodePayload(raw)
		if !ok || status != http.StatusOK || string(body) != wantBody || hdr.Get("X-Cache") != "MISS" {
			return fmt.Errorf("unexpected payload status=%d body=%q", status, body)
		}
		return nil
	}
}

func TestRedisCache_Hit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := cacheConfig()

	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`[{"id":"m1"}]`))
	require.NoError(t, err)
	mock.ExpectGet(epochKey(cfg.Prefix)).RedisNil()
	mock.ExpectGet(moviesKey(t, cfg, "0")).SetVal(string(payload))

	called := false
	e := echo.New()
	e.GET("/movies", func(c echo.Context) error {
		called = true
		return c.JSON(http.StatusOK, []string{})
	}, NewRedisCache(cfg, rdb))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies", nil))

	assert.False(t, called, "handler must not run on a cache hit")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, `[{"id":"m1"}]`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_MissStoresResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := cacheConfig()
	key := moviesKey(t, cfg, "4")

	mock.ExpectGet(epochKey(cfg.Prefix)).SetVal("4")
	mock.ExpectGet(key).RedisNil()
	mock.CustomMatch(storedAs(key, "fresh")).ExpectSetEx(key, []byte{}, cfg.TTL).SetVal("OK")

	e := echo.New()
	e.GET("/movies", func(c echo.Context) error {
		return c.String(http.StatusOK, "fresh")
	}, NewRedisCache(cfg, rdb))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies", nil))

	assert.Equal(t, "fresh", rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_ErrorResponsesAreNotStored(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := cacheConfig()

	mock.ExpectGet(epochKey(cfg.Prefix)).RedisNil()
	mock.ExpectGet(moviesKey(t, cfg, "0")).RedisNil()

	e := echo.New()
	e.GET("/movies", func(c echo.Context) error {
		return c.String(http.StatusServiceUnavailable, "later")
	}, NewRedisCache(cfg, rdb))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A response rendered before a purge finishes writing after it.  It must land
// under the retired epoch so the next request renders fresh availability.
func TestRedisCache_PurgeDuringRenderRetiresEntry(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := cacheConfig()
	purger := NewCachePurger(cfg, rdb)
	oldKey, newKey := moviesKey(t, cfg, "3"), moviesKey(t, cfg, "4")
	require.NotEqual(t, oldKey, newKey)

	mock.ExpectGet(epochKey(cfg.Prefix)).SetVal("3")
	mock.ExpectGet(oldKey).RedisNil()
	mock.ExpectIncr(epochKey(cfg.Prefix)).SetVal(4)
	mock.ExpectScan(0, "booking:cache:*", 100).SetVal([]string{epochKey(cfg.Prefix)}, 0)
	mock.CustomMatch(storedAs(oldKey, "A1,A2")).ExpectSetEx(oldKey, []byte{}, cfg.TTL).SetVal("OK")

	mock.ExpectGet(epochKey(cfg.Prefix)).SetVal("4")
	mock.ExpectGet(newKey).RedisNil()
	mock.CustomMatch(storedAs(newKey, "A2")).ExpectSetEx(newKey, []byte{}, cfg.TTL).SetVal("OK")

	seats := "A1,A2"
	e := echo.New()
	e.GET("/movies", func(c echo.Context) error {
		rendered := seats
		if seats == "A1,A2" {
			// A payment commits and purges while this response is in flight.
			seats = "A2"
			require.NoError(t, purger.Invalidate(context.Background()))
		}
		return c.String(http.StatusOK, rendered)
	}, NewRedisCache(cfg, rdb))

	first := httptest.NewRecorder()
	e.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/movies", nil))
	second := httptest.NewRecorder()
	e.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/movies", nil))

	assert.Equal(t, "A1,A2", first.Body.String())
	assert.Equal(t, "A2", second.Body.String())
	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_EpochErrorPassesThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := cacheConfig()
	mock.ExpectGet(epochKey(cfg.Prefix)).SetErr(errors.New("connection refused"))

	e := echo.New()
	e.GET("/movies", func(c echo.Context) error {
		return c.String(http.StatusOK, "fresh")
	}, NewRedisCache(cfg, rdb))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies", nil))

	assert.Equal(t, "fresh", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_DisabledWithoutClient(t *testing.T) {
	e := echo.New()
	e.GET("/movies", func(c echo.Context) error {
		return c.String(http.StatusOK, "fresh")
	}, NewRedisCache(cacheConfig(), nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies", nil))

	assert.Equal(t, "fresh", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCachePurger_Invalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := cacheConfig()

	mock.ExpectIncr("booking:cache:epoch").SetVal(1)
	mock.ExpectScan(0, "booking:cache:*", 100).SetVal([]string{"booking:cache:e0:a", "booking:cache:epoch", "booking:cache:e0:b"}, 7)
	mock.ExpectDel("booking:cache:e0:a", "booking:cache:e0:b").SetVal(2)
	mock.ExpectScan(7, "booking:cache:*", 100).SetVal([]string{}, 0)

	require.NoError(t, NewCachePurger(cfg, rdb).Invalidate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewCachePurger_Disabled(t *testing.T) {
	cfg := cacheConfig()
	cfg.Enabled = false
	rdb, _ := redismock.NewClientMock()

	assert.Nil(t, NewCachePurger(cfg, rdb))
	assert.Nil(t, NewCachePurger(cacheConfig(), nil))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/paying", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/paying")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	assert.Equal(t, "rl:ip:10.0.0.7:route:POST /paying", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.7", buildRateKey(cfg, c))
}

func TestParseBucketResult(t *testing.T) {
	allowed, remaining, retry, ok := parseBucketResult([]interface{}{int64(0), int64(0), int64(1500)})
	require.True(t, ok)
	assert.False(t, allowed)
	assert.Equal(t, int64(0), remaining)
	assert.Equal(t, int64(1500), retry)

	_, _, _, ok = parseBucketResult("nope")
	assert.False(t, ok)
}

func rateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       30,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "booking:rl",
	}
}

// anyArgs ignores the script arguments, which include the current time.
func anyArgs(_, _ []interface{}) error { return nil }

func limitedServer(rdb *redis.Client) (*echo.Echo, *int) {
	calls := 0
	e := echo.New()
	e.POST("/paying", func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusOK)
	}, NewTokenBucket(rateLimitConfig(), rdb, quietLog()))
	return e, &calls
}

func payingRequest() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/paying", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	return req
}

func TestTokenBucket_ExhaustedReturns429(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.CustomMatch(anyArgs).
		ExpectEvalSha(limiterScript.Hash(), []string{"booking:rl:ip:10.0.0.7"}, 0, 0, 0, 0, 0).
		SetVal([]interface{}{int64(0), int64(0), int64(1500)})

	e, calls := limitedServer(rdb)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, payingRequest())

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Zero(t, *calls, "blocked request must not reach the handler")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucket_AllowsWithTokensLeft(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.CustomMatch(anyArgs).
		ExpectEvalSha(limiterScript.Hash(), []string{"booking:rl:ip:10.0.0.7"}, 0, 0, 0, 0, 0).
		SetVal([]interface{}{int64(1), int64(29), int64(0)})

	e, calls := limitedServer(rdb)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, payingRequest())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "29", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, *calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucket_RedisErrorFailsOpen(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.CustomMatch(anyArgs).
		ExpectEvalSha(limiterScript.Hash(), []string{"booking:rl:ip:10.0.0.7"}, 0, 0, 0, 0, 0).
		SetErr(errors.New("connection refused"))

	e, calls := limitedServer(rdb)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, payingRequest())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *calls)
}

func TestTokenBucket_DisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.POST("/paying", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, quietLog()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/paying", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger_PassesErrorsToEcho(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(quietLog()))
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
