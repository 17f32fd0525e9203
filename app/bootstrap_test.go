package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cayman031/study-with-me/internal/auth"
)

func memoryConfig() Config {
	return Config{
		AppEnv:                "test",
		LogLevel:              "error",
		JWTSecret:             testJWTSecret,
		AccessTokenTTL:        15 * time.Minute,
		RefreshTokenTTL:       14 * 24 * time.Hour,
		Throttle:              auth.DefaultThrottlePolicy(),
		LoginRateLimitMax:     100,
		LoginRateLimitWindow:  time.Minute,
		PasswordHasher:        "bcrypt",
		BcryptCost:            4,
		CronSecret:            "cron-secret",
		LoginAttemptRetention: 24 * time.Hour,
		CleanupBatchSize:      100,
		ShutdownTimeout:       time.Second,
	}
}

func serve(h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func exerciseAuthFlow(t *testing.T, h http.Handler) {
	t.Helper()

	rec := serve(h, http.MethodPost, "/auth/signup", `{"email":"kim@example.com","password":"password1","name":"Kim"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))

	rec = serve(h, http.MethodPost, "/auth/login", `{"email":"kim@example.com","password":"password1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	rec = serve(h, http.MethodGet, "/members/me", "", body.Data.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodPost, "/auth/logout", "", body.Data.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "/members/me", "", body.Data.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuildInMemory(t *testing.T) {
	runtime, err := Build(t.Context(), memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = runtime.Close() })

	exerciseAuthFlow(t, runtime.Handler)

	rec := serve(runtime.Handler, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(runtime.Handler, http.MethodPost, "/internal/maintenance/cleanup", "", "cron-secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(runtime.Handler, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "studywithme_auth_events_total")
	assert.Contains(t, rec.Body.String(), `route="POST /auth/login"`)
}

func TestBuildWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := memoryConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	runtime, err := Build(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = runtime.Close() })

	exerciseAuthFlow(t, runtime.Handler)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "swm:auth:revoked:"))

	rec := serve(runtime.Handler, http.MethodPost, "/internal/maintenance/cleanup", "", "cron-secret")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, mr.Keys(), 1)
}

func TestBuildRejectsUnreachableRedis(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisURL = "redis://127.0.0.1:1"

	_, err := Build(t.Context(), cfg)
	assert.Error(t, err)
}
