package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	authcore "github.com/housekg/authcore"
	"github.com/housekg/authcore/password"
	"github.com/redis/go-redis/v9"
)

type staticUserProvider struct {
	record authcore.UserRecord
}

func (p *staticUserProvider) GetUserByIdentifier(ctx context.Context, identifier string) (authcore.UserRecord, error) {
	if identifier != p.record.Username {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	return p.record, nil
}

func (p *staticUserProvider) GetUserByID(ctx context.Context, userID string) (authcore.UserRecord, error) {
	if userID != p.record.UserID {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	return p.record, nil
}

func (p *staticUserProvider) CreateUser(ctx context.Context, input authcore.CreateUserInput) (authcore.UserRecord, error) {
	return authcore.UserRecord{}, authcore.ErrProviderDuplicateIdentifier
}

func (p *staticUserProvider) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return nil
}

func middlewareTestConfig() authcore.Config {
	return authcore.Config{
		JWT: authcore.JWTConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    time.Hour,
			SigningMethod: "hs256",
			PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		},
		Session: authcore.SessionConfig{RedisPrefix: "as"},
		Password: authcore.PasswordConfig{
			Memory:      8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		RateLimit: authcore.RateLimitConfig{
			Window:             time.Minute,
			MaxRequests:        60,
			MaxLoginFailures:   5,
			LoginFailureWindow: time.Minute,
		},
	}
}

func hashPassword(t *testing.T, pass string) string {
	t.Helper()

	cfg := middlewareTestConfig()
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	hash, err := hasher.Hash(pass)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return hash
}

func newMiddlewareEngine(t *testing.T, mutate func(*authcore.Config)) (*authcore.Engine, string, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := middlewareTestConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(&staticUserProvider{record: authcore.UserRecord{
			UserID:       "u1",
			Username:     "alice",
			PasswordHash: hashPassword(t, "correct-password-123"),
		}}).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	access, _, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		mr.Close()
		t.Fatalf("login failed: %v", err)
	}

	return engine, access, func() { mr.Close() }
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardAllowsValidBearer(t *testing.T) {
	engine, access, done := newMiddlewareEngine(t, nil)
	defer done()

	var got *authcore.AuthResult
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok {
			t.Fatal("expected auth result in context")
		}
		got = res
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.UserID != "u1" {
		t.Fatalf("expected validated user u1, got %+v", got)
	}
}

func TestGuardRejectsMissingAndMalformedAuth(t *testing.T) {
	engine, _, done := newMiddlewareEngine(t, nil)
	defer done()

	handler := Guard(engine)(okHandler())

	for _, header := range []string{"", "Bearer ", "Basic dXNlcg==", "garbage-token"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestGuardRejectsInvalidToken(t *testing.T) {
	engine, _, done := newMiddlewareEngine(t, nil)
	defer done()

	handler := Guard(engine)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRateLimitDeniesOverBudget(t *testing.T) {
	engine, _, done := newMiddlewareEngine(t, func(cfg *authcore.Config) {
		cfg.RateLimit.MaxRequests = 2
		cfg.RateLimit.Window = time.Minute
	})
	defer done()

	handler := RateLimit(engine, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:51000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:51000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on denial")
	}
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	engine, _, done := newMiddlewareEngine(t, func(cfg *authcore.Config) {
		cfg.RateLimit.MaxRequests = 1
		cfg.RateLimit.Window = time.Minute
	})
	defer done()

	handler := RateLimit(engine, nil)(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "192.0.2.1:51000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for first client, got %d", rec.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "192.0.2.99:51000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for distinct client, got %d", rec.Code)
	}
}

func TestRateLimitFailsClosedOnLimiterOutage(t *testing.T) {
	engine, _, done := newMiddlewareEngine(t, nil)
	done()

	handler := RateLimit(engine, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:51000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when limiter backend is down, got %d", rec.Code)
	}
}
