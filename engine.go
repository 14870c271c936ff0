package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/housekg/authcore/internal"
	"github.com/housekg/authcore/internal/rate"
	"github.com/housekg/authcore/jwt"
	"github.com/housekg/authcore/password"
	"github.com/housekg/authcore/session"
	"github.com/redis/go-redis/v9"
)

// Engine is the authentication orchestrator. It composes the password
// hasher, token codec, session store, and rate limiter into the login,
// refresh, logout, and validation flows.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config         Config
	sessionStore   *session.Store
	rateLimiter    *rate.Limiter
	metrics        *Metrics
	passwordHasher *password.Hasher
	jwtManager     *jwt.Manager
	userProvider   UserProvider

	// decoyHash is verified against when the identifier is unknown, so the
	// unknown-user path costs a full hash check like the known-user path.
	decoyHash string
}

// RateDecision is the outcome of one [Engine.AllowRequest] call.
type RateDecision = rate.Decision

// MetricsSnapshot returns a point-in-time copy of the engine's metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.TakeSnapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login verifies the identifier+password pair and, on success, creates a
// session and returns an access token and an opaque refresh token.
//
// Unknown identifiers and wrong passwords both return
// [ErrInvalidCredentials]; transient backend failures return
// [ErrStoreUnavailable] and are never reported as a credential verdict.
func (e *Engine) Login(ctx context.Context, identifier, pass string) (string, string, error) {
	if e == nil || e.passwordHasher == nil || e.userProvider == nil {
		return "", "", ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, identifier, ip); err != nil {
			if errors.Is(err, rate.ErrRedisUnavailable) {
				e.metricInc(MetricStoreUnavailable)
				return "", "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			e.metricInc(MetricLoginRateLimited)
			return "", "", ErrLoginRateLimited
		}
	}

	if identifier == "" || pass == "" {
		return "", "", e.failLogin(ctx, identifier, ip)
	}

	user, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricStoreUnavailable)
			return "", "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		// Burn a full verification so the unknown-user path is not
		// observably faster than a wrong password.
		e.passwordHasher.Verify(pass, e.decoyHash)
		return "", "", e.failLogin(ctx, identifier, ip)
	}

	if !e.passwordHasher.Verify(pass, user.PasswordHash) {
		return "", "", e.failLogin(ctx, identifier, ip)
	}

	if e.config.Password.UpgradeOnLogin {
		if needsRehash, err := e.passwordHasher.NeedsRehash(user.PasswordHash); err == nil && needsRehash {
			if upgradedHash, err := e.passwordHasher.Hash(pass); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := e.userProvider.UpdatePasswordHash(ctx, user.UserID, upgradedHash); err != nil {
					log.Print("authcore: password hash upgrade update failed")
				}
			} else {
				log.Print("authcore: password hash upgrade generation failed")
			}
		}
	}
	pass = ""

	access, refresh, err := e.issueSessionTokens(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return "", "", err
	}

	if e.rateLimiter != nil {
		// Limiter reset is best-effort; the login already succeeded.
		if err := e.rateLimiter.ResetLogin(ctx, identifier, ip); err != nil {
			log.Print("authcore: login limiter reset failed")
		}
	}

	e.metricInc(MetricLoginSuccess)

	return access, refresh, nil
}

// failLogin records a failed attempt against the throttle and returns the
// uniform credential error.
func (e *Engine) failLogin(ctx context.Context, identifier, ip string) error {
	if e.rateLimiter != nil && identifier != "" {
		if err := e.rateLimiter.RecordLoginFailure(ctx, identifier, ip); err != nil {
			if errors.Is(err, rate.ErrRedisUnavailable) {
				e.metricInc(MetricStoreUnavailable)
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			e.metricInc(MetricLoginRateLimited)
			return ErrLoginRateLimited
		}
	}
	e.metricInc(MetricLoginFailure)
	return ErrInvalidCredentials
}

// Refresh consumes a refresh token and returns a fresh access token plus a
// replacement refresh token. The presented token is invalidated atomically:
// under concurrent presentation of the same token exactly one caller wins.
//
// Presenting a superseded token returns [ErrRefreshReuse] and revokes the
// whole session.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if e == nil || e.jwtManager == nil {
		return "", "", ErrEngineNotReady
	}

	sessionID, providedSecret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", ErrRefreshInvalid
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	sess, err := e.sessionStore.RotateRefreshHash(
		ctx,
		sessionID,
		internal.HashRefreshSecret(providedSecret),
		internal.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			e.metricInc(MetricRefreshReuseDetected)
			e.metricInc(MetricSessionInvalidated)
			return "", "", ErrRefreshReuse
		case errors.Is(err, redis.Nil):
			e.metricInc(MetricRefreshFailure)
			return "", "", ErrRefreshInvalid
		case errors.Is(err, session.ErrRedisUnavailable):
			e.metricInc(MetricStoreUnavailable)
			return "", "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		default:
			e.metricInc(MetricRefreshFailure)
			return "", "", err
		}
	}

	access, err := e.issueAccessToken(sess)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	refresh, err := internal.EncodeRefreshToken(sess.SessionID, nextSecret)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	e.metricInc(MetricRefreshSuccess)

	return access, refresh, nil
}

// Validate verifies an access token and returns the identity it asserts.
// Validation is purely cryptographic: no store lookup is performed, so a
// token stays valid until its expiry even after logout.
func (e *Engine) Validate(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	_ = ctx

	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	claims, err := e.jwtManager.Verify(tokenStr)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &AuthResult{
		UserID:    claims.UID,
		SessionID: claims.SID,
	}, nil
}

// Logout revokes a single session. Revoking a session that does not exist
// is a no-op, not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.Delete(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			e.metricInc(MetricStoreUnavailable)
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return err
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	return nil
}

// LogoutByRefreshToken revokes the session a refresh token belongs to.
// The token itself is not verified against the stored hash: possession of
// a well-formed token is enough to tear its session down.
func (e *Engine) LogoutByRefreshToken(ctx context.Context, refreshToken string) error {
	sessionID, _, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrRefreshInvalid
	}
	return e.Logout(ctx, sessionID)
}

// LogoutByAccessToken revokes the session named in a verified access token.
func (e *Engine) LogoutByAccessToken(ctx context.Context, tokenStr string) error {
	if e == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.Verify(tokenStr)
	if err != nil {
		return ErrTokenInvalid
	}

	return e.Logout(ctx, claims.SID)
}

// LogoutAll revokes every session belonging to a user.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.DeleteAllForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			e.metricInc(MetricStoreUnavailable)
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.metricInc(MetricSessionInvalidated)
	return nil
}

// AllowRequest consumes one request from the fixed-window budget for key.
// Keys are caller-defined (client IP, API key, route+IP).
func (e *Engine) AllowRequest(ctx context.Context, key string) (RateDecision, error) {
	if e == nil || e.rateLimiter == nil {
		return RateDecision{}, ErrEngineNotReady
	}

	d, err := e.rateLimiter.Allow(ctx, key)
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		return RateDecision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !d.Allowed {
		e.metricInc(MetricRateLimitHit)
	}
	return d, nil
}

// Ping reports Redis availability and round-trip latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}

	latency, err := e.sessionStore.Ping(ctx)
	if err != nil {
		return latency, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return latency, nil
}

// issueSessionTokens creates a session for the user and mints the
// access+refresh token pair.
func (e *Engine) issueSessionTokens(ctx context.Context, user UserRecord) (string, string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", "", err
	}
	sessionID := sid.String()

	refreshSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	lifetime := e.sessionLifetime()

	sess := &session.Session{
		SessionID:   sessionID,
		UserID:      user.UserID,
		RefreshHash: internal.HashRefreshSecret(refreshSecret),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(lifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, lifetime); err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			e.metricInc(MetricStoreUnavailable)
			return "", "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return "", "", err
	}
	e.metricInc(MetricSessionCreated)

	access, err := e.issueAccessToken(sess)
	if err != nil {
		return "", "", err
	}

	refresh, err := internal.EncodeRefreshToken(sessionID, refreshSecret)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

func (e *Engine) issueAccessToken(sess *session.Session) (string, error) {
	token, _, err := e.jwtManager.Issue(sess.UserID, sess.SessionID)
	return token, err
}

func (e *Engine) sessionLifetime() time.Duration {
	return e.config.JWT.RefreshTTL
}
