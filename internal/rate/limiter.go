package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	// Window and MaxRequests define the fixed-window budget enforced by
	// [Limiter.Allow].
	Window      time.Duration
	MaxRequests int

	// Login failure throttling. Counters are keyed by identifier and,
	// when EnableIPThrottle is set, additionally by client IP.
	EnableIPThrottle   bool
	MaxLoginFailures   int
	LoginFailureWindow time.Duration
}

// Decision is the outcome of a single [Limiter.Allow] call.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the current window expires. Only
	// meaningful when Allowed is false; zero when Redis reports no TTL.
	RetryAfter time.Duration
}

// Limiter enforces fixed-window rate limits backed by Redis counters.
// Window expiry is delegated entirely to Redis key TTLs; the limiter never
// tracks window boundaries itself.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// allowScript increments and reads the window counter in one atomic step.
// A request over budget is rejected without incrementing the counter and
// without touching the TTL, so a burst of rejected requests cannot extend
// the lockout.
var allowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= limit then
	return {0, 0, redis.call("PTTL", KEYS[1])}
end
count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], window)
end
return {1, limit - count, redis.call("PTTL", KEYS[1])}
`)

// Allow consumes one request from the fixed-window budget for key.
// Concurrent callers observe a single consistent counter: the
// increment-and-read happens atomically inside Redis.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	return l.AllowN(ctx, key, l.config.MaxRequests, l.config.Window)
}

// AllowN is [Limiter.Allow] with a caller-supplied budget, for flows whose
// limits differ from the global window (registration, exports).
func (l *Limiter) AllowN(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	raw, err := allowScript.Run(ctx, l.redis,
		[]string{windowKey(key)},
		limit,
		window.Milliseconds(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 3 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	allowed, _ := reply[0].(int64)
	remaining, _ := reply[1].(int64)
	pttl, _ := reply[2].(int64)

	d := Decision{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
	}
	if pttl > 0 {
		d.RetryAfter = time.Duration(pttl) * time.Millisecond
	}
	return d, nil
}

// CheckLogin reports whether the identifier+IP pair is still within the
// failed-login budget. It never increments; call [Limiter.RecordLoginFailure]
// after a confirmed failure.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if err := l.checkCounter(ctx, loginUserKey(identifier), l.config.MaxLoginFailures); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginFailures); err != nil {
			return err
		}
	}

	return nil
}

// RecordLoginFailure records a failed login attempt for the identifier+IP pair.
func (l *Limiter) RecordLoginFailure(ctx context.Context, identifier, ip string) error {
	count, err := l.incrementWithTTL(ctx, loginUserKey(identifier), l.config.LoginFailureWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginFailures) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginFailureWindow)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginFailures) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetLogin clears the failed-login counter for the identifier+IP pair.
// Called after successful login or password change.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	keys := []string{loginUserKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// LoginRetryAfter returns the remaining cooldown for an identifier's
// failed-login counter. Missing keys return zero and do not reveal
// account existence.
func (l *Limiter) LoginRetryAfter(ctx context.Context, identifier string) (time.Duration, error) {
	ttl, err := l.redis.PTTL(ctx, loginUserKey(identifier)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func windowKey(key string) string    { return "rl:" + key }
func loginUserKey(id string) string  { return "lf:" + id }
func loginIPKey(ip string) string    { return "lfi:" + ip }
