package authcore

import (
	"context"

	internalmetrics "github.com/housekg/authcore/internal/metrics"
)

// AuthResult is returned by [Engine.Validate]. It carries the identity
// claims recovered from a verified access token.
type AuthResult struct {
	UserID    string
	SessionID string
}

// UserProvider is the interface callers implement to integrate authcore
// with their user database. It covers credential lookup, account creation,
// and password updates.
//
// Implementations must return [ErrUserNotFound] when no account matches and
// [ErrProviderDuplicateIdentifier] on unique-constraint violations; any
// other error is treated as a transient backend failure.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

// UserRecord is the account record returned by [UserProvider].
//
// UserRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type UserRecord struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    int64
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
}

// RegisterRequest is the input for [Engine.Register]. Username and Password
// are required; Email is optional.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// RegisterResult is returned by [Engine.Register]. It includes the new
// UserID and, when AutoLogin is enabled, access+refresh tokens.
type RegisterResult struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// MetricID identifies a specific counter or histogram bucket in the
// engine's metrics set.
type MetricID = internalmetrics.MetricID

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure counts rejected credential checks.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricLoginRateLimited counts logins rejected by the throttle.
	MetricLoginRateLimited = internalmetrics.MetricLoginRateLimited
	// MetricRefreshSuccess counts successful refresh rotations.
	MetricRefreshSuccess = internalmetrics.MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure = internalmetrics.MetricRefreshFailure
	// MetricRefreshReuseDetected counts refresh replay detections.
	MetricRefreshReuseDetected = internalmetrics.MetricRefreshReuseDetected
	// MetricRateLimitHit counts fixed-window limiter denials.
	MetricRateLimitHit = internalmetrics.MetricRateLimitHit
	// MetricSessionCreated counts sessions persisted at login/register.
	MetricSessionCreated = internalmetrics.MetricSessionCreated
	// MetricSessionInvalidated counts sessions destroyed for any reason.
	MetricSessionInvalidated = internalmetrics.MetricSessionInvalidated
	// MetricLogout counts single-session logouts.
	MetricLogout = internalmetrics.MetricLogout
	// MetricLogoutAll counts whole-user logouts.
	MetricLogoutAll = internalmetrics.MetricLogoutAll
	// MetricRegisterSuccess counts created accounts.
	MetricRegisterSuccess = internalmetrics.MetricRegisterSuccess
	// MetricRegisterDuplicate counts registrations rejected as duplicates.
	MetricRegisterDuplicate = internalmetrics.MetricRegisterDuplicate
	// MetricRegisterRateLimited counts registrations rejected by the throttle.
	MetricRegisterRateLimited = internalmetrics.MetricRegisterRateLimited
	// MetricPasswordChangeSuccess counts completed password changes.
	MetricPasswordChangeSuccess = internalmetrics.MetricPasswordChangeSuccess
	// MetricPasswordChangeInvalidOld counts password changes with a wrong current password.
	MetricPasswordChangeInvalidOld = internalmetrics.MetricPasswordChangeInvalidOld
	// MetricPasswordChangeReuseRejected counts password changes rejected for reuse.
	MetricPasswordChangeReuseRejected = internalmetrics.MetricPasswordChangeReuseRejected
	// MetricStoreUnavailable counts operations aborted on backend failures.
	MetricStoreUnavailable = internalmetrics.MetricStoreUnavailable
	// MetricValidateLatency is the token validation latency histogram.
	MetricValidateLatency = internalmetrics.MetricValidateLatency
)

// Metrics holds the engine's lock-free counters and histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metric values.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] set from config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(cfg.Enabled, cfg.EnableLatencyHistograms)
}
