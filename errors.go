package authcore

import "errors"

var (
	// ErrUnauthorized is returned by Validate for any token that cannot be
	// accepted: malformed, bad signature, or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for unknown identifiers and wrong
	// passwords alike; callers cannot distinguish the two cases.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by UserProvider implementations when no
	// account matches. The engine never surfaces it from Login.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoginRateLimited is returned when the failed-login budget for an
	// identifier or IP is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshInvalid covers malformed, unknown, expired, and already
	// consumed refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse signals that a superseded refresh token was presented.
	// The whole session lineage has been revoked.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrStoreUnavailable wraps transient backend failures. It is never
	// conflated with a credential or token verdict.
	ErrStoreUnavailable = errors.New("auth store unavailable")
	// ErrAccountExists is returned by Register for duplicate identifiers.
	ErrAccountExists = errors.New("account already exists")
	// ErrRegistrationDisabled is returned by Register when account creation
	// is switched off in config.
	ErrRegistrationDisabled = errors.New("account creation disabled")
	// ErrRegistrationRateLimited is returned when the registration budget
	// for an identifier or IP is exhausted.
	ErrRegistrationRateLimited = errors.New("account creation rate limited")
	// ErrPasswordPolicy is returned when a password fails policy checks.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned by ChangePassword when the new password
	// equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrSessionInvalidationFailed is returned when revoking sessions after
	// a password change fails.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrTokenInvalid is returned for access tokens that fail verification
	// outside of Validate (e.g. LogoutByAccessToken).
	ErrTokenInvalid = errors.New("invalid token")
	// ErrProviderDuplicateIdentifier must be returned by UserProvider
	// implementations on unique-constraint violations.
	ErrProviderDuplicateIdentifier = errors.New("provider duplicate identifier")
	// ErrEngineNotReady is returned when the engine is used before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
