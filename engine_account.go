package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Register creates a new account. Duplicate identifiers return
// [ErrAccountExists]. When AutoLogin is enabled the result carries a token
// pair for the fresh account.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.passwordHasher == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.Enabled {
		return nil, ErrRegistrationDisabled
	}

	if req.Username == "" {
		return nil, ErrInvalidCredentials
	}
	if len(req.Password) < e.config.Account.MinPasswordLength {
		return nil, ErrPasswordPolicy
	}

	if err := e.enforceRegistrationThrottle(ctx, req.Username); err != nil {
		return nil, err
	}

	passwordHash, err := e.passwordHasher.Hash(req.Password)
	if err != nil {
		return nil, ErrPasswordPolicy
	}

	created, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateIdentifier) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrAccountExists
		}
		e.metricInc(MetricStoreUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	req.Password = ""

	result := &RegisterResult{UserID: created.UserID}

	if e.config.Account.AutoLogin {
		access, refresh, err := e.issueSessionTokens(ctx, created)
		if err != nil {
			// The account exists; the caller can still log in normally.
			log.Print("authcore: auto-login after registration failed")
			e.metricInc(MetricRegisterSuccess)
			return result, nil
		}
		result.AccessToken = access
		result.RefreshToken = refresh
	}

	e.metricInc(MetricRegisterSuccess)
	return result, nil
}

// enforceRegistrationThrottle consumes one attempt from the registration
// budget, keyed by identifier and additionally by client IP when present.
func (e *Engine) enforceRegistrationThrottle(ctx context.Context, identifier string) error {
	if e.rateLimiter == nil {
		return nil
	}

	keys := []string{"reg:" + identifier}
	if ip := clientIPFromContext(ctx); ip != "" {
		keys = append(keys, "regip:"+ip)
	}

	for _, key := range keys {
		d, err := e.rateLimiter.AllowN(ctx, key, e.config.Account.MaxAttempts, e.config.Account.Cooldown)
		if err != nil {
			e.metricInc(MetricStoreUnavailable)
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !d.Allowed {
			e.metricInc(MetricRegisterRateLimited)
			return ErrRegistrationRateLimited
		}
	}

	return nil
}

// ChangePassword verifies the current password, installs the new hash, and
// revokes every session of the user.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || e.passwordHasher == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}
	if userID == "" || oldPassword == "" {
		return ErrInvalidCredentials
	}
	if len(newPassword) < e.config.Account.MinPasswordLength {
		return ErrPasswordPolicy
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		e.metricInc(MetricStoreUnavailable)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !e.passwordHasher.Verify(oldPassword, user.PasswordHash) {
		e.metricInc(MetricPasswordChangeInvalidOld)
		return ErrInvalidCredentials
	}

	if e.passwordHasher.Verify(newPassword, user.PasswordHash) {
		e.metricInc(MetricPasswordChangeReuseRejected)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHasher.Hash(newPassword)
	if err != nil {
		return ErrPasswordPolicy
	}

	if err := e.userProvider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		e.metricInc(MetricStoreUnavailable)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Every outstanding session dies with the old password.
	if err := e.LogoutAll(ctx, userID); err != nil {
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	if e.rateLimiter != nil {
		identifier := user.Username
		if identifier == "" {
			identifier = userID
		}
		// Limiter reset is best-effort and must not block the change.
		if err := e.rateLimiter.ResetLogin(ctx, identifier, clientIPFromContext(ctx)); err != nil {
			log.Print("authcore: login limiter reset failed after password change")
		}
	}

	oldPassword = ""
	newPassword = ""
	e.metricInc(MetricPasswordChangeSuccess)

	return nil
}
