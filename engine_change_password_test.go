package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockUserProvider struct {
	mu           sync.Mutex
	users        map[string]UserRecord
	byIdentifier map[string]string

	lookupErr error
	createErr error
	updateErr error

	getByIdentifierCalls int
	getByIDCalls         int
	createCalls          int
	updatePasswordCalls  int
}

func (m *mockUserProvider) GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIdentifierCalls++

	if m.lookupErr != nil {
		return UserRecord{}, m.lookupErr
	}

	userID, ok := m.byIdentifier[identifier]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}

	user, ok := m.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}

	return user, nil
}

func (m *mockUserProvider) GetUserByID(ctx context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++

	if m.lookupErr != nil {
		return UserRecord{}, m.lookupErr
	}

	user, ok := m.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}

	return user, nil
}

func (m *mockUserProvider) CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++

	if m.createErr != nil {
		return UserRecord{}, m.createErr
	}

	if m.users == nil {
		m.users = make(map[string]UserRecord)
	}
	if m.byIdentifier == nil {
		m.byIdentifier = make(map[string]string)
	}

	if _, exists := m.byIdentifier[input.Username]; exists {
		return UserRecord{}, ErrProviderDuplicateIdentifier
	}
	if input.Email != "" {
		if _, exists := m.byIdentifier[input.Email]; exists {
			return UserRecord{}, ErrProviderDuplicateIdentifier
		}
	}

	userID := fmt.Sprintf("u%d", len(m.users)+1)
	user := UserRecord{
		UserID:       userID,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		CreatedAt:    time.Now().Unix(),
	}

	m.users[userID] = user
	m.byIdentifier[input.Username] = userID
	if input.Email != "" {
		m.byIdentifier[input.Email] = userID
	}

	return user, nil
}

func (m *mockUserProvider) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePasswordCalls++

	if m.updateErr != nil {
		return m.updateErr
	}

	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}

	user.PasswordHash = newHash
	m.users[userID] = user
	return nil
}

func (m *mockUserProvider) userByID(userID string) UserRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID]
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestChangePasswordSuccessInvalidatesSessionsAndResetsLimiter(t *testing.T) {
	cfg := engineTestConfig()
	up := newSeededUserProvider(t, "alice", "old-password-123")

	engine, mr, done := newTestEngine(t, cfg, up)
	defer done()

	ctx := context.Background()

	_, refresh, err := engine.Login(ctx, "alice", "old-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := mr.Set("lf:alice", "3"); err != nil {
		t.Fatalf("seed limiter failed: %v", err)
	}

	if err := engine.ChangePassword(ctx, "u1", "old-password-123", "new-password-123"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	updated := up.userByID("u1")
	if !engine.passwordHasher.Verify("new-password-123", updated.PasswordHash) {
		t.Fatal("expected new hash to verify with new password")
	}

	if _, _, err := engine.Refresh(ctx, refresh); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected refresh to fail after password change, got %v", err)
	}
	if mr.Exists("lf:alice") {
		t.Fatal("expected login limiter key to be reset")
	}
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	cfg := engineTestConfig()
	up := newSeededUserProvider(t, "alice", "correct-old-pass")

	engine, _, done := newTestEngine(t, cfg, up)
	defer done()

	oldHash := up.userByID("u1").PasswordHash

	err := engine.ChangePassword(context.Background(), "u1", "wrong-old-pass", "new-pass-123")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if up.userByID("u1").PasswordHash != oldHash {
		t.Fatal("expected hash to remain unchanged on wrong old password")
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	cfg := engineTestConfig()
	up := newSeededUserProvider(t, "alice", "same-pass-123")

	engine, _, done := newTestEngine(t, cfg, up)
	defer done()

	err := engine.ChangePassword(context.Background(), "u1", "same-pass-123", "same-pass-123")
	if !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
}

func TestChangePasswordRejectsShortNewPassword(t *testing.T) {
	cfg := engineTestConfig()
	up := newSeededUserProvider(t, "alice", "valid-old-pass")

	engine, _, done := newTestEngine(t, cfg, up)
	defer done()

	err := engine.ChangePassword(context.Background(), "u1", "valid-old-pass", "short")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	cfg := engineTestConfig()
	up := &mockUserProvider{}

	engine, _, done := newTestEngine(t, cfg, up)
	defer done()

	err := engine.ChangePassword(context.Background(), "missing", "old-pass-123", "new-pass-123")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestChangePasswordKeepsUpdatedHashWhenInvalidationFails(t *testing.T) {
	cfg := engineTestConfig()
	up := newSeededUserProvider(t, "alice", "old-password-123")

	engine, mr, _ := newTestEngine(t, cfg, up)

	oldHash := up.userByID("u1").PasswordHash

	// Simulate Redis outage between password DB update and session invalidation.
	mr.Close()

	err := engine.ChangePassword(context.Background(), "u1", "old-password-123", "new-password-123")
	if !errors.Is(err, ErrSessionInvalidationFailed) {
		t.Fatalf("expected ErrSessionInvalidationFailed, got %v", err)
	}

	updated := up.userByID("u1")
	if updated.PasswordHash == oldHash {
		t.Fatal("expected password hash to remain updated despite invalidation failure")
	}
	if !engine.passwordHasher.Verify("new-password-123", updated.PasswordHash) {
		t.Fatal("expected updated hash to verify with new password")
	}
}
