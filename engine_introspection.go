package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/housekg/authcore/session"
	"github.com/redis/go-redis/v9"
)

// SessionInfo is the safe introspection view for a session. It
// intentionally excludes the stored refresh hash.
type SessionInfo struct {
	SessionID string
	UserID    string
	CreatedAt int64
	ExpiresAt int64
}

// ActiveSessionCount returns how many sessions are currently tracked for
// a user. A user with no sessions yields zero, not an error.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, ErrUserNotFound
	}

	count, err := e.sessionStore.ActiveSessionCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// ListActiveSessions returns metadata for every live session a user
// holds. Index entries whose session expired between the set read and
// the per-session read are skipped rather than reported.
func (e *Engine) ListActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	sessionIDs, err := e.sessionStore.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]SessionInfo, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		sess, err := e.sessionStore.Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, session.ErrRedisUnavailable) {
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			return nil, err
		}
		out = append(out, SessionInfo{
			SessionID: sess.SessionID,
			UserID:    sess.UserID,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		})
	}
	return out, nil
}
