package session

// Session is the server-side record backing one refresh token lineage.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	SessionID string
	UserID    string

	// RefreshHash is the SHA-256 of the currently valid refresh secret.
	// The raw secret never reaches the store.
	RefreshHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
