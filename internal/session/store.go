// Package session provides server-side session storage: a mapping from an
// opaque session id to the learner identity assigned to that session.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

var ErrNotFound = errors.New("session not found or expired")

// Store maps session ids to identities. Implementations are created at
// process start and closed at shutdown.
type Store interface {
	Lookup(ctx context.Context, sessionID string) (string, error)
	Save(ctx context.Context, sessionID, identity string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// hashID keeps raw session ids out of the backing store.
func hashID(sessionID string) string {
	sum := blake2b.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}
