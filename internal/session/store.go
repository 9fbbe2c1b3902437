package session

import "context"

// Backend modes reported by Store.Mode and the health endpoint.
const (
	ModeDurable   = "durable"
	ModeInProcess = "in-process"
)

// Store is the persistence contract shared by the Redis backend and the
// in-process fallback. Both must expose identical observable behavior: the
// same sentinel errors, the same ordering for ListByUser, and the same
// sliding-TTL semantics, so that the Manager and everything above it stays
// backend-agnostic.
type Store interface {
	// Create persists a new session, failing with ErrSessionExists if the
	// id is already taken.
	Create(ctx context.Context, s *ChatSession) error

	// Get resolves a session by id and refreshes its expiry window. A
	// missing record is ErrSessionNotFound whether it was deleted or
	// silently expired.
	Get(ctx context.Context, id string) (*ChatSession, error)

	// Save is an idempotent full overwrite that also repositions the
	// session in the per-user index by UpdatedAt.
	Save(ctx context.Context, s *ChatSession) error

	// ListByUser returns the user's sessions ordered most-recently-updated
	// first, at most limit entries. References to sessions that expired
	// since indexing are silently dropped.
	ListByUser(ctx context.Context, userID string, limit int) ([]*ChatSession, error)

	// Delete removes the session and its index entry. Deleting an absent
	// session is not an error.
	Delete(ctx context.Context, id string) error

	// ExtendTTL refreshes the expiry window without touching content.
	ExtendTTL(ctx context.Context, id string) error

	Mode() string
	Close() error
}
