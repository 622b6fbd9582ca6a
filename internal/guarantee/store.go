package guarantee

import (
	"context"

	"garantias.org/internal/audit"
)

// Status selects guarantees by lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusAll      Status = "all"
)

// Store persists guarantees. Implementations run fn in one transaction and
// commit only when fn returns nil.
type Store interface {
	WithinTx(ctx context.Context, fn func(Tx) error) error
	// List returns guarantees newest first.
	List(ctx context.Context, status Status) ([]Guarantee, error)
	// Get returns apperr.ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (Guarantee, error)
}

// Tx is the transactional view used by mutations. It also appends audit entries so
// that the state write and its audit entry commit together.
type Tx interface {
	audit.Appender
	Insert(ctx context.Context, g Guarantee) error
	// Lock reads the current row and holds it until the transaction ends.
	Lock(ctx context.Context, id string) (Guarantee, error)
	// MarkInactive applies next only if the stored row is still active; otherwise it
	// returns apperr.ErrConflict.
	MarkInactive(ctx context.Context, next Guarantee) error
}

// Event is published after a mutation commits.
type Event struct {
	Kind      string    `json:"kind"`
	Guarantee Guarantee `json:"guarantee"`
	ActorID   string    `json:"actor_id"`
}

// Publisher receives committed events.
type Publisher interface {
	Publish(Event)
}
