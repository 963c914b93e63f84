package session

import (
	"context"
	"errors"
	"time"

	"github.com/sweetpotato0/tutorgraph/message"
)

// ErrNotFound indicates that no record exists for the requested session ID.
var ErrNotFound = errors.New("session not found")

// Record is the serialized checkpoint of one conversation session. A store
// holds exactly one record per session ID and replaces it whole on save.
type Record struct {
	ID           string             `json:"id"`
	Messages     []*message.Message `json:"messages"`
	CurrentAgent string             `json:"current_agent,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewRecord creates an empty record for the given session ID.
func NewRecord(id string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cloned := *r
	cloned.Messages = message.CloneMessages(r.Messages)
	return &cloned
}

// Store defines the interface for session storage backends. Implementations
// must be safe for concurrent use; Save replaces the stored record atomically.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
