package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a poll or settings document does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the durable source of truth for polls and settings. Writes must be
// visible to subsequent reads within the process before the call returns.
type Store interface {
	// GetSettings returns the settings singleton, or ErrNotFound when no
	// document has been written yet.
	GetSettings(ctx context.Context) (*Settings, error)
	// PutSettings writes the settings singleton, creating it on first use.
	PutSettings(ctx context.Context, s *Settings) error

	// FindPoll returns the poll keyed by its anchor message id.
	FindPoll(ctx context.Context, id string) (*Poll, error)
	// UpsertPoll creates or replaces a poll record.
	UpsertPoll(ctx context.Context, p *Poll) error
	// FindActivePolls returns every poll with IsActive still set.
	FindActivePolls(ctx context.Context) ([]*Poll, error)
	// MarkPollResolved flips IsActive to false if and only if it is still
	// true, and reports whether this call performed the transition. This is
	// the conditional update that makes poll resolution exactly-once.
	MarkPollResolved(ctx context.Context, id string) (claimed bool, err error)
}
