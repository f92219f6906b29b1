package driven

import (
	"context"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
)

// CommentPatch is a partial update to a stored comment. Nil fields are left
// untouched. Any applied patch also advances the comment's UpdatedAt.
type CommentPatch struct {
	Content        *string
	Status         *model.CommentStatus
	Reactions      *map[string][]string
	RemoteID       *int64
	RemoteThreadID *string
}

// CommentStore defines the driven port for comment persistence. The store
// assigns IDs and timestamps at creation time.
type CommentStore interface {
	// Create persists a new comment, assigning its ID and timestamps, and
	// returns the stored record.
	Create(ctx context.Context, c model.Comment) (model.Comment, error)

	// Get retrieves a comment by ID. Returns nil, nil if it does not exist.
	Get(ctx context.Context, id string) (*model.Comment, error)

	// ListByFile returns every comment for the given (repo, path) pair across
	// all branches, ordered by creation time.
	ListByFile(ctx context.Context, repo, path string) ([]model.Comment, error)

	// Update applies a partial update to the comment with the given ID.
	Update(ctx context.Context, id string, patch CommentPatch) error

	// Delete removes the comment with the given ID and all of its replies.
	Delete(ctx context.Context, id string) error
}
