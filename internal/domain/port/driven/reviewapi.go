package driven

import (
	"context"
	"time"
)

// RemoteComment is a pull request review comment as known to the remote
// review system.
type RemoteComment struct {
	ID        int64
	Author    string // Remote login.
	Body      string
	Path      string
	Line      int
	StartLine int
	InReplyTo int64 // 0 for thread roots.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReviewThread is a remote review thread. Thread IDs are assigned by the
// remote system and cannot be synthesized locally; they are only obtainable
// through inbound sync.
type ReviewThread struct {
	ID         string // GraphQL node ID, used for resolve/unresolve.
	IsResolved bool
}

// ReviewAPI defines the driven port for the remote review-comment system.
// Callers treat every write as best-effort: the local store stays
// authoritative regardless of remote outcomes.
type ReviewAPI interface {
	// CreateComment creates a line-anchored review comment against commitSHA.
	// startLine is 0 for single-line comments.
	CreateComment(ctx context.Context, repo string, prNumber int, body, commitSHA, path string, line, startLine int) (*RemoteComment, error)

	// ReplyComment replies to the thread rooted at parentID.
	ReplyComment(ctx context.Context, repo string, prNumber int, parentID int64, body string) (*RemoteComment, error)

	// UpdateComment replaces the body of an existing review comment.
	UpdateComment(ctx context.Context, repo string, commentID int64, body string) error

	// DeleteComment removes a review comment.
	DeleteComment(ctx context.Context, repo string, commentID int64) error

	// ListComments returns all review comments on the pull request.
	ListComments(ctx context.Context, repo string, prNumber int) ([]RemoteComment, error)

	// FetchThreads returns review threads keyed by the database ID of each
	// thread's root comment.
	FetchThreads(ctx context.Context, repo string, prNumber int) (map[int64]ReviewThread, error)

	// SetThreadResolution resolves or reopens a review thread by its node ID.
	SetThreadResolution(ctx context.Context, threadID string, resolved bool) error

	// AddReaction adds a reaction of the given kind to a review comment.
	AddReaction(ctx context.Context, repo string, commentID int64, kind string) error

	// RemoveReaction removes the authenticated user's reaction of the given
	// kind from a review comment.
	RemoveReaction(ctx context.Context, repo string, commentID int64, kind string) error
}
