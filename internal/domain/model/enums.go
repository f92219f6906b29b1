package model

// CommentType distinguishes plain comments from change suggestions.
type CommentType string

const (
	CommentTypeComment    CommentType = "comment"
	CommentTypeSuggestion CommentType = "suggestion"
)

// CommentStatus is the lifecycle state of a comment thread.
type CommentStatus string

const (
	CommentStatusActive   CommentStatus = "active"
	CommentStatusResolved CommentStatus = "resolved"
)

// SaveStatus is the per-invocation outcome of a document save, surfaced to the UI.
type SaveStatus string

const (
	SaveStatusIdle   SaveStatus = "idle"
	SaveStatusSaving SaveStatus = "saving"
	SaveStatusSaved  SaveStatus = "saved"
	SaveStatusError  SaveStatus = "error"
)

// SaveStrategy controls where document saves are committed.
// SaveStrategyBranch commits to an isolated branch created lazily on the first
// save of the session; SaveStrategyDirect commits to the current branch.
type SaveStrategy string

const (
	SaveStrategyBranch SaveStrategy = "branch"
	SaveStrategyDirect SaveStrategy = "direct"
)
