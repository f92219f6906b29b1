package model

import "time"

// Author identifies the user who wrote a comment.
type Author struct {
	UID              string
	DisplayName      string
	PhotoURL         string
	ExternalUsername string // GitHub login; used to match remote-authored comments.
}

// Comment is an inline annotation on a document. The authoritative anchor is
// AnchorText; AnchorStart/AnchorEnd are advisory offsets used only as an
// initial placement hint. Replies (ParentID != "") never carry an anchor of
// their own and inherit visibility from their root.
type Comment struct {
	ID             string
	Repo           string // "owner/name"
	Path           string
	Branch         string // Branch the comment was authored against; comments do not span branches.
	Author         Author
	Content        string
	Type           CommentType
	AnchorStart    int
	AnchorEnd      int
	AnchorText     string
	Reactions      map[string][]string // emoji -> user IDs; empty sets are removed, never persisted as [].
	ParentID       string              // Empty for root comments; one level of nesting only.
	RemoteID       int64               // GitHub review comment ID; 0 until the remote counterpart exists.
	RemoteThreadID string              // GraphQL review thread node ID; assigned by GitHub, learned via inbound sync.
	Status         CommentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsRoot reports whether the comment starts a thread (has no parent).
func (c Comment) IsRoot() bool {
	return c.ParentID == ""
}

// HasRemote reports whether a remote counterpart is known for this comment.
func (c Comment) HasRemote() bool {
	return c.RemoteID != 0
}

// ToggleReaction recomputes the membership of uid in the given reaction's
// user set and returns the resulting reactions map along with whether the
// reaction was removed for this user. The input map is not mutated. A set
// that reaches zero members is deleted from the map entirely.
func (c Comment) ToggleReaction(emoji, uid string) (map[string][]string, bool) {
	next := make(map[string][]string, len(c.Reactions))
	for k, users := range c.Reactions {
		next[k] = append([]string(nil), users...)
	}

	users := next[emoji]
	for i, u := range users {
		if u == uid {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(next, emoji)
			} else {
				next[emoji] = users
			}
			return next, true
		}
	}

	next[emoji] = append(users, uid)
	return next, false
}
