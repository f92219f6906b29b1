package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommentStore = (*CommentRepo)(nil)

// CommentRepo is the SQLite implementation of the CommentStore port.
type CommentRepo struct {
	db *DB
}

// NewCommentRepo creates a new CommentRepo backed by the given DB.
func NewCommentRepo(db *DB) *CommentRepo {
	return &CommentRepo{db: db}
}

// Create persists a new comment. The store assigns a ULID and both
// timestamps; reactions are serialized as a JSON object in the TEXT column.
func (r *CommentRepo) Create(ctx context.Context, c model.Comment) (model.Comment, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return model.Comment{}, fmt.Errorf("generate comment id: %w", err)
	}
	c.ID = id.String()

	now := time.Now().UTC().Truncate(time.Millisecond)
	c.CreatedAt = now
	c.UpdatedAt = now

	if c.Reactions == nil {
		c.Reactions = map[string][]string{}
	}
	reactionsJSON, err := marshalReactions(c.Reactions)
	if err != nil {
		return model.Comment{}, err
	}

	const query = `
		INSERT INTO comments (
			id, repo, path, branch,
			author_uid, author_name, author_photo_url, author_external,
			content, type, anchor_start, anchor_end, anchor_text,
			reactions, parent_id, remote_id, remote_thread_id, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Writer.ExecContext(ctx, query,
		c.ID, c.Repo, c.Path, c.Branch,
		c.Author.UID, c.Author.DisplayName, c.Author.PhotoURL, c.Author.ExternalUsername,
		c.Content, string(c.Type), c.AnchorStart, c.AnchorEnd, c.AnchorText,
		reactionsJSON, nullString(c.ParentID), nullInt64(c.RemoteID), nullString(c.RemoteThreadID), string(c.Status),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return model.Comment{}, fmt.Errorf("insert comment %s: %w", c.ID, err)
	}

	return c, nil
}

// Get retrieves a comment by ID. Returns nil, nil if it does not exist.
func (r *CommentRepo) Get(ctx context.Context, id string) (*model.Comment, error) {
	const query = selectColumns + ` FROM comments WHERE id = ?`

	c, err := scanComment(r.db.Reader.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comment %s: %w", id, err)
	}
	return c, nil
}

// ListByFile returns all comments for the (repo, path) pair across branches,
// ordered by creation time.
func (r *CommentRepo) ListByFile(ctx context.Context, repo, path string) ([]model.Comment, error) {
	const query = selectColumns + `
		FROM comments
		WHERE repo = ? AND path = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repo, path)
	if err != nil {
		return nil, fmt.Errorf("list comments for %s:%s: %w", repo, path, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}

// Update applies a partial update. Nil patch fields are untouched; any
// applied patch advances updated_at.
func (r *CommentRepo) Update(ctx context.Context, id string, patch driven.CommentPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Truncate(time.Millisecond)}

	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Reactions != nil {
		reactionsJSON, err := marshalReactions(*patch.Reactions)
		if err != nil {
			return err
		}
		sets = append(sets, "reactions = ?")
		args = append(args, reactionsJSON)
	}
	if patch.RemoteID != nil {
		sets = append(sets, "remote_id = ?")
		args = append(args, nullInt64(*patch.RemoteID))
	}
	if patch.RemoteThreadID != nil {
		sets = append(sets, "remote_thread_id = ?")
		args = append(args, nullString(*patch.RemoteThreadID))
	}

	query := fmt.Sprintf("UPDATE comments SET %s WHERE id = ?", strings.Join(sets, ", "))
	args = append(args, id)

	res, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update comment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update comment %s: not found", id)
	}

	return nil
}

// Delete removes a comment; replies cascade via the parent_id foreign key.
func (r *CommentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Writer.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	return nil
}

const selectColumns = `
	SELECT id, repo, path, branch,
	       author_uid, author_name, author_photo_url, author_external,
	       content, type, anchor_start, anchor_end, anchor_text,
	       reactions, parent_id, remote_id, remote_thread_id, status,
	       created_at, updated_at
`

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (*model.Comment, error) {
	var (
		c              model.Comment
		commentType    string
		status         string
		reactionsJSON  string
		parentID       sql.NullString
		remoteID       sql.NullInt64
		remoteThreadID sql.NullString
	)

	err := row.Scan(
		&c.ID, &c.Repo, &c.Path, &c.Branch,
		&c.Author.UID, &c.Author.DisplayName, &c.Author.PhotoURL, &c.Author.ExternalUsername,
		&c.Content, &commentType, &c.AnchorStart, &c.AnchorEnd, &c.AnchorText,
		&reactionsJSON, &parentID, &remoteID, &remoteThreadID, &status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Type = model.CommentType(commentType)
	c.Status = model.CommentStatus(status)
	c.ParentID = parentID.String
	c.RemoteID = remoteID.Int64
	c.RemoteThreadID = remoteThreadID.String

	if err := json.Unmarshal([]byte(reactionsJSON), &c.Reactions); err != nil {
		return nil, fmt.Errorf("unmarshal reactions: %w", err)
	}
	if c.Reactions == nil {
		c.Reactions = map[string][]string{}
	}

	return &c, nil
}

// marshalReactions serializes the reactions map, dropping any empty user sets
// so [] values are never persisted.
func marshalReactions(reactions map[string][]string) (string, error) {
	clean := make(map[string][]string, len(reactions))
	for emoji, users := range reactions {
		if len(users) > 0 {
			clean[emoji] = users
		}
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("marshal reactions: %w", err)
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
