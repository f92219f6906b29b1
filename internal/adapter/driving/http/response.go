package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CommentResponse is the JSON representation of a comment.
type CommentResponse struct {
	ID             string              `json:"id"`
	Path           string              `json:"path"`
	Branch         string              `json:"branch"`
	AuthorUID      string              `json:"author_uid"`
	AuthorName     string              `json:"author_name"`
	AuthorPhotoURL string              `json:"author_photo_url,omitempty"`
	AuthorLogin    string              `json:"author_login,omitempty"`
	Content        string              `json:"content"`
	BodyHTML       string              `json:"body_html"`
	Type           string              `json:"type"`
	AnchorStart    int                 `json:"anchor_start"`
	AnchorEnd      int                 `json:"anchor_end"`
	AnchorText     string              `json:"anchor_text"`
	Reactions      map[string][]string `json:"reactions"`
	ParentID       string              `json:"parent_id,omitempty"`
	RemoteID       int64               `json:"remote_id,omitempty"`
	RemoteThreadID string              `json:"remote_thread_id,omitempty"`
	Status         string              `json:"status"`
	CreatedAt      string              `json:"created_at"`
	UpdatedAt      string              `json:"updated_at"`
}

// CommentListResponse is the payload for the comment list endpoint.
type CommentListResponse struct {
	Comments    []CommentResponse `json:"comments"`
	ActiveCount int               `json:"active_count"`
	Branch      string            `json:"branch"`
}

// PRResponse is the JSON representation of the active pull request snapshot.
type PRResponse struct {
	Number  int    `json:"number"`
	HeadSHA string `json:"head_sha"`
	BaseRef string `json:"base_ref"`
	HTMLURL string `json:"html_url"`
}

// SaveStateResponse is the save-status snapshot for UI display.
type SaveStateResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// DocumentResponse is the payload for the document fetch endpoint.
type DocumentResponse struct {
	Path    string `json:"path"`
	Branch  string `json:"branch"`
	Content string `json:"content"`
}

func toCommentResponse(c model.Comment) CommentResponse {
	return CommentResponse{
		ID:             c.ID,
		Path:           c.Path,
		Branch:         c.Branch,
		AuthorUID:      c.Author.UID,
		AuthorName:     c.Author.DisplayName,
		AuthorPhotoURL: c.Author.PhotoURL,
		AuthorLogin:    c.Author.ExternalUsername,
		Content:        c.Content,
		BodyHTML:       RenderMarkdown(c.Content),
		Type:           string(c.Type),
		AnchorStart:    c.AnchorStart,
		AnchorEnd:      c.AnchorEnd,
		AnchorText:     c.AnchorText,
		Reactions:      c.Reactions,
		ParentID:       c.ParentID,
		RemoteID:       c.RemoteID,
		RemoteThreadID: c.RemoteThreadID,
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
