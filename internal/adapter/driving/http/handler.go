// Package httphandler is the HTTP driving adapter that serves the REST API.
package httphandler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ericfisherdev/marginalia/internal/anchor"
	"github.com/ericfisherdev/marginalia/internal/application"
	"github.com/ericfisherdev/marginalia/internal/domain/model"
)

// Handler exposes the comment, document, and save surfaces to the UI.
type Handler struct {
	comments *application.CommentService
	save     *application.SaveService
	poll     *application.PollService
	session  *application.Session
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	comments *application.CommentService,
	save *application.SaveService,
	poll *application.PollService,
	session *application.Session,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		comments: comments,
		save:     save,
		poll:     poll,
		session:  session,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/comments", h.ListComments)
	mux.HandleFunc("GET /api/v1/comments/match", h.MatchComment)
	mux.HandleFunc("POST /api/v1/comments", h.CreateComment)
	mux.HandleFunc("PATCH /api/v1/comments/{id}", h.UpdateComment)
	mux.HandleFunc("DELETE /api/v1/comments/{id}", h.DeleteComment)
	mux.HandleFunc("POST /api/v1/comments/{id}/reactions", h.ToggleReaction)
	mux.HandleFunc("POST /api/v1/comments/{id}/resolution", h.SetResolution)
	mux.HandleFunc("GET /api/v1/document", h.GetDocument)
	mux.HandleFunc("PUT /api/v1/document", h.ScheduleSave)
	mux.HandleFunc("POST /api/v1/document/save", h.SaveNow)
	mux.HandleFunc("GET /api/v1/save-status", h.SaveStatus)
	mux.HandleFunc("GET /api/v1/pr", h.ActivePR)
	mux.HandleFunc("POST /api/v1/sync/refresh", h.RefreshSync)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListComments returns the branch-filtered comment set with the active count.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	visible, err := h.comments.View(r.Context())
	if err != nil {
		h.logger.Error("list comments failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}

	out := make([]CommentResponse, 0, len(visible))
	activeCount := 0
	for _, c := range visible {
		if c.IsRoot() && c.Status == model.CommentStatusActive {
			activeCount++
		}
		out = append(out, toCommentResponse(c))
	}

	writeJSON(w, http.StatusOK, CommentListResponse{
		Comments:    out,
		ActiveCount: activeCount,
		Branch:      h.session.Branch(),
	})
}

// MatchComment maps a clicked passage to the comment it most plausibly
// belongs to. Returns 404 when no visible comment's anchor matches.
func (h *Handler) MatchComment(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		offset = parsed
	}

	c, err := h.comments.FindByClick(r.Context(), text, offset)
	if err != nil {
		h.logger.Error("match comment failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to match comment")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "no comment matches the clicked text")
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(*c))
}

// createCommentRequest is the body for POST /comments.
type createCommentRequest struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	ParentID    string `json:"parent_id"`
	AnchorText  string `json:"anchor_text"`
	AnchorStart int    `json:"anchor_start"`
	AnchorEnd   int    `json:"anchor_end"`
}

// CreateComment appends a new root or reply comment.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.ParentID == "" && req.AnchorText == "" {
		writeError(w, http.StatusBadRequest, "root comments require an anchor")
		return
	}

	commentType := model.CommentType(req.Type)
	if commentType != model.CommentTypeSuggestion {
		commentType = model.CommentTypeComment
	}

	created, err := h.comments.Create(r.Context(), application.CommentDraft{
		Author:   h.session.User(),
		Content:  req.Content,
		Type:     commentType,
		ParentID: req.ParentID,
		Anchor: anchor.Anchor{
			Text: req.AnchorText,
			From: req.AnchorStart,
			To:   req.AnchorEnd,
		},
	})
	if err != nil {
		h.logger.Error("create comment failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create comment")
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(created))
}

// updateCommentRequest is the body for PATCH /comments/{id}.
type updateCommentRequest struct {
	Content string `json:"content"`
}

// UpdateComment edits a comment's body.
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	if err := h.comments.UpdateContent(r.Context(), id, req.Content); err != nil {
		h.logger.Error("update comment failed", "comment", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update comment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteComment removes a comment and its replies.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.comments.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete comment failed", "comment", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toggleReactionRequest is the body for POST /comments/{id}/reactions.
type toggleReactionRequest struct {
	Emoji string `json:"emoji"`
}

// ToggleReaction toggles the acting user's reaction on a comment.
func (h *Handler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req toggleReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Emoji == "" {
		writeError(w, http.StatusBadRequest, "emoji is required")
		return
	}

	if err := h.comments.ToggleReaction(r.Context(), id, req.Emoji, h.session.User().UID); err != nil {
		h.logger.Error("toggle reaction failed", "comment", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle reaction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setResolutionRequest is the body for POST /comments/{id}/resolution.
type setResolutionRequest struct {
	Resolved bool `json:"resolved"`
}

// SetResolution resolves or reopens a comment thread.
func (h *Handler) SetResolution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req setResolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.comments.SetResolution(r.Context(), id, req.Resolved); err != nil {
		h.logger.Error("set resolution failed", "comment", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set resolution")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetDocument returns the document content at the current branch and runs PR
// detection plus the orphan sweep as side effects of the load.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	content, err := h.save.LoadDocument(r.Context())
	if err != nil {
		h.logger.Error("load document failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to load document")
		return
	}

	writeJSON(w, http.StatusOK, DocumentResponse{
		Path:    h.session.Path(),
		Branch:  h.session.Branch(),
		Content: content,
	})
}

// saveRequest is the body for PUT /document and POST /document/save.
type saveRequest struct {
	Content string `json:"content"`
}

// ScheduleSave arms the debounced autosave with new content.
func (h *Handler) ScheduleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.save.ScheduleSave(r.Context(), req.Content)
	w.WriteHeader(http.StatusAccepted)
}

// SaveNow performs an explicit save, cancelling any pending autosave.
func (h *Handler) SaveNow(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.save.SaveNow(r.Context(), req.Content); err != nil {
		h.logger.Error("manual save failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toSaveStateResponse(h.save.State()))
}

// SaveStatus returns the current save-status snapshot.
func (h *Handler) SaveStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSaveStateResponse(h.save.State()))
}

// ActivePR returns the active pull request snapshot, or 404 when none exists.
func (h *Handler) ActivePR(w http.ResponseWriter, r *http.Request) {
	pr := h.session.ActivePR()
	if pr == nil {
		writeError(w, http.StatusNotFound, "no active pull request")
		return
	}

	writeJSON(w, http.StatusOK, PRResponse{
		Number:  pr.Number,
		HeadSHA: pr.HeadSHA,
		BaseRef: pr.BaseRef,
		HTMLURL: pr.HTMLURL,
	})
}

// RefreshSync requests an immediate inbound sync poll, e.g. on tab refocus.
func (h *Handler) RefreshSync(w http.ResponseWriter, r *http.Request) {
	h.poll.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toSaveStateResponse(s model.SaveState) SaveStateResponse {
	out := SaveStateResponse{
		Status: string(s.Status),
		Error:  s.Error,
	}
	if !s.UpdatedAt.IsZero() {
		out.UpdatedAt = s.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}
