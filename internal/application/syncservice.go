package application

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/marginalia/internal/anchor"
	"github.com/ericfisherdev/marginalia/internal/domain/model"
	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ Syncer = (*SyncService)(nil)

// SyncService projects local comment operations onto the remote review
// system. Every method is fire-and-forget: failures are logged and swallowed,
// never surfaced, because the local store is the authoritative UX state. All
// outbound calls are gated on an active pull request -- remote creation is
// never used to discover one, and comments created before a PR existed are
// not synced retroactively.
type SyncService struct {
	review   driven.ReviewAPI
	content  driven.ContentStore
	bridge   *IdentityBridge
	session  *Session
	comments *CommentService
}

// NewSyncService creates the outbound sync client.
func NewSyncService(
	review driven.ReviewAPI,
	content driven.ContentStore,
	bridge *IdentityBridge,
	session *Session,
	comments *CommentService,
) *SyncService {
	return &SyncService{
		review:   review,
		content:  content,
		bridge:   bridge,
		session:  session,
		comments: comments,
	}
}

// CommentCreated mirrors a freshly created local comment to the pull request.
// Roots become line-anchored review comments placed by re-running anchor
// location against the file content at the PR head; replies are attached to
// their parent's remote thread and silently skipped when the parent was
// never synced.
func (s *SyncService) CommentCreated(ctx context.Context, c model.Comment) {
	pr := s.session.ActivePR()
	if pr == nil {
		return
	}

	if !c.IsRoot() {
		s.createReply(ctx, pr, c)
		return
	}

	line, startLine := s.placeAnchor(ctx, pr, c)

	rc, err := s.review.CreateComment(ctx, s.session.Repo(), pr.Number, c.Content, pr.HeadSHA, c.Path, line, startLine)
	if err != nil {
		slog.Warn("remote comment create failed", "comment", c.ID, "pr", pr.Number, "error", err)
		return
	}

	// Record the mapping before the store write round-trips through the
	// subscription so same-session follow-ups can always resolve it.
	s.bridge.Record(c.ID, rc.ID)
	if err := s.comments.PatchRemoteLink(ctx, c.ID, rc.ID, ""); err != nil {
		slog.Warn("store remote id failed", "comment", c.ID, "error", err)
	}
}

// CommentUpdated mirrors a body edit. No-op when the remote ID cannot be
// resolved.
func (s *SyncService) CommentUpdated(ctx context.Context, c model.Comment) {
	pr := s.session.ActivePR()
	if pr == nil {
		return
	}

	remoteID := s.bridge.Resolve(ctx, c.ID)
	if remoteID == 0 {
		return
	}

	if err := s.review.UpdateComment(ctx, s.session.Repo(), remoteID, c.Content); err != nil {
		slog.Warn("remote comment update failed", "comment", c.ID, "remote", remoteID, "error", err)
	}
}

// CommentDeleted mirrors a deletion. No-op when the remote ID cannot be
// resolved.
func (s *SyncService) CommentDeleted(ctx context.Context, c model.Comment) {
	pr := s.session.ActivePR()
	if pr == nil {
		return
	}

	remoteID := s.bridge.Resolve(ctx, c.ID)
	if remoteID == 0 {
		return
	}

	if err := s.review.DeleteComment(ctx, s.session.Repo(), remoteID); err != nil {
		slog.Warn("remote comment delete failed", "comment", c.ID, "remote", remoteID, "error", err)
	}
}

// ReactionToggled mirrors a reaction change. Local reaction state was already
// recomputed optimistically before this call.
func (s *SyncService) ReactionToggled(ctx context.Context, c model.Comment, kind string, removed bool) {
	pr := s.session.ActivePR()
	if pr == nil {
		return
	}

	remoteID := s.bridge.Resolve(ctx, c.ID)
	if remoteID == 0 {
		return
	}

	var err error
	if removed {
		err = s.review.RemoveReaction(ctx, s.session.Repo(), remoteID, kind)
	} else {
		err = s.review.AddReaction(ctx, s.session.Repo(), remoteID, kind)
	}
	if err != nil {
		slog.Warn("remote reaction sync failed", "comment", c.ID, "remote", remoteID, "kind", kind, "error", err)
	}
}

// ThreadResolutionChanged mirrors a resolve/reopen. Thread IDs are assigned
// by the remote system and only learned through inbound sync, so the call is
// skipped until one is known.
func (s *SyncService) ThreadResolutionChanged(ctx context.Context, c model.Comment, resolved bool) {
	pr := s.session.ActivePR()
	if pr == nil {
		return
	}
	if c.RemoteThreadID == "" {
		return
	}

	if err := s.review.SetThreadResolution(ctx, c.RemoteThreadID, resolved); err != nil {
		slog.Warn("remote thread resolution failed", "comment", c.ID, "thread", c.RemoteThreadID, "error", err)
	}
}

// createReply attaches a reply to its parent's remote thread.
func (s *SyncService) createReply(ctx context.Context, pr *model.ActivePullRequest, c model.Comment) {
	parentRemote := s.bridge.Resolve(ctx, c.ParentID)
	if parentRemote == 0 {
		// Parent was never synced (created before a PR existed, or its own
		// remote create failed); skip rather than orphan a remote reply.
		return
	}

	rc, err := s.review.ReplyComment(ctx, s.session.Repo(), pr.Number, parentRemote, c.Content)
	if err != nil {
		slog.Warn("remote reply create failed", "comment", c.ID, "parent_remote", parentRemote, "error", err)
		return
	}

	s.bridge.Record(c.ID, rc.ID)
	if err := s.comments.PatchRemoteLink(ctx, c.ID, rc.ID, ""); err != nil {
		slog.Warn("store remote id failed", "comment", c.ID, "error", err)
	}
}

// placeAnchor derives line placement by locating the comment's anchor text in
// the file content at the PR head. Resolution failure degrades to line 1;
// best-effort placement beats no comment.
func (s *SyncService) placeAnchor(ctx context.Context, pr *model.ActivePullRequest, c model.Comment) (line, startLine int) {
	line = 1

	fc, err := s.content.FetchContent(ctx, s.session.Repo(), c.Path, pr.HeadSHA)
	if err != nil {
		slog.Warn("fetch content for anchor placement failed", "comment", c.ID, "ref", pr.HeadSHA, "error", err)
		return line, 0
	}

	pos := anchor.Locate(fc.Content, c.AnchorText, c.AnchorStart)
	if pos == nil {
		return line, 0
	}

	line = pos.Line
	if pos.StartLine < pos.Line {
		startLine = pos.StartLine
	}
	return line, startLine
}
