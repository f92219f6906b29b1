package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/marginalia/internal/anchor"
	"github.com/ericfisherdev/marginalia/internal/domain/model"
	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

// Syncer receives fire-and-forget notifications of local comment mutations to
// project onto the remote review system. Implementations never return errors:
// remote failures are logged and swallowed because the local store is the
// authoritative UX state.
type Syncer interface {
	CommentCreated(ctx context.Context, c model.Comment)
	CommentUpdated(ctx context.Context, c model.Comment)
	CommentDeleted(ctx context.Context, c model.Comment)
	ReactionToggled(ctx context.Context, c model.Comment, kind string, removed bool)
	ThreadResolutionChanged(ctx context.Context, c model.Comment, resolved bool)
}

// CommentDraft is the input to CommentService.Create.
type CommentDraft struct {
	Author   model.Author
	Content  string
	Type     model.CommentType
	ParentID string
	Anchor   anchor.Anchor
}

// CommentService is the single source of truth for comment state as observed
// by this client. It persists comments, pushes the full current set for the
// document to subscribers after every mutation, derives branch-filtered
// views, and runs the content-keyed orphan sweep.
type CommentService struct {
	store   driven.CommentStore
	session *Session
	sync    Syncer

	mu        sync.Mutex
	subs      map[int]func([]model.Comment)
	nextSubID int
	sweeps    map[string]string // "path\x00branch" -> content identity last swept.
}

// NewCommentService creates a CommentService. Attach an outbound syncer with
// AttachSyncer once it is constructed; until then mutations stay local-only.
func NewCommentService(store driven.CommentStore, session *Session) *CommentService {
	return &CommentService{
		store:   store,
		session: session,
		subs:    make(map[int]func([]model.Comment)),
		sweeps:  make(map[string]string),
	}
}

// AttachSyncer wires the outbound sync client. Called once during composition;
// the service and the syncer reference each other, so neither constructor can
// take the other as an argument.
func (s *CommentService) AttachSyncer(sync Syncer) {
	s.sync = sync
}

// Subscribe registers a push-based listener for the session's document. The
// callback always receives the full current comment set for the (repo, path)
// pair, never a delta. The returned unsubscribe function is idempotent.
func (s *CommentService) Subscribe(ctx context.Context, fn func([]model.Comment)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	// Deliver the current set immediately so subscribers never start empty.
	if all, err := s.store.ListByFile(ctx, s.session.Repo(), s.session.Path()); err == nil {
		fn(all)
	}

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Create appends a new root or reply comment. Replies never carry an anchor
// of their own; any anchor on a reply draft is discarded. The comment is
// written locally first and then projected to the remote review system
// without blocking the caller.
func (s *CommentService) Create(ctx context.Context, draft CommentDraft) (model.Comment, error) {
	c := model.Comment{
		Repo:        s.session.Repo(),
		Path:        s.session.Path(),
		Branch:      s.session.Branch(),
		Author:      draft.Author,
		Content:     draft.Content,
		Type:        draft.Type,
		ParentID:    draft.ParentID,
		Reactions:   map[string][]string{},
		Status:      model.CommentStatusActive,
		AnchorText:  draft.Anchor.Text,
		AnchorStart: draft.Anchor.From,
		AnchorEnd:   draft.Anchor.To,
	}
	if c.ParentID != "" {
		c.AnchorText = ""
		c.AnchorStart = 0
		c.AnchorEnd = 0
	}

	created, err := s.store.Create(ctx, c)
	if err != nil {
		return model.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	s.publish(ctx)

	if s.sync != nil {
		go s.sync.CommentCreated(context.WithoutCancel(ctx), created)
	}

	return created, nil
}

// UpdateContent edits a comment's body.
func (s *CommentService) UpdateContent(ctx context.Context, id, content string) error {
	if err := s.store.Update(ctx, id, driven.CommentPatch{Content: &content}); err != nil {
		return fmt.Errorf("update comment %s: %w", id, err)
	}
	s.publish(ctx)

	if c, err := s.store.Get(ctx, id); err == nil && c != nil && s.sync != nil {
		go s.sync.CommentUpdated(context.WithoutCancel(ctx), *c)
	}

	return nil
}

// Delete removes a comment and its replies.
func (s *CommentService) Delete(ctx context.Context, id string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	if c == nil {
		return nil
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	s.publish(ctx)

	if s.sync != nil {
		go s.sync.CommentDeleted(context.WithoutCancel(ctx), *c)
	}

	return nil
}

// ToggleReaction toggles uid's membership in the given reaction's user set.
// The local state is recomputed optimistically before any remote projection
// is attempted; a set that reaches zero members is removed entirely.
func (s *CommentService) ToggleReaction(ctx context.Context, id, emoji, uid string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil || c == nil {
		return fmt.Errorf("toggle reaction on %s: %w", id, errOrMissing(err))
	}

	next, removed := c.ToggleReaction(emoji, uid)
	if err := s.store.Update(ctx, id, driven.CommentPatch{Reactions: &next}); err != nil {
		return fmt.Errorf("toggle reaction on %s: %w", id, err)
	}
	s.publish(ctx)

	if s.sync != nil {
		go s.sync.ReactionToggled(context.WithoutCancel(ctx), *c, emoji, removed)
	}

	return nil
}

// SetResolution transitions a thread between active and resolved and projects
// the change to the remote review thread.
func (s *CommentService) SetResolution(ctx context.Context, id string, resolved bool) error {
	c, err := s.store.Get(ctx, id)
	if err != nil || c == nil {
		return fmt.Errorf("set resolution on %s: %w", id, errOrMissing(err))
	}

	status := model.CommentStatusActive
	if resolved {
		status = model.CommentStatusResolved
	}
	if err := s.store.Update(ctx, id, driven.CommentPatch{Status: &status}); err != nil {
		return fmt.Errorf("set resolution on %s: %w", id, err)
	}
	s.publish(ctx)

	if s.sync != nil {
		go s.sync.ThreadResolutionChanged(context.WithoutCancel(ctx), *c, resolved)
	}

	return nil
}

// View returns the branch-filtered comment set for the current branch. A root
// is visible iff its branch matches; replies inherit visibility from their
// root regardless of their own branch field.
func (s *CommentService) View(ctx context.Context) ([]model.Comment, error) {
	all, err := s.store.ListByFile(ctx, s.session.Repo(), s.session.Path())
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return filterByBranch(all, s.session.Branch()), nil
}

// ActiveCount returns the number of visible root comments still active.
func (s *CommentService) ActiveCount(ctx context.Context) (int, error) {
	visible, err := s.View(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range visible {
		if c.IsRoot() && c.Status == model.CommentStatusActive {
			n++
		}
	}
	return n, nil
}

// FindByClick maps a clicked passage to the comment it most plausibly
// belongs to. Candidates are matched with the loose three-way substring rule;
// among multiple candidates the one whose original offset is nearest to
// clickOffset wins, which disambiguates overlapping anchors.
func (s *CommentService) FindByClick(ctx context.Context, clicked string, clickOffset int) (*model.Comment, error) {
	visible, err := s.View(ctx)
	if err != nil {
		return nil, err
	}

	var best *model.Comment
	bestDist := -1
	for i := range visible {
		c := visible[i]
		if !c.IsRoot() || !anchor.ClickMatches(c.AnchorText, clicked) {
			continue
		}
		dist := c.AnchorStart - clickOffset
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best = &visible[i]
			bestDist = dist
		}
	}
	return best, nil
}

// SweepOrphans recomputes orphan status for every active root comment on the
// current branch and transitions orphans to resolved. The sweep is keyed by
// (path, branch) and the content identity: it runs at most once per identity,
// so the status writes it causes cannot re-trigger it for the same content.
func (s *CommentService) SweepOrphans(ctx context.Context, content, contentID string) {
	branch := s.session.Branch()
	key := s.session.Path() + "\x00" + branch

	s.mu.Lock()
	if s.sweeps[key] == contentID && contentID != "" {
		s.mu.Unlock()
		return
	}
	s.sweeps[key] = contentID
	s.mu.Unlock()

	all, err := s.store.ListByFile(ctx, s.session.Repo(), s.session.Path())
	if err != nil {
		slog.Error("orphan sweep: list comments failed", "path", s.session.Path(), "error", err)
		return
	}

	resolved := model.CommentStatusResolved
	var orphaned int
	for _, c := range all {
		if !c.IsRoot() || c.Branch != branch || c.Status != model.CommentStatusActive {
			continue
		}
		if !anchor.IsOrphaned(content, c.AnchorText) {
			continue
		}
		if err := s.store.Update(ctx, c.ID, driven.CommentPatch{Status: &resolved}); err != nil {
			slog.Error("orphan sweep: resolve failed", "comment", c.ID, "error", err)
			continue
		}
		orphaned++
	}

	if orphaned > 0 {
		slog.Info("orphan sweep resolved comments",
			"path", s.session.Path(),
			"branch", branch,
			"orphaned", orphaned,
		)
		s.publish(ctx)
	}
}

// Comments returns the full unfiltered comment set for the document. Used by
// inbound sync to reconcile across branches.
func (s *CommentService) Comments(ctx context.Context) ([]model.Comment, error) {
	return s.store.ListByFile(ctx, s.session.Repo(), s.session.Path())
}

// ImportRemote persists a comment discovered by inbound sync. No outbound
// projection is triggered: the comment already exists remotely.
func (s *CommentService) ImportRemote(ctx context.Context, c model.Comment) (model.Comment, error) {
	created, err := s.store.Create(ctx, c)
	if err != nil {
		return model.Comment{}, fmt.Errorf("import remote comment: %w", err)
	}
	s.publish(ctx)
	return created, nil
}

// PatchRemoteLink records remote identity (comment ID and/or thread ID) on a
// local comment. Zero values leave the corresponding field untouched.
func (s *CommentService) PatchRemoteLink(ctx context.Context, id string, remoteID int64, threadID string) error {
	patch := driven.CommentPatch{}
	if remoteID != 0 {
		patch.RemoteID = &remoteID
	}
	if threadID != "" {
		patch.RemoteThreadID = &threadID
	}
	if patch.RemoteID == nil && patch.RemoteThreadID == nil {
		return nil
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		return fmt.Errorf("patch remote link on %s: %w", id, err)
	}
	s.publish(ctx)
	return nil
}

// SetStatusFromRemote applies a remotely observed resolution state without
// projecting it back outbound.
func (s *CommentService) SetStatusFromRemote(ctx context.Context, id string, status model.CommentStatus) error {
	if err := s.store.Update(ctx, id, driven.CommentPatch{Status: &status}); err != nil {
		return fmt.Errorf("set status on %s: %w", id, err)
	}
	s.publish(ctx)
	return nil
}

// publish pushes the full current set for the document to all subscribers.
func (s *CommentService) publish(ctx context.Context) {
	all, err := s.store.ListByFile(ctx, s.session.Repo(), s.session.Path())
	if err != nil {
		slog.Error("publish comments failed", "path", s.session.Path(), "error", err)
		return
	}

	s.mu.Lock()
	subs := make([]func([]model.Comment), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(all)
	}
}

// filterByBranch keeps roots whose branch matches and replies whose root is
// visible.
func filterByBranch(all []model.Comment, branch string) []model.Comment {
	visibleRoots := make(map[string]bool, len(all))
	for _, c := range all {
		if c.IsRoot() && c.Branch == branch {
			visibleRoots[c.ID] = true
		}
	}

	out := make([]model.Comment, 0, len(all))
	for _, c := range all {
		if c.IsRoot() {
			if visibleRoots[c.ID] {
				out = append(out, c)
			}
		} else if visibleRoots[c.ParentID] {
			out = append(out, c)
		}
	}
	return out
}

// errCommentNotFound reports an absent comment where the store read itself
// succeeded.
var errCommentNotFound = errors.New("comment not found")

// errOrMissing keeps store errors distinct from the not-found case.
func errOrMissing(err error) error {
	if err != nil {
		return err
	}
	return errCommentNotFound
}
