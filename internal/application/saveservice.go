package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

// SaveConfig tunes the autosave orchestrator.
type SaveConfig struct {
	Strategy      model.SaveStrategy
	AutoPR        bool          // Auto-create a PR after the first commit to a new branch.
	Debounce      time.Duration // Idle window before a scheduled save fires.
	StatusDisplay time.Duration // How long saved/error status is shown before reverting to idle.
	CommitMessage string
	BranchPrefix  string // New branch names are "<prefix>/<user>-<timestamp>".
	BaseBranch    string // Branch auto-created PRs merge into.
}

// SaveService orchestrates document saves: the idle-debounced autosave timer,
// the lazy branch decision, the content write, and the one-shot latched
// auto-PR creation. One instance serves one document session.
type SaveService struct {
	content  driven.ContentStore
	branches driven.BranchService
	prs      driven.PRService
	session  *Session
	comments *CommentService
	cfg      SaveConfig
	now      func() time.Time

	mu            sync.Mutex
	timer         *time.Timer
	clearTimer    *time.Timer
	pending       string
	hasPending    bool
	fileSHA       string // Blob SHA of the last fetched/committed file version.
	branchCreated bool   // An isolated branch was already created this session.
	autoPRDone    bool   // One-shot latch; reset when PR creation fails.
	state         model.SaveState
}

// NewSaveService creates the orchestrator. LoadDocument should be called once
// before saves are scheduled so the file blob SHA is known.
func NewSaveService(
	content driven.ContentStore,
	branches driven.BranchService,
	prs driven.PRService,
	session *Session,
	comments *CommentService,
	cfg SaveConfig,
) *SaveService {
	if cfg.CommitMessage == "" {
		cfg.CommitMessage = "Update document"
	}
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = "marginalia"
	}
	return &SaveService{
		content:  content,
		branches: branches,
		prs:      prs,
		session:  session,
		comments: comments,
		cfg:      cfg,
		now:      time.Now,
		state:    model.SaveState{Status: model.SaveStatusIdle},
	}
}

// LoadDocument fetches the document at the current branch, records its blob
// SHA for later writes, detects an open pull request for the branch, and runs
// the orphan sweep against the loaded content. Returns the document text.
func (s *SaveService) LoadDocument(ctx context.Context) (string, error) {
	fc, err := s.content.FetchContent(ctx, s.session.Repo(), s.session.Path(), s.session.Branch())
	if err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}

	s.mu.Lock()
	s.fileSHA = fc.SHA
	s.mu.Unlock()

	if pr, err := s.prs.FindOpenPR(ctx, s.session.Repo(), s.session.Branch()); err != nil {
		slog.Warn("pr detection failed", "branch", s.session.Branch(), "error", err)
	} else if pr != nil {
		s.session.SetActivePR(pr)
		slog.Info("active pr detected", "pr", pr.Number, "head", pr.HeadSHA)
	}

	s.comments.SweepOrphans(ctx, fc.Content, fc.SHA)

	return fc.Content, nil
}

// ScheduleSave arms the debounced autosave timer with the given content.
// Each call replaces the pending content and restarts the idle window.
func (s *SaveService) ScheduleSave(ctx context.Context, content string) {
	// The timer outlives the caller: an HTTP request context is canceled the
	// moment the handler returns, long before the idle window elapses. Keep
	// the caller's values but not its cancellation.
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = content
	s.hasPending = true

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		if !s.hasPending {
			s.mu.Unlock()
			return
		}
		content := s.pending
		s.hasPending = false
		s.mu.Unlock()

		if err := s.save(ctx, content); err != nil {
			slog.Error("autosave failed", "error", err)
		}
	})
}

// SaveNow performs an explicit save, cancelling any pending debounced
// autosave outright. Unlike autosave, the error is returned to the caller.
func (s *SaveService) SaveNow(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.hasPending = false
	s.mu.Unlock()

	return s.save(ctx, content)
}

// State returns the current save-status snapshot.
func (s *SaveService) State() model.SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// save runs one full save invocation: branch decision, content write, and
// one-shot auto-PR creation. Branch-creation failure aborts the save before
// any content write; content-write failure leaves the caller's buffer
// untouched for retry; PR-creation failure is non-fatal and never rolls back
// the committed content.
func (s *SaveService) save(ctx context.Context, content string) error {
	s.setStatus(model.SaveStatusSaving, "")

	firstCommitToNewBranch, err := s.ensureBranch(ctx)
	if err != nil {
		s.setStatus(model.SaveStatusError, err.Error())
		return err
	}

	branch := s.session.Branch()
	s.mu.Lock()
	sha := s.fileSHA
	s.mu.Unlock()

	res, err := s.content.UpdateContent(ctx, s.session.Repo(), s.session.Path(), content, s.cfg.CommitMessage, sha, branch)
	if err != nil {
		err = fmt.Errorf("commit content to %s: %w", branch, err)
		s.setStatus(model.SaveStatusError, err.Error())
		return err
	}

	s.mu.Lock()
	s.fileSHA = res.ContentSHA
	s.mu.Unlock()

	// Subsequent remote comment placement must target the latest commit.
	s.session.AdvancePRHead(res.CommitSHA)

	s.comments.SweepOrphans(ctx, content, res.CommitSHA)

	if firstCommitToNewBranch {
		s.maybeCreatePR(ctx, branch)
	}

	s.setStatus(model.SaveStatusSaved, "")
	slog.Info("document saved", "branch", branch, "commit", res.CommitSHA)
	return nil
}

// ensureBranch creates and switches to an isolated branch when the strategy
// demands one and none has been created this session. The switch happens
// before any content write so content is always committed to the branch that
// will persist it. Returns whether this save is the first commit to a newly
// created branch.
func (s *SaveService) ensureBranch(ctx context.Context) (bool, error) {
	if s.cfg.Strategy != model.SaveStrategyBranch {
		return false, nil
	}

	s.mu.Lock()
	created := s.branchCreated
	s.mu.Unlock()
	if created {
		// Branch exists from an earlier save; the first-commit PR decision is
		// owned by the latch, not by this flag.
		return true, nil
	}

	current := s.session.Branch()
	headSHA, err := s.branchHead(ctx, current)
	if err != nil {
		return false, fmt.Errorf("resolve head of %s: %w", current, err)
	}

	name := fmt.Sprintf("%s/%s-%d", s.cfg.BranchPrefix, s.session.User().ExternalUsername, s.now().Unix())
	if err := s.branches.CreateBranch(ctx, s.session.Repo(), name, headSHA); err != nil {
		return false, fmt.Errorf("create branch %s: %w", name, err)
	}

	// The blob at the new branch head is identical to the one just fetched,
	// so the branch switch must not trigger a redundant content reload.
	s.session.SetBranch(name)

	s.mu.Lock()
	s.branchCreated = true
	s.mu.Unlock()

	slog.Info("created isolated branch", "branch", name, "from", headSHA)
	return true, nil
}

// maybeCreatePR auto-creates a pull request from the new branch, at most once
// per session. A failed attempt resets the latch so a later save may retry;
// it never rolls back the already-committed content.
func (s *SaveService) maybeCreatePR(ctx context.Context, branch string) {
	if !s.cfg.AutoPR {
		return
	}
	if s.session.ActivePR() != nil {
		return
	}

	s.mu.Lock()
	if s.autoPRDone {
		s.mu.Unlock()
		return
	}
	s.autoPRDone = true
	s.mu.Unlock()

	title := fmt.Sprintf("Edits to %s", s.session.Path())
	body := fmt.Sprintf("Document edits from %s via marginalia.", s.session.User().DisplayName)
	pr, err := s.prs.CreatePR(ctx, s.session.Repo(), title, body, branch, s.baseRef())
	if err != nil {
		s.mu.Lock()
		s.autoPRDone = false
		s.mu.Unlock()
		slog.Warn("auto pr creation failed, will retry on next save", "branch", branch, "error", err)
		return
	}

	s.session.SetActivePR(pr)
	slog.Info("auto-created pull request", "pr", pr.Number, "url", pr.HTMLURL)
}

// baseRef is the branch pull requests merge into.
func (s *SaveService) baseRef() string {
	if pr := s.session.ActivePR(); pr != nil && pr.BaseRef != "" {
		return pr.BaseRef
	}
	return s.cfg.BaseBranch
}

// branchHead resolves the head commit SHA of the named branch.
func (s *SaveService) branchHead(ctx context.Context, name string) (string, error) {
	branches, err := s.branches.ListBranches(ctx, s.session.Repo())
	if err != nil {
		return "", err
	}
	for _, b := range branches {
		if b.Name == name {
			return b.SHA, nil
		}
	}
	return "", fmt.Errorf("branch %s not found", name)
}

// setStatus replaces the save-status snapshot. Saved and error states are
// auto-cleared back to idle after the display window; a newer status change
// cancels the pending clear.
func (s *SaveService) setStatus(status model.SaveStatus, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = model.SaveState{Status: status, Error: msg, UpdatedAt: s.now()}

	if s.clearTimer != nil {
		s.clearTimer.Stop()
		s.clearTimer = nil
	}
	if status == model.SaveStatusSaved || status == model.SaveStatusError {
		s.clearTimer = time.AfterFunc(s.cfg.StatusDisplay, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.state.Status == status {
				s.state = model.SaveState{Status: model.SaveStatusIdle, UpdatedAt: s.now()}
			}
		})
	}
}
