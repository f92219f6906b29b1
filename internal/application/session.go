// Package application contains use-case orchestration services.
package application

import (
	"sync"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
)

// Session is the explicit application-state container for one document view:
// the repository and file being annotated, the branch currently viewed, and
// the active pull request snapshot. Components receive it by reference at
// construction and observe changes through OnChange rather than ambient
// global access.
type Session struct {
	repo string
	path string
	user model.Author

	mu        sync.RWMutex
	branch    string
	activePR  *model.ActivePullRequest
	observers []func()
}

// NewSession creates a session rooted at the given repository, file path,
// and initial branch.
func NewSession(repo, path, branch string, user model.Author) *Session {
	return &Session{
		repo:   repo,
		path:   path,
		user:   user,
		branch: branch,
	}
}

// Repo returns the "owner/name" repository identifier.
func (s *Session) Repo() string { return s.repo }

// Path returns the document file path.
func (s *Session) Path() string { return s.path }

// User returns the acting user's identity.
func (s *Session) User() model.Author { return s.user }

// Branch returns the currently viewed branch.
func (s *Session) Branch() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.branch
}

// SetBranch switches the viewed branch. The active pull request is cleared:
// a PR is branch-scoped and never carried across a branch change.
func (s *Session) SetBranch(branch string) {
	s.mu.Lock()
	if s.branch == branch {
		s.mu.Unlock()
		return
	}
	s.branch = branch
	s.activePR = nil
	s.mu.Unlock()

	s.notify()
}

// ActivePR returns a copy of the active pull request snapshot, or nil when
// no pull request is known for the current branch.
func (s *Session) ActivePR() *model.ActivePullRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activePR == nil {
		return nil
	}
	pr := *s.activePR
	return &pr
}

// SetActivePR replaces the active pull request snapshot wholesale.
func (s *Session) SetActivePR(pr *model.ActivePullRequest) {
	s.mu.Lock()
	if pr == nil {
		s.activePR = nil
	} else {
		cp := *pr
		s.activePR = &cp
	}
	s.mu.Unlock()

	s.notify()
}

// AdvancePRHead updates the tracked head commit of the active pull request so
// subsequent remote comment placement targets the latest commit. No-op when
// no pull request is active.
func (s *Session) AdvancePRHead(sha string) {
	s.mu.Lock()
	if s.activePR == nil {
		s.mu.Unlock()
		return
	}
	next := s.activePR.WithHeadSHA(sha)
	s.activePR = &next
	s.mu.Unlock()

	s.notify()
}

// OnChange registers an observer invoked after every branch or PR change.
// Observers are called outside the session lock and must not block.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.RLock()
	obs := append([]func(){}, s.observers...)
	s.mu.RUnlock()

	for _, fn := range obs {
		fn()
	}
}
