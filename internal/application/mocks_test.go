package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

// memStore is an in-memory CommentStore for service tests.
type memStore struct {
	mu     sync.Mutex
	nextID int
	order  []string
	byID   map[string]model.Comment

	createErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]model.Comment)}
}

func (m *memStore) Create(_ context.Context, c model.Comment) (model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return model.Comment{}, m.createErr
	}
	m.nextID++
	c.ID = fmt.Sprintf("c%d", m.nextID)
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	m.byID[c.ID] = c
	m.order = append(m.order, c.ID)
	return c, nil
}

func (m *memStore) Get(_ context.Context, id string) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) ListByFile(_ context.Context, repo, path string) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Comment
	for _, id := range m.order {
		c, ok := m.byID[id]
		if ok && c.Repo == repo && c.Path == path {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, id string, patch driven.CommentPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	c, ok := m.byID[id]
	if !ok {
		return errors.New("comment not found")
	}
	if patch.Content != nil {
		c.Content = *patch.Content
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.Reactions != nil {
		c.Reactions = *patch.Reactions
	}
	if patch.RemoteID != nil {
		c.RemoteID = *patch.RemoteID
	}
	if patch.RemoteThreadID != nil {
		c.RemoteThreadID = *patch.RemoteThreadID
	}
	c.UpdatedAt = time.Now().UTC()
	m.byID[id] = c
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	for _, cid := range m.order {
		c, ok := m.byID[cid]
		if ok && c.ParentID == id {
			delete(m.byID, cid)
		}
	}
	return nil
}

// get is a test convenience that bypasses the port's pointer contract.
func (m *memStore) get(id string) model.Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

// fakeReview records ReviewAPI calls and serves canned responses.
type fakeReview struct {
	mu sync.Mutex

	created   []createCall
	replies   []replyCall
	updates   []int64
	deletes   []int64
	reactions []reactionCall
	resolved  []resolutionCall

	nextRemoteID int64
	createErr    error
	replyErr     error
	listResult   []driven.RemoteComment
	listErr      error
	threads      map[int64]driven.ReviewThread
	threadsErr   error
}

type createCall struct {
	prNumber  int
	body      string
	commitSHA string
	path      string
	line      int
	startLine int
}

type replyCall struct {
	parentID int64
	body     string
}

type reactionCall struct {
	commentID int64
	kind      string
	removed   bool
}

type resolutionCall struct {
	threadID string
	resolved bool
}

func newFakeReview() *fakeReview {
	return &fakeReview{nextRemoteID: 100}
}

func (f *fakeReview) CreateComment(_ context.Context, _ string, prNumber int, body, commitSHA, path string, line, startLine int) (*driven.RemoteComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, createCall{prNumber, body, commitSHA, path, line, startLine})
	f.nextRemoteID++
	return &driven.RemoteComment{ID: f.nextRemoteID, Body: body, Path: path, Line: line}, nil
}

func (f *fakeReview) ReplyComment(_ context.Context, _ string, _ int, parentID int64, body string) (*driven.RemoteComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	f.replies = append(f.replies, replyCall{parentID, body})
	f.nextRemoteID++
	return &driven.RemoteComment{ID: f.nextRemoteID, Body: body, InReplyTo: parentID}, nil
}

func (f *fakeReview) UpdateComment(_ context.Context, _ string, commentID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, commentID)
	return nil
}

func (f *fakeReview) DeleteComment(_ context.Context, _ string, commentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, commentID)
	return nil
}

func (f *fakeReview) ListComments(_ context.Context, _ string, _ int) ([]driven.RemoteComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]driven.RemoteComment(nil), f.listResult...), nil
}

func (f *fakeReview) FetchThreads(_ context.Context, _ string, _ int) (map[int64]driven.ReviewThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.threadsErr != nil {
		return nil, f.threadsErr
	}
	out := make(map[int64]driven.ReviewThread, len(f.threads))
	for k, v := range f.threads {
		out[k] = v
	}
	return out, nil
}

func (f *fakeReview) SetThreadResolution(_ context.Context, threadID string, resolved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, resolutionCall{threadID, resolved})
	return nil
}

func (f *fakeReview) AddReaction(_ context.Context, _ string, commentID int64, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reactionCall{commentID, kind, false})
	return nil
}

func (f *fakeReview) RemoveReaction(_ context.Context, _ string, commentID int64, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reactionCall{commentID, kind, true})
	return nil
}

func (f *fakeReview) createCalls() []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createCall(nil), f.created...)
}

func (f *fakeReview) replyCalls() []replyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]replyCall(nil), f.replies...)
}

// fakeContent serves a fixed document and records writes.
type fakeContent struct {
	mu sync.Mutex

	content  string
	sha      string
	fetchErr error

	updateErr  error
	commits    []commitCall
	commitSeq  int
	lastBranch string
}

type commitCall struct {
	content string
	sha     string
	branch  string
}

func (f *fakeContent) FetchContent(ctx context.Context, _, _, _ string) (*driven.FileContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &driven.FileContent{Content: f.content, SHA: f.sha}, nil
}

func (f *fakeContent) UpdateContent(ctx context.Context, _, _, content, _, sha, branch string) (*driven.CommitResult, error) {
	// An HTTP-backed implementation fails immediately on a dead context.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.commits = append(f.commits, commitCall{content, sha, branch})
	f.commitSeq++
	f.lastBranch = branch
	return &driven.CommitResult{
		ContentSHA: fmt.Sprintf("blob-%d", f.commitSeq),
		CommitSHA:  fmt.Sprintf("commit-%d", f.commitSeq),
	}, nil
}

// fakeBranches serves a fixed branch list and records creations.
type fakeBranches struct {
	mu        sync.Mutex
	branches  []driven.Branch
	created   []driven.Branch
	createErr error
}

func (f *fakeBranches) ListBranches(_ context.Context, _ string) ([]driven.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]driven.Branch(nil), f.branches...), nil
}

func (f *fakeBranches) CreateBranch(_ context.Context, _, name, fromSHA string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, driven.Branch{Name: name, SHA: fromSHA})
	f.branches = append(f.branches, driven.Branch{Name: name, SHA: fromSHA})
	return nil
}

// fakePRs records PR creations and serves a configurable open-PR lookup.
type fakePRs struct {
	mu        sync.Mutex
	open      *model.ActivePullRequest
	createErr error
	created   int
	nextNum   int
}

func (f *fakePRs) CreatePR(_ context.Context, _, _, _, head, base string) (*model.ActivePullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	f.nextNum++
	return &model.ActivePullRequest{
		Number:  f.nextNum,
		HeadSHA: "head-" + head,
		BaseRef: base,
		HTMLURL: fmt.Sprintf("https://example.test/pr/%d", f.nextNum),
	}, nil
}

func (f *fakePRs) FindOpenPR(_ context.Context, _, _ string) (*model.ActivePullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open == nil {
		return nil, nil
	}
	pr := *f.open
	return &pr, nil
}

func (f *fakePRs) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

var (
	_ driven.CommentStore  = (*memStore)(nil)
	_ driven.ReviewAPI     = (*fakeReview)(nil)
	_ driven.ContentStore  = (*fakeContent)(nil)
	_ driven.BranchService = (*fakeBranches)(nil)
	_ driven.PRService     = (*fakePRs)(nil)
)
