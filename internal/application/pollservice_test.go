package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/marginalia/internal/anchor"
	"github.com/ericfisherdev/marginalia/internal/domain/model"
	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

type pollFixture struct {
	svc      *PollService
	comments *CommentService
	store    *memStore
	session  *Session
	review   *fakeReview
	bridge   *IdentityBridge
}

func newPollFixture(t *testing.T) *pollFixture {
	t.Helper()

	store := newMemStore()
	session := NewSession("owner/repo", "README.md", "main", model.Author{ExternalUsername: "testuser"})
	comments := NewCommentService(store, session)
	review := newFakeReview()
	bridge := NewIdentityBridge(nil)
	svc := NewPollService(review, comments, bridge, session, time.Minute)

	return &pollFixture{svc: svc, comments: comments, store: store, session: session, review: review, bridge: bridge}
}

func TestPollService_NoActivePRSkips(t *testing.T) {
	f := newPollFixture(t)
	f.review.listResult = []driven.RemoteComment{{ID: 1, Author: "reviewer", Body: "hi", Path: "README.md"}}

	f.svc.Poll(context.Background())

	all, err := f.comments.Comments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPollService_ImportsRemoteRootsAndReplies(t *testing.T) {
	f := newPollFixture(t)
	f.session.SetActivePR(&model.ActivePullRequest{Number: 7, HeadSHA: "sha"})

	f.review.listResult = []driven.RemoteComment{
		// Reply listed before its root to exercise the two-pass import.
		{ID: 2, Author: "reviewer", Body: "agreed", Path: "README.md", InReplyTo: 1},
		{ID: 1, Author: "reviewer", Body: "typo here", Path: "README.md", Line: 3},
		{ID: 3, Author: "reviewer", Body: "other file", Path: "OTHER.md", Line: 1},
	}

	f.svc.Poll(context.Background())

	all, err := f.comments.Comments(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2, "comments on other files are ignored")

	var root, reply model.Comment
	for _, c := range all {
		if c.IsRoot() {
			root = c
		} else {
			reply = c
		}
	}

	assert.Equal(t, int64(1), root.RemoteID)
	assert.Equal(t, "reviewer", root.Author.ExternalUsername)
	assert.Empty(t, root.AnchorText, "remote-authored comments carry no text anchor")
	assert.Equal(t, "main", root.Branch)

	assert.Equal(t, int64(2), reply.RemoteID)
	assert.Equal(t, root.ID, reply.ParentID)
}

func TestPollService_DoesNotReimportKnownComments(t *testing.T) {
	f := newPollFixture(t)
	f.session.SetActivePR(&model.ActivePullRequest{Number: 7, HeadSHA: "sha"})
	ctx := context.Background()

	local, err := f.comments.Create(ctx, CommentDraft{Content: "mine", Anchor: anchor.Anchor{Text: "x"}})
	require.NoError(t, err)
	require.NoError(t, f.comments.PatchRemoteLink(ctx, local.ID, 10, ""))

	f.review.listResult = []driven.RemoteComment{
		{ID: 10, Author: "testuser", Body: "mine", Path: "README.md"},
	}

	f.svc.Poll(ctx)
	f.svc.Poll(ctx)

	all, err := f.comments.Comments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPollService_DoesNotImportInFlightOutboundCreate(t *testing.T) {
	f := newPollFixture(t)
	f.session.SetActivePR(&model.ActivePullRequest{Number: 7, HeadSHA: "sha"})
	ctx := context.Background()

	local, err := f.comments.Create(ctx, CommentDraft{Content: "mine", Anchor: anchor.Anchor{Text: "x"}})
	require.NoError(t, err)

	// Outbound create returned remote ID 999, but the store write carrying
	// it has not landed: only the bridge knows the mapping. The remote list
	// already shows the comment.
	f.bridge.Record(local.ID, 999)
	f.review.listResult = []driven.RemoteComment{
		{ID: 999, Author: "testuser", Body: "mine", Path: "README.md"},
	}

	f.svc.Poll(ctx)

	all, err := f.comments.Comments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "a comment mid-sync must not be imported as a second record")
	assert.Equal(t, local.ID, all[0].ID)
}

func TestPollService_PropagatesThreadIdentityAndResolution(t *testing.T) {
	f := newPollFixture(t)
	f.session.SetActivePR(&model.ActivePullRequest{Number: 7, HeadSHA: "sha"})
	ctx := context.Background()

	local, err := f.comments.Create(ctx, CommentDraft{Content: "mine", Anchor: anchor.Anchor{Text: "x"}})
	require.NoError(t, err)
	require.NoError(t, f.comments.PatchRemoteLink(ctx, local.ID, 10, ""))

	f.review.listResult = []driven.RemoteComment{
		{ID: 10, Author: "testuser", Body: "mine", Path: "README.md"},
	}
	f.review.threads = map[int64]driven.ReviewThread{
		10: {ID: "THREAD_NODE", IsResolved: true},
	}

	f.svc.Poll(ctx)

	stored := f.store.get(local.ID)
	assert.Equal(t, "THREAD_NODE", stored.RemoteThreadID)
	assert.Equal(t, model.CommentStatusResolved, stored.Status, "remote resolution state wins")
}

func TestPollService_ImportedCommentsCarryThreadState(t *testing.T) {
	f := newPollFixture(t)
	f.session.SetActivePR(&model.ActivePullRequest{Number: 7, HeadSHA: "sha"})

	f.review.listResult = []driven.RemoteComment{
		{ID: 20, Author: "reviewer", Body: "done ages ago", Path: "README.md"},
	}
	f.review.threads = map[int64]driven.ReviewThread{
		20: {ID: "NODE_20", IsResolved: true},
	}

	f.svc.Poll(context.Background())

	all, err := f.comments.Comments(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "NODE_20", all[0].RemoteThreadID)
	assert.Equal(t, model.CommentStatusResolved, all[0].Status)
}

func TestPollService_InFlightPollDropsOverlap(t *testing.T) {
	f := newPollFixture(t)
	f.session.SetActivePR(&model.ActivePullRequest{Number: 7, HeadSHA: "sha"})
	f.review.listResult = []driven.RemoteComment{
		{ID: 1, Author: "reviewer", Body: "hi", Path: "README.md"},
	}

	f.svc.inFlight.Store(true)
	f.svc.Poll(context.Background())

	all, err := f.comments.Comments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "overlapping polls are dropped, not queued")

	f.svc.inFlight.Store(false)
	f.svc.Poll(context.Background())
	all, err = f.comments.Comments(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPollService_PRDetectionTriggersInitialPoll(t *testing.T) {
	f := newPollFixture(t)
	f.review.listResult = []driven.RemoteComment{
		{ID: 1, Author: "reviewer", Body: "hi", Path: "README.md"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.svc.Start(ctx)

	f.session.SetActivePR(&model.ActivePullRequest{Number: 7, HeadSHA: "sha"})

	require.Eventually(t, func() bool {
		all, err := f.comments.Comments(context.Background())
		return err == nil && len(all) == 1
	}, time.Second, 5*time.Millisecond)

	// Re-detection of the same PR does not trigger another seed poll; the
	// imported set stays stable.
	f.session.SetActivePR(&model.ActivePullRequest{Number: 7, HeadSHA: "sha2"})
	time.Sleep(50 * time.Millisecond)

	all, err := f.comments.Comments(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPollService_RefreshIsNonBlocking(t *testing.T) {
	f := newPollFixture(t)
	done := make(chan struct{})
	go func() {
		f.svc.Refresh()
		f.svc.Refresh()
		f.svc.Refresh()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Refresh blocked without a running loop")
	}
}
