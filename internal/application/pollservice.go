package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

// PollService pulls remote-authored review comments into the local comment
// store. It is triggered once when a pull request is first detected for the
// document (keyed by PR number and file path so re-detection does not
// re-trigger), on window refocus, and on a fixed interval while a PR is
// active. A single in-flight flag suppresses overlapping reconciliations:
// triggers that arrive during a run are dropped, not queued -- staleness is
// preferred over unbounded concurrent passes. Failures are swallowed; the
// next trigger is the retry.
type PollService struct {
	review   driven.ReviewAPI
	comments *CommentService
	bridge   *IdentityBridge
	session  *Session
	interval time.Duration

	refreshCh chan struct{}
	detectCh  chan struct{}
	inFlight  atomic.Bool
	seeded    map[string]bool // "prNumber:path" -> initial poll already ran. Loop-owned.
}

// NewPollService creates the inbound sync poller and registers it as a
// session observer so PR detection triggers an immediate first poll.
func NewPollService(
	review driven.ReviewAPI,
	comments *CommentService,
	bridge *IdentityBridge,
	session *Session,
	interval time.Duration,
) *PollService {
	s := &PollService{
		review:    review,
		comments:  comments,
		bridge:    bridge,
		session:   session,
		interval:  interval,
		refreshCh: make(chan struct{}, 1),
		detectCh:  make(chan struct{}, 1),
		seeded:    make(map[string]bool),
	}

	session.OnChange(func() {
		select {
		case s.detectCh <- struct{}{}:
		default:
		}
	})

	return s
}

// Start runs the polling loop until the context is canceled.
func (s *PollService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("inbound sync poller stopped")
			return
		case <-ticker.C:
			go s.Poll(ctx)
		case <-s.refreshCh:
			go s.Poll(ctx)
		case <-s.detectCh:
			pr := s.session.ActivePR()
			if pr == nil {
				continue
			}
			key := fmt.Sprintf("%d:%s", pr.Number, s.session.Path())
			if s.seeded[key] {
				continue
			}
			s.seeded[key] = true
			go s.Poll(ctx)
		}
	}
}

// Refresh requests an immediate poll, e.g. on window or tab refocus. If a
// poll is already executing the request is dropped.
func (s *PollService) Refresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// Poll runs a single reconciliation pass. It is a no-op without an active
// pull request or while another pass is in flight.
func (s *PollService) Poll(ctx context.Context) {
	pr := s.session.ActivePR()
	if pr == nil {
		return
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		slog.Debug("inbound poll dropped, already in flight", "pr", pr.Number)
		return
	}
	defer s.inFlight.Store(false)

	s.reconcile(ctx, pr)
}

// reconcile pulls the remote comment set and folds remote-only changes into
// the local store: new remote-authored comments are imported, thread IDs are
// propagated onto synced roots, and remote resolution state wins.
func (s *PollService) reconcile(ctx context.Context, pr *model.ActivePullRequest) {
	repo := s.session.Repo()
	path := s.session.Path()

	remote, err := s.review.ListComments(ctx, repo, pr.Number)
	if err != nil {
		slog.Warn("inbound poll: list remote comments failed", "pr", pr.Number, "error", err)
		return
	}

	threads, err := s.review.FetchThreads(ctx, repo, pr.Number)
	if err != nil {
		slog.Warn("inbound poll: fetch threads failed", "pr", pr.Number, "error", err)
		threads = nil
	}

	local, err := s.comments.Comments(ctx)
	if err != nil {
		slog.Warn("inbound poll: list local comments failed", "error", err)
		return
	}

	byRemoteID := make(map[int64]model.Comment, len(local))
	for _, c := range local {
		if c.HasRemote() {
			byRemoteID[c.RemoteID] = c
		}
	}

	var imported int
	// Roots first so replies imported in the same pass can find their parent.
	for _, pass := range []bool{true, false} {
		for _, rc := range remote {
			if rc.Path != path {
				continue
			}
			if (rc.InReplyTo == 0) != pass {
				continue
			}
			if _, known := byRemoteID[rc.ID]; known {
				continue
			}
			// The store's RemoteID lags the remote create by one write. A
			// remote ID the bridge already recorded belongs to a local
			// comment whose link write is still in flight; importing it
			// would turn one comment into two.
			if s.bridge.RecordedRemote(rc.ID) {
				continue
			}

			c := s.remoteToLocal(rc, threads)
			if rc.InReplyTo != 0 {
				parent, found := byRemoteID[rc.InReplyTo]
				if !found {
					// Parent not reconciled yet; pick it up next pass.
					continue
				}
				c.ParentID = parent.ID
			}

			created, err := s.comments.ImportRemote(ctx, c)
			if err != nil {
				slog.Warn("inbound poll: import failed", "remote", rc.ID, "error", err)
				continue
			}
			byRemoteID[rc.ID] = created
			imported++
		}
	}

	// Propagate thread identity and resolution onto synced roots.
	var updated int
	for remoteID, th := range threads {
		c, ok := byRemoteID[remoteID]
		if !ok || !c.IsRoot() {
			continue
		}

		if th.ID != "" && c.RemoteThreadID != th.ID {
			if err := s.comments.PatchRemoteLink(ctx, c.ID, 0, th.ID); err != nil {
				slog.Warn("inbound poll: patch thread id failed", "comment", c.ID, "error", err)
			} else {
				updated++
			}
		}

		want := model.CommentStatusActive
		if th.IsResolved {
			want = model.CommentStatusResolved
		}
		if c.Status != want {
			if err := s.comments.SetStatusFromRemote(ctx, c.ID, want); err != nil {
				slog.Warn("inbound poll: apply resolution failed", "comment", c.ID, "error", err)
			} else {
				updated++
			}
		}
	}

	slog.Debug("inbound poll complete",
		"pr", pr.Number,
		"remote", len(remote),
		"imported", imported,
		"updated", updated,
	)
}

// remoteToLocal maps a remote review comment to a local comment record.
// Remote-authored comments carry no text anchor; with an empty anchor they
// are exempt from orphan sweeps, which is correct since their placement
// belongs to the remote diff, not the local document text.
func (s *PollService) remoteToLocal(rc driven.RemoteComment, threads map[int64]driven.ReviewThread) model.Comment {
	status := model.CommentStatusActive
	threadID := ""
	if th, ok := threads[rc.ID]; ok {
		threadID = th.ID
		if th.IsResolved {
			status = model.CommentStatusResolved
		}
	}

	return model.Comment{
		Repo:           s.session.Repo(),
		Path:           rc.Path,
		Branch:         s.session.Branch(),
		Author:         model.Author{ExternalUsername: rc.Author, DisplayName: rc.Author},
		Content:        rc.Body,
		Type:           model.CommentTypeComment,
		Reactions:      map[string][]string{},
		RemoteID:       rc.ID,
		RemoteThreadID: threadID,
		Status:         status,
	}
}
