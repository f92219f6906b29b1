package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

// CreateComment creates a line-anchored review comment on a pull request,
// outside of a formal review. startLine is 0 for single-line comments.
func (c *Client) CreateComment(ctx context.Context, repo string, prNumber int, body, commitSHA, path string, line, startLine int) (*driven.RemoteComment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	comment := &gh.PullRequestComment{
		Body:     gh.Ptr(body),
		CommitID: gh.Ptr(commitSHA),
		Path:     gh.Ptr(path),
		Line:     gh.Ptr(line),
		Side:     gh.Ptr("RIGHT"),
	}
	if startLine > 0 && startLine < line {
		comment.StartLine = gh.Ptr(startLine)
		comment.StartSide = gh.Ptr("RIGHT")
	}

	created, resp, err := c.gh.PullRequests.CreateComment(ctx, owner, name, prNumber, comment)
	if err != nil {
		return nil, fmt.Errorf("creating review comment on %s#%d: %w", repo, prNumber, err)
	}

	logRateLimit(resp, repo+"/create-review-comment", 0, 1)

	rc := mapRemoteComment(created)
	return &rc, nil
}

// ReplyComment replies to the review thread rooted at parentID.
// parentID must be the root comment ID of the thread.
func (c *Client) ReplyComment(ctx context.Context, repo string, prNumber int, parentID int64, body string) (*driven.RemoteComment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	created, resp, err := c.gh.PullRequests.CreateCommentInReplyTo(ctx, owner, name, prNumber, body, parentID)
	if err != nil {
		return nil, fmt.Errorf("replying to comment %d on %s#%d: %w", parentID, repo, prNumber, err)
	}

	logRateLimit(resp, repo+"/reply-comment", 0, 1)

	rc := mapRemoteComment(created)
	return &rc, nil
}

// UpdateComment replaces the body of an existing review comment.
func (c *Client) UpdateComment(ctx context.Context, repo string, commentID int64, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.PullRequests.EditComment(ctx, owner, name, commentID, &gh.PullRequestComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("editing review comment %d in %s: %w", commentID, repo, err)
	}

	logRateLimit(resp, repo+"/edit-review-comment", 0, 1)
	return nil
}

// DeleteComment removes a review comment.
func (c *Client) DeleteComment(ctx context.Context, repo string, commentID int64) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	resp, err := c.gh.PullRequests.DeleteComment(ctx, owner, name, commentID)
	if err != nil {
		return fmt.Errorf("deleting review comment %d in %s: %w", commentID, repo, err)
	}

	logRateLimit(resp, repo+"/delete-review-comment", 0, 1)
	return nil
}

// ListComments retrieves all review comments (inline code comments) for a
// pull request. It handles pagination automatically.
func (c *Client) ListComments(ctx context.Context, repo string, prNumber int) ([]driven.RemoteComment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	comments := []driven.RemoteComment{}
	for {
		page, resp, err := c.gh.PullRequests.ListComments(ctx, owner, name, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing review comments for %s#%d (page %d): %w", repo, prNumber, opts.Page, err)
		}

		logRateLimit(resp, repo+"/review-comments", opts.Page, len(page))

		for _, comment := range page {
			comments = append(comments, mapRemoteComment(comment))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return comments, nil
}

// AddReaction adds a reaction of the given kind to a review comment.
// kind is a GitHub reaction content string ("+1", "heart", "eyes", ...).
func (c *Client) AddReaction(ctx context.Context, repo string, commentID int64, kind string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.Reactions.CreatePullRequestCommentReaction(ctx, owner, name, commentID, kind)
	if err != nil {
		return fmt.Errorf("adding %s reaction to comment %d in %s: %w", kind, commentID, repo, err)
	}

	logRateLimit(resp, repo+"/add-reaction", 0, 1)
	return nil
}

// RemoveReaction removes the authenticated user's reaction of the given kind
// from a review comment. The reaction ID is looked up first since the delete
// endpoint addresses reactions, not (user, kind) pairs.
func (c *Client) RemoveReaction(ctx context.Context, repo string, commentID int64, kind string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	opts := &gh.ListReactionOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		reactions, resp, err := c.gh.Reactions.ListPullRequestCommentReactions(ctx, owner, name, commentID, opts)
		if err != nil {
			return fmt.Errorf("listing reactions on comment %d in %s: %w", commentID, repo, err)
		}

		for _, r := range reactions {
			if r.GetContent() != kind || r.GetUser().GetLogin() != c.username {
				continue
			}
			if _, err := c.gh.Reactions.DeletePullRequestCommentReaction(ctx, owner, name, commentID, r.GetID()); err != nil {
				return fmt.Errorf("deleting reaction %d on comment %d in %s: %w", r.GetID(), commentID, repo, err)
			}
			return nil
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	// Nothing to remove; the local toggle already won.
	return nil
}

// mapRemoteComment converts a go-github PullRequestComment to the port type.
func mapRemoteComment(c *gh.PullRequestComment) driven.RemoteComment {
	return driven.RemoteComment{
		ID:        c.GetID(),
		Author:    c.GetUser().GetLogin(),
		Body:      c.GetBody(),
		Path:      c.GetPath(),
		Line:      c.GetLine(),
		StartLine: c.GetStartLine(),
		InReplyTo: c.GetInReplyTo(),
		CreatedAt: c.GetCreatedAt().Time,
		UpdatedAt: c.GetUpdatedAt().Time,
	}
}
