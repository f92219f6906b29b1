// Package github implements the ContentStore, BranchService, PRService, and
// ReviewAPI ports using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.ContentStore  = (*Client)(nil)
	_ driven.BranchService = (*Client)(nil)
	_ driven.PRService     = (*Client)(nil)
	_ driven.ReviewAPI     = (*Client)(nil)
)

// Client implements the GitHub-backed driven ports.
type Client struct {
	gh         *gh.Client
	username   string
	token      string // Stored for GraphQL Authorization header.
	graphqlURL string // "https://api.github.com/graphql" in production; derived from baseURL in tests.
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token, username string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:         client,
		username:   username,
		token:      token,
		graphqlURL: "https://api.github.com/graphql",
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, username, token string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:         client,
		username:   username,
		token:      token,
		graphqlURL: graphqlU.String(),
	}, nil
}

// FetchContent retrieves the file at the given ref (branch name or commit SHA).
func (c *Client) FetchContent(ctx context.Context, repo, path, ref string) (*driven.FileContent, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, name, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, fmt.Errorf("fetching %s@%s in %s: %w", path, ref, repo, err)
	}
	if file == nil {
		return nil, fmt.Errorf("fetching %s@%s in %s: path is a directory", path, ref, repo)
	}

	logRateLimit(resp, repo+"/contents", 0, 1)

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding %s@%s in %s: %w", path, ref, repo, err)
	}

	return &driven.FileContent{
		Content: content,
		SHA:     file.GetSHA(),
	}, nil
}

// UpdateContent commits new file content to the given branch. sha must be the
// blob SHA of the file version being replaced.
func (c *Client) UpdateContent(ctx context.Context, repo, path, content, message, sha, branch string) (*driven.CommitResult, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(message),
		Content: []byte(content),
		SHA:     gh.Ptr(sha),
		Branch:  gh.Ptr(branch),
	}

	res, resp, err := c.gh.Repositories.UpdateFile(ctx, owner, name, path, opts)
	if err != nil {
		return nil, fmt.Errorf("committing %s to %s in %s: %w", path, branch, repo, err)
	}

	logRateLimit(resp, repo+"/update-file", 0, 1)

	return &driven.CommitResult{
		ContentSHA: res.Content.GetSHA(),
		CommitSHA:  res.Commit.GetSHA(),
	}, nil
}

// ListBranches returns all branches with their head commit SHAs.
// It handles pagination automatically.
func (c *Client) ListBranches(ctx context.Context, repo string) ([]driven.Branch, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.BranchListOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	branches := []driven.Branch{}
	for {
		page, resp, err := c.gh.Repositories.ListBranches(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing branches for %s (page %d): %w", repo, opts.Page, err)
		}

		logRateLimit(resp, repo+"/branches", opts.Page, len(page))

		for _, b := range page {
			branches = append(branches, driven.Branch{
				Name: b.GetName(),
				SHA:  b.GetCommit().GetSHA(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return branches, nil
}

// CreateBranch creates a new branch ref pointing at fromSHA.
func (c *Client) CreateBranch(ctx context.Context, repo, name, fromSHA string) error {
	owner, repoName, err := splitRepo(repo)
	if err != nil {
		return err
	}

	ref := gh.CreateRef{
		Ref: "refs/heads/" + name,
		SHA: fromSHA,
	}

	_, resp, err := c.gh.Git.CreateRef(ctx, owner, repoName, ref)
	if err != nil {
		return fmt.Errorf("creating branch %s in %s: %w", name, repo, err)
	}

	logRateLimit(resp, repo+"/create-ref", 0, 1)
	return nil
}

// CreatePR opens a pull request from head into base.
func (c *Client) CreatePR(ctx context.Context, repo, title, body, head, base string) (*model.ActivePullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.gh.PullRequests.Create(ctx, owner, name, &gh.NewPullRequest{
		Title: gh.Ptr(title),
		Body:  gh.Ptr(body),
		Head:  gh.Ptr(head),
		Base:  gh.Ptr(base),
	})
	if err != nil {
		return nil, fmt.Errorf("creating PR %s -> %s in %s: %w", head, base, repo, err)
	}

	logRateLimit(resp, repo+"/create-pr", 0, 1)

	return mapPullRequest(pr), nil
}

// FindOpenPR returns the open pull request whose head is the given branch,
// or nil, nil when none exists.
func (c *Client) FindOpenPR(ctx context.Context, repo, branch string) (*model.ActivePullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State: "open",
		Head:  owner + ":" + branch,
		ListOptions: gh.ListOptions{
			PerPage: 1,
		},
	}

	prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return nil, fmt.Errorf("finding open PR for %s in %s: %w", branch, repo, err)
	}

	logRateLimit(resp, repo+"/find-pr", 0, len(prs))

	if len(prs) == 0 {
		return nil, nil
	}
	return mapPullRequest(prs[0]), nil
}

// mapPullRequest converts a go-github PullRequest to the active-PR snapshot.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest) *model.ActivePullRequest {
	return &model.ActivePullRequest{
		Number:  pr.GetNumber(),
		HeadSHA: pr.GetHead().GetSHA(),
		BaseRef: pr.GetBase().GetRef(),
		HTMLURL: pr.GetHTMLURL(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
