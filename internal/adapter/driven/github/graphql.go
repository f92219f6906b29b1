package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/marginalia/internal/domain/port/driven"
)

// graphqlHTTPClient is the HTTP client used for GraphQL requests.
// It enforces a 30-second timeout as a safety net alongside context cancellation.
var graphqlHTTPClient = &http.Client{Timeout: 30 * time.Second}

const reviewThreadsQuery = `query($owner: String!, $repo: String!, $pr: Int!) {
	repository(owner: $owner, name: $repo) {
		pullRequest(number: $pr) {
			reviewThreads(first: 100) {
				pageInfo {
					hasNextPage
				}
				nodes {
					id
					isResolved
					comments(first: 1) {
						nodes {
							databaseId
						}
					}
				}
			}
		}
	}
}`

const resolveThreadMutation = `mutation($id: ID!) {
	resolveReviewThread(input: {threadId: $id}) {
		thread { isResolved }
	}
}`

const unresolveThreadMutation = `mutation($id: ID!) {
	unresolveReviewThread(input: {threadId: $id}) {
		thread { isResolved }
	}
}`

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// threadsResponse represents the expected shape of a GitHub GraphQL response
// for review threads.
type threadsResponse struct {
	Data struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					PageInfo struct {
						HasNextPage bool `json:"hasNextPage"`
					} `json:"pageInfo"`
					Nodes []struct {
						ID         string `json:"id"`
						IsResolved bool   `json:"isResolved"`
						Comments   struct {
							Nodes []struct {
								DatabaseID int64 `json:"databaseId"`
							} `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// mutationResponse represents the minimal response shape for GraphQL mutations.
// Only errors are checked; the mutation payload is not inspected.
type mutationResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchThreads queries the GitHub GraphQL API for review threads and returns
// them keyed by the database ID of each thread's root comment. Thread node
// IDs cannot be obtained over REST, which is why resolve/reopen depends on
// this inbound path.
//
// This is a supplementary data source. All error paths return an empty map and
// log a warning; failures never propagate to callers.
func (c *Client) FetchThreads(ctx context.Context, repo string, prNumber int) (map[int64]driven.ReviewThread, error) {
	if c.token == "" {
		return map[int64]driven.ReviewThread{}, nil
	}

	owner, name, err := splitRepo(repo)
	if err != nil {
		return map[int64]driven.ReviewThread{}, nil
	}

	reqBody := graphqlRequest{
		Query: reviewThreadsQuery,
		Variables: map[string]any{
			"owner": owner,
			"repo":  name,
			"pr":    prNumber,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		slog.Warn("graphql: failed to marshal request", "error", err)
		return map[int64]driven.ReviewThread{}, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		slog.Warn("graphql: failed to create request", "error", err)
		return map[int64]driven.ReviewThread{}, nil
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("bearer %s", c.token))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := graphqlHTTPClient.Do(httpReq)
	if err != nil {
		slog.Warn("graphql: request failed", "error", err, "repo", repo, "pr", prNumber)
		return map[int64]driven.ReviewThread{}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("graphql: non-200 response", "status", resp.StatusCode, "repo", repo, "pr", prNumber)
		return map[int64]driven.ReviewThread{}, nil
	}

	var gqlResp threadsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		slog.Warn("graphql: failed to decode response", "error", err, "repo", repo, "pr", prNumber)
		return map[int64]driven.ReviewThread{}, nil
	}

	if len(gqlResp.Errors) > 0 {
		slog.Warn("graphql: response contains errors",
			"errors", gqlResp.Errors[0].Message,
			"repo", repo,
			"pr", prNumber,
		)
		return map[int64]driven.ReviewThread{}, nil
	}

	threads := gqlResp.Data.Repository.PullRequest.ReviewThreads

	if threads.PageInfo.HasNextPage {
		slog.Warn("graphql: review threads exceed 100, pagination needed",
			"repo", repo,
			"pr", prNumber,
		)
	}

	result := make(map[int64]driven.ReviewThread, len(threads.Nodes))
	for _, thread := range threads.Nodes {
		if len(thread.Comments.Nodes) > 0 && thread.Comments.Nodes[0].DatabaseID != 0 {
			result[thread.Comments.Nodes[0].DatabaseID] = driven.ReviewThread{
				ID:         thread.ID,
				IsResolved: thread.IsResolved,
			}
		}
	}

	return result, nil
}

// SetThreadResolution resolves or reopens a review thread via GitHub GraphQL
// mutations. threadID is the thread's GraphQL node ID.
func (c *Client) SetThreadResolution(ctx context.Context, threadID string, resolved bool) error {
	if c.token == "" {
		return fmt.Errorf("SetThreadResolution requires a GitHub token")
	}

	mutation := unresolveThreadMutation
	if resolved {
		mutation = resolveThreadMutation
	}

	reqBody := graphqlRequest{
		Query: mutation,
		Variables: map[string]any{
			"id": threadID,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling thread resolution mutation: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating thread resolution request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("bearer %s", c.token))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := graphqlHTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("thread resolution mutation for %s: %w", threadID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("thread resolution mutation for %s: HTTP %d", threadID, resp.StatusCode)
	}

	var gqlResp mutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("decoding thread resolution response for %s: %w", threadID, err)
	}

	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("thread resolution mutation for %s: %s", threadID, gqlResp.Errors[0].Message)
	}

	return nil
}
