package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threadsPayload(nodes ...map[string]any) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"repository": map[string]any{
				"pullRequest": map[string]any{
					"reviewThreads": map[string]any{
						"pageInfo": map[string]any{"hasNextPage": false},
						"nodes":    nodes,
					},
				},
			},
		},
	}
}

func threadNode(id string, resolved bool, rootCommentID int64) map[string]any {
	return map[string]any{
		"id":         id,
		"isResolved": resolved,
		"comments": map[string]any{
			"nodes": []map[string]any{{"databaseId": rootCommentID}},
		},
	}
}

func TestFetchThreads(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bearer test-token", r.Header.Get("Authorization"))

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "reviewThreads")
		assert.Equal(t, "owner", req.Variables["owner"])
		assert.Equal(t, float64(7), req.Variables["pr"])

		_ = json.NewEncoder(w).Encode(threadsPayload(
			threadNode("NODE_A", true, 1001),
			threadNode("NODE_B", false, 1002),
		))
	})

	client, _ := newTestClient(t, mux)

	threads, err := client.FetchThreads(context.Background(), "owner/repo", 7)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "NODE_A", threads[1001].ID)
	assert.True(t, threads[1001].IsResolved)
	assert.False(t, threads[1002].IsResolved)
}

func TestFetchThreads_FailuresReturnEmptyMap(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		client, _ := newTestClient(t, mux)

		threads, err := client.FetchThreads(context.Background(), "owner/repo", 7)
		require.NoError(t, err, "thread fetch is supplementary and must not propagate failures")
		assert.Empty(t, threads)
	})

	t.Run("graphql errors", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"errors": []map[string]any{{"message": "Could not resolve to a PullRequest"}},
			})
		})
		client, _ := newTestClient(t, mux)

		threads, err := client.FetchThreads(context.Background(), "owner/repo", 7)
		require.NoError(t, err)
		assert.Empty(t, threads)
	})
}

func TestSetThreadResolution(t *testing.T) {
	var lastQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastQuery = req.Query
		assert.Equal(t, "NODE_A", req.Variables["id"])
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	})

	client, _ := newTestClient(t, mux)

	require.NoError(t, client.SetThreadResolution(context.Background(), "NODE_A", true))
	assert.True(t, strings.Contains(lastQuery, "resolveReviewThread"))
	assert.False(t, strings.Contains(lastQuery, "unresolveReviewThread"))

	require.NoError(t, client.SetThreadResolution(context.Background(), "NODE_A", false))
	assert.True(t, strings.Contains(lastQuery, "unresolveReviewThread"))
}

func TestSetThreadResolution_SurfacesGraphQLErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "thread not found"}},
		})
	})

	client, _ := newTestClient(t, mux)

	err := client.SetThreadResolution(context.Background(), "NODE_GONE", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thread not found")
}
