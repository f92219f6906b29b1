package driven

import (
	"context"

	"github.com/ericfisherdev/marginalia/internal/domain/model"
)

// PRService defines the driven port for pull request lifecycle operations.
type PRService interface {
	// CreatePR opens a pull request from head into base.
	CreatePR(ctx context.Context, repo, title, body, head, base string) (*model.ActivePullRequest, error)

	// FindOpenPR returns the open pull request whose head is the given branch,
	// or nil, nil when none exists.
	FindOpenPR(ctx context.Context, repo, branch string) (*model.ActivePullRequest, error)
}
