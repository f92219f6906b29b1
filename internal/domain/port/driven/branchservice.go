package driven

import "context"

// Branch is a repository branch head.
type Branch struct {
	Name string
	SHA  string
}

// BranchService defines the driven port for branch operations.
type BranchService interface {
	// ListBranches returns all branches with their head commit SHAs.
	ListBranches(ctx context.Context, repo string) ([]Branch, error)

	// CreateBranch creates a new branch pointing at fromSHA.
	CreateBranch(ctx context.Context, repo, name, fromSHA string) error
}
