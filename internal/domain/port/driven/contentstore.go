package driven

import "context"

// FileContent is a document blob fetched at a specific ref.
type FileContent struct {
	Content string
	SHA     string // Blob SHA; required for subsequent updates.
}

// CommitResult describes a successful content write.
type CommitResult struct {
	ContentSHA string // New blob SHA of the file.
	CommitSHA  string // SHA of the commit that recorded the write.
}

// ContentStore defines the driven port for reading and writing document
// content in the backing repository.
type ContentStore interface {
	// FetchContent retrieves the file at the given ref (branch name or commit SHA).
	FetchContent(ctx context.Context, repo, path, ref string) (*FileContent, error)

	// UpdateContent commits new file content to the given branch. sha must be
	// the blob SHA of the file version being replaced.
	UpdateContent(ctx context.Context, repo, path, content, message, sha, branch string) (*CommitResult, error)
}
