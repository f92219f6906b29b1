package model

// ActivePullRequest is a snapshot of the pull request that remote comment
// sync targets. It is branch-scoped: switching branches clears it, it is
// never carried across. The value is always replaced wholesale, never
// partially mutated, so readers cannot observe torn state.
type ActivePullRequest struct {
	Number  int
	HeadSHA string // Commit that line-anchored remote comments are created against.
	BaseRef string
	HTMLURL string
}

// WithHeadSHA returns a copy of the snapshot with the tracked head commit
// advanced to sha.
func (pr ActivePullRequest) WithHeadSHA(sha string) ActivePullRequest {
	pr.HeadSHA = sha
	return pr
}
