package history

import (
	"github.com/go-git/go-git/v5"
)

// SourceCommit returns the HEAD commit of the repository containing dir,
// or "" when dir is not inside a repository or HEAD is unborn.
func SourceCommit(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}
