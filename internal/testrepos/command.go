package testrepos

import "os/exec"

// gitCommand builds a git invocation with identity pinned so commits work
// even on machines without global git config.
func gitCommand(dir string, args ...string) *exec.Cmd {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(),
		"GIT_AUTHOR_NAME=Crewd Test",
		"GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Crewd Test",
		"GIT_COMMITTER_EMAIL=test@example.com",
	)
	return cmd
}
