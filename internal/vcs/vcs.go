// Package vcs provides the four version-control primitives the
// orchestrator needs — branch, stage, commit, and pull-rebase — backed
// by the git CLI, with commit access serialized across workers that
// share a single working tree.
package vcs

import (
	"os/exec"
	"strings"

	"github.com/kieran-voss/loopdriver/internal/engerrors"
)

// CommandExecutor abstracts command execution so tests can substitute a
// fake without invoking git.
type CommandExecutor interface {
	Run(dir, name string, args ...string) ([]byte, error)
}

// CLIExecutor runs commands via os/exec.
type CLIExecutor struct{}

// Run executes name with args in dir and returns combined output.
func (CLIExecutor) Run(dir, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Repo wraps git operations over one working tree. CommitAll,
// CommitFiles, and RebaseAndCommitFiles run under one mutex so
// concurrent workers sharing the same tree never interleave a
// stage-then-commit sequence; Stage and Commit called on their own are
// not gated.
type Repo struct {
	dir        string
	executor   CommandExecutor
	commitGate CommitGate
	mainBranch string
}

// New creates a Repo rooted at dir, running real git commands.
func New(dir string) *Repo {
	return &Repo{dir: dir, executor: CLIExecutor{}, mainBranch: "main"}
}

// NewWithExecutor creates a Repo using a custom executor, for tests.
func NewWithExecutor(dir string, executor CommandExecutor) *Repo {
	return &Repo{dir: dir, executor: executor, mainBranch: "main"}
}

// WithMainBranch overrides the branch rebased onto and fetched from.
func (r *Repo) WithMainBranch(name string) *Repo {
	r.mainBranch = name
	return r
}

func (r *Repo) run(args ...string) ([]byte, error) {
	return r.executor.Run(r.dir, "git", args...)
}

// Branch creates and checks out name if it does not already exist, or
// simply checks it out if it does.
func (r *Repo) Branch(name string) error {
	if _, err := r.run("checkout", name); err == nil {
		return nil
	}
	if _, err := r.run("checkout", "-b", name); err != nil {
		return engerrors.NewVCSError("failed to create branch", err).WithBranch(name)
	}
	return nil
}

// Stage stages every change in the working tree.
func (r *Repo) Stage() error {
	if _, err := r.run("add", "-A"); err != nil {
		return engerrors.NewVCSError("failed to stage changes", err)
	}
	return nil
}

// Commit commits the currently staged changes with message. A clean
// tree with nothing staged is not an error.
func (r *Repo) Commit(message string) error {
	out, err := r.run("commit", "-m", message)
	if err != nil {
		if strings.Contains(string(out), "nothing to commit") {
			return nil
		}
		return engerrors.NewVCSError("failed to commit", err)
	}
	return nil
}

// CommitAll stages and commits every change in one critical section,
// so two workers sharing a working tree can never interleave a stage
// from one with a commit from the other.
func (r *Repo) CommitAll(message string) error {
	return r.commitGate.Do(func() error {
		if err := r.Stage(); err != nil {
			return err
		}
		return r.Commit(message)
	})
}

// CommitFiles stages only files and commits them under the same gate
// as CommitAll. An empty files list stages every change instead, for
// tasks that did not record which files they touched.
func (r *Repo) CommitFiles(files []string, message string) error {
	return r.commitGate.Do(func() error {
		return r.stageAndCommit(files, message)
	})
}

// RebaseAndCommitFiles runs pull --rebase, stage, and commit as one
// serialized critical section, so a worker never commits onto a branch
// tip another worker is mid-rebase against.
func (r *Repo) RebaseAndCommitFiles(files []string, message string) error {
	return r.commitGate.Do(func() error {
		if err := r.PullRebase(); err != nil {
			return err
		}
		return r.stageAndCommit(files, message)
	})
}

// stageAndCommit stages files (or every change, if none are named) and
// commits. The caller must hold commitGate.
func (r *Repo) stageAndCommit(files []string, message string) error {
	if len(files) == 0 {
		if err := r.Stage(); err != nil {
			return err
		}
	} else {
		args := append([]string{"add"}, files...)
		if _, err := r.run(args...); err != nil {
			return engerrors.NewVCSError("failed to stage task files", err)
		}
	}
	return r.Commit(message)
}

// PullRebase fetches the main branch and rebases the current branch
// onto it, aborting and returning a classified conflict error if the
// rebase cannot complete cleanly.
func (r *Repo) PullRebase() error {
	if _, err := r.run("fetch", "origin", r.mainBranch); err != nil {
		return engerrors.NewVCSError("failed to fetch "+r.mainBranch, err).WithBranch(r.mainBranch)
	}

	out, err := r.run("rebase", "origin/"+r.mainBranch)
	if err != nil {
		text := string(out)
		if strings.Contains(text, "CONFLICT") || strings.Contains(text, "could not apply") {
			_, _ = r.run("rebase", "--abort")
			return engerrors.NewVCSError("rebase conflicts require manual resolution", engerrors.ErrRebaseConflict).WithBranch(r.mainBranch)
		}
		return engerrors.NewVCSError("failed to rebase", err).WithBranch(r.mainBranch)
	}
	return nil
}

// HasUncommittedChanges reports whether the working tree has any
// staged or unstaged changes.
func (r *Repo) HasUncommittedChanges() (bool, error) {
	out, err := r.run("status", "--porcelain")
	if err != nil {
		return false, engerrors.NewVCSError("failed to check status", err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}
