package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kieran-voss/loopdriver/internal/session"
	"github.com/kieran-voss/loopdriver/internal/util"
	"github.com/kieran-voss/loopdriver/internal/vcs"
)

const gitignoreCommitMessage = "Add state directory to .gitignore"

// StartSession creates a fresh Session for goal, creates or switches to
// a branch whose name embeds the session id, and amends .gitignore to
// exclude the state directory on first use. The amendment is committed
// on its own with a fixed message, as spec.md §6 requires.
func StartSession(projectDir, stateDir, goal string, maxCycles int, repo *vcs.Repo) (*session.Session, error) {
	id := util.NewID()
	branch := fmt.Sprintf("loopdriver/%s", id)

	sess := session.New(id, goal, projectDir, branch, maxCycles, time.Now())

	if err := repo.Branch(branch); err != nil {
		return nil, err
	}
	if err := ensureGitignore(projectDir, stateDir, repo); err != nil {
		return nil, err
	}
	if err := session.Save(stateDir, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ResumeSession reopens a session directory: it reloads the persisted
// Session, clears any pause state, and returns it to running. It never
// recreates session state — the checkpoint and cycle counter carry
// over exactly as persisted.
func ResumeSession(stateDir string) (*session.Session, error) {
	sess, err := session.Load(stateDir)
	if err != nil {
		return nil, err
	}
	if !sess.Status.IsTerminal() {
		sess.Resume(time.Now())
	}
	return sess, session.Save(stateDir, sess)
}

// ensureGitignore appends the state directory's relative path to
// .gitignore if it is not already present, then commits the change
// alone under the fixed message.
func ensureGitignore(projectDir, stateDir string, repo *vcs.Repo) error {
	rel, err := filepath.Rel(projectDir, stateDir)
	if err != nil {
		rel = filepath.Base(stateDir)
	}
	rel = filepath.ToSlash(rel)

	path := filepath.Join(projectDir, ".gitignore")
	existing, _ := os.ReadFile(path)
	if containsLine(string(existing), rel) {
		return nil
	}

	content := string(existing)
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += rel + "\n"

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return err
	}
	return repo.CommitFiles([]string{".gitignore"}, gitignoreCommitMessage)
}

func containsLine(content, line string) bool {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}
