package orchestrator

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kieran-voss/loopdriver/internal/engerrors"
	"github.com/kieran-voss/loopdriver/internal/execmanager"
)

// minGitMajor and minGitMinor are the version spec.md §4.9 requires as
// a start precondition.
const minGitMajor, minGitMinor = 2, 5

// CheckPreconditions verifies spec.md §4.9's initialize() preconditions:
// version control is installed at a high enough version, the project
// directory is a repository with an identity configured, and at least
// one agent kind is detected on PATH. It fails fast with a single
// descriptive error rather than leaving the caller to discover each
// precondition's failure one at a time during the first cycle.
func CheckPreconditions(projectDir string, agentCommands map[string]string) ([]string, error) {
	if err := checkGitVersion(); err != nil {
		return nil, err
	}
	if err := checkGitRepository(projectDir); err != nil {
		return nil, err
	}
	if err := checkGitIdentity(projectDir); err != nil {
		return nil, err
	}

	available := execmanager.DetectAvailable(agentCommands)
	if len(available) == 0 {
		return nil, engerrors.NewAgentPoolError(
			"no configured agent kind was found on PATH", engerrors.ErrNoAgentAvailable,
		)
	}
	return available, nil
}

func checkGitVersion() error {
	out, err := exec.Command("git", "version").CombinedOutput()
	if err != nil {
		return engerrors.NewVCSError("git is not installed or not on PATH", engerrors.ErrPreconditionBad)
	}
	major, minor, ok := parseGitVersion(string(out))
	if !ok {
		return nil
	}
	if major < minGitMajor || (major == minGitMajor && minor < minGitMinor) {
		return engerrors.NewVCSError(
			fmt.Sprintf("git version %d.%d is below the required %d.%d", major, minor, minGitMajor, minGitMinor),
			engerrors.ErrPreconditionBad,
		)
	}
	return nil
}

// parseGitVersion extracts the major and minor version numbers from
// "git version" output such as "git version 2.43.0".
func parseGitVersion(output string) (major, minor int, ok bool) {
	fields := strings.Fields(output)
	for _, f := range fields {
		parts := strings.SplitN(f, ".", 3)
		if len(parts) < 2 {
			continue
		}
		maj, err1 := strconv.Atoi(parts[0])
		min, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil {
			return maj, min, true
		}
	}
	return 0, 0, false
}

func checkGitRepository(dir string) error {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		return engerrors.NewVCSError("project directory is not a git repository", engerrors.ErrNotGitRepository)
	}
	return nil
}

func checkGitIdentity(dir string) error {
	for _, key := range []string{"user.name", "user.email"} {
		cmd := exec.Command("git", "config", key)
		cmd.Dir = dir
		out, err := cmd.Output()
		if err != nil || strings.TrimSpace(string(out)) == "" {
			return engerrors.NewVCSError(
				fmt.Sprintf("git %s is not configured", key), engerrors.ErrPreconditionBad,
			)
		}
	}
	return nil
}
