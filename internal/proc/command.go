package proc

import (
	"os"
	"os/exec"
	"strings"

	"github.com/diskd-ai/ccbox/internal/domain"
)

// buildPipesCommand constructs the pipe-mode invocation for an engine. The
// Codex child reads its prompt from stdin; Claude takes it as an argument.
func buildPipesCommand(engine domain.Engine, projectPath, prompt, lastMessagePath, sessionsDir string) *exec.Cmd {
	switch engine {
	case domain.EngineClaude:
		cmd := exec.Command("claude",
			"--dangerously-skip-permissions",
			"--verbose",
			"--output-format", "stream-json",
			"-p", prompt,
		)
		cmd.Dir = projectPath
		return cmd
	default:
		args := []string{"exec", "--full-auto", "--json"}
		if lastMessagePath != "" {
			args = append(args, "--output-last-message", lastMessagePath)
		}
		args = append(args, "-C", projectPath, "-")
		cmd := exec.Command("codex", args...)
		cmd.Dir = projectPath
		cmd.Env = append(os.Environ(), "CODEX_SESSIONS_DIR="+sessionsDir)
		return cmd
	}
}

func buildCodexResumeCommand(projectPath, sessionID, sessionsDir string) *exec.Cmd {
	cmd := exec.Command("codex",
		"exec", "resume", "--full-auto", "--json",
		"-C", projectPath,
		sessionID,
		"-",
	)
	cmd.Dir = projectPath
	cmd.Env = append(os.Environ(), "CODEX_SESSIONS_DIR="+sessionsDir)
	return cmd
}

// buildTtyCommand constructs the interactive invocation run under a pty.
func buildTtyCommand(engine domain.Engine, projectPath, prompt, sessionsDir string) *exec.Cmd {
	switch engine {
	case domain.EngineClaude:
		args := []string{"--dangerously-skip-permissions", "--verbose"}
		if strings.TrimSpace(prompt) != "" {
			args = append(args, prompt)
		}
		cmd := exec.Command("claude", args...)
		cmd.Dir = projectPath
		return cmd
	default:
		args := []string{"--full-auto", "-C", projectPath}
		if strings.TrimSpace(prompt) != "" {
			args = append(args, prompt)
		}
		cmd := exec.Command("codex", args...)
		cmd.Dir = projectPath
		cmd.Env = append(os.Environ(), "CODEX_SESSIONS_DIR="+sessionsDir)
		return cmd
	}
}
