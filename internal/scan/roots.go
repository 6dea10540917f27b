// Package scan discovers session logs for every engine and reads just enough
// of each to build its summary.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
)

// Roots holds the resolved source locations for all engines.
type Roots struct {
	CodexSessions  string
	ClaudeProjects string
	GeminiRoot     string
	OpenCodeDB     string
}

// ResolveRoots resolves every engine root, honoring the environment
// overrides. Only a missing home directory is an error; missing roots are
// discovered (and reported as notices) at scan time.
func ResolveRoots() (Roots, error) {
	codex, err := ResolveCodexSessionsDir()
	if err != nil {
		return Roots{}, err
	}
	claude, err := ResolveClaudeProjectsDir()
	if err != nil {
		return Roots{}, err
	}
	gemini, err := ResolveGeminiRootDir()
	if err != nil {
		return Roots{}, err
	}
	opencode, err := ResolveOpenCodeDBPath()
	if err != nil {
		return Roots{}, err
	}
	return Roots{
		CodexSessions:  codex,
		ClaudeProjects: claude,
		GeminiRoot:     gemini,
		OpenCodeDB:     opencode,
	}, nil
}

// ResolveCodexSessionsDir returns $CODEX_SESSIONS_DIR or ~/.codex/sessions.
func ResolveCodexSessionsDir() (string, error) {
	if dir := os.Getenv("CODEX_SESSIONS_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".codex", "sessions"), nil
}

// ResolveClaudeProjectsDir returns $CLAUDE_PROJECTS_DIR or ~/.claude/projects.
func ResolveClaudeProjectsDir() (string, error) {
	if dir := os.Getenv("CLAUDE_PROJECTS_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "projects"), nil
}

// ResolveGeminiRootDir returns $CCBOX_GEMINI_DIR or ~/.gemini.
func ResolveGeminiRootDir() (string, error) {
	if dir := os.Getenv("CCBOX_GEMINI_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".gemini"), nil
}

// ResolveOpenCodeDBPath returns $CCBOX_OPENCODE_DB_PATH,
// $XDG_DATA_HOME/opencode/opencode.db, or ~/.local/share/opencode/opencode.db.
func ResolveOpenCodeDBPath() (string, error) {
	if path := os.Getenv("CCBOX_OPENCODE_DB_PATH"); path != "" {
		return path, nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "opencode", "opencode.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "opencode", "opencode.db"), nil
}

// ResolveStateDir returns the per-user ccbox state directory (~/.ccbox).
func ResolveStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".ccbox"), nil
}
