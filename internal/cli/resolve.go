package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/diskd-ai/ccbox/internal/config"
	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/index"
	"github.com/diskd-ai/ccbox/internal/scan"
)

func parseEngine(value string) (domain.Engine, error) {
	engine, err := domain.ParseEngine(value)
	if err != nil {
		return "", usageError{err: err}
	}
	return engine, nil
}

// loadProjects resolves roots, scans, applies overrides, and groups. The
// projects and sessions subcommands, and history/skills when they look a
// session up by project or id, go through here.
func loadProjects(engine domain.Engine) ([]domain.ProjectSummary, int, []string, error) {
	stateDir, err := scan.ResolveStateDir()
	if err != nil {
		return nil, 0, nil, err
	}
	cfg, err := config.Read(stateDir)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	roots, err := resolveRoots(cfg)
	if err != nil {
		return nil, 0, nil, err
	}

	out := scan.All(context.Background(), roots, engine)

	if overrides, err := index.LoadOverrides(stateDir); err == nil {
		overrides.Apply(out.Sessions)
	}

	return index.Build(out.Sessions), out.Warnings, out.Notices, nil
}

// selectProject finds the project whose path matches the requested path or
// one of its ancestors (the current directory when none was given).
func selectProject(projects []domain.ProjectSummary, requested string) (domain.ProjectSummary, error) {
	base, err := os.Getwd()
	if err != nil {
		return domain.ProjectSummary{}, fmt.Errorf("resolving current directory: %w", err)
	}

	start := base
	if requested != "" {
		if filepath.IsAbs(requested) {
			start = requested
		} else {
			start = filepath.Join(base, requested)
		}
	}

	canonical := func(path string) string {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			return resolved
		}
		return path
	}

	for candidate := start; ; candidate = filepath.Dir(candidate) {
		candidateCanon := canonical(candidate)
		for _, project := range projects {
			if project.Path == candidate || canonical(project.Path) == candidateCanon {
				return project, nil
			}
		}
		if candidate == filepath.Dir(candidate) {
			break
		}
	}

	return domain.ProjectSummary{}, fmt.Errorf(
		"project not found: %s\nHint: run `ccbox projects` and copy the full project path.", start)
}

// resolveSessionLogPath turns the history/skills target arguments into a
// concrete log path.
func resolveSessionLogPath(engine domain.Engine, target, sessionID string) (string, error) {
	targetIsDir := false
	if target != "" {
		if info, err := os.Stat(target); err == nil && info.IsDir() {
			targetIsDir = true
		}
	}

	// A direct file path needs no index lookup.
	if target != "" && !targetIsDir {
		if sessionID != "" {
			return "", usageError{err: fmt.Errorf(
				"cannot combine --id with an explicit log path: %s", target)}
		}
		return target, nil
	}

	projects, warnings, notices, err := loadProjects(engine)
	if err != nil {
		return "", err
	}
	errOut := stderrWriter()
	writeScanDiagnostics(errOut, notices, warnings)

	if sessionID != "" && target == "" {
		var matches []domain.SessionSummary
		for _, project := range projects {
			for _, session := range project.Sessions {
				if session.Meta.ID == sessionID {
					matches = append(matches, session)
				}
			}
		}
		switch len(matches) {
		case 0:
			return "", fmt.Errorf("session not found: %s\nHint: run `ccbox sessions <project-path>` and copy the session id column.", sessionID)
		case 1:
			return matches[0].LogPath, nil
		default:
			return "", fmt.Errorf("session id matches multiple sessions: %s\nHint: pass a project directory before the session id.", sessionID)
		}
	}

	project, err := selectProject(projects, target)
	if err != nil {
		return "", err
	}
	if sessionID != "" {
		for _, session := range project.Sessions {
			if session.Meta.ID == sessionID {
				return session.LogPath, nil
			}
		}
		return "", fmt.Errorf("session not found: %s (project %s)", sessionID, project.Path)
	}
	if len(project.Sessions) == 0 {
		return "", fmt.Errorf("project has no sessions: %s", project.Path)
	}
	return project.Sessions[0].LogPath, nil
}
