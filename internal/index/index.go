// Package index groups session summaries into projects and applies per-user
// overrides and filters on top of the scanned snapshot.
package index

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/sahilm/fuzzy"
)

// Build groups sessions by project path. Projects come back sorted by last
// modification descending (ties by path); sessions within a project by
// started_at descending (ties by id).
func Build(sessions []domain.SessionSummary) []domain.ProjectSummary {
	grouped := make(map[string][]domain.SessionSummary)
	for _, session := range sessions {
		grouped[session.Meta.CWD] = append(grouped[session.Meta.CWD], session)
	}

	projects := make([]domain.ProjectSummary, 0, len(grouped))
	for path, projectSessions := range grouped {
		sort.SliceStable(projectSessions, func(a, b int) bool {
			if projectSessions[a].Meta.StartedAt != projectSessions[b].Meta.StartedAt {
				return projectSessions[a].Meta.StartedAt > projectSessions[b].Meta.StartedAt
			}
			return projectSessions[a].Meta.ID < projectSessions[b].Meta.ID
		})

		project := domain.ProjectSummary{
			Name:     projectName(path),
			Path:     path,
			Sessions: projectSessions,
		}
		for _, session := range projectSessions {
			if session.ModifiedAt.After(project.LastModified) {
				project.LastModified = session.ModifiedAt
			}
		}
		projects = append(projects, project)
	}

	sort.SliceStable(projects, func(a, b int) bool {
		if !projects[a].LastModified.Equal(projects[b].LastModified) {
			return projects[a].LastModified.After(projects[b].LastModified)
		}
		return projects[a].Path < projects[b].Path
	})
	return projects
}

func projectName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return path
	}
	return name
}

// FilterEngine partitions sessions before grouping. An empty engine keeps
// everything.
func FilterEngine(sessions []domain.SessionSummary, engine domain.Engine) []domain.SessionSummary {
	if engine == "" {
		return sessions
	}
	out := make([]domain.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		if session.Engine == engine {
			out = append(out, session)
		}
	}
	return out
}

// Match is one project that survived the name filter, with the matched rune
// positions for highlighting.
type Match struct {
	Project        domain.ProjectSummary
	MatchedIndexes []int
}

// FilterProjects narrows projects by a case-insensitive fuzzy match over
// their names. An empty query keeps every project, in order, with no
// highlight positions.
func FilterProjects(projects []domain.ProjectSummary, query string) []Match {
	if strings.TrimSpace(query) == "" {
		out := make([]Match, len(projects))
		for i, project := range projects {
			out[i] = Match{Project: project}
		}
		return out
	}

	names := make([]string, len(projects))
	for i, project := range projects {
		names[i] = project.Name
	}

	results := fuzzy.Find(strings.ToLower(query), lowered(names))
	out := make([]Match, 0, len(results))
	for _, result := range results {
		out = append(out, Match{
			Project:        projects[result.Index],
			MatchedIndexes: result.MatchedIndexes,
		})
	}
	return out
}

func lowered(values []string) []string {
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = strings.ToLower(value)
	}
	return out
}
