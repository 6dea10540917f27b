package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/domain"
)

// Gemini scans {root}/tmp/<project-hash>/chats/session-*.json. Each session
// is a single JSON document; the per-hash logs.json supplies titles for
// sessions whose chat file has none. The project path comes only from the
// chat file, and a chat file without one is skipped with a warning.
func Gemini(root string) Output {
	tmpDir := filepath.Join(root, "tmp")
	info, err := os.Stat(tmpDir)
	if err != nil || !info.IsDir() {
		return Output{Notices: []string{fmt.Sprintf("Gemini tmp dir not found: %s (set CCBOX_GEMINI_DIR to override)", tmpDir)}}
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return Output{Notices: []string{fmt.Sprintf("Gemini tmp dir is not readable: %s", tmpDir)}}
	}

	var out Output
	for _, entry := range entries {
		if !entry.IsDir() || !isProjectHash(entry.Name()) {
			continue
		}
		projectOut := scanGeminiProjectDir(filepath.Join(tmpDir, entry.Name()))
		out.Sessions = append(out.Sessions, projectOut.Sessions...)
		out.Warnings += projectOut.Warnings
	}
	return out
}

// IsGeminiSessionPath reports whether a path looks like a Gemini chat file.
func IsGeminiSessionPath(path string) bool {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "session-") || !strings.HasSuffix(base, ".json") {
		return false
	}
	return filepath.Base(filepath.Dir(path)) == "chats"
}

func isProjectHash(name string) bool {
	if len(name) < 16 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			continue
		}
		return false
	}
	return true
}

type geminiHints struct {
	titleBySession map[string]string
	projectPath    string
}

func scanGeminiProjectDir(projectDir string) Output {
	var out Output

	hints := geminiHints{titleBySession: make(map[string]string)}
	logsPath := filepath.Join(projectDir, "logs.json")
	if raw, err := os.ReadFile(logsPath); err == nil {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			out.Warnings++
		} else {
			for _, entry := range domain.ParseGeminiLogEntries(value) {
				if _, seen := hints.titleBySession[entry.SessionID]; !seen && !domain.IsMetadataPrompt(entry.Message) {
					if title, ok := domain.TitleFromUserText(entry.Message); ok {
						hints.titleBySession[entry.SessionID] = title
					}
				}
			}
		}
	} else if !os.IsNotExist(err) {
		out.Warnings++
	}

	chatsDir := filepath.Join(projectDir, "chats")
	entries, err := os.ReadDir(chatsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			out.Warnings++
		}
		return out
	}

	for _, entry := range entries {
		path := filepath.Join(chatsDir, entry.Name())
		if entry.IsDir() || !IsGeminiSessionPath(path) {
			continue
		}
		summary, err := scanGeminiFile(path, hints)
		if err != nil {
			out.Warnings++
			continue
		}
		out.Sessions = append(out.Sessions, summary)
	}
	return out
}

func scanGeminiFile(path string, hints geminiHints) (domain.SessionSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("stat %s: %w", path, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	sessionID := domain.ExtractGeminiSessionID(doc)
	if sessionID == "" {
		sessionID = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	cwd := geminiProjectPath(doc)
	if cwd == "" {
		cwd = hints.projectPath
	}
	if cwd == "" {
		return domain.SessionSummary{}, fmt.Errorf("%s: no project path", path)
	}

	startedAt := domain.ExtractGeminiStartTime(doc)
	if startedAt == "" {
		startedAt = info.ModTime().UTC().Format(time.RFC3339)
	}

	title := ""
	if text, ok := domain.ExtractGeminiFirstUserMessage(doc); ok {
		if candidate, ok := domain.TitleFromUserText(text); ok {
			title = candidate
		}
	}
	if title == "" {
		title = hints.titleBySession[sessionID]
	}
	if title == "" {
		title = domain.UntitledSession
	}

	return domain.SessionSummary{
		Meta: domain.SessionMeta{
			ID:        sessionID,
			CWD:       cwd,
			StartedAt: startedAt,
		},
		Engine:        domain.EngineGemini,
		LogPath:       path,
		Title:         title,
		FileSizeBytes: info.Size(),
		ModifiedAt:    info.ModTime(),
	}, nil
}

func geminiProjectPath(doc map[string]any) string {
	for _, key := range []string{"cwd", "projectPath", "workspaceDir"} {
		if value, ok := doc[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
