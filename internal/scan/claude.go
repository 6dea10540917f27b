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

// maxMetaScanBytes bounds the per-file read while hunting for metadata.
const maxMetaScanBytes = 512 * 1024

// Claude scans ~/.claude/projects. Each project-key folder holds the JSONL
// logs of one encoded project path; the cwd recorded inside the log is
// authoritative over the folder name.
func Claude(projectsDir string) Output {
	info, err := os.Stat(projectsDir)
	if err != nil || !info.IsDir() {
		return Output{Notices: []string{fmt.Sprintf("Claude projects dir not found: %s", projectsDir)}}
	}

	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return Output{Notices: []string{fmt.Sprintf("Claude projects dir is not readable: %s", projectsDir)}}
	}

	var out Output
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		keyDir := filepath.Join(projectsDir, entry.Name())

		files, err := os.ReadDir(keyDir)
		if err != nil {
			out.Warnings++
			continue
		}
		for _, file := range files {
			// Subdirectories hold subagent transcripts; only top-level
			// logs are sessions.
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".jsonl") {
				continue
			}
			path := filepath.Join(keyDir, file.Name())
			summary, err := scanClaudeFile(path)
			if err != nil {
				out.Warnings++
				continue
			}
			out.Sessions = append(out.Sessions, summary)
		}
	}
	return out
}

func scanClaudeFile(path string) (domain.SessionSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("stat %s: %w", path, err)
	}

	var hint domain.ClaudeMetaHint
	title := ""
	bytesRead := 0

	reader := newLineReader(file)
	for i := 0; i < maxTitleScanRecords; i++ {
		line, err := reader.next()
		if err != nil {
			break
		}
		bytesRead += len(line)
		if bytesRead > maxMetaScanBytes {
			break
		}

		var value map[string]any
		if err := json.Unmarshal([]byte(line), &value); err != nil {
			continue
		}

		if hint.IsEmpty() {
			hint = domain.ExtractClaudeMetaHint(value)
		} else if h := domain.ExtractClaudeMetaHint(value); hint.CWD == "" && h.CWD != "" {
			hint.CWD = h.CWD
		}

		if title == "" {
			if text, ok := domain.ParseClaudeUserText(value); ok && !domain.IsMetadataPrompt(text) {
				if candidate, ok := domain.TitleFromUserText(text); ok {
					title = candidate
				}
			}
		}

		if !hint.IsEmpty() && hint.CWD != "" && title != "" {
			break
		}
	}

	if hint.SessionID == "" {
		hint.SessionID = strings.TrimSuffix(filepath.Base(path), ".jsonl")
	}
	if hint.CWD == "" {
		return domain.SessionSummary{}, fmt.Errorf("%s: no cwd in any record", path)
	}
	if title == "" {
		title = domain.UntitledSession
	}

	startedAt := hint.Timestamp
	if startedAt == "" {
		startedAt = info.ModTime().UTC().Format(time.RFC3339)
	}

	return domain.SessionSummary{
		Meta: domain.SessionMeta{
			ID:        hint.SessionID,
			CWD:       hint.CWD,
			StartedAt: startedAt,
		},
		Engine:        domain.EngineClaude,
		LogPath:       path,
		Title:         title,
		FileSizeBytes: info.Size(),
		ModifiedAt:    info.ModTime(),
	}, nil
}
