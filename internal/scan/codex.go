package scan

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/diskd-ai/ccbox/internal/domain"
)

// maxTitleScanRecords bounds how many records are read looking for a title.
const maxTitleScanRecords = 250

// maxLineBytes caps a single log line. A longer first line rejects a Codex
// file with a warning; a longer line later on ends the title search.
const maxLineBytes = 1024 * 1024

// Output is the result of scanning one engine (or all of them).
type Output struct {
	Sessions []domain.SessionSummary
	Warnings int
	Notices  []string
}

// Codex walks the sessions tree and summarizes every accepted rollout file.
// Files under .ccbox/ (the spawn work area) are skipped.
func Codex(root string) Output {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return Output{Notices: []string{fmt.Sprintf("Codex sessions dir not found: %s", root)}}
	}

	var out Output
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			out.Warnings++
			return nil
		}
		if entry.IsDir() {
			if entry.Name() == ".ccbox" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(entry.Name(), ".jsonl") {
			return nil
		}

		summary, err := scanCodexFile(path)
		if err != nil {
			out.Warnings++
			return nil
		}
		out.Sessions = append(out.Sessions, summary)
		return nil
	})
	if walkErr != nil {
		out.Warnings++
	}
	return out
}

func scanCodexFile(path string) (domain.SessionSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("stat %s: %w", path, err)
	}

	reader := newLineReader(file)
	firstLine, err := reader.next()
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("reading %s: %w", path, err)
	}

	meta, err := domain.ParseSessionMetaLine(firstLine)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("%s: %w", path, err)
	}

	title := domain.UntitledSession
	for i := 0; i < maxTitleScanRecords; i++ {
		line, err := reader.next()
		if err != nil {
			break
		}
		text, ok := domain.ParseUserMessageText(line)
		if !ok || domain.IsMetadataPrompt(text) {
			continue
		}
		if candidate, ok := domain.TitleFromUserText(text); ok {
			title = candidate
			break
		}
	}

	return domain.SessionSummary{
		Meta:          meta,
		Engine:        domain.EngineCodex,
		LogPath:       path,
		Title:         title,
		FileSizeBytes: info.Size(),
		ModifiedAt:    info.ModTime(),
	}, nil
}

// lineReader streams newline-delimited text with a bounded buffer, so a
// corrupt or enormous line never pulls the whole file into memory.
type lineReader struct {
	scanner *bufio.Scanner
}

func newLineReader(r io.Reader) *lineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &lineReader{scanner: scanner}
}

// next returns the next line without its terminator. io.EOF after the last
// line; any scanner error is returned as-is.
func (r *lineReader) next() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}
