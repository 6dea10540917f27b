// Package timeline streams a session source once and assembles the unified
// event stream: turn grouping, call/output pairing, offsets, and dedup.
package timeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/scan"
)

// MaxItems caps a single timeline. Sessions beyond the cap are marked
// truncated rather than ballooning memory.
const MaxItems = 10_000

// SyntheticTurnID groups items that appear before any turn_context.
const SyntheticTurnID = "turn-0"

// Load assembles the full timeline of one session log.
func Load(path string) (*domain.Timeline, error) {
	if dbPath, sessionID, ok := scan.ParseOpenCodeLogPath(path); ok {
		return loadOpenCode(dbPath, sessionID)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("opening session file: %s is a directory", path)
	}

	switch detectFormat(path) {
	case formatGemini:
		return loadGemini(path)
	case formatClaude:
		return loadClaude(path)
	default:
		return loadCodex(path)
	}
}

type logFormat int

const (
	formatCodex logFormat = iota
	formatClaude
	formatGemini
)

// detectFormat sniffs the file. Gemini sessions are identified by their
// path shape; Claude logs by their record types in the first lines; the
// rest is treated as Codex.
func detectFormat(path string) logFormat {
	if scan.IsGeminiSessionPath(path) {
		return formatGemini
	}

	file, err := os.Open(path)
	if err != nil {
		return formatCodex
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for i := 0; i < 50 && scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var value map[string]any
		if err := json.Unmarshal([]byte(line), &value); err != nil {
			continue
		}
		switch value["type"] {
		case "user", "assistant", "summary", "progress", "file-history-snapshot":
			return formatClaude
		case "session_meta", "turn_context", "response_item", "event_msg":
			return formatCodex
		}
	}
	return formatCodex
}

func loadCodex(path string) (*domain.Timeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	defer file.Close()

	timeline := &domain.Timeline{TurnContexts: make(map[string]domain.TurnContext)}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	currentTurnID := SyntheticTurnID
	lastEmittedTurnID := ""
	turnContextLines := make(map[string]int64)

	// Dedup state: retried prompts after an aborted turn, repeated prompts
	// within a turn, and Codex's habit of re-emitting identical token_count
	// events back to back.
	lastUserPrompt := ""
	pendingAbortedPrompt := ""
	lastUserPromptByTurn := make(map[string]string)
	lastTokenFingerprint := ""
	lastTokenIndex := -1

	var lineNo int64
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var value map[string]any
		if err := json.Unmarshal([]byte(line), &value); err != nil {
			timeline.Warnings++
			appendNote(timeline, line, lineNo)
			continue
		}

		if lineNo == 1 && value["type"] == "session_meta" {
			if meta, err := domain.ParseSessionMetaLine(line); err == nil {
				timeline.Meta = meta
			}
			continue
		}

		if value["type"] == "event_msg" {
			payload, _ := value["payload"].(map[string]any)
			if payloadType, _ := payload["type"].(string); payloadType == "turn_aborted" {
				pendingAbortedPrompt = lastUserPrompt
			}
		}

		parsed := domain.ParseCodexLine(value, currentTurnID)
		switch parsed.Action {
		case domain.LineTurnContext:
			currentTurnID = parsed.Context.TurnID
			turnContextLines[currentTurnID] = lineNo
			timeline.TurnContexts[currentTurnID] = parsed.Context
		case domain.LineTurnHint:
			currentTurnID = parsed.TurnID
		case domain.LineItem:
			item := parsed.Item
			item.SourceLine = lineNo

			if item.Kind == domain.KindTokenCount {
				if item.Detail == lastTokenFingerprint && lastTokenIndex >= 0 &&
					lastTokenIndex < len(timeline.Items) &&
					timeline.Items[lastTokenIndex].Kind == domain.KindTokenCount {
					timeline.Items = append(timeline.Items[:lastTokenIndex], timeline.Items[lastTokenIndex+1:]...)
				}
				lastTokenFingerprint = item.Detail
				lastTokenIndex = -1
			}

			if item.Kind == domain.KindUser {
				detail := strings.TrimRight(item.Detail, " \t\r\n")
				if prev, ok := lastUserPromptByTurn[item.TurnID]; ok && strings.TrimRight(prev, " \t\r\n") == detail {
					pendingAbortedPrompt = ""
					continue
				}
				if pendingAbortedPrompt != "" && strings.TrimRight(pendingAbortedPrompt, " \t\r\n") == detail {
					pendingAbortedPrompt = ""
					continue
				}
				pendingAbortedPrompt = ""
			}

			if item.TurnID != "" && item.TurnID != lastEmittedTurnID {
				if len(timeline.Items) >= MaxItems {
					timeline.Truncated = true
					break
				}
				timeline.Items = append(timeline.Items, turnItem(item.TurnID, turnContextLines[item.TurnID]))
				lastEmittedTurnID = item.TurnID
			}

			if len(timeline.Items) >= MaxItems {
				timeline.Truncated = true
				break
			}
			timeline.Items = append(timeline.Items, item)

			if item.Kind == domain.KindUser {
				detail := strings.TrimRight(item.Detail, " \t\r\n")
				lastUserPrompt = detail
				if item.TurnID != "" {
					lastUserPromptByTurn[item.TurnID] = detail
				}
			}
			if item.Kind == domain.KindTokenCount {
				lastTokenIndex = len(timeline.Items) - 1
			}
		}
	}
	if err := scanner.Err(); err != nil {
		timeline.Warnings++
		timeline.Truncated = true
	}

	finalize(timeline)
	return timeline, nil
}

func loadClaude(path string) (*domain.Timeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	defer file.Close()

	timeline := &domain.Timeline{TurnContexts: make(map[string]domain.TurnContext)}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lineNo int64
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var value map[string]any
		if err := json.Unmarshal([]byte(line), &value); err != nil {
			timeline.Warnings++
			appendNote(timeline, line, lineNo)
			continue
		}

		if timeline.Meta.ID == "" || timeline.Meta.CWD == "" {
			hint := domain.ExtractClaudeMetaHint(value)
			if timeline.Meta.ID == "" {
				timeline.Meta.ID = hint.SessionID
			}
			if timeline.Meta.CWD == "" {
				timeline.Meta.CWD = hint.CWD
			}
			if timeline.Meta.StartedAt == "" {
				timeline.Meta.StartedAt = hint.Timestamp
			}
		}

		for _, item := range domain.ParseClaudeLine(value, lineNo) {
			if len(timeline.Items) >= MaxItems {
				timeline.Truncated = true
				break
			}
			appendDedupedUser(timeline, item)
		}
		if timeline.Truncated {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		timeline.Warnings++
		timeline.Truncated = true
	}

	finalize(timeline)
	return timeline, nil
}

func loadGemini(path string) (*domain.Timeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}

	timeline := &domain.Timeline{TurnContexts: make(map[string]domain.TurnContext)}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		timeline.Warnings++
		timeline.Truncated = true
		finalize(timeline)
		return timeline, nil
	}

	timeline.Meta.ID = domain.ExtractGeminiSessionID(doc)
	timeline.Meta.StartedAt = domain.ExtractGeminiStartTime(doc)

	items, warnings := domain.ParseGeminiSession(doc)
	timeline.Warnings += warnings
	for _, item := range items {
		if len(timeline.Items) >= MaxItems {
			timeline.Truncated = true
			break
		}
		appendDedupedUser(timeline, item)
	}

	finalize(timeline)
	return timeline, nil
}

// appendDedupedUser appends item, dropping a user message whose text matches,
// ignoring trailing whitespace, the item directly before it when that item is
// also a user message.
func appendDedupedUser(timeline *domain.Timeline, item domain.Item) {
	if item.Kind == domain.KindUser {
		for i := len(timeline.Items) - 1; i >= 0; i-- {
			prev := timeline.Items[i]
			if prev.Kind == domain.KindUser {
				if strings.TrimRight(prev.Detail, " \t\r\n") == strings.TrimRight(item.Detail, " \t\r\n") {
					return
				}
				break
			}
			// Anything but a user item in between means it is a real repeat.
			break
		}
	}
	timeline.Items = append(timeline.Items, item)
}

func turnItem(turnID string, sourceLine int64) domain.Item {
	return domain.Item{
		Kind:       domain.KindTurn,
		TurnID:     turnID,
		SourceLine: sourceLine,
		Summary:    "Turn " + shortID(turnID),
		Detail:     turnID,
	}
}

func shortID(value string) string {
	runes := []rune(value)
	if len(runes) <= 8 {
		return value
	}
	return string(runes[:8])
}

func appendNote(timeline *domain.Timeline, line string, lineNo int64) {
	if len(timeline.Items) >= MaxItems {
		timeline.Truncated = true
		return
	}
	summary, _ := domain.FirstNonEmptyLine(line)
	if summary == "" {
		summary = "(unparsed line)"
	}
	timeline.Items = append(timeline.Items, domain.Item{
		Kind:       domain.KindNote,
		SourceLine: lineNo,
		Summary:    domain.ClampSummary(summary),
		Detail:     line,
	})
}

// finalize fills synthetic turn ids, assigns monotonic offsets, and counts
// unpaired tool outputs.
func finalize(timeline *domain.Timeline) {
	originMS, _ := domain.ParseRFC3339MS(timeline.Meta.StartedAt)
	if originMS == 0 {
		for _, item := range timeline.Items {
			if item.TimestampMS != 0 {
				originMS = item.TimestampMS
				break
			}
		}
	}

	var lastOffset int64
	callIDs := make(map[string]bool)
	for i := range timeline.Items {
		item := &timeline.Items[i]
		if item.TurnID == "" {
			item.TurnID = SyntheticTurnID
		}

		offset := lastOffset
		if item.TimestampMS != 0 && originMS != 0 && item.TimestampMS >= originMS {
			offset = item.TimestampMS - originMS
		}
		if offset < lastOffset {
			offset = lastOffset
		}
		item.OffsetMS = offset
		lastOffset = offset

		if item.Kind == domain.KindToolCall && item.CallID != "" {
			callIDs[item.CallID] = true
		}
	}

	for _, item := range timeline.Items {
		if item.Kind == domain.KindToolOutput && item.CallID != "" && !callIDs[item.CallID] {
			timeline.UnpairedOutputs++
		}
	}
}

// LastAssistantOutput streams the session and returns the final assistant
// message body, if any.
func LastAssistantOutput(path string) (string, bool, error) {
	timeline, err := Load(path)
	if err != nil {
		return "", false, err
	}
	for i := len(timeline.Items) - 1; i >= 0; i-- {
		if timeline.Items[i].Kind == domain.KindAssistant {
			return timeline.Items[i].Detail, true, nil
		}
	}
	return "", false, nil
}

// ReadSessionID scans the first lines of a log for its session id without
// assembling anything.
func ReadSessionID(path string) (string, bool) {
	file, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 64*1024)
	for i := 0; i < 200; i++ {
		line, err := reader.ReadString('\n')
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && strings.Contains(trimmed, `"session_meta"`) {
			if meta, metaErr := domain.ParseSessionMetaLine(trimmed); metaErr == nil {
				return meta.ID, true
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
	}
	return "", false
}
