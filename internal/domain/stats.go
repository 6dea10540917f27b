package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// ToolOutcome classifies what a tool output says about its call.
type ToolOutcome int

const (
	OutcomeUnknown ToolOutcome = iota
	OutcomeSuccess
	OutcomeInvalid
	OutcomeError
)

// ToolUsage counts calls per tool name.
type ToolUsage struct {
	Name  string
	Calls int
}

// FileChange counts apply_patch operations per file.
type FileChange struct {
	Path       string
	Operations int
}

// Stats aggregates a session's duration, token usage, tool outcomes, and
// apply_patch changes.
type Stats struct {
	StartMS    int64
	EndMS      int64
	DurationMS int64

	TotalTokens int64
	LastTokens  int64

	ToolCallsTotal   int
	ToolCallsSuccess int
	ToolCallsInvalid int
	ToolCallsError   int
	ToolCallsUnknown int
	ToolsUsed        []ToolUsage

	ApplyPatchCalls      int
	ApplyPatchOperations int
	FilesChanged         []FileChange
	LinesAdded           int
	LinesRemoved         int
}

// ComputeStats derives session statistics from an assembled item stream.
func ComputeStats(meta SessionMeta, items []Item) Stats {
	var stats Stats

	for _, item := range items {
		if item.TimestampMS == 0 {
			continue
		}
		if stats.StartMS == 0 || item.TimestampMS < stats.StartMS {
			stats.StartMS = item.TimestampMS
		}
		if item.TimestampMS > stats.EndMS {
			stats.EndMS = item.TimestampMS
		}
	}
	if stats.StartMS == 0 {
		if ms, ok := ParseRFC3339MS(meta.StartedAt); ok {
			stats.StartMS = ms
		}
	}
	if stats.StartMS != 0 && stats.EndMS >= stats.StartMS {
		stats.DurationMS = stats.EndMS - stats.StartMS
	}

	stats.TotalTokens, stats.LastTokens = tokenUsage(items)

	toolCounts := make(map[string]int)
	fileOps := make(map[string]int)

	for i, item := range items {
		if item.Kind != KindToolCall {
			continue
		}
		stats.ToolCallsTotal++

		name := toolNameFromSummary(item.Summary)
		toolCounts[name]++

		if strings.Contains(strings.ToLower(name), "apply_patch") {
			stats.ApplyPatchCalls++
			ops, files, added, removed := parseApplyPatchStats(item.Detail)
			stats.ApplyPatchOperations += ops
			stats.LinesAdded += added
			stats.LinesRemoved += removed
			for _, file := range files {
				fileOps[file]++
			}
		}

		outcome := OutcomeUnknown
		if item.CallID != "" {
			if output := findToolOutput(items, i, item.CallID); output != nil {
				outcome = ClassifyToolOutput(output.Detail)
			}
		}
		switch outcome {
		case OutcomeSuccess:
			stats.ToolCallsSuccess++
		case OutcomeInvalid:
			stats.ToolCallsInvalid++
		case OutcomeError:
			stats.ToolCallsError++
		default:
			stats.ToolCallsUnknown++
		}
	}

	for name, calls := range toolCounts {
		stats.ToolsUsed = append(stats.ToolsUsed, ToolUsage{Name: name, Calls: calls})
	}
	sort.Slice(stats.ToolsUsed, func(a, b int) bool {
		if stats.ToolsUsed[a].Calls != stats.ToolsUsed[b].Calls {
			return stats.ToolsUsed[a].Calls > stats.ToolsUsed[b].Calls
		}
		return stats.ToolsUsed[a].Name < stats.ToolsUsed[b].Name
	})

	for path, ops := range fileOps {
		stats.FilesChanged = append(stats.FilesChanged, FileChange{Path: path, Operations: ops})
	}
	sort.Slice(stats.FilesChanged, func(a, b int) bool {
		if stats.FilesChanged[a].Operations != stats.FilesChanged[b].Operations {
			return stats.FilesChanged[a].Operations > stats.FilesChanged[b].Operations
		}
		return stats.FilesChanged[a].Path < stats.FilesChanged[b].Path
	})

	return stats
}

// tokenUsage keeps the largest total seen; Codex re-emits token_count events
// and the biggest total is the final one.
func tokenUsage(items []Item) (total, last int64) {
	for _, item := range items {
		if item.Kind != KindTokenCount {
			continue
		}
		t, l, ok := parseTokenCountDetail(item.Detail)
		if !ok {
			continue
		}
		if t > total {
			total = t
			last = l
		}
	}
	return total, last
}

func parseTokenCountDetail(detail string) (total, last int64, ok bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(detail), &parsed); err != nil {
		return 0, 0, false
	}
	t, haveTotal := getNumber(getMap(parsed, "total_token_usage"), "total_tokens")
	if !haveTotal {
		return 0, 0, false
	}
	l, _ := getNumber(getMap(parsed, "last_token_usage"), "total_tokens")
	return int64(t), int64(l), true
}

func toolNameFromSummary(summary string) string {
	trimmed := strings.TrimSpace(summary)
	return strings.TrimSuffix(trimmed, "()")
}

func findToolOutput(items []Item, callIndex int, callID string) *Item {
	for i := callIndex + 1; i < len(items); i++ {
		if items[i].Kind == KindToolOutput && items[i].CallID == callID {
			return &items[i]
		}
	}
	// Pairing is order-independent: fall back to a full scan.
	for i := range items {
		if items[i].Kind == KindToolOutput && items[i].CallID == callID {
			return &items[i]
		}
	}
	return nil
}

// ClassifyToolOutput inspects a tool output body and classifies the call.
func ClassifyToolOutput(detail string) ToolOutcome {
	if code, ok := parseExitCode(detail); ok {
		if code == 0 {
			return OutcomeSuccess
		}
		return OutcomeError
	}

	trimmed := strings.TrimLeft(detail, " \t\r\n")
	if strings.HasPrefix(trimmed, "Success.") {
		return OutcomeSuccess
	}

	lower := strings.ToLower(trimmed)
	for _, marker := range []string{
		"invalid tool call", "invalid tool", "unknown tool", "tool not found",
		"unrecognized tool", "unknown subcommand", "invalid argument",
		"unexpected argument", "unknown option", "unrecognized option",
	} {
		if strings.Contains(lower, marker) {
			return OutcomeInvalid
		}
	}

	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "no such file or directory") {
		return OutcomeError
	}
	if strings.HasPrefix(lower, "error") || strings.HasPrefix(lower, "failed") ||
		strings.Contains(lower, "error:") || strings.Contains(lower, "failed:") {
		return OutcomeError
	}

	return OutcomeUnknown
}

func parseExitCode(detail string) (int, bool) {
	const marker = "Process exited with code "
	idx := strings.Index(detail, marker)
	if idx < 0 {
		return 0, false
	}
	rest := detail[idx+len(marker):]
	end := 0
	for end < len(rest) && (rest[end] == '-' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	code, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return code, true
}

// parseApplyPatchStats scans an apply_patch body for file operations and
// added/removed line counts.
func parseApplyPatchStats(patch string) (ops int, files []string, added, removed int) {
	seen := make(map[string]bool)
	for _, line := range strings.Split(patch, "\n") {
		matched := false
		for _, prefix := range []string{
			"*** Add File: ", "*** Update File: ", "*** Delete File: ", "*** Move to: ",
		} {
			if path, ok := strings.CutPrefix(line, prefix); ok {
				ops++
				path = strings.TrimSpace(path)
				if !seen[path] {
					seen[path] = true
					files = append(files, path)
				}
				matched = true
				break
			}
		}
		if matched || strings.HasPrefix(line, "***") {
			continue
		}
		if len(line) > 0 {
			switch line[0] {
			case '+':
				added++
			case '-':
				removed++
			}
		}
	}
	sort.Strings(files)
	return ops, files, added, removed
}
