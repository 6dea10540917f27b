package domain

import (
	"encoding/json"
	"strings"
)

// SkillSpan is a contiguous range of timeline items belonging to a single
// skill invocation.
type SkillSpan struct {
	// Name is extracted from the Skill() tool call input (e.g. "commit").
	Name string
	// StartIdx is the index of the Skill() ToolCall item.
	StartIdx int
	// EndIdx is the last item of the span, inclusive; -1 when the skill
	// never completed before the stream ended.
	EndIdx int
	// CallID links the Skill() ToolCall to its ToolOutput when available.
	CallID string
	// Depth is the nesting level (0 = top-level).
	Depth int
	// ParentIdx is the index of the enclosing span in the spans list, or -1.
	ParentIdx int
}

// SkillMetrics aggregates one span.
type SkillMetrics struct {
	ToolCalls   int
	ToolOutputs int
	DurationMS  int64 // -1 when timestamps are missing
	OutputChars int
}

// SkillLoop records consecutive top-level invocations of the same skill.
type SkillLoop struct {
	Name        string
	SpanIndices []int
}

// ExtractSkillName reads the "skill" field of a Skill() call's JSON input.
func ExtractSkillName(detailJSON string) (string, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(detailJSON), &parsed); err != nil {
		return "", false
	}
	name := getString(parsed, "skill")
	return name, name != ""
}

// ExtractCodexSkillName reads the <name> tag of a Codex <skill> prompt.
func ExtractCodexSkillName(text string) (string, bool) {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if !strings.HasPrefix(trimmed, "<skill>") {
		return "", false
	}
	start := strings.Index(trimmed, "<name>")
	if start < 0 {
		return "", false
	}
	start += len("<name>")
	end := strings.Index(trimmed[start:], "</name>")
	if end < 0 {
		return "", false
	}
	name := strings.TrimSpace(trimmed[start : start+end])
	return name, name != ""
}

func isSkillCall(item Item) bool {
	return item.Kind == KindToolCall && item.Summary == "Skill()"
}

// DetectSkillSpans walks the timeline and returns all skill spans, nested
// spans included. A span closes at the next real user message; detection
// failures never fail assembly.
func DetectSkillSpans(items []Item) []SkillSpan {
	var spans []SkillSpan
	var stack []int

	closeAll := func(idx int) {
		end := idx - 1
		if end < 0 {
			end = 0
		}
		for len(stack) > 0 {
			spanIdx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if spans[spanIdx].EndIdx < 0 {
				spans[spanIdx].EndIdx = end
			}
		}
	}

	for idx, item := range items {
		if isSkillCall(item) {
			if item.CallID == "" {
				closeAll(idx)
			}

			name, ok := ExtractSkillName(item.Detail)
			if !ok {
				name = "unknown"
			}

			parentIdx := -1
			if len(stack) > 0 {
				parentIdx = stack[len(stack)-1]
			}

			spans = append(spans, SkillSpan{
				Name:      name,
				StartIdx:  idx,
				EndIdx:    -1,
				CallID:    item.CallID,
				Depth:     len(stack),
				ParentIdx: parentIdx,
			})
			stack = append(stack, len(spans)-1)
			continue
		}

		if item.Kind == KindUser && !IsMetadataPrompt(item.Detail) {
			closeAll(idx)
		}
	}

	return spans
}

// ComputeSkillMetrics aggregates the items inside one span.
func ComputeSkillMetrics(span SkillSpan, items []Item) SkillMetrics {
	metrics := SkillMetrics{DurationMS: -1}
	if len(items) == 0 || span.StartIdx >= len(items) {
		return metrics
	}

	endIdx := span.EndIdx
	if endIdx < 0 || endIdx >= len(items) {
		endIdx = len(items) - 1
	}
	if endIdx < span.StartIdx {
		endIdx = span.StartIdx
	}

	for i := span.StartIdx; i <= endIdx; i++ {
		switch items[i].Kind {
		case KindToolCall:
			if i != span.StartIdx {
				metrics.ToolCalls++
			}
		case KindToolOutput:
			metrics.ToolOutputs++
			metrics.OutputChars += len([]rune(items[i].Detail))
		}
	}

	startTS := items[span.StartIdx].TimestampMS
	endTS := items[endIdx].TimestampMS
	if startTS != 0 && endTS != 0 && endTS >= startTS {
		metrics.DurationMS = endTS - startTS
	}
	return metrics
}

// DetectSkillLoops finds runs of two or more consecutive top-level spans
// with the same skill name.
func DetectSkillLoops(spans []SkillSpan) []SkillLoop {
	var out []SkillLoop
	currentName := ""
	var currentIndices []int

	flush := func() {
		if len(currentIndices) >= 2 && currentName != "" {
			out = append(out, SkillLoop{
				Name:        currentName,
				SpanIndices: append([]int(nil), currentIndices...),
			})
		}
	}

	for idx, span := range spans {
		if span.Depth != 0 {
			continue
		}
		if span.Name == currentName && currentName != "" {
			currentIndices = append(currentIndices, idx)
			continue
		}
		flush()
		currentName = span.Name
		currentIndices = currentIndices[:0]
		currentIndices = append(currentIndices, idx)
	}
	flush()

	return out
}
