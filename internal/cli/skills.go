package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/timeline"
	"github.com/spf13/cobra"
)

var (
	skillsID   string
	skillsJSON bool
	skillsFull bool
)

var skillsCmd = &cobra.Command{
	Use:   "skills [log-or-project]",
	Short: "Summarize skill spans in a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := parseEngine(engineFlag)
		if err != nil {
			return err
		}

		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		logPath, err := resolveSessionLogPath(engine, target, skillsID)
		if err != nil {
			return err
		}

		tl, err := timeline.Load(logPath)
		if err != nil {
			return err
		}

		spans := domain.DetectSkillSpans(tl.Items)
		loops := domain.DetectSkillLoops(spans)
		metrics := make([]domain.SkillMetrics, len(spans))
		for i, span := range spans {
			metrics[i] = domain.ComputeSkillMetrics(span, tl.Items)
		}

		out := stdoutWriter()
		if skillsJSON {
			printSkillsJSON(out, tl, logPath, spans, loops, metrics)
		} else {
			printSkillsHuman(out, tl.Items, spans, loops, metrics, skillsFull)
		}

		errOut := stderrWriter()
		if tl.Warnings > 0 {
			errOut.Printf("warnings: %d", tl.Warnings)
		}
		if tl.Truncated {
			errOut.Println("truncated: true")
		}
		return nil
	},
}

func printSkillsJSON(out *lineWriter, tl *domain.Timeline, logPath string, spans []domain.SkillSpan, loops []domain.SkillLoop, metrics []domain.SkillMetrics) {
	sessionID := tl.Meta.ID
	if sessionID == "" {
		if id, ok := timeline.ReadSessionID(logPath); ok {
			sessionID = id
		}
	}

	spansJSON := make([]map[string]any, len(spans))
	for i, span := range spans {
		m := metrics[i]
		entry := map[string]any{
			"name":         span.Name,
			"depth":        span.Depth,
			"start_idx":    span.StartIdx,
			"end_idx":      span.EndIdx,
			"tool_calls":   m.ToolCalls,
			"output_chars": m.OutputChars,
		}
		if m.DurationMS >= 0 {
			entry["duration_ms"] = m.DurationMS
		}
		spansJSON[i] = entry
	}

	loopsJSON := make([]map[string]any, len(loops))
	for i, loop := range loops {
		loopsJSON[i] = map[string]any{
			"name":         loop.Name,
			"count":        len(loop.SpanIndices),
			"span_indices": loop.SpanIndices,
		}
	}

	sessionMS := sessionDurationMS(tl.Items)
	totalSkillMS := totalTopLevelSkillMS(spans, metrics)
	payload := map[string]any{
		"session_id": sessionID,
		"spans":      spansJSON,
		"loops":      loopsJSON,
		"summary": map[string]any{
			"total_spans":             len(spans),
			"total_skill_duration_ms": totalSkillMS,
			"session_duration_ms":     sessionMS,
		},
	}

	rendered, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		out.Printf("%v", payload)
		return
	}
	out.Println(string(rendered))
}

func printSkillsHuman(out *lineWriter, items []domain.Item, spans []domain.SkillSpan, loops []domain.SkillLoop, metrics []domain.SkillMetrics, full bool) {
	if len(spans) == 0 {
		out.Println("No skill spans detected.")
		return
	}

	loopSuffix := "s"
	if len(loops) == 1 {
		loopSuffix = ""
	}
	out.Printf("Skill spans: %d detected, %d loop%s", len(spans), len(loops), loopSuffix)
	out.Println("")
	out.Println("  #  Skill                     Depth  Tools  Duration  Output")

	for idx, span := range spans {
		m := metrics[idx]
		name := span.Name
		if note := loopNote(idx, loops); note != "" {
			name += " " + note
		}
		out.Printf("  %2d  %-24s %5d  %5d  %8s  %10s",
			idx+1, truncateEnd(name, 24), span.Depth, m.ToolCalls,
			formatDurationMS(m.DurationMS), fmt.Sprintf("%d chars", m.OutputChars))

		if full {
			tools := toolCallSummaries(span, items)
			if len(tools) > 0 {
				out.Printf("      tools: %s", strings.Join(tools, ", "))
			}
		}
	}

	if len(loops) > 0 {
		out.Println("")
		out.Println("Loops:")
		for _, loop := range loops {
			indices := make([]string, len(loop.SpanIndices))
			for i, idx := range loop.SpanIndices {
				indices[i] = fmt.Sprintf("%d", idx+1)
			}
			out.Printf("  - %q invoked %dx consecutively (spans %s)",
				loop.Name, len(loop.SpanIndices), strings.Join(indices, ", "))
		}
	}

	if sessionMS := sessionDurationMS(items); sessionMS > 0 {
		totalSkillMS := totalTopLevelSkillMS(spans, metrics)
		pct := float64(totalSkillMS) / float64(sessionMS) * 100
		out.Println("")
		out.Printf("Skill time: %s / %s session (%.1f%%)",
			formatDurationMS(totalSkillMS), formatDurationMS(sessionMS), pct)
	}
}

func loopNote(spanIdx int, loops []domain.SkillLoop) string {
	for _, loop := range loops {
		for _, idx := range loop.SpanIndices {
			if idx == spanIdx {
				return fmt.Sprintf("[loop x%d]", len(loop.SpanIndices))
			}
		}
	}
	return ""
}

func toolCallSummaries(span domain.SkillSpan, items []domain.Item) []string {
	if len(items) == 0 || span.StartIdx >= len(items) {
		return nil
	}
	endIdx := span.EndIdx
	if endIdx < 0 || endIdx >= len(items) {
		endIdx = len(items) - 1
	}

	var out []string
	for i := span.StartIdx + 1; i <= endIdx; i++ {
		if items[i].Kind == domain.KindToolCall {
			out = append(out, items[i].Summary)
		}
	}
	if len(out) > 12 {
		remaining := len(out) - 12
		out = append(out[:12], fmt.Sprintf("... (+%d more)", remaining))
	}
	return out
}

func sessionDurationMS(items []domain.Item) int64 {
	var minTS, maxTS int64
	for _, item := range items {
		if item.TimestampMS == 0 {
			continue
		}
		if minTS == 0 || item.TimestampMS < minTS {
			minTS = item.TimestampMS
		}
		if item.TimestampMS > maxTS {
			maxTS = item.TimestampMS
		}
	}
	if minTS == 0 || maxTS < minTS {
		return 0
	}
	return maxTS - minTS
}

func totalTopLevelSkillMS(spans []domain.SkillSpan, metrics []domain.SkillMetrics) int64 {
	var total int64
	for i, span := range spans {
		if span.Depth != 0 {
			continue
		}
		if metrics[i].DurationMS > 0 {
			total += metrics[i].DurationMS
		}
	}
	return total
}

func formatDurationMS(ms int64) string {
	if ms < 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 10_000:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case ms < 60_000:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case ms < 3_600_000:
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func truncateEnd(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width])
}

func init() {
	skillsCmd.Flags().StringVar(&skillsID, "id", "", "Session id to open")
	skillsCmd.Flags().BoolVar(&skillsJSON, "json", false, "Emit machine-readable JSON")
	skillsCmd.Flags().BoolVar(&skillsFull, "full", false, "List the tool calls inside each span")
}
