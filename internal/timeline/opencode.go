package timeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/scan"
)

// loadOpenCode fetches one session's OpenCode rows through the scan package
// and assembles a timeline from them. The row layout mirrors the current on-disk schema: user messages open turns,
// assistant messages hang off their parentID, and parts carry the bodies.
func loadOpenCode(dbPath, sessionID string) (*domain.Timeline, error) {
	rows, _, err := scan.OpenCodeSessionRows(dbPath, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading OpenCode session: %w", err)
	}

	timeline := &domain.Timeline{
		Meta:         domain.SessionMeta{ID: sessionID},
		TurnContexts: make(map[string]domain.TurnContext),
	}

	type message struct {
		row  scan.OpenCodeMessageRow
		data map[string]any
	}

	var users []message
	assistantsByParent := make(map[string][]message)

	for _, row := range rows {
		var data map[string]any
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			timeline.Warnings++
			continue
		}
		msg := message{row: row, data: data}
		switch data["role"] {
		case "user":
			users = append(users, msg)
		case "assistant":
			if parentID, _ := data["parentID"].(string); parentID != "" {
				assistantsByParent[parentID] = append(assistantsByParent[parentID], msg)
			}
		}
	}

	if len(users) > 0 {
		timeline.Meta.StartedAt = time.UnixMilli(users[0].row.TimeCreatedMS).UTC().Format(time.RFC3339)
	}

	var runningTokens int64
	for _, user := range users {
		turnID := user.row.ID
		ts := time.UnixMilli(user.row.TimeCreatedMS).UTC().Format(time.RFC3339)

		ctx := domain.TurnContext{TurnID: turnID}
		if model, ok := user.data["model"].(map[string]any); ok {
			provider, _ := model["providerID"].(string)
			modelID, _ := model["modelID"].(string)
			if provider != "" && modelID != "" {
				ctx.Model = provider + "/" + modelID
			}
		}
		timeline.TurnContexts[turnID] = ctx
		timeline.Items = append(timeline.Items, turnItem(turnID, 0))

		if text := joinOpenCodeUserParts(user.row.Parts); strings.TrimSpace(text) != "" {
			timeline.Items = append(timeline.Items, openCodeTextItem(domain.KindUser, text, turnID, ts))
		}

		assistants := assistantsByParent[turnID]
		sort.SliceStable(assistants, func(a, b int) bool {
			if assistants[a].row.TimeCreatedMS != assistants[b].row.TimeCreatedMS {
				return assistants[a].row.TimeCreatedMS < assistants[b].row.TimeCreatedMS
			}
			return assistants[a].row.ID < assistants[b].row.ID
		})
		for _, assistant := range assistants {
			assistantTS := time.UnixMilli(assistant.row.TimeCreatedMS).UTC().Format(time.RFC3339)
			appendOpenCodeAssistant(timeline, assistant.data, assistant.row.Parts, turnID, assistantTS, &runningTokens)
		}

		if len(timeline.Items) >= MaxItems {
			timeline.Truncated = true
			break
		}
	}

	finalize(timeline)
	return timeline, nil
}

func openCodeTextItem(kind domain.ItemKind, text, turnID, ts string) domain.Item {
	summary, _ := domain.FirstNonEmptyLine(text)
	if summary == "" {
		summary = string(kind)
	}
	tsMS, _ := domain.ParseRFC3339MS(ts)
	return domain.Item{
		Kind:        kind,
		TurnID:      turnID,
		Timestamp:   ts,
		TimestampMS: tsMS,
		Summary:     domain.ClampSummary(summary),
		Detail:      strings.TrimRight(text, " \t\r\n"),
	}
}

func joinOpenCodeUserParts(parts []string) string {
	var text strings.Builder
	var attachments []string

	for _, raw := range parts {
		var part map[string]any
		if err := json.Unmarshal([]byte(raw), &part); err != nil {
			continue
		}
		switch part["type"] {
		case "text":
			if chunk, ok := part["text"].(string); ok {
				text.WriteString(chunk)
			}
		case "file":
			mime, _ := part["mime"].(string)
			url, _ := part["url"].(string)
			filename, _ := part["filename"].(string)
			label := strings.TrimSpace(strings.Join([]string{"[file]", mime, filename, url}, " "))
			attachments = append(attachments, label)
		}
	}

	out := text.String()
	if len(attachments) > 0 {
		if strings.TrimSpace(out) != "" {
			out += "\n\n"
		}
		out += strings.Join(attachments, "\n")
	}
	return out
}

func appendOpenCodeAssistant(timeline *domain.Timeline, data map[string]any, parts []string, turnID, ts string, runningTokens *int64) {
	var outputText strings.Builder

	for _, raw := range parts {
		var part map[string]any
		if err := json.Unmarshal([]byte(raw), &part); err != nil {
			timeline.Warnings++
			continue
		}
		switch part["type"] {
		case "reasoning":
			text, _ := part["text"].(string)
			if strings.TrimSpace(text) == "" {
				continue
			}
			timeline.Items = append(timeline.Items, openCodeTextItem(domain.KindThinking, text, turnID, ts))
		case "text":
			if chunk, ok := part["text"].(string); ok {
				outputText.WriteString(chunk)
			}
		case "tool":
			appendOpenCodeTool(timeline, part, turnID, ts)
		}
	}

	if text := outputText.String(); strings.TrimSpace(text) != "" {
		timeline.Items = append(timeline.Items, openCodeTextItem(domain.KindAssistant, text, turnID, ts))
	}

	if last, ok := openCodeTotalTokens(data); ok {
		*runningTokens += last
		detail, err := json.MarshalIndent(map[string]any{
			"total_token_usage": map[string]any{"total_tokens": *runningTokens},
			"last_token_usage":  map[string]any{"total_tokens": last},
		}, "", "  ")
		if err == nil {
			tsMS, _ := domain.ParseRFC3339MS(ts)
			timeline.Items = append(timeline.Items, domain.Item{
				Kind:        domain.KindTokenCount,
				TurnID:      turnID,
				Timestamp:   ts,
				TimestampMS: tsMS,
				Summary:     fmt.Sprintf("tokens: total=%d last=%d", *runningTokens, last),
				Detail:      string(detail),
			})
		}
	}
}

func appendOpenCodeTool(timeline *domain.Timeline, part map[string]any, turnID, ts string) {
	tool, _ := part["tool"].(string)
	if tool == "" {
		tool = "tool"
	}
	callID, _ := part["callID"].(string)
	state, _ := part["state"].(map[string]any)

	arguments := ""
	if raw, ok := state["raw"].(string); ok && strings.TrimSpace(raw) != "" {
		arguments = strings.TrimSpace(raw)
	} else if input, ok := state["input"]; ok {
		if encoded, err := json.MarshalIndent(input, "", "  "); err == nil {
			arguments = string(encoded)
		}
	}

	callTS, outTS := openCodeToolTimestamps(state, ts)
	callMS, _ := domain.ParseRFC3339MS(callTS)
	timeline.Items = append(timeline.Items, domain.Item{
		Kind:        domain.KindToolCall,
		TurnID:      turnID,
		CallID:      callID,
		Timestamp:   callTS,
		TimestampMS: callMS,
		Summary:     domain.ClampSummary(tool + "()"),
		Detail:      arguments,
	})

	output := ""
	switch state["status"] {
	case "completed":
		output, _ = state["output"].(string)
	case "error":
		if errText, ok := state["error"].(string); ok && strings.TrimSpace(errText) != "" {
			output = "error: " + errText
		}
	}
	if strings.TrimSpace(output) == "" {
		return
	}
	summary, _ := domain.FirstNonEmptyLine(output)
	outMS, _ := domain.ParseRFC3339MS(outTS)
	timeline.Items = append(timeline.Items, domain.Item{
		Kind:        domain.KindToolOutput,
		TurnID:      turnID,
		CallID:      callID,
		Timestamp:   outTS,
		TimestampMS: outMS,
		Summary:     domain.ClampSummary(summary),
		Detail:      output,
	})
}

func openCodeToolTimestamps(state map[string]any, fallback string) (string, string) {
	timeObj, _ := state["time"].(map[string]any)
	start := fallback
	end := fallback
	if ms, ok := timeObj["start"].(float64); ok {
		start = time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339)
		end = start
	}
	if ms, ok := timeObj["end"].(float64); ok {
		end = time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339)
	}
	return start, end
}

func openCodeTotalTokens(data map[string]any) (int64, bool) {
	tokens, ok := data["tokens"].(map[string]any)
	if !ok {
		return 0, false
	}
	if total, ok := tokens["total"].(float64); ok {
		return int64(total), true
	}
	sum := 0.0
	for _, key := range []string{"input", "output", "reasoning"} {
		if v, ok := tokens[key].(float64); ok {
			sum += v
		}
	}
	if cache, ok := tokens["cache"].(map[string]any); ok {
		for _, key := range []string{"read", "write"} {
			if v, ok := cache[key].(float64); ok {
				sum += v
			}
		}
	}
	return int64(sum), true
}
