package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseCodexLine decodes one Codex JSONL record. currentTurnID is the turn
// in effect before this line; emitted items inherit it.
func ParseCodexLine(value map[string]any, currentTurnID string) ParsedLine {
	timestamp := getString(value, "timestamp")
	timestampMS, _ := ParseRFC3339MS(timestamp)

	switch getString(value, "type") {
	case "turn_context":
		return parseTurnContext(value)
	case "event_msg":
		return parseEventMsg(value, currentTurnID, timestamp, timestampMS)
	case "response_item":
		return parseResponseItem(value, currentTurnID, timestamp, timestampMS)
	}
	return ParsedLine{Action: LineIgnore}
}

func parseTurnContext(value map[string]any) ParsedLine {
	payload := getMap(value, "payload")
	turnID := getString(payload, "turn_id")
	if turnID == "" {
		return ParsedLine{Action: LineIgnore}
	}

	ctx := TurnContext{
		TurnID:         turnID,
		CWD:            getString(payload, "cwd"),
		Model:          getString(payload, "model"),
		Personality:    getString(payload, "personality"),
		ApprovalPolicy: getString(payload, "approval_policy"),
		SandboxPolicy:  getString(getMap(payload, "sandbox_policy"), "type"),
	}
	if s, ok := payload["user_instructions"].(string); ok {
		ctx.UserInstructionsLen = len(s)
	}
	settings := getMap(getMap(payload, "collaboration_mode"), "settings")
	if s, ok := settings["developer_instructions"].(string); ok {
		ctx.DeveloperInstructionsLen = len(s)
	}

	return ParsedLine{Action: LineTurnContext, Context: ctx}
}

func parseEventMsg(value map[string]any, currentTurnID, timestamp string, timestampMS int64) ParsedLine {
	payload := getMap(value, "payload")
	payloadType := getString(payload, "type")

	if payloadType == "task_started" {
		if turnID := getString(payload, "turn_id"); turnID != "" {
			return ParsedLine{Action: LineTurnHint, TurnID: turnID}
		}
	}

	// Codex duplicates user prompts as both an event_msg user_message and a
	// response_item message. Only the response_item form is kept so metadata
	// prompt filtering and dedup see a single stream.
	if payloadType == "user_message" {
		return ParsedLine{Action: LineIgnore}
	}

	if payloadType == "token_count" {
		info := getMap(payload, "info")
		if info == nil {
			return ParsedLine{Action: LineIgnore}
		}
		total, haveTotal := getNumber(getMap(info, "total_token_usage"), "total_tokens")
		last, haveLast := getNumber(getMap(info, "last_token_usage"), "total_tokens")

		summary := "tokens"
		switch {
		case haveTotal && haveLast:
			summary = fmt.Sprintf("tokens: total=%d last=%d", int64(total), int64(last))
		case haveTotal:
			summary = fmt.Sprintf("tokens: total=%d", int64(total))
		}

		return ParsedLine{Action: LineItem, Item: Item{
			Kind:        KindTokenCount,
			TurnID:      currentTurnID,
			Timestamp:   timestamp,
			TimestampMS: timestampMS,
			Summary:     summary,
			Detail:      prettyJSON(info),
		}}
	}

	return ParsedLine{Action: LineIgnore}
}

func parseResponseItem(value map[string]any, currentTurnID, timestamp string, timestampMS int64) ParsedLine {
	payload := getMap(value, "payload")

	switch getString(payload, "type") {
	case "reasoning":
		return parseReasoning(payload, currentTurnID, timestamp, timestampMS)
	case "message":
		return parseMessage(payload, currentTurnID, timestamp, timestampMS)
	case "function_call":
		name := getString(payload, "name")
		if name == "" {
			name = "function_call"
		}
		return ParsedLine{Action: LineItem, Item: Item{
			Kind:        KindToolCall,
			TurnID:      currentTurnID,
			CallID:      getString(payload, "call_id"),
			Timestamp:   timestamp,
			TimestampMS: timestampMS,
			Summary:     ClampSummary(name + "()"),
			Detail:      getString(payload, "arguments"),
		}}
	case "function_call_output":
		output := getString(payload, "output")
		if strings.TrimSpace(output) == "" {
			return ParsedLine{Action: LineIgnore}
		}
		summary, _ := FirstNonEmptyLine(output)
		if summary == "" {
			summary = "(tool output)"
		}
		return ParsedLine{Action: LineItem, Item: Item{
			Kind:        KindToolOutput,
			TurnID:      currentTurnID,
			CallID:      getString(payload, "call_id"),
			Timestamp:   timestamp,
			TimestampMS: timestampMS,
			Summary:     ClampSummary(summary),
			Detail:      output,
		}}
	case "custom_tool_call":
		name := getString(payload, "name")
		if name == "" {
			name = "tool_call"
		}
		return ParsedLine{Action: LineItem, Item: Item{
			Kind:        KindToolCall,
			TurnID:      currentTurnID,
			CallID:      getString(payload, "call_id"),
			Timestamp:   timestamp,
			TimestampMS: timestampMS,
			Summary:     ClampSummary(name),
			Detail:      getString(payload, "input"),
		}}
	case "custom_tool_call_output":
		return parseCustomToolCallOutput(payload, currentTurnID, timestamp, timestampMS)
	}
	return ParsedLine{Action: LineIgnore}
}

func parseReasoning(payload map[string]any, currentTurnID, timestamp string, timestampMS int64) ParsedLine {
	var parts []string
	for _, entry := range getSlice(payload, "summary") {
		block, _ := entry.(map[string]any)
		if getString(block, "type") != "summary_text" {
			continue
		}
		if text := strings.TrimSpace(getString(block, "text")); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return ParsedLine{Action: LineIgnore}
	}

	detail := strings.Join(parts, "\n\n")
	summary, _ := FirstNonEmptyLine(detail)
	if summary == "" {
		summary = "thinking"
	}
	return ParsedLine{Action: LineItem, Item: Item{
		Kind:        KindThinking,
		TurnID:      currentTurnID,
		Timestamp:   timestamp,
		TimestampMS: timestampMS,
		Summary:     ClampSummary(summary),
		Detail:      detail,
	}}
}

func parseMessage(payload map[string]any, currentTurnID, timestamp string, timestampMS int64) ParsedLine {
	role := getString(payload, "role")

	var texts []string
	for _, entry := range getSlice(payload, "content") {
		block, _ := entry.(map[string]any)
		blockType := getString(block, "type")
		if blockType != "input_text" && blockType != "output_text" {
			continue
		}
		if text, ok := block["text"].(string); ok {
			texts = append(texts, text)
		}
	}

	joined := strings.Join(texts, "\n")
	if strings.TrimSpace(joined) == "" {
		return ParsedLine{Action: LineIgnore}
	}
	if role == "user" && IsMetadataPrompt(joined) {
		return ParsedLine{Action: LineIgnore}
	}
	if role == "developer" {
		return ParsedLine{Action: LineIgnore}
	}

	kind := KindNote
	switch role {
	case "assistant":
		kind = KindAssistant
	case "user":
		kind = KindUser
	}

	summary, _ := FirstNonEmptyLine(joined)
	if summary == "" {
		summary = "(message)"
	}
	return ParsedLine{Action: LineItem, Item: Item{
		Kind:        kind,
		TurnID:      currentTurnID,
		Timestamp:   timestamp,
		TimestampMS: timestampMS,
		Summary:     ClampSummary(summary),
		Detail:      joined,
	}}
}

func parseCustomToolCallOutput(payload map[string]any, currentTurnID, timestamp string, timestampMS int64) ParsedLine {
	raw := getString(payload, "output")
	if strings.TrimSpace(raw) == "" {
		return ParsedLine{Action: LineIgnore}
	}

	// Custom tool outputs are often a JSON envelope with an inner "output"
	// field; unwrap it when present.
	detail := raw
	var envelope map[string]any
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil {
		if inner := getString(envelope, "output"); inner != "" {
			detail = inner
		}
	}

	summary, _ := FirstNonEmptyLine(detail)
	if summary == "" {
		summary = "(tool output)"
	}
	return ParsedLine{Action: LineItem, Item: Item{
		Kind:        KindToolOutput,
		TurnID:      currentTurnID,
		CallID:      getString(payload, "call_id"),
		Timestamp:   timestamp,
		TimestampMS: timestampMS,
		Summary:     ClampSummary(summary),
		Detail:      detail,
	}}
}
