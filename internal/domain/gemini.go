package domain

import (
	"fmt"
	"strings"
)

// GeminiUserLogEntry is one user prompt recorded in a project's logs.json,
// used as a title hint for sessions whose chat file lacks a usable prompt.
type GeminiUserLogEntry struct {
	SessionID string
	Timestamp string
	Message   string
}

// ParseGeminiLogEntries extracts user entries from a decoded logs.json value.
func ParseGeminiLogEntries(value any) []GeminiUserLogEntry {
	items, ok := value.([]any)
	if !ok {
		return nil
	}

	var out []GeminiUserLogEntry
	for _, entry := range items {
		record, _ := entry.(map[string]any)
		if getString(record, "type") != "user" {
			continue
		}
		sessionID := getString(record, "sessionId")
		if sessionID == "" {
			continue
		}
		message := strings.TrimRight(getString(record, "message"), " \t\r\n")
		if strings.TrimSpace(message) == "" {
			continue
		}
		out = append(out, GeminiUserLogEntry{
			SessionID: sessionID,
			Timestamp: getString(record, "timestamp"),
			Message:   message,
		})
	}
	return out
}

// ExtractGeminiSessionID reads the sessionId of a chat document.
func ExtractGeminiSessionID(value map[string]any) string {
	return getString(value, "sessionId")
}

// ExtractGeminiStartTime reads the startTime of a chat document.
func ExtractGeminiStartTime(value map[string]any) string {
	return getString(value, "startTime")
}

// ExtractGeminiFirstUserMessage finds the first non-metadata user message in
// a chat document.
func ExtractGeminiFirstUserMessage(value map[string]any) (string, bool) {
	for _, entry := range getSlice(value, "messages") {
		message, _ := entry.(map[string]any)
		if getString(message, "type") != "user" {
			continue
		}
		content := strings.TrimRight(getString(message, "content"), " \t\r\n")
		if strings.TrimSpace(content) == "" || IsMetadataPrompt(content) {
			continue
		}
		return content, true
	}
	return "", false
}

// ParseGeminiSession decodes the whole chat document into timeline items in
// one pass. Gemini sessions are a single JSON file, not JSONL.
func ParseGeminiSession(value map[string]any) ([]Item, int) {
	messages := getSlice(value, "messages")
	if messages == nil {
		return []Item{{
			Kind:    KindNote,
			Summary: "Gemini: missing messages",
			Detail:  prettyJSON(value),
		}}, 1
	}

	warnings := 0
	var out []Item
	for _, entry := range messages {
		message, _ := entry.(map[string]any)
		timestamp := getString(message, "timestamp")
		timestampMS, _ := ParseRFC3339MS(timestamp)

		switch kind := getString(message, "type"); kind {
		case "user":
			content := strings.TrimRight(getString(message, "content"), " \t\r\n")
			if strings.TrimSpace(content) == "" {
				continue
			}
			out = append(out, claudeTextItem(KindUser, content, timestamp, timestampMS, 0, "user"))
		case "gemini":
			items, w := parseGeminiModelMessage(message, timestamp, timestampMS)
			warnings += w
			out = append(out, items...)
		case "":
		default:
			warnings++
			out = append(out, Item{
				Kind:        KindNote,
				Timestamp:   timestamp,
				TimestampMS: timestampMS,
				Summary:     ClampSummary("Gemini: " + kind),
				Detail:      prettyJSON(message),
			})
		}
	}
	return out, warnings
}

func parseGeminiModelMessage(message map[string]any, timestamp string, timestampMS int64) ([]Item, int) {
	var out []Item

	if content := strings.TrimRight(getString(message, "content"), " \t\r\n"); strings.TrimSpace(content) != "" {
		out = append(out, claudeTextItem(KindAssistant, content, timestamp, timestampMS, 0, "assistant"))
	}

	if thoughts := strings.TrimRight(getString(message, "thoughts"), " \t\r\n"); strings.TrimSpace(thoughts) != "" {
		out = append(out, claudeTextItem(KindThinking, thoughts, timestamp, timestampMS, 0, "thinking"))
	}

	if tokens, ok := message["tokens"].(map[string]any); ok {
		total, haveTotal := getNumber(tokens, "total")
		summary := "tokens"
		if haveTotal {
			summary = fmt.Sprintf("tokens: total=%d", int64(total))
		}
		out = append(out, Item{
			Kind:        KindTokenCount,
			Timestamp:   timestamp,
			TimestampMS: timestampMS,
			Summary:     summary,
			Detail:      prettyJSON(tokens),
		})
	}

	warnings := 0
	for _, entry := range getSlice(message, "toolCalls") {
		call, ok := entry.(map[string]any)
		if !ok {
			warnings++
			continue
		}
		name := getString(call, "name")
		if name == "" {
			name = "tool"
		}
		callID := getString(call, "callId")
		if callID == "" {
			callID = getString(call, "id")
		}

		out = append(out, Item{
			Kind:        KindToolCall,
			CallID:      callID,
			Timestamp:   timestamp,
			TimestampMS: timestampMS,
			Summary:     ClampSummary(name + "()"),
			Detail:      prettyJSON(call["args"]),
		})

		result := geminiToolResultText(call)
		if result == "" {
			continue
		}
		summary, _ := FirstNonEmptyLine(result)
		if summary == "" {
			summary = "(tool output)"
		}
		out = append(out, Item{
			Kind:        KindToolOutput,
			CallID:      callID,
			Timestamp:   timestamp,
			TimestampMS: timestampMS,
			Summary:     ClampSummary(summary),
			Detail:      result,
		})
	}

	return out, warnings
}

func geminiToolResultText(call map[string]any) string {
	if text, ok := call["resultDisplay"].(string); ok && strings.TrimSpace(text) != "" {
		return strings.TrimRight(text, " \t\r\n")
	}
	result := call["result"]
	if result == nil {
		return ""
	}
	if text, ok := result.(string); ok {
		return strings.TrimRight(text, " \t\r\n")
	}
	return prettyJSON(result)
}
