package domain

import "strings"

// ClaudeMetaHint carries the identifying fields a Claude record may expose.
// Records are scanned until one yields at least one of these.
type ClaudeMetaHint struct {
	CWD       string
	SessionID string
	Timestamp string
}

// ExtractClaudeMetaHint pulls cwd/sessionId/timestamp from a Claude record.
func ExtractClaudeMetaHint(value map[string]any) ClaudeMetaHint {
	cwd := getString(value, "cwd")
	if cwd == "" {
		cwd = getString(value, "projectPath")
	}
	return ClaudeMetaHint{
		CWD:       cwd,
		SessionID: getString(value, "sessionId"),
		Timestamp: getString(value, "timestamp"),
	}
}

// IsEmpty reports whether the hint carries no identifying fields at all.
func (h ClaudeMetaHint) IsEmpty() bool {
	return h.CWD == "" && h.SessionID == "" && h.Timestamp == ""
}

// ParseClaudeUserText returns the text body of a Claude user record, or
// false for any other record shape.
func ParseClaudeUserText(value map[string]any) (string, bool) {
	if getString(value, "type") != "user" {
		return "", false
	}
	content := getMap(value, "message")["content"]
	text := claudeTextBlocks(content)
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// ParseClaudeLine decodes one Claude JSONL record into timeline items. A
// single record can yield several items (text + tool_use blocks).
func ParseClaudeLine(value map[string]any, lineNo int64) []Item {
	timestamp := getString(value, "timestamp")
	timestampMS, _ := ParseRFC3339MS(timestamp)

	switch kind := getString(value, "type"); kind {
	case "user":
		return parseClaudeUser(value, timestamp, timestampMS, lineNo)
	case "assistant":
		return parseClaudeAssistant(value, timestamp, timestampMS, lineNo)
	case "summary":
		summary := strings.TrimRight(getString(value, "summary"), " \t\r\n")
		if strings.TrimSpace(summary) == "" {
			return nil
		}
		return []Item{{
			Kind:        KindNote,
			SourceLine:  lineNo,
			Timestamp:   timestamp,
			TimestampMS: timestampMS,
			Summary:     "Claude summary",
			Detail:      summary,
		}}
	case "file-history-snapshot", "progress", "":
		return nil
	default:
		return []Item{{
			Kind:        KindNote,
			SourceLine:  lineNo,
			Timestamp:   timestamp,
			TimestampMS: timestampMS,
			Summary:     ClampSummary("Claude: " + kind),
			Detail:      prettyJSON(value),
		}}
	}
}

func parseClaudeUser(value map[string]any, timestamp string, timestampMS, lineNo int64) []Item {
	content := getMap(value, "message")["content"]

	// Tool results come back as user records carrying tool_result blocks.
	blocks, isArray := content.([]any)
	if !isArray {
		text := strings.TrimRight(claudeTextBlocks(content), " \t\r\n")
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []Item{claudeTextItem(KindUser, text, timestamp, timestampMS, lineNo, "user")}
	}

	var out []Item
	for _, entry := range blocks {
		block, _ := entry.(map[string]any)
		switch blockType := getString(block, "type"); blockType {
		case "text":
			text := strings.TrimRight(getString(block, "text"), " \t\r\n")
			if text == "" {
				continue
			}
			out = append(out, claudeTextItem(KindUser, text, timestamp, timestampMS, lineNo, "user"))
		case "tool_result":
			callID := getString(block, "tool_use_id")
			if callID == "" {
				callID = getString(block, "toolUseId")
			}
			detail := claudeToolResultDetail(block)
			summary, _ := FirstNonEmptyLine(detail)
			if summary == "" {
				summary = "tool output"
			}
			out = append(out, Item{
				Kind:        KindToolOutput,
				CallID:      callID,
				SourceLine:  lineNo,
				Timestamp:   timestamp,
				TimestampMS: timestampMS,
				Summary:     ClampSummary(summary),
				Detail:      detail,
			})
		case "":
		default:
			out = append(out, Item{
				Kind:        KindNote,
				SourceLine:  lineNo,
				Timestamp:   timestamp,
				TimestampMS: timestampMS,
				Summary:     ClampSummary("Claude user: " + blockType),
				Detail:      prettyJSON(block),
			})
		}
	}
	return out
}

func parseClaudeAssistant(value map[string]any, timestamp string, timestampMS, lineNo int64) []Item {
	content := getMap(value, "message")["content"]

	blocks, isArray := content.([]any)
	if !isArray {
		text := strings.TrimRight(claudeTextBlocks(content), " \t\r\n")
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []Item{claudeTextItem(KindAssistant, text, timestamp, timestampMS, lineNo, "assistant")}
	}

	var out []Item
	for _, entry := range blocks {
		block, _ := entry.(map[string]any)
		switch blockType := getString(block, "type"); blockType {
		case "text":
			text := strings.TrimRight(getString(block, "text"), " \t\r\n")
			if text == "" {
				continue
			}
			out = append(out, claudeTextItem(KindAssistant, text, timestamp, timestampMS, lineNo, "assistant"))
		case "thinking":
			thinking := getString(block, "thinking")
			if thinking == "" {
				thinking = getString(block, "text")
			}
			thinking = strings.TrimRight(thinking, " \t\r\n")
			if thinking == "" {
				continue
			}
			out = append(out, claudeTextItem(KindThinking, thinking, timestamp, timestampMS, lineNo, "thinking"))
		case "tool_use":
			name := getString(block, "name")
			if name == "" {
				name = "tool"
			}
			out = append(out, Item{
				Kind:        KindToolCall,
				CallID:      getString(block, "id"),
				SourceLine:  lineNo,
				Timestamp:   timestamp,
				TimestampMS: timestampMS,
				Summary:     ClampSummary(name + "()"),
				Detail:      prettyJSON(block["input"]),
			})
		case "":
		default:
			out = append(out, Item{
				Kind:        KindNote,
				SourceLine:  lineNo,
				Timestamp:   timestamp,
				TimestampMS: timestampMS,
				Summary:     ClampSummary("Claude assistant: " + blockType),
				Detail:      prettyJSON(block),
			})
		}
	}
	return out
}

func claudeTextItem(kind ItemKind, text, timestamp string, timestampMS, lineNo int64, fallback string) Item {
	summary, _ := FirstNonEmptyLine(text)
	if summary == "" {
		summary = fallback
	}
	return Item{
		Kind:        kind,
		SourceLine:  lineNo,
		Timestamp:   timestamp,
		TimestampMS: timestampMS,
		Summary:     ClampSummary(summary),
		Detail:      text,
	}
}

func claudeTextBlocks(content any) string {
	switch value := content.(type) {
	case string:
		return value
	case []any:
		var texts []string
		for _, entry := range value {
			block, _ := entry.(map[string]any)
			if getString(block, "type") == "text" {
				if text, ok := block["text"].(string); ok {
					texts = append(texts, text)
				}
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}

func claudeToolResultDetail(block map[string]any) string {
	// Plain string content wins; structured results fall back to JSON.
	content := block["content"]
	if text, ok := content.(string); ok {
		return strings.TrimRight(text, " \t\r\n")
	}
	return prettyJSON(content)
}
