package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotASession marks a file that does not meet the first-line
// session_meta contract.
var ErrNotASession = errors.New("not a codex session")

// SummaryLimit is the maximum rune length of an item or title summary.
const SummaryLimit = 120

type sessionMetaLine struct {
	Type    string `json:"type"`
	Payload struct {
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
		CWD       string `json:"cwd"`
	} `json:"payload"`
}

// ParseSessionMetaLine parses the mandatory first line of a Codex session
// log. Anything other than a session_meta record is rejected.
func ParseSessionMetaLine(line string) (SessionMeta, error) {
	var parsed sessionMetaLine
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return SessionMeta{}, fmt.Errorf("%w: %v", ErrNotASession, err)
	}
	if parsed.Type != "session_meta" {
		return SessionMeta{}, fmt.Errorf("%w: first line is %q", ErrNotASession, parsed.Type)
	}
	if parsed.Payload.ID == "" {
		return SessionMeta{}, fmt.Errorf("%w: missing session id", ErrNotASession)
	}
	return SessionMeta{
		ID:        parsed.Payload.ID,
		CWD:       parsed.Payload.CWD,
		StartedAt: parsed.Payload.Timestamp,
	}, nil
}

// ParseUserMessageText extracts the input text of a user response_item line.
// Returns false for any other record shape.
func ParseUserMessageText(line string) (string, bool) {
	var parsed struct {
		Type    string `json:"type"`
		Payload struct {
			Type    string `json:"type"`
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return "", false
	}
	if parsed.Type != "response_item" || parsed.Payload.Type != "message" || parsed.Payload.Role != "user" {
		return "", false
	}
	for _, item := range parsed.Payload.Content {
		if item.Type == "input_text" && item.Text != "" {
			return item.Text, true
		}
	}
	return "", false
}

// IsMetadataPrompt reports whether a user message is one of the templated
// metadata prompts that should never become a title or close a skill span.
func IsMetadataPrompt(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	return strings.HasPrefix(trimmed, "# AGENTS.md instructions") ||
		strings.HasPrefix(trimmed, "<environment_context>") ||
		strings.HasPrefix(trimmed, "<INSTRUCTIONS>") ||
		(strings.HasPrefix(trimmed, "<skill>") && strings.Contains(trimmed, "</skill>"))
}

// TitleFromUserText derives a session title: the first non-empty trimmed
// line, clamped to SummaryLimit runes.
func TitleFromUserText(text string) (string, bool) {
	line, ok := FirstNonEmptyLine(text)
	if !ok {
		return "", false
	}
	return ClampSummary(line), true
}

// UntitledSession is the placeholder title for sessions without a usable
// user prompt.
const UntitledSession = "(untitled)"

// FirstNonEmptyLine returns the first line of text that is not blank after
// trimming.
func FirstNonEmptyLine(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line, true
		}
	}
	return "", false
}

// ClampSummary truncates text to SummaryLimit runes.
func ClampSummary(text string) string {
	runes := []rune(text)
	if len(runes) <= SummaryLimit {
		return text
	}
	return string(runes[:SummaryLimit])
}

// ParseRFC3339MS parses an RFC 3339 timestamp into unix milliseconds.
func ParseRFC3339MS(value string) (int64, bool) {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		ts, err = time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return 0, false
		}
	}
	return ts.UnixMilli(), true
}

// getString, getMap, and getSlice navigate decoded JSON values without
// committing to a rigid schema; unknown shapes fall out as zero values.

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := m[key].(map[string]any)
	return out
}

func getSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	out, _ := m[key].([]any)
	return out
}

func getNumber(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	n, ok := m[key].(float64)
	return n, ok
}

// prettyJSON renders a decoded value for item details, falling back to the
// compact form when indenting fails.
func prettyJSON(value any) string {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		compact, compactErr := json.Marshal(value)
		if compactErr != nil {
			return ""
		}
		return string(compact)
	}
	return string(out)
}
