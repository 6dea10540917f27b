// Package testutil provides fixture helpers for ccbox tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFiles creates the given files under dir. Keys are relative paths;
// directories are created as needed.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}
}

// CodexSessionLog builds a minimal Codex session log: the mandatory
// session_meta line followed by any extra JSONL lines.
func CodexSessionLog(id, startedAt, cwd string, extraLines ...string) string {
	lines := []string{CodexSessionMetaLine(id, startedAt, cwd)}
	lines = append(lines, extraLines...)
	return strings.Join(lines, "\n") + "\n"
}

// CodexSessionMetaLine renders a session_meta record.
func CodexSessionMetaLine(id, startedAt, cwd string) string {
	return fmt.Sprintf(
		`{"timestamp":%q,"type":"session_meta","payload":{"id":%q,"timestamp":%q,"cwd":%q}}`,
		startedAt, id, startedAt, cwd,
	)
}

// CodexTurnContextLine renders a turn_context record.
func CodexTurnContextLine(turnID, timestamp string) string {
	return fmt.Sprintf(
		`{"timestamp":%q,"type":"turn_context","payload":{"turn_id":%q}}`,
		timestamp, turnID,
	)
}

// CodexUserLine renders a user response_item record.
func CodexUserLine(text, timestamp string) string {
	return fmt.Sprintf(
		`{"timestamp":%q,"type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":%q}]}}`,
		timestamp, text,
	)
}

// CodexAssistantLine renders an assistant response_item record.
func CodexAssistantLine(text, timestamp string) string {
	return fmt.Sprintf(
		`{"timestamp":%q,"type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":%q}]}}`,
		timestamp, text,
	)
}

// CodexFunctionCallLine renders a function_call record.
func CodexFunctionCallLine(name, callID, arguments, timestamp string) string {
	return fmt.Sprintf(
		`{"timestamp":%q,"type":"response_item","payload":{"type":"function_call","name":%q,"arguments":%q,"call_id":%q}}`,
		timestamp, name, arguments, callID,
	)
}

// CodexFunctionCallOutputLine renders a function_call_output record.
func CodexFunctionCallOutputLine(callID, output, timestamp string) string {
	return fmt.Sprintf(
		`{"timestamp":%q,"type":"response_item","payload":{"type":"function_call_output","call_id":%q,"output":%q}}`,
		timestamp, callID, output,
	)
}

// ClaudeUserLine renders a Claude user record with string content.
func ClaudeUserLine(sessionID, cwd, text, timestamp string) string {
	return fmt.Sprintf(
		`{"type":"user","cwd":%q,"sessionId":%q,"timestamp":%q,"message":{"role":"user","content":%q}}`,
		cwd, sessionID, timestamp, text,
	)
}

// ClaudeAssistantLine renders a Claude assistant record with a text block.
func ClaudeAssistantLine(sessionID, text, timestamp string) string {
	return fmt.Sprintf(
		`{"type":"assistant","sessionId":%q,"timestamp":%q,"message":{"role":"assistant","content":[{"type":"text","text":%q}]}}`,
		sessionID, timestamp, text,
	)
}

// GeminiChatDoc renders a minimal Gemini chat document.
func GeminiChatDoc(sessionID, startTime, cwd, userText, modelText string) string {
	return fmt.Sprintf(`{
  "sessionId": %q,
  "startTime": %q,
  "cwd": %q,
  "messages": [
    {"type": "user", "timestamp": %q, "content": %q},
    {"type": "gemini", "timestamp": %q, "content": %q}
  ]
}`, sessionID, startTime, cwd, startTime, userText, startTime, modelText)
}
