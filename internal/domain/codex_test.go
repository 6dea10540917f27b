package domain

import (
	"encoding/json"
	"testing"
)

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var value map[string]any
	if err := json.Unmarshal([]byte(line), &value); err != nil {
		t.Fatalf("decoding fixture line: %v", err)
	}
	return value
}

func TestParseCodexLine_TurnContext(t *testing.T) {
	value := decodeLine(t, `{
		"timestamp": "2026-02-18T21:45:57.803Z",
		"type": "turn_context",
		"payload": {
			"turn_id": "t1",
			"cwd": "/tmp/x",
			"approval_policy": "never",
			"sandbox_policy": {"type": "danger-full-access"},
			"model": "gpt-5.2",
			"personality": "pragmatic",
			"user_instructions": "abc",
			"collaboration_mode": {"settings": {"developer_instructions": "def"}}
		}
	}`)

	parsed := ParseCodexLine(value, "")
	if parsed.Action != LineTurnContext {
		t.Fatalf("action = %v, want LineTurnContext", parsed.Action)
	}
	ctx := parsed.Context
	if ctx.TurnID != "t1" || ctx.CWD != "/tmp/x" || ctx.Model != "gpt-5.2" {
		t.Errorf("unexpected context: %+v", ctx)
	}
	if ctx.SandboxPolicy != "danger-full-access" {
		t.Errorf("SandboxPolicy = %q", ctx.SandboxPolicy)
	}
	if ctx.UserInstructionsLen != 3 || ctx.DeveloperInstructionsLen != 3 {
		t.Errorf("instruction lengths = %d/%d, want 3/3", ctx.UserInstructionsLen, ctx.DeveloperInstructionsLen)
	}
}

func TestParseCodexLine_UserMessageEventIgnored(t *testing.T) {
	value := decodeLine(t, `{
		"timestamp": "2026-02-18T21:45:57.766Z",
		"type": "event_msg",
		"payload": {"type": "user_message", "message": "hello\nworld", "images": []}
	}`)

	if parsed := ParseCodexLine(value, "t1"); parsed.Action != LineIgnore {
		t.Errorf("action = %v, want LineIgnore", parsed.Action)
	}
}

func TestParseCodexLine_UserResponseItem(t *testing.T) {
	value := decodeLine(t, `{
		"timestamp": "2026-02-18T21:45:57.766Z",
		"type": "response_item",
		"payload": {
			"type": "message",
			"role": "user",
			"content": [{"type": "input_text", "text": "hello\nworld"}]
		}
	}`)

	parsed := ParseCodexLine(value, "t1")
	if parsed.Action != LineItem {
		t.Fatalf("action = %v, want LineItem", parsed.Action)
	}
	item := parsed.Item
	if item.Kind != KindUser {
		t.Errorf("kind = %v, want KindUser", item.Kind)
	}
	if item.TurnID != "t1" {
		t.Errorf("TurnID = %q, want t1", item.TurnID)
	}
	if item.Summary != "hello" || item.Detail != "hello\nworld" {
		t.Errorf("summary/detail = %q / %q", item.Summary, item.Detail)
	}
	if item.TimestampMS == 0 {
		t.Error("expected TimestampMS to be set")
	}
}

func TestParseCodexLine_MetadataPromptIgnored(t *testing.T) {
	value := decodeLine(t, `{
		"type": "response_item",
		"payload": {
			"type": "message",
			"role": "user",
			"content": [{"type": "input_text", "text": "<environment_context>\n<cwd>/x</cwd>\n</environment_context>"}]
		}
	}`)

	if parsed := ParseCodexLine(value, "t1"); parsed.Action != LineIgnore {
		t.Errorf("action = %v, want LineIgnore", parsed.Action)
	}
}

func TestParseCodexLine_FunctionCallAndOutput(t *testing.T) {
	call := decodeLine(t, `{
		"type": "response_item",
		"payload": {"type": "function_call", "name": "exec", "arguments": "{\"cmd\":\"ls\"}", "call_id": "c1"}
	}`)
	parsed := ParseCodexLine(call, "t1")
	if parsed.Action != LineItem || parsed.Item.Kind != KindToolCall {
		t.Fatalf("unexpected parse: %+v", parsed)
	}
	if parsed.Item.CallID != "c1" || parsed.Item.Summary != "exec()" {
		t.Errorf("call item = %+v", parsed.Item)
	}

	output := decodeLine(t, `{
		"type": "response_item",
		"payload": {"type": "function_call_output", "call_id": "c1", "output": "ok"}
	}`)
	parsed = ParseCodexLine(output, "t1")
	if parsed.Action != LineItem || parsed.Item.Kind != KindToolOutput {
		t.Fatalf("unexpected parse: %+v", parsed)
	}
	if parsed.Item.CallID != "c1" || parsed.Item.Detail != "ok" {
		t.Errorf("output item = %+v", parsed.Item)
	}
}

func TestParseCodexLine_CustomToolCallOutputUnwrapsEnvelope(t *testing.T) {
	value := decodeLine(t, `{
		"type": "response_item",
		"payload": {
			"type": "custom_tool_call_output",
			"call_id": "c2",
			"output": "{\"output\":\"inner text\",\"metadata\":{}}"
		}
	}`)

	parsed := ParseCodexLine(value, "")
	if parsed.Action != LineItem {
		t.Fatalf("action = %v, want LineItem", parsed.Action)
	}
	if parsed.Item.Detail != "inner text" {
		t.Errorf("detail = %q, want inner text", parsed.Item.Detail)
	}
}

func TestParseCodexLine_Reasoning(t *testing.T) {
	value := decodeLine(t, `{
		"type": "response_item",
		"payload": {
			"type": "reasoning",
			"summary": [
				{"type": "summary_text", "text": "first thought"},
				{"type": "summary_text", "text": "second thought"}
			]
		}
	}`)

	parsed := ParseCodexLine(value, "t2")
	if parsed.Action != LineItem || parsed.Item.Kind != KindThinking {
		t.Fatalf("unexpected parse: %+v", parsed)
	}
	if parsed.Item.Summary != "first thought" {
		t.Errorf("summary = %q", parsed.Item.Summary)
	}
}

func TestParseCodexLine_TokenCount(t *testing.T) {
	value := decodeLine(t, `{
		"type": "event_msg",
		"payload": {
			"type": "token_count",
			"info": {
				"total_token_usage": {"total_tokens": 1200},
				"last_token_usage": {"total_tokens": 300}
			}
		}
	}`)

	parsed := ParseCodexLine(value, "t1")
	if parsed.Action != LineItem || parsed.Item.Kind != KindTokenCount {
		t.Fatalf("unexpected parse: %+v", parsed)
	}
	if parsed.Item.Summary != "tokens: total=1200 last=300" {
		t.Errorf("summary = %q", parsed.Item.Summary)
	}
}

func TestParseCodexLine_TaskStartedHint(t *testing.T) {
	value := decodeLine(t, `{
		"type": "event_msg",
		"payload": {"type": "task_started", "turn_id": "t9"}
	}`)

	parsed := ParseCodexLine(value, "t1")
	if parsed.Action != LineTurnHint || parsed.TurnID != "t9" {
		t.Errorf("parsed = %+v, want turn hint t9", parsed)
	}
}
