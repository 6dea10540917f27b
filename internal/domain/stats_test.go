package domain

import "testing"

func TestClassifyToolOutput(t *testing.T) {
	cases := []struct {
		detail string
		want   ToolOutcome
	}{
		{"Process exited with code 0\nok", OutcomeSuccess},
		{"Process exited with code 2\nnope", OutcomeError},
		{"Success. Updated the file.", OutcomeSuccess},
		{"Invalid tool call: nope", OutcomeInvalid},
		{"Unknown tool: x", OutcomeInvalid},
		{"error: could not open file", OutcomeError},
		{"cat: /x: No such file or directory", OutcomeError},
		{"plain output", OutcomeUnknown},
	}

	for _, tc := range cases {
		if got := ClassifyToolOutput(tc.detail); got != tc.want {
			t.Errorf("ClassifyToolOutput(%q) = %v, want %v", tc.detail, got, tc.want)
		}
	}
}

func TestParseApplyPatchStats(t *testing.T) {
	patch := "*** Begin Patch\n" +
		"*** Add File: a.txt\n" +
		"+hello\n" +
		"*** Update File: src/main.go\n" +
		"@@\n" +
		"-old\n" +
		"+new\n" +
		"*** End Patch\n"

	ops, files, added, removed := parseApplyPatchStats(patch)
	if ops != 2 {
		t.Errorf("ops = %d, want 2", ops)
	}
	if len(files) != 2 || files[0] != "a.txt" || files[1] != "src/main.go" {
		t.Errorf("files = %v", files)
	}
	if added != 2 || removed != 1 {
		t.Errorf("added/removed = %d/%d, want 2/1", added, removed)
	}
}

func TestComputeStats(t *testing.T) {
	items := []Item{
		{Kind: KindUser, TimestampMS: 1_000, Summary: "go", Detail: "go"},
		{Kind: KindToolCall, CallID: "c1", TimestampMS: 2_000, Summary: "exec()", Detail: "{}"},
		{Kind: KindToolOutput, CallID: "c1", TimestampMS: 3_000, Summary: "ok", Detail: "Process exited with code 0\nok"},
		{Kind: KindToolCall, CallID: "c2", TimestampMS: 4_000, Summary: "apply_patch", Detail: "*** Begin Patch\n*** Add File: a.txt\n+x\n*** End Patch"},
		{Kind: KindToolOutput, CallID: "c2", TimestampMS: 5_000, Summary: "done", Detail: "Success. Patch applied."},
		{Kind: KindToolCall, CallID: "c3", TimestampMS: 5_500, Summary: "exec()", Detail: "{}"},
		{Kind: KindTokenCount, TimestampMS: 6_000, Summary: "tokens", Detail: `{"total_token_usage":{"total_tokens":900},"last_token_usage":{"total_tokens":100}}`},
		{Kind: KindTokenCount, TimestampMS: 7_000, Summary: "tokens", Detail: `{"total_token_usage":{"total_tokens":1500},"last_token_usage":{"total_tokens":600}}`},
	}
	meta := SessionMeta{ID: "s1", CWD: "/tmp/p", StartedAt: "2026-02-19T00:00:00Z"}

	stats := ComputeStats(meta, items)

	if stats.DurationMS != 6_000 {
		t.Errorf("DurationMS = %d, want 6000", stats.DurationMS)
	}
	if stats.TotalTokens != 1500 || stats.LastTokens != 600 {
		t.Errorf("tokens = %d/%d, want 1500/600", stats.TotalTokens, stats.LastTokens)
	}
	if stats.ToolCallsTotal != 3 {
		t.Errorf("ToolCallsTotal = %d, want 3", stats.ToolCallsTotal)
	}
	if stats.ToolCallsSuccess != 2 {
		t.Errorf("ToolCallsSuccess = %d, want 2", stats.ToolCallsSuccess)
	}
	if stats.ToolCallsUnknown != 1 {
		t.Errorf("ToolCallsUnknown = %d, want 1", stats.ToolCallsUnknown)
	}
	if stats.ApplyPatchCalls != 1 || stats.ApplyPatchOperations != 1 {
		t.Errorf("apply_patch = %d calls / %d ops", stats.ApplyPatchCalls, stats.ApplyPatchOperations)
	}
	if len(stats.FilesChanged) != 1 || stats.FilesChanged[0].Path != "a.txt" {
		t.Errorf("FilesChanged = %v", stats.FilesChanged)
	}
	if len(stats.ToolsUsed) == 0 || stats.ToolsUsed[0].Name != "exec" || stats.ToolsUsed[0].Calls != 2 {
		t.Errorf("ToolsUsed = %v", stats.ToolsUsed)
	}
}

func TestComputeStats_FallsBackToMetaStart(t *testing.T) {
	meta := SessionMeta{ID: "s1", StartedAt: "2026-02-19T00:00:00Z"}
	stats := ComputeStats(meta, []Item{{Kind: KindUser, Summary: "x", Detail: "x"}})
	if stats.StartMS == 0 {
		t.Error("expected StartMS from session meta")
	}
}
