package scan

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/testutil"
)

func TestCodex_AcceptsSessionMetaFiles(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"2026/02/19/rollout-2026-02-19T10-00-00-s1.jsonl": testutil.CodexSessionLog(
			"s1", "2026-02-19T10:00:00Z", "/tmp/projA",
			testutil.CodexUserLine("fix the flaky test", "2026-02-19T10:00:01Z"),
		),
		"2026/02/19/rollout-2026-02-19T11-00-00-s2.jsonl": testutil.CodexSessionLog(
			"s2", "2026-02-19T11:00:00Z", "/tmp/projB",
		),
	})

	out := Codex(root)
	if out.Warnings != 0 {
		t.Errorf("warnings = %d, want 0", out.Warnings)
	}
	if len(out.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(out.Sessions))
	}

	byID := make(map[string]domain.SessionSummary)
	for _, s := range out.Sessions {
		byID[s.Meta.ID] = s
	}
	s1 := byID["s1"]
	if s1.Title != "fix the flaky test" {
		t.Errorf("s1 title = %q", s1.Title)
	}
	if s1.Meta.CWD != "/tmp/projA" {
		t.Errorf("s1 cwd = %q", s1.Meta.CWD)
	}
	if s1.Engine != domain.EngineCodex {
		t.Errorf("s1 engine = %q", s1.Engine)
	}
	if s1.FileSizeBytes == 0 {
		t.Error("s1 file size not recorded")
	}
	if byID["s2"].Title != domain.UntitledSession {
		t.Errorf("s2 title = %q, want untitled", byID["s2"].Title)
	}
}

func TestCodex_RejectsNonSessionFiles(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"2026/02/19/notes.jsonl": `{"type":"something_else"}` + "\n",
	})

	out := Codex(root)
	if len(out.Sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(out.Sessions))
	}
	if out.Warnings != 1 {
		t.Errorf("warnings = %d, want 1", out.Warnings)
	}
}

func TestCodex_SkipsSpawnWorkArea(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		".ccbox/processes/p1/stdout.jsonl": testutil.CodexSessionLog("px", "2026-02-19T10:00:00Z", "/tmp/p"),
		"2026/02/19/rollout-s1.jsonl":      testutil.CodexSessionLog("s1", "2026-02-19T10:00:00Z", "/tmp/p"),
	})

	out := Codex(root)
	if len(out.Sessions) != 1 || out.Sessions[0].Meta.ID != "s1" {
		t.Fatalf("sessions = %+v, want only s1", out.Sessions)
	}
}

func TestCodex_MissingRootIsNotice(t *testing.T) {
	out := Codex(filepath.Join(t.TempDir(), "missing"))
	if len(out.Notices) != 1 {
		t.Fatalf("notices = %v, want one", out.Notices)
	}
	if out.Warnings != 0 {
		t.Errorf("warnings = %d, want 0", out.Warnings)
	}
}

func TestCodex_MetadataPromptDoesNotBecomeTitle(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"2026/02/19/rollout-s1.jsonl": testutil.CodexSessionLog(
			"s1", "2026-02-19T10:00:00Z", "/tmp/p",
			testutil.CodexUserLine("<environment_context>\n<cwd>/tmp/p</cwd>\n</environment_context>", "2026-02-19T10:00:01Z"),
			testutil.CodexUserLine("real prompt", "2026-02-19T10:00:02Z"),
		),
	})

	out := Codex(root)
	if len(out.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(out.Sessions))
	}
	if out.Sessions[0].Title != "real prompt" {
		t.Errorf("title = %q, want real prompt", out.Sessions[0].Title)
	}
}

func TestClaude_CwdFromRecordsWins(t *testing.T) {
	projectsDir := t.TempDir()
	testutil.WriteFiles(t, projectsDir, map[string]string{
		"-tmp-encoded-name/sess-1.jsonl": testutil.ClaudeUserLine("c1", "/tmp/actual", "hello claude", "2026-02-19T00:00:00Z") + "\n" +
			testutil.ClaudeAssistantLine("c1", "hi", "2026-02-19T00:00:05Z") + "\n",
	})

	out := Claude(projectsDir)
	if out.Warnings != 0 {
		t.Errorf("warnings = %d, want 0", out.Warnings)
	}
	if len(out.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(out.Sessions))
	}
	s := out.Sessions[0]
	if s.Meta.CWD != "/tmp/actual" {
		t.Errorf("cwd = %q, want /tmp/actual", s.Meta.CWD)
	}
	if s.Meta.ID != "c1" || s.Title != "hello claude" || s.Engine != domain.EngineClaude {
		t.Errorf("summary = %+v", s)
	}
}

func TestClaude_SkipsSubagentDirectories(t *testing.T) {
	projectsDir := t.TempDir()
	testutil.WriteFiles(t, projectsDir, map[string]string{
		"key/sess-1.jsonl":          testutil.ClaudeUserLine("c1", "/tmp/p", "main session", "2026-02-19T00:00:00Z") + "\n",
		"key/subagents/agent.jsonl": testutil.ClaudeUserLine("sub", "/tmp/p", "subagent", "2026-02-19T00:00:00Z") + "\n",
	})

	out := Claude(projectsDir)
	if len(out.Sessions) != 1 || out.Sessions[0].Meta.ID != "c1" {
		t.Fatalf("sessions = %+v, want only c1", out.Sessions)
	}
}

func TestGemini_ScansChatFiles(t *testing.T) {
	root := t.TempDir()
	hash := "abcdef0123456789"
	testutil.WriteFiles(t, root, map[string]string{
		"tmp/" + hash + "/chats/session-2026-02-19.json": testutil.GeminiChatDoc(
			"g1", "2026-02-19T10:00:00Z", "/tmp/gem", "tidy the readme", "done",
		),
	})

	out := Gemini(root)
	if out.Warnings != 0 {
		t.Errorf("warnings = %d, want 0", out.Warnings)
	}
	if len(out.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(out.Sessions))
	}
	s := out.Sessions[0]
	if s.Meta.ID != "g1" || s.Meta.CWD != "/tmp/gem" || s.Title != "tidy the readme" {
		t.Errorf("summary = %+v", s)
	}
	if s.Engine != domain.EngineGemini {
		t.Errorf("engine = %q", s.Engine)
	}
}

func TestIsGeminiSessionPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/home/u/.gemini/tmp/abc123/chats/session-1.json", true},
		{"/home/u/.gemini/tmp/abc123/chats/other.json", false},
		{"/home/u/.gemini/tmp/abc123/session-1.json", false},
	}
	for _, tc := range cases {
		if got := IsGeminiSessionPath(tc.path); got != tc.want {
			t.Errorf("IsGeminiSessionPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestParseOpenCodeLogPath(t *testing.T) {
	logPath := OpenCodeLogPath("/data/opencode.db", "oc-1")
	dbPath, sessionID, ok := ParseOpenCodeLogPath(logPath)
	if !ok || dbPath != "/data/opencode.db" || sessionID != "oc-1" {
		t.Errorf("parsed = %q / %q / %v", dbPath, sessionID, ok)
	}

	if _, _, ok := ParseOpenCodeLogPath("/plain/file.jsonl"); ok {
		t.Error("plain path should not parse")
	}
}

func TestAll_MergesEnginesAndFilters(t *testing.T) {
	base := t.TempDir()
	codexRoot := filepath.Join(base, "codex")
	claudeRoot := filepath.Join(base, "claude")
	geminiRoot := filepath.Join(base, "gemini")

	testutil.WriteFiles(t, codexRoot, map[string]string{
		"2026/02/19/rollout-s1.jsonl": testutil.CodexSessionLog("s1", "2026-02-19T10:00:00Z", "/tmp/p"),
	})
	testutil.WriteFiles(t, claudeRoot, map[string]string{
		"key/c1.jsonl": testutil.ClaudeUserLine("c1", "/tmp/p", "hi", "2026-02-19T00:00:00Z") + "\n",
	})

	roots := Roots{
		CodexSessions:  codexRoot,
		ClaudeProjects: claudeRoot,
		GeminiRoot:     geminiRoot,
		OpenCodeDB:     filepath.Join(base, "missing.db"),
	}

	out := All(context.Background(), roots, "")
	if len(out.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(out.Sessions))
	}
	// Missing Gemini and OpenCode roots surface as notices, not warnings.
	if len(out.Notices) != 2 {
		t.Errorf("notices = %v, want 2 entries", out.Notices)
	}
	if out.Warnings != 0 {
		t.Errorf("warnings = %d, want 0", out.Warnings)
	}

	codexOnly := All(context.Background(), roots, domain.EngineCodex)
	if len(codexOnly.Sessions) != 1 || codexOnly.Sessions[0].Engine != domain.EngineCodex {
		t.Errorf("filtered sessions = %+v", codexOnly.Sessions)
	}
}
