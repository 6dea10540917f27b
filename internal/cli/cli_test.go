package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diskd-ai/ccbox/internal/testutil"
)

// runCommand executes a subcommand with captured stdout/stderr.
func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	// Package-level flag state persists across invocations; reset it.
	engineFlag = ""
	sessionsLimit, sessionsOffset, sessionsSize = 10, 0, false
	historyID, historyLimit, historyOffset, historyFull, historySize = "", 10, 0, false, false
	skillsID, skillsJSON, skillsFull = "", false, false

	captureOut, restoreOut := capture(t, &os.Stdout)
	captureErr, restoreErr := capture(t, &os.Stderr)

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	stdout := restoreOut(captureOut)
	stderr := restoreErr(captureErr)
	return stdout, stderr, err
}

func capture(t *testing.T, target **os.File) (*os.File, func(*os.File) string) {
	t.Helper()
	read, write, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	orig := *target
	*target = write

	return read, func(r *os.File) string {
		write.Close()
		*target = orig
		data, _ := io.ReadAll(r)
		r.Close()
		return string(data)
	}
}

// setupRoots points every engine root at an isolated temp tree.
func setupRoots(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("CODEX_SESSIONS_DIR", filepath.Join(base, "codex"))
	t.Setenv("CLAUDE_PROJECTS_DIR", filepath.Join(base, "claude"))
	t.Setenv("CCBOX_GEMINI_DIR", filepath.Join(base, "gemini"))
	t.Setenv("CCBOX_OPENCODE_DB_PATH", filepath.Join(base, "opencode.db"))
	if err := os.MkdirAll(filepath.Join(base, "codex"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return base
}

func TestProjects_EmptyRoot(t *testing.T) {
	setupRoots(t)

	stdout, _, err := runCommand(t, "projects")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
}

func TestProjects_ListsGroupedSessions(t *testing.T) {
	base := setupRoots(t)
	projectDir := filepath.Join(base, "work", "myproj")
	testutil.WriteFiles(t, filepath.Join(base, "codex"), map[string]string{
		"2026/02/19/rollout-s1.jsonl": testutil.CodexSessionLog("s1", "2026-02-19T10:00:00Z", projectDir,
			testutil.CodexUserLine("do the thing", "2026-02-19T10:00:01Z")),
		"2026/02/19/rollout-s2.jsonl": testutil.CodexSessionLog("s2", "2026-02-19T11:00:00Z", projectDir),
	})

	stdout, _, err := runCommand(t, "projects")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %v, want 1", lines)
	}
	fields := strings.Split(lines[0], "\t")
	if len(fields) != 3 || fields[0] != "myproj" || fields[1] != projectDir || fields[2] != "2" {
		t.Errorf("fields = %v", fields)
	}
}

func TestSessions_SortedNewestFirst(t *testing.T) {
	base := setupRoots(t)
	projectDir := filepath.Join(base, "work", "p")
	testutil.WriteFiles(t, filepath.Join(base, "codex"), map[string]string{
		"2026/02/19/rollout-a.jsonl": testutil.CodexSessionLog("a-older", "2026-02-19T09:00:00Z", projectDir),
		"2026/02/19/rollout-b.jsonl": testutil.CodexSessionLog("b-newer", "2026-02-19T11:00:00Z", projectDir),
		"2026/02/19/rollout-c.jsonl": testutil.CodexSessionLog("c-tie", "2026-02-19T09:00:00Z", projectDir),
	})

	stdout, _, err := runCommand(t, "sessions", projectDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	var ids []string
	for _, line := range lines {
		ids = append(ids, strings.Split(line, "\t")[1])
	}
	// Newest first; started_at ties broken by id.
	want := []string{"b-newer", "a-older", "c-tie"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}
}

func TestSessions_LimitAndOffset(t *testing.T) {
	base := setupRoots(t)
	projectDir := filepath.Join(base, "work", "p")
	files := make(map[string]string)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		files["2026/02/19/rollout-"+id+".jsonl"] = testutil.CodexSessionLog(
			id, "2026-02-19T0"+string(rune('0'+i))+":00:00Z", projectDir)
	}
	testutil.WriteFiles(t, filepath.Join(base, "codex"), files)

	stdout, _, err := runCommand(t, "sessions", projectDir, "--limit", "2", "--offset", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) != 2 {
		t.Errorf("lines = %d, want 2", len(lines))
	}
}

func TestHistory_MalformedLineWarning(t *testing.T) {
	base := setupRoots(t)
	logPath := filepath.Join(base, "codex", "2026", "02", "19", "rollout-s1.jsonl")
	testutil.WriteFiles(t, filepath.Join(base, "codex"), map[string]string{
		"2026/02/19/rollout-s1.jsonl": testutil.CodexSessionLog("s1", "2026-02-19T10:00:00Z", "/tmp/p") + "{not json\n",
	})

	stdout, stderr, err := runCommand(t, "history", logPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "NOTE: {not json") {
		t.Errorf("stdout = %q, want a NOTE line with the raw text", stdout)
	}
	if !strings.Contains(stderr, "warnings: 1") {
		t.Errorf("stderr = %q, want warnings: 1", stderr)
	}
}

func TestHistory_PaginationMatchesFullOutput(t *testing.T) {
	base := setupRoots(t)
	var lines []string
	lines = append(lines, testutil.CodexTurnContextLine("t1", "2026-02-19T10:00:00Z"))
	for i := 0; i < 40; i++ {
		lines = append(lines, testutil.CodexAssistantLine("assistant message number "+itoa(i), "2026-02-19T10:00:01Z"))
	}
	logPath := filepath.Join(base, "codex", "2026", "02", "19", "rollout-s1.jsonl")
	testutil.WriteFiles(t, filepath.Join(base, "codex"), map[string]string{
		"2026/02/19/rollout-s1.jsonl": testutil.CodexSessionLog("s1", "2026-02-19T10:00:00Z", "/tmp/p", lines...),
	})

	fullOut, _, err := runCommand(t, "history", logPath, "--limit", "1000", "--offset", "0")
	if err != nil {
		t.Fatalf("full history: %v", err)
	}
	pageOut, _, err := runCommand(t, "history", logPath, "--limit", "10", "--offset", "20")
	if err != nil {
		t.Fatalf("paged history: %v", err)
	}

	fullLines := strings.Split(strings.TrimRight(fullOut, "\n"), "\n")
	pageLines := strings.Split(strings.TrimRight(pageOut, "\n"), "\n")
	if len(pageLines) != 10 {
		t.Fatalf("page lines = %d, want 10", len(pageLines))
	}

	// The page must be a contiguous window of the full output.
	start := -1
	for i, line := range fullLines {
		if line == pageLines[0] {
			start = i
			break
		}
	}
	if start < 0 {
		t.Fatalf("page start %q not present in full output", pageLines[0])
	}
	for i, line := range pageLines {
		if fullLines[start+i] != line {
			t.Errorf("page line %d = %q, want %q", i, line, fullLines[start+i])
		}
	}
}

func TestHistory_SizeStatsToStderr(t *testing.T) {
	base := setupRoots(t)
	logPath := filepath.Join(base, "codex", "2026", "02", "19", "rollout-s1.jsonl")
	testutil.WriteFiles(t, filepath.Join(base, "codex"), map[string]string{
		"2026/02/19/rollout-s1.jsonl": testutil.CodexSessionLog("s1", "2026-02-19T10:00:00Z", "/tmp/p",
			testutil.CodexTurnContextLine("t1", "2026-02-19T10:00:00Z"),
			testutil.CodexUserLine("hello", "2026-02-19T10:00:01Z")),
	})

	stdout, stderr, err := runCommand(t, "history", logPath, "--size")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(stdout, "stats:") {
		t.Error("stats line leaked to stdout")
	}
	if !strings.Contains(stderr, "stats:") || !strings.Contains(stderr, "items_total=") {
		t.Errorf("stderr = %q, want stats line", stderr)
	}
}

func TestHistory_FullPrintsIndentedDetail(t *testing.T) {
	base := setupRoots(t)
	logPath := filepath.Join(base, "codex", "2026", "02", "19", "rollout-s1.jsonl")
	testutil.WriteFiles(t, filepath.Join(base, "codex"), map[string]string{
		"2026/02/19/rollout-s1.jsonl": testutil.CodexSessionLog("s1", "2026-02-19T10:00:00Z", "/tmp/p",
			testutil.CodexUserLine("first line\nsecond line", "2026-02-19T10:00:01Z")),
	})

	stdout, _, err := runCommand(t, "history", logPath, "--full")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "  first line") || !strings.Contains(stdout, "  second line") {
		t.Errorf("stdout = %q, want indented detail lines", stdout)
	}
}

func TestSkills_JSONPayload(t *testing.T) {
	base := setupRoots(t)
	logPath := filepath.Join(base, "codex", "2026", "02", "19", "rollout-s1.jsonl")
	skillCall := `{"timestamp":"2026-02-19T10:00:01Z","type":"response_item","payload":{"type":"function_call","name":"Skill","arguments":"{\"skill\":\"commit\"}","call_id":"c1"}}`
	testutil.WriteFiles(t, filepath.Join(base, "codex"), map[string]string{
		"2026/02/19/rollout-s1.jsonl": testutil.CodexSessionLog("s1", "2026-02-19T10:00:00Z", "/tmp/p",
			testutil.CodexTurnContextLine("t1", "2026-02-19T10:00:00Z"),
			skillCall,
			testutil.CodexFunctionCallOutputLine("c1", "done", "2026-02-19T10:00:02Z"),
			testutil.CodexUserLine("next", "2026-02-19T10:00:03Z")),
	})

	stdout, _, err := runCommand(t, "skills", logPath, "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, `"session_id": "s1"`) {
		t.Errorf("stdout = %q, want session_id", stdout)
	}
	if !strings.Contains(stdout, `"name": "commit"`) {
		t.Errorf("stdout = %q, want commit span", stdout)
	}
}

func TestUnknownEngineIsUsageError(t *testing.T) {
	setupRoots(t)
	_, _, err := runCommand(t, "projects", "--engine", "vim")
	if err == nil {
		t.Fatal("expected error")
	}
	var usage usageError
	if !errorsAs(err, &usage) {
		t.Errorf("err = %v, want usage error", err)
	}
}

func errorsAs(err error, target *usageError) bool {
	for err != nil {
		if u, ok := err.(usageError); ok {
			*target = u
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	out := ""
	for n > 0 {
		out = string(rune('0'+n%10)) + out
		n /= 10
	}
	return out
}
