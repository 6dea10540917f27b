package timeline

import (
	"path/filepath"
	"testing"

	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/testutil"
)

func writeSession(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{name: content})
	return filepath.Join(dir, name)
}

func kinds(items []domain.Item) []domain.ItemKind {
	out := make([]domain.ItemKind, len(items))
	for i, item := range items {
		out[i] = item.Kind
	}
	return out
}

func TestLoad_CodexBasicFlow(t *testing.T) {
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project",
		testutil.CodexTurnContextLine("t1", "2026-02-18T22:00:00Z"),
		testutil.CodexUserLine("hello", "2026-02-18T22:00:01Z"),
		testutil.CodexAssistantLine("ok", "2026-02-18T22:00:02Z"),
	))

	timeline, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if timeline.Meta.ID != "s1" {
		t.Errorf("meta id = %q, want s1", timeline.Meta.ID)
	}

	got := kinds(timeline.Items)
	want := []domain.ItemKind{domain.KindTurn, domain.KindUser, domain.KindAssistant}
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kinds[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	user := timeline.Items[1]
	if user.SourceLine != 3 {
		t.Errorf("user SourceLine = %d, want 3", user.SourceLine)
	}
	if user.TurnID != "t1" {
		t.Errorf("user TurnID = %q, want t1", user.TurnID)
	}
	if user.OffsetMS != 1000 {
		t.Errorf("user OffsetMS = %d, want 1000", user.OffsetMS)
	}

	if _, ok := timeline.TurnContexts["t1"]; !ok {
		t.Error("missing turn context t1")
	}
}

func TestLoad_MalformedLineBecomesNote(t *testing.T) {
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project",
	)+"{not json\n")

	timeline, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if timeline.Warnings != 1 {
		t.Errorf("warnings = %d, want 1", timeline.Warnings)
	}
	if len(timeline.Items) != 1 || timeline.Items[0].Kind != domain.KindNote {
		t.Fatalf("items = %+v, want one Note", timeline.Items)
	}
	if timeline.Items[0].Summary != "{not json" {
		t.Errorf("note summary = %q, want raw line", timeline.Items[0].Summary)
	}
}

func TestLoad_PairsToolCallWithOutput(t *testing.T) {
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project",
		testutil.CodexTurnContextLine("t1", "2026-02-18T22:00:00Z"),
		testutil.CodexFunctionCallLine("exec", "c1", `{"cmd":"ls"}`, "2026-02-18T22:00:01Z"),
		testutil.CodexFunctionCallOutputLine("c1", "ok", "2026-02-18T22:00:02Z"),
	))

	timeline, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}

	pairs := timeline.PairIndex()
	var callIdx, outIdx = -1, -1
	for i, item := range timeline.Items {
		switch item.Kind {
		case domain.KindToolCall:
			callIdx = i
		case domain.KindToolOutput:
			outIdx = i
		}
	}
	if callIdx < 0 || outIdx < 0 {
		t.Fatalf("missing call/output items: %v", kinds(timeline.Items))
	}
	if pairs[callIdx] != outIdx || pairs[outIdx] != callIdx {
		t.Errorf("pairs = %v, want %d<->%d", pairs, callIdx, outIdx)
	}
	if timeline.UnpairedOutputs != 0 {
		t.Errorf("UnpairedOutputs = %d, want 0", timeline.UnpairedOutputs)
	}
}

func TestLoad_UnpairedOutputCountedNotDropped(t *testing.T) {
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project",
		testutil.CodexFunctionCallOutputLine("ghost", "orphan output", "2026-02-18T22:00:02Z"),
	))

	timeline, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if timeline.UnpairedOutputs != 1 {
		t.Errorf("UnpairedOutputs = %d, want 1", timeline.UnpairedOutputs)
	}
	found := false
	for _, item := range timeline.Items {
		if item.Kind == domain.KindToolOutput {
			found = true
		}
	}
	if !found {
		t.Error("orphan output was dropped from the timeline")
	}
}

func TestLoad_DedupesConsecutiveIdenticalUserPrompts(t *testing.T) {
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project",
		testutil.CodexTurnContextLine("t1", "2026-02-18T22:00:00Z"),
		testutil.CodexUserLine("retry", "2026-02-18T22:00:01Z"),
		testutil.CodexUserLine("retry", "2026-02-18T22:00:01.100Z"),
		testutil.CodexAssistantLine("ok", "2026-02-18T22:00:02Z"),
	))

	timeline, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	users := 0
	for _, item := range timeline.Items {
		if item.Kind == domain.KindUser {
			users++
		}
	}
	if users != 1 {
		t.Errorf("user items = %d, want 1", users)
	}
}

func TestLoad_DedupesRetriedPromptAfterAbortedTurn(t *testing.T) {
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project",
		testutil.CodexTurnContextLine("t1", "2026-02-18T22:00:00Z"),
		testutil.CodexUserLine("hello", "2026-02-18T22:00:01Z"),
		testutil.CodexAssistantLine("ok", "2026-02-18T22:00:02Z"),
		`{"timestamp":"2026-02-18T22:00:03.500Z","type":"event_msg","payload":{"type":"turn_aborted","turn_id":"t1"}}`,
		`{"timestamp":"2026-02-18T22:00:04Z","type":"event_msg","payload":{"type":"task_started","turn_id":"t2"}}`,
		testutil.CodexUserLine("hello", "2026-02-18T22:00:05Z"),
		testutil.CodexAssistantLine("ok again", "2026-02-18T22:00:06Z"),
	))

	timeline, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	var users []domain.Item
	for _, item := range timeline.Items {
		if item.Kind == domain.KindUser {
			users = append(users, item)
		}
	}
	if len(users) != 1 {
		t.Fatalf("user items = %d, want 1", len(users))
	}
	if users[0].Summary != "hello" || users[0].SourceLine != 3 {
		t.Errorf("kept user = %+v", users[0])
	}
}

func TestLoad_CollapsesDuplicateTokenCounts(t *testing.T) {
	tokenLine := func(ts string, total, last int) string {
		return `{"timestamp":"` + ts + `","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"total_tokens":` +
			itoa(total) + `},"last_token_usage":{"total_tokens":` + itoa(last) + `}}}}`
	}

	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project",
		testutil.CodexTurnContextLine("t1", "2026-02-18T22:00:00Z"),
		tokenLine("2026-02-18T22:00:01Z", 10, 10),
		testutil.CodexFunctionCallOutputLine("c1", "ok", "2026-02-18T22:00:02Z"),
		tokenLine("2026-02-18T22:00:03Z", 10, 10),
		tokenLine("2026-02-18T22:00:04Z", 11, 1),
	))

	timeline, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}

	var tokenItems []domain.Item
	toolOutIdx := -1
	for i, item := range timeline.Items {
		switch item.Kind {
		case domain.KindTokenCount:
			tokenItems = append(tokenItems, item)
		case domain.KindToolOutput:
			toolOutIdx = i
		}
	}
	if len(tokenItems) != 2 {
		t.Fatalf("token items = %d, want 2", len(tokenItems))
	}
	if tokenItems[0].Summary != "tokens: total=10 last=10" || tokenItems[1].Summary != "tokens: total=11 last=1" {
		t.Errorf("token summaries = %q / %q", tokenItems[0].Summary, tokenItems[1].Summary)
	}
	// The surviving duplicate is the later occurrence, after the tool output.
	firstTokenIdx := -1
	for i, item := range timeline.Items {
		if item.Kind == domain.KindTokenCount {
			firstTokenIdx = i
			break
		}
	}
	if firstTokenIdx < toolOutIdx {
		t.Errorf("first token item at %d, tool output at %d; duplicate not collapsed to last", firstTokenIdx, toolOutIdx)
	}
}

func TestLoad_OffsetsMonotonic(t *testing.T) {
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project",
		testutil.CodexTurnContextLine("t1", "2026-02-18T22:00:00Z"),
		testutil.CodexUserLine("one", "2026-02-18T22:00:05Z"),
		// No timestamp: inherits the previous offset.
		`{"type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"two"}]}}`,
		testutil.CodexAssistantLine("three", "2026-02-18T22:00:09Z"),
	))

	timeline, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	for i := 1; i < len(timeline.Items); i++ {
		if timeline.Items[i].OffsetMS < timeline.Items[i-1].OffsetMS {
			t.Fatalf("offset regressed at %d: %d < %d", i, timeline.Items[i].OffsetMS, timeline.Items[i-1].OffsetMS)
		}
	}
}

func TestLoad_ClaudeFormatDetected(t *testing.T) {
	path := writeSession(t, "claude.jsonl",
		testutil.ClaudeUserLine("c1", "/tmp/p", "hello claude", "2026-02-19T00:00:00Z")+"\n"+
			testutil.ClaudeAssistantLine("c1", "hi there", "2026-02-19T00:00:05Z")+"\n")

	timeline, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if timeline.Meta.ID != "c1" || timeline.Meta.CWD != "/tmp/p" {
		t.Errorf("meta = %+v", timeline.Meta)
	}
	got := kinds(timeline.Items)
	if len(got) != 2 || got[0] != domain.KindUser || got[1] != domain.KindAssistant {
		t.Errorf("kinds = %v", got)
	}
}

func TestLoad_GeminiByPathShape(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"chats/session-1.json": testutil.GeminiChatDoc("g1", "2026-02-19T10:00:00Z", "/tmp/g", "prompt", "answer"),
	})

	timeline, err := Load(filepath.Join(dir, "chats", "session-1.json"))
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if timeline.Meta.ID != "g1" {
		t.Errorf("meta id = %q", timeline.Meta.ID)
	}
	if len(timeline.Items) != 2 {
		t.Errorf("items = %v", kinds(timeline.Items))
	}
}

func TestLoad_DirectoryIsError(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for directory path")
	}
}

func TestLoadPage_WindowsMatchFullLoad(t *testing.T) {
	lines := []string{testutil.CodexTurnContextLine("t1", "2026-02-18T22:00:00Z")}
	for i := 0; i < 30; i++ {
		lines = append(lines, testutil.CodexAssistantLine("message "+itoa(i), "2026-02-18T22:00:0"+itoa(i%10)+"Z"))
	}
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project", lines...))

	full, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}

	page, err := LoadPage(path, 5, 10)
	if err != nil {
		t.Fatalf("paging: %v", err)
	}
	if page.TotalItems != len(full.Items) {
		t.Errorf("TotalItems = %d, want %d", page.TotalItems, len(full.Items))
	}
	if len(page.Items) != 10 {
		t.Fatalf("page size = %d, want 10", len(page.Items))
	}
	for i, item := range page.Items {
		if item.Summary != full.Items[5+i].Summary {
			t.Errorf("page[%d] = %q, want %q", i, item.Summary, full.Items[5+i].Summary)
		}
	}
}

func TestLastAssistantOutput(t *testing.T) {
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s1", "2026-02-18T22:00:00Z", "/tmp/project",
		testutil.CodexTurnContextLine("t1", "2026-02-18T22:00:00Z"),
		testutil.CodexAssistantLine("first", "2026-02-18T22:00:01Z"),
		testutil.CodexAssistantLine("final answer", "2026-02-18T22:00:02Z"),
	))

	output, ok, err := LastAssistantOutput(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if !ok || output != "final answer" {
		t.Errorf("output = %q, ok = %v", output, ok)
	}
}

func TestReadSessionID(t *testing.T) {
	path := writeSession(t, "session.jsonl", testutil.CodexSessionLog(
		"s-xyz", "2026-02-18T22:00:00Z", "/tmp/project",
	))

	id, ok := ReadSessionID(path)
	if !ok || id != "s-xyz" {
		t.Errorf("id = %q, ok = %v", id, ok)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}
