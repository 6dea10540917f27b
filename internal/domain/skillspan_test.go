package domain

import "testing"

func makeItem(kind ItemKind, summary, detail string) Item {
	return Item{Kind: kind, Summary: summary, Detail: detail}
}

func TestExtractSkillName(t *testing.T) {
	if name, ok := ExtractSkillName(`{"skill":"commit"}`); !ok || name != "commit" {
		t.Errorf("name = %q, ok = %v", name, ok)
	}
	if _, ok := ExtractSkillName("not json"); ok {
		t.Error("expected failure for non-json input")
	}
	if _, ok := ExtractSkillName(`{"args":"x"}`); ok {
		t.Error("expected failure without skill field")
	}
}

func TestExtractCodexSkillName(t *testing.T) {
	text := "<skill>\n<name>ccbox</name>\n<path>/x</path>\n</skill>"
	if name, ok := ExtractCodexSkillName(text); !ok || name != "ccbox" {
		t.Errorf("name = %q, ok = %v", name, ok)
	}
	if _, ok := ExtractCodexSkillName("hello world"); ok {
		t.Error("expected failure for plain text")
	}
}

func TestDetectSkillSpans_ClosedByNextUserMessage(t *testing.T) {
	skill := makeItem(KindToolCall, "Skill()", `{"skill":"commit"}`)
	skill.CallID = "toolu_1"

	items := []Item{
		skill,
		makeItem(KindToolCall, "Bash()", `{"cmd":"ls"}`),
		makeItem(KindToolOutput, "ok", "done"),
		makeItem(KindUser, "user", "next task"),
	}

	spans := DetectSkillSpans(items)
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name != "commit" || span.StartIdx != 0 || span.EndIdx != 2 {
		t.Errorf("span = %+v", span)
	}
	if span.Depth != 0 || span.ParentIdx != -1 {
		t.Errorf("depth/parent = %d/%d", span.Depth, span.ParentIdx)
	}
}

func TestDetectSkillSpans_Nested(t *testing.T) {
	outer := makeItem(KindToolCall, "Skill()", `{"skill":"commit"}`)
	outer.CallID = "toolu_outer"
	inner := makeItem(KindToolCall, "Skill()", `{"skill":"code-review"}`)
	inner.CallID = "toolu_inner"

	items := []Item{
		outer,
		makeItem(KindToolCall, "Bash()", `{"cmd":"git status"}`),
		inner,
		makeItem(KindToolCall, "Bash()", `{"cmd":"rg foo"}`),
		makeItem(KindUser, "user", "done"),
	}

	spans := DetectSkillSpans(items)
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Depth != 0 || spans[0].ParentIdx != -1 {
		t.Errorf("outer span = %+v", spans[0])
	}
	if spans[1].Depth != 1 || spans[1].ParentIdx != 0 {
		t.Errorf("inner span = %+v", spans[1])
	}
}

func TestDetectSkillSpans_MetadataPromptDoesNotClose(t *testing.T) {
	skill := makeItem(KindToolCall, "Skill()", `{"skill":"commit"}`)
	skill.CallID = "toolu_1"

	items := []Item{
		skill,
		makeItem(KindUser, "user", "<skill>\n<name>ccbox</name>\n</skill>"),
		makeItem(KindToolCall, "Bash()", "{}"),
		makeItem(KindUser, "user", "next"),
	}

	spans := DetectSkillSpans(items)
	if len(spans) != 1 || spans[0].EndIdx != 2 {
		t.Fatalf("spans = %+v", spans)
	}
}

func TestDetectSkillLoops(t *testing.T) {
	spans := []SkillSpan{
		{Name: "commit", StartIdx: 0, EndIdx: 2, CallID: "c1", Depth: 0, ParentIdx: -1},
		{Name: "review", StartIdx: 1, EndIdx: 1, CallID: "c2", Depth: 1, ParentIdx: 0},
		{Name: "commit", StartIdx: 5, EndIdx: 6, CallID: "c3", Depth: 0, ParentIdx: -1},
	}

	loops := DetectSkillLoops(spans)
	if len(loops) != 1 {
		t.Fatalf("loops = %d, want 1", len(loops))
	}
	if loops[0].Name != "commit" {
		t.Errorf("loop name = %q", loops[0].Name)
	}
	if len(loops[0].SpanIndices) != 2 || loops[0].SpanIndices[0] != 0 || loops[0].SpanIndices[1] != 2 {
		t.Errorf("loop indices = %v", loops[0].SpanIndices)
	}
}

func TestComputeSkillMetrics(t *testing.T) {
	skill := makeItem(KindToolCall, "Skill()", `{"skill":"commit"}`)
	skill.TimestampMS = 1_000
	toolCall := makeItem(KindToolCall, "Bash()", "{}")
	toolCall.TimestampMS = 2_000
	toolOut := makeItem(KindToolOutput, "ok", "hello")
	toolOut.TimestampMS = 3_500

	span := SkillSpan{Name: "commit", StartIdx: 0, EndIdx: 2, CallID: "c1", Depth: 0, ParentIdx: -1}
	metrics := ComputeSkillMetrics(span, []Item{skill, toolCall, toolOut})

	if metrics.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", metrics.ToolCalls)
	}
	if metrics.ToolOutputs != 1 {
		t.Errorf("ToolOutputs = %d, want 1", metrics.ToolOutputs)
	}
	if metrics.OutputChars != 5 {
		t.Errorf("OutputChars = %d, want 5", metrics.OutputChars)
	}
	if metrics.DurationMS != 2_500 {
		t.Errorf("DurationMS = %d, want 2500", metrics.DurationMS)
	}
}

func TestDetectSkillSpans_NoSkills(t *testing.T) {
	items := []Item{makeItem(KindUser, "user", "hello")}
	if spans := DetectSkillSpans(items); len(spans) != 0 {
		t.Errorf("spans = %v, want none", spans)
	}
}
