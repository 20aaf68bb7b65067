package protocol

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildInstructionSections(t *testing.T) {
	b := NewBudgeter(500)
	profile := ProfileFacts{
		Name:       "Alice",
		Gender:     "female",
		Age:        28,
		Occupation: "engineer",
		Mood:       "confident",
		Hobbies:    []string{"climbing", "photography"},
	}
	task := TaskFacts{Category: "top", Instruction: "business casual"}

	out := b.BuildInstruction(profile, task, "prefers muted colors", 500)

	lines := strings.Split(out, "\n")
	if lines[0] != "Task: top" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "Target: Alice" {
		t.Errorf("target = %q", lines[1])
	}
	if !strings.Contains(out, "User Info: Gender: female; Age: 28; Occupation: engineer; Mood: confident; Hobbies: climbing,photography") {
		t.Errorf("facts missing or misjoined:\n%s", out)
	}
	if !strings.Contains(out, "Requirement: business casual") {
		t.Errorf("requirement missing:\n%s", out)
	}
	if !strings.Contains(out, "Context: prefers muted colors") {
		t.Errorf("context missing:\n%s", out)
	}
}

func TestBuildInstructionDefaults(t *testing.T) {
	b := NewBudgeter(500)

	out := b.BuildInstruction(ProfileFacts{}, TaskFacts{}, "", 500)

	if !strings.HasPrefix(out, "Task: unknown\nTarget: User") {
		t.Errorf("defaults not applied:\n%s", out)
	}
	if strings.Contains(out, "User Info:") {
		t.Error("empty facts should omit the user info section")
	}
	if strings.Contains(out, "Context:") {
		t.Error("empty context should be omitted")
	}
}

func TestBuildInstructionContextOmittedWhenTight(t *testing.T) {
	b := NewBudgeter(500)
	task := TaskFacts{Category: "shoes", Instruction: strings.Repeat("x", 200)}

	// Fixed sections consume nearly the whole budget, so the remaining
	// room falls under the minimum and context must vanish entirely.
	out := b.BuildInstruction(ProfileFacts{Name: "Bob"}, task, strings.Repeat("c", 300), 300)

	if strings.Contains(out, "Context:") {
		t.Errorf("context included with no room:\n%s", out)
	}
	if !strings.Contains(out, "Requirement:") {
		t.Error("fixed sections must never be dropped")
	}
}

func TestBuildInstructionContextTruncated(t *testing.T) {
	b := NewBudgeter(500)
	task := TaskFacts{Category: "bottom"}
	context := strings.Repeat("c", 1000)

	out := b.BuildInstruction(ProfileFacts{Name: "Bob"}, task, context, 400)

	idx := strings.Index(out, "Context: ")
	if idx < 0 {
		t.Fatalf("context dropped instead of truncated:\n%s", out)
	}
	kept := out[idx+len("Context: "):]
	if len(kept) >= len(context) {
		t.Error("context not truncated")
	}
	if len(out) > 400 {
		t.Errorf("instruction length %d exceeds budget 400", len(out))
	}
}

func TestBuildInstructionTruncatesOnRuneBoundary(t *testing.T) {
	b := NewBudgeter(500)
	task := TaskFacts{Category: "top"}
	// Multibyte runes throughout, so an arbitrary byte cut would land
	// mid-rune for most budgets.
	context := strings.Repeat("素敵な色合い", 100)

	for budget := 250; budget <= 280; budget++ {
		out := b.BuildInstruction(ProfileFacts{Name: "Yuki"}, task, context, budget)
		if !utf8.ValidString(out) {
			t.Fatalf("budget %d produced invalid UTF-8:\n%q", budget, out)
		}
		if len(out) > budget {
			t.Errorf("budget %d exceeded: %d bytes", budget, len(out))
		}
	}
}

func TestBudgeterLimits(t *testing.T) {
	b := NewBudgeter(500)

	if got := b.Limit("anyone"); got != 500 {
		t.Errorf("default limit = %d, want 500", got)
	}
	b.SetLimit("agent_top", 800)
	if got := b.Limit("agent_top"); got != 800 {
		t.Errorf("override = %d, want 800", got)
	}
	if got := b.Limit("agent_shoes"); got != 500 {
		t.Errorf("other agents must keep the default, got %d", got)
	}
}

func TestFactsFromPayload(t *testing.T) {
	facts := FactsFromPayload(map[string]any{
		"name":       "Carol",
		"age":        float64(31), // json numbers decode as float64
		"hobbies":    []any{"running", 42, "chess"},
		"occupation": "designer",
	})

	if facts.Name != "Carol" || facts.Age != 31 || facts.Occupation != "designer" {
		t.Errorf("scalar facts: %+v", facts)
	}
	if len(facts.Hobbies) != 2 || facts.Hobbies[0] != "running" || facts.Hobbies[1] != "chess" {
		t.Errorf("hobbies = %v", facts.Hobbies)
	}

	empty := FactsFromPayload(nil)
	if empty.Name != "" || empty.Age != 0 {
		t.Errorf("nil payload should yield zero facts: %+v", empty)
	}
}
