package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// Budget packing constants. The budget is measured in characters as an
// explicit approximation of tokens; no real tokenizer is involved.
const (
	// contextReserve is held back when truncating the trailing context.
	contextReserve = 50

	// contextMinimum is the smallest remaining budget for which a
	// context section is worth including at all.
	contextMinimum = 100
)

// ProfileFacts are the key facts packed into a compact instruction.
// Zero-valued fields are omitted from the output.
type ProfileFacts struct {
	Name       string
	Gender     string
	Age        int
	Occupation string
	Mood       string
	Hobbies    []string
}

// TaskFacts describe the task half of a compact instruction.
type TaskFacts struct {
	Category    string
	Instruction string
}

// Budgeter packs structured context into a bounded-length instruction
// string and tracks per-agent token limits.
type Budgeter struct {
	defaultLimit int

	mu     sync.Mutex
	limits map[string]int
}

// NewBudgeter creates a budgeter with the given default limit.
func NewBudgeter(defaultLimit int) *Budgeter {
	if defaultLimit <= 0 {
		defaultLimit = 500
	}
	return &Budgeter{
		defaultLimit: defaultLimit,
		limits:       make(map[string]int),
	}
}

// Limit returns the agent's token limit, falling back to the default.
func (b *Budgeter) Limit(agentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit, ok := b.limits[agentID]; ok {
		return limit
	}
	return b.defaultLimit
}

// SetLimit overrides the agent's token limit.
func (b *Budgeter) SetLimit(agentID string, limit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits[agentID] = limit
}

// BuildInstruction assembles a compact instruction under maxBudget
// characters. Sections are packed greedily in a fixed order — header,
// target, key facts, instruction — and only the trailing context is
// elastic: it is truncated to the remaining budget minus a fixed
// reserve, and omitted entirely when the remainder is too small.
// Earlier sections are never dropped to make room for later ones.
func (b *Budgeter) BuildInstruction(profile ProfileFacts, task TaskFacts, context string, maxBudget int) string {
	if maxBudget <= 0 {
		maxBudget = b.defaultLimit
	}

	category := task.Category
	if category == "" {
		category = "unknown"
	}
	name := profile.Name
	if name == "" {
		name = "User"
	}

	parts := []string{
		"Task: " + category,
		"Target: " + name,
	}

	var facts []string
	if profile.Gender != "" {
		facts = append(facts, "Gender: "+profile.Gender)
	}
	if profile.Age > 0 {
		facts = append(facts, "Age: "+strconv.Itoa(profile.Age))
	}
	if profile.Occupation != "" {
		facts = append(facts, "Occupation: "+profile.Occupation)
	}
	if profile.Mood != "" {
		facts = append(facts, "Mood: "+profile.Mood)
	}
	if len(profile.Hobbies) > 0 {
		facts = append(facts, "Hobbies: "+strings.Join(profile.Hobbies, ","))
	}
	if len(facts) > 0 {
		parts = append(parts, "User Info: "+strings.Join(facts, "; "))
	}

	if task.Instruction != "" {
		parts = append(parts, "Requirement: "+task.Instruction)
	}

	if context != "" {
		used := 0
		for _, p := range parts {
			used += len(p)
		}
		available := maxBudget - used - contextReserve
		if available > contextMinimum {
			if len(context) > available {
				context = truncateRunes(context, available)
			}
			parts = append(parts, "Context: "+context)
		}
	}

	return strings.Join(parts, "\n")
}

// truncateRunes cuts s to at most max bytes without splitting a
// multibyte rune at the boundary.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// FactsFromPayload extracts profile facts from a task payload's
// user_info map, tolerating missing or mistyped fields.
func FactsFromPayload(userInfo map[string]any) ProfileFacts {
	facts := ProfileFacts{}
	if userInfo == nil {
		return facts
	}
	if v, ok := userInfo["name"].(string); ok {
		facts.Name = v
	}
	if v, ok := userInfo["gender"].(string); ok {
		facts.Gender = v
	}
	switch v := userInfo["age"].(type) {
	case int:
		facts.Age = v
	case float64:
		facts.Age = int(v)
	case string:
		fmt.Sscanf(v, "%d", &facts.Age)
	}
	if v, ok := userInfo["occupation"].(string); ok {
		facts.Occupation = v
	}
	if v, ok := userInfo["mood"].(string); ok {
		facts.Mood = v
	}
	switch v := userInfo["hobbies"].(type) {
	case []string:
		facts.Hobbies = v
	case []any:
		for _, h := range v {
			if s, ok := h.(string); ok {
				facts.Hobbies = append(facts.Hobbies, s)
			}
		}
	}
	return facts
}
