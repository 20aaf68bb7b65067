package agent

import (
	"strconv"
	"strings"
)

// Recommendation categories. Each category is served by exactly one
// worker identity.
const (
	CategoryHead   = "head"
	CategoryTop    = "top"
	CategoryBottom = "bottom"
	CategoryShoes  = "shoes"
)

// Categories lists every category in display order.
var Categories = []string{CategoryHead, CategoryTop, CategoryBottom, CategoryShoes}

// LeaderID is the leader's mailbox identity.
const LeaderID = "leader"

// AgentForCategory returns the worker identity serving the category.
func AgentForCategory(category string) string {
	return "agent_" + category
}

// ValidCategory reports whether the category is part of the vocabulary.
func ValidCategory(category string) bool {
	switch category {
	case CategoryHead, CategoryTop, CategoryBottom, CategoryShoes:
		return true
	default:
		return false
	}
}

// UserProfile is the parsed view of a user's request.
type UserProfile struct {
	Name            string   `json:"name"`
	Gender          string   `json:"gender"`
	Age             int      `json:"age"`
	Occupation      string   `json:"occupation"`
	Hobbies         []string `json:"hobbies"`
	Mood            string   `json:"mood"` // happy, normal, depressed, excited
	StylePreference string   `json:"style_preference"`
	Budget          string   `json:"budget"` // low, medium, high
	Season          string   `json:"season"`
	Occasion        string   `json:"occasion"`

	// Context loaded from earlier sessions.
	PreviousRecommendations []string `json:"previous_recommendations,omitempty"`
	PreferredColors         []string `json:"preferred_colors,omitempty"`
	RejectedItems           []string `json:"rejected_items,omitempty"`
}

// DefaultProfile is the neutral fallback used when parsing fails or
// the completion service is unavailable.
func DefaultProfile() *UserProfile {
	return &UserProfile{
		Name:     "User",
		Gender:   "male",
		Age:      25,
		Mood:     "normal",
		Budget:   "medium",
		Season:   "spring",
		Occasion: "daily",
	}
}

// PromptContext renders the profile as prompt lines.
func (p *UserProfile) PromptContext() string {
	hobbies := "none"
	if len(p.Hobbies) > 0 {
		hobbies = strings.Join(p.Hobbies, ", ")
	}
	style := p.StylePreference
	if style == "" {
		style = "no particular preference"
	}
	lines := []string{
		"- Name: " + p.Name,
		"- Gender: " + p.Gender,
		"- Age: " + strconv.Itoa(p.Age),
		"- Occupation: " + p.Occupation,
		"- Hobbies: " + hobbies,
		"- Mood today: " + p.Mood,
		"- Style preference: " + style,
		"- Budget: " + p.Budget,
		"- Season: " + p.Season,
		"- Occasion: " + p.Occasion,
	}
	if len(p.PreviousRecommendations) > 0 {
		lines = append(lines, "- Previously recommended: "+strings.Join(tail(p.PreviousRecommendations, 5), ", "))
	}
	if len(p.PreferredColors) > 0 {
		lines = append(lines, "- Preferred colors: "+strings.Join(p.PreferredColors, ", "))
	}
	if len(p.RejectedItems) > 0 {
		lines = append(lines, "- Rejected items: "+strings.Join(tail(p.RejectedItems, 3), ", "))
	}
	return "User info:\n" + strings.Join(lines, "\n")
}

// UserInfo returns the payload map attached to dispatched tasks.
func (p *UserProfile) UserInfo() map[string]any {
	return map[string]any{
		"name":       p.Name,
		"gender":     p.Gender,
		"age":        p.Age,
		"occupation": p.Occupation,
		"mood":       p.Mood,
		"hobbies":    p.Hobbies,
		"season":     p.Season,
		"budget":     p.Budget,
		"occasion":   p.Occasion,
	}
}

// ProfileFromUserInfo rebuilds a profile from a task payload's
// user_info map, tolerating missing fields.
func ProfileFromUserInfo(info map[string]any) *UserProfile {
	p := DefaultProfile()
	if info == nil {
		return p
	}
	if v, ok := info["name"].(string); ok && v != "" {
		p.Name = v
	}
	if v, ok := info["gender"].(string); ok && v != "" {
		p.Gender = v
	}
	switch v := info["age"].(type) {
	case int:
		p.Age = v
	case float64:
		p.Age = int(v)
	}
	if v, ok := info["occupation"].(string); ok {
		p.Occupation = v
	}
	if v, ok := info["mood"].(string); ok && v != "" {
		p.Mood = v
	}
	if v, ok := info["season"].(string); ok && v != "" {
		p.Season = v
	}
	if v, ok := info["budget"].(string); ok && v != "" {
		p.Budget = v
	}
	if v, ok := info["occasion"].(string); ok && v != "" {
		p.Occasion = v
	}
	switch v := info["hobbies"].(type) {
	case []string:
		p.Hobbies = v
	case []any:
		for _, h := range v {
			if s, ok := h.(string); ok {
				p.Hobbies = append(p.Hobbies, s)
			}
		}
	}
	return p
}

// OutfitRecommendation is one worker's reply for its category.
type OutfitRecommendation struct {
	Category   string   `json:"category"`
	Items      []string `json:"items"`
	Colors     []string `json:"colors"`
	Styles     []string `json:"styles"`
	Reasons    []string `json:"reasons"`
	PriceRange string   `json:"price_range"`
}

// PlaceholderRecommendation is returned when a worker's reply cannot
// be parsed, so a malformed completion degrades instead of failing.
func PlaceholderRecommendation(category string) *OutfitRecommendation {
	return &OutfitRecommendation{
		Category: category,
		Items:    []string{"Pending"},
		Colors:   []string{"TBD"},
		Reasons:  []string{"Waiting"},
	}
}

// ToPayload converts the recommendation into a result payload map.
func (r *OutfitRecommendation) ToPayload() map[string]any {
	return map[string]any{
		"category":    r.Category,
		"items":       r.Items,
		"colors":      r.Colors,
		"styles":      r.Styles,
		"reasons":     r.Reasons,
		"price_range": r.PriceRange,
	}
}

// RecommendationFromPayload rebuilds a recommendation from a result
// payload map.
func RecommendationFromPayload(m map[string]any) *OutfitRecommendation {
	rec := &OutfitRecommendation{}
	if m == nil {
		return rec
	}
	if v, ok := m["category"].(string); ok {
		rec.Category = v
	}
	rec.Items = stringSlice(m["items"])
	rec.Colors = stringSlice(m["colors"])
	rec.Styles = stringSlice(m["styles"])
	rec.Reasons = stringSlice(m["reasons"])
	if v, ok := m["price_range"].(string); ok {
		rec.PriceRange = v
	}
	return rec
}

// Display renders the recommendation for the console.
func (r *OutfitRecommendation) Display() string {
	lines := []string{"[" + r.Category + "]"}
	if len(r.Items) > 0 {
		lines = append(lines, "  Items:  "+strings.Join(r.Items, ", "))
	}
	if len(r.Colors) > 0 {
		lines = append(lines, "  Colors: "+strings.Join(r.Colors, ", "))
	}
	if len(r.Styles) > 0 {
		lines = append(lines, "  Styles: "+strings.Join(r.Styles, ", "))
	}
	if len(r.Reasons) > 0 {
		lines = append(lines, "  Why:    "+strings.Join(r.Reasons, "; "))
	}
	return strings.Join(lines, "\n")
}

// OutfitResult is the aggregated outcome of one session.
type OutfitResult struct {
	SessionID    string                `json:"session_id"`
	Profile      *UserProfile          `json:"profile"`
	Head         *OutfitRecommendation `json:"head,omitempty"`
	Top          *OutfitRecommendation `json:"top,omitempty"`
	Bottom       *OutfitRecommendation `json:"bottom,omitempty"`
	Shoes        *OutfitRecommendation `json:"shoes,omitempty"`
	OverallStyle string                `json:"overall_style"`
	Summary      string                `json:"summary"`

	// Missing lists worker identities that never produced a terminal
	// reply before the collection deadline.
	Missing []string `json:"missing,omitempty"`
}

// set places the recommendation into its category slot.
func (r *OutfitResult) set(category string, rec *OutfitRecommendation) {
	switch category {
	case CategoryHead:
		r.Head = rec
	case CategoryTop:
		r.Top = rec
	case CategoryBottom:
		r.Bottom = rec
	case CategoryShoes:
		r.Shoes = rec
	}
}

// Recommendations returns the populated slots in display order.
func (r *OutfitResult) Recommendations() []*OutfitRecommendation {
	var out []*OutfitRecommendation
	for _, rec := range []*OutfitRecommendation{r.Head, r.Top, r.Bottom, r.Shoes} {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// Display renders the full result for the console.
func (r *OutfitResult) Display() string {
	rule := strings.Repeat("=", 50)
	lines := []string{
		rule,
		"User: " + r.Profile.Name + " (" + strconv.Itoa(r.Profile.Age) + ", " + r.Profile.Occupation + ")",
		"Mood: " + r.Profile.Mood + " | Hobbies: " + strings.Join(r.Profile.Hobbies, ", "),
		rule,
		"",
	}
	for _, rec := range r.Recommendations() {
		lines = append(lines, rec.Display(), "")
	}
	if r.OverallStyle != "" {
		lines = append(lines, "Overall style: "+r.OverallStyle)
	}
	if r.Summary != "" {
		lines = append(lines, "Summary: "+r.Summary)
	}
	if len(r.Missing) > 0 {
		lines = append(lines, "No reply from: "+strings.Join(r.Missing, ", "))
	}
	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}

// Task is one dispatched unit of work.
type Task struct {
	ID          string
	SessionID   string
	Category    string
	AgentID     string
	Description string
	Instruction string
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		var out []string
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func tail(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
