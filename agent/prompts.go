package agent

import (
	"encoding/json"
	"strings"
)

// systemPrompt frames every leader-side completion call.
const systemPrompt = `You are a professional fashion consultant, skilled at recommending appropriate outfits based on user information and mood.

You need to:
1. Parse user information, extract key features
2. Adjust outfit style based on the user's mood (depressed/happy/normal)
3. Consider the user's occupation and hobbies for recommendations
4. Provide professional and thoughtful suggestions

Please reply in JSON format.`

// categorySystemPrompts frame each worker's completion calls.
var categorySystemPrompts = map[string]string{
	CategoryHead: `You are an accessory expert, skilled at recommending head accessories like hats, glasses, necklaces, earrings.
Based on user characteristics and mood, recommend suitable accessories.
Note:
- When mood is depressed, choose accessories that bring vitality or comfort
- Consider the user's occupation and daily activities
- Provide specific color and style suggestions`,
	CategoryTop: `You are a tops expert, skilled at recommending T-shirts, shirts, jackets, hoodies, etc.
Based on user characteristics and mood, recommend suitable tops.
Note:
- When mood is depressed, choose colors that improve mood (like bright colors)
- Consider season and occasion
- Provide specific style and color suggestions`,
	CategoryBottom: `You are a bottoms expert, skilled at recommending jeans, casual pants, dress pants, etc.
Based on user characteristics and mood, recommend suitable bottoms.
Note:
- Consider coordination with tops
- Comfort and occasion requirements
- Provide specific style and color suggestions`,
	CategoryShoes: `You are a footwear expert, skilled at recommending all kinds of shoes.
Based on user characteristics and mood, recommend suitable shoes.
Note:
- Consider coordination with the overall outfit
- Comfort and practicality
- Provide specific style and color suggestions`,
}

// SystemPromptFor returns the worker system prompt for a category.
func SystemPromptFor(category string) string {
	if p, ok := categorySystemPrompts[category]; ok {
		return p
	}
	return "You are a fashion consultant."
}

// categoryNames expand a category id for prompt text.
var categoryNames = map[string]string{
	CategoryHead:   "head accessories (hats, glasses, necklaces, earrings, etc.)",
	CategoryTop:    "tops (T-shirts, shirts, jackets, hoodies, etc.)",
	CategoryBottom: "bottoms (jeans, casual pants, dress pants, etc.)",
	CategoryShoes:  "shoes (sneakers, dress shoes, casual shoes, etc.)",
}

// categoryDescriptions are the short task descriptions used in
// dispatch payloads and the registry.
var categoryDescriptions = map[string]string{
	CategoryHead:   "head accessories recommendation",
	CategoryTop:    "top clothing recommendation",
	CategoryBottom: "bottom clothing recommendation",
	CategoryShoes:  "shoes recommendation",
}

// moodAdjustments tune recommendations to the user's mood.
var moodAdjustments = map[string]string{
	"depressed": "The user is feeling depressed today; recommend styles that bring vitality or comfort, consider adding some bright colors.",
	"happy":     "The user is happy today; more vibrant and lively styles work well.",
	"excited":   "The user is excited; recommend elegant and appropriate styles.",
	"normal":    "The user's mood is normal; choose comfortable and natural styles.",
}

// profilePrompt asks for a JSON user profile extracted from free text.
func profilePrompt(userInput string) string {
	return `Extract user profile information from the following input, return JSON format:

Input: ` + userInput + `

Please return JSON in the following format:
{
    "name": "name",
    "gender": "male/female/other",
    "age": age_number,
    "occupation": "occupation",
    "hobbies": ["hobby1", "hobby2"],
    "mood": "happy/normal/depressed/excited",
    "style_preference": "style preference (optional)",
    "budget": "low/medium/high",
    "season": "spring/summer/autumn/winter",
    "occasion": "daily/work/date/party"
}

Only return JSON, no other content.`
}

// categoriesPrompt asks which categories are worth recommending.
func categoriesPrompt(profile *UserProfile) string {
	return `Based on the following user profile, determine which clothing categories to recommend.

` + profile.PromptContext() + `

Available categories:
- head: head accessories (hats, glasses, necklaces, earrings)
- top: tops (T-shirts, shirts, jackets, hoodies)
- bottom: bottoms (jeans, pants, skirts)
- shoes: shoes (sneakers, dress shoes, casual shoes)

Consider:
1. If the occasion is "work", recommend professional outfits
2. If the budget is "low", focus on essential categories
3. For "date" or "party", include all categories for a complete outfit

Return ONLY a JSON array like ["head", "top"], no other text.`
}

// recommendPrompt is the worker's main prompt for its category.
func recommendPrompt(category string, profile *UserProfile, compactInstruction, history string) string {
	var b strings.Builder
	if compactInstruction != "" {
		b.WriteString("[Compact instruction - follow this if available]:\n")
		b.WriteString(compactInstruction)
		b.WriteString("\n\n")
	}
	if history != "" {
		b.WriteString("[Similar past recommendations - for reference]:\n")
		b.WriteString(history)
		b.WriteString("\n\n")
	}
	b.WriteString(profile.PromptContext())
	b.WriteString("\n\nPlease recommend ")
	if name, ok := categoryNames[category]; ok {
		b.WriteString(name)
	} else {
		b.WriteString(category)
	}
	b.WriteString(" for the user.\n\n")
	if adj, ok := moodAdjustments[profile.Mood]; ok {
		b.WriteString(adj)
		b.WriteString("\n\n")
	}
	b.WriteString(`Requirements:
1. Choose appropriate styles for the user's age and occupation
2. Consider the season and occasion
3. Stay within the stated budget
4. Account for how the user's hobbies affect outfit choices

Please return JSON format:
{
    "category": "` + category + `",
    "items": ["recommended item 1", "recommended item 2"],
    "colors": ["color 1", "color 2"],
    "styles": ["style 1", "style 2"],
    "reasons": ["reason 1", "reason 2"],
    "price_range": "price range"
}

Only return JSON.`)
	return b.String()
}

// aggregatePrompt asks for an overall style synthesis of the
// per-category results.
func aggregatePrompt(profile *UserProfile, results map[string]*OutfitRecommendation) string {
	summary := make(map[string]map[string]any, len(results))
	for category, rec := range results {
		summary[category] = map[string]any{
			"items":  rec.Items,
			"colors": rec.Colors,
			"styles": rec.Styles,
		}
	}
	encoded, _ := json.Marshal(summary)
	return `Based on the following user profile and outfit recommendations, provide overall style suggestions:

` + profile.PromptContext() + `

Recommendations:
` + string(encoded) + `

Please provide:
1. Overall style description
2. One sentence summary

Return JSON format:
{
    "overall_style": "style description",
    "summary": "summary"
}`
}

// extractObject slices the first {...} span out of a completion and
// unmarshals it. Completions often wrap JSON in prose; slicing by
// braces tolerates that.
func extractObject(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, false
	}
	return out, true
}

// extractStrings slices the first [...] span out of a completion and
// unmarshals it as a string array.
func extractStrings(text string) ([]string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, false
	}
	return out, true
}
