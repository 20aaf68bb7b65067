package agent

import (
	"fmt"
	"strings"
)

// ValidationLevel controls how strictly worker results are checked.
type ValidationLevel string

const (
	// LevelStrict runs every check and fails on any error.
	LevelStrict ValidationLevel = "strict"

	// LevelNormal checks required fields and types.
	LevelNormal ValidationLevel = "normal"

	// LevelLenient stops after the required-field check.
	LevelLenient ValidationLevel = "lenient"
)

// ParseValidationLevel maps a config string to a level, defaulting to
// normal for unknown values.
func ParseValidationLevel(s string) ValidationLevel {
	switch strings.ToLower(s) {
	case string(LevelStrict):
		return LevelStrict
	case string(LevelLenient):
		return LevelLenient
	default:
		return LevelNormal
	}
}

// ValidationIssue is one problem found in a result.
type ValidationIssue struct {
	Field   string
	Message string
}

// ValidationResult aggregates the issues found in one result map.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

func (r *ValidationResult) addError(field, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Field: field, Message: message})
	r.Valid = false
}

func (r *ValidationResult) addWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Field: field, Message: message})
}

// requiredFields must be present and non-empty in every category's
// result.
var requiredFields = []string{"items", "colors", "styles", "reasons"}

// Validator checks worker result maps before aggregation.
type Validator struct {
	level ValidationLevel
}

// NewValidator creates a validator at the given level.
func NewValidator(level ValidationLevel) *Validator {
	if level == "" {
		level = LevelNormal
	}
	return &Validator{level: level}
}

// Validate checks a result map for the category.
func (v *Validator) Validate(result map[string]any, category string) *ValidationResult {
	vr := &ValidationResult{Valid: true}
	if result == nil {
		vr.addError("result", "result is empty")
		return vr
	}

	for _, field := range requiredFields {
		val, ok := result[field]
		if !ok || val == nil {
			vr.addError(field, "missing required field: "+field)
			continue
		}
		if list := stringSlice(val); list != nil && len(list) == 0 {
			vr.addWarning(field, "empty field: "+field)
		}
	}

	if v.level == LevelLenient {
		return vr
	}

	for _, field := range requiredFields {
		val, ok := result[field]
		if !ok {
			continue
		}
		switch val.(type) {
		case []string, []any:
		default:
			vr.addError(field, "field type error, expected list: "+field)
		}
	}

	for i, item := range stringSlice(result["items"]) {
		if len(strings.TrimSpace(item)) < 2 {
			vr.addWarning(fmt.Sprintf("items[%d]", i), "recommendation too short: "+item)
		}
	}

	if v.level == LevelStrict && len(vr.Warnings) > 0 {
		for _, w := range vr.Warnings {
			vr.addError(w.Field, w.Message)
		}
		vr.Warnings = nil
	}

	return vr
}

// AutoFix fills missing required fields with placeholders and coerces
// scalar values into single-element lists.
func (v *Validator) AutoFix(result map[string]any, category string) map[string]any {
	fixed := make(map[string]any, len(result)+len(requiredFields))
	for k, val := range result {
		fixed[k] = val
	}
	if _, ok := fixed["category"]; !ok {
		fixed["category"] = category
	}
	for _, field := range requiredFields {
		val, ok := fixed[field]
		if !ok || val == nil {
			fixed[field] = []string{"Not provided"}
			continue
		}
		switch val.(type) {
		case []string, []any:
			if len(stringSlice(val)) == 0 {
				fixed[field] = []string{"Not provided"}
			}
		default:
			fixed[field] = []string{fmt.Sprintf("%v", val)}
		}
	}
	return fixed
}
