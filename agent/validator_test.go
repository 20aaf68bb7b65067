package agent

import "testing"

func validResult() map[string]any {
	return map[string]any{
		"category": "top",
		"items":    []any{"linen shirt", "light blazer"},
		"colors":   []any{"white", "sky blue"},
		"styles":   []any{"smart casual"},
		"reasons":  []any{"breathable for summer"},
	}
}

func TestValidateComplete(t *testing.T) {
	v := NewValidator(LevelNormal)
	vr := v.Validate(validResult(), "top")
	if !vr.Valid {
		t.Errorf("complete result should pass: %+v", vr.Errors)
	}
}

func TestValidateMissingField(t *testing.T) {
	v := NewValidator(LevelNormal)
	result := validResult()
	delete(result, "reasons")

	vr := v.Validate(result, "top")
	if vr.Valid {
		t.Error("missing reasons should fail")
	}
	if len(vr.Errors) != 1 || vr.Errors[0].Field != "reasons" {
		t.Errorf("errors = %+v", vr.Errors)
	}
}

func TestValidateWrongType(t *testing.T) {
	v := NewValidator(LevelNormal)
	result := validResult()
	result["colors"] = "just a string"

	vr := v.Validate(result, "top")
	if vr.Valid {
		t.Error("non-list colors should fail at normal level")
	}
}

func TestValidateLenientStopsEarly(t *testing.T) {
	v := NewValidator(LevelLenient)
	result := validResult()
	result["colors"] = "just a string"

	// Lenient only checks presence, so a present-but-mistyped field
	// passes.
	vr := v.Validate(result, "top")
	if !vr.Valid {
		t.Errorf("lenient should not type-check: %+v", vr.Errors)
	}
}

func TestValidateStrictPromotesWarnings(t *testing.T) {
	v := NewValidator(LevelStrict)
	result := validResult()
	result["items"] = []any{"x"} // too short

	vr := v.Validate(result, "top")
	if vr.Valid {
		t.Error("strict should fail on warnings")
	}
	if len(vr.Warnings) != 0 {
		t.Errorf("warnings should be promoted, got %+v", vr.Warnings)
	}
}

func TestValidateNil(t *testing.T) {
	v := NewValidator(LevelNormal)
	if vr := v.Validate(nil, "top"); vr.Valid {
		t.Error("nil result should fail")
	}
}

func TestAutoFix(t *testing.T) {
	v := NewValidator(LevelNormal)
	fixed := v.AutoFix(map[string]any{
		"items":  []any{"sneakers"},
		"colors": "white", // scalar, should become a list
	}, "shoes")

	if fixed["category"] != "shoes" {
		t.Errorf("category = %v", fixed["category"])
	}
	if got := stringSlice(fixed["colors"]); len(got) != 1 || got[0] != "white" {
		t.Errorf("colors = %v", fixed["colors"])
	}
	for _, field := range []string{"styles", "reasons"} {
		got := stringSlice(fixed[field])
		if len(got) != 1 || got[0] != "Not provided" {
			t.Errorf("%s = %v, want placeholder", field, fixed[field])
		}
	}
	if got := stringSlice(fixed["items"]); len(got) != 1 || got[0] != "sneakers" {
		t.Errorf("items clobbered: %v", fixed["items"])
	}
}

func TestParseValidationLevel(t *testing.T) {
	cases := map[string]ValidationLevel{
		"strict":  LevelStrict,
		"LENIENT": LevelLenient,
		"normal":  LevelNormal,
		"bogus":   LevelNormal,
		"":        LevelNormal,
	}
	for in, want := range cases {
		if got := ParseValidationLevel(in); got != want {
			t.Errorf("ParseValidationLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
