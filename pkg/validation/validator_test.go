package validation

import (
	"strings"
	"testing"
	"time"
)

type probe struct {
	ID      string  `validate:"required,elementid"`
	Country string  `validate:"country"`
	Weight  float64 `validate:"gte=0"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name      string
		in        probe
		wantError string
	}{
		{"valid", probe{ID: "core-1.fra", Country: "DE"}, ""},
		{"empty country allowed", probe{ID: "r1"}, ""},
		{"missing id", probe{}, "ID: field is required"},
		{"bad id", probe{ID: "has space"}, "invalid identifier"},
		{"bad country", probe{ID: "r1", Country: "Germany"}, "invalid country code"},
		{"negative weight", probe{ID: "r1", Weight: -1}, "must be at least 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.in)
			if tt.wantError == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantError) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantError, err)
			}
		})
	}
}

func TestValidateCost(t *testing.T) {
	for _, c := range []int{1, 10, 65535} {
		if err := ValidateCost(c); err != nil {
			t.Errorf("cost %d: unexpected error %v", c, err)
		}
	}
	for _, c := range []int{0, -1, 65536} {
		if err := ValidateCost(c); err == nil {
			t.Errorf("cost %d: expected error", c)
		}
	}
}

func TestValidateID(t *testing.T) {
	if err := ValidateID(""); err == nil {
		t.Error("Expected error for empty id")
	}
	if err := ValidateID(strings.Repeat("x", MaxIDLength+1)); err == nil {
		t.Error("Expected error for long id")
	}
	if err := ValidateID("edge#rev"); err == nil {
		t.Error("'#' is reserved for reverse arc ids")
	}
	if err := ValidateID("pe1.ams:ge-0/0/1"); err != nil {
		t.Errorf("Expected interface-style id to pass, got %v", err)
	}
}

func TestVar(t *testing.T) {
	if err := Var("maxPaths", 0, "gte=1"); err == nil || !strings.Contains(err.Error(), "maxPaths") {
		t.Errorf("Expected maxPaths error, got %v", err)
	}
	if err := Var("maxPaths", 5, "gte=1"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestConfigValidator_CollectsAll(t *testing.T) {
	cv := NewConfigValidator("Config")
	cv.Required("Name", "").
		Positive("Workers", 0).
		RangeInt("MaxPaths", 500, 1, 100).
		RangeFloat("Threshold", 1.5, 0, 1).
		MinDuration("Timeout", time.Millisecond, time.Second).
		OneOf("Model", "gravity", []string{"uniform", "population"})

	if got := len(cv.Errors()); got != 6 {
		t.Fatalf("Expected 6 errors, got %d: %v", got, cv.Errors())
	}
	err := cv.Validate()
	if err == nil || !strings.Contains(err.Error(), "Config.Workers") {
		t.Errorf("Expected joined error mentioning Config.Workers, got %v", err)
	}
}

func TestConfigValidator_WhenAndCustom(t *testing.T) {
	cv := NewConfigValidator("Store")
	cv.When(false, func(v *ConfigValidator) { v.Required("DSN", "") })
	if cv.HasErrors() {
		t.Fatal("When(false) must not apply validations")
	}
	cv.When(true, func(v *ConfigValidator) { v.Required("DSN", "") })
	cv.Custom("Bucket", func() error { return nil })
	if len(cv.Errors()) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(cv.Errors()))
	}
}

func TestDefaultOr(t *testing.T) {
	if DefaultOr(0, 20) != 20 {
		t.Error("Expected default for zero value")
	}
	if DefaultOr("x", "y") != "x" {
		t.Error("Expected value when non-zero")
	}
}
