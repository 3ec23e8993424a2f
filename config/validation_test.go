package config

import (
	"errors"
	"testing"

	errorskg "github.com/sweetpotato0/agentgate/errors"
)

func TestValidatorRequireNonEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "non-empty value", value: "valid", wantError: false},
		{name: "empty value", value: "", wantError: true},
		{name: "whitespace only", value: "  ", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequireNonEmpty("test_field", tt.value)
			if got := v.HasErrors(); got != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestValidatorRequirePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{name: "positive value", value: 10, wantError: false},
		{name: "zero value", value: 0, wantError: true},
		{name: "negative value", value: -5, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequirePositive("field", tt.value)
			if got := v.HasErrors(); got != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestValidatorValidatePort(t *testing.T) {
	tests := []struct {
		port      int
		wantError bool
	}{
		{port: 3000, wantError: false},
		{port: 1, wantError: false},
		{port: 65535, wantError: false},
		{port: 0, wantError: true},
		{port: 70000, wantError: true},
	}

	for _, tt := range tests {
		v := NewValidator()
		v.ValidatePort("PORT", tt.port)
		if got := v.HasErrors(); got != tt.wantError {
			t.Errorf("ValidatePort(%d) HasErrors() = %v, want %v", tt.port, got, tt.wantError)
		}
	}
}

func TestValidatorValidateFloatRange(t *testing.T) {
	v := NewValidator()
	v.ValidateFloatRange("TEMPERATURE", 0.7, 0, 2)
	if v.HasErrors() {
		t.Fatalf("unexpected errors: %v", v.Errors())
	}
	v.ValidateFloatRange("TEMPERATURE", 2.5, 0, 2)
	if !v.HasErrors() {
		t.Fatal("expected out-of-range temperature to fail")
	}
}

func TestValidatorValidateOneOf(t *testing.T) {
	v := NewValidator()
	v.ValidateOneOf("STATE_BACKEND", "redis", "file", "redis")
	if v.HasErrors() {
		t.Fatalf("unexpected errors: %v", v.Errors())
	}
	v.ValidateOneOf("STATE_BACKEND", "etcd", "file", "redis")
	if len(v.Errors()) != 1 {
		t.Fatalf("expected 1 error, got %d", len(v.Errors()))
	}
}

func TestValidatorMultipleErrors(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("A", "").
		RequirePositive("B", 0).
		ValidateDBNumber("C", 16)

	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(v.Errors()))
	}
	fields := v.Fields()
	if fields[0] != "A" || fields[1] != "B" || fields[2] != "C" {
		t.Errorf("unexpected field order: %v", fields)
	}

	err := v.Error()
	if err == nil {
		t.Fatal("expected combined error")
	}
	if !errors.Is(err, errorskg.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidatorNoErrors(t *testing.T) {
	if err := NewValidator().RequireNonEmpty("A", "x").Error(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
