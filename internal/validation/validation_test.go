package validation

import (
	"testing"
)

func TestIsValidOrderID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"ORD-2025-0001", true},
		{"cod_123", true},
		{"a", true},
		{"ABC123", true},

		// Invalid cases
		{"", false},
		{"-leading-dash", false},
		{"_leading_underscore", false},
		{"has space", false},
		{"has/slash", false},
		{"ord;drop table orders", false},
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false}, // 65 chars
	}

	for _, tc := range tests {
		result := IsValidOrderID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidOrderID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("name", "Amine"),
		ValidOrderID("order_id", "ORD-2025-0001"),
		PositiveValue("value", 4500),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("name", ""),
		ValidOrderID("order_id", "bad id"),
		PositiveValue("value", 0),
	)
	if len(errors) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(errors))
	}
}

func TestPositiveValue(t *testing.T) {
	if err := PositiveValue("value", 0.01)(); err != nil {
		t.Error("Expected no error for positive value")
	}
	if err := PositiveValue("value", 0)(); err == nil {
		t.Error("Expected error for zero value")
	}
	if err := PositiveValue("value", -5)(); err == nil {
		t.Error("Expected error for negative value")
	}
}

func TestMaxLength(t *testing.T) {
	// Under limit
	err := MaxLength("field", "hello", 10)()
	if err != nil {
		t.Error("Expected no error for string under limit")
	}

	// At limit
	err = MaxLength("field", "hello", 5)()
	if err != nil {
		t.Error("Expected no error for string at limit")
	}

	// Over limit
	err = MaxLength("field", "hello world", 5)()
	if err == nil {
		t.Error("Expected error for string over limit")
	}
}
