package utils

import (
	"testing"
)

func TestSanitizeDeviceName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"LowercaseSimple", "MacBook", "macbook"},
		{"SpacesToHyphens", "My Device", "my-device"},
		{"RemoveSpecialChars", "My@Device#123!", "mydevice123"},
		{"RemoveConsecutiveHyphens", "my--device", "my-device"},
		{"TrimHyphens", "-my-device-", "my-device"},
		{"EmptyToDefault", "", "device"},
		{"OnlySpecialChars", "@#$%", "device"},
		{"PreserveUnderscores", "my_device", "my_device"},
		{"ComplexName", "  My MacBook Pro! #1  ", "my-macbook-pro-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := SanitizeDeviceName(tc.input)
			if result != tc.expected {
				t.Errorf("SanitizeDeviceName(%q) = %q, expected %q", tc.input, result, tc.expected)
			}
		})
	}
}

func TestDeviceName(t *testing.T) {
	name := DeviceName()
	if name == "" {
		t.Fatal("Expected non-empty device name")
	}
	if name != SanitizeDeviceName(name) {
		t.Errorf("Expected device name to already be sanitised, got %q", name)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{11, "11 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}

	for _, tc := range tests {
		if got := FormatSize(tc.input); got != tc.expected {
			t.Errorf("FormatSize(%d) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("Expected abc, got %q", got)
	}
	if got := ShortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("Expected 01234567, got %q", got)
	}
}
