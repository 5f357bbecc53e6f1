package util

import "testing"

func TestFormatProviderExpiry(t *testing.T) {
	tests := []struct {
		name     string
		expiry   string
		expected string
	}{
		{
			name:     "iso date",
			expiry:   "2026-02-05",
			expected: "05FEB26",
		},
		{
			name:     "single digit day padded",
			expiry:   "2025-12-02",
			expected: "02DEC25",
		},
		{
			name:     "already provider format passes through",
			expiry:   "05FEB26",
			expected: "05FEB26",
		},
		{
			name:     "garbage passes through",
			expiry:   "next-week",
			expected: "next-week",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatProviderExpiry(tt.expiry); got != tt.expected {
				t.Errorf("FormatProviderExpiry(%q) = %q, expected %q", tt.expiry, got, tt.expected)
			}
		})
	}
}

func TestParseProviderExpiry(t *testing.T) {
	tests := []struct {
		name     string
		expiry   string
		expected string
		wantErr  bool
	}{
		{
			name:     "iso date",
			expiry:   "2026-02-05",
			expected: "2026-02-05",
		},
		{
			name:     "provider format",
			expiry:   "05FEB26",
			expected: "2026-02-05",
		},
		{
			name:    "garbage rejected",
			expiry:  "soon",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProviderExpiry(tt.expiry)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseProviderExpiry(%q) expected error, got %q", tt.expiry, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProviderExpiry(%q) unexpected error: %v", tt.expiry, err)
			}
			if got != tt.expected {
				t.Errorf("ParseProviderExpiry(%q) = %q, expected %q", tt.expiry, got, tt.expected)
			}
		})
	}
}
