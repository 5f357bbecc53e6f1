// Package util provides small shared helpers for the monitor.
package util

import (
	"fmt"
	"strings"
	"time"
)

// FormatProviderExpiry converts a raw YYYY-MM-DD expiry into the chain
// provider's DDMMMYY convention, e.g. "2026-02-05" -> "05FEB26".
// Values already in another form are passed through unchanged so callers
// can hand over pre-formatted expiries.
func FormatProviderExpiry(expiry string) string {
	t, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return expiry
	}
	return strings.ToUpper(t.Format("02Jan06"))
}

// ParseProviderExpiry is the inverse of FormatProviderExpiry; it accepts
// either convention and returns the YYYY-MM-DD form.
func ParseProviderExpiry(expiry string) (string, error) {
	if t, err := time.Parse("2006-01-02", expiry); err == nil {
		return t.Format("2006-01-02"), nil
	}
	if t, err := time.Parse("02Jan06", capitalize(expiry)); err == nil {
		return t.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("unrecognized expiry format: %q", expiry)
}

// capitalize normalizes DDMMMYY month abbreviations for time.Parse,
// which expects "Feb" rather than "FEB".
func capitalize(s string) string {
	if len(s) != 7 {
		return s
	}
	return s[:2] + strings.ToUpper(s[2:3]) + strings.ToLower(s[3:5]) + s[5:]
}
