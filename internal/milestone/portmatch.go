package milestone

import (
	"strings"

	"FreightTracker/internal/domain"
)

// ExtractCode reduces a raw location to the text used for port comparison: the parenthesized part
// when present ("HAIPHONG (VNHPH)" -> "vnhph"), otherwise the whole string, lower-cased.
func ExtractCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if open := strings.Index(raw, "("); open >= 0 {
		if end := strings.Index(raw[open+1:], ")"); end >= 0 {
			if inner := strings.TrimSpace(raw[open+1 : open+1+end]); inner != "" {
				return strings.ToLower(inner)
			}
		}
	}
	return strings.ToLower(raw)
}

// refCode is the comparison code of a reference port: its raw code, or its name when no code is known.
func refCode(ref domain.PortRef) string {
	if code := ExtractCode(ref.RawCode); code != "" {
		return code
	}
	return ExtractCode(ref.Name)
}

// Matches reports whether rawLocation denotes ref. Containment is tried in both directions because
// carriers alternate between terminal names and port names. A ref without a code never matches.
func Matches(rawLocation string, ref domain.PortRef) bool {
	want := refCode(ref)
	if want == "" {
		return false
	}
	got := ExtractCode(rawLocation)
	if got == "" {
		return false
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}
