package milestone

import (
	"testing"

	"FreightTracker/internal/domain"
)

func TestExtractCode(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"HAIPHONG (VNHPH)":  "vnhph",
		"KIT(한국국제터미널)":      "한국국제터미널",
		"  Busan New Port ": "busan new port",
		"Odd ()":            "odd ()",
		"":                  "",
	}

	for raw, want := range cases {
		if got := ExtractCode(raw); got != want {
			t.Fatalf("ExtractCode(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		location string
		ref      domain.PortRef
		want     bool
	}{
		{"locode in parentheses", "HAIPHONG (VNHPH)", domain.PortRef{Name: "Haiphong", RawCode: "VNHPH"}, true},
		{"terminal name in parentheses", "KIT(한국국제터미널)", domain.PortRef{RawCode: "한국국제터미널"}, true},
		{"ref contained in location", "Busan New Port", domain.PortRef{Name: "BUSAN"}, true},
		{"location contained in ref", "BUSAN", domain.PortRef{Name: "Busan New Port"}, true},
		{"ref code with parentheses", "Cat Lai (VNSGN)", domain.PortRef{RawCode: "Ho Chi Minh (VNSGN)"}, true},
		{"different port", "SINGAPORE (SGSIN)", domain.PortRef{Name: "Haiphong", RawCode: "VNHPH"}, false},
		{"empty ref never matches", "BUSAN", domain.PortRef{}, false},
		{"blank ref never matches", "BUSAN", domain.PortRef{Name: "  ", RawCode: " "}, false},
		{"empty location never matches", "", domain.PortRef{Name: "Busan"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Matches(tt.location, tt.ref); got != tt.want {
				t.Fatalf("Matches(%q, %+v) = %v, want %v", tt.location, tt.ref, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	pol := domain.PortRef{Name: "Busan", RawCode: "KRPUS"}
	pod := domain.PortRef{Name: "Haiphong", RawCode: "VNHPH"}

	tests := []struct {
		desc     string
		location string
		want     domain.Category
	}{
		{"Vessel departure", "BUSAN (KRPUS)", domain.CategoryDeparture},
		{"Loaded on vessel", "BUSAN (KRPUS)", domain.CategoryDeparture},
		{"LOAD FULL", "BUSAN (KRPUS)", domain.CategoryDeparture},
		{"Vessel arrival", "HAIPHONG (VNHPH)", domain.CategoryArrival},
		{"Discharge full", "HAIPHONG (VNHPH)", domain.CategoryArrival},
		{"Discharged from vessel", "SINGAPORE (SGSIN)", domain.CategoryTransitDischarge},
		{"Loaded on outbound vessel", "SINGAPORE (SGSIN)", domain.CategoryTransitLoad},
		{"T/S vessel arrival", "HAIPHONG (VNHPH)", domain.CategoryTransitDischarge},
		{"Discharged (T/S)", "HAIPHONG (VNHPH)", domain.CategoryTransitDischarge},
		{"Arrival at port/station", "HAIPHONG (VNHPH)", domain.CategoryArrival},
		{"Departure from dist/stn yard", "BUSAN (KRPUS)", domain.CategoryDeparture},
		{"Transhipment departure", "BUSAN (KRPUS)", domain.CategoryTransitLoad},
		{"Gate in empty", "BUSAN (KRPUS)", domain.CategoryUnknown},
	}

	for _, tt := range tests {
		got := Classify(domain.Event{Description: tt.desc, Location: tt.location}, pol, pod)
		if got != tt.want {
			t.Fatalf("Classify(%q @ %q) = %s, want %s", tt.desc, tt.location, got, tt.want)
		}
	}
}
