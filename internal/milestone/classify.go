package milestone

import (
	"regexp"
	"strings"

	"FreightTracker/internal/domain"
)

var (
	departureKeywords = []string{"departure", "departed", "loaded on", "load full"}
	arrivalKeywords   = []string{"arrival", "arrived", "discharged", "discharge full"}
	transitMarkers    = []string{"transhipment", "transshipment"}

	// "t/s" only counts as a standalone token, never inside words like "port/station".
	tsMarker = regexp.MustCompile(`(^|[^a-z])t/s([^a-z]|$)`)
)

// Classify places an event into a milestone category relative to the shipment's POL and POD.
// Arrival/departure events become transit events when they carry a transshipment marker or when
// their location is neither the POL nor the POD.
func Classify(e domain.Event, pol, pod domain.PortRef) domain.Category {
	desc := strings.ToLower(e.Description)

	departure := containsAny(desc, departureKeywords)
	arrival := !departure && containsAny(desc, arrivalKeywords)
	if !departure && !arrival {
		return domain.CategoryUnknown
	}

	transit := containsAny(desc, transitMarkers) || tsMarker.MatchString(desc) ||
		(!Matches(e.Location, pol) && !Matches(e.Location, pod))

	switch {
	case departure && transit:
		return domain.CategoryTransitLoad
	case departure:
		return domain.CategoryDeparture
	case transit:
		return domain.CategoryTransitDischarge
	default:
		return domain.CategoryArrival
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
