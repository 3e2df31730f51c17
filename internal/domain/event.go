package domain

import (
	"strings"
	"time"
)

// Qualifier tells whether a carrier reported a milestone as already happened or as a forecast.
type Qualifier int

const (
	QualifierUnknown Qualifier = iota
	QualifierActual
	QualifierEstimated
)

// String renders the qualifier for logs and JSON payloads.
func (q Qualifier) String() string {
	switch q {
	case QualifierActual:
		return "actual"
	case QualifierEstimated:
		return "estimated"
	default:
		return "unknown"
	}
}

// ParseQualifier maps the tokens carriers print next to a date ("ACT", "Estimated", "E", ...).
func ParseQualifier(text string) Qualifier {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "a", "act", "actual", "actual time", "done", "completed":
		return QualifierActual
	case "e", "est", "estimated", "estimate", "pln", "planned", "expected", "eta", "etd", "forecast":
		return QualifierEstimated
	default:
		return QualifierUnknown
	}
}

// MarshalText keeps JSON payloads human readable.
func (q Qualifier) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText accepts anything ParseQualifier understands.
func (q *Qualifier) UnmarshalText(text []byte) error {
	*q = ParseQualifier(string(text))
	return nil
}

// Category is the classification of an event description relative to the shipment's ports.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryDeparture
	CategoryArrival
	CategoryTransitDischarge
	CategoryTransitLoad
)

func (c Category) String() string {
	switch c {
	case CategoryDeparture:
		return "departure"
	case CategoryArrival:
		return "arrival"
	case CategoryTransitDischarge:
		return "transit_discharge"
	case CategoryTransitLoad:
		return "transit_load"
	default:
		return "unknown"
	}
}

// Event is one raw milestone reported by a carrier source.
type Event struct {
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
	Qualifier   Qualifier `json:"qualifier"`
}

// PortRef identifies a port of loading or discharge as the carrier names it.
type PortRef struct {
	Name    string `json:"name"`
	RawCode string `json:"rawCode"`
}

// Label returns the display name of the port, falling back to the raw code.
func (p PortRef) Label() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return strings.TrimSpace(p.RawCode)
}

// Shipment is everything a carrier adapter extracted for one tracking number.
type Shipment struct {
	TrackingNumber string  `json:"trackingNumber"`
	BookingNo      string  `json:"bookingNo"`
	BlNumber       string  `json:"blNumber"`
	BookingStatus  string  `json:"bookingStatus"`
	Pol            PortRef `json:"pol"`
	Pod            PortRef `json:"pod"`
	ScheduledEtd   string  `json:"scheduledEtd"`
	ScheduledEta   string  `json:"scheduledEta"`
	Events         []Event `json:"events"`
}
