// Package milestone turns an unordered bag of carrier events into the canonical tracking timeline.
//
// Everything in this package is pure: the same events, ports and reference time always produce the
// same record, and no field ever fails harder than being left empty.
package milestone

import (
	"sort"
	"strings"
	"time"

	"FreightTracker/internal/domain"
)

// observation is an event after qualifier inference and classification.
type observation struct {
	event     domain.Event
	qualifier domain.Qualifier
	category  domain.Category
}

func (o observation) date() string {
	return domain.FormatDate(o.event.Timestamp)
}

// Resolve derives the canonical record from raw events. scheduledEtd and scheduledEta are the
// values a carrier's schedule page reported; estimated departure/arrival events supersede them.
func Resolve(events []domain.Event, pol, pod domain.PortRef, referenceTime time.Time, scheduledEtd, scheduledEta string) domain.CanonicalRecord {
	record := domain.CanonicalRecord{
		Etd: canonicalDate(scheduledEtd),
		Eta: canonicalDate(scheduledEta),
	}
	// no events means nothing was found; ports stay unknown
	if len(events) > 0 {
		record.Pol = pol.Label()
		record.Pod = pod.Label()
	}

	timeline := buildTimeline(events, pol, pod, referenceTime)

	if o, ok := firstMatching(timeline, domain.CategoryDeparture, pol); ok {
		switch o.qualifier {
		case domain.QualifierActual:
			record.Atd = o.date()
		case domain.QualifierEstimated:
			record.Etd = o.date()
		}
	}

	if o, ok := firstMatching(timeline, domain.CategoryArrival, pod); ok {
		switch o.qualifier {
		case domain.QualifierActual:
			record.Ata = o.date()
		case domain.QualifierEstimated:
			record.Eta = o.date()
		}
	}

	record.TransitPort = strings.Join(transitPorts(timeline, pol, pod), ", ")
	resolveTransitTiming(&record, timeline, referenceTime)

	return record
}

// ResolveShipment resolves an adapter result and carries its booking identifiers through.
func ResolveShipment(s domain.Shipment, referenceTime time.Time) domain.CanonicalRecord {
	record := Resolve(s.Events, s.Pol, s.Pod, referenceTime, s.ScheduledEtd, s.ScheduledEta)
	record.BookingNo = strings.TrimSpace(s.BookingNo)
	record.BlNumber = strings.TrimSpace(s.BlNumber)
	record.BookingStatus = strings.TrimSpace(s.BookingStatus)
	return record
}

// canonicalDate keeps a schedule value only when it is already DD/MM/YYYY.
func canonicalDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if _, err := time.Parse(domain.DateLayout, raw); err != nil {
		return ""
	}
	return raw
}

// buildTimeline sorts a copy of events chronologically (ties keep discovery order), then infers
// missing qualifiers against referenceTime and classifies each event.
func buildTimeline(events []domain.Event, pol, pod domain.PortRef, referenceTime time.Time) []observation {
	sorted := make([]domain.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	timeline := make([]observation, 0, len(sorted))
	for _, e := range sorted {
		timeline = append(timeline, observation{
			event:     e,
			qualifier: inferQualifier(e, referenceTime),
			category:  Classify(e, pol, pod),
		})
	}
	return timeline
}

// inferQualifier keeps an explicit tag and otherwise compares the timestamp to referenceTime.
func inferQualifier(e domain.Event, referenceTime time.Time) domain.Qualifier {
	if e.Qualifier != domain.QualifierUnknown {
		return e.Qualifier
	}
	if e.Timestamp.After(referenceTime) {
		return domain.QualifierEstimated
	}
	return domain.QualifierActual
}

func firstMatching(timeline []observation, category domain.Category, port domain.PortRef) (observation, bool) {
	for _, o := range timeline {
		if o.category == category && Matches(o.event.Location, port) {
			return o, true
		}
	}
	return observation{}, false
}

// transitPorts lists distinct transit locations in order of first appearance.
func transitPorts(timeline []observation, pol, pod domain.PortRef) []string {
	var (
		ports []string
		seen  = map[string]struct{}{}
	)
	for _, o := range timeline {
		if o.category != domain.CategoryTransitDischarge && o.category != domain.CategoryTransitLoad {
			continue
		}
		if Matches(o.event.Location, pol) || Matches(o.event.Location, pod) {
			continue
		}
		name := strings.TrimSpace(o.event.Location)
		key := ExtractCode(name)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ports = append(ports, name)
	}
	return ports
}

// resolveTransitTiming applies to all transit ports collectively. The whole timeline is scanned
// before deciding, so an actual discharge always beats an estimated one.
func resolveTransitTiming(record *domain.CanonicalRecord, timeline []observation, referenceTime time.Time) {
	var (
		actualDischarge    string
		estimatedDischarge string
		actualLoad         string
		nextLoad           *observation
	)

	for i := range timeline {
		o := timeline[i]
		switch o.category {
		case domain.CategoryTransitDischarge:
			switch o.qualifier {
			case domain.QualifierActual:
				if actualDischarge == "" {
					actualDischarge = o.date()
				}
			case domain.QualifierEstimated:
				if estimatedDischarge == "" {
					estimatedDischarge = o.date()
				}
			}
		case domain.CategoryTransitLoad:
			switch o.qualifier {
			case domain.QualifierActual:
				actualLoad = o.date()
			case domain.QualifierEstimated:
				if !o.event.Timestamp.After(referenceTime) {
					continue
				}
				if nextLoad == nil || o.event.Timestamp.Before(nextLoad.event.Timestamp) {
					nextLoad = &timeline[i]
				}
			}
		}
	}

	if actualDischarge != "" {
		record.AtaTransit = actualDischarge
	} else {
		record.EtaTransit = estimatedDischarge
	}
	record.AtdTransit = actualLoad
	if nextLoad != nil {
		record.EtdTransit = nextLoad.date()
	}
}
