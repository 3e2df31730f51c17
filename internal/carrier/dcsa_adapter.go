package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"FreightTracker/internal/domain"
	"FreightTracker/internal/ports"
	"FreightTracker/internal/timeparse"
)

// DCSAAdapter reads a JSON track-and-trace feed shaped after the DCSA event model.
type DCSAAdapter struct {
	name   string
	fetch  *fetcher
	times  *timeparse.Parser
	logger *slog.Logger
}

var _ Adapter = (*DCSAAdapter)(nil)

type dcsaLocation struct {
	LocationName   string `json:"locationName"`
	UNLocationCode string `json:"UNLocationCode"`
}

func (l dcsaLocation) text() string {
	name := strings.TrimSpace(l.LocationName)
	code := strings.TrimSpace(l.UNLocationCode)
	switch {
	case name != "" && code != "":
		return fmt.Sprintf("%s (%s)", name, code)
	case code != "":
		return code
	default:
		return name
	}
}

func (l dcsaLocation) port() domain.PortRef {
	return domain.PortRef{Name: strings.TrimSpace(l.LocationName), RawCode: strings.TrimSpace(l.UNLocationCode)}
}

type dcsaEvent struct {
	EventType              string       `json:"eventType"`
	EventClassifierCode    string       `json:"eventClassifierCode"`
	EventDateTime          string       `json:"eventDateTime"`
	TransportEventTypeCode string       `json:"transportEventTypeCode"`
	EquipmentEventTypeCode string       `json:"equipmentEventTypeCode"`
	IsTransshipmentMove    bool         `json:"isTransshipmentMove"`
	Description            string       `json:"description"`
	EventLocation          dcsaLocation `json:"eventLocation"`
	TransportCall          struct {
		Location dcsaLocation `json:"location"`
	} `json:"transportCall"`
}

type dcsaShipment struct {
	CarrierBookingReference    string       `json:"carrierBookingReference"`
	TransportDocumentReference string       `json:"transportDocumentReference"`
	BookingStatus              string       `json:"bookingStatus"`
	PortOfLoading              dcsaLocation `json:"portOfLoading"`
	PortOfDischarge            dcsaLocation `json:"portOfDischarge"`
	PlannedDepartureDate       string       `json:"plannedDepartureDate"`
	PlannedArrivalDate         string       `json:"plannedArrivalDate"`
	Events                     []dcsaEvent  `json:"events"`
}

// Name identifies the adapter inside the registry.
func (a *DCSAAdapter) Name() string {
	return a.name
}

// Scrape fetches the JSON feed and maps its events onto domain events.
func (a *DCSAAdapter) Scrape(ctx context.Context, sess ports.Session, trackingNumber string) (domain.Shipment, error) {
	empty := domain.Shipment{TrackingNumber: trackingNumber}

	body, err := a.fetch.get(ctx, sess, trackingNumber, "application/json")
	if errors.Is(err, errNoRecord) {
		return empty, nil
	}
	if err != nil {
		return empty, err
	}

	var payload dcsaShipment
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		return empty, &domain.DataError{Adapter: a.name, Err: fmt.Errorf("decode response: %w", err)}
	}

	return a.toShipment(payload, trackingNumber)
}

func (a *DCSAAdapter) toShipment(p dcsaShipment, trackingNumber string) (domain.Shipment, error) {
	s := domain.Shipment{
		TrackingNumber: trackingNumber,
		BookingNo:      p.CarrierBookingReference,
		BlNumber:       p.TransportDocumentReference,
		BookingStatus:  p.BookingStatus,
		Pol:            p.PortOfLoading.port(),
		Pod:            p.PortOfDischarge.port(),
		ScheduledEtd:   a.canonicalDate(p.PlannedDepartureDate),
		ScheduledEta:   a.canonicalDate(p.PlannedArrivalDate),
	}

	if len(p.Events) > 0 && s.Pol.Label() == "" && s.Pod.Label() == "" {
		return domain.Shipment{TrackingNumber: trackingNumber}, &domain.DataError{
			Adapter: a.name,
			Err:     errors.New("events without portOfLoading or portOfDischarge"),
		}
	}

	for i, e := range p.Events {
		ts, err := a.times.Parse(e.EventDateTime)
		if err != nil {
			a.debug("drop event", "index", i, "error", err)
			continue
		}

		location := e.TransportCall.Location.text()
		if location == "" {
			location = e.EventLocation.text()
		}

		s.Events = append(s.Events, domain.Event{
			Description: describe(e),
			Location:    location,
			Timestamp:   ts,
			Qualifier:   domain.ParseQualifier(e.EventClassifierCode),
		})
	}

	return s, nil
}

// describe renders DCSA event codes as the free-text descriptions carriers print.
func describe(e dcsaEvent) string {
	var desc string
	switch strings.ToUpper(e.EventType) {
	case "TRANSPORT":
		switch strings.ToUpper(e.TransportEventTypeCode) {
		case "ARRI":
			desc = "Vessel arrival"
		case "DEPA":
			desc = "Vessel departure"
		}
	case "EQUIPMENT":
		switch strings.ToUpper(e.EquipmentEventTypeCode) {
		case "LOAD":
			desc = "Loaded on vessel"
		case "DISC":
			desc = "Discharged from vessel"
		case "GTIN":
			desc = "Gate in"
		case "GTOT":
			desc = "Gate out"
		case "STUF":
			desc = "Stuffed"
		case "STRP":
			desc = "Stripped"
		}
	}

	if desc == "" {
		desc = strings.TrimSpace(e.Description)
	}
	if e.IsTransshipmentMove && desc != "" {
		desc = "Transshipment " + strings.ToLower(desc)
	}
	return desc
}

func (a *DCSAAdapter) canonicalDate(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	t, err := a.times.Parse(raw)
	if err != nil {
		return ""
	}
	return domain.FormatDate(t)
}

func (a *DCSAAdapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
