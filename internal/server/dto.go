package server

import (
	"time"

	"FreightTracker/internal/domain"
	"FreightTracker/internal/ports"
	"FreightTracker/internal/usecase"
)

// AttemptResponse is one adapter invocation in API payloads.
type AttemptResponse struct {
	ID         string    `json:"id"`
	Adapter    string    `json:"adapter" example:"hmm"`
	Outcome    string    `json:"outcome" enum:"matched,empty,timeout,data_error,error,session_error"`
	Error      string    `json:"error,omitempty"`
	Artifact   string    `json:"artifact,omitempty" doc:"Diagnostic artifact reference captured on timeout"`
	Events     int       `json:"events"`
	DurationMS int64     `json:"durationMs"`
	StartedAt  time.Time `json:"startedAt"`
}

// TrackResponse is the result of a live multi-source lookup.
type TrackResponse struct {
	TrackingNumber string                 `json:"trackingNumber" example:"HDMU1234567"`
	Adapter        string                 `json:"adapter"`
	Record         domain.CanonicalRecord `json:"record"`
	Attempts       []AttemptResponse      `json:"attempts"`
	ResolvedAt     time.Time              `json:"resolvedAt"`
}

// RecordResponse is the latest stored record with recent attempt history.
type RecordResponse struct {
	TrackingNumber string                 `json:"trackingNumber"`
	Adapter        string                 `json:"adapter"`
	Record         domain.CanonicalRecord `json:"record"`
	ResolvedAt     time.Time              `json:"resolvedAt"`
	Attempts       []AttemptResponse      `json:"attempts"`
}

// EventRequest is a raw carrier event posted for offline resolution.
type EventRequest struct {
	Description string    `json:"description" example:"Loaded on vessel"`
	Location    string    `json:"location" example:"BUSAN (KRPUS)"`
	Timestamp   time.Time `json:"timestamp"`
	Qualifier   string    `json:"qualifier,omitempty" doc:"actual, estimated or empty to infer from the reference time"`
}

// PortRequest names a port the way the carrier printed it.
type PortRequest struct {
	Name    string `json:"name,omitempty" example:"Busan"`
	RawCode string `json:"rawCode,omitempty" example:"KRPUS"`
}

// ResolveRequest runs the resolution engine on caller-supplied events.
type ResolveRequest struct {
	Events        []EventRequest `json:"events"`
	Pol           PortRequest    `json:"pol"`
	Pod           PortRequest    `json:"pod"`
	ReferenceTime *time.Time     `json:"referenceTime,omitempty" doc:"Defaults to the server clock"`
	ScheduledEtd  string         `json:"scheduledEtd,omitempty" example:"01/03/2025"`
	ScheduledEta  string         `json:"scheduledEta,omitempty" example:"20/03/2025"`
	BookingNo     string         `json:"bookingNo,omitempty"`
	BlNumber      string         `json:"blNumber,omitempty"`
	BookingStatus string         `json:"bookingStatus,omitempty"`
}

func (r ResolveRequest) shipment() domain.Shipment {
	events := make([]domain.Event, 0, len(r.Events))
	for _, e := range r.Events {
		events = append(events, domain.Event{
			Description: e.Description,
			Location:    e.Location,
			Timestamp:   e.Timestamp,
			Qualifier:   domain.ParseQualifier(e.Qualifier),
		})
	}
	return domain.Shipment{
		BookingNo:     r.BookingNo,
		BlNumber:      r.BlNumber,
		BookingStatus: r.BookingStatus,
		Pol:           domain.PortRef{Name: r.Pol.Name, RawCode: r.Pol.RawCode},
		Pod:           domain.PortRef{Name: r.Pod.Name, RawCode: r.Pod.RawCode},
		ScheduledEtd:  r.ScheduledEtd,
		ScheduledEta:  r.ScheduledEta,
		Events:        events,
	}
}

func mapAttempts(items []usecase.Attempt) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(items))
	for _, a := range items {
		out = append(out, AttemptResponse{
			ID:         a.ID,
			Adapter:    a.Adapter,
			Outcome:    a.Outcome,
			Error:      a.Err,
			Artifact:   a.Artifact,
			Events:     a.Events,
			DurationMS: a.Duration.Milliseconds(),
			StartedAt:  a.StartedAt,
		})
	}
	return out
}

func mapStoredAttempts(items []ports.AttemptRecord) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(items))
	for _, a := range items {
		out = append(out, AttemptResponse{
			ID:         a.ID,
			Adapter:    a.Adapter,
			Outcome:    a.Outcome,
			Error:      a.Error,
			Artifact:   a.Artifact,
			Events:     a.Events,
			DurationMS: a.Duration.Milliseconds(),
			StartedAt:  a.StartedAt,
		})
	}
	return out
}
