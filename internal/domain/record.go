package domain

import "time"

// DateLayout is the canonical rendering of every date field in a CanonicalRecord.
const DateLayout = "02/01/2006"

// CanonicalRecord is the carrier-agnostic tracking result. Empty string means unknown.
type CanonicalRecord struct {
	BookingNo     string `json:"BookingNo"`
	BlNumber      string `json:"BlNumber"`
	BookingStatus string `json:"BookingStatus"`
	Pol           string `json:"Pol"`
	Pod           string `json:"Pod"`
	Etd           string `json:"Etd"`
	Atd           string `json:"Atd"`
	Eta           string `json:"Eta"`
	Ata           string `json:"Ata"`
	TransitPort   string `json:"TransitPort"`
	EtdTransit    string `json:"EtdTransit"`
	AtdTransit    string `json:"AtdTransit"`
	EtaTransit    string `json:"EtaTransit"`
	AtaTransit    string `json:"AtaTransit"`
}

// Field is a single named value of a record, in serialization order.
type Field struct {
	Name  string
	Value string
}

// Fields lists the record in its fixed serialization order.
func (r CanonicalRecord) Fields() []Field {
	return []Field{
		{"BookingNo", r.BookingNo},
		{"BlNumber", r.BlNumber},
		{"BookingStatus", r.BookingStatus},
		{"Pol", r.Pol},
		{"Pod", r.Pod},
		{"Etd", r.Etd},
		{"Atd", r.Atd},
		{"Eta", r.Eta},
		{"Ata", r.Ata},
		{"TransitPort", r.TransitPort},
		{"EtdTransit", r.EtdTransit},
		{"AtdTransit", r.AtdTransit},
		{"EtaTransit", r.EtaTransit},
		{"AtaTransit", r.AtaTransit},
	}
}

// Diff returns the fields whose values differ between r and other.
func (r CanonicalRecord) Diff(other CanonicalRecord) []Field {
	mine := r.Fields()
	theirs := other.Fields()

	var changed []Field
	for i := range mine {
		if mine[i].Value != theirs[i].Value {
			changed = append(changed, mine[i])
		}
	}
	return changed
}

// FormatDate renders t in the canonical DD/MM/YYYY form, using t's own location.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
