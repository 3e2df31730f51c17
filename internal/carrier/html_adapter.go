package carrier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"FreightTracker/internal/config"
	"FreightTracker/internal/domain"
	"FreightTracker/internal/ports"
	"FreightTracker/internal/timeparse"
)

// HTMLSelectors locate tracking data on a carrier's result page. Row-level selectors are
// evaluated relative to each element matched by Rows; the rest against the whole document.
type HTMLSelectors = config.HTMLSelectorConfig

// HTMLAdapter scrapes a server-rendered tracking page with goquery.
type HTMLAdapter struct {
	name      string
	fetch     *fetcher
	selectors HTMLSelectors
	times     *timeparse.Parser
	logger    *slog.Logger
}

var _ Adapter = (*HTMLAdapter)(nil)

// Name identifies the adapter inside the registry.
func (a *HTMLAdapter) Name() string {
	return a.name
}

// Scrape downloads the tracking page and extracts the shipment's ports and events.
func (a *HTMLAdapter) Scrape(ctx context.Context, sess ports.Session, trackingNumber string) (domain.Shipment, error) {
	empty := domain.Shipment{TrackingNumber: trackingNumber}

	body, err := a.fetch.get(ctx, sess, trackingNumber, "text/html")
	if errors.Is(err, errNoRecord) {
		return empty, nil
	}
	if err != nil {
		return empty, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return empty, &domain.DataError{Adapter: a.name, Err: fmt.Errorf("parse document: %w", err)}
	}

	return a.parseDocument(doc, trackingNumber)
}

func (a *HTMLAdapter) parseDocument(doc *goquery.Document, trackingNumber string) (domain.Shipment, error) {
	s := domain.Shipment{TrackingNumber: trackingNumber}
	sel := a.selectors

	if sel.NotFound != "" && doc.Find(sel.NotFound).Length() > 0 {
		a.debug("carrier reports unknown tracking number", "tracking", trackingNumber)
		return s, nil
	}

	rows := doc.Find(sel.Rows)
	if rows.Length() == 0 {
		return s, nil
	}

	s.Pol = portFromText(docText(doc, sel.Pol))
	s.Pod = portFromText(docText(doc, sel.Pod))
	if s.Pol.Label() == "" && s.Pod.Label() == "" {
		return domain.Shipment{TrackingNumber: trackingNumber}, &domain.DataError{
			Adapter: a.name,
			Err:     fmt.Errorf("%d event rows but no port of loading or discharge", rows.Length()),
		}
	}

	s.BookingNo = docText(doc, sel.BookingNo)
	s.BlNumber = docText(doc, sel.BlNumber)
	s.BookingStatus = docText(doc, sel.BookingStatus)
	s.ScheduledEtd = a.canonicalDate(docText(doc, sel.Etd))
	s.ScheduledEta = a.canonicalDate(docText(doc, sel.Eta))

	rows.Each(func(i int, row *goquery.Selection) {
		event, err := a.parseRow(row)
		if err != nil {
			a.debug("drop event row", "row", i, "error", err)
			return
		}
		s.Events = append(s.Events, event)
	})

	return s, nil
}

func (a *HTMLAdapter) parseRow(row *goquery.Selection) (domain.Event, error) {
	sel := a.selectors

	rawTime := rowText(row, sel.Timestamp)
	ts, err := a.times.Parse(rawTime)
	if err != nil {
		return domain.Event{}, err
	}

	event := domain.Event{
		Description: rowText(row, sel.Description),
		Location:    rowText(row, sel.Location),
		Timestamp:   ts,
	}
	if sel.Qualifier != "" {
		event.Qualifier = domain.ParseQualifier(rowText(row, sel.Qualifier))
	}
	return event, nil
}

func (a *HTMLAdapter) canonicalDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := a.times.Parse(raw)
	if err != nil {
		return ""
	}
	return domain.FormatDate(t)
}

func (a *HTMLAdapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func docText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return collapse(doc.Find(selector).First().Text())
}

func rowText(row *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapse(row.Find(selector).First().Text())
}
