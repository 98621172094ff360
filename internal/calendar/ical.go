// Package calendar renders a listing's reserved dates as an iCal feed so
// hosts can block the same nights on other booking sites.
package calendar

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rental-marketplace/backend/internal/storage/models"
)

const (
	dateFormat     = "20060102"
	dateTimeFormat = "20060102T150405Z"
	productID      = "-//rental-marketplace//reservations//EN"
)

// Event is one blocked date range. End is the last reserved night,
// inclusive.
type Event struct {
	UID     string
	Summary string
	Start   models.Date
	End     models.Date
}

// ReservationEvents turns the reservations of a listing into feed events.
// Failed reservations hold no dates and are skipped.
func ReservationEvents(listing *models.Listing, reservations []models.Reservation) []Event {
	events := make([]Event, 0, len(reservations))
	for _, r := range reservations {
		if r.Status == models.ReservationStatusFailed {
			continue
		}
		summary := "Reserved"
		if r.Status == models.ReservationStatusPending {
			summary = "Reserved (payment pending)"
		}
		events = append(events, Event{
			UID:     r.ID + "@" + listing.ID,
			Summary: summary,
			Start:   r.StartDate,
			End:     r.EndDate,
		})
	}
	return events
}

// Write renders events as a VCALENDAR named name. DTEND is exclusive in
// iCal all-day events, so it is written as the day after End.
func Write(w io.Writer, name string, events []Event, now time.Time) error {
	bw := bufio.NewWriter(w)
	stamp := now.UTC().Format(dateTimeFormat)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + productID,
		"CALSCALE:GREGORIAN",
		"X-WR-CALNAME:" + escape(name),
	}
	for _, e := range events {
		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+escape(e.UID),
			"DTSTAMP:"+stamp,
			"DTSTART;VALUE=DATE:"+e.Start.Format(dateFormat),
			"DTEND;VALUE=DATE:"+e.End.AddDate(0, 0, 1).Format(dateFormat),
			"SUMMARY:"+escape(e.Summary),
			"TRANSP:OPAQUE",
			"END:VEVENT",
		)
	}
	lines = append(lines, "END:VCALENDAR")

	for _, line := range lines {
		if _, err := bw.WriteString(fold(line) + "\r\n"); err != nil {
			return fmt.Errorf("writing calendar: %w", err)
		}
	}
	return bw.Flush()
}

// escape applies iCal TEXT escaping.
func escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// fold splits lines longer than 75 octets into continuation lines.
func fold(line string) string {
	const limit = 75
	if len(line) <= limit {
		return line
	}

	var b strings.Builder
	width := 0
	for _, r := range line {
		n := len(string(r))
		if width+n > limit {
			b.WriteString("\r\n ")
			width = 1
		}
		b.WriteRune(r)
		width += n
	}
	return b.String()
}
