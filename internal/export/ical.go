// Package export serializes the user's RSVP'd events into an iCalendar
// feed so they can be pulled into a real calendar client.
package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
)

// defaultDuration pads events into a usable calendar block; the backend
// stores a start timestamp only.
const defaultDuration = 2 * time.Hour

// Calendar builds an iCalendar document from the RSVP buckets. Going and
// maybe events become normal entries (maybe as TENTATIVE); declined events
// are included as CANCELLED so a re-import clears them client-side.
// hostname scopes the UIDs, typically the backend host.
func Calendar(buckets model.RSVPBuckets, hostname string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//Event Management Platform//eventfront//EN")

	add := func(ev model.Event, status ical.ObjectStatus) {
		entry := cal.AddEvent(fmt.Sprintf("event-%d@%s", ev.ID, hostname))
		entry.SetDtStampTime(time.Now().UTC())
		entry.SetStartAt(ev.Date)
		entry.SetEndAt(ev.Date.Add(defaultDuration))
		entry.SetSummary(ev.Title)
		if ev.Location != "" {
			entry.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			entry.SetDescription(ev.Description)
		}
		entry.SetStatus(status)
	}

	for _, ev := range buckets.Going {
		add(ev, ical.ObjectStatusConfirmed)
	}
	for _, ev := range buckets.Maybe {
		add(ev, ical.ObjectStatusTentative)
	}
	for _, ev := range buckets.NotGoing {
		add(ev, ical.ObjectStatusCancelled)
	}

	return cal
}
