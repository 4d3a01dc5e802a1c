package model

import (
	"fmt"
	"math"
	"time"
)

// Role is the backend-assigned user role string. The backend forces every
// self-registered account to "guest"; the other roles are assigned
// server-side.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePremium Role = "premium_user"
	RoleGuest   Role = "guest"
)

// Known reports whether r is one of the roles the backend issues.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RolePremium, RoleGuest:
		return true
	}
	return false
}

// Status is an RSVP response. Each (user, event) pair holds at most one
// status at a time; setting a new status is a transition, not an addition.
type Status string

const (
	StatusGoing    Status = "going"
	StatusMaybe    Status = "maybe"
	StatusNotGoing Status = "not_going"
)

// ParseStatus validates a status string coming from form input or the wire.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusGoing, StatusMaybe, StatusNotGoing:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid RSVP status %q", s)
}

// Event is a read-only, possibly-stale copy of a backend event. Field
// names mirror the backend serializer.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Image       string    `json:"image"`
	PremiumOnly bool      `json:"premium_only"`
	HostedBy    int64     `json:"hosted_by"`
}

// PageSize is the fixed page size the dashboards request. The backend
// paginator defaults to the same value.
const PageSize = 6

// EventPage is one fetched page of the event listing.
type EventPage struct {
	Items      []Event
	PageNumber int
	TotalCount int
}

// TotalPages derives the page count from the server-reported total.
func (p EventPage) TotalPages() int {
	if p.TotalCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(p.TotalCount) / float64(PageSize)))
}

// RSVPBuckets is the response shape of the my-RSVP-events endpoint: the
// user's events grouped by status. An event appears in at most one bucket.
type RSVPBuckets struct {
	Going    []Event `json:"going"`
	Maybe    []Event `json:"maybe"`
	NotGoing []Event `json:"not_going"`
}

// EventDetail is the detail-endpoint response: the event plus the caller's
// relationship to it.
type EventDetail struct {
	Event      Event   `json:"event"`
	IsAdmin    bool    `json:"is_admin"`
	IsRSVPed   bool    `json:"is_rsvped"`
	RSVPStatus *Status `json:"rsvp_status"`
}

// Guest is one attendee row from the guest-list endpoint. The backend
// emits ORM-joined keys verbatim.
type Guest struct {
	UserID   int64  `json:"user__id"`
	Username string `json:"user__username"`
	Email    string `json:"user__email"`
}

// GuestList groups guests by their RSVP status.
type GuestList struct {
	Going    []Guest `json:"going"`
	Maybe    []Guest `json:"maybe"`
	NotGoing []Guest `json:"not_going"`
}
