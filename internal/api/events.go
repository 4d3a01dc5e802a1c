package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
)

// ListQuery is the filter/page state sent to the event-listing endpoint.
type ListQuery struct {
	// Date filters on the event day, formatted YYYY-MM-DD. Empty means
	// no date filter.
	Date string
	// Location is a substring match on the event location.
	Location string
	// Page is 1-based.
	Page int
}

// ListEvents fetches one page of the event listing. The backend always
// pages; page_size is pinned to the dashboard card count.
func (c *Client) ListEvents(ctx context.Context, q ListQuery) (model.EventPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(model.PageSize))
	if q.Date != "" {
		params.Set("date", q.Date)
	}
	if q.Location != "" {
		params.Set("location", q.Location)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/api/events/?"+params.Encode(), nil, true)
	if err != nil {
		return model.EventPage{}, err
	}

	var res struct {
		Results []model.Event `json:"results"`
		Count   int           `json:"count"`
	}
	if err := c.do(req, &res); err != nil {
		return model.EventPage{}, err
	}

	return model.EventPage{
		Items:      res.Results,
		PageNumber: page,
		TotalCount: res.Count,
	}, nil
}

// EventDetail fetches a single event plus the caller's relationship to it.
func (c *Client) EventDetail(ctx context.Context, eventID int64) (model.EventDetail, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/event/%d/", eventID), nil, true)
	if err != nil {
		return model.EventDetail{}, err
	}

	var res model.EventDetail
	if err := c.do(req, &res); err != nil {
		return model.EventDetail{}, err
	}
	return res, nil
}

// MyEvents lists events hosted by the current user.
func (c *Client) MyEvents(ctx context.Context) ([]model.Event, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/my_events/", nil, true)
	if err != nil {
		return nil, err
	}

	var res []model.Event
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// EventForm carries the create/update form fields. Image is optional; when
// set, ImageName names the uploaded file.
type EventForm struct {
	Title       string
	Description string
	Date        time.Time
	Location    string
	PremiumOnly bool
	ImageName   string
	Image       io.Reader
}

// CreateEvent creates an event via the multipart create endpoint and
// returns the created event.
func (c *Client) CreateEvent(ctx context.Context, form EventForm) (model.Event, error) {
	return c.sendEventForm(ctx, http.MethodPost, "/api/event/create/", form)
}

// UpdateEvent replaces an event's fields via the multipart update endpoint.
func (c *Client) UpdateEvent(ctx context.Context, eventID int64, form EventForm) (model.Event, error) {
	return c.sendEventForm(ctx, http.MethodPut, fmt.Sprintf("/api/event/update/%d/", eventID), form)
}

func (c *Client) sendEventForm(ctx context.Context, method, path string, form EventForm) (model.Event, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"title":        form.Title,
		"description":  form.Description,
		"date":         form.Date.Format(time.RFC3339),
		"location":     form.Location,
		"premium_only": strconv.FormatBool(form.PremiumOnly),
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return model.Event{}, err
		}
	}

	if form.Image != nil {
		name := form.ImageName
		if name == "" {
			name = "image"
		}
		fw, err := mw.CreateFormFile("image", name)
		if err != nil {
			return model.Event{}, err
		}
		if _, err := io.Copy(fw, form.Image); err != nil {
			return model.Event{}, err
		}
	}

	if err := mw.Close(); err != nil {
		return model.Event{}, err
	}

	req, err := c.newRequest(ctx, method, path, &buf, true)
	if err != nil {
		return model.Event{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var created model.Event
	if err := c.do(req, &created); err != nil {
		return model.Event{}, err
	}
	return created, nil
}

// DeleteEvent removes an event (host or admin only, enforced server-side).
func (c *Client) DeleteEvent(ctx context.Context, eventID int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/event/delete/%d/", eventID), nil, true)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// RSVP records the caller's status for an event. The backend upserts, so
// re-sending for an already-RSVP'd event is a status transition.
func (c *Client) RSVP(ctx context.Context, eventID int64, status model.Status) error {
	body := map[string]string{"status": string(status)}
	return c.postJSON(ctx, fmt.Sprintf("/api/event/%d/rsvp/", eventID), body, nil, true)
}

// RemoveRSVP deletes the caller's RSVP for an event.
func (c *Client) RemoveRSVP(ctx context.Context, eventID int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/event/%d/remove-rsvp/", eventID), nil, true)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// MyRSVPEvents fetches the caller's RSVP'd events grouped by status.
func (c *Client) MyRSVPEvents(ctx context.Context) (model.RSVPBuckets, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/my_rsvp_events/", nil, true)
	if err != nil {
		return model.RSVPBuckets{}, err
	}

	var res model.RSVPBuckets
	if err := c.do(req, &res); err != nil {
		return model.RSVPBuckets{}, err
	}
	return res, nil
}

// GuestList fetches the per-status attendee lists for an event. Restricted
// server-side to the host and admins.
func (c *Client) GuestList(ctx context.Context, eventID int64) (model.GuestList, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/event/%d/rsvp-users/", eventID), nil, true)
	if err != nil {
		return model.GuestList{}, err
	}

	var res model.GuestList
	if err := c.do(req, &res); err != nil {
		return model.GuestList{}, err
	}
	return res, nil
}

// RemoveUserRSVP drops another user's RSVP from an event (admin/host).
func (c *Client) RemoveUserRSVP(ctx context.Context, eventID, userID int64) error {
	path := fmt.Sprintf("/api/event/%d/remove-user-rsvp/%d/", eventID, userID)
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil, true)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// MakePublic converts a premium-only event to public.
func (c *Client) MakePublic(ctx context.Context, eventID int64) error {
	req, err := c.newRequest(ctx, http.MethodPatch, fmt.Sprintf("/api/event/%d/make-public/", eventID), nil, true)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
