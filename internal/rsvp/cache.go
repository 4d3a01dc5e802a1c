// Package rsvp caches the current user's RSVP state: which events they
// have responded to and with which status. The cache is rebuilt from the
// backend's three status buckets and patched in place after acknowledged
// mutations; it is never persisted.
package rsvp

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
)

// ErrToggleInFlight is returned when a toggle arrives for an event whose
// previous toggle has not resolved yet. The second request is dropped, not
// queued, so reordered responses can never produce a lost update.
var ErrToggleInFlight = errors.New("an RSVP change for this event is already in flight")

// Backend is the slice of the API client the cache drives.
type Backend interface {
	MyRSVPEvents(ctx context.Context) (model.RSVPBuckets, error)
	RSVP(ctx context.Context, eventID int64, status model.Status) error
	RemoveRSVP(ctx context.Context, eventID int64) error
}

// Cache maps event IDs to the user's RSVP status. Safe for concurrent use.
type Cache struct {
	backend Backend

	mu       sync.Mutex
	statuses map[int64]model.Status
	inflight map[int64]struct{}
}

// NewCache creates an empty cache over the given backend.
func NewCache(backend Backend) *Cache {
	return &Cache{
		backend:  backend,
		statuses: make(map[int64]model.Status),
		inflight: make(map[int64]struct{}),
	}
}

// Refresh rebuilds the cache from the my-RSVP-events buckets. On failure
// the previous contents are kept (stale reads beat an empty dashboard) and
// the error is returned for callers that want to log it; nothing here is
// user-blocking.
func (c *Cache) Refresh(ctx context.Context) error {
	buckets, err := c.backend.MyRSVPEvents(ctx)
	if err != nil {
		log.Error().Err(err).Msg("rsvp cache refresh failed, keeping previous state")
		return err
	}

	fresh := make(map[int64]model.Status, len(buckets.Going)+len(buckets.Maybe)+len(buckets.NotGoing))
	record := func(events []model.Event, status model.Status) {
		for _, ev := range events {
			if prev, ok := fresh[ev.ID]; ok {
				// The backend guarantees one bucket per event;
				// a duplicate means server-side inconsistency.
				log.Warn().Int64("event_id", ev.ID).
					Str("status", string(prev)).Str("duplicate", string(status)).
					Msg("event listed in multiple RSVP buckets")
				continue
			}
			fresh[ev.ID] = status
		}
	}
	record(buckets.Going, model.StatusGoing)
	record(buckets.Maybe, model.StatusMaybe)
	record(buckets.NotGoing, model.StatusNotGoing)

	c.mu.Lock()
	c.statuses = fresh
	c.mu.Unlock()
	return nil
}

// Toggle flips the user's RSVP for an event: absent means join with the
// given status, present means leave. The cache only changes after the
// server acknowledges; there is no optimistic flip to lose on failure.
//
// Selecting a different status while already RSVP'd cancels instead of
// transitioning. The backend upserts and could transition directly, but
// the platform's UI has only ever offered join/cancel, so the cache keeps
// that contract.
func (c *Cache) Toggle(ctx context.Context, eventID int64, status model.Status) error {
	c.mu.Lock()
	if _, busy := c.inflight[eventID]; busy {
		c.mu.Unlock()
		return ErrToggleInFlight
	}
	c.inflight[eventID] = struct{}{}
	_, joined := c.statuses[eventID]
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, eventID)
		c.mu.Unlock()
	}()

	if joined {
		if err := c.backend.RemoveRSVP(ctx, eventID); err != nil {
			log.Error().Err(err).Int64("event_id", eventID).Msg("remove RSVP failed")
			return err
		}
		c.mu.Lock()
		delete(c.statuses, eventID)
		c.mu.Unlock()
		return nil
	}

	if err := c.backend.RSVP(ctx, eventID, status); err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Str("status", string(status)).Msg("RSVP failed")
		return err
	}
	c.mu.Lock()
	c.statuses[eventID] = status
	c.mu.Unlock()
	return nil
}

// Remove explicitly leaves an event regardless of current status. Shares
// the in-flight guard with Toggle. The backend call is issued even when
// the event is missing from the local cache: callers like the joined-events
// page render backend buckets directly, so the cache may not have seen the
// RSVP yet.
func (c *Cache) Remove(ctx context.Context, eventID int64) error {
	c.mu.Lock()
	if _, busy := c.inflight[eventID]; busy {
		c.mu.Unlock()
		return ErrToggleInFlight
	}
	c.inflight[eventID] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, eventID)
		c.mu.Unlock()
	}()

	if err := c.backend.RemoveRSVP(ctx, eventID); err != nil {
		log.Error().Err(err).Int64("event_id", eventID).Msg("remove RSVP failed")
		return err
	}
	c.mu.Lock()
	delete(c.statuses, eventID)
	c.mu.Unlock()
	return nil
}

// Status returns the cached status for an event, if any.
func (c *Cache) Status(eventID int64) (model.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[eventID]
	return st, ok
}

// Len reports how many events the user has responded to.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.statuses)
}

// Snapshot returns a copy of the full mapping.
func (c *Cache) Snapshot() map[int64]model.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]model.Status, len(c.statuses))
	for id, st := range c.statuses {
		out[id] = st
	}
	return out
}

// Clear empties the cache. Called on logout so the next user never sees a
// stale set.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = make(map[int64]model.Status)
}
