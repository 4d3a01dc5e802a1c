// Package events owns the paginated, filtered event listing: current
// filter values, current page, and the last page of results fetched from
// the backend.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/api"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
)

// ErrPageOutOfRange is returned by SetPage for pages the pagination
// control must not offer.
var ErrPageOutOfRange = errors.New("page number out of range")

// ErrStaleLoad marks a Load whose result arrived after the query had
// already moved on. The result is discarded; the caller just ignores it.
var ErrStaleLoad = errors.New("stale event list response discarded")

// Lister is the slice of the API client the fetcher drives.
type Lister interface {
	ListEvents(ctx context.Context, q api.ListQuery) (model.EventPage, error)
}

// Filters are the dashboard filter values. Date is YYYY-MM-DD; Location is
// a substring match. Both empty means unfiltered.
type Filters struct {
	Date     string
	Location string
}

// Fetcher holds listing state. Safe for concurrent use; overlapping loads
// are resolved by a generation counter so a slow early response can never
// overwrite a newer one.
type Fetcher struct {
	lister Lister

	mu         sync.Mutex
	filters    Filters
	page       int
	current    model.EventPage
	generation uint64
}

// NewFetcher creates a fetcher positioned on page 1 with no filters.
func NewFetcher(lister Lister) *Fetcher {
	return &Fetcher{
		lister: lister,
		page:   1,
	}
}

// SetFilters replaces the filter values. Any change resets pagination to
// page 1 and invalidates in-flight loads. The source dashboards disagreed
// on the reset; this applies one policy everywhere.
func (f *Fetcher) SetFilters(filters Filters) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.filters == filters {
		return
	}
	f.filters = filters
	f.page = 1
	f.generation++
}

// SetPage moves to page n, holding filters constant. Pages outside
// 1..TotalPages are rejected; before the first load only page 1 exists.
func (f *Fetcher) SetPage(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := f.current.TotalPages()
	if n < 1 || (total > 0 && n > total) || (total == 0 && n != 1) {
		return ErrPageOutOfRange
	}
	if n == f.page {
		return nil
	}
	f.page = n
	f.generation++
	return nil
}

// Load fetches the page for the current filters and page number. If the
// query changes while the request is in flight the response is discarded
// and ErrStaleLoad returned. On fetch failure the previous page is kept.
func (f *Fetcher) Load(ctx context.Context) error {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	q := api.ListQuery{
		Date:     f.filters.Date,
		Location: f.filters.Location,
		Page:     f.page,
	}
	f.mu.Unlock()

	page, err := f.lister.ListEvents(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.generation != gen {
		log.Debug().Int("page", q.Page).Msg("discarding stale event list response")
		return ErrStaleLoad
	}
	if err != nil {
		log.Error().Err(err).Int("page", q.Page).Msg("event list fetch failed, keeping previous page")
		return err
	}

	f.current = page
	return nil
}

// Page returns the last successfully fetched page.
func (f *Fetcher) Page() model.EventPage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// CurrentPage returns the page number the fetcher is positioned on.
func (f *Fetcher) CurrentPage() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

// TotalPages returns the page count derived from the last fetch.
func (f *Fetcher) TotalPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current.TotalPages()
}

// Filters returns the active filter values.
func (f *Fetcher) Filters() Filters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filters
}

// PageNumbers lists the page numbers the pagination control may offer:
// 1..TotalPages, never beyond.
func (f *Fetcher) PageNumbers() []int {
	total := f.TotalPages()
	if total <= 0 {
		return nil
	}
	nums := make([]int, total)
	for i := range nums {
		nums[i] = i + 1
	}
	return nums
}
