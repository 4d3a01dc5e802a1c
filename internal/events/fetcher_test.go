package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/api"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
)

type fakeLister struct {
	mu      sync.Mutex
	queries []api.ListQuery
	page    model.EventPage
	err     error

	// block, when non-nil, parks ListEvents until closed.
	block chan struct{}
}

func (f *fakeLister) ListEvents(_ context.Context, q api.ListQuery) (model.EventPage, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.queries = append(f.queries, q)
	page, err := f.page, f.err
	f.mu.Unlock()
	if err != nil {
		return model.EventPage{}, err
	}
	page.PageNumber = q.Page
	return page, nil
}

func TestLoadComputesTotalPages(t *testing.T) {
	lister := &fakeLister{page: model.EventPage{
		Items:      []model.Event{{ID: 1}},
		TotalCount: 13,
	}}
	f := NewFetcher(lister)

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.TotalPages() != 3 {
		t.Errorf("TotalPages = %d, want 3 (13 events, 6 per page)", f.TotalPages())
	}
	if nums := f.PageNumbers(); len(nums) != 3 || nums[0] != 1 || nums[2] != 3 {
		t.Errorf("PageNumbers = %v", nums)
	}
}

func TestSetPageBounds(t *testing.T) {
	lister := &fakeLister{page: model.EventPage{TotalCount: 13}}
	f := NewFetcher(lister)

	// Before the first load only page 1 exists.
	if err := f.SetPage(2); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("SetPage(2) before load = %v, want ErrPageOutOfRange", err)
	}
	if err := f.SetPage(1); err != nil {
		t.Errorf("SetPage(1) before load = %v", err)
	}

	if err := f.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{1, 2, 3} {
		if err := f.SetPage(n); err != nil {
			t.Errorf("SetPage(%d) = %v", n, err)
		}
	}
	for _, n := range []int{0, -1, 4} {
		if err := f.SetPage(n); !errors.Is(err, ErrPageOutOfRange) {
			t.Errorf("SetPage(%d) = %v, want ErrPageOutOfRange", n, err)
		}
	}
	// The invariant held throughout: the pagination control never
	// offered a page beyond TotalPages.
	if f.CurrentPage() > f.TotalPages() {
		t.Errorf("current page %d exceeds total %d", f.CurrentPage(), f.TotalPages())
	}
}

func TestFilterChangeResetsToPageOne(t *testing.T) {
	lister := &fakeLister{page: model.EventPage{TotalCount: 20}}
	f := NewFetcher(lister)
	if err := f.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.SetPage(3); err != nil {
		t.Fatal(err)
	}

	f.SetFilters(Filters{Location: "Berlin"})
	if f.CurrentPage() != 1 {
		t.Errorf("page after filter change = %d, want 1", f.CurrentPage())
	}

	// Re-applying identical filters must not reset pagination; page
	// links carry the filter values in their query strings.
	if err := f.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.SetPage(2); err != nil {
		t.Fatal(err)
	}
	f.SetFilters(Filters{Location: "Berlin"})
	if f.CurrentPage() != 2 {
		t.Errorf("page after identical filters = %d, want 2", f.CurrentPage())
	}
}

func TestLoadSendsFiltersAndPage(t *testing.T) {
	lister := &fakeLister{page: model.EventPage{TotalCount: 30}}
	f := NewFetcher(lister)
	f.SetFilters(Filters{Date: "2026-09-01", Location: "Berlin"})
	if err := f.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.SetPage(4); err != nil {
		t.Fatal(err)
	}
	if err := f.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	last := lister.queries[len(lister.queries)-1]
	if last.Date != "2026-09-01" || last.Location != "Berlin" || last.Page != 4 {
		t.Errorf("last query = %+v", last)
	}
}

func TestLoadFailureKeepsPreviousPage(t *testing.T) {
	lister := &fakeLister{page: model.EventPage{
		Items:      []model.Event{{ID: 1, Title: "kept"}},
		TotalCount: 1,
	}}
	f := NewFetcher(lister)
	if err := f.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	lister.mu.Lock()
	lister.err = errors.New("backend down")
	lister.mu.Unlock()

	if err := f.Load(context.Background()); err == nil {
		t.Error("Load should report fetch failure")
	}
	if page := f.Page(); len(page.Items) != 1 || page.Items[0].Title != "kept" {
		t.Error("a failed load must keep the previous page")
	}
}

// TestStaleResponseDiscarded pins the redesign fix: a slow response for an
// old query must not overwrite the state of a newer one.
func TestStaleResponseDiscarded(t *testing.T) {
	lister := &fakeLister{
		page:  model.EventPage{Items: []model.Event{{ID: 1, Title: "stale"}}, TotalCount: 1},
		block: make(chan struct{}),
	}
	f := NewFetcher(lister)

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- f.Load(context.Background())
	}()

	// Give the slow load a moment to snapshot its generation.
	time.Sleep(10 * time.Millisecond)

	// The query moves on while the first request is still in flight.
	f.SetFilters(Filters{Location: "Berlin"})

	close(lister.block)
	select {
	case err := <-slowDone:
		if !errors.Is(err, ErrStaleLoad) {
			t.Errorf("slow load = %v, want ErrStaleLoad", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("slow load never returned")
	}

	if page := f.Page(); len(page.Items) != 0 {
		t.Errorf("stale response leaked into state: %+v", page.Items)
	}

	// The fresh query still loads normally.
	lister.block = nil
	lister.mu.Lock()
	lister.page = model.EventPage{Items: []model.Event{{ID: 2, Title: "fresh"}}, TotalCount: 1}
	lister.mu.Unlock()
	if err := f.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if page := f.Page(); len(page.Items) != 1 || page.Items[0].Title != "fresh" {
		t.Errorf("fresh load state = %+v", page.Items)
	}
}
