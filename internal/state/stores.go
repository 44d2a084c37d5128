package state

import (
	"context"
	"sync"
	"time"

	"github.com/seliga/canopy/internal/arbor"
	"github.com/seliga/canopy/internal/cache"
	"github.com/seliga/canopy/internal/notify"
	"github.com/seliga/canopy/internal/store"
)

// Per-domain read-cache TTLs. Summaries change as executions finish, so
// their cache is short; entity metadata moves slowly.
const (
	summaryCacheTTL = 30 * time.Second
	entityCacheTTL  = 5 * time.Minute
)

// Stores bundles every domain store the console renders from. All writes
// funnel through these; the UI only reads snapshots.
type Stores struct {
	Entities    *store.Store[arbor.Entity]
	FacetValues *store.Store[arbor.FacetValue]
	Summaries   *store.Store[arbor.Summary]
	Sources     *store.Store[arbor.Source]
	Usage       *store.Store[arbor.UsageStat]
	Notify      *notify.Center

	Favorites *Favorites
}

// CacheFactory builds a private cache repository per domain.
type CacheFactory func(domain string) cache.Repository

// MemoryCaches is the default CacheFactory.
func MemoryCaches(string) cache.Repository {
	return cache.NewMemory()
}

// NewStores wires one store per Arbor domain onto api. newSource may be nil
// to run notifications on polling only.
func NewStores(api arbor.API, caches CacheFactory, newSource func() notify.EventSource, pollEvery time.Duration) *Stores {
	if caches == nil {
		caches = MemoryCaches
	}
	favorites := &Favorites{}

	s := &Stores{Favorites: favorites}

	s.Entities = store.New(store.Config[arbor.Entity]{
		Funcs: store.Funcs[arbor.Entity]{
			List: listAdapter(api.ListEntities),
			Get: func(ctx context.Context, id string, _ store.Params) (arbor.Entity, error) {
				return deref(api.GetEntity(ctx, id))
			},
			Update: func(ctx context.Context, id string, _ map[string]any) (arbor.Entity, error) {
				return deref(api.ToggleFavorite(ctx, id))
			},
		},
		Cache:     caches("entities"),
		TTL:       entityCacheTTL,
		OnReplace: favorites.rebuild,
	})

	s.FacetValues = store.New(store.Config[arbor.FacetValue]{
		Funcs: store.Funcs[arbor.FacetValue]{
			List: listAdapter(api.ListFacetValues),
			Update: func(ctx context.Context, id string, patch map[string]any) (arbor.FacetValue, error) {
				return deref(api.UpdateFacetValue(ctx, id, patch))
			},
			Delete: api.DeleteFacetValue,
		},
	})

	s.Summaries = store.New(store.Config[arbor.Summary]{
		Funcs: store.Funcs[arbor.Summary]{
			List: listAdapter(api.ListSummaries),
			Get: func(ctx context.Context, id string, params store.Params) (arbor.Summary, error) {
				lp, _ := params.(arbor.ListParams)
				return deref(api.GetSummary(ctx, id, lp))
			},
			Update: func(ctx context.Context, id string, _ map[string]any) (arbor.Summary, error) {
				return deref(api.ExecuteSummary(ctx, id))
			},
		},
		Cache: caches("summaries"),
		TTL:   summaryCacheTTL,
	})

	s.Sources = store.New(store.Config[arbor.Source]{
		Funcs: store.Funcs[arbor.Source]{
			List: listAdapter(api.ListSources),
			Update: func(ctx context.Context, id string, patch map[string]any) (arbor.Source, error) {
				// The check action reuses the optimistic-update path; a
				// patch with the probe marker routes there.
				if _, probe := patch["_probe"]; probe {
					return deref(api.CheckSource(ctx, id))
				}
				return deref(api.UpdateSource(ctx, id, patch))
			},
		},
	})

	s.Usage = store.New(store.Config[arbor.UsageStat]{
		Funcs: store.Funcs[arbor.UsageStat]{
			List: listAdapter(api.ListUsage),
		},
	})

	s.Notify = notify.NewCenter(notify.Config{
		API:       api,
		NewSource: newSource,
		PollEvery: pollEvery,
	})

	return s
}

// ToggleFavorite flips an entity's favorite flag optimistically, refusing a
// second toggle while one is in flight for the same entity.
func (s *Stores) ToggleFavorite(ctx context.Context, id string) error {
	release, err := s.Entities.Guard(id)
	if err != nil {
		return err
	}
	defer release()

	var want bool
	for _, e := range s.Entities.Snapshot().Items {
		if e.ID == id {
			want = !e.Favorite
			break
		}
	}
	entity, err := s.Entities.Mutate(ctx, id, map[string]any{"favorite": want})
	if err != nil {
		return err
	}
	s.Favorites.set(entity.ID, entity.Favorite)
	return nil
}

// ExecuteSummary kicks off a summary run. The optimistic guess flips the
// status to running; the server response carries the authoritative state.
func (s *Stores) ExecuteSummary(ctx context.Context, id string) error {
	release, err := s.Summaries.Guard(id)
	if err != nil {
		return err
	}
	defer release()

	_, err = s.Summaries.Mutate(ctx, id, map[string]any{"status": "running"})
	return err
}

// CheckSource asks Arbor to probe a crawl source now.
func (s *Stores) CheckSource(ctx context.Context, id string) error {
	release, err := s.Sources.Guard(id)
	if err != nil {
		return err
	}
	defer release()

	_, err = s.Sources.Mutate(ctx, id, map[string]any{"_probe": true, "last_status": "checking"})
	return err
}

// Reset clears every store; used on logout and shutdown.
func (s *Stores) Reset(ctx context.Context) {
	s.Entities.Reset(ctx)
	s.FacetValues.Reset(ctx)
	s.Summaries.Reset(ctx)
	s.Sources.Reset(ctx)
	s.Usage.Reset(ctx)
	s.Notify.Store().Reset(ctx)
	s.Favorites.rebuild(store.Mirror[arbor.Entity]{})
}

// Favorites is the derived index of favorited entity ids, rebuilt from each
// committed entity listing.
type Favorites struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// Has reports whether id is currently favorited.
func (f *Favorites) Has(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.ids[id]
	return ok
}

// Len returns the number of favorited entities in the current listing.
func (f *Favorites) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

func (f *Favorites) rebuild(m store.Mirror[arbor.Entity]) {
	ids := make(map[string]struct{})
	for _, e := range m.Items {
		if e.Favorite {
			ids[e.ID] = struct{}{}
		}
	}
	f.mu.Lock()
	f.ids = ids
	f.mu.Unlock()
}

func (f *Favorites) set(id string, favorite bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ids == nil {
		f.ids = make(map[string]struct{})
	}
	if favorite {
		f.ids[id] = struct{}{}
	} else {
		delete(f.ids, id)
	}
}

func listAdapter[R store.Record](fn func(context.Context, arbor.ListParams) (arbor.Page[R], error)) func(context.Context, store.Params) (store.Mirror[R], error) {
	return func(ctx context.Context, params store.Params) (store.Mirror[R], error) {
		lp, _ := params.(arbor.ListParams)
		page, err := fn(ctx, lp)
		if err != nil {
			return store.Mirror[R]{}, err
		}
		return store.Mirror[R]{
			Items:   page.Items,
			Total:   page.Total,
			Page:    page.Page,
			PerPage: page.PerPage,
		}, nil
	}
}

func deref[R any](rec *R, err error) (R, error) {
	if err != nil {
		var zero R
		return zero, err
	}
	return *rec, nil
}
