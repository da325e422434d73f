package resolver

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(dir backend.Directory, cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	return New(dir, cfg)
}

func TestResolveMatchesExistingLabelWithoutCreating(t *testing.T) {
	store := memory.New()
	existing := store.Seed(backend.EntityCategory, "Print", "")
	r := newTestResolver(store, Config{})

	id, err := r.Resolve(context.Background(), Reference{Entity: backend.EntityCategory, Label: " print "})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, id)
	assert.Equal(t, 0, store.Calls("create"))
}

func TestResolveUsesSessionCache(t *testing.T) {
	store := memory.New()
	store.Seed(backend.EntityClient, "Acme Ltd", "")
	r := newTestResolver(store, Config{})
	ctx := context.Background()

	first, err := r.Resolve(ctx, Reference{Entity: backend.EntityClient, Label: "Acme Ltd"})
	require.NoError(t, err)
	second, err := r.Resolve(ctx, Reference{Entity: backend.EntityClient, Label: "ACME   ltd"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Calls("lookup"))
}

func TestResolveCreatesMissingRecordAndRemembersIt(t *testing.T) {
	store := memory.New()
	recent := NewMemoryRecentStore()
	r := newTestResolver(store, Config{Recent: recent})
	ctx := context.Background()

	id, err := r.Resolve(ctx, Reference{Entity: backend.EntitySupplier, Label: "  Paper   World "})
	require.NoError(t, err)
	require.Equal(t, 1, store.Calls("create"))

	recs, err := store.Lookup(ctx, backend.EntitySupplier, backend.Filter{NameEquals: "paper world"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)
	assert.Equal(t, "Paper World", recs[0].Name)

	list, err := r.Recent(ctx, backend.EntitySupplier)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestResolveScopesByParent(t *testing.T) {
	store := memory.New()
	printCat := store.Seed(backend.EntityCategory, "Print", "")
	apparel := store.Seed(backend.EntityCategory, "Apparel", "")
	banner := store.Seed(backend.EntityItem, "Banner", printCat.ID)
	r := newTestResolver(store, Config{})
	ctx := context.Background()

	id, err := r.Resolve(ctx, Reference{Entity: backend.EntityItem, Label: "banner", ParentID: printCat.ID})
	require.NoError(t, err)
	assert.Equal(t, banner.ID, id)

	other, err := r.Resolve(ctx, Reference{Entity: backend.EntityItem, Label: "banner", ParentID: apparel.ID})
	require.NoError(t, err)
	assert.NotEqual(t, banner.ID, other)
	assert.Equal(t, 1, store.Calls("create"))
}

func TestResolveMapsCreationFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"duplicate", backend.Duplicate("exists"), CodeDuplicate},
		{"validation", backend.Validation("parent_id", "missing"), CodeInvalidReference},
		{"not found", backend.NotFound("category", "c1"), CodeInvalidReference},
		{"permission", &backend.Error{Code: backend.CodePermissionDenied}, CodePermissionDenied},
		{"network", backend.Wrap(backend.CodeNetwork, "down", nil), CodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			store.FailNext("create", tc.err)
			r := newTestResolver(store, Config{})
			ref := Reference{Entity: backend.EntityClient, Label: "Globex"}

			_, err := r.Resolve(context.Background(), ref)
			require.Error(t, err)
			assert.Equal(t, tc.want, CodeOf(err))

			// failures are not cached: the next attempt reaches the backend again
			_, err = r.Resolve(context.Background(), ref)
			require.NoError(t, err)
			assert.Equal(t, 2, store.Calls("create"))
		})
	}
}

func TestResolveRejectsBlankLabel(t *testing.T) {
	r := newTestResolver(memory.New(), Config{})
	_, err := r.Resolve(context.Background(), Reference{Entity: backend.EntityClient, Label: "   "})
	assert.Equal(t, CodeInvalidReference, CodeOf(err))
}

func TestResolveFallsBackToDefaultsWhenLookupFails(t *testing.T) {
	store := memory.New()
	store.FailNext("lookup", backend.Wrap(backend.CodeNetwork, "offline", nil))
	r := newTestResolver(store, Config{Defaults: map[backend.EntityType][]Option{
		backend.EntityExpenseCategory: {{ID: "default-fuel", Label: "Fuel"}},
	}})

	id, err := r.Resolve(context.Background(), Reference{Entity: backend.EntityExpenseCategory, Label: "fuel"})
	require.NoError(t, err)
	assert.Equal(t, "default-fuel", id)
	assert.Equal(t, 0, store.Calls("create"))
}

func TestResolveFailedLookupNeverCreates(t *testing.T) {
	store := memory.New()
	store.Seed(backend.EntityCategory, "Print", "")
	r := newTestResolver(store, Config{})
	ctx := context.Background()

	for _, label := range []string{"print", "Signage"} {
		store.FailNext("lookup", backend.Wrap(backend.CodeNetwork, "offline", nil))
		_, err := r.Resolve(ctx, Reference{Entity: backend.EntityCategory, Label: label})
		require.ErrorIs(t, err, backend.ErrNetwork, label)
		assert.Equal(t, CodeUnknown, CodeOf(err), label)
	}
	assert.Equal(t, 0, store.Calls("create"))

	id, err := r.Resolve(ctx, Reference{Entity: backend.EntityCategory, Label: "Signage"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, store.Calls("create"))
}

func TestResolvePassesThroughResolvedID(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store, Config{})
	id, err := r.Resolve(context.Background(), Reference{Entity: backend.EntityClient, Label: "x", ResolvedID: "known"})
	require.NoError(t, err)
	assert.Equal(t, "known", id)
	assert.Equal(t, 0, store.Calls("lookup"))
}

// gatedDirectory blocks lookups for selected texts until released.
type gatedDirectory struct {
	backend.Directory
	entered chan string
	mu      sync.Mutex
	gates   map[string]chan struct{}
}

func (g *gatedDirectory) Lookup(ctx context.Context, entity backend.EntityType, f backend.Filter) ([]backend.Record, error) {
	g.mu.Lock()
	gate := g.gates[f.NameContains]
	g.mu.Unlock()
	g.entered <- f.NameContains
	if gate != nil {
		<-gate
	}
	return g.Directory.Lookup(ctx, entity, f)
}

type countingObserver struct{ stale atomic.Int32 }

func (o *countingObserver) StaleDiscarded(backend.EntityType) { o.stale.Add(1) }

func TestSearchDiscardsStaleResponses(t *testing.T) {
	store := memory.New()
	store.Seed(backend.EntityClient, "Acme", "")
	store.Seed(backend.EntityClient, "Acme Holdings", "")
	store.Seed(backend.EntityClient, "Apex", "")

	release := make(chan struct{})
	dir := &gatedDirectory{
		Directory: store,
		entered:   make(chan string, 2),
		gates:     map[string]chan struct{}{"a": release},
	}
	observer := &countingObserver{}
	r := newTestResolver(dir, Config{Observer: observer})
	search := r.NewSearch(backend.EntityClient)
	ctx := context.Background()

	type outcome struct {
		results []Option
		applied bool
		err     error
	}
	slow := make(chan outcome, 1)
	go func() {
		res, applied, err := search.Query(ctx, "a")
		slow <- outcome{res, applied, err}
	}()
	require.Equal(t, "a", <-dir.entered)

	fresh, applied, err := search.Query(ctx, "acme")
	<-dir.entered
	require.NoError(t, err)
	require.True(t, applied)
	require.Len(t, fresh, 2)

	close(release)
	late := <-slow
	require.NoError(t, late.err)
	assert.False(t, late.applied)
	assert.Nil(t, late.results)

	assert.Equal(t, fresh, search.Results())
	assert.EqualValues(t, 1, observer.stale.Load())
}

func TestSearchFallsBackToDefaultsOnFailure(t *testing.T) {
	store := memory.New()
	store.FailNext("lookup", backend.Wrap(backend.CodeNetwork, "offline", nil))
	r := newTestResolver(store, Config{Defaults: map[backend.EntityType][]Option{
		backend.EntityExpenseCategory: {{ID: "1", Label: "Fuel"}, {ID: "2", Label: "Rent"}},
	}})

	res, applied, err := r.NewSearch(backend.EntityExpenseCategory).Query(context.Background(), "fu")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []Option{{ID: "1", Label: "Fuel"}}, res)
}

func TestSearchReturnsErrorWithoutDefaults(t *testing.T) {
	store := memory.New()
	store.FailNext("lookup", backend.Wrap(backend.CodeNetwork, "offline", nil))
	r := newTestResolver(store, Config{})

	search := r.NewSearch(backend.EntityClient)
	_, applied, err := search.Query(context.Background(), "ac")
	require.ErrorIs(t, err, backend.ErrNetwork)
	assert.False(t, applied)
	assert.Empty(t, search.Results())
}
