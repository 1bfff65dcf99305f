package termmeta_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/termmeta/internal/metrics"
	"github.com/zjrosen/termmeta/internal/mocks"
	"github.com/zjrosen/termmeta/internal/pubsub"
	"github.com/zjrosen/termmeta/internal/termmeta"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
	"github.com/zjrosen/termmeta/internal/testutil"
	"github.com/zjrosen/termmeta/internal/tracing"
)

// newTestResolver returns a host with "category" and "post_tag" taxonomies, term 5
// "electronics" in category, and a resolver with category registered as cat_meta and
// the default creator installed.
func newTestResolver(t *testing.T, opts ...termmeta.Option) (*testutil.MemoryHost, *termmeta.Resolver) {
	t.Helper()
	host := testutil.NewMemoryHost("category", "post_tag")
	host.AddTermWithID("category", 5, "electronics", "electronics")

	registry := termmeta.NewRegistry(host)
	_, err := registry.Register(context.Background(), "category", "cat_meta")
	require.NoError(t, err)

	resolver := termmeta.NewResolver(registry, host, host, termmeta.NewDefaultCreator(host), opts...)
	host.ResetCounts()
	return host, resolver
}

func TestResolver_UnregisteredTaxonomy(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()

	for _, taxonomy := range []string{"unregistered_tax", "post_tag"} {
		id, ok := resolver.Resolve(ctx, taxonomy, domain.ByID(1))
		require.False(t, ok)
		require.Zero(t, id)
	}
	require.Equal(t, testutil.CallCounts{}, host.Counts(), "no host calls for unregistered taxonomies")
}

func TestResolver_DurableHitIsCached(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()
	carrierID := host.LinkNewRecord("category", 5, "cat_meta")

	id, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, carrierID, id)
	require.Equal(t, 1, host.Counts().FindRelatedRecord)
	require.Zero(t, host.Counts().CreateRecord)

	host.ResetCounts()

	id, ok = resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, carrierID, id)

	require.Equal(t, testutil.CallCounts{}, host.Counts(), "cached resolutions make no host calls")

	id, ok = resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	require.True(t, ok)
	require.Equal(t, carrierID, id, "name key resolves to the same carrier")
	require.Equal(t, testutil.CallCounts{LookupTerm: 1}, host.Counts(), "a new name key only needs the term lookup")

	host.ResetCounts()
	_, ok = resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	require.True(t, ok)
	require.Equal(t, testutil.CallCounts{}, host.Counts())
}

func TestResolver_NameKeyPopulatesIDKey(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()
	carrierID := host.LinkNewRecord("category", 5, "cat_meta")

	id, ok := resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	require.True(t, ok)
	require.Equal(t, carrierID, id)

	host.ResetCounts()
	id, ok = resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, carrierID, id)
	require.Zero(t, host.Counts().FindRelatedRecord)
}

func TestResolver_LazyBackfill(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()

	id, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Positive(t, id)

	counts := host.Counts()
	require.Equal(t, 1, counts.CreateRecord, "exactly one record created")
	require.Equal(t, 1, counts.LinkRecordToTerm, "exactly one link created")
	require.Equal(t, 2, counts.FindRelatedRecord, "lookup before and after creation")

	linked, found := host.CarrierFor("category", 5)
	require.True(t, found)
	require.Equal(t, linked, id)

	host.ResetCounts()
	again, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, id, again)
	require.Equal(t, testutil.CallCounts{}, host.Counts(), "second resolve hits the cache")
}

func TestResolver_TermNotFoundIsNotCached(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()

	id, ok := resolver.Resolve(ctx, "category", domain.ByID(999))
	require.False(t, ok)
	require.Zero(t, id)
	require.Zero(t, host.Counts().FindRelatedRecord)
	require.Zero(t, host.Counts().CreateRecord)

	host.AddTermWithID("category", 999, "late", "late")
	carrierID := host.LinkNewRecord("category", 999, "cat_meta")

	id, ok = resolver.Resolve(ctx, "category", domain.ByID(999))
	require.True(t, ok, "a term created later must resolve")
	require.Equal(t, carrierID, id)
}

func TestResolver_InvalidKey(t *testing.T) {
	host, resolver := newTestResolver(t)

	_, ok := resolver.Resolve(context.Background(), "category", domain.TermKey{})
	require.False(t, ok)
	require.Zero(t, host.Counts().LookupTerm)
}

func TestResolver_DeferredCreationIsRetried(t *testing.T) {
	host := testutil.NewMemoryHost("category")
	host.AddTermWithID("category", 5, "electronics", "electronics")
	registry := termmeta.NewRegistry(host)
	_, err := registry.Register(context.Background(), "category", "cat_meta")
	require.NoError(t, err)

	resolver := termmeta.NewResolver(registry, host, host, nil)
	ctx := context.Background()

	_, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.False(t, ok)
	require.Equal(t, 2, host.Counts().FindRelatedRecord, "one lookup, one recheck")
	require.Zero(t, host.Counts().CreateRecord)

	_, ok = resolver.Resolve(ctx, "category", domain.ByID(5))
	require.False(t, ok)
	require.Equal(t, 4, host.Counts().FindRelatedRecord, "unresolved terms are re-attempted")

	carrierID := host.LinkNewRecord("category", 5, "cat_meta")
	id, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, carrierID, id)
}

func TestResolver_CreatorErrorDegradesToNone(t *testing.T) {
	host := testutil.NewMemoryHost("category")
	host.AddTermWithID("category", 5, "electronics", "electronics")
	registry := termmeta.NewRegistry(host)
	_, err := registry.Register(context.Background(), "category", "cat_meta")
	require.NoError(t, err)

	creator := mocks.NewMockCarrierCreator(t)
	creator.EXPECT().
		CreateCarrier(mock.Anything, mock.MatchedBy(func(req termmeta.MissingCarrier) bool {
			return req.Taxonomy == "category" && req.CarrierType == "cat_meta" && req.Term.ID == 5
		})).
		Return(errors.New("disk full")).
		Twice()

	resolver := termmeta.NewResolver(registry, host, host, creator)
	ctx := context.Background()

	_, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.False(t, ok)
	_, ok = resolver.Resolve(ctx, "category", domain.ByID(5))
	require.False(t, ok, "failure is not cached and creation is attempted again")
}

func TestResolver_CreatorLinkingLaterIsPickedUp(t *testing.T) {
	host := testutil.NewMemoryHost("category")
	host.AddTermWithID("category", 5, "electronics", "electronics")
	registry := termmeta.NewRegistry(host)
	_, err := registry.Register(context.Background(), "category", "cat_meta")
	require.NoError(t, err)

	var queued []termmeta.MissingCarrier
	creator := termmeta.CreatorFunc(func(ctx context.Context, req termmeta.MissingCarrier) error {
		queued = append(queued, req)
		return nil
	})
	resolver := termmeta.NewResolver(registry, host, host, creator)
	ctx := context.Background()

	_, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.False(t, ok)
	require.Len(t, queued, 1)

	carrierID := host.LinkNewRecord(queued[0].Taxonomy, queued[0].Term.ID, queued[0].CarrierType)
	id, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, carrierID, id)
}

func TestResolver_LookupErrorDegradesToNone(t *testing.T) {
	host, resolver := newTestResolver(t)
	host.LookupErr = errors.New("connection reset")

	_, ok := resolver.Resolve(context.Background(), "category", domain.ByID(5))
	require.False(t, ok)
	require.Zero(t, host.Counts().FindRelatedRecord)

	host.LookupErr = nil
	_, ok = resolver.Resolve(context.Background(), "category", domain.ByID(5))
	require.True(t, ok)
}

func TestResolver_StoreErrorDegradesToNone(t *testing.T) {
	host, resolver := newTestResolver(t)
	host.FindErr = errors.New("database is locked")

	_, ok := resolver.Resolve(context.Background(), "category", domain.ByID(5))
	require.False(t, ok)
	require.Zero(t, host.Counts().CreateRecord, "store errors do not trigger creation")
}

func TestResolver_ScopesTermToTaxonomy(t *testing.T) {
	host := testutil.NewMemoryHost("category")
	carrierID := host.LinkNewRecord("category", 5, "cat_meta")
	registry := termmeta.NewRegistry(host)
	_, err := registry.Register(context.Background(), "category", "cat_meta")
	require.NoError(t, err)

	lookup := mocks.NewMockTermLookup(t)
	lookup.EXPECT().
		LookupTerm(mock.Anything, "category", domain.ByID(5)).
		Return(&domain.Term{ID: 5, Name: "electronics"}, nil).
		Once()
	lookup.EXPECT().
		LookupTerm(mock.Anything, "category", domain.ByName("electronics")).
		Return(&domain.Term{ID: 5, Name: "electronics"}, nil).
		Once()

	resolver := termmeta.NewResolver(registry, lookup, host, nil)
	ctx := context.Background()

	id, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, carrierID, id)

	id, ok = resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	require.True(t, ok, "id key cached under the resolved taxonomy")
	require.Equal(t, carrierID, id)
}

func TestResolver_AtMostOneCarrierUnderConcurrency(t *testing.T) {
	host, resolver := newTestResolver(t)
	host.CreateDelay = 20 * time.Millisecond
	ctx := context.Background()

	const callers = 32
	var wg sync.WaitGroup
	ids := make([]int64, callers)
	oks := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := domain.ByID(5)
			if i%2 == 1 {
				key = domain.ByName("electronics")
			}
			ids[i], oks[i] = resolver.Resolve(ctx, "category", key)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, host.Counts().CreateRecord, "only one creation for the term")
	require.Equal(t, 1, host.RecordCount())
	for i := range ids {
		require.True(t, oks[i])
		require.Equal(t, ids[0], ids[i])
	}
}

func TestResolver_Invalidate(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()

	first, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)

	host.DeleteRecord(first)
	stale, ok := resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	require.True(t, ok)
	require.Equal(t, first, stale, "cache serves the old id until invalidated")

	resolver.Invalidate(ctx, "category", domain.ByID(5))
	host.ResetCounts()

	second, ok := resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	require.True(t, ok)
	require.NotEqual(t, first, second, "a fresh carrier is backfilled")
	require.Equal(t, 1, host.Counts().CreateRecord)
}

func TestResolver_InvalidateByNameEvictsBothKeys(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()
	host.LinkNewRecord("category", 5, "cat_meta")

	_, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)

	resolver.Invalidate(ctx, "category", domain.ByName("electronics"))
	host.ResetCounts()

	_, ok = resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, 1, host.Counts().FindRelatedRecord)
}

func TestResolver_InvalidateTaxonomyAndFlush(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()
	_, err := resolver.Registry().Register(ctx, "post_tag", "")
	require.NoError(t, err)
	host.AddTermWithID("post_tag", 6, "go", "go")

	_, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	_, ok = resolver.Resolve(ctx, "post_tag", domain.ByID(6))
	require.True(t, ok)

	resolver.InvalidateTaxonomy(ctx, "category")
	host.ResetCounts()

	_, ok = resolver.Resolve(ctx, "post_tag", domain.ByID(6))
	require.True(t, ok)
	require.Zero(t, host.Counts().FindRelatedRecord, "other taxonomies stay cached")

	_, ok = resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, 1, host.Counts().FindRelatedRecord)

	resolver.Flush(ctx)
	host.ResetCounts()

	_, ok = resolver.Resolve(ctx, "post_tag", domain.ByName("go"))
	require.True(t, ok)
	require.Equal(t, 1, host.Counts().FindRelatedRecord)
}

func TestResolver_TermSavedAdd(t *testing.T) {
	host, resolver := newTestResolver(t)
	term := host.AddTerm("category", "books", "books")

	id, ok := resolver.TermSaved(context.Background(), "category", term.ID, termmeta.SaveAdd)
	require.True(t, ok)

	linked, found := host.CarrierFor("category", term.ID)
	require.True(t, found, "saving a new term guarantees a carrier")
	require.Equal(t, linked, id)
}

func TestResolver_TermSavedEditEvictsOldName(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()

	id, ok := resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	require.True(t, ok)

	host.RenameTerm(5, "gadgets")
	saved, ok := resolver.TermSaved(ctx, "category", 5, termmeta.SaveEdit)
	require.True(t, ok)
	require.Equal(t, id, saved, "the carrier survives a rename")

	_, ok = resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	require.False(t, ok, "the old name no longer resolves")

	host.ResetCounts()
	byName, ok := resolver.Resolve(ctx, "category", domain.ByName("gadgets"))
	require.True(t, ok)
	require.Equal(t, id, byName)
	require.Equal(t, testutil.CallCounts{LookupTerm: 1}, host.Counts(), "the id key was cached by TermSaved")
}

func TestResolver_TermSavedUnregistered(t *testing.T) {
	host, resolver := newTestResolver(t)

	_, ok := resolver.TermSaved(context.Background(), "post_tag", 1, termmeta.SaveAdd)
	require.False(t, ok)
	require.Equal(t, testutil.CallCounts{}, host.Counts())
}

func TestResolver_Registrations(t *testing.T) {
	_, resolver := newTestResolver(t)
	require.Equal(t, []termmeta.Registration{{Taxonomy: "category", CarrierType: "cat_meta"}}, resolver.Registrations())
}

func TestResolver_PublishesEvents(t *testing.T) {
	bus := pubsub.NewBroker[termmeta.CarrierEvent]()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := bus.Subscribe(ctx)

	host, resolver := newTestResolver(t, termmeta.WithEventBus(bus))
	host.AddTermWithID("category", 8, "linked", "linked")
	linkedID := host.LinkNewRecord("category", 8, "cat_meta")

	created, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	_, ok = resolver.Resolve(ctx, "category", domain.ByID(8))
	require.True(t, ok)
	resolver.Invalidate(ctx, "category", domain.ByID(5))

	want := []struct {
		eventType pubsub.EventType
		payload   termmeta.CarrierEvent
	}{
		{pubsub.CreatedEvent, termmeta.CarrierEvent{Taxonomy: "category", TermID: 5, TermName: "electronics", CarrierID: created}},
		{pubsub.ResolvedEvent, termmeta.CarrierEvent{Taxonomy: "category", TermID: 8, TermName: "linked", CarrierID: linkedID}},
		{pubsub.InvalidatedEvent, termmeta.CarrierEvent{Taxonomy: "category", TermID: 5}},
	}
	for _, w := range want {
		select {
		case ev := <-events:
			require.Equal(t, w.eventType, ev.Type)
			require.Equal(t, w.payload, ev.Payload)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", w.eventType)
		}
	}
}

func TestResolver_PublishesUnresolved(t *testing.T) {
	bus := pubsub.NewBroker[termmeta.CarrierEvent]()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := bus.Subscribe(ctx)

	host := testutil.NewMemoryHost("category")
	host.AddTermWithID("category", 5, "electronics", "electronics")
	registry := termmeta.NewRegistry(host)
	_, err := registry.Register(ctx, "category", "cat_meta")
	require.NoError(t, err)
	resolver := termmeta.NewResolver(registry, host, host, termmeta.DeferCreator{}, termmeta.WithEventBus(bus))

	_, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.False(t, ok)

	select {
	case ev := <-events:
		require.Equal(t, pubsub.UnresolvedEvent, ev.Type)
		require.Equal(t, int64(5), ev.Payload.TermID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unresolved event")
	}
}

func counterValue(t *testing.T, reg prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestResolver_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewResolverMetrics(reg)
	require.NoError(t, err)

	_, resolver := newTestResolver(t, termmeta.WithMetrics(m))
	ctx := context.Background()

	_, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	_, ok = resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	require.True(t, ok)
	_, ok = resolver.Resolve(ctx, "category", domain.ByID(404))
	require.False(t, ok)
	_, ok = resolver.Resolve(ctx, "genre", domain.ByID(1))
	require.False(t, ok)

	resolutions := "termmeta_resolver_resolutions_total"
	require.Equal(t, 1.0, counterValue(t, reg, resolutions, map[string]string{"taxonomy": "category", "outcome": metrics.OutcomeBackfilled}))
	require.Equal(t, 1.0, counterValue(t, reg, resolutions, map[string]string{"taxonomy": "category", "outcome": metrics.OutcomeCacheHit}))
	require.Equal(t, 1.0, counterValue(t, reg, resolutions, map[string]string{"taxonomy": "category", "outcome": metrics.OutcomeTermNotFound}))
	require.Equal(t, 1.0, counterValue(t, reg, resolutions, map[string]string{"taxonomy": "genre", "outcome": metrics.OutcomeDisabled}))
	require.Equal(t, 2.0, counterValue(t, reg, "termmeta_resolver_durable_lookups_total", map[string]string{"taxonomy": "category"}))
	require.Equal(t, 1.0, counterValue(t, reg, "termmeta_resolver_backfills_total", map[string]string{"taxonomy": "category", "result": "ok"}))
	require.Equal(t, 2.0, counterValue(t, reg, "termmeta_resolver_cache_entries", nil))
}

func TestResolver_TracesBackfill(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	_, resolver := newTestResolver(t, termmeta.WithTracer(provider.Tracer("test")))
	_, ok := resolver.Resolve(context.Background(), "category", domain.ByID(5))
	require.True(t, ok)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	require.ElementsMatch(t, []string{tracing.SpanResolve, tracing.SpanBackfill}, names)
}

func TestResolver_UsesInjectedCache(t *testing.T) {
	host := testutil.NewMemoryHost("category")
	host.AddTermWithID("category", 5, "electronics", "electronics")
	registry := termmeta.NewRegistry(host)
	_, err := registry.Register(context.Background(), "category", "cat_meta")
	require.NoError(t, err)

	cache := newMapCache()
	resolver := termmeta.NewResolver(registry, host, host, termmeta.NewDefaultCreator(host), termmeta.WithCache(cache))

	id, ok := resolver.Resolve(context.Background(), "category", domain.ByID(5))
	require.True(t, ok)
	require.Equal(t, map[string]int64{"category|id:5": id}, cache.snapshot(),
		"an id lookup does not claim the name key")

	_, ok = resolver.Resolve(context.Background(), "category", domain.ByName("electronics"))
	require.True(t, ok)
	require.Equal(t, map[string]int64{
		"category|id:5":             id,
		"category|name:electronics": id,
	}, cache.snapshot())
}

func TestResolver_DuplicateNamesFollowHostLookup(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()
	host.AddTermWithID("category", 10, "Sale", "sale")
	host.AddTermWithID("category", 11, "Sale", "sale-2")
	first := host.LinkNewRecord("category", 10, "cat_meta")
	second := host.LinkNewRecord("category", 11, "cat_meta")

	id, ok := resolver.Resolve(ctx, "category", domain.ByName("Sale"))
	require.True(t, ok)
	require.Equal(t, first, id, "the host answers a shared name with its lowest id")

	for _, termID := range []int64{10, 11} {
		_, ok := resolver.Resolve(ctx, "category", domain.ByID(termID))
		require.True(t, ok)
	}
	id, ok = resolver.Resolve(ctx, "category", domain.ByID(11))
	require.True(t, ok)
	require.Equal(t, second, id)

	id, ok = resolver.Resolve(ctx, "category", domain.ByName("Sale"))
	require.True(t, ok)
	require.Equal(t, first, id, "resolving another term by id leaves the name key alone")

	fresh := termmeta.NewResolver(resolver.Registry(), host, host, nil)
	for _, termID := range []int64{10, 11} {
		_, ok := fresh.Resolve(ctx, "category", domain.ByID(termID))
		require.True(t, ok)
	}
	id, ok = fresh.Resolve(ctx, "category", domain.ByName("Sale"))
	require.True(t, ok)
	require.Equal(t, first, id, "warm and cold resolvers agree")
}

func TestResolver_TermSavedRenameOntoSharedName(t *testing.T) {
	host, resolver := newTestResolver(t)
	ctx := context.Background()
	host.AddTermWithID("category", 11, "Sale", "sale")
	saleCarrier := host.LinkNewRecord("category", 11, "cat_meta")
	electronicsCarrier := host.LinkNewRecord("category", 5, "cat_meta")

	id, ok := resolver.Resolve(ctx, "category", domain.ByName("Sale"))
	require.True(t, ok)
	require.Equal(t, saleCarrier, id)

	// Term 5 now wins name lookups for "Sale".
	host.RenameTerm(5, "Sale")
	_, ok = resolver.TermSaved(ctx, "category", 5, termmeta.SaveEdit)
	require.True(t, ok)

	id, ok = resolver.Resolve(ctx, "category", domain.ByName("Sale"))
	require.True(t, ok)
	require.Equal(t, electronicsCarrier, id)
}

func TestResolver_InvalidateDuringResolveIsNotOverwritten(t *testing.T) {
	host := testutil.NewMemoryHost("category")
	host.AddTermWithID("category", 5, "electronics", "electronics")
	host.CreateDelay = 100 * time.Millisecond
	registry := termmeta.NewRegistry(host)
	_, err := registry.Register(context.Background(), "category", "cat_meta")
	require.NoError(t, err)

	cache := newMapCache()
	resolver := termmeta.NewResolver(registry, host, host, termmeta.NewDefaultCreator(host), termmeta.WithCache(cache))
	ctx := context.Background()

	done := make(chan bool, 1)
	go func() {
		_, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
		done <- ok
	}()

	require.Eventually(t, func() bool { return host.Counts().CreateRecord == 1 }, time.Second, time.Millisecond)
	resolver.Invalidate(ctx, "category", domain.ByID(5))

	select {
	case ok := <-done:
		require.True(t, ok, "the caller still gets the carrier it found")
	case <-time.After(2 * time.Second):
		t.Fatal("resolve did not return")
	}
	require.Empty(t, cache.snapshot(), "a resolution overtaken by an invalidation is not cached")

	id, ok := resolver.Resolve(ctx, "category", domain.ByID(5))
	require.True(t, ok)
	linked, found := host.CarrierFor("category", 5)
	require.True(t, found)
	require.Equal(t, linked, id)
	require.Len(t, cache.snapshot(), 1)
}

func TestResolver_FlushDuringResolveIsNotOverwritten(t *testing.T) {
	host := testutil.NewMemoryHost("category")
	host.AddTermWithID("category", 5, "electronics", "electronics")
	host.CreateDelay = 100 * time.Millisecond
	registry := termmeta.NewRegistry(host)
	_, err := registry.Register(context.Background(), "category", "cat_meta")
	require.NoError(t, err)

	cache := newMapCache()
	resolver := termmeta.NewResolver(registry, host, host, termmeta.NewDefaultCreator(host), termmeta.WithCache(cache))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	}()
	require.Eventually(t, func() bool { return host.Counts().CreateRecord == 1 }, time.Second, time.Millisecond)
	resolver.Flush(ctx)
	wg.Wait()

	require.Empty(t, cache.snapshot())
}

func ExampleResolver_Resolve() {
	ctx := context.Background()
	host := testutil.NewMemoryHost("category")
	host.AddTermWithID("category", 5, "electronics", "electronics")

	registry := termmeta.NewRegistry(host)
	if _, err := registry.Register(ctx, "category", ""); err != nil {
		panic(err)
	}
	resolver := termmeta.NewResolver(registry, host, host, termmeta.NewDefaultCreator(host))

	id, ok := resolver.Resolve(ctx, "category", domain.ByName("electronics"))
	fmt.Println(id, ok)
	_, ok = resolver.Resolve(ctx, "post_tag", domain.ByID(5))
	fmt.Println(ok)
	// Output:
	// 1 true
	// false
}
