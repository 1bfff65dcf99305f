package termmeta

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/zjrosen/termmeta/internal/cachemanager"
	"github.com/zjrosen/termmeta/internal/log"
	"github.com/zjrosen/termmeta/internal/metrics"
	"github.com/zjrosen/termmeta/internal/pubsub"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
	"github.com/zjrosen/termmeta/internal/tracing"
)

// CarrierEvent is the payload of events published by the Resolver.
type CarrierEvent struct {
	Taxonomy  string
	TermID    int64
	TermName  string
	CarrierID int64
}

// SaveKind tells TermSaved whether the term was just created or edited.
type SaveKind string

const (
	SaveAdd  SaveKind = "add"
	SaveEdit SaveKind = "edit"
)

// Resolver maps terms of registered taxonomies to carrier record ids.
// It is safe for concurrent use.
type Resolver struct {
	registry *Registry
	terms    domain.TermLookup
	store    domain.RelationshipStore
	creator  CarrierCreator

	cache   cachemanager.CacheManager[string, int64]
	flights singleflight.Group

	// mu guards aliases and epoch. aliases remembers the name key cached for each
	// term id so an edited term's old name can be evicted. epoch is bumped by every
	// invalidation; a resolution that started before the bump is not cached.
	mu      sync.Mutex
	aliases map[string]string
	epoch   uint64

	events  *pubsub.Broker[CarrierEvent]
	tracer  trace.Tracer
	metrics *metrics.ResolverMetrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache replaces the default in-memory, non-expiring cache.
func WithCache(cache cachemanager.CacheManager[string, int64]) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithEventBus publishes resolution events on bus.
func WithEventBus(bus *pubsub.Broker[CarrierEvent]) Option {
	return func(r *Resolver) {
		r.events = bus
	}
}

// WithTracer sets the tracer used for resolution spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Resolver) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithMetrics records resolution counters in m.
func WithMetrics(m *metrics.ResolverMetrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver creates a resolver. A nil creator defers creation for every term.
func NewResolver(
	registry *Registry,
	terms domain.TermLookup,
	store domain.RelationshipStore,
	creator CarrierCreator,
	opts ...Option,
) *Resolver {
	if creator == nil {
		creator = DeferCreator{}
	}
	r := &Resolver{
		registry: registry,
		terms:    terms,
		store:    store,
		creator:  creator,
		aliases:  make(map[string]string),
		tracer:   noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cachemanager.NewInMemoryCacheManager[string, int64]("carrier-ids", cachemanager.NoExpiration, cachemanager.NoCleanup)
	}
	return r
}

// Registry returns the registry the resolver consults.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Registrations returns the registered taxonomies sorted by name.
func (r *Resolver) Registrations() []Registration {
	return r.registry.List()
}

func cacheKey(taxonomy string, key domain.TermKey) string {
	return taxonomy + domain.KeySeparator + key.String()
}

func flightKey(taxonomy string, termID int64) string {
	return taxonomy + domain.KeySeparator + strconv.FormatInt(termID, 10)
}

// Resolve returns the carrier record id for the term identified by key in taxonomy.
// It returns false when the taxonomy is not registered, the term does not exist, or the
// term still has no carrier record after one creation attempt. Only hits are cached.
func (r *Resolver) Resolve(ctx context.Context, taxonomy string, key domain.TermKey) (int64, bool) {
	id, _, ok := r.resolve(ctx, taxonomy, key)
	return id, ok
}

// resolve also returns the looked up term; it is nil on a cache hit for key.
func (r *Resolver) resolve(ctx context.Context, taxonomy string, key domain.TermKey) (int64, *domain.Term, bool) {
	carrierType, ok := r.registry.CarrierTypeFor(taxonomy)
	if !ok {
		r.metrics.ObserveResolution(taxonomy, metrics.OutcomeDisabled)
		return 0, nil, false
	}
	if !key.IsValid() {
		log.Warn(log.CatResolver, "invalid term key", "taxonomy", taxonomy)
		return 0, nil, false
	}

	if id, hit := r.cache.Get(ctx, cacheKey(taxonomy, key)); hit {
		r.metrics.ObserveResolution(taxonomy, metrics.OutcomeCacheHit)
		return id, nil, true
	}
	epoch := r.currentEpoch()

	ctx, span := r.tracer.Start(ctx, tracing.SpanResolve)
	defer span.End()
	span.SetAttributes(
		attribute.String(tracing.AttrTaxonomy, taxonomy),
		attribute.String(tracing.AttrTermKey, key.String()),
		attribute.Bool(tracing.AttrCacheHit, false),
	)

	span.AddEvent(tracing.EventTermLookup)
	term, err := r.terms.LookupTerm(ctx, taxonomy, key)
	if err != nil {
		if !errors.Is(err, domain.ErrTermNotFound) {
			log.ErrorErr(log.CatResolver, "term lookup failed", err, "taxonomy", taxonomy, "key", key)
		}
		span.SetAttributes(attribute.String(tracing.AttrOutcome, metrics.OutcomeTermNotFound))
		r.metrics.ObserveResolution(taxonomy, metrics.OutcomeTermNotFound)
		return 0, nil, false
	}
	if term.Taxonomy != taxonomy {
		scoped := *term
		scoped.Taxonomy = taxonomy
		term = &scoped
	}
	span.SetAttributes(attribute.Int64(tracing.AttrTermID, term.ID))

	_, byName := key.Name()
	if byName {
		// The name may be new to the cache while the term's id is not.
		if id, hit := r.cache.Get(ctx, cacheKey(taxonomy, domain.ByID(term.ID))); hit {
			r.remember(ctx, term, id, true, epoch)
			span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, true))
			r.metrics.ObserveResolution(taxonomy, metrics.OutcomeCacheHit)
			return id, term, true
		}
	}

	result, err, _ := r.flights.Do(flightKey(taxonomy, term.ID), func() (any, error) {
		flightEpoch := r.currentEpoch()
		res, err := r.resolveDurable(context.WithoutCancel(ctx), carrierType, term)
		res.epoch = flightEpoch
		return res, err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrCarrierUnavailable) {
			log.ErrorErr(log.CatResolver, "carrier resolution failed", err, "taxonomy", taxonomy, "term_id", term.ID)
		}
		span.SetAttributes(attribute.String(tracing.AttrOutcome, metrics.OutcomeUnavailable))
		r.metrics.ObserveResolution(taxonomy, metrics.OutcomeUnavailable)
		r.publish(pubsub.UnresolvedEvent, CarrierEvent{Taxonomy: taxonomy, TermID: term.ID, TermName: term.Name})
		return 0, term, false
	}

	res := result.(durableResult)
	// A shared flight may have read the store before this caller's epoch.
	r.remember(ctx, term, res.carrierID, byName, min(epoch, res.epoch))

	outcome := metrics.OutcomeDurableHit
	eventType := pubsub.ResolvedEvent
	if res.created {
		outcome = metrics.OutcomeBackfilled
		eventType = pubsub.CreatedEvent
	}
	span.SetAttributes(
		attribute.String(tracing.AttrOutcome, outcome),
		attribute.Int64(tracing.AttrCarrierID, res.carrierID),
	)
	r.metrics.ObserveResolution(taxonomy, outcome)
	r.publish(eventType, CarrierEvent{Taxonomy: taxonomy, TermID: term.ID, TermName: term.Name, CarrierID: res.carrierID})
	return res.carrierID, term, true
}

type durableResult struct {
	carrierID int64
	created   bool
	epoch     uint64
}

// resolveDurable runs inside a singleflight call, so for one (taxonomy, term id) at most
// one lookup-create-recheck cycle is in flight. The first lookup happens inside the
// flight: a caller arriving after a finished creation sees the new record instead of
// creating a second one.
func (r *Resolver) resolveDurable(ctx context.Context, carrierType string, term *domain.Term) (durableResult, error) {
	span := trace.SpanFromContext(ctx)

	id, err := r.findCarrier(ctx, term)
	if err == nil {
		return durableResult{carrierID: id}, nil
	}
	if !errors.Is(err, domain.ErrCarrierNotFound) {
		return durableResult{}, err
	}

	span.AddEvent(tracing.EventCarrierMissing)
	ctx, backfill := r.tracer.Start(ctx, tracing.SpanBackfill)
	createErr := r.creator.CreateCarrier(ctx, MissingCarrier{
		Taxonomy:    term.Taxonomy,
		CarrierType: carrierType,
		Term:        term,
	})
	if createErr != nil {
		backfill.RecordError(createErr)
		log.ErrorErr(log.CatCreator, "carrier creation failed", createErr, "taxonomy", term.Taxonomy, "term_id", term.ID)
	}
	backfill.End()

	id, err = r.findCarrier(ctx, term)
	switch {
	case err == nil:
		r.metrics.ObserveBackfill(term.Taxonomy, "ok")
		return durableResult{carrierID: id, created: true}, nil
	case createErr != nil:
		r.metrics.ObserveBackfill(term.Taxonomy, "error")
	default:
		r.metrics.ObserveBackfill(term.Taxonomy, "deferred")
	}
	if errors.Is(err, domain.ErrCarrierNotFound) {
		return durableResult{}, domain.ErrCarrierUnavailable
	}
	return durableResult{}, err
}

func (r *Resolver) findCarrier(ctx context.Context, term *domain.Term) (int64, error) {
	trace.SpanFromContext(ctx).AddEvent(tracing.EventDurableLookup)
	r.metrics.ObserveDurableLookup(term.Taxonomy)

	record, err := r.store.FindRelatedRecord(ctx, term)
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}

// remember caches carrierID under the term id, and under the term name when the name
// was the requested key. Term names are not unique, so only a name lookup answered by
// the host may claim the name key. Nothing is cached when an invalidation happened
// since epoch was read.
func (r *Resolver) remember(ctx context.Context, term *domain.Term, carrierID int64, byName bool, epoch uint64) {
	idKey := cacheKey(term.Taxonomy, domain.ByID(term.ID))

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		log.Debug(log.CatCache, "skipping cache write after invalidation", "taxonomy", term.Taxonomy, "term_id", term.ID)
		return
	}
	r.cache.Set(ctx, idKey, carrierID, cachemanager.NoExpiration)
	if byName {
		nameKey := cacheKey(term.Taxonomy, domain.ByName(term.Name))
		r.cache.Set(ctx, nameKey, carrierID, cachemanager.NoExpiration)
		r.aliases[idKey] = nameKey
	}
	r.mu.Unlock()

	trace.SpanFromContext(ctx).AddEvent(tracing.EventCacheStored)
	r.metrics.SetCacheEntries(r.cache.Len())
}

func (r *Resolver) currentEpoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// bumpEpoch must be called before evicting so in-flight resolutions do not write back.
func (r *Resolver) bumpEpoch() {
	r.mu.Lock()
	r.epoch++
	r.mu.Unlock()
}

// Invalidate evicts the cached id of the term identified by key. When the term can still
// be looked up, every key it is cached under is evicted. The durable relationship is
// not touched; the next Resolve queries it again.
func (r *Resolver) Invalidate(ctx context.Context, taxonomy string, key domain.TermKey) {
	r.bumpEpoch()
	keys := []string{cacheKey(taxonomy, key)}
	var termID int64
	if term, err := r.terms.LookupTerm(ctx, taxonomy, key); err == nil {
		termID = term.ID
		for _, k := range domain.KeysFor(term) {
			keys = append(keys, cacheKey(taxonomy, k))
		}
	}
	if id, ok := key.ID(); ok {
		termID = id
	}
	if termID != 0 {
		keys = append(keys, r.forgetAlias(cacheKey(taxonomy, domain.ByID(termID)))...)
	}

	evicted := r.evict(ctx, keys)
	log.Debug(log.CatResolver, "invalidated term", "taxonomy", taxonomy, "key", key, "evicted", evicted)
	r.metrics.ObserveInvalidation(taxonomy, evicted)
	if evicted > 0 {
		r.publish(pubsub.InvalidatedEvent, CarrierEvent{Taxonomy: taxonomy, TermID: termID})
	}
}

// InvalidateTaxonomy evicts every cached id of taxonomy.
func (r *Resolver) InvalidateTaxonomy(ctx context.Context, taxonomy string) {
	r.bumpEpoch()
	prefix := taxonomy + domain.KeySeparator
	evicted, _ := r.cache.DeletePrefix(ctx, prefix)

	r.mu.Lock()
	for k := range r.aliases {
		if strings.HasPrefix(k, prefix) {
			delete(r.aliases, k)
		}
	}
	r.mu.Unlock()

	log.Debug(log.CatResolver, "invalidated taxonomy", "taxonomy", taxonomy, "evicted", evicted)
	r.metrics.ObserveInvalidation(taxonomy, evicted)
	r.metrics.SetCacheEntries(r.cache.Len())
	if evicted > 0 {
		r.publish(pubsub.InvalidatedEvent, CarrierEvent{Taxonomy: taxonomy})
	}
}

// Flush evicts every cached id.
func (r *Resolver) Flush(ctx context.Context) {
	r.mu.Lock()
	r.epoch++
	r.aliases = make(map[string]string)
	_ = r.cache.Flush(ctx)
	r.mu.Unlock()

	log.Debug(log.CatResolver, "flushed resolution cache")
	r.metrics.SetCacheEntries(0)
	r.publish(pubsub.InvalidatedEvent, CarrierEvent{})
}

// TermSaved is the notification for a term that was just created or edited. Cached
// entries for the term id are evicted first, since an edit may have renamed the term,
// and the term is then resolved, which backfills its carrier when missing. The name key
// of the term's current name is evicted too: the save may have changed which term the
// host returns for that name.
func (r *Resolver) TermSaved(ctx context.Context, taxonomy string, termID int64, kind SaveKind) (int64, bool) {
	if !r.registry.IsRegistered(taxonomy) {
		return 0, false
	}
	idKey := cacheKey(taxonomy, domain.ByID(termID))
	if kind == SaveEdit {
		r.bumpEpoch()
		keys := append([]string{idKey}, r.forgetAlias(idKey)...)
		evicted := r.evict(ctx, keys)
		r.metrics.ObserveInvalidation(taxonomy, evicted)
	}
	log.Debug(log.CatResolver, "term saved", "taxonomy", taxonomy, "term_id", termID, "kind", kind)

	id, term, ok := r.resolve(ctx, taxonomy, domain.ByID(termID))
	if term != nil {
		nameKey := cacheKey(taxonomy, domain.ByName(term.Name))
		r.mu.Lock()
		owned := r.aliases[idKey] == nameKey
		r.mu.Unlock()
		if !owned {
			r.evict(ctx, []string{nameKey})
		}
	}
	return id, ok
}

func (r *Resolver) forgetAlias(idKey string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	nameKey, ok := r.aliases[idKey]
	if !ok {
		return nil
	}
	delete(r.aliases, idKey)
	return []string{nameKey}
}

func (r *Resolver) evict(ctx context.Context, keys []string) int {
	evicted := 0
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := r.cache.Get(ctx, k); ok {
			evicted++
		}
	}
	for k := range seen {
		_ = r.cache.Delete(ctx, k)
	}
	r.metrics.SetCacheEntries(r.cache.Len())
	return evicted
}

func (r *Resolver) publish(eventType pubsub.EventType, payload CarrierEvent) {
	if r.events != nil {
		r.events.Publish(eventType, payload)
	}
}
