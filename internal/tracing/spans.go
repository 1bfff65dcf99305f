package tracing

// Span attribute keys.
const (
	AttrTaxonomy    = "termmeta.taxonomy"
	AttrCarrierType = "termmeta.carrier_type"
	AttrTermKey     = "termmeta.term.key"
	AttrTermID      = "termmeta.term.id"
	AttrCarrierID   = "termmeta.carrier.id"
	AttrOutcome     = "termmeta.outcome"
	AttrCacheHit    = "termmeta.cache.hit"
)

// Span names.
const (
	SpanRegister = "registry.register"
	SpanResolve  = "resolver.resolve"
	SpanBackfill = "resolver.backfill"
)

// Span event names.
const (
	EventTermLookup     = "term.lookup"
	EventDurableLookup  = "relationship.lookup"
	EventCarrierMissing = "carrier.missing"
	EventCacheStored    = "cache.stored"
)
