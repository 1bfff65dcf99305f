package domain

import "context"

// TaxonomyCatalog answers schema-level questions about the host and records schema changes.
type TaxonomyCatalog interface {
	// TaxonomyExists reports whether the host knows the taxonomy.
	TaxonomyExists(ctx context.Context, name string) (bool, error)

	// EntityTypeExists reports whether an entity type with this name is defined.
	EntityTypeExists(ctx context.Context, name string) (bool, error)

	// CreateEntityType defines a new entity type.
	CreateEntityType(ctx context.Context, name string, cfg EntityTypeConfig) error

	// DeclareRelationship durably declares that records of entityType attach to terms of taxonomy.
	// Declaring an existing relationship again is a no-op.
	DeclareRelationship(ctx context.Context, entityType, taxonomy string) error
}

// TermLookup resolves term keys into terms.
type TermLookup interface {
	// LookupTerm returns the term matching key in taxonomy.
	// Returns ErrTermNotFound if no term matches.
	LookupTerm(ctx context.Context, taxonomy string, key TermKey) (*Term, error)
}

// RelationshipStore is the durable source of truth linking terms to carrier records.
type RelationshipStore interface {
	// FindRelatedRecord returns the carrier record linked to term.
	// Returns ErrCarrierNotFound if the term has no carrier record.
	FindRelatedRecord(ctx context.Context, term *Term) (*CarrierRecord, error)
}

// RecordWriter creates carrier records and links them to terms.
type RecordWriter interface {
	// CreateRecord inserts a record of entityType and returns its id.
	CreateRecord(ctx context.Context, entityType, title, slug string, status RecordStatus) (int64, error)

	// LinkRecordToTerm durably links a record to a term.
	// Returns ErrDuplicateCarrier if the term is already linked to another record.
	LinkRecordToTerm(ctx context.Context, recordID, termID int64, taxonomy string) error
}

// Host is the full set of collaborators a host platform provides.
type Host interface {
	TaxonomyCatalog
	TermLookup
	RelationshipStore
	RecordWriter
}
