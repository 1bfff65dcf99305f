// Package testutil provides host doubles and database helpers for tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/termmeta/internal/termmeta/domain"
)

// CallCounts records how often each host collaborator was called.
type CallCounts struct {
	TaxonomyExists      int
	EntityTypeExists    int
	CreateEntityType    int
	DeclareRelationship int
	LookupTerm          int
	FindRelatedRecord   int
	CreateRecord        int
	LinkRecordToTerm    int
}

// MemoryHost is an in-memory domain.Host that counts calls.
// CreateRecord fails when a record with the same entity type and slug was already
// created, so duplicate backfills surface as errors.
type MemoryHost struct {
	mu sync.Mutex

	taxonomies    map[string]bool
	entityTypes   map[string]domain.EntityTypeConfig
	relationships map[string]bool
	terms         map[int64]*domain.Term
	records       map[int64]*domain.CarrierRecord
	links         map[string]int64
	createdSlugs  map[string]int64

	nextTermID   int64
	nextRecordID int64
	calls        CallCounts

	// LookupErr, when set, is returned by LookupTerm for every key.
	LookupErr error
	// FindErr, when set, is returned by FindRelatedRecord.
	FindErr error
	// CreateDelay widens the window between CreateRecord and LinkRecordToTerm.
	CreateDelay time.Duration
}

var _ domain.Host = (*MemoryHost)(nil)

// NewMemoryHost returns a host that knows the given taxonomies.
func NewMemoryHost(taxonomies ...string) *MemoryHost {
	h := &MemoryHost{
		taxonomies:    make(map[string]bool),
		entityTypes:   make(map[string]domain.EntityTypeConfig),
		relationships: make(map[string]bool),
		terms:         make(map[int64]*domain.Term),
		records:       make(map[int64]*domain.CarrierRecord),
		links:         make(map[string]int64),
		createdSlugs:  make(map[string]int64),
	}
	for _, t := range taxonomies {
		h.taxonomies[t] = true
	}
	return h
}

func linkKey(taxonomy string, termID int64) string {
	return taxonomy + "|" + strconv.FormatInt(termID, 10)
}

// AddTerm creates a term with the next free id.
func (h *MemoryHost) AddTerm(taxonomy, name, slug string) *domain.Term {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextTermID++
	return h.putTerm(taxonomy, h.nextTermID, name, slug)
}

// AddTermWithID creates a term with a fixed id.
func (h *MemoryHost) AddTermWithID(taxonomy string, id int64, name, slug string) *domain.Term {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id > h.nextTermID {
		h.nextTermID = id
	}
	return h.putTerm(taxonomy, id, name, slug)
}

func (h *MemoryHost) putTerm(taxonomy string, id int64, name, slug string) *domain.Term {
	term := &domain.Term{ID: id, Taxonomy: taxonomy, Name: name, Slug: slug}
	h.terms[id] = term
	cp := *term
	return &cp
}

// RenameTerm changes a term's name.
func (h *MemoryHost) RenameTerm(id int64, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if term, ok := h.terms[id]; ok {
		term.Name = name
	}
}

// LinkNewRecord creates and links a carrier record outside the resolver, as a host
// would for terms created after metadata support was enabled.
func (h *MemoryHost) LinkNewRecord(taxonomy string, termID int64, entityType string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextRecordID++
	id := h.nextRecordID
	h.records[id] = &domain.CarrierRecord{ID: id, GUID: uuid.NewString(), EntityType: entityType, Status: domain.RecordStatusPublish, CreatedAt: time.Now()}
	h.links[linkKey(taxonomy, termID)] = id
	return id
}

// DeleteRecord removes a carrier record and its link.
func (h *MemoryHost) DeleteRecord(recordID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.records, recordID)
	for k, id := range h.links {
		if id == recordID {
			delete(h.links, k)
		}
	}
	for k, id := range h.createdSlugs {
		if id == recordID {
			delete(h.createdSlugs, k)
		}
	}
}

// CarrierFor returns the record linked to a term without counting a call.
func (h *MemoryHost) CarrierFor(taxonomy string, termID int64) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.links[linkKey(taxonomy, termID)]
	return id, ok
}

// Counts returns a snapshot of the call counters.
func (h *MemoryHost) Counts() CallCounts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// ResetCounts zeroes the call counters.
func (h *MemoryHost) ResetCounts() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = CallCounts{}
}

// RecordCount returns the number of carrier records.
func (h *MemoryHost) RecordCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Relationships returns the declared "entityType|taxonomy" pairs, sorted.
func (h *MemoryHost) Relationships() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.relationships))
	for k := range h.relationships {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EntityType returns the config an entity type was created with.
func (h *MemoryHost) EntityType(name string) (domain.EntityTypeConfig, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cfg, ok := h.entityTypes[name]
	return cfg, ok
}

// TaxonomyExists implements domain.TaxonomyCatalog.
func (h *MemoryHost) TaxonomyExists(ctx context.Context, name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.TaxonomyExists++
	return h.taxonomies[name], nil
}

// EntityTypeExists implements domain.TaxonomyCatalog.
func (h *MemoryHost) EntityTypeExists(ctx context.Context, name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.EntityTypeExists++
	_, ok := h.entityTypes[name]
	return ok, nil
}

// CreateEntityType implements domain.TaxonomyCatalog.
func (h *MemoryHost) CreateEntityType(ctx context.Context, name string, cfg domain.EntityTypeConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.CreateEntityType++
	if _, ok := h.entityTypes[name]; ok {
		return fmt.Errorf("entity type %q already exists", name)
	}
	h.entityTypes[name] = cfg
	return nil
}

// DeclareRelationship implements domain.TaxonomyCatalog.
func (h *MemoryHost) DeclareRelationship(ctx context.Context, entityType, taxonomy string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.DeclareRelationship++
	h.relationships[entityType+"|"+taxonomy] = true
	return nil
}

// LookupTerm implements domain.TermLookup. Name lookups return the lowest matching id.
func (h *MemoryHost) LookupTerm(ctx context.Context, taxonomy string, key domain.TermKey) (*domain.Term, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.LookupTerm++
	if h.LookupErr != nil {
		return nil, h.LookupErr
	}

	if id, ok := key.ID(); ok {
		if term, found := h.terms[id]; found && term.Taxonomy == taxonomy {
			cp := *term
			return &cp, nil
		}
		return nil, domain.ErrTermNotFound
	}

	name, _ := key.Name()
	var match *domain.Term
	for _, term := range h.terms {
		if term.Taxonomy == taxonomy && term.Name == name && (match == nil || term.ID < match.ID) {
			match = term
		}
	}
	if match == nil {
		return nil, domain.ErrTermNotFound
	}
	cp := *match
	return &cp, nil
}

// FindRelatedRecord implements domain.RelationshipStore.
func (h *MemoryHost) FindRelatedRecord(ctx context.Context, term *domain.Term) (*domain.CarrierRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.FindRelatedRecord++
	if h.FindErr != nil {
		return nil, h.FindErr
	}
	id, ok := h.links[linkKey(term.Taxonomy, term.ID)]
	if !ok {
		return nil, domain.ErrCarrierNotFound
	}
	record, ok := h.records[id]
	if !ok {
		return nil, domain.ErrCarrierNotFound
	}
	cp := *record
	return &cp, nil
}

// CreateRecord implements domain.RecordWriter.
func (h *MemoryHost) CreateRecord(ctx context.Context, entityType, title, slug string, status domain.RecordStatus) (int64, error) {
	h.mu.Lock()
	h.calls.CreateRecord++
	slugKey := entityType + "|" + slug
	if existing, dup := h.createdSlugs[slugKey]; dup {
		h.mu.Unlock()
		return 0, fmt.Errorf("%w: record %d already carries %q", domain.ErrDuplicateCarrier, existing, slug)
	}
	h.nextRecordID++
	id := h.nextRecordID
	h.records[id] = &domain.CarrierRecord{
		ID:         id,
		GUID:       uuid.NewString(),
		EntityType: entityType,
		Title:      title,
		Slug:       slug,
		Status:     status,
		CreatedAt:  time.Now(),
	}
	h.createdSlugs[slugKey] = id
	delay := h.CreateDelay
	h.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return id, nil
}

// LinkRecordToTerm implements domain.RecordWriter.
func (h *MemoryHost) LinkRecordToTerm(ctx context.Context, recordID, termID int64, taxonomy string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.LinkRecordToTerm++
	key := linkKey(taxonomy, termID)
	if _, ok := h.links[key]; ok {
		return domain.ErrDuplicateCarrier
	}
	h.links[key] = recordID
	return nil
}
