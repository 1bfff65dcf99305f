package termmeta

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/termmeta/internal/log"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
	"github.com/zjrosen/termmeta/internal/tracing"
)

// CarrierTypeSuffix is appended to the sanitized taxonomy name to derive a carrier type.
const CarrierTypeSuffix = "_tax_meta"

var invalidKeyChars = regexp.MustCompile(`[^a-z0-9_\-]`)

// DefaultCarrierType derives the carrier entity type name for a taxonomy,
// e.g. "category" becomes "category_tax_meta".
func DefaultCarrierType(taxonomy string) string {
	return invalidKeyChars.ReplaceAllString(strings.ToLower(taxonomy), "") + CarrierTypeSuffix
}

// Registration pairs a taxonomy with its carrier entity type.
type Registration struct {
	Taxonomy    string
	CarrierType string
}

// Registry tracks which taxonomies have metadata enabled.
// Registrations are never removed; a taxonomy keeps its carrier type for the
// lifetime of the Registry.
type Registry struct {
	mu      sync.RWMutex
	catalog domain.TaxonomyCatalog
	entries map[string]string
	tracer  trace.Tracer
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryTracer sets the tracer used for registration spans.
func WithRegistryTracer(tracer trace.Tracer) RegistryOption {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// NewRegistry creates an empty registry backed by the host catalog.
func NewRegistry(catalog domain.TaxonomyCatalog, opts ...RegistryOption) *Registry {
	r := &Registry{
		catalog: catalog,
		entries: make(map[string]string),
		tracer:  noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register enables metadata for taxonomy using carrierType as its carrier entity type.
// An empty carrierType keeps the existing registration or falls back to
// DefaultCarrierType. A missing carrier type is created with the minimal default
// configuration before the relationship is declared.
//
// Registering the same pair again is a no-op. Registering a taxonomy again with a
// different carrier type fails with ErrConflictingRegistration.
func (r *Registry) Register(ctx context.Context, taxonomy, carrierType string) (Registration, error) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanRegister)
	defer span.End()

	reg, err := r.register(ctx, taxonomy, carrierType)
	span.SetAttributes(
		attribute.String(tracing.AttrTaxonomy, taxonomy),
		attribute.String(tracing.AttrCarrierType, reg.CarrierType),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatRegistry, "registration failed", err, "taxonomy", taxonomy, "carrier_type", carrierType)
		return reg, err
	}
	return reg, nil
}

func (r *Registry) register(ctx context.Context, taxonomy, carrierType string) (Registration, error) {
	if err := domain.ValidateTaxonomyName(taxonomy); err != nil {
		return Registration{}, &domain.RegistrationError{Taxonomy: taxonomy, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[taxonomy]; ok {
		if carrierType == "" || carrierType == existing {
			log.Debug(log.CatRegistry, "taxonomy already registered", "taxonomy", taxonomy, "carrier_type", existing)
			return Registration{Taxonomy: taxonomy, CarrierType: existing}, nil
		}
		return Registration{Taxonomy: taxonomy, CarrierType: existing}, &domain.RegistrationError{
			Taxonomy:    taxonomy,
			CarrierType: carrierType,
			Err:         fmt.Errorf("%w: registered as %q", domain.ErrConflictingRegistration, existing),
		}
	}

	if carrierType == "" {
		carrierType = DefaultCarrierType(taxonomy)
	}
	reg := Registration{Taxonomy: taxonomy, CarrierType: carrierType}
	fail := func(err error) (Registration, error) {
		return reg, &domain.RegistrationError{Taxonomy: taxonomy, CarrierType: carrierType, Err: err}
	}

	exists, err := r.catalog.TaxonomyExists(ctx, taxonomy)
	if err != nil {
		return fail(fmt.Errorf("check taxonomy: %w", err))
	}
	if !exists {
		return fail(domain.ErrUnknownTaxonomy)
	}

	typeExists, err := r.catalog.EntityTypeExists(ctx, carrierType)
	if err != nil {
		return fail(fmt.Errorf("check carrier type: %w", err))
	}
	if !typeExists {
		if err := r.catalog.CreateEntityType(ctx, carrierType, domain.DefaultEntityTypeConfig(taxonomy)); err != nil {
			return fail(fmt.Errorf("create carrier type: %w", err))
		}
		log.Info(log.CatRegistry, "created carrier type", "carrier_type", carrierType, "taxonomy", taxonomy)
	}

	if err := r.catalog.DeclareRelationship(ctx, carrierType, taxonomy); err != nil {
		return fail(fmt.Errorf("declare relationship: %w", err))
	}

	r.entries[taxonomy] = carrierType
	log.Info(log.CatRegistry, "registered taxonomy", "taxonomy", taxonomy, "carrier_type", carrierType)
	return reg, nil
}

// CarrierTypeFor returns the carrier type registered for taxonomy.
func (r *Registry) CarrierTypeFor(taxonomy string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	carrierType, ok := r.entries[taxonomy]
	return carrierType, ok
}

// IsRegistered reports whether taxonomy has metadata enabled.
func (r *Registry) IsRegistered(taxonomy string) bool {
	_, ok := r.CarrierTypeFor(taxonomy)
	return ok
}

// List returns all registrations sorted by taxonomy name.
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]Registration, 0, len(r.entries))
	for taxonomy, carrierType := range r.entries {
		regs = append(regs, Registration{Taxonomy: taxonomy, CarrierType: carrierType})
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].Taxonomy < regs[j].Taxonomy })
	return regs
}
