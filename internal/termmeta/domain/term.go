// Package domain provides the pure domain layer for term metadata carriers with no
// infrastructure dependencies.
//
// This package follows the same layering as the rest of the module:
//   - Contains only standard library code
//   - Defines the host-owned entities (Term, CarrierRecord) the resolver works with
//   - Defines the collaborator interfaces the host platform implements
//   - Provides domain-specific sentinel errors
//
// Terms and carrier records are owned by the host. The resolver only ever reads them
// through TermLookup and RelationshipStore and writes them through RecordWriter.
package domain

import (
	"strings"
	"time"
)

// Term is a single value within a taxonomy, as reported by the host.
type Term struct {
	ID       int64
	Taxonomy string
	Name     string
	Slug     string
}

// RecordStatus is the publication state of a carrier record.
type RecordStatus string

const (
	// RecordStatusPublish marks a carrier record as published. Backfilled records use it.
	RecordStatusPublish RecordStatus = "publish"

	// RecordStatusDraft marks a carrier record that exists but is not yet published.
	RecordStatusDraft RecordStatus = "draft"
)

// IsValid returns true if the status is a recognized record status.
func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusPublish, RecordStatusDraft:
		return true
	default:
		return false
	}
}

// CarrierRecord is the auxiliary record that hosts metadata for exactly one term.
type CarrierRecord struct {
	ID         int64
	GUID       string
	EntityType string
	Title      string
	Slug       string
	Status     RecordStatus
	CreatedAt  time.Time
}

// EntityTypeConfig is the configuration a carrier entity type is created with.
type EntityTypeConfig struct {
	Label string

	// ShowUI controls whether the host lists records of this type in its admin screens.
	ShowUI bool

	// Rewrite controls whether the host routes public URLs to records of this type.
	Rewrite bool
}

// DefaultEntityTypeConfig returns the minimal, non-listable, unrouted configuration used
// when a carrier type has to be created during registration.
func DefaultEntityTypeConfig(taxonomy string) EntityTypeConfig {
	return EntityTypeConfig{
		Label:   taxonomy + " taxonomy meta",
		ShowUI:  false,
		Rewrite: false,
	}
}

// Slugify derives a URL slug from a term name: lowercase ASCII letters and digits,
// with every other run of characters collapsed into a single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
