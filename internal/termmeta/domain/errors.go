package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTaxonomy is returned by registration when the host does not know the taxonomy.
	ErrUnknownTaxonomy = errors.New("unknown taxonomy")

	// ErrConflictingRegistration is returned when a taxonomy is registered again with a
	// different carrier type.
	ErrConflictingRegistration = errors.New("taxonomy already registered with a different carrier type")

	// ErrEmptyTaxonomy is returned when a taxonomy name is empty.
	ErrEmptyTaxonomy = errors.New("taxonomy name cannot be empty")

	// ErrInvalidTaxonomyName is returned when a taxonomy name contains KeySeparator.
	ErrInvalidTaxonomyName = errors.New("taxonomy name must not contain " + KeySeparator)

	// ErrInvalidTermKey is returned when a term key is neither a positive id nor a name.
	ErrInvalidTermKey = errors.New("invalid term key")

	// ErrTermNotFound is reported by TermLookup when no term matches the key.
	ErrTermNotFound = errors.New("term not found")

	// ErrCarrierNotFound is reported by RelationshipStore when a term has no carrier record.
	ErrCarrierNotFound = errors.New("carrier record not found")

	// ErrCarrierUnavailable describes a term still without a carrier after backfill.
	ErrCarrierUnavailable = errors.New("carrier record unavailable")

	// ErrDuplicateCarrier is reported by RecordWriter when a term is already linked to a record.
	ErrDuplicateCarrier = errors.New("term already has a carrier record")
)

// RegistrationError describes a failed taxonomy registration.
type RegistrationError struct {
	Taxonomy    string
	CarrierType string
	Err         error
}

func (e *RegistrationError) Error() string {
	if e.CarrierType == "" {
		return fmt.Sprintf("register taxonomy %q: %v", e.Taxonomy, e.Err)
	}
	return fmt.Sprintf("register taxonomy %q with carrier type %q: %v", e.Taxonomy, e.CarrierType, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
