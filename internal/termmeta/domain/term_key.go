package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// KeySeparator joins a taxonomy name and a term key in cache keys, so taxonomy names
// may not contain it.
const KeySeparator = "|"

// ValidateTaxonomyName checks that name can be used as a taxonomy.
func ValidateTaxonomyName(name string) error {
	if name == "" {
		return ErrEmptyTaxonomy
	}
	if strings.Contains(name, KeySeparator) {
		return fmt.Errorf("%w: %q", ErrInvalidTaxonomyName, name)
	}
	return nil
}

// TermKey identifies a term within a taxonomy either by numeric id or by name.
// The zero value is invalid; construct keys with ByID, ByName or ParseTermKey.
type TermKey struct {
	id     int64
	name   string
	byID   bool
	byName bool
}

// ByID returns a key that looks a term up by its numeric id.
func ByID(id int64) TermKey {
	return TermKey{id: id, byID: true}
}

// ByName returns a key that looks a term up by its name.
func ByName(name string) TermKey {
	return TermKey{name: name, byName: true}
}

// ParseTermKey converts user input into a key. Input made only of digits is an id,
// anything else is a name.
func ParseTermKey(s string) (TermKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TermKey{}, ErrInvalidTermKey
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
		return ByID(id), nil
	}
	return ByName(s), nil
}

// ID returns the numeric id and true for id keys.
func (k TermKey) ID() (int64, bool) {
	return k.id, k.byID
}

// Name returns the term name and true for name keys.
func (k TermKey) Name() (string, bool) {
	return k.name, k.byName
}

// IsValid reports whether the key was built by one of the constructors and is usable.
func (k TermKey) IsValid() bool {
	switch {
	case k.byID:
		return k.id > 0
	case k.byName:
		return k.name != ""
	default:
		return false
	}
}

// String returns the key in the form used by cache keys and log lines.
func (k TermKey) String() string {
	switch {
	case k.byID:
		return "id:" + strconv.FormatInt(k.id, 10)
	case k.byName:
		return "name:" + k.name
	default:
		return "invalid"
	}
}

// KeysFor returns both keys a resolved term is reachable by.
func KeysFor(term *Term) []TermKey {
	return []TermKey{ByID(term.ID), ByName(term.Name)}
}
