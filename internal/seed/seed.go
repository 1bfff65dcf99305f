// Package seed loads taxonomy and term fixtures from YAML or TOML files and applies
// them to the host store.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/termmeta/internal/log"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
)

// File is the decoded content of a seed file.
type File struct {
	Taxonomies []Taxonomy `yaml:"taxonomies" toml:"taxonomies"`
}

// Taxonomy declares a taxonomy, optionally registers it for metadata, and lists its terms.
type Taxonomy struct {
	Name        string `yaml:"name" toml:"name"`
	Label       string `yaml:"label" toml:"label"`
	Register    bool   `yaml:"register" toml:"register"`
	CarrierType string `yaml:"carrier_type" toml:"carrier_type"`
	Terms       []Term `yaml:"terms" toml:"terms"`
}

// Term is a seeded term. An empty slug is derived from the name.
type Term struct {
	Name string `yaml:"name" toml:"name"`
	Slug string `yaml:"slug" toml:"slug"`
}

// ErrUnsupportedFormat is returned for files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported seed format")

// LoadFile decodes a seed file, choosing the format by extension.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	case ".toml":
		return DecodeTOML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// DecodeYAML decodes a YAML seed document. Unknown keys are rejected.
func DecodeYAML(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing yaml seed: %w", err)
	}
	return &f, f.Validate()
}

// DecodeTOML decodes a TOML seed document. Unknown keys are rejected.
func DecodeTOML(data []byte) (*File, error) {
	var f File
	meta, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parsing toml seed: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("parsing toml seed: unknown keys %s", strings.Join(keys, ", "))
	}
	return &f, f.Validate()
}

// Validate checks that every taxonomy has a usable name and every term has a name.
func (f *File) Validate() error {
	for i, tax := range f.Taxonomies {
		if err := domain.ValidateTaxonomyName(tax.Name); err != nil {
			return fmt.Errorf("taxonomies %d: %w", i, err)
		}
		for j, term := range tax.Terms {
			if term.Name == "" {
				return fmt.Errorf("taxonomies %d (%s) terms %d: name is required", i, tax.Name, j)
			}
		}
	}
	return nil
}

// Registrations returns the taxonomies marked for metadata registration.
func (f *File) Registrations() []Taxonomy {
	var out []Taxonomy
	for _, tax := range f.Taxonomies {
		if tax.Register {
			out = append(out, tax)
		}
	}
	return out
}

// Store is the subset of the host store the seeder writes to.
type Store interface {
	CreateTaxonomy(ctx context.Context, name, label string) error
	CreateTerm(ctx context.Context, taxonomy, name, slug string) (*domain.Term, error)
	LookupTerm(ctx context.Context, taxonomy string, key domain.TermKey) (*domain.Term, error)
}

// Result summarizes an Apply run.
type Result struct {
	Taxonomies int
	Created    []*domain.Term
	Existing   []*domain.Term
}

// Apply creates every taxonomy and term in f. Terms whose name already exists in the
// taxonomy are left untouched, so applying the same file twice is harmless.
func Apply(ctx context.Context, store Store, f *File) (*Result, error) {
	res := &Result{}
	for _, tax := range f.Taxonomies {
		if err := store.CreateTaxonomy(ctx, tax.Name, tax.Label); err != nil {
			return res, fmt.Errorf("seeding taxonomy %q: %w", tax.Name, err)
		}
		res.Taxonomies++

		for _, t := range tax.Terms {
			existing, err := store.LookupTerm(ctx, tax.Name, domain.ByName(t.Name))
			if err == nil {
				res.Existing = append(res.Existing, existing)
				continue
			}
			if !errors.Is(err, domain.ErrTermNotFound) {
				return res, fmt.Errorf("seeding term %q: %w", t.Name, err)
			}

			created, err := store.CreateTerm(ctx, tax.Name, t.Name, t.Slug)
			if err != nil {
				return res, fmt.Errorf("seeding term %q: %w", t.Name, err)
			}
			res.Created = append(res.Created, created)
		}
	}
	log.Info(log.CatSeed, "applied seed", "taxonomies", res.Taxonomies, "created", len(res.Created), "existing", len(res.Existing))
	return res, nil
}
