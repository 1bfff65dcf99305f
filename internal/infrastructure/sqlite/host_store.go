package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-sqlite3"

	"github.com/zjrosen/termmeta/internal/log"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
)

// HostStore implements domain.Host on SQLite. It also exposes the administrative
// operations the CLI and seeder use to manage taxonomies and terms.
type HostStore struct {
	db *sql.DB
}

var _ domain.Host = (*HostStore)(nil)

func newHostStore(db *sql.DB) *HostStore {
	return &HostStore{db: db}
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	return errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) || errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY)
}

// TaxonomyExists implements domain.TaxonomyCatalog.
func (s *HostStore) TaxonomyExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM taxonomies WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check taxonomy: %w", err)
	}
	return exists, nil
}

// EntityTypeExists implements domain.TaxonomyCatalog.
func (s *HostStore) EntityTypeExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM entity_types WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check entity type: %w", err)
	}
	return exists, nil
}

// CreateEntityType implements domain.TaxonomyCatalog.
func (s *HostStore) CreateEntityType(ctx context.Context, name string, cfg domain.EntityTypeConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_types (name, label, show_ui, rewrite) VALUES (?, ?, ?, ?)`,
		name, cfg.Label, cfg.ShowUI, cfg.Rewrite,
	)
	if err != nil {
		return fmt.Errorf("failed to create entity type %q: %w", name, err)
	}
	log.Debug(log.CatDB, "created entity type", "name", name, "label", cfg.Label)
	return nil
}

// DeclareRelationship implements domain.TaxonomyCatalog.
func (s *HostStore) DeclareRelationship(ctx context.Context, entityType, taxonomy string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO relationships (entity_type, taxonomy) VALUES (?, ?)`,
		entityType, taxonomy,
	)
	if err != nil {
		return fmt.Errorf("failed to declare relationship %s -> %s: %w", entityType, taxonomy, err)
	}
	return nil
}

// LookupTerm implements domain.TermLookup. Name lookups return the oldest matching term.
func (s *HostStore) LookupTerm(ctx context.Context, taxonomy string, key domain.TermKey) (*domain.Term, error) {
	var row *sql.Row
	if id, ok := key.ID(); ok {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+termColumns+` FROM terms WHERE taxonomy = ? AND id = ?`, taxonomy, id)
	} else if name, ok := key.Name(); ok {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+termColumns+` FROM terms WHERE taxonomy = ? AND name = ? ORDER BY id LIMIT 1`, taxonomy, name)
	} else {
		return nil, domain.ErrInvalidTermKey
	}

	model, err := scanTerm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTermNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up term %s: %w", key, err)
	}
	return model.toDomain(), nil
}

// FindRelatedRecord implements domain.RelationshipStore.
func (s *HostStore) FindRelatedRecord(ctx context.Context, term *domain.Term) (*domain.CarrierRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+`
		 FROM record_terms rt JOIN records r ON r.id = rt.record_id
		 WHERE rt.taxonomy = ? AND rt.term_id = ?`,
		term.Taxonomy, term.ID,
	)
	model, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCarrierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find carrier record: %w", err)
	}
	return model.toDomain(), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRecord(ctx context.Context, ex execer, entityType, title, slug string, status domain.RecordStatus) (int64, error) {
	result, err := ex.ExecContext(ctx,
		`INSERT INTO records (guid, entity_type, title, slug, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), entityType, title, slug, string(status), time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

func insertLink(ctx context.Context, ex execer, recordID, termID int64, taxonomy string) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO record_terms (record_id, term_id, taxonomy) VALUES (?, ?, ?)`,
		recordID, termID, taxonomy,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("term %d in %s: %w", termID, taxonomy, domain.ErrDuplicateCarrier)
	}
	if err != nil {
		return fmt.Errorf("failed to link record %d: %w", recordID, err)
	}
	return nil
}

// CreateRecord implements domain.RecordWriter.
func (s *HostStore) CreateRecord(ctx context.Context, entityType, title, slug string, status domain.RecordStatus) (int64, error) {
	return insertRecord(ctx, s.db, entityType, title, slug, status)
}

// LinkRecordToTerm implements domain.RecordWriter.
func (s *HostStore) LinkRecordToTerm(ctx context.Context, recordID, termID int64, taxonomy string) error {
	return insertLink(ctx, s.db, recordID, termID, taxonomy)
}

// CreateLinkedRecord creates a record and links it to a term in one transaction.
// When the term already has a carrier the transaction is rolled back and
// ErrDuplicateCarrier is returned.
func (s *HostStore) CreateLinkedRecord(ctx context.Context, entityType, title, slug string, status domain.RecordStatus, termID int64, taxonomy string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertRecord(ctx, tx, entityType, title, slug, status)
	if err != nil {
		return 0, err
	}
	if err := insertLink(ctx, tx, id, termID, taxonomy); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit carrier record: %w", err)
	}
	return id, nil
}

// CreateTaxonomy adds a taxonomy. Adding an existing taxonomy is a no-op.
func (s *HostStore) CreateTaxonomy(ctx context.Context, name, label string) error {
	if err := domain.ValidateTaxonomyName(name); err != nil {
		return err
	}
	if label == "" {
		label = name
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO taxonomies (name, label) VALUES (?, ?)`, name, label)
	if err != nil {
		return fmt.Errorf("failed to create taxonomy %q: %w", name, err)
	}
	return nil
}

// ListTaxonomies returns all taxonomies ordered by name.
func (s *HostStore) ListTaxonomies(ctx context.Context) ([]TaxonomyModel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, label FROM taxonomies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list taxonomies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TaxonomyModel
	for rows.Next() {
		var m TaxonomyModel
		if err := rows.Scan(&m.Name, &m.Label); err != nil {
			return nil, fmt.Errorf("failed to scan taxonomy: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateTerm adds a term to a taxonomy. An empty slug is derived from the name.
func (s *HostStore) CreateTerm(ctx context.Context, taxonomy, name, slug string) (*domain.Term, error) {
	if slug == "" {
		slug = domain.Slugify(name)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO terms (taxonomy, name, slug) VALUES (?, ?, ?)`, taxonomy, name, slug)
	if errors.Is(err, sqlite3.CONSTRAINT_FOREIGNKEY) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTaxonomy, taxonomy)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create term %q: %w", name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return &domain.Term{ID: id, Taxonomy: taxonomy, Name: name, Slug: slug}, nil
}

// UpdateTerm renames a term. An empty slug keeps the current slug.
func (s *HostStore) UpdateTerm(ctx context.Context, taxonomy string, id int64, name, slug string) (*domain.Term, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE terms SET name = ?, slug = COALESCE(NULLIF(?, ''), slug) WHERE taxonomy = ? AND id = ?`,
		name, slug, taxonomy, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update term %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, domain.ErrTermNotFound
	}
	return s.LookupTerm(ctx, taxonomy, domain.ByID(id))
}

// ListTerms returns the terms of a taxonomy ordered by id.
func (s *HostStore) ListTerms(ctx context.Context, taxonomy string) ([]*domain.Term, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+termColumns+` FROM terms WHERE taxonomy = ? ORDER BY id`, taxonomy)
	if err != nil {
		return nil, fmt.Errorf("failed to list terms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Term
	for rows.Next() {
		model, err := scanTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		out = append(out, model.toDomain())
	}
	return out, rows.Err()
}

// FindRecord returns a carrier record by id.
func (s *HostStore) FindRecord(ctx context.Context, id int64) (*domain.CarrierRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records r WHERE r.id = ?`, id)
	model, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCarrierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record %d: %w", id, err)
	}
	return model.toDomain(), nil
}

// DeleteRecord removes a carrier record and its term link.
func (s *HostStore) DeleteRecord(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCarrierNotFound
	}
	return nil
}

// CountRecords returns the number of carrier records of entityType.
func (s *HostStore) CountRecords(ctx context.Context, entityType string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE entity_type = ?`, entityType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}
