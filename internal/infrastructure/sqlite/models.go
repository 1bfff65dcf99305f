package sqlite

import (
	"time"

	"github.com/zjrosen/termmeta/internal/termmeta/domain"
)

// TermModel represents a row of the terms table.
type TermModel struct {
	ID       int64
	Taxonomy string
	Name     string
	Slug     string
}

func (m *TermModel) toDomain() *domain.Term {
	return &domain.Term{
		ID:       m.ID,
		Taxonomy: m.Taxonomy,
		Name:     m.Name,
		Slug:     m.Slug,
	}
}

// RecordModel represents a row of the records table.
// CreatedAt is a Unix timestamp.
type RecordModel struct {
	ID         int64
	GUID       string
	EntityType string
	Title      string
	Slug       string
	Status     string
	CreatedAt  int64
}

func (m *RecordModel) toDomain() *domain.CarrierRecord {
	return &domain.CarrierRecord{
		ID:         m.ID,
		GUID:       m.GUID,
		EntityType: m.EntityType,
		Title:      m.Title,
		Slug:       m.Slug,
		Status:     domain.RecordStatus(m.Status),
		CreatedAt:  time.Unix(m.CreatedAt, 0),
	}
}

// TaxonomyModel represents a row of the taxonomies table.
type TaxonomyModel struct {
	Name  string
	Label string
}

const (
	termColumns   = `id, taxonomy, name, slug`
	recordColumns = `r.id, r.guid, r.entity_type, r.title, r.slug, r.status, r.created_at`
)

type scanner interface{ Scan(...any) error }

func scanTerm(s scanner) (*TermModel, error) {
	var m TermModel
	err := s.Scan(&m.ID, &m.Taxonomy, &m.Name, &m.Slug)
	return &m, err
}

func scanRecord(s scanner) (*RecordModel, error) {
	var m RecordModel
	err := s.Scan(&m.ID, &m.GUID, &m.EntityType, &m.Title, &m.Slug, &m.Status, &m.CreatedAt)
	return &m, err
}
