package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/termmeta/internal/termmeta/domain"
)

// setupTestStore creates a new DB with a "category" taxonomy and returns its host store.
// The DB is closed when the test completes.
func setupTestStore(t *testing.T) *HostStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDB(dbPath)
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { db.Close() })

	store := db.Host()
	require.NoError(t, store.CreateTaxonomy(context.Background(), "category", "Categories"))
	return store
}

func TestHostStore_TaxonomyExists(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	exists, err := store.TaxonomyExists(ctx, "category")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.TaxonomyExists(ctx, "post_tag")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestHostStore_CreateTaxonomy_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTaxonomy(ctx, "category", "Other label"))
	require.ErrorIs(t, store.CreateTaxonomy(ctx, "", ""), domain.ErrEmptyTaxonomy)
	require.ErrorIs(t, store.CreateTaxonomy(ctx, "category|x", ""), domain.ErrInvalidTaxonomyName)

	list, err := store.ListTaxonomies(ctx)
	require.NoError(t, err)
	require.Equal(t, []TaxonomyModel{{Name: "category", Label: "Categories"}}, list)
}

func TestHostStore_EntityTypes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	exists, err := store.EntityTypeExists(ctx, "category_tax_meta")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.CreateEntityType(ctx, "category_tax_meta", domain.DefaultEntityTypeConfig("category")))

	exists, err = store.EntityTypeExists(ctx, "category_tax_meta")
	require.NoError(t, err)
	require.True(t, exists)

	var label string
	var showUI, rewrite bool
	err = store.db.QueryRow(`SELECT label, show_ui, rewrite FROM entity_types WHERE name = ?`, "category_tax_meta").
		Scan(&label, &showUI, &rewrite)
	require.NoError(t, err)
	require.Equal(t, "category taxonomy meta", label)
	require.False(t, showUI)
	require.False(t, rewrite)

	require.Error(t, store.CreateEntityType(ctx, "category_tax_meta", domain.EntityTypeConfig{}),
		"creating an entity type twice should fail")
}

func TestHostStore_DeclareRelationship_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEntityType(ctx, "cat_meta", domain.DefaultEntityTypeConfig("category")))

	require.NoError(t, store.DeclareRelationship(ctx, "cat_meta", "category"))
	require.NoError(t, store.DeclareRelationship(ctx, "cat_meta", "category"))

	var n int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM relationships`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestHostStore_LookupTerm(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreateTerm(ctx, "category", "Home & Garden", "")
	require.NoError(t, err)
	require.Equal(t, "home-garden", created.Slug)

	byID, err := store.LookupTerm(ctx, "category", domain.ByID(created.ID))
	require.NoError(t, err)
	require.Equal(t, created, byID)

	byName, err := store.LookupTerm(ctx, "category", domain.ByName("Home & Garden"))
	require.NoError(t, err)
	require.Equal(t, created, byName)

	_, err = store.LookupTerm(ctx, "category", domain.ByID(999))
	require.ErrorIs(t, err, domain.ErrTermNotFound)

	_, err = store.LookupTerm(ctx, "category", domain.ByName("missing"))
	require.ErrorIs(t, err, domain.ErrTermNotFound)

	_, err = store.LookupTerm(ctx, "category", domain.TermKey{})
	require.ErrorIs(t, err, domain.ErrInvalidTermKey)
}

func TestHostStore_LookupTerm_WrongTaxonomy(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateTaxonomy(ctx, "post_tag", ""))

	term, err := store.CreateTerm(ctx, "category", "News", "news")
	require.NoError(t, err)

	_, err = store.LookupTerm(ctx, "post_tag", domain.ByID(term.ID))
	require.ErrorIs(t, err, domain.ErrTermNotFound)
}

func TestHostStore_LookupTerm_ReusedNameReturnsOldest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.CreateTerm(ctx, "category", "Sale", "sale-2023")
	require.NoError(t, err)
	_, err = store.CreateTerm(ctx, "category", "Sale", "sale-2024")
	require.NoError(t, err)

	found, err := store.LookupTerm(ctx, "category", domain.ByName("Sale"))
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)
}

func TestHostStore_CreateTerm_UnknownTaxonomy(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.CreateTerm(context.Background(), "missing", "News", "")
	require.ErrorIs(t, err, domain.ErrUnknownTaxonomy)
}

func TestHostStore_UpdateTerm(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	term, err := store.CreateTerm(ctx, "category", "Electronics", "electronics")
	require.NoError(t, err)

	updated, err := store.UpdateTerm(ctx, "category", term.ID, "Gadgets", "")
	require.NoError(t, err)
	require.Equal(t, "Gadgets", updated.Name)
	require.Equal(t, "electronics", updated.Slug, "empty slug keeps the current slug")

	updated, err = store.UpdateTerm(ctx, "category", term.ID, "Gadgets", "gadgets")
	require.NoError(t, err)
	require.Equal(t, "gadgets", updated.Slug)

	_, err = store.UpdateTerm(ctx, "category", 999, "Nope", "")
	require.ErrorIs(t, err, domain.ErrTermNotFound)
}

func TestHostStore_ListTerms(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a, err := store.CreateTerm(ctx, "category", "A", "")
	require.NoError(t, err)
	b, err := store.CreateTerm(ctx, "category", "B", "")
	require.NoError(t, err)

	terms, err := store.ListTerms(ctx, "category")
	require.NoError(t, err)
	require.Equal(t, []*domain.Term{a, b}, terms)
}

func TestHostStore_CreateAndLinkRecord(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEntityType(ctx, "cat_meta", domain.DefaultEntityTypeConfig("category")))

	term, err := store.CreateTerm(ctx, "category", "Electronics", "electronics")
	require.NoError(t, err)

	_, err = store.FindRelatedRecord(ctx, term)
	require.ErrorIs(t, err, domain.ErrCarrierNotFound)

	id, err := store.CreateRecord(ctx, "cat_meta", term.Name, term.Slug, domain.RecordStatusPublish)
	require.NoError(t, err)
	require.NoError(t, store.LinkRecordToTerm(ctx, id, term.ID, "category"))

	record, err := store.FindRelatedRecord(ctx, term)
	require.NoError(t, err)
	require.Equal(t, id, record.ID)
	require.Equal(t, "cat_meta", record.EntityType)
	require.Equal(t, "Electronics", record.Title)
	require.Equal(t, "electronics", record.Slug)
	require.Equal(t, domain.RecordStatusPublish, record.Status)
	require.Len(t, record.GUID, 36, "GUID should be a UUID")
	require.False(t, record.CreatedAt.IsZero())

	other, err := store.CreateRecord(ctx, "cat_meta", term.Name, term.Slug, domain.RecordStatusPublish)
	require.NoError(t, err)
	err = store.LinkRecordToTerm(ctx, other, term.ID, "category")
	require.ErrorIs(t, err, domain.ErrDuplicateCarrier)
}

func TestHostStore_CreateLinkedRecord_RollsBackDuplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEntityType(ctx, "cat_meta", domain.DefaultEntityTypeConfig("category")))

	term, err := store.CreateTerm(ctx, "category", "Books", "books")
	require.NoError(t, err)

	id, err := store.CreateLinkedRecord(ctx, "cat_meta", term.Name, term.Slug, domain.RecordStatusPublish, term.ID, "category")
	require.NoError(t, err)
	require.Positive(t, id)

	_, err = store.CreateLinkedRecord(ctx, "cat_meta", term.Name, term.Slug, domain.RecordStatusPublish, term.ID, "category")
	require.ErrorIs(t, err, domain.ErrDuplicateCarrier)

	n, err := store.CountRecords(ctx, "cat_meta")
	require.NoError(t, err)
	require.Equal(t, 1, n, "failed link should not leave an orphan record")
}

func TestHostStore_DeleteRecord(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEntityType(ctx, "cat_meta", domain.DefaultEntityTypeConfig("category")))

	term, err := store.CreateTerm(ctx, "category", "Books", "books")
	require.NoError(t, err)
	id, err := store.CreateLinkedRecord(ctx, "cat_meta", term.Name, term.Slug, domain.RecordStatusPublish, term.ID, "category")
	require.NoError(t, err)

	record, err := store.FindRecord(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, record.ID)

	require.NoError(t, store.DeleteRecord(ctx, id))
	_, err = store.FindRelatedRecord(ctx, term)
	require.ErrorIs(t, err, domain.ErrCarrierNotFound, "deleting a record removes its link")

	require.ErrorIs(t, store.DeleteRecord(ctx, id), domain.ErrCarrierNotFound)
	_, err = store.FindRecord(ctx, id)
	require.ErrorIs(t, err, domain.ErrCarrierNotFound)
}

func TestHostStore_CreateLinkedRecord_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEntityType(ctx, "cat_meta", domain.DefaultEntityTypeConfig("category")))

	term, err := store.CreateTerm(ctx, "category", "Books", "books")
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateLinkedRecord(ctx, "cat_meta", term.Name, term.Slug, domain.RecordStatusPublish, term.ID, "category")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded, "exactly one concurrent create should win")

	n, err := store.CountRecords(ctx, "cat_meta")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

// TestHostStore_AtMostOneCarrierPerTerm is a property-based test using rapid.
// It verifies that no sequence of link attempts gives a term two carrier records.
func TestHostStore_AtMostOneCarrierPerTerm(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEntityType(ctx, "cat_meta", domain.DefaultEntityTypeConfig("category")))

	iteration := 0
	rapid.Check(t, func(r *rapid.T) {
		iteration++
		numTerms := rapid.IntRange(1, 5).Draw(r, "numTerms")
		terms := make([]*domain.Term, numTerms)
		for i := range terms {
			term, err := store.CreateTerm(ctx, "category", fmt.Sprintf("term %d-%d", iteration, i), "")
			require.NoError(r, err)
			terms[i] = term
		}

		linked := make(map[int64]int64)
		attempts := rapid.IntRange(1, 20).Draw(r, "attempts")
		for i := 0; i < attempts; i++ {
			term := terms[rapid.IntRange(0, numTerms-1).Draw(r, "term")]
			id, err := store.CreateLinkedRecord(ctx, "cat_meta", term.Name, term.Slug, domain.RecordStatusPublish, term.ID, "category")
			if _, already := linked[term.ID]; already {
				require.ErrorIs(r, err, domain.ErrDuplicateCarrier)
				continue
			}
			require.NoError(r, err)
			linked[term.ID] = id
		}

		for _, term := range terms {
			record, err := store.FindRelatedRecord(ctx, term)
			want, ok := linked[term.ID]
			if !ok {
				require.ErrorIs(r, err, domain.ErrCarrierNotFound)
				continue
			}
			require.NoError(r, err)
			require.Equal(r, want, record.ID)
		}
	})
}
