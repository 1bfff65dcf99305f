package termmeta

import (
	"context"
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/zjrosen/termmeta/internal/log"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
)

// MissingCarrier describes a registered term that has no carrier record.
type MissingCarrier struct {
	Taxonomy    string
	CarrierType string
	Term        *domain.Term
}

// CarrierCreator handles a missing carrier record. Implementations may create the record
// synchronously, defer creation, or do nothing; the resolver re-queries the relationship
// store once after CreateCarrier returns either way.
type CarrierCreator interface {
	CreateCarrier(ctx context.Context, req MissingCarrier) error
}

// CreatorFunc adapts a function to CarrierCreator.
type CreatorFunc func(ctx context.Context, req MissingCarrier) error

// CreateCarrier calls f.
func (f CreatorFunc) CreateCarrier(ctx context.Context, req MissingCarrier) error {
	return f(ctx, req)
}

// LinkedRecordCreator is implemented by record writers that can create and link a
// record in one transaction. DefaultCreator prefers it so a failed link never leaves an
// orphan record behind.
type LinkedRecordCreator interface {
	CreateLinkedRecord(ctx context.Context, entityType, title, slug string, status domain.RecordStatus, termID int64, taxonomy string) (int64, error)
}

// DefaultCreator creates a record titled and slugged after the term and links it.
type DefaultCreator struct {
	Writer domain.RecordWriter

	// Status of created records. Empty means domain.RecordStatusPublish.
	Status domain.RecordStatus
}

// NewDefaultCreator returns a DefaultCreator publishing records through writer.
func NewDefaultCreator(writer domain.RecordWriter) *DefaultCreator {
	return &DefaultCreator{Writer: writer, Status: domain.RecordStatusPublish}
}

// CreateCarrier implements CarrierCreator.
func (c *DefaultCreator) CreateCarrier(ctx context.Context, req MissingCarrier) error {
	status := c.Status
	if status == "" {
		status = domain.RecordStatusPublish
	}
	term := req.Term

	if linked, ok := c.Writer.(LinkedRecordCreator); ok {
		id, err := linked.CreateLinkedRecord(ctx, req.CarrierType, term.Name, term.Slug, status, term.ID, req.Taxonomy)
		if err != nil {
			return fmt.Errorf("create linked carrier record: %w", err)
		}
		log.Info(log.CatCreator, "created carrier record", "taxonomy", req.Taxonomy, "term_id", term.ID, "record_id", id)
		return nil
	}

	id, err := c.Writer.CreateRecord(ctx, req.CarrierType, term.Name, term.Slug, status)
	if err != nil {
		return fmt.Errorf("create carrier record: %w", err)
	}
	if err := c.Writer.LinkRecordToTerm(ctx, id, term.ID, req.Taxonomy); err != nil {
		return fmt.Errorf("link carrier record %d: %w", id, err)
	}
	log.Info(log.CatCreator, "created carrier record", "taxonomy", req.Taxonomy, "term_id", term.ID, "record_id", id)
	return nil
}

// DeferCreator never creates carrier records. Terms without a carrier stay unresolved
// until the host links one.
type DeferCreator struct{}

// CreateCarrier implements CarrierCreator.
func (DeferCreator) CreateCarrier(ctx context.Context, req MissingCarrier) error {
	log.Debug(log.CatCreator, "carrier creation deferred", "taxonomy", req.Taxonomy, "term_id", req.Term.ID)
	return nil
}

// CreatorChain runs every creator in order and stops at the first error.
func CreatorChain(creators ...CarrierCreator) CarrierCreator {
	return CreatorFunc(func(ctx context.Context, req MissingCarrier) error {
		for _, c := range creators {
			if err := c.CreateCarrier(ctx, req); err != nil {
				return err
			}
		}
		return nil
	})
}

// ErrInvalidGuard is returned when a guard expression does not compile to a boolean.
var ErrInvalidGuard = errors.New("invalid backfill guard")

// GuardEnv is the environment guard expressions are evaluated against.
type GuardEnv struct {
	Taxonomy    string
	CarrierType string
	Term        domain.Term
}

// GuardedCreator only hands a missing carrier to Next when Guard evaluates to true.
// Terms rejected by the guard are left for the host to link later.
type GuardedCreator struct {
	source  string
	program *vm.Program
	next    CarrierCreator
}

// CompileGuard checks that source is a boolean expression over GuardEnv,
// e.g. `Taxonomy == "category" && Term.Slug != ""`.
func CompileGuard(source string) (*vm.Program, error) {
	program, err := expr.Compile(source, expr.Env(GuardEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGuard, err)
	}
	return program, nil
}

// NewGuardedCreator compiles source and wraps next.
func NewGuardedCreator(source string, next CarrierCreator) (*GuardedCreator, error) {
	program, err := CompileGuard(source)
	if err != nil {
		return nil, err
	}
	return &GuardedCreator{source: source, program: program, next: next}, nil
}

// CreateCarrier implements CarrierCreator.
func (g *GuardedCreator) CreateCarrier(ctx context.Context, req MissingCarrier) error {
	out, err := expr.Run(g.program, GuardEnv{
		Taxonomy:    req.Taxonomy,
		CarrierType: req.CarrierType,
		Term:        *req.Term,
	})
	if err != nil {
		return fmt.Errorf("evaluate backfill guard: %w", err)
	}
	if allowed, _ := out.(bool); !allowed {
		log.Debug(log.CatCreator, "backfill guard rejected term", "taxonomy", req.Taxonomy, "term_id", req.Term.ID, "guard", g.source)
		return nil
	}
	return g.next.CreateCarrier(ctx, req)
}
