package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	memory "crmcore/internal/infra/persistence/memory"
	"crmcore/internal/seed"
	"crmcore/pkg/domain"
)

// Service is the mutation gateway and read facade over the record store.
// Every mutation touches exactly one collection inside one store transaction;
// failures leave the collection as it was.
type Service struct {
	store   domain.PersistentStore
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	seeder  Seeder
	seedMu  sync.Mutex
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return newService(store, options)
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine selects NewDefaultRulesEngine. Collections are seeded from
// seed.New unless WithSeeder says otherwise.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	if options.seeder == nil {
		options.seeder = seed.New(seed.WithClock(options.clock.Now))
	}
	store := memory.NewStore(engine, memory.WithNowFunc(options.clock.Now))
	return newService(store, options)
}

func newService(store domain.PersistentStore, options serviceOptions) *Service {
	return &Service{
		store:   store,
		clock:   options.clock,
		logger:  options.logger,
		audit:   options.audit,
		metrics: options.metrics,
		tracer:  options.tracer,
		seeder:  options.seeder,
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// operation identifies a mutation for tracing, metrics and audit.
type operation struct {
	name   string
	kind   domain.EntityType
	action domain.Action
	id     string
	// changed reports whether a successful run altered the collection. Nil
	// means it always does.
	changed func() bool
}

func newOperation(verb string, kind domain.EntityType, action domain.Action, id string) operation {
	return operation{
		name:   verb + "_" + strings.TrimSuffix(string(kind), "s"),
		kind:   kind,
		action: action,
		id:     id,
	}
}

// run executes fn in a transaction on op.kind and reports the outcome to the
// tracer, metrics, logger and audit sinks. fn may return the affected ID when
// it is only known inside the transaction.
func (s *Service) run(ctx context.Context, op operation, fn func(domain.Transaction) (string, error)) (domain.Result, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op.name)
	entityID := op.id
	res, err := s.store.RunInTransaction(ctx, op.kind, func(tx domain.Transaction) error {
		id, err := fn(tx)
		if id != "" {
			entityID = id
		}
		return err
	})
	duration := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op.name, err == nil, duration)

	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		s.logger.Warn("rule violation", "operation", op.name, "rule", v.Rule, "severity", v.Severity, "entity_id", v.EntityID, "message", v.Message)
	}

	entry := AuditEntry{
		Operation: op.name,
		Entity:    op.kind,
		Action:    op.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.audit.Record(ctx, entry)
		s.logger.Error("operation failed", "operation", op.name, "entity", op.kind, "id", entityID, "error", err)
		return res, err
	}
	if op.changed != nil && !op.changed() {
		entry.Status = AuditStatusNoop
	}
	s.audit.Record(ctx, entry)
	s.logger.Debug("operation committed", "operation", op.name, "entity", op.kind, "id", entityID, "duration", duration)
	return res, nil
}

// applyAndValidate merges patch into a record and validates the result.
func applyAndValidate(patch domain.Fields) func(domain.Record) error {
	return func(r domain.Record) error {
		if err := r.ApplyFields(patch); err != nil {
			return err
		}
		return r.Validate()
	}
}

func validKind(kind domain.EntityType) error {
	for _, k := range domain.EntityTypes() {
		if k == kind {
			return nil
		}
	}
	return domain.InvalidArgumentError{Field: "kind", Value: string(kind), Reason: "unknown collection"}
}

// ensureSeeded populates kind from the seeder the first time it is touched.
func (s *Service) ensureSeeded(kind domain.EntityType) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if _, ok := s.store.Get(kind); ok {
		return nil
	}
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	if _, ok := s.store.Get(kind); ok {
		return nil
	}
	var batch []domain.Record
	if s.seeder != nil {
		batch = s.seeder.Seed(kind)
	}
	if err := s.store.Set(kind, batch); err != nil {
		return fmt.Errorf("seed %s: %w", kind, err)
	}
	s.logger.Info("seeded collection", "entity", kind, "count", len(batch))
	return nil
}

// Collection returns the whole collection in insertion order, seeding it on
// first access.
func (s *Service) Collection(ctx context.Context, kind domain.EntityType) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureSeeded(kind); err != nil {
		return nil, err
	}
	records, _ := s.store.Get(kind)
	if records == nil {
		records = []domain.Record{}
	}
	return records, nil
}

// Query returns the records of kind matching c, in collection order.
func (s *Service) Query(ctx context.Context, kind domain.EntityType, c Criteria) ([]domain.Record, error) {
	records, err := s.Collection(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := Filter(records, c)
	s.logger.Debug("query", "entity", kind, "search", c.Search, "filters", len(c.Filters), "matched", len(out), "total", len(records))
	return out, nil
}

// Get returns a single record by ID.
func (s *Service) Get(ctx context.Context, kind domain.EntityType, id string) (domain.Record, error) {
	records, err := s.Collection(ctx, kind)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Meta().ID == id {
			return r, nil
		}
	}
	return nil, domain.NotFoundError{Entity: kind, ID: id}
}

// Create builds a record of kind from fields and appends it. A caller-supplied
// "id" is kept when unused and rejected with DuplicateIdentifierError
// otherwise; without one a collision-free ID is generated.
func (s *Service) Create(ctx context.Context, kind domain.EntityType, fields domain.Fields) (domain.Record, error) {
	if err := s.ensureSeeded(kind); err != nil {
		return nil, err
	}
	rec, err := domain.NewRecord(kind, fields)
	if err != nil {
		return nil, err
	}
	id, _, err := fields.String(kind, "id")
	if err != nil {
		return nil, err
	}
	if err := rec.ApplyFields(fields.Without("id")); err != nil {
		return nil, err
	}
	rec.Meta().ID = id

	var created domain.Record
	_, err = s.run(ctx, newOperation("create", kind, domain.ActionCreate, id), func(tx domain.Transaction) (string, error) {
		if err := rec.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.Insert(rec)
		if err != nil {
			return "", err
		}
		return created.Meta().ID, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update merges fields into the record with id. Absent fields are left
// untouched; the identifier cannot change.
func (s *Service) Update(ctx context.Context, kind domain.EntityType, id string, fields domain.Fields) (domain.Record, error) {
	if err := s.ensureSeeded(kind); err != nil {
		return nil, err
	}
	if raw, ok, err := fields.String(kind, "id"); err != nil {
		return nil, err
	} else if ok && raw != id {
		return nil, domain.InvalidArgumentError{Entity: kind, Field: "id", Value: raw, Reason: "identifier is immutable"}
	}
	patch := fields.Without("id")

	var updated domain.Record
	_, err := s.run(ctx, newOperation("update", kind, domain.ActionUpdate, id), func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.Update(id, applyAndValidate(patch))
		return "", err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record with id. A missing ID is not an error; deleted
// reports whether anything was removed.
func (s *Service) Delete(ctx context.Context, kind domain.EntityType, id string) (bool, error) {
	if err := s.ensureSeeded(kind); err != nil {
		return false, err
	}
	var deleted bool
	op := newOperation("delete", kind, domain.ActionDelete, id)
	op.changed = func() bool { return deleted }
	_, err := s.run(ctx, op, func(tx domain.Transaction) (string, error) {
		deleted = tx.Delete(id)
		return "", nil
	})
	if err != nil {
		return false, err
	}
	if !deleted {
		s.logger.Debug("delete of missing record ignored", "entity", kind, "id", id)
	}
	return deleted, nil
}

// MoveStage changes only the stage of a deal. The stage is validated before
// the record is looked up.
func (s *Service) MoveStage(ctx context.Context, kind domain.EntityType, id, stage string) (domain.Record, error) {
	if kind != domain.EntityDeal {
		return nil, domain.InvalidArgumentError{Field: "kind", Value: string(kind), Reason: "only deals have stages"}
	}
	target, err := domain.ParseDealStage(stage)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSeeded(kind); err != nil {
		return nil, err
	}
	var moved domain.Record
	_, err = s.run(ctx, newOperation("move_stage", kind, domain.ActionUpdate, id), func(tx domain.Transaction) (string, error) {
		var err error
		moved, err = tx.Update(id, func(r domain.Record) error {
			deal, ok := r.(*domain.Deal)
			if !ok {
				return fmt.Errorf("record %s is %T, not a deal", id, r)
			}
			deal.Stage = target
			return nil
		})
		return "", err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

type snapshotter interface {
	ExportState() memory.Snapshot
}

// Snapshot seeds every collection and returns a clone of the whole store.
func (s *Service) Snapshot(ctx context.Context) (memory.Snapshot, error) {
	for _, kind := range domain.EntityTypes() {
		if _, err := s.Collection(ctx, kind); err != nil {
			return memory.Snapshot{}, err
		}
	}
	if st, ok := s.store.(snapshotter); ok {
		return st.ExportState(), nil
	}
	snap := memory.Snapshot{TakenAt: s.clock.Now(), Collections: make(map[domain.EntityType][]domain.Record)}
	for _, kind := range s.store.Kinds() {
		records, _ := s.store.Get(kind)
		snap.Collections[kind] = records
	}
	return snap, nil
}
