// Package memory provides the in-memory record store that holds every CRM
// collection for the lifetime of the process.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"crmcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Record aliases domain.Record held in collections.
	Record = domain.Record
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// RuleView aliases domain.RuleView providing read-only state.
	RuleView = domain.RuleView
)

// collection is one independently locked record list. counters holds the
// highest numeric suffix issued or observed per ID prefix.
type collection struct {
	mu       sync.Mutex
	present  bool
	records  []Record
	counters map[string]int64
}

// Snapshot captures a point-in-time clone of every populated collection.
type Snapshot struct {
	TakenAt     time.Time                     `json:"taken_at"`
	Collections map[domain.EntityType][]Record `json:"collections"`
}

// Store provides an in-memory transactional store keyed by collection. Each
// collection has its own mutex; operations on different collections never
// contend.
type Store struct {
	mu          sync.RWMutex
	collections map[domain.EntityType]*collection
	engine      *RulesEngine
	nowFn       func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithNowFunc overrides the time source used for record timestamps.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		collections: make(map[domain.EntityType]*collection),
		engine:      engine,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

func (s *Store) collection(kind domain.EntityType, create bool) *collection {
	s.mu.RLock()
	c, ok := s.collections[kind]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.collections[kind]; ok {
		return c
	}
	c = &collection{counters: make(map[string]int64)}
	s.collections[kind] = c
	return c
}

// Get returns an owned copy of the collection in insertion order. ok is false
// when the collection has never been populated.
func (s *Store) Get(kind domain.EntityType) ([]Record, bool) {
	c := s.collection(kind, false)
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.present {
		return nil, false
	}
	return cloneRecords(c.records), true
}

// Set replaces the collection wholesale. Records are cloned in; IDs must be
// non-empty and unique.
func (s *Store) Set(kind domain.EntityType, records []Record) error {
	seen := make(map[string]struct{}, len(records))
	counters := make(map[string]int64)
	for _, r := range records {
		id := r.Meta().ID
		if id == "" {
			return domain.InvalidArgumentError{Entity: kind, Field: "id", Reason: "required"}
		}
		if _, dup := seen[id]; dup {
			return domain.DuplicateIdentifierError{Entity: kind, ID: id}
		}
		seen[id] = struct{}{}
		observeID(counters, r.IDPrefix(), id)
	}
	c := s.collection(kind, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	for prefix, n := range c.counters {
		if n > counters[prefix] {
			counters[prefix] = n
		}
	}
	c.records = cloneRecords(records)
	c.counters = counters
	c.present = true
	return nil
}

// Kinds lists the populated collections in name order.
func (s *Store) Kinds() []domain.EntityType {
	s.mu.RLock()
	candidates := make([]*collection, 0, len(s.collections))
	names := make([]domain.EntityType, 0, len(s.collections))
	for kind, c := range s.collections {
		candidates = append(candidates, c)
		names = append(names, kind)
	}
	s.mu.RUnlock()

	kinds := make([]domain.EntityType, 0, len(names))
	for i, c := range candidates {
		c.mu.Lock()
		if c.present {
			kinds = append(kinds, names[i])
		}
		c.mu.Unlock()
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ExportState clones every populated collection. Each collection is captured
// under its own lock, so the snapshot is consistent per collection only.
func (s *Store) ExportState() Snapshot {
	snap := Snapshot{TakenAt: s.NowFunc()(), Collections: make(map[domain.EntityType][]Record)}
	for _, kind := range s.Kinds() {
		if records, ok := s.Get(kind); ok {
			snap.Collections[kind] = records
		}
	}
	return snap
}

// RunInTransaction executes fn against a working copy of one collection. The
// copy replaces the collection only when fn succeeds and no blocking rule
// violation is reported; otherwise the collection is left untouched.
func (s *Store) RunInTransaction(ctx context.Context, kind domain.EntityType, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	c := s.collection(kind, true)
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := &transaction{
		kind:     kind,
		records:  cloneRecords(c.records),
		counters: cloneCounters(c.counters),
		now:      s.NowFunc()(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if engine := s.RulesEngine(); engine != nil {
		res, err := engine.Evaluate(ctx, tx, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	c.records = tx.records
	c.counters = tx.counters
	c.present = true
	return result, nil
}

// View executes fn against a read-only snapshot of one collection.
func (s *Store) View(ctx context.Context, kind domain.EntityType, fn func(RuleView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records, _ := s.Get(kind)
	return fn(&transaction{kind: kind, records: records})
}

// transaction is the working copy of a single collection.
type transaction struct {
	kind     domain.EntityType
	records  []Record
	counters map[string]int64
	changes  []Change
	now      time.Time
}

func (tx *transaction) Kind() domain.EntityType { return tx.kind }

// List returns owned copies of the working records in order.
func (tx *transaction) List() []Record { return cloneRecords(tx.records) }

// Find returns an owned copy of the record with id.
func (tx *transaction) Find(id string) (Record, bool) {
	i := tx.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return tx.records[i].Clone(), true
}

func (tx *transaction) indexOf(id string) int {
	for i, r := range tx.records {
		if r.Meta().ID == id {
			return i
		}
	}
	return -1
}

// nextID issues the next identifier for prefix that is not already taken.
func (tx *transaction) nextID(prefix string) string {
	n := tx.counters[prefix]
	for {
		n++
		id := prefix + strconv.FormatInt(n, 10)
		if tx.indexOf(id) < 0 {
			tx.counters[prefix] = n
			return id
		}
	}
}

// Insert appends a record, assigning an identifier when none is supplied.
func (tx *transaction) Insert(record Record) (Record, error) {
	if record == nil {
		return nil, domain.InvalidArgumentError{Entity: tx.kind, Field: "record", Reason: "required"}
	}
	if record.Kind() != tx.kind {
		return nil, domain.InvalidArgumentError{Entity: tx.kind, Field: "kind", Value: string(record.Kind()), Reason: "record does not belong to collection"}
	}
	rec := record.Clone()
	meta := rec.Meta()
	if meta.ID == "" {
		meta.ID = tx.nextID(rec.IDPrefix())
	} else {
		if tx.indexOf(meta.ID) >= 0 {
			return nil, domain.DuplicateIdentifierError{Entity: tx.kind, ID: meta.ID}
		}
		observeID(tx.counters, rec.IDPrefix(), meta.ID)
	}
	meta.CreatedAt = tx.now
	meta.UpdatedAt = tx.now
	tx.records = append(tx.records, rec)
	tx.changes = append(tx.changes, Change{Entity: tx.kind, Action: domain.ActionCreate, After: rec.Clone()})
	return rec.Clone(), nil
}

// Update mutates a record in place, preserving its position and identity.
func (tx *transaction) Update(id string, mutator func(Record) error) (Record, error) {
	i := tx.indexOf(id)
	if i < 0 {
		return nil, domain.NotFoundError{Entity: tx.kind, ID: id}
	}
	before := tx.records[i].Clone()
	current := tx.records[i].Clone()
	if err := mutator(current); err != nil {
		return nil, err
	}
	meta := current.Meta()
	meta.ID = id
	meta.CreatedAt = before.Meta().CreatedAt
	meta.UpdatedAt = tx.now
	tx.records[i] = current
	tx.changes = append(tx.changes, Change{Entity: tx.kind, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// Delete removes a record, keeping the order of the remaining ones.
func (tx *transaction) Delete(id string) bool {
	i := tx.indexOf(id)
	if i < 0 {
		return false
	}
	before := tx.records[i]
	tx.records = append(tx.records[:i:i], tx.records[i+1:]...)
	tx.changes = append(tx.changes, Change{Entity: tx.kind, Action: domain.ActionDelete, Before: before})
	return true
}

// observeID raises the prefix counter when id carries a numeric suffix.
func observeID(counters map[string]int64, prefix, id string) {
	suffix, ok := strings.CutPrefix(id, prefix)
	if !ok || suffix == "" {
		return
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || n < 0 {
		return
	}
	if n > counters[prefix] {
		counters[prefix] = n
	}
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

func cloneCounters(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
