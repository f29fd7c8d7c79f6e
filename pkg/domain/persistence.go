package domain

import "context"

// Transaction exposes the record operations a store must support within an
// atomic scope over one collection. Records passed in and returned are owned
// copies.
type Transaction interface {
	RuleView
	// Insert appends a record. An empty ID is replaced with the next
	// collision-free identifier for the record's prefix; a supplied ID that
	// already exists fails with DuplicateIdentifierError.
	Insert(record Record) (Record, error)
	// Update applies mutator to a working copy of the record with id.
	Update(id string, mutator func(Record) error) (Record, error)
	// Delete removes the record with id, reporting whether it existed.
	Delete(id string) bool
}

// PersistentStore is the contract of the record store used by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, kind EntityType, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, kind EntityType, fn func(RuleView) error) error
	Get(kind EntityType) ([]Record, bool)
	Set(kind EntityType, records []Record) error
	Kinds() []EntityType
}
