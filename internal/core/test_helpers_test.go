package core

import (
	"time"

	"crmcore/pkg/domain"
)

// staticSeeder seeds collections from fixed batches; kinds without a batch
// start empty.
type staticSeeder map[domain.EntityType][]domain.Record

func (s staticSeeder) Seed(kind domain.EntityType) []domain.Record {
	batch := s[kind]
	out := make([]domain.Record, len(batch))
	for i, r := range batch {
		out[i] = r.Clone()
	}
	return out
}

var fixedNow = time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return fixedNow })
}

func deal(id string, stage domain.DealStage, amount int64) *domain.Deal {
	return &domain.Deal{Base: domain.Base{ID: id}, Name: "Deal " + id, Account: "Acme", Stage: stage, Amount: amount, Owner: "Sam"}
}

func newTestService(seeder Seeder, opts ...Option) *Service {
	opts = append([]Option{WithSeeder(seeder), WithClock(fixedClock())}, opts...)
	return NewInMemoryService(nil, opts...)
}

func recordIDs(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Meta().ID
	}
	return out
}
