package core

import (
	"context"
	"strings"

	"crmcore/pkg/domain"
)

// BulkSetStatus writes status into the status-like field of every listed
// record (stage for deals). The change is all-or-nothing: an unknown ID or an
// invalid value leaves the collection untouched.
func (s *Service) BulkSetStatus(ctx context.Context, kind domain.EntityType, ids []string, status string) ([]domain.Record, error) {
	field, ok := domain.StatusField(kind)
	if !ok {
		return nil, domain.InvalidArgumentError{Entity: kind, Field: "status", Reason: "collection has no status field"}
	}
	return s.bulkApply(ctx, "bulk_status", kind, ids, domain.Fields{field: status})
}

// BulkAssign sets the owner (assignee for tasks) of every listed record.
func (s *Service) BulkAssign(ctx context.Context, kind domain.EntityType, ids []string, owner string) ([]domain.Record, error) {
	field, ok := domain.OwnerField(kind)
	if !ok {
		return nil, domain.InvalidArgumentError{Entity: kind, Field: "owner", Reason: "collection has no owner field"}
	}
	return s.bulkApply(ctx, "bulk_assign", kind, ids, domain.Fields{field: owner})
}

func (s *Service) bulkApply(ctx context.Context, verb string, kind domain.EntityType, ids []string, patch domain.Fields) ([]domain.Record, error) {
	if err := s.ensureSeeded(kind); err != nil {
		return nil, err
	}
	updated := make([]domain.Record, 0, len(ids))
	_, err := s.run(ctx, newOperation(verb, kind, domain.ActionUpdate, strings.Join(ids, ",")), func(tx domain.Transaction) (string, error) {
		for _, id := range ids {
			rec, err := tx.Update(id, applyAndValidate(patch))
			if err != nil {
				return "", err
			}
			updated = append(updated, rec)
		}
		return "", nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// BulkDelete removes every listed record that exists and returns how many
// were removed. Missing IDs are skipped, as with Delete.
func (s *Service) BulkDelete(ctx context.Context, kind domain.EntityType, ids []string) (int, error) {
	if err := s.ensureSeeded(kind); err != nil {
		return 0, err
	}
	removed := 0
	op := newOperation("bulk_delete", kind, domain.ActionDelete, strings.Join(ids, ","))
	op.changed = func() bool { return removed > 0 }
	_, err := s.run(ctx, op, func(tx domain.Transaction) (string, error) {
		for _, id := range ids {
			if tx.Delete(id) {
				removed++
			}
		}
		return "", nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// StageSummary is one pipeline column: the deals in a stage and their total.
type StageSummary struct {
	Stage       domain.DealStage `json:"stage" yaml:"stage"`
	Count       int              `json:"count" yaml:"count"`
	TotalAmount int64            `json:"total_amount" yaml:"total_amount"`
}

// PipelineSummary groups deals by stage in pipeline order. Stages without
// deals are reported with zero counts.
func (s *Service) PipelineSummary(ctx context.Context) ([]StageSummary, error) {
	deals, err := s.Collection(ctx, domain.EntityDeal)
	if err != nil {
		return nil, err
	}
	return SummarizePipeline(deals), nil
}

// SummarizePipeline aggregates deal records by stage. Non-deal records are
// ignored.
func SummarizePipeline(records []domain.Record) []StageSummary {
	stages := domain.DealStages()
	index := make(map[domain.DealStage]int, len(stages))
	out := make([]StageSummary, len(stages))
	for i, stage := range stages {
		index[stage] = i
		out[i].Stage = stage
	}
	for _, r := range records {
		deal, ok := r.(*domain.Deal)
		if !ok {
			continue
		}
		i, ok := index[deal.Stage]
		if !ok {
			continue
		}
		out[i].Count++
		out[i].TotalAmount += deal.Amount
	}
	return out
}
