package core

import (
	"context"
	"errors"

	"crmcore/pkg/domain"
)

// NewRecordValidityRule returns the blocking rule that rejects any created or
// updated record carrying an out-of-enum value, a malformed date or a missing
// required field.
func NewRecordValidityRule() domain.Rule {
	return recordValidityRule{}
}

type recordValidityRule struct{}

func (recordValidityRule) Name() string { return "record_validity" }

func (recordValidityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.After == nil {
			continue
		}
		err := change.After.Validate()
		if err == nil {
			continue
		}
		v := domain.Violation{
			Rule:     "record_validity",
			Severity: domain.SeverityBlock,
			Message:  err.Error(),
			Entity:   change.Entity,
			EntityID: change.ID(),
		}
		var invalid domain.InvalidArgumentError
		if errors.As(err, &invalid) {
			v.Field = invalid.Field
		}
		res.Violations = append(res.Violations, v)
	}
	return res, nil
}
