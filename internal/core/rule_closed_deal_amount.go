package core

import (
	"context"
	"fmt"

	"crmcore/pkg/domain"
)

// NewClosedDealAmountRule flags deals that reach Closed Won without an
// amount. It only warns; the change is still committed.
func NewClosedDealAmountRule() domain.Rule {
	return closedDealAmountRule{}
}

type closedDealAmountRule struct{}

func (closedDealAmountRule) Name() string { return "closed_deal_amount" }

func (closedDealAmountRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if view.Kind() != domain.EntityDeal {
		return res, nil
	}
	for _, change := range changes {
		deal, ok := change.After.(*domain.Deal)
		if !ok || deal.Stage != domain.StageClosedWon || deal.Amount > 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "closed_deal_amount",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("deal %s closed won with amount %d", deal.ID, deal.Amount),
			Entity:   domain.EntityDeal,
			EntityID: deal.ID,
			Field:    "amount",
		})
	}
	return res, nil
}
