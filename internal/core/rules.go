package core

import "crmcore/pkg/domain"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *domain.RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	for _, rule := range defaultRules() {
		engine.Register(rule)
	}
	return engine
}

func defaultRules() []domain.Rule {
	return []domain.Rule{
		NewRecordValidityRule(),
		NewClosedDealAmountRule(),
	}
}
