package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRuleViolationErrorReportsFirstBlockingMessage(t *testing.T) {
	var result Result
	result.Merge(Result{})
	result.Merge(Result{Violations: []Violation{{Rule: "amount", Severity: SeverityWarn, Message: "zero amount"}}})
	if result.HasBlocking() {
		t.Fatalf("warnings must not block")
	}
	result.Merge(Result{Violations: []Violation{
		{Rule: "validity", Severity: SeverityBlock, Message: "stage \"Won\" invalid"},
		{Rule: "validity", Severity: SeverityBlock, Message: "second"},
	}})
	if !result.HasBlocking() || len(result.Violations) != 3 {
		t.Fatalf("unexpected merged result %+v", result)
	}
	err := RuleViolationError{Result: result}
	if got := err.Error(); got != `transaction blocked by rules: stage "Won" invalid` {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNotFound) {
		t.Fatalf("rule violations classify as invalid argument only")
	}
	if got := (RuleViolationError{}).Error(); got != "transaction blocked by rules" {
		t.Fatalf("unexpected empty message %q", got)
	}
}

// dealRule flags every deal change whose stage matches stage.
type dealRule struct {
	name     string
	stage    DealStage
	severity Severity
	calls    *int
}

func (r dealRule) Name() string { return r.name }

func (r dealRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	*r.calls++
	var res Result
	for _, c := range changes {
		d, ok := c.After.(*Deal)
		if ok && d.Stage == r.stage {
			res.Violations = append(res.Violations, Violation{Rule: r.name, Severity: r.severity, Entity: view.Kind(), EntityID: c.ID()})
		}
	}
	return res, nil
}

type failingRule struct{}

func (failingRule) Name() string { return "broken" }

func (failingRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{}, errors.New("lookup failed")
}

type dealView struct{}

func (dealView) Kind() EntityType           { return EntityDeal }
func (dealView) List() []Record             { return nil }
func (dealView) Find(string) (Record, bool) { return nil, false }

func TestRulesEngineRunsRulesInOrder(t *testing.T) {
	var calls int
	engine := NewRulesEngine()
	engine.Register(dealRule{name: "lost", stage: StageClosedLost, severity: SeverityWarn, calls: &calls})
	engine.Register(dealRule{name: "won", stage: StageClosedWon, severity: SeverityBlock, calls: &calls})
	if got := strings.Join(engine.Rules(), ","); got != "lost,won" {
		t.Fatalf("unexpected rule order %s", got)
	}
	changes := []Change{
		{Entity: EntityDeal, Action: ActionUpdate, After: &Deal{Base: Base{ID: "D1"}, Stage: StageClosedWon}},
		{Entity: EntityDeal, Action: ActionCreate, After: &Deal{Base: Base{ID: "D2"}, Stage: StageClosedLost}},
	}
	res, err := engine.Evaluate(context.Background(), dealView{}, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if calls != 2 || len(res.Violations) != 2 || !res.HasBlocking() {
		t.Fatalf("unexpected result %+v after %d calls", res, calls)
	}
	if res.Violations[0].Rule != "lost" || res.Violations[0].EntityID != "D2" || res.Violations[1].EntityID != "D1" {
		t.Fatalf("violations out of rule order: %+v", res.Violations)
	}
}

func TestRulesEngineStopsAtFirstError(t *testing.T) {
	var calls int
	engine := NewRulesEngine()
	engine.Register(failingRule{})
	engine.Register(dealRule{name: "after", calls: &calls})
	_, err := engine.Evaluate(context.Background(), dealView{}, nil)
	if err == nil || err.Error() != "rule broken: lookup failed" {
		t.Fatalf("expected wrapped evaluation error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("rules after a failure must not run")
	}
}

func TestChangeIDPrefersAfter(t *testing.T) {
	before := &Task{Base: Base{ID: "T1"}}
	after := &Task{Base: Base{ID: "T2"}}
	cases := []struct {
		change Change
		want   string
	}{
		{Change{Before: before}, "T1"},
		{Change{Before: before, After: after}, "T2"},
		{Change{After: after}, "T2"},
		{Change{}, ""},
	}
	for _, tc := range cases {
		if got := tc.change.ID(); got != tc.want {
			t.Fatalf("change %+v: expected %q, got %q", tc.change, tc.want, got)
		}
	}
}
