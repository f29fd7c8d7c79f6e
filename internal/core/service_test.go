package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	memory "crmcore/internal/infra/persistence/memory"
	"crmcore/pkg/domain"
)

func TestCollectionSeedsOnFirstAccess(t *testing.T) {
	svc := NewInMemoryService(nil, WithClock(fixedClock()))
	ctx := context.Background()
	if _, ok := svc.Store().Get(domain.EntityDeal); ok {
		t.Fatalf("collection should be absent before first access")
	}
	deals, err := svc.Collection(ctx, domain.EntityDeal)
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if len(deals) != 43 || deals[0].Meta().ID != "D3000" {
		t.Fatalf("expected default seed, got %d records", len(deals))
	}
	if _, err := svc.Delete(ctx, domain.EntityDeal, "D3000"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	again, _ := svc.Collection(ctx, domain.EntityDeal)
	if len(again) != 42 {
		t.Fatalf("collection must be seeded only once, got %d", len(again))
	}
}

func TestCollectionWithoutSeedStartsEmpty(t *testing.T) {
	svc := newTestService(staticSeeder{})
	got, err := svc.Collection(context.Background(), domain.EntityTask)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty collection, got %v %v", got, err)
	}
}

func TestUnknownCollectionIsInvalidArgument(t *testing.T) {
	svc := newTestService(staticSeeder{})
	ctx := context.Background()
	if _, err := svc.Collection(ctx, "widgets"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := svc.Create(ctx, "widgets", domain.Fields{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestReturnedCollectionsAreOwnedCopies(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityDeal: {deal("D1", domain.StageProspecting, 100)}})
	ctx := context.Background()
	deals, _ := svc.Collection(ctx, domain.EntityDeal)
	deals[0].(*domain.Deal).Stage = "Tampered"
	deals = append(deals[:0], deal("D99", domain.StageClosedWon, 1))
	fresh, _ := svc.Collection(ctx, domain.EntityDeal)
	if len(fresh) != 1 || fresh[0].Meta().ID != "D1" || fresh[0].(*domain.Deal).Stage != domain.StageProspecting {
		t.Fatalf("external mutation leaked into the store: %+v", fresh[0])
	}
}

func TestStageFilterScenario(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityDeal: {
		deal("D1", domain.StageProspecting, 100),
		deal("D2", domain.StageProspecting, 200),
		deal("D3", domain.StageQualification, 300),
	}})
	got, err := svc.Query(context.Background(), domain.EntityDeal, Criteria{Filters: map[string]string{"stage": "Prospecting"}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if fmt.Sprint(recordIDs(got)) != "[D1 D2]" {
		t.Fatalf("expected first two deals, got %v", recordIDs(got))
	}
	var total int64
	for _, r := range got {
		total += r.(*domain.Deal).Amount
	}
	if total != 300 {
		t.Fatalf("expected total 300, got %d", total)
	}
}

func TestUpdateMissingDealScenario(t *testing.T) {
	svc := NewInMemoryService(nil)
	ctx := context.Background()
	before, _ := svc.Collection(ctx, domain.EntityDeal)
	_, err := svc.Update(ctx, domain.EntityDeal, "D9999", domain.Fields{"amount": 500})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "D9999" || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound for D9999, got %v", err)
	}
	after, _ := svc.Collection(ctx, domain.EntityDeal)
	if len(after) != len(before) {
		t.Fatalf("collection length changed from %d to %d", len(before), len(after))
	}
}

func TestCreateThenSearchRoundTrip(t *testing.T) {
	svc := NewInMemoryService(nil, WithClock(fixedClock()))
	ctx := context.Background()
	created, err := svc.Create(ctx, domain.EntityContact, domain.Fields{"name": "Zanzibar Quokka", "company": "Unique Widgets"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Meta().ID != "C5020" || !created.Meta().CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected created meta %+v", created.Meta())
	}
	got, _ := svc.Query(ctx, domain.EntityContact, Criteria{Search: "zanzibar quokka"})
	if len(got) != 1 || got[0].Meta().ID != created.Meta().ID {
		t.Fatalf("expected exactly the created record, got %v", recordIDs(got))
	}
	all, _ := svc.Collection(ctx, domain.EntityContact)
	if all[len(all)-1].Meta().ID != created.Meta().ID {
		t.Fatalf("created record must be appended")
	}
}

func TestCreatedIdentifiersAreUnique(t *testing.T) {
	svc := NewInMemoryService(nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Create(ctx, domain.EntityTask, domain.Fields{"subject": fmt.Sprintf("task %d", i)}); err != nil {
				t.Errorf("create: %v", err)
			}
		}(i)
	}
	wg.Wait()
	tasks, _ := svc.Collection(ctx, domain.EntityTask)
	seen := map[string]bool{}
	for _, r := range tasks {
		if seen[r.Meta().ID] {
			t.Fatalf("duplicate identifier %s", r.Meta().ID)
		}
		seen[r.Meta().ID] = true
	}
	if len(tasks) != 40 {
		t.Fatalf("expected 15 seeded + 25 created tasks, got %d", len(tasks))
	}
}

func TestCreateWithSuppliedIdentifier(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityDeal: {deal("D1", domain.StageProspecting, 1)}})
	ctx := context.Background()
	created, err := svc.Create(ctx, domain.EntityDeal, domain.Fields{"id": "D77", "name": "Manual"})
	if err != nil || created.Meta().ID != "D77" {
		t.Fatalf("expected supplied id to be kept, got %v %v", created, err)
	}
	_, err = svc.Create(ctx, domain.EntityDeal, domain.Fields{"id": "D1", "name": "Clash"})
	if !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate identifier, got %v", err)
	}
	next, _ := svc.Create(ctx, domain.EntityDeal, domain.Fields{"name": "Auto"})
	if next.Meta().ID != "D78" {
		t.Fatalf("generated ids continue after supplied ones, got %s", next.Meta().ID)
	}
}

func TestCreateAppliesDefaultsAndValidates(t *testing.T) {
	svc := newTestService(staticSeeder{})
	ctx := context.Background()
	rec, err := svc.Create(ctx, domain.EntityDeal, domain.Fields{"name": "Defaults", "amount": 1000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.(*domain.Deal).Stage != domain.StageProspecting {
		t.Fatalf("expected default stage, got %q", rec.(*domain.Deal).Stage)
	}
	cases := []domain.Fields{
		{"name": "Bad stage", "stage": "Won-ish"},
		{"name": "Bad date", "close_date": "31/12/2025"},
		{"name": "Bad type", "amount": "a lot"},
		{"name": "Unknown", "colour": "red"},
		{"amount": 5},
	}
	for _, fields := range cases {
		if _, err := svc.Create(ctx, domain.EntityDeal, fields); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("create %v: expected invalid argument, got %v", fields, err)
		}
	}
	all, _ := svc.Collection(ctx, domain.EntityDeal)
	if len(all) != 1 {
		t.Fatalf("rejected creates must not be stored, got %d records", len(all))
	}
}

func TestCreateLeadVariants(t *testing.T) {
	svc := newTestService(staticSeeder{})
	ctx := context.Background()
	show, err := svc.Create(ctx, domain.EntityLead, domain.Fields{"variant": "show", "contact_name": "Ada", "show_name": "Expo"})
	if err != nil {
		t.Fatalf("create show lead: %v", err)
	}
	industry, err := svc.Create(ctx, domain.EntityLead, domain.Fields{"variant": "industry", "contact_name": "Grace"})
	if err != nil {
		t.Fatalf("create industry lead: %v", err)
	}
	if show.Meta().ID != "SL1" || industry.Meta().ID != "IL1" {
		t.Fatalf("unexpected lead ids %s %s", show.Meta().ID, industry.Meta().ID)
	}
	if _, err := svc.Create(ctx, domain.EntityLead, domain.Fields{"contact_name": "NoVariant"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected missing variant rejection, got %v", err)
	}
	if _, err := svc.Update(ctx, domain.EntityLead, "IL1", domain.Fields{"variant": "show"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected variant change rejection, got %v", err)
	}
}

func TestUpdateMergesFields(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityDeal: {
		deal("D1", domain.StageProspecting, 100),
		deal("D2", domain.StageQualification, 200),
	}})
	ctx := context.Background()
	updated, err := svc.Update(ctx, domain.EntityDeal, "D1", domain.Fields{"amount": 750, "owner": "Kim"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	d := updated.(*domain.Deal)
	if d.Amount != 750 || d.Owner != "Kim" || d.Name != "Deal D1" || d.Stage != domain.StageProspecting {
		t.Fatalf("unexpected merge result %+v", d)
	}
	if !d.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("expected updated timestamp, got %v", d.UpdatedAt)
	}
	all, _ := svc.Collection(ctx, domain.EntityDeal)
	if fmt.Sprint(recordIDs(all)) != "[D1 D2]" {
		t.Fatalf("update changed ordering: %v", recordIDs(all))
	}
}

func TestUpdateRejectsInvalidInput(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityTask: {
		&domain.Task{Base: domain.Base{ID: "T1"}, Subject: "Call", Priority: domain.PriorityLow, Status: domain.TaskStatusOpen},
	}})
	ctx := context.Background()
	cases := []domain.Fields{
		{"priority": "Urgent"},
		{"status": "Done"},
		{"due_date": "tomorrow"},
		{"unknown": "x"},
		{"subject": 12},
		{"id": "T2"},
		{"subject": ""},
	}
	for _, fields := range cases {
		if _, err := svc.Update(ctx, domain.EntityTask, "T1", fields); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("update %v: expected invalid argument, got %v", fields, err)
		}
	}
	task, _ := svc.Get(ctx, domain.EntityTask, "T1")
	if tk := task.(*domain.Task); tk.Priority != domain.PriorityLow || tk.Subject != "Call" {
		t.Fatalf("rejected updates leaked: %+v", tk)
	}
	if _, err := svc.Update(ctx, domain.EntityTask, "T1", domain.Fields{"id": "T1", "priority": "High"}); err != nil {
		t.Fatalf("restating the id should be accepted: %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityDeal: {
		deal("D1", domain.StageProspecting, 1),
		deal("D2", domain.StageProspecting, 2),
		deal("D3", domain.StageProspecting, 3),
	}})
	ctx := context.Background()
	first, err := svc.Delete(ctx, domain.EntityDeal, "D2")
	if err != nil || !first {
		t.Fatalf("first delete: %v %v", first, err)
	}
	afterOnce, _ := svc.Collection(ctx, domain.EntityDeal)
	second, err := svc.Delete(ctx, domain.EntityDeal, "D2")
	if err != nil || second {
		t.Fatalf("second delete should be a silent no-op: %v %v", second, err)
	}
	afterTwice, _ := svc.Collection(ctx, domain.EntityDeal)
	if fmt.Sprint(recordIDs(afterOnce)) != fmt.Sprint(recordIDs(afterTwice)) || fmt.Sprint(recordIDs(afterTwice)) != "[D1 D3]" {
		t.Fatalf("delete not idempotent: %v vs %v", recordIDs(afterOnce), recordIDs(afterTwice))
	}
}

func TestMoveStage(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityDeal: {deal("D1", domain.StageProspecting, 100)}})
	ctx := context.Background()

	_, err := svc.MoveStage(ctx, domain.EntityDeal, "D1", "NotARealStage")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	unchanged, _ := svc.Get(ctx, domain.EntityDeal, "D1")
	if unchanged.(*domain.Deal).Stage != domain.StageProspecting {
		t.Fatalf("invalid move must leave stage unchanged")
	}

	moved, err := svc.MoveStage(ctx, domain.EntityDeal, "D1", "Closed Won")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if d := moved.(*domain.Deal); d.Stage != domain.StageClosedWon || d.Amount != 100 || d.Name != "Deal D1" {
		t.Fatalf("move changed more than the stage: %+v", d)
	}
	if _, err := svc.MoveStage(ctx, domain.EntityDeal, "D404", "Negotiation"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.MoveStage(ctx, domain.EntityTask, "T1", "Negotiation"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("stage moves are deal-only, got %v", err)
	}
}

func TestMutationsAreScopedToOneCollection(t *testing.T) {
	svc := NewInMemoryService(nil)
	ctx := context.Background()
	accountsBefore, _ := svc.Collection(ctx, domain.EntityAccount)
	if _, err := svc.MoveStage(ctx, domain.EntityDeal, "D3000", "Negotiation"); err != nil {
		t.Fatalf("move: %v", err)
	}
	accountsAfter, _ := svc.Collection(ctx, domain.EntityAccount)
	if len(accountsBefore) != len(accountsAfter) {
		t.Fatalf("moving a deal touched accounts")
	}
	if kinds := svc.Store().Kinds(); len(kinds) != 2 {
		t.Fatalf("only touched collections should be populated, got %v", kinds)
	}
}

func TestCancelledContextIsReported(t *testing.T) {
	svc := newTestService(staticSeeder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Collection(ctx, domain.EntityDeal); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.EntityDeal, domain.Fields{"name": "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestSnapshotSeedsAndClonesEveryCollection(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityDeal: {deal("D1", domain.StageProspecting, 10)}})
	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Collections) != len(domain.EntityTypes()) {
		t.Fatalf("expected every collection, got %v", snap.Collections)
	}
	if got := recordIDs(snap.Collections[domain.EntityDeal]); len(got) != 1 || got[0] != "D1" {
		t.Fatalf("unexpected deals %v", got)
	}
	if !snap.TakenAt.Equal(fixedNow) {
		t.Fatalf("snapshot time %v, want %v", snap.TakenAt, fixedNow)
	}
	snap.Collections[domain.EntityDeal][0].(*domain.Deal).Name = "changed"
	r, err := svc.Get(context.Background(), domain.EntityDeal, "D1")
	if err != nil || r.(*domain.Deal).Name != "Deal D1" {
		t.Fatalf("snapshot leaked into the store: %v %v", r, err)
	}
}

func TestGatewayValidatesWithoutRules(t *testing.T) {
	svc := NewService(memory.NewStore(nil), WithClock(fixedClock()))
	ctx := context.Background()
	if _, err := svc.Create(ctx, domain.EntityDeal, domain.Fields{"name": "X", "stage": "NotARealStage"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("create with unknown stage: expected invalid argument, got %v", err)
	}
	created, err := svc.Create(ctx, domain.EntityDeal, domain.Fields{"name": "X", "stage": "Prospecting"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.Meta().ID
	if _, err := svc.Update(ctx, domain.EntityDeal, id, domain.Fields{"stage": "Bogus"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("update with unknown stage: expected invalid argument, got %v", err)
	}
	if _, err := svc.Update(ctx, domain.EntityDeal, id, domain.Fields{"close_date": "20/05/2025"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("update with malformed date: expected invalid argument, got %v", err)
	}
	if _, err := svc.BulkSetStatus(ctx, domain.EntityDeal, []string{id}, "Won"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bulk status with unknown stage: expected invalid argument, got %v", err)
	}
	got, err := svc.Get(ctx, domain.EntityDeal, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	d := got.(*domain.Deal)
	if d.Stage != domain.StageProspecting || d.CloseDate != "" {
		t.Fatalf("rejected updates leaked into the store: %+v", d)
	}
	if records, _ := svc.Collection(ctx, domain.EntityDeal); len(records) != 1 {
		t.Fatalf("rejected create was stored: %d records", len(records))
	}
}
