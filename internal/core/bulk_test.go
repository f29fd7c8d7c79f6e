package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"crmcore/pkg/domain"
)

func taskBatch() []domain.Record {
	out := make([]domain.Record, 0, 3)
	for i := 1; i <= 3; i++ {
		out = append(out, &domain.Task{
			Base:       domain.Base{ID: fmt.Sprintf("T%d", i)},
			Subject:    fmt.Sprintf("Task %d", i),
			Priority:   domain.PriorityMedium,
			Status:     domain.TaskStatusOpen,
			AssignedTo: "Sam",
		})
	}
	return out
}

func TestBulkSetStatus(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityTask: taskBatch()})
	ctx := context.Background()
	updated, err := svc.BulkSetStatus(ctx, domain.EntityTask, []string{"T1", "T3"}, "Completed")
	if err != nil {
		t.Fatalf("bulk status: %v", err)
	}
	if fmt.Sprint(recordIDs(updated)) != "[T1 T3]" {
		t.Fatalf("unexpected updated set %v", recordIDs(updated))
	}
	got, _ := svc.Query(ctx, domain.EntityTask, Criteria{Filters: map[string]string{"status": "Completed"}})
	if fmt.Sprint(recordIDs(got)) != "[T1 T3]" {
		t.Fatalf("expected T1 and T3 completed, got %v", recordIDs(got))
	}
}

func TestBulkSetStatusUsesStageForDeals(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityDeal: {
		deal("D1", domain.StageProspecting, 10),
		deal("D2", domain.StageProspecting, 20),
	}})
	ctx := context.Background()
	if _, err := svc.BulkSetStatus(ctx, domain.EntityDeal, []string{"D1", "D2"}, "Negotiation"); err != nil {
		t.Fatalf("bulk stage: %v", err)
	}
	summary, _ := svc.PipelineSummary(ctx)
	if summary[2].Stage != domain.StageNegotiation || summary[2].Count != 2 || summary[2].TotalAmount != 30 {
		t.Fatalf("unexpected negotiation column %+v", summary[2])
	}
}

func TestBulkOperationsAreAllOrNothing(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityTask: taskBatch()})
	ctx := context.Background()
	if _, err := svc.BulkSetStatus(ctx, domain.EntityTask, []string{"T1", "T404"}, "Completed"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.BulkSetStatus(ctx, domain.EntityTask, []string{"T1", "T2"}, "Finished"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	tasks, _ := svc.Collection(ctx, domain.EntityTask)
	for _, r := range tasks {
		if r.(*domain.Task).Status != domain.TaskStatusOpen {
			t.Fatalf("failed bulk update leaked into %s", r.Meta().ID)
		}
	}
}

func TestBulkAssign(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityTask: taskBatch()})
	ctx := context.Background()
	if _, err := svc.BulkAssign(ctx, domain.EntityTask, []string{"T2"}, "Kim"); err != nil {
		t.Fatalf("bulk assign: %v", err)
	}
	got, _ := svc.Query(ctx, domain.EntityTask, Criteria{Filters: map[string]string{"assigned_to": "Kim"}})
	if fmt.Sprint(recordIDs(got)) != "[T2]" {
		t.Fatalf("expected T2 reassigned, got %v", recordIDs(got))
	}
	if _, err := svc.BulkAssign(ctx, domain.EntityLead, []string{"SL1"}, "Kim"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("leads have no owner field, got %v", err)
	}
	if _, err := svc.BulkSetStatus(ctx, domain.EntityContact, []string{"C1"}, "Active"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("contacts have no status field, got %v", err)
	}
}

func TestBulkDeleteSkipsMissing(t *testing.T) {
	svc := newTestService(staticSeeder{domain.EntityTask: taskBatch()})
	ctx := context.Background()
	removed, err := svc.BulkDelete(ctx, domain.EntityTask, []string{"T1", "T404", "T3", "T1"})
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}
	tasks, _ := svc.Collection(ctx, domain.EntityTask)
	if fmt.Sprint(recordIDs(tasks)) != "[T2]" {
		t.Fatalf("unexpected survivors %v", recordIDs(tasks))
	}
}

func TestPipelineSummaryOfSeed(t *testing.T) {
	svc := NewInMemoryService(nil)
	summary, err := svc.PipelineSummary(context.Background())
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	want := []int{15, 12, 8, 5, 3}
	if len(summary) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(summary))
	}
	var total int64
	for i, col := range summary {
		if col.Stage != domain.DealStages()[i] || col.Count != want[i] {
			t.Fatalf("column %d: %+v", i, col)
		}
		total += col.TotalAmount
	}
	// amounts are 50000*(n+1) for n in 0..42
	if total != 50000*43*44/2 {
		t.Fatalf("unexpected pipeline total %d", total)
	}
}

func TestSummarizePipelineIgnoresForeignRecords(t *testing.T) {
	records := []domain.Record{
		deal("D1", domain.StageClosedLost, 5),
		&domain.Contact{Base: domain.Base{ID: "C1"}, Name: "x"},
		deal("D2", "Archived", 7),
	}
	summary := SummarizePipeline(records)
	if summary[4].Count != 1 || summary[4].TotalAmount != 5 {
		t.Fatalf("unexpected closed lost column %+v", summary[4])
	}
	for _, col := range summary[:4] {
		if col.Count != 0 {
			t.Fatalf("unexpected column %+v", col)
		}
	}
}
