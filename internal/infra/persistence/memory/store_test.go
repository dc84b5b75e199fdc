package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"admissions/pkg/domain"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s-%d", n)
	}
}

func newTestStore(engine *domain.RulesEngine) *Store {
	clock := &stepClock{t: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
	return NewStore(engine, WithClock(clock.now), WithIDFunc(sequentialIDs()))
}

func createStudent(t *testing.T, store *Store, name string) Student {
	t.Helper()
	var created Student
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateStudent(domain.Student{Name: name, Class: "Form 1 Science", Gender: domain.GenderFemale})
		return err
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return created
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := newTestStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		created, err := tx.CreateStudent(domain.Student{Name: "Esi", Class: "Form 1 Business", Gender: domain.GenderFemale, CheatNumber: "CHT-1"})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if len(tx.Snapshot().ListStudents()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListStudents()) != 1 {
		t.Fatalf("expected persisted student")
	}
	snapshot := store.State()
	store.ImportState(AppState{})
	if len(store.ListStudents()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListStudents()) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
	if store.NowFunc() == nil {
		t.Fatalf("expected now func")
	}
}

func TestCreateStudentInitialStages(t *testing.T) {
	store := newTestStore(nil)
	st := createStudent(t, store, "Yaw")
	if st.Cheat != domain.StatusCompleted {
		t.Fatalf("expected cheat completed, got %s", st.Cheat)
	}
	for _, stage := range domain.Stages()[1:] {
		if got := st.StageStatus(stage); got != domain.StatusPending {
			t.Fatalf("expected %s pending, got %s", stage, got)
		}
	}
	if !st.CreatedAt.Equal(st.UpdatedAt) {
		t.Fatalf("expected equal timestamps on creation")
	}
}

func TestCreateStudentIgnoresSuppliedStages(t *testing.T) {
	store := newTestStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		st, err := tx.CreateStudent(domain.Student{Name: "Abena", Form: domain.StatusCompleted, RectorReview: domain.StatusFailed})
		if err != nil {
			return err
		}
		if st.Form != domain.StatusPending || st.RectorReview != domain.StatusPending {
			t.Fatalf("expected supplied stages reset, got %+v", st)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestCreateStudentRequiresName(t *testing.T) {
	store := newTestStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateStudent(domain.Student{Name: "  "})
		return err
	})
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.ListStudents()) != 0 {
		t.Fatalf("expected no student stored")
	}
}

func TestCreateStudentPreservesOrder(t *testing.T) {
	store := newTestStore(nil)
	names := []string{"A", "B", "C", "D"}
	for _, n := range names {
		createStudent(t, store, n)
	}
	got := store.ListStudents()
	for i, n := range names {
		if got[i].Name != n {
			t.Fatalf("position %d: expected %s, got %s", i, n, got[i].Name)
		}
	}
}

func TestSetStageStatusTouchesOnlyNamedField(t *testing.T) {
	store := newTestStore(nil)
	a := createStudent(t, store, "A")
	b := createStudent(t, store, "B")

	var updated Student
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		updated, err = tx.SetStageStatus(a.ID, domain.CompleteForm())
		return err
	})
	if err != nil {
		t.Fatalf("set stage: %v", err)
	}
	if updated.Form != domain.StatusCompleted {
		t.Fatalf("expected form completed")
	}
	if updated.Payment != domain.StatusPending || updated.Name != a.Name || !updated.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("unexpected collateral change: %+v", updated)
	}
	if !updated.UpdatedAt.After(a.UpdatedAt) {
		t.Fatalf("expected updatedAt bumped")
	}
	other, _ := store.GetStudent(b.ID)
	if other != b {
		t.Fatalf("expected other record untouched")
	}
}

func TestSetStageStatusNotFound(t *testing.T) {
	store := newTestStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.SetStageStatus("missing", domain.CompleteForm())
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetStageStatusNeverMovesUpdatedAtBackwards(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(nil, WithClock(func() time.Time { return now }))
	st := createStudent(t, store, "A")
	now = now.Add(-time.Hour)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		updated, err := tx.SetStageStatus(st.ID, domain.CompleteForm())
		if err != nil {
			return err
		}
		if updated.UpdatedAt.Before(st.UpdatedAt) {
			t.Fatalf("updatedAt moved backwards: %v < %v", updated.UpdatedAt, st.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestFailedTransactionLeavesStateUnchanged(t *testing.T) {
	store := newTestStore(nil)
	st := createStudent(t, store, "A")
	before := store.State()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.SetStageStatus(st.ID, domain.CompleteForm()); err != nil {
			return err
		}
		tx.AdjustFormInventory(-1)
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	after := store.State()
	if after.FormInventory != before.FormInventory || after.Students[0].Form != domain.StatusPending {
		t.Fatalf("expected rollback, got %+v", after)
	}
}

func TestCountersAndAmountPaid(t *testing.T) {
	store := newTestStore(nil)
	st := createStudent(t, store, "A")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		tx.AdjustFormInventory(-1)
		tx.AddRevenue(500)
		paid, err := tx.SetAmountPaid(st.ID, 500)
		if err != nil {
			return err
		}
		if !paid.UpdatedAt.Equal(st.UpdatedAt) {
			t.Fatalf("amount paid must not bump updatedAt")
		}
		view := tx.Snapshot()
		if view.FormInventory() != -1 || view.TotalRevenue() != 500 {
			t.Fatalf("unexpected counters in view: %d %v", view.FormInventory(), view.TotalRevenue())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	got, _ := store.GetStudent(st.ID)
	if got.AmountPaid == nil || *got.AmountPaid != 500 {
		t.Fatalf("expected amount paid recorded")
	}
}

func TestStoreRuleViolation(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := newTestStore(engine)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateStudent(domain.Student{Name: "Fail"})
		return e
	})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListStudents()) != 0 {
		t.Fatalf("expected blocked commit")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestImportStateNormalizes(t *testing.T) {
	store := newTestStore(nil)
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	store.ImportState(AppState{
		Students: []Student{
			{ID: "x", Name: "X", Cheat: "", Form: "bogus", CreatedAt: created, UpdatedAt: created.Add(-time.Hour)},
			{ID: "x", Name: "duplicate"},
			{Name: "no id", Cheat: domain.StatusCompleted, Form: domain.StatusCompleted},
		},
		FormInventory: 7,
	})
	got := store.State()
	if len(got.Students) != 2 {
		t.Fatalf("expected duplicate dropped, got %d", len(got.Students))
	}
	x := got.Students[0]
	if x.Cheat != domain.StatusCompleted || x.Form != domain.StatusPending {
		t.Fatalf("expected statuses repaired, got %+v", x)
	}
	if x.UpdatedAt.Before(x.CreatedAt) {
		t.Fatalf("expected updatedAt clamped")
	}
	if got.Students[1].ID == "" {
		t.Fatalf("expected id assigned")
	}
	if got.FormInventory != 7 {
		t.Fatalf("expected counters preserved")
	}
}

func TestViewIsolation(t *testing.T) {
	store := newTestStore(nil)
	st := createStudent(t, store, "A")
	err := store.View(context.Background(), func(v domain.TransactionView) error {
		found, ok := v.FindStudent(st.ID)
		if !ok {
			t.Fatalf("expected student in view")
		}
		found.Name = "mutated"
		if _, ok := v.FindStudent("missing"); ok {
			t.Fatalf("expected missing lookup to fail")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	got, _ := store.GetStudent(st.ID)
	if got.Name != "A" {
		t.Fatalf("view mutated store state")
	}
}
