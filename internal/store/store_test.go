package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/ghostd/internal/model"
	"github.com/sandeepkv93/ghostd/internal/plan"
)

// fakeRepo records saved documents and can be told to fail the next
// N save attempts.
type fakeRepo struct {
	tasks     []model.Task
	saved     [][]model.Task
	failSaves int
	saveCalls int
}

func (f *fakeRepo) LoadTasks(ctx context.Context) ([]model.Task, error) {
	out := make([]model.Task, len(f.tasks))
	for i, t := range f.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

func (f *fakeRepo) SaveTasks(ctx context.Context, tasks []model.Task) error {
	f.saveCalls++
	if f.failSaves > 0 {
		f.failSaves--
		return errors.New("disk on fire")
	}
	doc := make([]model.Task, len(tasks))
	for i, t := range tasks {
		doc[i] = t.Clone()
	}
	f.saved = append(f.saved, doc)
	return nil
}

func (f *fakeRepo) lastSaved() []model.Task {
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

func master() model.Task {
	return model.Task{
		ID:         "m1",
		Title:      "Weekly review",
		Date:       "2026-01-05",
		Recurrence: "FREQ=WEEKLY;BYDAY=MO",
	}
}

func newTestController(t *testing.T, seed ...model.Task) (*Controller, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{tasks: seed}
	ctrl := NewController(repo, time.Second)
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return ctrl, repo
}

func TestAddPersistsWholeDocument(t *testing.T) {
	ctrl, repo := newTestController(t, master())

	err := ctrl.Add(context.Background(), model.Task{ID: "t1", Title: "Call bank", Date: "2026-01-14"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	doc := repo.lastSaved()
	if len(doc) != 2 || doc[0].ID != "m1" || doc[1].ID != "t1" {
		t.Fatalf("unexpected saved document: %+v", doc)
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	ctrl, repo := newTestController(t, master())

	err := ctrl.Add(context.Background(), model.Task{ID: "m1", Title: "Copycat", Date: "2026-01-14"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("rejected add must not touch storage")
	}
}

func TestAddRejectsInvalidTask(t *testing.T) {
	ctrl, _ := newTestController(t)
	if err := ctrl.Add(context.Background(), model.Task{ID: "x", Date: "2026-01-14"}); err == nil {
		t.Fatalf("expected validation error for missing title")
	}
}

func TestApplyUpdateMaster(t *testing.T) {
	ctrl, repo := newTestController(t, master())
	updated := master()
	updated.CompletedDates = model.NewDateSet("2026-01-12")

	err := ctrl.Apply(context.Background(), plan.Plan{Kind: plan.KindUpdateMaster, Update: &updated})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	got, ok := ctrl.Task("m1")
	if !ok || !got.CompletedDates.Has("2026-01-12") {
		t.Fatalf("memory missing the update: %+v", got)
	}
	doc := repo.lastSaved()
	if len(doc) != 1 || !doc[0].CompletedDates.Has("2026-01-12") {
		t.Fatalf("disk missing the update: %+v", doc)
	}
}

func TestApplyReplaceMasterIsAtomic(t *testing.T) {
	ctrl, repo := newTestController(t, master())
	clamped := master()
	clamped.Recurrence = "FREQ=WEEKLY;BYDAY=MO;UNTIL=20260118T235959Z"
	fresh := model.Task{
		ID:         "m2",
		Title:      "Weekly review",
		Date:       "2026-01-19",
		Recurrence: "FREQ=WEEKLY;BYDAY=MO",
		SeriesID:   "m1",
	}

	err := ctrl.Apply(context.Background(), plan.Plan{
		Kind:   plan.KindReplaceMaster,
		Update: &clamped,
		Create: &fresh,
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	doc := repo.lastSaved()
	if len(doc) != 2 {
		t.Fatalf("expected both halves of the split in one save, got %d tasks", len(doc))
	}
	if doc[0].Recurrence != clamped.Recurrence || doc[1].ID != "m2" {
		t.Fatalf("unexpected saved document: %+v", doc)
	}
	if repo.saveCalls != 1 {
		t.Fatalf("split must be a single save, got %d", repo.saveCalls)
	}
}

func TestApplyRemoveTask(t *testing.T) {
	ctrl, repo := newTestController(t, master(), model.Task{ID: "t1", Title: "Call bank", Date: "2026-01-14"})

	err := ctrl.Apply(context.Background(), plan.Plan{Kind: plan.KindRemoveTask, RemoveID: "m1"})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if _, ok := ctrl.Task("m1"); ok {
		t.Fatalf("removed task still present in memory")
	}
	doc := repo.lastSaved()
	if len(doc) != 1 || doc[0].ID != "t1" {
		t.Fatalf("unexpected saved document: %+v", doc)
	}
}

func TestApplyRejectsUnknownTarget(t *testing.T) {
	ctrl, repo := newTestController(t, master())
	ghostTask := model.Task{ID: "nope", Title: "x", Date: "2026-01-05"}

	err := ctrl.Apply(context.Background(), plan.Plan{Kind: plan.KindUpdateMaster, Update: &ghostTask})
	if !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("failed apply must not reach storage")
	}
}

func TestApplyRejectsInvalidPayload(t *testing.T) {
	ctrl, repo := newTestController(t, master())
	bad := master()
	bad.Title = "   "

	err := ctrl.Apply(context.Background(), plan.Plan{Kind: plan.KindUpdateMaster, Update: &bad})
	if err == nil {
		t.Fatalf("expected validation error for blank title")
	}
	if repo.saveCalls != 0 {
		t.Fatalf("invalid plan must not reach storage")
	}
	got, _ := ctrl.Task("m1")
	if got.Title != "Weekly review" {
		t.Fatalf("invalid plan must not mutate memory")
	}

	clamped := master()
	badCreate := model.Task{ID: "m2", Date: "2026-01-19", SeriesID: "m1"}
	err = ctrl.Apply(context.Background(), plan.Plan{
		Kind:   plan.KindReplaceMaster,
		Update: &clamped,
		Create: &badCreate,
	})
	if err == nil {
		t.Fatalf("expected validation error for untitled created task")
	}
	if _, ok := ctrl.Task("m2"); ok {
		t.Fatalf("invalid created task must not land in memory")
	}
}

func TestApplyRejectsEmptyAndUnknownPlans(t *testing.T) {
	ctrl, _ := newTestController(t, master())
	if err := ctrl.Apply(context.Background(), plan.Plan{Kind: plan.KindUpdateMaster}); !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
	if err := ctrl.Apply(context.Background(), plan.Plan{Kind: plan.Kind("mystery")}); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestPersistRetriesOnce(t *testing.T) {
	ctrl, repo := newTestController(t, master())
	repo.failSaves = 1

	updated := master()
	updated.Title = "Renamed"
	err := ctrl.Apply(context.Background(), plan.Plan{Kind: plan.KindUpdateMaster, Update: &updated})
	if err != nil {
		t.Fatalf("apply should succeed on retry: %v", err)
	}
	if repo.saveCalls != 2 {
		t.Fatalf("expected one retry, got %d calls", repo.saveCalls)
	}
	if ctrl.Dirty() {
		t.Fatalf("successful retry must clear the dirty flag")
	}
}

func TestFailedSaveKeepsMutationAndMarksDirty(t *testing.T) {
	ctrl, repo := newTestController(t, master())
	repo.failSaves = 2

	updated := master()
	updated.Title = "Renamed"
	err := ctrl.Apply(context.Background(), plan.Plan{Kind: plan.KindUpdateMaster, Update: &updated})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if !ctrl.Dirty() {
		t.Fatalf("failed save must mark the controller dirty")
	}
	got, _ := ctrl.Task("m1")
	if got.Title != "Renamed" {
		t.Fatalf("mutation must survive in memory after a failed save")
	}
}

func TestFlushRetriesDirtyState(t *testing.T) {
	ctrl, repo := newTestController(t, master())
	repo.failSaves = 2

	updated := master()
	updated.Title = "Renamed"
	if err := ctrl.Apply(context.Background(), plan.Plan{Kind: plan.KindUpdateMaster, Update: &updated}); err == nil {
		t.Fatalf("expected the apply to fail")
	}

	if err := ctrl.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if ctrl.Dirty() {
		t.Fatalf("flush must clear the dirty flag")
	}
	doc := repo.lastSaved()
	if len(doc) != 1 || doc[0].Title != "Renamed" {
		t.Fatalf("flush wrote the wrong document: %+v", doc)
	}
}

func TestFlushIsNoOpWhenClean(t *testing.T) {
	ctrl, repo := newTestController(t, master())
	if err := ctrl.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("clean flush must not touch storage")
	}
}

func TestTasksReturnsDetachedCopies(t *testing.T) {
	ctrl, _ := newTestController(t, master())
	snapshot := ctrl.Tasks()
	snapshot[0].Title = "Vandalized"
	snapshot[0].CompletedDates = model.NewDateSet("2026-01-12")

	got, _ := ctrl.Task("m1")
	if got.Title != "Weekly review" || got.CompletedDates.Has("2026-01-12") {
		t.Fatalf("snapshot mutation leaked into the controller")
	}
}
