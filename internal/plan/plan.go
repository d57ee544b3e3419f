// Package plan computes store mutations from user intents. Everything
// here is pure: a plan is a value describing what the store should do,
// and building one never touches the store or the inputs.
package plan

import (
	"errors"
	"fmt"
	"time"

	"github.com/sandeepkv93/ghostd/internal/model"
	"github.com/sandeepkv93/ghostd/internal/rrule"
)

var (
	ErrInvalidIntent = errors.New("plan: invalid intent")
	ErrNotRecurring  = errors.New("plan: intent requires a recurring task")
	ErrTaskMismatch  = errors.New("plan: occurrence does not belong to task")
)

type Intent string

const (
	IntentToggle         Intent = "toggle"
	IntentEditInstance   Intent = "edit_instance"
	IntentEditSeries     Intent = "edit_series"
	IntentEditFuture     Intent = "edit_future"
	IntentDeleteInstance Intent = "delete_instance"
	IntentDeleteFuture   Intent = "delete_future"
	IntentDeleteAll      Intent = "delete_all"
)

func (i Intent) IsValid() bool {
	switch i {
	case IntentToggle, IntentEditInstance, IntentEditSeries, IntentEditFuture,
		IntentDeleteInstance, IntentDeleteFuture, IntentDeleteAll:
		return true
	default:
		return false
	}
}

// Edit carries the fields an edit intent applies. Nil pointers leave
// the field untouched. TargetDate moves the edited instance (or starts
// the new master on a split); empty keeps the occurrence date.
type Edit struct {
	Title      *string
	Notes      *string
	Deadline   *string
	Color      *string
	Importance *int
	TargetDate string
	Rule       *rrule.Rule
}

type Kind string

const (
	KindUpdateMaster   Kind = "update_master"
	KindReplaceMaster  Kind = "replace_master"
	KindCreateDetached Kind = "create_detached"
	KindRemoveTask     Kind = "remove_task"
)

// Plan is the tagged union the controller applies atomically.
// UpdateMaster: Update replaces the task in place. ReplaceMaster:
// Update replaces the old master and Create is appended. CreateDetached
// has the same shape with Create being a rule-free single. RemoveTask:
// RemoveID is filtered out.
type Plan struct {
	Kind     Kind
	Update   *model.Task
	Create   *model.Task
	RemoveID string
}

// NewID produces ids for masters created by a split and singles created
// by a detach. Replaced in tests for determinism.
var NewID = func() string { return newUUID() }

// Build maps one user intent on one projected occurrence to a plan.
func Build(occ model.Occurrence, task model.Task, intent Intent, edit Edit) (Plan, error) {
	if !intent.IsValid() {
		return Plan{}, fmt.Errorf("%w: %q", ErrInvalidIntent, intent)
	}
	if occ.TaskID != task.ID {
		return Plan{}, fmt.Errorf("%w: %s vs %s", ErrTaskMismatch, occ.TaskID, task.ID)
	}

	switch intent {
	case IntentToggle:
		return buildToggle(occ, task), nil
	case IntentEditInstance:
		return buildEditInstance(occ, task, edit)
	case IntentEditSeries:
		return buildEditSeries(task, edit)
	case IntentEditFuture:
		return buildEditFuture(occ, task, edit)
	case IntentDeleteInstance:
		return buildDeleteInstance(occ, task), nil
	case IntentDeleteFuture:
		return buildDeleteFuture(occ, task)
	case IntentDeleteAll:
		return Plan{Kind: KindRemoveTask, RemoveID: task.ID}, nil
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrInvalidIntent, intent)
}

// Toggle is a symmetric difference on the completion set, so applying
// it twice restores the original state. Exception dates are never
// touched.
func buildToggle(occ model.Occurrence, task model.Task) Plan {
	updated := task.Clone()
	if task.IsMaster() {
		updated.CompletedDates.Toggle(occ.Date)
	} else {
		updated.CompletedDates.Toggle(task.Date)
	}
	return Plan{Kind: KindUpdateMaster, Update: &updated}
}

// buildEditInstance detaches one occurrence: the date becomes a
// permanent exception on the master and an independent single is
// created from the master's payload with the edits applied. The single
// always starts open; completion never carries over from the master.
func buildEditInstance(occ model.Occurrence, task model.Task, edit Edit) (Plan, error) {
	if !task.IsMaster() {
		return Plan{}, fmt.Errorf("%w: edit_instance on %s", ErrNotRecurring, task.ID)
	}

	updated := task.Clone()
	updated.ExceptionDates.Add(occ.Date)
	updated.CompletedDates.Remove(occ.Date)
	delete(updated.SubtaskOverlay, occ.Date)

	single := task.Clone()
	single.ID = NewID()
	single.Recurrence = ""
	single.CompletedDates = nil
	single.ExceptionDates = nil
	single.SubtaskOverlay = nil
	single.SeriesID = ""
	single.DetachedFromID = task.ID
	single.Date = occ.Date
	if edit.TargetDate != "" {
		single.Date = edit.TargetDate
	}
	applyFields(&single, edit)

	return Plan{Kind: KindCreateDetached, Update: &updated, Create: &single}, nil
}

// buildEditSeries edits the master in place. A changed recurrence
// pattern is re-serialized keeping the master's own date as dtstart.
func buildEditSeries(task model.Task, edit Edit) (Plan, error) {
	updated := task.Clone()
	applyFields(&updated, edit)
	if edit.Rule != nil {
		if err := edit.Rule.Validate(); err != nil {
			return Plan{}, err
		}
		updated.Recurrence = edit.Rule.String()
	}
	return Plan{Kind: KindUpdateMaster, Update: &updated}, nil
}

// buildEditFuture bisects the series at the occurrence date: the old
// master's rule is clamped to end the day before, and a fresh master
// owns everything from the target date on. Splitting at the series'
// own start date degenerates to an edit of the whole series.
func buildEditFuture(occ model.Occurrence, task model.Task, edit Edit) (Plan, error) {
	if !task.IsMaster() {
		return Plan{}, fmt.Errorf("%w: edit_future on %s", ErrNotRecurring, task.ID)
	}
	if occ.Date == task.Date {
		return buildEditSeries(task, edit)
	}

	oldRule, splitAt, err := parseForSplit(task, occ.Date)
	if err != nil {
		return Plan{}, err
	}

	updated := task.Clone()
	updated.Recurrence = oldRule.ClampBefore(splitAt).String()
	pruneFrom(&updated, occ.Date)

	newRule := oldRule
	if edit.Rule != nil {
		if err := edit.Rule.Validate(); err != nil {
			return Plan{}, err
		}
		newRule = *edit.Rule
	} else if oldRule.Count > 0 {
		dtstart, err := model.ParseDate(task.Date)
		if err != nil {
			return Plan{}, err
		}
		remaining, err := oldRule.RemainingCount(dtstart, splitAt)
		if err != nil {
			return Plan{}, err
		}
		newRule.Count = remaining
	}

	created := task.Clone()
	created.ID = NewID()
	created.CompletedDates = nil
	created.ExceptionDates = nil
	created.SubtaskOverlay = nil
	created.DetachedFromID = ""
	created.SeriesID = task.ID
	created.Date = occ.Date
	if edit.TargetDate != "" {
		created.Date = edit.TargetDate
	}
	created.Recurrence = newRule.String()
	applyFields(&created, edit)

	return Plan{Kind: KindReplaceMaster, Update: &updated, Create: &created}, nil
}

// buildDeleteInstance soft-deletes one occurrence: a pure exception,
// no new task. On a single it removes the task outright.
func buildDeleteInstance(occ model.Occurrence, task model.Task) Plan {
	if !task.IsMaster() {
		return Plan{Kind: KindRemoveTask, RemoveID: task.ID}
	}
	updated := task.Clone()
	updated.ExceptionDates.Add(occ.Date)
	updated.CompletedDates.Remove(occ.Date)
	delete(updated.SubtaskOverlay, occ.Date)
	return Plan{Kind: KindUpdateMaster, Update: &updated}
}

// buildDeleteFuture removes the whole series when triggered from the
// very first occurrence; otherwise it clamps the rule like a split,
// with no new master.
func buildDeleteFuture(occ model.Occurrence, task model.Task) (Plan, error) {
	if !task.IsMaster() {
		return Plan{Kind: KindRemoveTask, RemoveID: task.ID}, nil
	}
	if occ.Date == task.Date {
		return Plan{Kind: KindRemoveTask, RemoveID: task.ID}, nil
	}

	oldRule, splitAt, err := parseForSplit(task, occ.Date)
	if err != nil {
		return Plan{}, err
	}
	updated := task.Clone()
	updated.Recurrence = oldRule.ClampBefore(splitAt).String()
	pruneFrom(&updated, occ.Date)
	return Plan{Kind: KindUpdateMaster, Update: &updated}, nil
}

func parseForSplit(task model.Task, date string) (rrule.Rule, time.Time, error) {
	rule, err := rrule.Parse(task.Recurrence)
	if err != nil {
		return rrule.Rule{}, time.Time{}, err
	}
	at, err := model.ParseDate(date)
	if err != nil {
		return rrule.Rule{}, time.Time{}, err
	}
	return rule, at, nil
}

// pruneFrom drops bookkeeping for dates at or past the boundary; the
// clamped rule can never project them again.
func pruneFrom(t *model.Task, boundary string) {
	for d := range t.CompletedDates {
		if d >= boundary {
			t.CompletedDates.Remove(d)
		}
	}
	for d := range t.ExceptionDates {
		if d >= boundary {
			t.ExceptionDates.Remove(d)
		}
	}
	for d := range t.SubtaskOverlay {
		if d >= boundary {
			delete(t.SubtaskOverlay, d)
		}
	}
}

func applyFields(t *model.Task, edit Edit) {
	if edit.Title != nil {
		t.Title = *edit.Title
	}
	if edit.Notes != nil {
		t.Notes = *edit.Notes
	}
	if edit.Deadline != nil {
		t.Deadline = *edit.Deadline
	}
	if edit.Color != nil {
		t.Color = *edit.Color
	}
	if edit.Importance != nil {
		t.Importance = *edit.Importance
	}
}
