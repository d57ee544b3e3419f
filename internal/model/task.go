package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-date form used everywhere a task date,
// occurrence date, exception date or completion date is stored.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate = errors.New("model: invalid date")
	ErrEmptyID     = errors.New("model: task id is required")
	ErrEmptyTitle  = errors.New("model: task title is required")
)

func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateSet is a set of ISO calendar dates. The zero value is usable.
type DateSet map[string]struct{}

func NewDateSet(dates ...string) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

func (s DateSet) Has(date string) bool {
	_, ok := s[date]
	return ok
}

func (s *DateSet) Add(date string) {
	if *s == nil {
		*s = make(DateSet)
	}
	(*s)[date] = struct{}{}
}

func (s DateSet) Remove(date string) {
	delete(s, date)
}

// Toggle adds the date when absent and removes it when present.
func (s *DateSet) Toggle(date string) {
	if s.Has(date) {
		s.Remove(date)
		return
	}
	s.Add(date)
}

func (s DateSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (s DateSet) Clone() DateSet {
	if s == nil {
		return nil
	}
	out := make(DateSet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	return out
}

type Subtask struct {
	ID            string
	Title         string
	Completed     bool
	Deadline      string
	EstimatedMins int
}

// SubtaskOverlay records per-occurrence subtask completion for a master,
// keyed by occurrence date then subtask id. An absent date means the
// occurrence shares the master's subtask state.
type SubtaskOverlay map[string]map[string]bool

func (o SubtaskOverlay) Clone() SubtaskOverlay {
	if o == nil {
		return nil
	}
	out := make(SubtaskOverlay, len(o))
	for date, m := range o {
		inner := make(map[string]bool, len(m))
		for id, done := range m {
			inner[id] = done
		}
		out[date] = inner
	}
	return out
}

// Task is the only persisted entity. A non-empty Recurrence makes it a
// master; the recurrence text is opaque here and only the rrule package
// parses or produces it. For a master, Date is the recurrence dtstart.
type Task struct {
	ID             string
	Title          string
	Notes          string
	Date           string
	Recurrence     string
	CompletedDates DateSet
	ExceptionDates DateSet
	Subtasks       []Subtask
	SubtaskOverlay SubtaskOverlay
	SeriesID       string
	DetachedFromID string
	Deadline       string
	EstimatedMins  int
	Color          string
	Importance     int
	CreatedAt      time.Time
}

func (t Task) IsMaster() bool {
	return strings.TrimSpace(t.Recurrence) != ""
}

// Done reports completion for a single task. Masters track completion
// per occurrence date instead.
func (t Task) Done() bool {
	return !t.IsMaster() && t.CompletedDates.Has(t.Date)
}

// SubtaskDone resolves subtask completion for one occurrence date,
// preferring the per-date overlay over the shared subtask state.
func (t Task) SubtaskDone(date, subtaskID string) bool {
	if m, ok := t.SubtaskOverlay[date]; ok {
		if done, ok := m[subtaskID]; ok {
			return done
		}
	}
	for _, st := range t.Subtasks {
		if st.ID == subtaskID {
			return st.Completed
		}
	}
	return false
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	for _, st := range t.Subtasks {
		if strings.TrimSpace(st.ID) == "" {
			return errors.New("model: subtask id is required")
		}
	}
	return nil
}

// Clone returns a deep copy; mutation plans operate on copies so the
// store's current state is never aliased.
func (t Task) Clone() Task {
	out := t
	out.CompletedDates = t.CompletedDates.Clone()
	out.ExceptionDates = t.ExceptionDates.Clone()
	out.SubtaskOverlay = t.SubtaskOverlay.Clone()
	if t.Subtasks != nil {
		out.Subtasks = make([]Subtask, len(t.Subtasks))
		copy(out.Subtasks, t.Subtasks)
	}
	return out
}
