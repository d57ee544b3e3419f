package model

// Occurrence is a derived, never-persisted view item: one date-bound
// projection of a master ("ghost") or a single task. Its ID is
// deterministic so identical projections dedup identically.
type Occurrence struct {
	ID            string
	TaskID        string
	Date          string
	Recurring     bool
	Completed     bool
	Title         string
	Notes         string
	Subtasks      []Subtask
	Deadline      string
	EstimatedMins int
	Color         string
	Importance    int
}

// OccurrenceID is "<taskID>_<date>" for a recurring instance and the
// bare task id for a single.
func OccurrenceID(taskID, date string, recurring bool) string {
	if recurring {
		return taskID + "_" + date
	}
	return taskID
}

// NewOccurrence projects one date of a task, carrying the task's
// current payload verbatim.
func NewOccurrence(t Task, date string, recurring bool) Occurrence {
	subtasks := make([]Subtask, len(t.Subtasks))
	copy(subtasks, t.Subtasks)
	if recurring {
		for i := range subtasks {
			subtasks[i].Completed = t.SubtaskDone(date, subtasks[i].ID)
		}
	}
	return Occurrence{
		ID:            OccurrenceID(t.ID, date, recurring),
		TaskID:        t.ID,
		Date:          date,
		Recurring:     recurring,
		Title:         t.Title,
		Notes:         t.Notes,
		Subtasks:      subtasks,
		Deadline:      t.Deadline,
		EstimatedMins: t.EstimatedMins,
		Color:         t.Color,
		Importance:    t.Importance,
	}
}
