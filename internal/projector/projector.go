// Package projector derives the visible item list for a date window.
// It is read-only: the view is always rebuilt from store state, never
// patched in place.
package projector

import (
	"sort"
	"time"

	"github.com/sandeepkv93/ghostd/internal/logging"
	"github.com/sandeepkv93/ghostd/internal/model"
	"github.com/sandeepkv93/ghostd/internal/rrule"
)

// DefaultBufferDays is how far past the window masters are expanded, so
// trailing partially-visible weeks still resolve against correct data.
const DefaultBufferDays = 30

// Project expands every master over [windowStart, windowStart+days),
// drops excepted and completed dates, merges open singles, dedups by
// occurrence id and sorts by date. A master whose recurrence text does
// not parse is logged and skipped; one bad rule never blanks the view.
func Project(tasks []model.Task, windowStart time.Time, days int) []model.Occurrence {
	return ProjectBuffered(tasks, windowStart, days, DefaultBufferDays)
}

func ProjectBuffered(tasks []model.Task, windowStart time.Time, days, bufferDays int) []model.Occurrence {
	if days <= 0 {
		return []model.Occurrence{}
	}
	if bufferDays < DefaultBufferDays {
		bufferDays = DefaultBufferDays
	}
	start := midnight(windowStart)
	end := start.AddDate(0, 0, days)
	expandEnd := start.AddDate(0, 0, days+bufferDays)

	out := make([]model.Occurrence, 0, len(tasks))
	index := make(map[string]int)

	emit := func(occ model.Occurrence) {
		at, ok := index[occ.ID]
		if !ok {
			index[occ.ID] = len(out)
			out = append(out, occ)
			return
		}
		// Id collision: a detached single outranks a ghost with the
		// same id. Ghosts never replace anything.
		if !out[at].Recurring && occ.Recurring {
			return
		}
		out[at] = occ
	}

	for _, t := range tasks {
		if !t.IsMaster() {
			continue
		}
		rule, err := rrule.Parse(t.Recurrence)
		if err != nil {
			logging.L().Warn().
				Str("task_id", t.ID).
				Str("rule", t.Recurrence).
				Err(err).
				Msg("skipping master with malformed recurrence")
			continue
		}
		dtstart, err := model.ParseDate(t.Date)
		if err != nil {
			logging.L().Warn().Str("task_id", t.ID).Err(err).Msg("skipping master with malformed date")
			continue
		}
		candidates, err := rule.Expand(dtstart, start, expandEnd)
		if err != nil {
			logging.L().Warn().Str("task_id", t.ID).Err(err).Msg("skipping master that failed to expand")
			continue
		}
		for _, c := range candidates {
			if !c.Before(end) {
				break
			}
			date := model.FormatDate(c)
			if t.ExceptionDates.Has(date) || t.CompletedDates.Has(date) {
				continue
			}
			emit(model.NewOccurrence(t, date, true))
		}
	}

	for _, t := range tasks {
		if t.IsMaster() || t.Done() {
			continue
		}
		due, err := model.ParseDate(t.Date)
		if err != nil {
			logging.L().Warn().Str("task_id", t.ID).Err(err).Msg("skipping single with malformed date")
			continue
		}
		if due.Before(start) || !due.Before(end) {
			continue
		}
		emit(model.NewOccurrence(t, t.Date, false))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

func midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
