package update

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/ghostd/internal/model"
	"github.com/sandeepkv93/ghostd/internal/rrule"
)

type QuickAddErrorCode string

const (
	ErrCodeEmptyInput   QuickAddErrorCode = "empty_input"
	ErrCodeEmptyTitle   QuickAddErrorCode = "empty_title"
	ErrCodeBadDate      QuickAddErrorCode = "bad_date"
	ErrCodeBadFrequency QuickAddErrorCode = "bad_frequency"
)

type QuickAddError struct {
	Code    QuickAddErrorCode
	Message string
}

func (e *QuickAddError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ParseQuickAdd reads the agenda quick-add grammar:
//
//	<title> [@YYYY-MM-DD] [every <pattern>]
//
// where pattern is day|week|month|year, "N days|weeks|months|years",
// or a comma-separated weekday list (mon,thu or monday,thursday).
// Without a date the task lands on today; with an "every" clause the
// task becomes a recurring master anchored on that date.
func ParseQuickAdd(input string, today time.Time) (model.Task, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return model.Task{}, &QuickAddError{Code: ErrCodeEmptyInput, Message: "nothing to add"}
	}

	date := model.FormatDate(today)
	everyClause := ""

	if at := strings.Index(raw, " every "); at >= 0 {
		everyClause = strings.TrimSpace(raw[at+len(" every "):])
		raw = strings.TrimSpace(raw[:at])
	}

	titleWords := make([]string, 0, 8)
	for _, word := range strings.Fields(raw) {
		if strings.HasPrefix(word, "@") {
			candidate := strings.TrimPrefix(word, "@")
			if _, err := model.ParseDate(candidate); err != nil {
				return model.Task{}, &QuickAddError{Code: ErrCodeBadDate, Message: fmt.Sprintf("bad date %q, want YYYY-MM-DD", candidate)}
			}
			date = candidate
			continue
		}
		titleWords = append(titleWords, word)
	}
	title := strings.Join(titleWords, " ")
	if title == "" {
		return model.Task{}, &QuickAddError{Code: ErrCodeEmptyTitle, Message: "a title is required"}
	}

	task := model.Task{
		ID:        uuid.NewString(),
		Title:     title,
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}
	if everyClause != "" {
		rule, err := parseEvery(everyClause)
		if err != nil {
			return model.Task{}, err
		}
		task.Recurrence = rule.String()
	}
	return task, nil
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

func parseEvery(clause string) (rrule.Rule, error) {
	fields := strings.Fields(strings.ToLower(clause))
	if len(fields) == 0 {
		return rrule.Rule{}, &QuickAddError{Code: ErrCodeBadFrequency, Message: "empty recurrence"}
	}

	if len(fields) == 1 {
		switch fields[0] {
		case "day":
			return rrule.Rule{Freq: rrule.Daily, Interval: 1}, nil
		case "week":
			return rrule.Rule{Freq: rrule.Weekly, Interval: 1}, nil
		case "month":
			return rrule.Rule{Freq: rrule.Monthly, Interval: 1}, nil
		case "year":
			return rrule.Rule{Freq: rrule.Yearly, Interval: 1}, nil
		}
		if days, ok := parseWeekdayList(fields[0]); ok {
			return rrule.Rule{Freq: rrule.Weekly, Interval: 1, ByDay: days}, nil
		}
		return rrule.Rule{}, &QuickAddError{Code: ErrCodeBadFrequency, Message: fmt.Sprintf("unknown recurrence %q", clause)}
	}

	if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
		switch strings.TrimSuffix(fields[1], "s") {
		case "day":
			return rrule.Rule{Freq: rrule.Daily, Interval: n}, nil
		case "week":
			return rrule.Rule{Freq: rrule.Weekly, Interval: n}, nil
		case "month":
			return rrule.Rule{Freq: rrule.Monthly, Interval: n}, nil
		case "year":
			return rrule.Rule{Freq: rrule.Yearly, Interval: n}, nil
		}
	}
	return rrule.Rule{}, &QuickAddError{Code: ErrCodeBadFrequency, Message: fmt.Sprintf("unknown recurrence %q", clause)}
}

func parseWeekdayList(raw string) ([]time.Weekday, bool) {
	parts := strings.Split(raw, ",")
	out := make([]time.Weekday, 0, len(parts))
	seen := make(map[time.Weekday]bool)
	for _, p := range parts {
		wd, ok := weekdayNames[strings.TrimSpace(p)]
		if !ok {
			return nil, false
		}
		if !seen[wd] {
			seen[wd] = true
			out = append(out, wd)
		}
	}
	return out, len(out) > 0
}
