// Package rrule is the only boundary at which recurrence-rule text is
// parsed or produced. The rest of the engine passes the structured Rule
// around; persistence and the RRULE grammar round-trip through here.
package rrule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	rr "github.com/teambition/rrule-go"
)

const untilLayout = "20060102T150405Z"

var (
	ErrParse           = errors.New("rrule: malformed rule")
	ErrUnsupportedFreq = errors.New("rrule: unsupported frequency")
	ErrUnsupportedPart = errors.New("rrule: unsupported rule part")
	ErrByDayFreq       = errors.New("rrule: BYDAY requires FREQ=WEEKLY")
	ErrUntilAndCount   = errors.New("rrule: UNTIL and COUNT are mutually exclusive")
)

type Freq string

const (
	Daily   Freq = "DAILY"
	Weekly  Freq = "WEEKLY"
	Monthly Freq = "MONTHLY"
	Yearly  Freq = "YEARLY"
)

func (f Freq) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// Rule is a recurrence pattern without its anchor. The owning task's
// date is the dtstart and is supplied at expansion time, so the two can
// never drift apart.
type Rule struct {
	Freq     Freq
	Interval int
	ByDay    []time.Weekday
	Until    *time.Time
	Count    int
}

var freqToLib = map[Freq]rr.Frequency{
	Daily:   rr.DAILY,
	Weekly:  rr.WEEKLY,
	Monthly: rr.MONTHLY,
	Yearly:  rr.YEARLY,
}

var libToFreq = map[rr.Frequency]Freq{
	rr.DAILY:   Daily,
	rr.WEEKLY:  Weekly,
	rr.MONTHLY: Monthly,
	rr.YEARLY:  Yearly,
}

var weekdayToLib = map[time.Weekday]rr.Weekday{
	time.Monday:    rr.MO,
	time.Tuesday:   rr.TU,
	time.Wednesday: rr.WE,
	time.Thursday:  rr.TH,
	time.Friday:    rr.FR,
	time.Saturday:  rr.SA,
	time.Sunday:    rr.SU,
}

var libToWeekday = map[rr.Weekday]time.Weekday{
	rr.MO: time.Monday,
	rr.TU: time.Tuesday,
	rr.WE: time.Wednesday,
	rr.TH: time.Thursday,
	rr.FR: time.Friday,
	rr.SA: time.Saturday,
	rr.SU: time.Sunday,
}

var weekdayCode = map[time.Weekday]string{
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
	time.Sunday:    "SU",
}

func (r Rule) Validate() error {
	if !r.Freq.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedFreq, r.Freq)
	}
	if r.Interval < 0 {
		return fmt.Errorf("rrule: invalid interval %d", r.Interval)
	}
	if len(r.ByDay) > 0 && r.Freq != Weekly {
		return ErrByDayFreq
	}
	if r.Until != nil && r.Count > 0 {
		return ErrUntilAndCount
	}
	return nil
}

// Parse reads the canonical FREQ=...;INTERVAL=...;BYDAY=...;UNTIL=...;
// COUNT=... text form. A leading "RRULE:" name is tolerated.
func Parse(s string) (Rule, error) {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "RRULE:"))
	if body == "" {
		return Rule{}, fmt.Errorf("%w: empty", ErrParse)
	}
	opt, err := rr.StrToROption(body)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	freq, ok := libToFreq[opt.Freq]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnsupportedFreq, s)
	}
	if len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 || len(opt.Byyearday) > 0 ||
		len(opt.Byweekno) > 0 || len(opt.Bysetpos) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 ||
		len(opt.Byeaster) > 0 {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnsupportedPart, s)
	}
	// Occurrences are whole UTC days counted Monday-first; a WKST other
	// than MO would change week boundaries, so it cannot round-trip.
	if opt.Wkst != rr.MO {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnsupportedPart, s)
	}

	out := Rule{Freq: freq, Interval: opt.Interval, Count: opt.Count}
	if !opt.Until.IsZero() {
		u := opt.Until.UTC()
		out.Until = &u
	}
	for _, wd := range opt.Byweekday {
		mapped, ok := libToWeekday[wd]
		if !ok {
			return Rule{}, fmt.Errorf("%w: %q", ErrUnsupportedPart, s)
		}
		out.ByDay = append(out.ByDay, mapped)
	}
	sortByDay(out.ByDay)
	if err := out.Validate(); err != nil {
		return Rule{}, err
	}
	return out, nil
}

// String renders the canonical text form. INTERVAL=1 is implied and
// omitted; BYDAY is emitted Monday-first.
func (r Rule) String() string {
	parts := []string{"FREQ=" + string(r.Freq)}
	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	if len(r.ByDay) > 0 {
		days := append([]time.Weekday(nil), r.ByDay...)
		sortByDay(days)
		codes := make([]string, 0, len(days))
		for _, d := range days {
			codes = append(codes, weekdayCode[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	switch {
	case r.Until != nil:
		parts = append(parts, "UNTIL="+r.Until.UTC().Format(untilLayout))
	case r.Count > 0:
		parts = append(parts, fmt.Sprintf("COUNT=%d", r.Count))
	}
	return strings.Join(parts, ";")
}

// Expand returns every occurrence instant in [from, to], inclusive on
// both ends, ordered ascending. Pure and idempotent; dtstart itself is
// a candidate only when it satisfies the frequency and BYDAY
// constraints. COUNT is counted from dtstart, not from the window.
func (r Rule) Expand(dtstart, from, to time.Time) ([]time.Time, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	opt := rr.ROption{
		Freq:     freqToLib[r.Freq],
		Interval: r.Interval,
		Dtstart:  midnight(dtstart),
		Count:    r.Count,
	}
	if opt.Interval == 0 {
		opt.Interval = 1
	}
	if r.Until != nil {
		opt.Until = r.Until.UTC()
	}
	for _, wd := range r.ByDay {
		opt.Byweekday = append(opt.Byweekday, weekdayToLib[wd])
	}
	rule, err := rr.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return rule.Between(from.UTC(), to.UTC(), true), nil
}

// ClampBefore bisects the rule's time domain: the returned copy ends
// the day before target (UNTIL at 23:59:59Z) and never carries COUNT,
// since UNTIL and COUNT are mutually exclusive in valid output.
func (r Rule) ClampBefore(target time.Time) Rule {
	out := r
	out.ByDay = append([]time.Weekday(nil), r.ByDay...)
	out.Count = 0
	u := midnight(target).AddDate(0, 0, -1).Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	out.Until = &u
	return out
}

// RemainingCount reports how many of a counted rule's occurrences fall
// on or after target, so a split can hand the tail to a new master
// without changing the series total. Zero for uncounted rules.
func (r Rule) RemainingCount(dtstart, target time.Time) (int, error) {
	if r.Count <= 0 {
		return 0, nil
	}
	end := midnight(target).Add(-time.Second)
	consumed, err := r.Expand(dtstart, midnight(dtstart), end)
	if err != nil {
		return 0, err
	}
	remaining := r.Count - len(consumed)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func sortByDay(days []time.Weekday) {
	sort.Slice(days, func(i, j int) bool {
		return mondayFirst(days[i]) < mondayFirst(days[j])
	})
}

func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
