package rrule

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expandDates(t *testing.T, r Rule, dtstart, from, to time.Time) []string {
	t.Helper()
	times, err := r.Expand(dtstart, from, to)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	out := make([]string, 0, len(times))
	for _, at := range times {
		out = append(out, at.UTC().Format("2006-01-02"))
	}
	return out
}

func assertDates(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d dates %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("date[%d] got %s want %s", i, got[i], want[i])
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"FREQ=DAILY",
		"FREQ=DAILY;INTERVAL=3",
		"FREQ=WEEKLY;BYDAY=MO",
		"FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,TH",
		"FREQ=MONTHLY;COUNT=6",
		"FREQ=WEEKLY;BYDAY=MO;UNTIL=20260118T235959Z",
		"FREQ=YEARLY",
	}
	for _, text := range cases {
		rule, err := Parse(text)
		if err != nil {
			t.Fatalf("parse %q failed: %v", text, err)
		}
		if got := rule.String(); got != text {
			t.Fatalf("round trip %q -> %q", text, got)
		}
	}
}

func TestParseToleratesRRulePrefix(t *testing.T) {
	rule, err := Parse("RRULE:FREQ=WEEKLY;BYDAY=MO")
	if err != nil {
		t.Fatalf("parse with prefix failed: %v", err)
	}
	if rule.Freq != Weekly || len(rule.ByDay) != 1 || rule.ByDay[0] != time.Monday {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, text := range []string{"", "FREQ=SOMETIMES", "not a rule at all;;;"} {
		if _, err := Parse(text); err == nil {
			t.Fatalf("expected parse error for %q", text)
		}
	}
}

func TestParseRejectsUnsupportedParts(t *testing.T) {
	cases := []string{
		"FREQ=MONTHLY;BYMONTHDAY=15",
		"FREQ=YEARLY;BYMONTH=3",
		"FREQ=MONTHLY;BYSETPOS=-1",
		"FREQ=DAILY;BYHOUR=5",
		"FREQ=DAILY;BYMINUTE=30",
		"FREQ=DAILY;BYSECOND=10",
		"FREQ=WEEKLY;BYDAY=MO;WKST=SU",
	}
	for _, text := range cases {
		if _, err := Parse(text); !errors.Is(err, ErrUnsupportedPart) {
			t.Fatalf("parse %q: expected ErrUnsupportedPart, got %v", text, err)
		}
	}
}

func TestParseToleratesExplicitMondayWeekStart(t *testing.T) {
	rule, err := Parse("FREQ=WEEKLY;BYDAY=MO;WKST=MO")
	if err != nil {
		t.Fatalf("WKST=MO matches the native week boundary: %v", err)
	}
	if rule.String() != "FREQ=WEEKLY;BYDAY=MO" {
		t.Fatalf("unexpected round trip: %s", rule.String())
	}
}

func TestValidateRejectsByDayOutsideWeekly(t *testing.T) {
	rule := Rule{Freq: Daily, ByDay: []time.Weekday{time.Monday}}
	if err := rule.Validate(); !errors.Is(err, ErrByDayFreq) {
		t.Fatalf("expected ErrByDayFreq, got %v", err)
	}
}

func TestValidateRejectsUntilAndCount(t *testing.T) {
	u := date(2026, 2, 1)
	rule := Rule{Freq: Daily, Until: &u, Count: 3}
	if err := rule.Validate(); !errors.Is(err, ErrUntilAndCount) {
		t.Fatalf("expected ErrUntilAndCount, got %v", err)
	}
}

func TestExpandWeeklyByDay(t *testing.T) {
	rule := Rule{Freq: Weekly, ByDay: []time.Weekday{time.Monday}}
	// 2026-01-05 is a Monday.
	got := expandDates(t, rule, date(2026, 1, 5), date(2026, 1, 5), date(2026, 2, 1))
	assertDates(t, got, []string{"2026-01-05", "2026-01-12", "2026-01-19", "2026-01-26"})
}

func TestExpandDtstartNotMatchingByDay(t *testing.T) {
	// dtstart is a Tuesday; the first Monday after it opens the series.
	rule := Rule{Freq: Weekly, ByDay: []time.Weekday{time.Monday}}
	got := expandDates(t, rule, date(2026, 1, 6), date(2026, 1, 1), date(2026, 1, 31))
	assertDates(t, got, []string{"2026-01-12", "2026-01-19", "2026-01-26"})
}

func TestExpandCountFromDtstartNotWindow(t *testing.T) {
	rule := Rule{Freq: Daily, Count: 5}
	// Window starts after two occurrences were consumed by the count.
	got := expandDates(t, rule, date(2026, 1, 5), date(2026, 1, 7), date(2026, 1, 31))
	assertDates(t, got, []string{"2026-01-07", "2026-01-08", "2026-01-09"})
}

func TestExpandUntilInclusive(t *testing.T) {
	u := date(2026, 1, 12)
	rule := Rule{Freq: Weekly, ByDay: []time.Weekday{time.Monday}, Until: &u}
	got := expandDates(t, rule, date(2026, 1, 5), date(2026, 1, 1), date(2026, 2, 1))
	assertDates(t, got, []string{"2026-01-05", "2026-01-12"})
}

func TestExpandIdempotent(t *testing.T) {
	rule := Rule{Freq: Daily, Interval: 2}
	first := expandDates(t, rule, date(2026, 1, 5), date(2026, 1, 5), date(2026, 1, 20))
	second := expandDates(t, rule, date(2026, 1, 5), date(2026, 1, 5), date(2026, 1, 20))
	assertDates(t, first, second)
}

func TestExpandMonthly(t *testing.T) {
	rule := Rule{Freq: Monthly}
	got := expandDates(t, rule, date(2026, 1, 15), date(2026, 1, 1), date(2026, 4, 30))
	assertDates(t, got, []string{"2026-01-15", "2026-02-15", "2026-03-15", "2026-04-15"})
}

func TestClampBefore(t *testing.T) {
	rule := Rule{Freq: Weekly, ByDay: []time.Weekday{time.Monday}}
	clamped := rule.ClampBefore(date(2026, 1, 19))
	if got := clamped.String(); got != "FREQ=WEEKLY;BYDAY=MO;UNTIL=20260118T235959Z" {
		t.Fatalf("unexpected clamped rule: %s", got)
	}

	got := expandDates(t, clamped, date(2026, 1, 5), date(2026, 1, 1), date(2026, 2, 28))
	assertDates(t, got, []string{"2026-01-05", "2026-01-12"})
}

func TestClampBeforeDropsCount(t *testing.T) {
	rule := Rule{Freq: Daily, Count: 10}
	clamped := rule.ClampBefore(date(2026, 1, 8))
	if clamped.Count != 0 {
		t.Fatalf("clamped rule kept COUNT: %+v", clamped)
	}
	if clamped.Until == nil {
		t.Fatalf("clamped rule missing UNTIL")
	}
}

func TestRemainingCount(t *testing.T) {
	rule := Rule{Freq: Daily, Count: 10}
	remaining, err := rule.RemainingCount(date(2026, 1, 5), date(2026, 1, 8))
	if err != nil {
		t.Fatalf("remaining count failed: %v", err)
	}
	// 01-05, 01-06, 01-07 consumed.
	if remaining != 7 {
		t.Fatalf("remaining got %d want 7", remaining)
	}
}

func TestSplitPreservesCountedDomain(t *testing.T) {
	original := Rule{Freq: Daily, Count: 10}
	dtstart := date(2026, 1, 5)
	splitAt := date(2026, 1, 8)

	old := original.ClampBefore(splitAt)
	remaining, err := original.RemainingCount(dtstart, splitAt)
	if err != nil {
		t.Fatalf("remaining count failed: %v", err)
	}
	tail := Rule{Freq: Daily, Count: remaining}

	windowFrom, windowTo := date(2026, 1, 1), date(2026, 2, 28)
	head := expandDates(t, old, dtstart, windowFrom, windowTo)
	rest := expandDates(t, tail, splitAt, windowFrom, windowTo)
	union := append(append([]string{}, head...), rest...)

	want := expandDates(t, original, dtstart, windowFrom, windowTo)
	assertDates(t, union, want)
}
