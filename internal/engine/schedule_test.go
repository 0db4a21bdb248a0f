package engine

import (
	"testing"
	"time"

	"farmalert/internal/domain"
)

func TestCronMatchesTopOfHour(t *testing.T) {
	t.Parallel()

	for hour := 0; hour < 24; hour += 5 {
		now := time.Date(2026, time.March, 14, hour, 0, 30, 0, time.UTC)
		if !CronMatches("0 * * * *", now) {
			t.Fatalf("expected match at minute 0, hour %d", hour)
		}
		off := now.Add(time.Minute)
		if CronMatches("0 * * * *", off) {
			t.Fatalf("expected no match at minute 1, hour %d", hour)
		}
	}
}

func TestCronMonthFieldComparedAgainstZeroBasedMonth(t *testing.T) {
	t.Parallel()

	// Field "1" matches February: the author-facing 1-based field is
	// compared against the 0-based calendar month.
	february := time.Date(2026, time.February, 10, 8, 15, 0, 0, time.UTC)
	if !CronMatches("15 8 10 1 *", february) {
		t.Fatalf("expected month field 1 to match February")
	}
	january := time.Date(2026, time.January, 10, 8, 15, 0, 0, time.UTC)
	if CronMatches("15 8 10 1 *", january) {
		t.Fatalf("expected month field 1 not to match January")
	}
}

func TestCronUnsupportedSyntaxNeverMatches(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 14, 10, 5, 0, 0, time.UTC)
	for _, expr := range []string{"*/5 * * * *", "1,2 * * * *", "0-30 * * * *", "* * * *", "0 * * * * *"} {
		if CronMatches(expr, now) {
			t.Fatalf("expected %q to never match", expr)
		}
	}
}

func TestCronDayOfWeek(t *testing.T) {
	t.Parallel()

	sunday := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	if !CronMatches("0 9 * * 0", sunday) {
		t.Fatalf("expected weekday 0 to match Sunday")
	}
	monday := sunday.AddDate(0, 0, 1)
	if CronMatches("0 9 * * 0", monday) {
		t.Fatalf("expected weekday 0 not to match Monday")
	}
}

func TestShouldEvaluateImmediateAlwaysEligible(t *testing.T) {
	t.Parallel()

	scheduler := Scheduler{}
	rule := domain.Rule{Trigger: domain.TriggerImmediate}
	if !scheduler.ShouldEvaluate(rule, time.Now()) {
		t.Fatalf("immediate rules must always be eligible")
	}
}

func TestIsThrottled(t *testing.T) {
	t.Parallel()

	scheduler := Scheduler{}
	base := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	triggered := base.Add(-30 * time.Minute)
	rule := domain.Rule{ThrottleMs: 3_600_000, LastTriggered: &triggered}

	if !scheduler.IsThrottled(rule, base) {
		t.Fatalf("expected throttle inside the window")
	}
	if scheduler.IsThrottled(rule, base.Add(time.Hour)) {
		t.Fatalf("expected throttle released after the window")
	}

	rule.LastTriggered = nil
	if scheduler.IsThrottled(rule, base) {
		t.Fatalf("never-triggered rules are not throttled")
	}
}
