package markethours

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	d, err := ParseClock("09:15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 9*time.Hour+15*time.Minute {
		t.Fatalf("got %v", d)
	}
	if _, err := ParseClock("not-a-clock"); err == nil {
		t.Fatal("expected error for malformed clock")
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatal("expected error for out-of-range hour")
	}
}

func TestIsOpenRespectsWeekendAndHoliday(t *testing.T) {
	w := Default()

	// Monday 2026-01-26 is both a weekday and a holiday (Republic Day).
	holiday := time.Date(2026, 1, 26, 10, 0, 0, 0, IST)
	if w.IsOpen(holiday) {
		t.Fatal("expected holiday to be closed")
	}

	// Saturday.
	weekend := time.Date(2026, 1, 31, 10, 0, 0, 0, IST)
	if w.IsOpen(weekend) {
		t.Fatal("expected weekend to be closed")
	}

	// An ordinary Tuesday during the session.
	open := time.Date(2026, 1, 27, 10, 0, 0, 0, IST)
	if !w.IsOpen(open) {
		t.Fatal("expected ordinary trading hours to be open")
	}
}

func TestCustomWindowHasNoHolidaysUntilAdded(t *testing.T) {
	loc := time.UTC
	w := New(loc, 8*time.Hour, 16*time.Hour)

	day := time.Date(2026, 3, 2, 9, 0, 0, 0, loc) // Monday
	if !w.IsOpen(day) {
		t.Fatal("expected custom window with no holidays to be open on a plain weekday")
	}

	w2 := w.WithHolidays([]time.Time{time.Date(2026, 3, 2, 0, 0, 0, 0, loc)})
	if w2.IsOpen(day) {
		t.Fatal("expected configured holiday to close the custom window")
	}
	if !w.IsOpen(day) {
		t.Fatal("WithHolidays must not mutate the receiver")
	}
}

func TestNextOpenSkipsWeekendAndHoliday(t *testing.T) {
	w := Default()
	// Friday 2026-01-23 after close.
	fri := time.Date(2026, 1, 23, 16, 0, 0, 0, IST)
	next := w.NextOpen(fri)
	// Monday 2026-01-26 is a holiday, so the next open should be Tuesday 2026-01-27.
	want := time.Date(2026, 1, 27, 9, 15, 0, 0, IST)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestTimeUntilCloseZeroAfterClose(t *testing.T) {
	w := Default()
	afterClose := time.Date(2026, 1, 27, 16, 0, 0, 0, IST)
	if got := w.TimeUntilClose(afterClose); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
