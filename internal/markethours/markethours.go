// Package markethours tracks a configurable trading calendar: a daily
// open/close window, a fixed Mon-Fri weekday rule, and an optional
// holiday list. The NSE default (IST, 9:15-15:30) is Default(), with its
// holiday list in holidays.go; a deployment's
// trading_hours/open_hours config overrides it per Window.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30), the default
// location for a Window built with Default().
var IST = time.FixedZone("IST", 5*3600+30*60)

// Window describes one trading calendar: a location, a daily
// open/close clock, and the dates that are holidays within it.
type Window struct {
	Location *time.Location
	Open     time.Duration // minutes-since-midnight, e.g. 9h15m
	Close    time.Duration

	// PreOpenBefore/WSConnectBefore are warm-up offsets ahead of Open,
	// used by the live provider to start login/WS-connect early.
	PreOpenBefore   time.Duration
	WSConnectBefore time.Duration

	holidays map[string]bool
}

// Default returns the NSE regular-session window: IST, 9:15-15:30,
// Mon-Fri, with the bundled holiday calendar.
func Default() *Window {
	return &Window{
		Location:        IST,
		Open:            9*time.Hour + 15*time.Minute,
		Close:           15*time.Hour + 30*time.Minute,
		PreOpenBefore:   5 * time.Minute,
		WSConnectBefore: 1 * time.Minute,
		holidays:        defaultNSEHolidays(),
	}
}

// New builds a Window from explicit clock-of-day bounds in loc, with
// no holiday calendar (every weekday is a trading day) unless
// WithHolidays adds one.
func New(loc *time.Location, open, close time.Duration) *Window {
	return &Window{Location: loc, Open: open, Close: close, holidays: map[string]bool{}}
}

// WithHolidays returns a copy of w with the given dates marked as
// holidays, for building a custom calendar from configuration.
func (w *Window) WithHolidays(dates []time.Time) *Window {
	out := *w
	out.holidays = make(map[string]bool, len(dates))
	for _, d := range dates {
		out.holidays[dateKey(d)] = true
	}
	return &out
}

// ParseClock parses an "HH:MM" string into a minutes-since-midnight
// duration, as used by trading_hours/open_hours config entries.
func ParseClock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("markethours: invalid clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("markethours: invalid clock %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// IsHoliday returns true if the date (in w's location) is a holiday.
func (w *Window) IsHoliday(t time.Time) bool {
	return w.holidays[dateKey(t.In(w.Location))]
}

// IsWeekday returns true if t is Mon-Fri in w's location.
func (w *Window) IsWeekday(t time.Time) bool {
	wd := t.In(w.Location).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func (w *Window) IsTradingDay(t time.Time) bool {
	loc := t.In(w.Location)
	return w.IsWeekday(loc) && !w.IsHoliday(loc)
}

// IsOpen returns true if t falls within the regular session.
func (w *Window) IsOpen(t time.Time) bool {
	loc := t.In(w.Location)
	if !w.IsTradingDay(loc) {
		return false
	}
	hm := time.Duration(loc.Hour())*time.Hour + time.Duration(loc.Minute())*time.Minute
	return hm >= w.Open && hm < w.Close
}

// TodayClose returns today's close time in w's location.
func (w *Window) TodayClose(t time.Time) time.Time {
	return atClock(t.In(w.Location), w.Close)
}

// TodayOpen returns today's open time in w's location.
func (w *Window) TodayOpen(t time.Time) time.Time {
	return atClock(t.In(w.Location), w.Open)
}

// NextOpen returns the next open time: today's if t precedes it on a
// trading day, otherwise the open of the next trading day found
// within 10 days.
func (w *Window) NextOpen(t time.Time) time.Time {
	loc := t.In(w.Location)

	todayOpen := w.TodayOpen(loc)
	if loc.Before(todayOpen) && w.IsTradingDay(loc) {
		return todayOpen
	}

	d := loc.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if w.IsTradingDay(d) {
			return w.TodayOpen(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return w.TodayOpen(loc.AddDate(0, 0, 1))
}

// NextPreOpen returns the next pre-market warm-up time.
func (w *Window) NextPreOpen(t time.Time) time.Time {
	return w.NextOpen(t).Add(-w.PreOpenBefore)
}

// WSConnectTime returns the WS connect time for the given open time.
func (w *Window) WSConnectTime(openTime time.Time) time.Time {
	return openTime.Add(-w.WSConnectBefore)
}

// TimeUntilClose returns the duration until today's close, or 0 if
// already past it.
func (w *Window) TimeUntilClose(t time.Time) time.Duration {
	d := w.TodayClose(t).Sub(t.In(w.Location))
	if d < 0 {
		return 0
	}
	return d
}

// TimeUntilOpen returns the duration until the next open.
func (w *Window) TimeUntilOpen(t time.Time) time.Duration {
	return w.NextOpen(t).Sub(t.In(w.Location))
}

// StatusString returns a human-readable session status.
func (w *Window) StatusString(t time.Time) string {
	if w.IsOpen(t) {
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(w.TimeUntilClose(t)))
	}
	next := w.NextOpen(t)
	d := next.Sub(t)
	loc := next.In(w.Location)
	return fmt.Sprintf("Market Closed — opens %s %s (%s)",
		loc.Weekday().String()[:3], loc.Format("15:04"), fmtDur(d))
}

func atClock(t time.Time, clock time.Duration) time.Time {
	h := int(clock / time.Hour)
	m := int((clock % time.Hour) / time.Minute)
	return time.Date(t.Year(), t.Month(), t.Day(), h, m, 0, 0, t.Location())
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
