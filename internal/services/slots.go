package services

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// TimeWindow is one delivery window on a given day.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// SlotSchedule describes the daily operating window and how it is cut into delivery windows.
// Open and Close are offsets from local midnight.
type SlotSchedule struct {
	Open     time.Duration
	Close    time.Duration
	Step     time.Duration
	LeadTime time.Duration
	Location *time.Location
}

// NewSlotSchedule parses "HH:MM" bounds.
func NewSlotSchedule(open, close string, step, lead time.Duration, loc *time.Location) (SlotSchedule, error) {
	openAt, err := parseClock(open)
	if err != nil {
		return SlotSchedule{}, fmt.Errorf("open: %w", err)
	}
	closeAt, err := parseClock(close)
	if err != nil {
		return SlotSchedule{}, fmt.Errorf("close: %w", err)
	}
	if closeAt <= openAt {
		return SlotSchedule{}, fmt.Errorf("close %s must be after open %s", close, open)
	}
	if step <= 0 {
		return SlotSchedule{}, fmt.Errorf("slot step must be positive")
	}
	if loc == nil {
		loc = time.UTC
	}
	return SlotSchedule{Open: openAt, Close: closeAt, Step: step, LeadTime: lead, Location: loc}, nil
}

// Windows returns every window of the calendar day containing date. The last window is
// shortened when the operating day is not a multiple of Step.
func (s SlotSchedule) Windows(date time.Time) []TimeWindow {
	day := s.day(date)

	var out []TimeWindow
	for offset := s.Open; offset < s.Close; offset += s.Step {
		end := min(offset+s.Step, s.Close)
		start := s.wallClock(day, offset)
		stop := s.wallClock(day, end)
		out = append(out, TimeWindow{
			Start: start,
			End:   stop,
			Label: start.Format("15:04") + "-" + stop.Format("15:04"),
		})
	}
	return out
}

// Available returns the windows still orderable for date as seen at now. Future dates get the
// full set, today only windows starting at least LeadTime after now, past dates nothing.
func (s SlotSchedule) Available(now, date time.Time) []TimeWindow {
	today := s.day(now)
	day := s.day(date)

	switch {
	case day.Before(today):
		return nil
	case day.After(today):
		return s.Windows(day)
	}

	earliest := now.Add(s.LeadTime)
	var out []TimeWindow
	for _, w := range s.Windows(day) {
		if !w.Start.Before(earliest) {
			out = append(out, w)
		}
	}
	return out
}

// Find returns the available window with the given label.
func (s SlotSchedule) Find(now, date time.Time, label string) (TimeWindow, bool) {
	want := NormalizeSlotLabel(label)
	for _, w := range s.Available(now, date) {
		if w.Label == want {
			return w, true
		}
	}
	return TimeWindow{}, false
}

// ParseDate reads a YYYY-MM-DD date in the schedule's location.
func (s SlotSchedule) ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(raw), s.Location)
}

// FormatDate renders t as YYYY-MM-DD in the schedule's location.
func (s SlotSchedule) FormatDate(t time.Time) string {
	return t.In(s.Location).Format(dateLayout)
}

func (s SlotSchedule) day(t time.Time) time.Time {
	t = t.In(s.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.Location)
}

// wallClock returns the local time offset from midnight of day, counted on the clock face so
// that DST transitions do not move the operating window.
func (s SlotSchedule) wallClock(day time.Time, offset time.Duration) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, int(offset), s.Location)
}

// NormalizeSlotLabel turns "12:00 - 14:00" into "12:00-14:00".
func NormalizeSlotLabel(label string) string {
	return strings.ReplaceAll(strings.TrimSpace(label), " ", "")
}

func parseClock(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
