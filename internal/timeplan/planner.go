// Package timeplan computes the time windows a day's recordings are
// exported in. Windows are half-open [start, end) and a full day plan
// partitions [00:00, 24:00) of the target date with no gap or overlap.
package timeplan

import (
	"errors"
	"fmt"
	"time"
)

// ErrBadPlan indicates contradictory or out-of-range planning parameters.
var ErrBadPlan = errors.New("invalid export plan")

// Window is a half-open [Start, End) interval in a single timezone.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Slug returns a compact identifier for the window, stable across runs.
// It is used both in export names and in backup filenames.
func (w Window) Slug() string {
	return w.Start.Format("2006-01-02_1504") + "-" + w.End.Format("1504")
}

func (w Window) String() string {
	return w.Start.Format("2006-01-02 15:04") + " - " + w.End.Format("15:04")
}

// Mode selects how the day is divided. Exactly one form may be active:
//
//   - explicit hours: StartHour/EndHour bound a single window, with
//     EndHour = 24 meaning midnight of the following day;
//   - split: Split is the window length in hours, windows run from hour 0
//     and the final one is clipped to hour 24.
//
// Setting Split together with a non-zero hour range is rejected.
type Mode struct {
	StartHour int
	EndHour   int
	Split     int
}

// Plan returns the ordered windows for the given date under the mode.
// The date's own timezone is used for all boundaries. Plan is pure and
// performs no I/O.
func Plan(date time.Time, m Mode) ([]Window, error) {
	rangeSet := m.StartHour != 0 || m.EndHour != 0

	switch {
	case m.Split != 0 && rangeSet:
		return nil, fmt.Errorf(
			"%w: split interval and explicit hour range are mutually exclusive", ErrBadPlan)
	case m.Split < 0:
		return nil, fmt.Errorf("%w: split interval must be positive, got %d", ErrBadPlan, m.Split)
	case m.Split > 0:
		windows := make([]Window, 0, (24+m.Split-1)/m.Split)
		for h := 0; h < 24; h += m.Split {
			end := h + m.Split
			if end > 24 {
				end = 24
			}
			windows = append(windows, Window{Start: hourOf(date, h), End: hourOf(date, end)})
		}
		return windows, nil
	}

	if m.StartHour < 0 || m.EndHour > 24 {
		return nil, fmt.Errorf("%w: hours must lie within [0, 24], got %d..%d",
			ErrBadPlan, m.StartHour, m.EndHour)
	}
	if m.StartHour >= m.EndHour {
		return nil, fmt.Errorf("%w: start hour %d is not before end hour %d",
			ErrBadPlan, m.StartHour, m.EndHour)
	}
	return []Window{{Start: hourOf(date, m.StartHour), End: hourOf(date, m.EndHour)}}, nil
}

// hourOf returns the given wall-clock hour of date's day. Hour 24
// normalizes to midnight of the following day.
func hourOf(date time.Time, hour int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
}
