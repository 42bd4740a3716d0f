package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quatton/paydesk/pkg/payroll"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour, Minute, Second int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseClock accepts HH:MM or HH:MM:SS. Empty input means 09:00.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Clock{Hour: 9}, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, fmt.Errorf("time_of_day must be HH:MM")
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Clock{}, fmt.Errorf("time_of_day must be HH:MM")
		}
		v[i] = n
	}
	c := Clock{Hour: v[0], Minute: v[1], Second: v[2]}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 || c.Second < 0 || c.Second > 59 {
		return Clock{}, fmt.Errorf("invalid time_of_day")
	}
	return c, nil
}

func at(y int, m time.Month, d int, c Clock, loc *time.Location) time.Time {
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, loc)
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextDaily returns the first tod strictly after after.
func NextDaily(after time.Time, tod Clock) time.Time {
	y, m, d := after.Date()
	candidate := at(y, m, d, tod, after.Location())
	if !candidate.After(after) {
		candidate = at(y, m, d+1, tod, after.Location())
	}
	return candidate
}

// NextWeekly counts weekday from Monday (0) to Sunday (6).
func NextWeekly(after time.Time, tod Clock, weekday int) time.Time {
	current := (int(after.Weekday()) + 6) % 7
	delta := ((weekday-current)%7 + 7) % 7

	y, m, d := after.Date()
	candidate := at(y, m, d+delta, tod, after.Location())
	if !candidate.After(after) {
		candidate = at(y, m, d+delta+7, tod, after.Location())
	}
	return candidate
}

// NextMonthly clamps dayOfMonth to the length of the month.
func NextMonthly(after time.Time, tod Clock, dayOfMonth int) time.Time {
	y, m := after.Year(), after.Month()
	candidate := at(y, m, min(dayOfMonth, daysIn(y, m)), tod, after.Location())
	if !candidate.After(after) {
		if m == time.December {
			y, m = y+1, time.January
		} else {
			m++
		}
		candidate = at(y, m, min(dayOfMonth, daysIn(y, m)), tod, after.Location())
	}
	return candidate
}

// NextYearly clamps day to the length of month, so Feb 29 falls back to
// Feb 28 outside leap years.
func NextYearly(after time.Time, tod Clock, month, day int) time.Time {
	y := after.Year()
	mo := time.Month(month)
	candidate := at(y, mo, min(day, daysIn(y, mo)), tod, after.Location())
	if !candidate.After(after) {
		y++
		candidate = at(y, mo, min(day, daysIn(y, mo)), tod, after.Location())
	}
	return candidate
}

// NextRun computes the first run of a schedule after now. Instant schedules
// have none.
func NextRun(now time.Time, p payroll.SchedulePayload, tod Clock) *time.Time {
	var next time.Time
	switch p.ScheduleType {
	case payroll.ScheduleDaily:
		next = NextDaily(now, tod)
	case payroll.ScheduleWeekly:
		next = NextWeekly(now, tod, *p.Weekday)
	case payroll.ScheduleMonthly:
		next = NextMonthly(now, tod, *p.DayOfMonth)
	case payroll.ScheduleYearly:
		next = NextYearly(now, tod, *p.MonthOfYear, *p.DayOfYear)
	default:
		return nil
	}
	return &next
}
