package payroll

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ValidationErrors maps a payload field to the reason it was rejected.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, v[k]))
	}
	return "invalid schedule: " + strings.Join(parts, "; ")
}

var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// ValidateSchedule checks a schedule payload before it is sent. It returns
// nil when the payload is acceptable, otherwise a ValidationErrors.
func ValidateSchedule(p SchedulePayload) error {
	errs := ValidationErrors{}

	if p.OrgID == nil || *p.OrgID <= 0 {
		errs["org_id"] = "Organization ID is required."
	}
	if strings.TrimSpace(p.Name) == "" {
		errs["name"] = "Schedule name is required."
	}

	switch {
	case p.ScheduleType == "":
		errs["schedule_type"] = "Schedule type is required."
	case !p.ScheduleType.Valid():
		errs["schedule_type"] = fmt.Sprintf("Unknown schedule type %q.", p.ScheduleType)
	}

	if p.ScheduleType != ScheduleInstant {
		if p.TimeOfDay == "" {
			errs["time_of_day"] = "Time of day is required."
		} else if !timeOfDayRe.MatchString(p.TimeOfDay) {
			errs["time_of_day"] = "Time of day must be HH:MM or HH:MM:SS."
		}
	}

	switch p.ScheduleType {
	case ScheduleWeekly:
		if p.Weekday == nil {
			errs["weekday"] = "Weekday is required for weekly schedules."
		} else if *p.Weekday < 0 || *p.Weekday > 6 {
			errs["weekday"] = "Weekday must be between 0 and 6."
		}
	case ScheduleMonthly:
		if p.DayOfMonth == nil {
			errs["day_of_month"] = "Day of month is required for monthly schedules."
		} else if *p.DayOfMonth < 1 || *p.DayOfMonth > 31 {
			errs["day_of_month"] = "Day of month must be between 1 and 31."
		}
	case ScheduleYearly:
		if p.MonthOfYear == nil {
			errs["month_of_year"] = "Month of year is required for yearly schedules."
		} else if *p.MonthOfYear < 1 || *p.MonthOfYear > 12 {
			errs["month_of_year"] = "Month of year must be between 1 and 12."
		}
		if p.DayOfYear == nil {
			errs["day_of_year"] = "Day of year is required for yearly schedules."
		} else if *p.DayOfYear < 1 || *p.DayOfYear > 31 {
			errs["day_of_year"] = "Day of year must be between 1 and 31."
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
