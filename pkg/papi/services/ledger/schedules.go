package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/quatton/paydesk/pkg/payroll"
)

type schedule struct {
	id        int64
	orgID     int64
	payload   payroll.SchedulePayload
	tod       Clock
	enabled   bool
	nextRun   *time.Time
	createdAt time.Time
}

func (s *schedule) view() payroll.Schedule {
	p := s.payload
	out := payroll.Schedule{
		ID:           s.id,
		Name:         p.Name,
		ScheduleType: p.ScheduleType,
		Weekday:      p.Weekday,
		DayOfMonth:   p.DayOfMonth,
		MonthOfYear:  p.MonthOfYear,
		DayOfYear:    p.DayOfYear,
		Enabled:      s.enabled,
		CreatedAt:    stamp(s.createdAt),
	}
	if p.ScheduleType != payroll.ScheduleInstant {
		t := s.tod.String()
		out.TimeOfDay = &t
	}
	if s.nextRun != nil {
		next := stamp(*s.nextRun)
		out.NextRunAt = &next
	}
	return out
}

func (l *Ledger) CreateSchedule(ctx context.Context, wallet string, p payroll.SchedulePayload) (payroll.Schedule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, err := l.employerFor(ctx, wallet)
	if err != nil {
		return payroll.Schedule{}, err
	}
	if p.OrgID != nil && *p.OrgID != o.id {
		return payroll.Schedule{}, forbidden("org_id does not match the active organization")
	}
	orgID := o.id
	p.OrgID = &orgID
	if p.TimeOfDay == "" && p.ScheduleType != payroll.ScheduleInstant {
		p.TimeOfDay = "09:00"
	}

	if err := payroll.ValidateSchedule(p); err != nil {
		return payroll.Schedule{}, badRequest("%s", err.Error())
	}
	tod, err := ParseClock(p.TimeOfDay)
	if err != nil {
		return payroll.Schedule{}, badRequest("%s", err.Error())
	}

	now := l.now()
	s := &schedule{
		orgID:     o.id,
		payload:   p,
		tod:       tod,
		enabled:   true,
		nextRun:   NextRun(now, p, tod),
		createdAt: now,
	}
	if err := l.store.insertSchedule(ctx, s); err != nil {
		return payroll.Schedule{}, err
	}
	return s.view(), nil
}

// ListSchedules returns the active organization's schedules, newest first.
func (l *Ledger) ListSchedules(ctx context.Context, wallet string) ([]payroll.Schedule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, err := l.employerFor(ctx, wallet)
	if err != nil {
		return nil, err
	}
	list, err := l.store.schedules(ctx, o.id)
	if err != nil {
		return nil, err
	}
	out := make([]payroll.Schedule, 0, len(list))
	for _, s := range list {
		out = append(out, s.view())
	}
	return out, nil
}

func (l *Ledger) ToggleSchedule(ctx context.Context, wallet string, id int64, enabled bool) (payroll.ToggleResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, err := l.employerFor(ctx, wallet)
	if err != nil {
		return payroll.ToggleResult{}, err
	}
	s, err := l.store.schedule(ctx, id)
	if errors.Is(err, errMissing) {
		return payroll.ToggleResult{}, notFound("Schedule not found")
	}
	if err != nil {
		return payroll.ToggleResult{}, err
	}
	if s.orgID != o.id {
		return payroll.ToggleResult{}, forbidden("Schedule does not belong to employer")
	}
	s.enabled = enabled
	if err := l.store.saveSchedule(ctx, s); err != nil {
		return payroll.ToggleResult{}, err
	}
	return payroll.ToggleResult{ID: id, Enabled: enabled}, nil
}

// Tick creates a draft run for every enabled schedule whose next run is
// due and advances it. It returns the ids of the runs created.
func (l *Ledger) Tick(ctx context.Context) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ids := make([]int64, 0)
	due, err := l.store.dueSchedules(ctx, now)
	if err != nil {
		return ids, err
	}

	for _, s := range due {
		base := now
		if s.nextRun.After(base) {
			base = *s.nextRun
		}
		s.nextRun = NextRun(base, s.payload, s.tod)
		if err := l.store.saveSchedule(ctx, s); err != nil {
			return ids, err
		}

		o, err := l.store.org(ctx, s.orgID)
		if err != nil {
			return ids, err
		}
		if len(o.employees) == 0 {
			continue
		}
		r, err := l.newRun(ctx, o, l.opts.ClaimWindowDays, s.id)
		if err != nil {
			return ids, err
		}
		ids = append(ids, r.id)
	}
	return ids, nil
}
