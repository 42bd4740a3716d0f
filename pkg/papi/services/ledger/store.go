package ledger

import (
	"context"
	"errors"
	"sort"
	"time"
)

var errMissing = errors.New("ledger: record not found")

// store persists the book. The Ledger serializes every call, so
// implementations need not lock.
type store interface {
	// provision creates o, assigning its id, and an account for wallet
	// owning it.
	provision(ctx context.Context, wallet string, o *org) (*account, error)
	account(ctx context.Context, wallet string) (*account, error)
	setActiveOrg(ctx context.Context, wallet string, orgID int64) error
	org(ctx context.Context, id int64) (*org, error)

	insertSchedule(ctx context.Context, s *schedule) error
	schedule(ctx context.Context, id int64) (*schedule, error)
	// schedules lists an organization's schedules, newest first.
	schedules(ctx context.Context, orgID int64) ([]*schedule, error)
	// dueSchedules lists enabled schedules due at now, oldest first.
	dueSchedules(ctx context.Context, now time.Time) ([]*schedule, error)
	saveSchedule(ctx context.Context, s *schedule) error

	// insertRun assigns the run id and stores the run with its claims.
	insertRun(ctx context.Context, r *run) error
	run(ctx context.Context, id int64) (*run, error)
	runByPayrollID(ctx context.Context, payrollID string) (*run, error)
	// runs lists an organization's runs, newest first.
	runs(ctx context.Context, orgID int64) ([]*run, error)
	// saveRun writes the run's mutable fields and every claim.
	saveRun(ctx context.Context, r *run) error
}

type memoryStore struct {
	orgSeq, scheduleSeq, runSeq int64

	accounts      map[string]*account
	orgs          map[int64]*org
	scheduleTable map[int64]*schedule
	runTable      map[int64]*run
	byPayroll     map[string]*run
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts:      map[string]*account{},
		orgs:          map[int64]*org{},
		scheduleTable: map[int64]*schedule{},
		runTable:      map[int64]*run{},
		byPayroll:     map[string]*run{},
	}
}

func (m *memoryStore) provision(_ context.Context, wallet string, o *org) (*account, error) {
	m.orgSeq++
	o.id = m.orgSeq
	m.orgs[o.id] = o

	acc := &account{
		wallet:    wallet,
		orgs:      []membership{{orgID: o.id, role: RoleOwner}},
		activeOrg: o.id,
	}
	m.accounts[wallet] = acc
	return acc, nil
}

func (m *memoryStore) account(_ context.Context, wallet string) (*account, error) {
	acc, ok := m.accounts[wallet]
	if !ok {
		return nil, errMissing
	}
	return acc, nil
}

func (m *memoryStore) setActiveOrg(_ context.Context, wallet string, orgID int64) error {
	acc, ok := m.accounts[wallet]
	if !ok {
		return errMissing
	}
	acc.activeOrg = orgID
	return nil
}

func (m *memoryStore) org(_ context.Context, id int64) (*org, error) {
	o, ok := m.orgs[id]
	if !ok {
		return nil, errMissing
	}
	return o, nil
}

func (m *memoryStore) insertSchedule(_ context.Context, s *schedule) error {
	m.scheduleSeq++
	s.id = m.scheduleSeq
	m.scheduleTable[s.id] = s
	return nil
}

func (m *memoryStore) schedule(_ context.Context, id int64) (*schedule, error) {
	s, ok := m.scheduleTable[id]
	if !ok {
		return nil, errMissing
	}
	return s, nil
}

func (m *memoryStore) schedules(_ context.Context, orgID int64) ([]*schedule, error) {
	out := []*schedule{}
	for _, s := range m.scheduleTable {
		if s.orgID == orgID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id > out[j].id })
	return out, nil
}

func (m *memoryStore) dueSchedules(_ context.Context, now time.Time) ([]*schedule, error) {
	out := []*schedule{}
	for _, s := range m.scheduleTable {
		if s.enabled && s.nextRun != nil && !s.nextRun.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

func (m *memoryStore) saveSchedule(_ context.Context, s *schedule) error {
	m.scheduleTable[s.id] = s
	return nil
}

func (m *memoryStore) insertRun(_ context.Context, r *run) error {
	m.runSeq++
	r.id = m.runSeq
	m.runTable[r.id] = r
	m.byPayroll[r.payrollID.String()] = r
	return nil
}

func (m *memoryStore) run(_ context.Context, id int64) (*run, error) {
	r, ok := m.runTable[id]
	if !ok {
		return nil, errMissing
	}
	return r, nil
}

func (m *memoryStore) runByPayrollID(_ context.Context, payrollID string) (*run, error) {
	r, ok := m.byPayroll[payrollID]
	if !ok {
		return nil, errMissing
	}
	return r, nil
}

func (m *memoryStore) runs(_ context.Context, orgID int64) ([]*run, error) {
	out := []*run{}
	for _, r := range m.runTable {
		if r.orgID == orgID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id > out[j].id })
	return out, nil
}

func (m *memoryStore) saveRun(_ context.Context, r *run) error {
	m.runTable[r.id] = r
	return nil
}
