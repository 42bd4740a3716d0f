// Package ledger is the payroll book kept by the dev backend:
// organizations and their employees, schedules, runs and per-employee
// claims. It lives in memory unless backed by Postgres with NewWithDB.
package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/quatton/paydesk/pkg/papi/config"
	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/uptrace/bun"
)

// Membership roles.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Error is a ledger failure carrying the HTTP status it maps to.
type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string { return e.Msg }

func badRequest(format string, args ...any) error {
	return &Error{Status: http.StatusBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func forbidden(msg string) error {
	return &Error{Status: http.StatusForbidden, Msg: msg}
}

func notFound(msg string) error {
	return &Error{Status: http.StatusNotFound, Msg: msg}
}

// Options seeds every organization the ledger provisions.
type Options struct {
	OrgName         string
	Employees       []config.Employee
	TokenAddress    string
	VaultAddress    string
	WrapGateway     string
	ChainID         int64
	ClaimWindowDays int
}

func OptionsFromConfig(cfg *config.EnvConfig) (Options, error) {
	emps, err := cfg.Employees()
	if err != nil {
		return Options{}, err
	}
	return Options{
		OrgName:         cfg.StubOrgName,
		Employees:       emps,
		TokenAddress:    cfg.TokenAddress,
		VaultAddress:    cfg.VaultAddress,
		WrapGateway:     cfg.WrapGateway,
		ChainID:         cfg.ChainID,
		ClaimWindowDays: cfg.ClaimWindowDays,
	}, nil
}

type membership struct {
	orgID int64
	role  string
}

type account struct {
	wallet    string
	orgs      []membership
	activeOrg int64
}

type org struct {
	id        int64
	name      string
	owner     string
	active    bool
	createdAt time.Time
	employees []config.Employee
}

func (o *org) employer() payroll.Employer {
	return payroll.Employer{
		ID:            o.id,
		Name:          o.name,
		Email:         fmt.Sprintf("payroll+%d@paydesk.local", o.id),
		WalletAddress: checksum(o.owner),
		IsActive:      o.active,
		CreatedAt:     stamp(o.createdAt),
	}
}

type Ledger struct {
	mu    sync.Mutex
	opts  Options
	now   func() time.Time
	store store
}

func normalizeOptions(opts Options) Options {
	emps := append([]config.Employee(nil), opts.Employees...)
	sort.Slice(emps, func(i, j int) bool { return emps[i].Wallet < emps[j].Wallet })
	opts.Employees = emps
	if opts.ClaimWindowDays <= 0 {
		opts.ClaimWindowDays = 14
	}
	return opts
}

// New returns a ledger kept in memory.
func New(opts Options) *Ledger {
	return &Ledger{opts: normalizeOptions(opts), now: time.Now, store: newMemoryStore()}
}

// NewWithDB returns a ledger stored in Postgres. The schema must be
// migrated first.
func NewWithDB(opts Options, db *bun.DB) *Ledger {
	return &Ledger{opts: normalizeOptions(opts), now: time.Now, store: &bunStore{db: db}}
}

// SetClock replaces the time source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func checksum(addr string) string {
	if c, err := payroll.ChecksumAddress(addr); err == nil {
		return c
	}
	return addr
}

// account returns the wallet's account, provisioning it with an
// organization of its own on first sight. Callers hold l.mu.
func (l *Ledger) account(ctx context.Context, wallet string) (*account, error) {
	acc, err := l.store.account(ctx, wallet)
	if !errors.Is(err, errMissing) {
		return acc, err
	}

	o := &org{
		name:      l.opts.OrgName,
		owner:     wallet,
		active:    true,
		createdAt: l.now(),
		employees: l.opts.Employees,
	}
	return l.store.provision(ctx, wallet, o)
}

func (l *Ledger) me(ctx context.Context, acc *account) (payroll.Me, error) {
	w := checksum(acc.wallet)
	me := payroll.Me{Wallet: &w, Orgs: []payroll.Org{}}
	for _, m := range acc.orgs {
		o, err := l.store.org(ctx, m.orgID)
		if err != nil {
			return payroll.Me{}, err
		}
		me.Orgs = append(me.Orgs, payroll.Org{ID: o.id, Name: o.name, Role: m.role})
	}
	if acc.activeOrg != 0 {
		id := acc.activeOrg
		me.ActiveOrgID = &id
		o, err := l.employerOrg(ctx, acc)
		var le *Error
		switch {
		case err == nil:
			emp := o.employer()
			me.Employer = &emp
			me.IsEmployerRegistered = emp.IsActive
		case !errors.As(err, &le):
			return payroll.Me{}, err
		}
	}
	return me, nil
}

// Me returns the profile of a wallet.
func (l *Ledger) Me(ctx context.Context, wallet string) (payroll.Me, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(ctx, wallet)
	if err != nil {
		return payroll.Me{}, err
	}
	return l.me(ctx, acc)
}

// ActiveOrgID reports the wallet's active organization without
// provisioning anything.
func (l *Ledger) ActiveOrgID(ctx context.Context, wallet string) (int64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.store.account(ctx, wallet)
	if errors.Is(err, errMissing) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return acc.activeOrg, acc.activeOrg != 0, nil
}

func (l *Ledger) SetActiveOrg(ctx context.Context, wallet string, orgID int64) (payroll.ActiveOrgResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(ctx, wallet)
	if err != nil {
		return payroll.ActiveOrgResponse{}, err
	}
	for _, m := range acc.orgs {
		if m.orgID == orgID {
			if err := l.store.setActiveOrg(ctx, wallet, orgID); err != nil {
				return payroll.ActiveOrgResponse{}, err
			}
			return payroll.ActiveOrgResponse{OrgID: orgID, Role: m.role}, nil
		}
	}
	return payroll.ActiveOrgResponse{}, forbidden("Not a member of this organization")
}

// employerOrg resolves the organization a wallet acts for as employer.
func (l *Ledger) employerOrg(ctx context.Context, acc *account) (*org, error) {
	if acc.activeOrg == 0 {
		return nil, forbidden("Employer profile not set. Register name and email first.")
	}
	for _, m := range acc.orgs {
		if m.orgID != acc.activeOrg {
			continue
		}
		if m.role != RoleOwner && m.role != RoleAdmin {
			return nil, forbidden("Active organization role cannot manage payroll")
		}
		o, err := l.store.org(ctx, m.orgID)
		if err != nil {
			return nil, err
		}
		if !o.active {
			return nil, forbidden("Employer account is inactive")
		}
		return o, nil
	}
	return nil, forbidden("Employer profile not set. Register name and email first.")
}

func (l *Ledger) employerFor(ctx context.Context, wallet string) (*org, error) {
	acc, err := l.account(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return l.employerOrg(ctx, acc)
}

// newPayrollID draws a random non-zero 96 bit id not used by any run.
func (l *Ledger) newPayrollID(ctx context.Context) (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 96)
	for range 10 {
		id, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, err
		}
		if id.Sign() == 0 {
			continue
		}
		_, err = l.store.runByPayrollID(ctx, id.String())
		if errors.Is(err, errMissing) {
			return id, nil
		}
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("could not generate unique payroll_id")
}
