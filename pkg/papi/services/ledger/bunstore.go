package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/quatton/paydesk/pkg/db/models"
	"github.com/quatton/paydesk/pkg/papi/config"
	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/uptrace/bun"
)

// bunStore keeps the book in the payroll schema of a Postgres database.
type bunStore struct {
	db *bun.DB
}

func missing(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errMissing
	}
	return err
}

func (b *bunStore) provision(ctx context.Context, wallet string, o *org) (*account, error) {
	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m := &models.Org{Name: o.name, OwnerWallet: o.owner, IsActive: o.active, CreatedAt: o.createdAt}
		if _, err := tx.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
			return err
		}
		o.id = m.ID

		if len(o.employees) > 0 {
			emps := make([]*models.Employee, 0, len(o.employees))
			for _, e := range o.employees {
				emps = append(emps, &models.Employee{OrgID: o.id, Wallet: e.Wallet, SalaryUnits: e.SalaryUnits})
			}
			if _, err := tx.NewInsert().Model(&emps).Exec(ctx); err != nil {
				return err
			}
		}

		if _, err := tx.NewInsert().Model(&models.Account{Wallet: wallet, ActiveOrgID: o.id, CreatedAt: o.createdAt}).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&models.Membership{Wallet: wallet, OrgID: o.id, Role: RoleOwner}).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("provision %s: %w", wallet, err)
	}
	return &account{
		wallet:    wallet,
		orgs:      []membership{{orgID: o.id, role: RoleOwner}},
		activeOrg: o.id,
	}, nil
}

func (b *bunStore) account(ctx context.Context, wallet string) (*account, error) {
	m := new(models.Account)
	err := b.db.NewSelect().
		Model(m).
		Relation("Memberships", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("m.org_id ASC")
		}).
		Where("a.wallet = ?", wallet).
		Scan(ctx)
	if err != nil {
		return nil, missing(err)
	}

	acc := &account{wallet: m.Wallet, activeOrg: m.ActiveOrgID}
	for _, ms := range m.Memberships {
		acc.orgs = append(acc.orgs, membership{orgID: ms.OrgID, role: ms.Role})
	}
	return acc, nil
}

func (b *bunStore) setActiveOrg(ctx context.Context, wallet string, orgID int64) error {
	res, err := b.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("active_org_id = ?", orgID).
		Where("wallet = ?", wallet).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errMissing
	}
	return nil
}

func (b *bunStore) org(ctx context.Context, id int64) (*org, error) {
	m := new(models.Org)
	err := b.db.NewSelect().
		Model(m).
		Relation("Employees", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("e.wallet ASC")
		}).
		Where("o.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, missing(err)
	}

	o := &org{
		id:        m.ID,
		name:      m.Name,
		owner:     m.OwnerWallet,
		active:    m.IsActive,
		createdAt: m.CreatedAt,
	}
	for _, e := range m.Employees {
		o.employees = append(o.employees, config.Employee{Wallet: e.Wallet, SalaryUnits: e.SalaryUnits})
	}
	return o, nil
}

func scheduleModel(s *schedule) *models.Schedule {
	tod := ""
	if s.payload.ScheduleType != payroll.ScheduleInstant {
		tod = s.tod.String()
	}
	return &models.Schedule{
		ID:           s.id,
		OrgID:        s.orgID,
		Name:         s.payload.Name,
		ScheduleType: string(s.payload.ScheduleType),
		TimeOfDay:    tod,
		Weekday:      s.payload.Weekday,
		DayOfMonth:   s.payload.DayOfMonth,
		MonthOfYear:  s.payload.MonthOfYear,
		DayOfYear:    s.payload.DayOfYear,
		Enabled:      s.enabled,
		NextRunAt:    s.nextRun,
		CreatedAt:    s.createdAt,
	}
}

func scheduleFrom(m *models.Schedule) (*schedule, error) {
	tod, err := ParseClock(m.TimeOfDay)
	if err != nil {
		return nil, fmt.Errorf("schedule %d: %w", m.ID, err)
	}
	orgID := m.OrgID
	return &schedule{
		id:    m.ID,
		orgID: m.OrgID,
		payload: payroll.SchedulePayload{
			OrgID:        &orgID,
			Name:         m.Name,
			ScheduleType: payroll.ScheduleType(m.ScheduleType),
			TimeOfDay:    m.TimeOfDay,
			Weekday:      m.Weekday,
			DayOfMonth:   m.DayOfMonth,
			MonthOfYear:  m.MonthOfYear,
			DayOfYear:    m.DayOfYear,
		},
		tod:       tod,
		enabled:   m.Enabled,
		nextRun:   m.NextRunAt,
		createdAt: m.CreatedAt,
	}, nil
}

func schedulesFrom(list []*models.Schedule) ([]*schedule, error) {
	out := make([]*schedule, 0, len(list))
	for _, m := range list {
		s, err := scheduleFrom(m)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *bunStore) insertSchedule(ctx context.Context, s *schedule) error {
	m := scheduleModel(s)
	if _, err := b.db.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		return err
	}
	s.id = m.ID
	return nil
}

func (b *bunStore) schedule(ctx context.Context, id int64) (*schedule, error) {
	m := new(models.Schedule)
	if err := b.db.NewSelect().Model(m).Where("s.id = ?", id).Scan(ctx); err != nil {
		return nil, missing(err)
	}
	return scheduleFrom(m)
}

func (b *bunStore) schedules(ctx context.Context, orgID int64) ([]*schedule, error) {
	var list []*models.Schedule
	err := b.db.NewSelect().
		Model(&list).
		Where("s.org_id = ?", orgID).
		Order("s.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return schedulesFrom(list)
}

func (b *bunStore) dueSchedules(ctx context.Context, now time.Time) ([]*schedule, error) {
	var list []*models.Schedule
	err := b.db.NewSelect().
		Model(&list).
		Where("s.enabled").
		Where("s.next_run_at IS NOT NULL").
		Where("s.next_run_at <= ?", now).
		Order("s.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return schedulesFrom(list)
}

func (b *bunStore) saveSchedule(ctx context.Context, s *schedule) error {
	_, err := b.db.NewUpdate().
		Model(scheduleModel(s)).
		Column("enabled", "next_run_at").
		WherePK().
		Exec(ctx)
	return err
}

func claimModels(r *run) []*models.Claim {
	out := make([]*models.Claim, 0, len(r.claims))
	for _, c := range r.claims {
		out = append(out, &models.Claim{
			RunID:        r.id,
			Idx:          c.index,
			Wallet:       c.wallet,
			SalaryUnits:  c.salary,
			Leaf:         c.leaf,
			Ciphertext:   c.ciphertext,
			EncryptedRef: c.encryptedRef,
			Proof:        c.proof,
			Status:       c.status,
			ClaimTxHash:  c.claimTx,
		})
	}
	return out
}

func runFrom(m *models.Run) (*run, error) {
	pid, ok := new(big.Int).SetString(m.PayrollID, 10)
	if !ok {
		return nil, fmt.Errorf("run %d: invalid payroll_id %q", m.ID, m.PayrollID)
	}
	r := &run{
		id:         m.ID,
		orgID:      m.OrgID,
		scheduleID: m.ScheduleID,
		payrollID:  pid,
		token:      m.Token,
		vault:      m.Vault,
		merkleRoot: m.MerkleRoot,
		total:      m.Total,
		totalUnits: m.TotalAmountUnits,
		status:     m.Status,
		createTx:   m.CreateTxHash,
		fundTx:     m.FundTxHash,
		window:     m.ClaimWindowDays,
		closeAt:    m.CloseAt,
		createdAt:  m.CreatedAt,
	}
	for _, c := range m.Claims {
		r.claims = append(r.claims, &claim{
			index:        c.Idx,
			wallet:       c.Wallet,
			salary:       c.SalaryUnits,
			leaf:         c.Leaf,
			ciphertext:   c.Ciphertext,
			encryptedRef: c.EncryptedRef,
			proof:        c.Proof,
			status:       c.Status,
			claimTx:      c.ClaimTxHash,
		})
	}
	return r, nil
}

func (b *bunStore) insertRun(ctx context.Context, r *run) error {
	return b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m := &models.Run{
			OrgID:            r.orgID,
			ScheduleID:       r.scheduleID,
			PayrollID:        r.payrollID.String(),
			Token:            r.token,
			Vault:            r.vault,
			Total:            r.total,
			TotalAmountUnits: r.totalUnits,
			Status:           r.status,
			ClaimWindowDays:  r.window,
			CloseAt:          r.closeAt,
			CreatedAt:        r.createdAt,
		}
		if _, err := tx.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
			return err
		}
		r.id = m.ID

		if len(r.claims) == 0 {
			return nil
		}
		claims := claimModels(r)
		_, err := tx.NewInsert().Model(&claims).Exec(ctx)
		return err
	})
}

func (b *bunStore) selectRun(ctx context.Context, where string, arg any) (*run, error) {
	m := new(models.Run)
	err := b.db.NewSelect().
		Model(m).
		Relation("Claims", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("c.idx ASC")
		}).
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		return nil, missing(err)
	}
	return runFrom(m)
}

func (b *bunStore) run(ctx context.Context, id int64) (*run, error) {
	return b.selectRun(ctx, "r.id = ?", id)
}

func (b *bunStore) runByPayrollID(ctx context.Context, payrollID string) (*run, error) {
	return b.selectRun(ctx, "r.payroll_id = ?", payrollID)
}

// runs lists without claims.
func (b *bunStore) runs(ctx context.Context, orgID int64) ([]*run, error) {
	var list []*models.Run
	err := b.db.NewSelect().
		Model(&list).
		Where("r.org_id = ?", orgID).
		Order("r.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*run, 0, len(list))
	for _, m := range list {
		r, err := runFrom(m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (b *bunStore) saveRun(ctx context.Context, r *run) error {
	return b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*models.Run)(nil)).
			Set("merkle_root = ?", r.merkleRoot).
			Set("status = ?", r.status).
			Set("create_tx_hash = ?", r.createTx).
			Set("fund_tx_hash = ?", r.fundTx).
			Where("id = ?", r.id).
			Exec(ctx)
		if err != nil {
			return err
		}

		if len(r.claims) == 0 {
			return nil
		}
		claims := claimModels(r)
		_, err = tx.NewInsert().
			Model(&claims).
			On("CONFLICT (run_id, idx) DO UPDATE").
			Set("leaf = EXCLUDED.leaf").
			Set("ciphertext = EXCLUDED.ciphertext").
			Set("encrypted_ref = EXCLUDED.encrypted_ref").
			Set("proof = EXCLUDED.proof").
			Set("status = EXCLUDED.status").
			Set("claim_tx_hash = EXCLUDED.claim_tx_hash").
			Exec(ctx)
		return err
	})
}
