package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Org struct {
	bun.BaseModel `bun:"table:payroll.orgs,alias:o"`

	ID          int64     `bun:",pk,autoincrement"`
	Name        string    `bun:",notnull"`
	OwnerWallet string    `bun:",notnull"`
	IsActive    bool      `bun:",notnull"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp"`

	Employees []*Employee `bun:"rel:has-many,join:id=org_id"`
}

// Employee is a payee snapshotted into an organization when it is
// provisioned.
type Employee struct {
	bun.BaseModel `bun:"table:payroll.employees,alias:e"`

	OrgID       int64  `bun:",pk"`
	Wallet      string `bun:",pk"`
	SalaryUnits int64  `bun:",notnull"`
}

type Account struct {
	bun.BaseModel `bun:"table:payroll.accounts,alias:a"`

	Wallet      string    `bun:",pk"`
	ActiveOrgID int64     `bun:",nullzero"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp"`

	Memberships []*Membership `bun:"rel:has-many,join:wallet=wallet"`
}

type Membership struct {
	bun.BaseModel `bun:"table:payroll.memberships,alias:m"`

	Wallet string `bun:",pk"`
	OrgID  int64  `bun:",pk"`
	Role   string `bun:",notnull"`
}

type Schedule struct {
	bun.BaseModel `bun:"table:payroll.schedules,alias:s"`

	ID           int64  `bun:",pk,autoincrement"`
	OrgID        int64  `bun:",notnull"`
	Name         string `bun:",notnull"`
	ScheduleType string `bun:",notnull"`
	TimeOfDay    string `bun:",notnull,default:''"`
	Weekday      *int
	DayOfMonth   *int
	MonthOfYear  *int
	DayOfYear    *int
	Enabled      bool `bun:",notnull"`
	NextRunAt    *time.Time
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

type Run struct {
	bun.BaseModel `bun:"table:payroll.runs,alias:r"`

	ID               int64     `bun:",pk,autoincrement"`
	OrgID            int64     `bun:",notnull"`
	ScheduleID       int64     `bun:",nullzero"`
	PayrollID        string    `bun:",unique,notnull"`
	Token            string    `bun:",notnull"`
	Vault            string    `bun:",notnull"`
	MerkleRoot       string    `bun:",notnull,default:''"`
	Total            int       `bun:",notnull"`
	TotalAmountUnits int64     `bun:",notnull"`
	Status           string    `bun:",notnull"`
	CreateTxHash     string    `bun:",notnull,default:''"`
	FundTxHash       string    `bun:",notnull,default:''"`
	ClaimWindowDays  int       `bun:",notnull"`
	CloseAt          time.Time `bun:",notnull"`
	CreatedAt        time.Time `bun:",nullzero,notnull,default:current_timestamp"`

	Claims []*Claim `bun:"rel:has-many,join:id=run_id"`
}

type Claim struct {
	bun.BaseModel `bun:"table:payroll.claims,alias:c"`

	RunID        int64    `bun:",pk"`
	Idx          int      `bun:",pk"`
	Wallet       string   `bun:",notnull"`
	SalaryUnits  int64    `bun:",notnull"`
	Leaf         string   `bun:",notnull,default:''"`
	Ciphertext   string   `bun:",notnull,default:''"`
	EncryptedRef string   `bun:",notnull"`
	Proof        []string `bun:",array"`
	Status       string   `bun:",notnull"`
	ClaimTxHash  string   `bun:",notnull,default:''"`
}
