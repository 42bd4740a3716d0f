// Package payroll holds the wire types of the payroll backend together with
// the client-side validation applied before anything is sent.
package payroll

import "encoding/json"

type ScheduleType string

const (
	ScheduleInstant ScheduleType = "instant"
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
	ScheduleYearly  ScheduleType = "yearly"
)

// ScheduleTypes lists every accepted schedule type.
var ScheduleTypes = []ScheduleType{ScheduleInstant, ScheduleDaily, ScheduleWeekly, ScheduleMonthly, ScheduleYearly}

// Valid reports whether t is a known schedule type.
func (t ScheduleType) Valid() bool {
	for _, s := range ScheduleTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Run statuses as reported by the backend.
const (
	RunDraft          = "draft"
	RunCommitted      = "committed"
	RunOnchainCreated = "onchain_created"
	RunFunded         = "funded"
	RunOpen           = "open"
)

type Employer struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type Org struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type Me struct {
	Wallet               *string   `json:"wallet"`
	IsEmployerRegistered bool      `json:"is_employer_registered"`
	Employer             *Employer `json:"employer"`
	Orgs                 []Org     `json:"orgs,omitempty"`
	ActiveOrgID          *int64    `json:"active_org_id,omitempty"`
}

// ActiveOrg returns the organization matching ActiveOrgID, if any.
func (m *Me) ActiveOrg() (Org, bool) {
	if m == nil || m.ActiveOrgID == nil {
		return Org{}, false
	}
	for _, o := range m.Orgs {
		if o.ID == *m.ActiveOrgID {
			return o, true
		}
	}
	return Org{}, false
}

type WalletNonce struct {
	Wallet  string `json:"wallet"`
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

type WalletLoginRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
}

type WalletLoginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    Me     `json:"user"`
}

// LoginRequest is a username/password login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type ActiveOrgResponse struct {
	OrgID int64  `json:"org_id"`
	Role  string `json:"role"`
}

type Schedule struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	ScheduleType ScheduleType `json:"schedule_type"`
	TimeOfDay    *string      `json:"time_of_day,omitempty"`
	Weekday      *int         `json:"weekday,omitempty"`
	DayOfMonth   *int         `json:"day_of_month,omitempty"`
	MonthOfYear  *int         `json:"month_of_year,omitempty"`
	DayOfYear    *int         `json:"day_of_year,omitempty"`
	NextRunAt    *string      `json:"next_run_at,omitempty"`
	Enabled      bool         `json:"enabled"`
	CreatedAt    string       `json:"created_at,omitempty"`
}

type SchedulePayload struct {
	OrgID        *int64       `json:"org_id,omitempty"`
	Name         string       `json:"name"`
	ScheduleType ScheduleType `json:"schedule_type"`
	TimeOfDay    string       `json:"time_of_day,omitempty"`
	Weekday      *int         `json:"weekday,omitempty"`
	DayOfMonth   *int         `json:"day_of_month,omitempty"`
	MonthOfYear  *int         `json:"month_of_year,omitempty"`
	DayOfYear    *int         `json:"day_of_year,omitempty"`
}

type ToggleResult struct {
	ID      int64 `json:"id"`
	Enabled bool  `json:"enabled"`
}

// Run is a payroll batch. The backend reports the identifier as "id" when
// listing and "run_id" when creating or committing; RunID folds both.
type Run struct {
	ID               int64   `json:"id,omitempty"`
	RunIDField       int64   `json:"run_id,omitempty"`
	PayrollID        string  `json:"payroll_id"`
	Token            string  `json:"token,omitempty"`
	Vault            string  `json:"vault,omitempty"`
	MerkleRoot       string  `json:"merkle_root,omitempty"`
	Total            int     `json:"total,omitempty"`
	TotalAmountUnits int64   `json:"total_amount_units,omitempty"`
	Status           string  `json:"status,omitempty"`
	CreateTxHash     *string `json:"create_tx_hash,omitempty"`
	FundTxHash       *string `json:"fund_tx_hash,omitempty"`
	ClaimWindowDays  int     `json:"claim_window_days,omitempty"`
	CloseAt          string  `json:"close_at,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

// RunID returns whichever identifier the backend populated.
func (r Run) RunID() int64 {
	if r.ID != 0 {
		return r.ID
	}
	return r.RunIDField
}

type CreateRunRequest struct {
	ClaimWindowDays *int `json:"claim_window_days,omitempty"`
}

type RunClaim struct {
	Index          int     `json:"index"`
	EmployeeWallet string  `json:"employee_wallet"`
	Status         string  `json:"status"`
	SalaryUnits    *int64  `json:"salary_units,omitempty"`
	Leaf           string  `json:"leaf,omitempty"`
	HasCiphertext  bool    `json:"has_ciphertext"`
	ClaimTxHash    string  `json:"claim_tx_hash,omitempty"`
	ClaimedAt      *string `json:"claimed_at,omitempty"`
}

type RunClaims struct {
	RunID            int64      `json:"run_id"`
	PayrollID        string     `json:"payroll_id"`
	Status           string     `json:"status"`
	MerkleRoot       string     `json:"merkle_root"`
	Total            int        `json:"total"`
	TotalAmountUnits int64      `json:"total_amount_units"`
	Claims           []RunClaim `json:"claims"`
}

type CommitItem struct {
	Wallet           string `json:"wallet"`
	NetCiphertextB64 string `json:"net_ciphertext_b64"`
	EncryptedRef     string `json:"encrypted_ref"`
}

type CommitRunRequest struct {
	Items []CommitItem `json:"items"`
}

type OpenRunResult struct {
	RunID  int64  `json:"run_id"`
	Status string `json:"status"`
}

// ClaimPayload is what an employee needs to claim on chain.
type ClaimPayload struct {
	PayrollID        string   `json:"payroll_id"`
	Index            int      `json:"index"`
	Token            string   `json:"token"`
	Vault            string   `json:"vault"`
	NetCiphertextB64 string   `json:"net_ciphertext_b64"`
	EncryptedRef     string   `json:"encrypted_ref"`
	Proof            []string `json:"proof"`
}

// TxPayload is an unsigned transaction description. Its shape belongs to
// the backend and is passed through untouched.
type TxPayload map[string]json.RawMessage

// Tx kinds accepted by RecordRunTx.
const (
	TxKindCreatePayroll = "create_payroll"
	TxKindFundVault     = "fund_vault"
)

type RecordRunTxRequest struct {
	Kind   string `json:"kind"`
	TxHash string `json:"tx_hash"`
}

type RecordRunTxResult struct {
	RunID  int64  `json:"run_id"`
	Kind   string `json:"kind"`
	TxHash string `json:"tx_hash"`
}

type RecordClaimTxRequest struct {
	Wallet string `json:"wallet"`
	TxHash string `json:"tx_hash"`
}

type RecordClaimTxResult struct {
	RunID  int64  `json:"run_id"`
	Index  int    `json:"index"`
	Wallet string `json:"wallet"`
	TxHash string `json:"tx_hash"`
}
