package schemas

import "github.com/quatton/paydesk/pkg/payroll"

type ScheduleRequest struct {
	Body payroll.SchedulePayload
}

type ScheduleResponse struct {
	Body payroll.Schedule
}

type ScheduleListResponse struct {
	Body []payroll.Schedule
}

type ToggleScheduleRequest struct {
	ID   int64 `path:"id"`
	Body struct {
		Enabled *bool `json:"enabled,omitempty" doc:"Defaults to true"`
	}
}

type ToggleScheduleResponse struct {
	Body payroll.ToggleResult
}

type RunPath struct {
	ID int64 `path:"id" doc:"Run id"`
}

type CreateRunRequest struct {
	Body *payroll.CreateRunRequest `required:"false"`
}

type RunResponse struct {
	Body payroll.Run
}

type RunListResponse struct {
	Body []payroll.Run
}

type RunClaimsResponse struct {
	Body payroll.RunClaims
}

type CommitItem struct {
	Wallet           string `json:"wallet"`
	NetCiphertextB64 string `json:"net_ciphertext_b64"`
	EncryptedRef     string `json:"encrypted_ref,omitempty" doc:"bytes32 hex, zero when omitted"`
}

type CommitRunRequest struct {
	ID   int64 `path:"id"`
	Body struct {
		Items []CommitItem `json:"items"`
	}
}

type OpenRunResponse struct {
	Body payroll.OpenRunResult
}

// TxPayloadResponse is an unsigned transaction description for the
// frontend to encode and sign.
type TxPayloadResponse struct {
	Body map[string]any
}

type RecordRunTxRequest struct {
	ID   int64 `path:"id"`
	Body struct {
		Kind   string `json:"kind" doc:"create_payroll or fund_vault"`
		TxHash string `json:"tx_hash"`
	}
}

type RecordRunTxResponse struct {
	Body payroll.RecordRunTxResult
}

type ClaimPath struct {
	PayrollID string `path:"payroll_id" pattern:"^[1-9][0-9]*$"`
	Wallet    string `path:"wallet"`
}

type ClaimResponse struct {
	Body payroll.ClaimPayload
}

type RecordClaimTxRequest struct {
	RunID int64 `path:"run_id"`
	Index int   `path:"index"`
	Body  struct {
		Wallet string `json:"wallet"`
		TxHash string `json:"tx_hash"`
	}
}

type RecordClaimTxResponse struct {
	Body payroll.RecordClaimTxResult
}
