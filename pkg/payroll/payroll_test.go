package payroll

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
)

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		payload SchedulePayload
		fields  []string
	}{
		{
			name:    "instant needs no time",
			payload: SchedulePayload{OrgID: int64p(1), Name: "bonus", ScheduleType: ScheduleInstant},
		},
		{
			name:    "daily",
			payload: SchedulePayload{OrgID: int64p(1), Name: "daily", ScheduleType: ScheduleDaily, TimeOfDay: "09:00"},
		},
		{
			name:    "empty payload",
			payload: SchedulePayload{},
			fields:  []string{"org_id", "name", "schedule_type", "time_of_day"},
		},
		{
			name:    "weekly without weekday",
			payload: SchedulePayload{OrgID: int64p(1), Name: "w", ScheduleType: ScheduleWeekly, TimeOfDay: "09:00"},
			fields:  []string{"weekday"},
		},
		{
			name:    "weekly weekday out of range",
			payload: SchedulePayload{OrgID: int64p(1), Name: "w", ScheduleType: ScheduleWeekly, TimeOfDay: "09:00", Weekday: intp(7)},
			fields:  []string{"weekday"},
		},
		{
			name:    "monthly without day",
			payload: SchedulePayload{OrgID: int64p(1), Name: "m", ScheduleType: ScheduleMonthly, TimeOfDay: "09:00"},
			fields:  []string{"day_of_month"},
		},
		{
			name:    "yearly without month and day",
			payload: SchedulePayload{OrgID: int64p(1), Name: "y", ScheduleType: ScheduleYearly, TimeOfDay: "09:00"},
			fields:  []string{"month_of_year", "day_of_year"},
		},
		{
			name:    "bad time and type",
			payload: SchedulePayload{OrgID: int64p(1), Name: "x", ScheduleType: "hourly", TimeOfDay: "25:00"},
			fields:  []string{"schedule_type", "time_of_day"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.payload)
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Len(t, verrs, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, verrs, f)
			}
		})
	}
}

func TestValidationErrorsMessageIsSorted(t *testing.T) {
	err := ValidationErrors{"name": "a", "day_of_month": "b"}
	assert.Equal(t, "invalid schedule: day_of_month: b; name: a", err.Error())
}

func TestDecodeCommitItems(t *testing.T) {
	raw := `[
		{"wallet": "0x1111111111111111111111111111111111111111", "net_ciphertext_b64": "aGVsbG8="},
		{"wallet": " 0x2222222222222222222222222222222222222222 ", "net_ciphertext_b64": "d29ybGQ=", "encrypted_ref": "0xAB00000000000000000000000000000000000000000000000000000000000000"}
	]`

	items, err := DecodeCommitItems([]byte(raw))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, CommitItem{Wallet: walletA, NetCiphertextB64: "aGVsbG8=", EncryptedRef: ZeroRef}, items[0])
	assert.Equal(t, walletB, items[1].Wallet)
	assert.Equal(t, "0xab00000000000000000000000000000000000000000000000000000000000000", items[1].EncryptedRef)
}

func TestDecodeCommitItemsAcceptsWrappedObject(t *testing.T) {
	raw := `{"items": [{"wallet": "0x1111111111111111111111111111111111111111", "net_ciphertext_b64": "aGVsbG8="}]}`

	items, err := DecodeCommitItems([]byte(raw))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDecodeCommitItemsReportsEveryProblem(t *testing.T) {
	raw := `[
		{"wallet": "0x1111111111111111111111111111111111111111", "net_ciphertext_b64": "aGVsbG8="},
		{"wallet": "not-a-wallet", "net_ciphertext_b64": "%%%"},
		{"wallet": "0x1111111111111111111111111111111111111111", "encrypted_ref": "0x12"},
		42
	]`

	_, err := DecodeCommitItems([]byte(raw))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)

	got := map[int][]string{}
	for _, p := range derr.Problems {
		got[p.Index] = append(got[p.Index], p.Field)
	}
	assert.Equal(t, []string{"wallet", "net_ciphertext_b64"}, got[1])
	assert.Equal(t, []string{"wallet", "net_ciphertext_b64", "encrypted_ref"}, got[2])
	assert.Equal(t, []string{""}, got[3])
	assert.NotContains(t, got, 0)

	assert.Contains(t, err.Error(), "items[2].wallet: duplicate of items[0]")
}

func TestDecodeCommitItemsRejectsNonCanonicalBase64(t *testing.T) {
	raw := `[{"wallet": "0x1111111111111111111111111111111111111111", "net_ciphertext_b64": "aGVsbG9="}]`

	_, err := DecodeCommitItems([]byte(raw))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	require.Len(t, derr.Problems, 1)
	assert.Equal(t, "net_ciphertext_b64", derr.Problems[0].Field)
}

func TestDecodeCommitItemsRejectsShape(t *testing.T) {
	for _, raw := range []string{"", "   ", `"items"`, `[]`, `{"other": 1}`, `[{"wallet": }]`} {
		_, err := DecodeCommitItems([]byte(raw))

		var derr *DecodeError
		require.ErrorAs(t, err, &derr, "input %q", raw)
		require.Len(t, derr.Problems, 1)
		assert.Equal(t, -1, derr.Problems[0].Index)
	}
}

func TestNormalizeWallet(t *testing.T) {
	w, err := NormalizeWallet("  0xAbCdEf0000000000000000000000000000000000 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000000", w)

	for _, bad := range []string{"", "0x123", "abcdef0000000000000000000000000000000000", "0xZZcdef0000000000000000000000000000000000"} {
		_, err := NormalizeWallet(bad)
		assert.Error(t, err, bad)
	}
}

func TestChecksumAddress(t *testing.T) {
	for _, want := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	} {
		got, err := ChecksumAddress(strings.ToLower(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ChecksumAddress("0x12")
	assert.Error(t, err)
}

func TestNormalizeTxHash(t *testing.T) {
	h, err := NormalizeTxHash("0x" + strings.Repeat("AB", 32))
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("ab", 32), h)

	_, err = NormalizeTxHash("0x1234")
	assert.Error(t, err)
	assert.True(t, IsBytes32(ZeroRef))
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(1_500_000, 6))
	assert.Equal(t, "0.000001", FormatUnits(1, 6))
	assert.Equal(t, "12", FormatUnits(12_000_000, 6))
	assert.Equal(t, "-2.25", FormatUnits(-2_250_000, 6))
	assert.Equal(t, "42", FormatUnits(42, 0))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", FormatDateTime(""))
	assert.Equal(t, "yesterday", FormatDateTime("yesterday"))
	assert.NotEqual(t, "-", FormatDateTime("2025-01-02T03:04:05Z"))
	assert.Equal(t, "-", FormatOptional(nil))
	assert.Equal(t, "Yes", FormatBool(true))
	assert.Equal(t, "No", FormatBool(false))
}

func TestRunIDFoldsBothKeys(t *testing.T) {
	assert.Equal(t, int64(3), Run{ID: 3}.RunID())
	assert.Equal(t, int64(4), Run{RunIDField: 4}.RunID())
}

func TestMeActiveOrg(t *testing.T) {
	id := int64(2)
	me := &Me{Orgs: []Org{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, ActiveOrgID: &id}
	org, ok := me.ActiveOrg()
	require.True(t, ok)
	assert.Equal(t, "b", org.Name)

	_, ok = (&Me{}).ActiveOrg()
	assert.False(t, ok)
}
