package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/quatton/paydesk/pkg/parchive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42", "run id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := parseID(bad, "run id")
		assert.Error(t, err, bad)
	}
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("  0xsig \nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "0xsig", got)

	got, err = readLine(strings.NewReader("0xnonewline"))
	require.NoError(t, err)
	assert.Equal(t, "0xnonewline", got)

	_, err = readLine(strings.NewReader(""))
	assert.Error(t, err)
}

func TestDerefOr(t *testing.T) {
	s := "x"
	empty := ""
	assert.Equal(t, "x", derefOr(&s, "-"))
	assert.Equal(t, "-", derefOr(&empty, "-"))
	assert.Equal(t, "-", derefOr(nil, "-"))
	assert.Equal(t, "-", orDash(""))
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"auth", "login"}, {"auth", "nonce"}, {"auth", "status"}, {"auth", "refresh"}, {"auth", "logout"},
		{"me"}, {"orgs", "list"}, {"orgs", "use"},
		{"schedules", "list"}, {"schedules", "create"}, {"schedules", "toggle"},
		{"runs", "list"}, {"runs", "create"}, {"runs", "claims"}, {"runs", "commit"},
		{"runs", "open"}, {"runs", "record-tx"}, {"runs", "export"},
		{"tx", "create-payroll"}, {"tx", "fund-plan"},
		{"claims", "get"}, {"claims", "record-tx"},
		{"dashboard"},
	} {
		c, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], c.Name(), path)
	}
}

func TestLoginAndExportFlags(t *testing.T) {
	for path, flags := range map[string][]string{
		"auth login":  {"wallet", "signature", "nonce", "username", "password-stdin"},
		"runs export": {"share", "list", "show", "delete"},
	} {
		c, _, err := rootCmd.Find(strings.Fields(path))
		require.NoError(t, err, path)
		for _, name := range flags {
			assert.NotNil(t, c.Flags().Lookup(name), "%s --%s", path, name)
		}
	}
}

func TestExportErrNamesMissingRun(t *testing.T) {
	err := exportErr(9, parchive.ErrNotFound)
	assert.EqualError(t, err, "run 9 has not been exported")

	other := errors.New("boom")
	assert.Same(t, other, exportErr(9, other))
}
