package cmd

import (
	"fmt"
	"time"

	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the wallet session (login, logout, status, refresh)",
	Long: `Manage authentication against the payroll backend.

Login is a wallet signature over a one-time nonce, or a username and
password where the backend has password accounts. The resulting access
and refresh tokens are kept in the configured session store and used by
every other command.

Examples:
  payrollctl auth login --wallet 0xabc...
  payrollctl auth login --username boss
  payrollctl auth status
  payrollctl auth logout`,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			if err := sdk.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("👋 Logged out")
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the locally stored session without contacting the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			st, err := sdk.Auth.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(st)
			}

			fmt.Printf("Backend: %s\n", st.BaseURL)
			if !st.LoggedIn {
				fmt.Println("Logged in: No (run 'payrollctl auth login')")
				return nil
			}
			fmt.Printf("Logged in: %s\n", payroll.FormatBool(st.LoggedIn))
			fmt.Printf("Wallet: %s\n", st.Wallet)
			fmt.Printf("Active org: %s\n", orDash(st.ActiveOrg))
			fmt.Printf("Refresh token: %s\n", payroll.FormatBool(st.HasRefreshToken))
			if st.Claims != nil && !st.Claims.ExpiresAt.IsZero() {
				state := "valid"
				if st.Expired {
					state = "expired, refreshed on next request"
				}
				fmt.Printf("Access token expires: %s (%s)\n", st.Claims.ExpiresAt.Format(time.RFC3339), state)
			}
			return nil
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a new access token now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			if err := sdk.Auth.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("✅ Access token refreshed")
			return nil
		})
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(logoutCmd, statusCmd, refreshCmd)
}
