package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
)

var claimsCmd = &cobra.Command{
	Use:     "claims",
	Aliases: []string{"claim"},
	Short:   "Fetch and record employee claims",
}

var claimsGetCmd = &cobra.Command{
	Use:   "get <payroll-id> <wallet>",
	Short: "Fetch the claim payload and merkle proof for a wallet",
	Long: `Fetch what an employee needs to claim on chain: index, token, vault,
ciphertext, encrypted reference and merkle proof. Only the logged-in
wallet's own claim can be fetched, and only from open or funded runs.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			c, err := sdk.Payroll.GetClaim(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(c)
			}
			fmt.Printf("Payroll: %s\n", c.PayrollID)
			fmt.Printf("Index: %d\n", c.Index)
			fmt.Printf("Token: %s\n", c.Token)
			fmt.Printf("Vault: %s\n", c.Vault)
			fmt.Printf("Encrypted ref: %s\n", c.EncryptedRef)
			fmt.Printf("Ciphertext: %s\n", c.NetCiphertextB64)
			fmt.Printf("Proof:\n  %s\n", strings.Join(c.Proof, "\n  "))
			return nil
		})
	},
}

var claimsRecordTxCmd = &cobra.Command{
	Use:   "record-tx <run-id> <index> <wallet> <tx-hash>",
	Short: "Record the hash of a submitted claim transaction",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := parseID(args[0], "run id")
		if err != nil {
			return err
		}
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("index must be an integer, got %q", args[1])
		}
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			res, err := sdk.Payroll.RecordClaimTx(cmd.Context(), runID, index, args[2], args[3])
			if err != nil {
				return err
			}
			fmt.Printf("✅ Claim %d of run #%d recorded: %s\n", res.Index, res.RunID, res.TxHash)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(claimsCmd)
	claimsCmd.AddCommand(claimsGetCmd, claimsRecordTxCmd)
}
