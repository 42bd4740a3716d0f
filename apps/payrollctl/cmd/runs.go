package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
)

// Amounts are reported in the token's smallest unit.
const tokenDecimals = 6

var runsCmd = &cobra.Command{
	Use:     "runs",
	Aliases: []string{"run"},
	Short:   "Manage payroll runs of the active organization",
	Long: `A run moves from draft to committed once encrypted amounts are committed,
then becomes open after the createPayroll and fundPlan transactions are
recorded. Employees can claim from open runs.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			runs, err := sdk.Payroll.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(runs)
			}
			printRuns(runs)
			return nil
		})
	},
}

func printRuns(runs []payroll.Run) {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(r.RunID(), 10),
			r.PayrollID,
			r.Status,
			strconv.Itoa(r.Total),
			payroll.FormatUnits(r.TotalAmountUnits, tokenDecimals),
			payroll.FormatDateTime(r.CloseAt),
			payroll.FormatDateTime(r.CreatedAt),
		})
	}
	table([]string{"ID", "PAYROLL ID", "STATUS", "CLAIMS", "TOTAL", "CLOSES", "CREATED"}, rows)
}

var runWindowDays int

var runsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft run for every active employee",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			run, err := sdk.Payroll.CreateRun(cmd.Context(), runWindowDays)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(run)
			}
			fmt.Printf("✅ Run #%d created (payroll id %s, %d claims)\n", run.RunID(), run.PayrollID, run.Total)
			fmt.Printf("💡 Commit encrypted amounts with: payrollctl runs commit %d --file items.json\n", run.RunID())
			return nil
		})
	},
}

var runsClaimsCmd = &cobra.Command{
	Use:   "claims <run-id>",
	Short: "Show the claims of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "run id")
		if err != nil {
			return err
		}
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			rc, err := sdk.Payroll.RunClaims(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(rc)
			}

			fmt.Printf("Run #%d  payroll %s  status %s  total %s\n", rc.RunID, rc.PayrollID, rc.Status,
				payroll.FormatUnits(rc.TotalAmountUnits, tokenDecimals))
			fmt.Printf("Merkle root: %s\n\n", orDash(rc.MerkleRoot))

			rows := make([][]string, 0, len(rc.Claims))
			for _, c := range rc.Claims {
				salary := "-"
				if c.SalaryUnits != nil {
					salary = payroll.FormatUnits(*c.SalaryUnits, tokenDecimals)
				}
				rows = append(rows, []string{
					strconv.Itoa(c.Index),
					c.EmployeeWallet,
					c.Status,
					salary,
					payroll.FormatBool(c.HasCiphertext),
					orDash(c.ClaimTxHash),
				})
			}
			table([]string{"#", "WALLET", "STATUS", "SALARY", "CIPHERTEXT", "CLAIM TX"}, rows)
			return nil
		})
	},
}

var commitFile string

var runsCommitCmd = &cobra.Command{
	Use:   "commit <run-id>",
	Short: "Commit encrypted amounts for a draft run",
	Long: `Commit encrypted net amounts for every employee of a draft run. The file
is a JSON array (or {"items": [...]}) of objects with wallet,
net_ciphertext_b64 and an optional encrypted_ref. Use - to read stdin.
Every problem in the file is reported before anything is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "run id")
		if err != nil {
			return err
		}

		var raw []byte
		if commitFile == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(commitFile)
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", commitFile, err)
		}

		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			run, err := sdk.Payroll.CommitRunJSON(cmd.Context(), id, raw)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(run)
			}
			fmt.Printf("✅ Run #%d committed, merkle root %s\n", run.RunID(), run.MerkleRoot)
			fmt.Printf("💡 Next: payrollctl tx create-payroll %d\n", run.RunID())
			return nil
		})
	},
}

var runsOpenCmd = &cobra.Command{
	Use:   "open <run-id>",
	Short: "Open a committed run for claiming",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "run id")
		if err != nil {
			return err
		}
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			res, err := sdk.Payroll.OpenRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Run #%d is %s\n", res.RunID, res.Status)
			return nil
		})
	},
}

var runsRecordTxCmd = &cobra.Command{
	Use:   "record-tx <run-id> <create_payroll|fund_vault> <tx-hash>",
	Short: "Record the hash of a submitted run transaction",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "run id")
		if err != nil {
			return err
		}
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			res, err := sdk.Payroll.RecordRunTx(cmd.Context(), id, args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Printf("✅ Recorded %s for run #%d: %s\n", res.Kind, res.RunID, res.TxHash)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsCreateCmd, runsClaimsCmd, runsCommitCmd, runsOpenCmd, runsRecordTxCmd)

	runsCreateCmd.Flags().IntVar(&runWindowDays, "claim-window", 0, "Claim window in days (default: backend's)")
	runsCommitCmd.Flags().StringVarP(&commitFile, "file", "f", "", "JSON file with the commit items, - for stdin")
	_ = runsCommitCmd.MarkFlagRequired("file")
}
