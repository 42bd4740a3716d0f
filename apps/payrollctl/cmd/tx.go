package cmd

import (
	"context"

	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Print unsigned transactions for a run",
	Long: `Print the unsigned transaction payloads a wallet has to submit for a
committed run. After submitting, record the hash with 'runs record-tx'.`,
}

func txPayloadCmd(use, short string, fetch func(p *psdk.PayrollService, ctx context.Context, runID int64) (payroll.TxPayload, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <run-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "run id")
			if err != nil {
				return err
			}
			return withSdk(cmd, func(sdk *psdk.Sdk) error {
				tx, err := fetch(sdk.Payroll, cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(tx)
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(txCmd)
	txCmd.AddCommand(
		txPayloadCmd("create-payroll", "Transaction that registers the run's merkle root", (*psdk.PayrollService).TxCreatePayroll),
		txPayloadCmd("fund-plan", "Transactions that fund the run's vault", (*psdk.PayrollService).TxFundPlan),
	)
}
