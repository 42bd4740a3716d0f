package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "paystub",
	Short: "Local payroll backend stub",
	Long: `paystub serves the payroll backend HTTP contract locally so the SDK and
payrollctl can be exercised end to end without the real backend or a chain.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
