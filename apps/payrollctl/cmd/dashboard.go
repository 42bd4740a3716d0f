package cmd

import (
	"fmt"

	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type dashboard struct {
	Me        *payroll.Me        `json:"me"`
	Schedules []payroll.Schedule `json:"schedules"`
	Runs      []payroll.Run      `json:"runs"`
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Overview of the active organization: profile, schedules and runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			var d dashboard

			// The requests run concurrently; an expired access token is
			// refreshed once for all of them.
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				d.Me, err = sdk.Auth.Me(ctx)
				return err
			})
			g.Go(func() (err error) {
				d.Schedules, err = sdk.Payroll.ListSchedules(ctx)
				return err
			})
			g.Go(func() (err error) {
				d.Runs, err = sdk.Payroll.ListRuns(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(d)
			}

			fmt.Printf("Wallet: %s\n", derefOr(d.Me.Wallet, "-"))
			if org, ok := d.Me.ActiveOrg(); ok {
				fmt.Printf("Organization: %s (#%d, %s)\n", org.Name, org.ID, org.Role)
			}

			enabled := 0
			for _, s := range d.Schedules {
				if s.Enabled {
					enabled++
				}
			}
			fmt.Printf("Schedules: %d (%d enabled)\n", len(d.Schedules), enabled)

			byStatus := map[string]int{}
			for _, r := range d.Runs {
				byStatus[r.Status]++
			}
			fmt.Printf("Runs: %d (draft %d, committed %d, open %d)\n\n", len(d.Runs),
				byStatus[payroll.RunDraft], byStatus[payroll.RunCommitted], byStatus[payroll.RunOpen])

			if len(d.Runs) > 0 {
				printRuns(d.Runs)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
