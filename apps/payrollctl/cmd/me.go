package cmd

import (
	"fmt"
	"strconv"

	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
)

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the authenticated wallet, its employer profile and organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			me, err := sdk.Auth.Me(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(me)
			}

			fmt.Printf("Wallet: %s\n", derefOr(me.Wallet, "-"))
			if me.Employer != nil {
				fmt.Printf("Employer: %s (#%d)\n", me.Employer.Name, me.Employer.ID)
			} else {
				fmt.Println("Employer: -")
			}
			if org, ok := me.ActiveOrg(); ok {
				fmt.Printf("Active org: %s (#%d, %s)\n", org.Name, org.ID, org.Role)
			}
			fmt.Printf("Organizations: %s\n", strconv.Itoa(len(me.Orgs)))
			return nil
		})
	},
}

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List organizations or switch the active one",
}

var orgsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the organizations you belong to",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			me, err := sdk.Auth.Me(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(me.Orgs)
			}

			rows := make([][]string, 0, len(me.Orgs))
			for _, o := range me.Orgs {
				active := ""
				if me.ActiveOrgID != nil && *me.ActiveOrgID == o.ID {
					active = "*"
				}
				rows = append(rows, []string{active, strconv.FormatInt(o.ID, 10), o.Name, o.Role})
			}
			table([]string{"", "ID", "NAME", "ROLE"}, rows)
			return nil
		})
	},
}

var orgsUseCmd = &cobra.Command{
	Use:   "use <org-id>",
	Short: "Make an organization the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "org id")
		if err != nil {
			return err
		}
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			res, err := sdk.Auth.SetActiveOrg(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Active org is now #%d (%s)\n", res.OrgID, res.Role)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(meCmd, orgsCmd)
	orgsCmd.AddCommand(orgsListCmd, orgsUseCmd)
}
