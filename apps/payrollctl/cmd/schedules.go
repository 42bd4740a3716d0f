package cmd

import (
	"fmt"
	"strconv"

	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
)

var schedulesCmd = &cobra.Command{
	Use:     "schedules",
	Aliases: []string{"schedule"},
	Short:   "Manage payroll schedules of the active organization",
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			list, err := sdk.Payroll.ListSchedules(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(list)
			}

			rows := make([][]string, 0, len(list))
			for _, s := range list {
				rows = append(rows, []string{
					strconv.FormatInt(s.ID, 10),
					s.Name,
					string(s.ScheduleType),
					derefOr(s.TimeOfDay, "-"),
					payroll.FormatDateTime(derefOr(s.NextRunAt, "")),
					payroll.FormatBool(s.Enabled),
				})
			}
			table([]string{"ID", "NAME", "TYPE", "TIME", "NEXT RUN", "ENABLED"}, rows)
			return nil
		})
	},
}

var (
	schedName        string
	schedType        string
	schedTime        string
	schedOrg         int64
	schedWeekday     int
	schedDayOfMonth  int
	schedMonthOfYear int
	schedDayOfYear   int
)

var schedulesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a schedule",
	Long: `Create a payroll schedule. The active organization is used unless --org
is given. Weekday counts from Monday (0) to Sunday (6).

Examples:
  payrollctl schedules create --name "Monthly salaries" --type monthly --day-of-month 25
  payrollctl schedules create --name "Weekly" --type weekly --weekday 4 --time 17:30
  payrollctl schedules create --name "Bonus" --type instant`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := payroll.SchedulePayload{
			Name:         schedName,
			ScheduleType: payroll.ScheduleType(schedType),
			TimeOfDay:    schedTime,
		}
		if cmd.Flags().Changed("org") {
			in.OrgID = &schedOrg
		}
		if cmd.Flags().Changed("weekday") {
			in.Weekday = &schedWeekday
		}
		if cmd.Flags().Changed("day-of-month") {
			in.DayOfMonth = &schedDayOfMonth
		}
		if cmd.Flags().Changed("month") {
			in.MonthOfYear = &schedMonthOfYear
		}
		if cmd.Flags().Changed("day-of-year") {
			in.DayOfYear = &schedDayOfYear
		}
		if in.TimeOfDay == "" && in.ScheduleType != payroll.ScheduleInstant {
			in.TimeOfDay = "09:00"
		}

		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			s, err := sdk.Payroll.CreateSchedule(cmd.Context(), in)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(s)
			}
			fmt.Printf("✅ Schedule #%d created (%s), next run: %s\n", s.ID, s.ScheduleType, payroll.FormatDateTime(derefOr(s.NextRunAt, "")))
			return nil
		})
	},
}

var schedulesToggleCmd = &cobra.Command{
	Use:   "toggle <schedule-id> <on|off>",
	Short: "Enable or disable a schedule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "schedule id")
		if err != nil {
			return err
		}
		var enabled bool
		switch args[1] {
		case "on", "true", "enable":
			enabled = true
		case "off", "false", "disable":
		default:
			return fmt.Errorf("state must be on or off, got %q", args[1])
		}

		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			res, err := sdk.Payroll.ToggleSchedule(cmd.Context(), id, enabled)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Schedule #%d enabled: %s\n", res.ID, payroll.FormatBool(res.Enabled))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(schedulesCmd)
	schedulesCmd.AddCommand(schedulesListCmd, schedulesCreateCmd, schedulesToggleCmd)

	f := schedulesCreateCmd.Flags()
	f.StringVarP(&schedName, "name", "n", "", "Schedule name")
	f.StringVarP(&schedType, "type", "t", "", "instant, daily, weekly, monthly or yearly")
	f.StringVar(&schedTime, "time", "", "Time of day HH:MM (default 09:00 for recurring schedules)")
	f.Int64Var(&schedOrg, "org", 0, "Organization id (default: active org)")
	f.IntVar(&schedWeekday, "weekday", 0, "Weekday for weekly schedules, 0=Monday")
	f.IntVar(&schedDayOfMonth, "day-of-month", 0, "Day of month for monthly schedules (1-31)")
	f.IntVar(&schedMonthOfYear, "month", 0, "Month for yearly schedules (1-12)")
	f.IntVar(&schedDayOfYear, "day-of-year", 0, "Day of month for yearly schedules (1-31)")
	_ = schedulesCreateCmd.MarkFlagRequired("name")
	_ = schedulesCreateCmd.MarkFlagRequired("type")
}
