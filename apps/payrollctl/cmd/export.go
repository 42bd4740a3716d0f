package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/quatton/paydesk/pkg/parchive"
	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
)

var (
	exportShare  time.Duration
	exportList   bool
	exportShow   bool
	exportDelete bool
)

var runsExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Archive a run and its claims to S3-compatible storage",
	Long: `Export a run together with its claims as runs/<id>/claims.json in the
bucket configured under archive.* (endpoint, bucket, accessKey, secretKey).
With --share a presigned download link is printed. --list shows which
runs have been exported, --show prints a stored export and --delete
removes it. Neither of those talks to the payroll backend.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig(cmd)
		if err != nil {
			return err
		}
		archive, err := openArchive(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if exportList {
			return listExports(cmd.Context(), archive)
		}

		if len(args) != 1 {
			return errors.New("run id is required unless --list is given")
		}
		id, err := parseID(args[0], "run id")
		if err != nil {
			return err
		}

		switch {
		case exportShow:
			return showExport(cmd.Context(), archive, id)
		case exportDelete:
			if err := archive.DeleteRun(cmd.Context(), id); err != nil {
				return exportErr(id, err)
			}
			fmt.Printf("🗑️  Deleted export of run #%d\n", id)
			return nil
		}

		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			ctx := cmd.Context()

			run, err := findRun(ctx, sdk, id)
			if err != nil {
				return err
			}
			claims, err := sdk.Payroll.RunClaims(ctx, id)
			if err != nil {
				return err
			}

			obj, err := archive.ExportRun(ctx, sdk.Config.BaseURL, run, *claims)
			if err != nil {
				return fmt.Errorf("exporting run %d: %w", id, err)
			}
			fmt.Printf("📦 Exported run #%d to %s/%s (%d bytes)\n", id, obj.Bucket, obj.Key, obj.Size)

			if exportShare > 0 {
				url, err := archive.ShareURL(ctx, id, exportShare)
				if err != nil {
					return err
				}
				fmt.Printf("🔗 %s\n", url)
			}
			return nil
		})
	},
}

func exportErr(id int64, err error) error {
	if errors.Is(err, parchive.ErrNotFound) {
		return fmt.Errorf("run %d has not been exported", id)
	}
	return err
}

func listExports(ctx context.Context, archive *parchive.Archive) error {
	list, err := archive.ExportedRuns(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No runs exported yet.")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		rows = append(rows, []string{
			strconv.FormatInt(e.RunID, 10),
			orDash(e.PayrollID),
			orDash(e.Status),
			strconv.FormatInt(e.Size, 10),
			e.ExportedAt.Local().Format(time.DateTime),
		})
	}
	table([]string{"RUN", "PAYROLL", "STATUS", "BYTES", "EXPORTED"}, rows)
	return nil
}

func showExport(ctx context.Context, archive *parchive.Archive, id int64) error {
	exp, err := archive.LoadRun(ctx, id)
	if err != nil {
		return exportErr(id, err)
	}
	if jsonOutput {
		return printJSON(exp)
	}
	fmt.Printf("Run #%d exported %s from %s\n", id, exp.ExportedAt.Local().Format(time.DateTime), orDash(exp.BaseURL))
	fmt.Printf("Payroll %s  status %s  root %s\n", orDash(exp.Claims.PayrollID), orDash(exp.Claims.Status), orDash(exp.Claims.MerkleRoot))
	rows := make([][]string, 0, len(exp.Claims.Claims))
	for _, c := range exp.Claims.Claims {
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			c.EmployeeWallet,
			c.Status,
			orDash(c.ClaimTxHash),
		})
	}
	table([]string{"#", "EMPLOYEE", "STATUS", "CLAIM TX"}, rows)
	return nil
}

func openArchive(ctx context.Context, cfg *psdk.Config) (*parchive.Archive, error) {
	if cfg.Archive.Endpoint == "" {
		return nil, errors.New("archive.endpoint is not configured (set PAYDESK_ARCHIVE_ENDPOINT or archive.endpoint)")
	}
	store, err := parchive.NewS3Store(parchive.S3Config{
		Endpoint:  cfg.Archive.Endpoint,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		Region:    cfg.Archive.Region,
		UseSSL:    cfg.Archive.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to archive: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("preparing bucket %s: %w", cfg.Archive.Bucket, err)
	}
	return parchive.New(store), nil
}

func findRun(ctx context.Context, sdk *psdk.Sdk, id int64) (payroll.Run, error) {
	runs, err := sdk.Payroll.ListRuns(ctx)
	if err != nil {
		return payroll.Run{}, err
	}
	for _, r := range runs {
		if r.RunID() == id {
			return r, nil
		}
	}
	return payroll.Run{}, fmt.Errorf("run %s not found in the active organization", strconv.FormatInt(id, 10))
}

func init() {
	runsCmd.AddCommand(runsExportCmd)
	runsExportCmd.Flags().DurationVar(&exportShare, "share", 0, "Also print a presigned download URL valid for this long")
	runsExportCmd.Flags().BoolVar(&exportList, "list", false, "List exported runs")
	runsExportCmd.Flags().BoolVar(&exportShow, "show", false, "Print a stored export instead of creating one")
	runsExportCmd.Flags().BoolVar(&exportDelete, "delete", false, "Delete a stored export")
	runsExportCmd.MarkFlagsMutuallyExclusive("list", "show", "delete")
}
