package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/quatton/paydesk/pkg/plog"
	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
)

type contextKey string

const (
	configContextKey contextKey = "paydeskconfig"
	loggerContextKey contextKey = "paydesklogger"
)

var (
	cfgFile    string
	verbose    bool
	quiet      bool
	jsonOutput bool

	rootCmd = &cobra.Command{
		Use:   "payrollctl",
		Short: "CLI for the payroll backend (auth, orgs, schedules, runs, claims)",
		Long: `payrollctl talks to a payroll backend on behalf of a wallet. Log in once
with 'payrollctl auth login'; the session is stored locally (keyring by
default) and access tokens are refreshed transparently when they expire.

Employers manage schedules and runs for their active organization:
commit encrypted amounts, fetch unsigned transactions, record tx hashes
and open the run. Employees fetch their claim payload with 'claims get'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := psdk.LoadConfig(cfgFile)
			if err != nil {
				return err
			}

			if err := cfg.Viper().BindPFlag(psdk.BaseUrlKey, cmd.Flags().Lookup("base-url")); err != nil {
				return err
			}
			if err := cfg.Viper().BindPFlag(psdk.SessionStoreKey, cmd.Flags().Lookup("session-store")); err != nil {
				return err
			}
			if v := cfg.GetString(psdk.BaseUrlKey); v != "" {
				cfg.BaseURL = strings.TrimRight(v, "/")
			}
			if v := cfg.GetString(psdk.SessionStoreKey); v != "" {
				cfg.SessionStore = v
			}

			level := plog.ParseLevel(cfg.LogLevel)
			switch {
			case verbose:
				level = slog.LevelDebug
			case quiet:
				level = slog.LevelWarn
			}

			ctx := context.WithValue(cmd.Context(), configContextKey, cfg)
			ctx = context.WithValue(ctx, loggerContextKey, plog.NewLogger(level, os.Stderr))
			cmd.SetContext(ctx)

			return nil
		},
	}
)

// GetConfig retrieves the Config from the command context
func GetConfig(cmd *cobra.Command) (*psdk.Config, error) {
	cfg, ok := cmd.Context().Value(configContextKey).(*psdk.Config)
	if !ok {
		return nil, errors.New("no config in context")
	}
	return cfg, nil
}

// GetLogger retrieves the logger from the command context, or a default one.
func GetLogger(cmd *cobra.Command) *plog.Logger {
	if l, ok := cmd.Context().Value(loggerContextKey).(*plog.Logger); ok {
		return l
	}
	return plog.NewDefault()
}

// newSdk builds an Sdk from the command's config. Callers close it.
func newSdk(cmd *cobra.Command) (*psdk.Sdk, error) {
	cfg, err := GetConfig(cmd)
	if err != nil {
		return nil, err
	}
	return psdk.NewSdk(cmd.Context(), cfg, GetLogger(cmd))
}

// withSdk runs fn with a fresh Sdk and closes it afterwards.
func withSdk(cmd *cobra.Command, fn func(sdk *psdk.Sdk) error) error {
	sdk, err := newSdk(cmd)
	if err != nil {
		return err
	}
	defer sdk.Close()
	return fn(sdk)
}

func Execute() {
	exitIfSdkError(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML). Searches: paydesk.yaml, .paydesk/config.yaml")
	rootCmd.PersistentFlags().String("base-url", "", "Base URL of the payroll backend (overrides config)")
	rootCmd.PersistentFlags().String("session-store", "", "Where the session is kept: keyring, file, memory or redis (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON instead of tables")
}
