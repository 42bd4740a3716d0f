package cmd

import (
	"log"

	"github.com/quatton/paydesk/pkg/db"
	"github.com/quatton/paydesk/pkg/papi/config"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply ledger migrations to DATABASE_URL",
	Long: `Creates or upgrades the payroll schema in the Postgres database named by
DATABASE_URL. run applies pending migrations on start as well.`,
	Run: runMigrate,
}

var migrateDown bool

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back the last migration group instead")
}

func runMigrate(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("❌ DATABASE_URL is not set")
	}

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	step := db.Migrate
	if migrateDown {
		step = db.Rollback
	}
	log.Println("Running migrations...")
	msg, err := step(ctx, database)
	if err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	log.Println(msg)
}
