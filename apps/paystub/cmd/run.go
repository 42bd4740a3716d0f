package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quatton/paydesk/pkg/db"
	"github.com/quatton/paydesk/pkg/kv"
	"github.com/quatton/paydesk/pkg/papi"
	"github.com/quatton/paydesk/pkg/papi/config"
	"github.com/quatton/paydesk/pkg/papi/routes"
	"github.com/quatton/paydesk/pkg/papi/services"
	"github.com/quatton/paydesk/pkg/papi/services/ledger"
	"github.com/quatton/paydesk/pkg/plog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the stub backend",
	Long: `Start the stub backend on PORT. Nonces and refresh tokens are kept in
Redis when REDIS_ADDR is set, in memory otherwise. The ledger is kept in
Postgres when DATABASE_URL is set, migrated on start, and in memory
otherwise. Schedules are checked every --tick and due ones produce draft
runs.`,
	Run: run,
}

var (
	tickEvery time.Duration
	quiet     bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVar(&tickEvery, "tick", time.Minute, "How often due schedules are turned into runs (0 disables)")
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not log requests")
}

func run(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := plog.NewDefault()

	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}
	cfg.Print(log.Printf)

	var store kv.Store
	if cfg.RedisAddr != "" {
		rs, err := kv.NewRedisStore(ctx, kv.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		store = rs
	} else {
		store = kv.NewMemoryStore()
	}
	defer store.Close()

	var database *bun.DB
	if cfg.DatabaseURL != "" {
		database, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer database.Close()

		msg, err := db.Migrate(ctx, database)
		if err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		log.Println(msg)
	}

	svcs, err := services.NewServices(cfg, database, store, logger)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}

	api := papi.NewApi(quiet)
	routes.RegisterAPI(api.Api, svcs)

	if tickEvery > 0 {
		go tickSchedules(ctx, svcs.Ledger, tickEvery, logger)
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: api.Router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("🚀 Stub starting on %s\n", addr)
	log.Printf("📚 OpenAPI docs: %s/docs\n", cfg.BaseURL)
	log.Printf("📄 OpenAPI spec: %s/openapi.json\n", cfg.BaseURL)
	log.Printf("🔐 Auth endpoints:\n")
	log.Printf("   - Nonce: %s/api/auth/nonce/", cfg.BaseURL)
	log.Printf("   - Wallet login: %s/api/auth/wallet-login/", cfg.BaseURL)
	log.Printf("   - Password login: %s/api/auth/login/", cfg.BaseURL)
	log.Printf("   - Refresh: %s/api/auth/refresh/", cfg.BaseURL)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func tickSchedules(ctx context.Context, book *ledger.Ledger, every time.Duration, logger *plog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ids, err := book.Tick(ctx)
			if err != nil {
				logger.Warn("schedule tick failed", "error", err)
			}
			if len(ids) > 0 {
				logger.Info("scheduled runs created", "runs", ids)
			}
		}
	}
}
