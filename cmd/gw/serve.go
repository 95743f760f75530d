package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/formloom/gateway/internal/config"
	"github.com/formloom/gateway/internal/db"
	"github.com/formloom/gateway/internal/llm"
	"github.com/formloom/gateway/internal/notify"
	"github.com/formloom/gateway/internal/quota"
	"github.com/formloom/gateway/internal/ratelimit"
	"github.com/formloom/gateway/internal/server"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// limiterSize bounds how many distinct rate-limit identifiers are tracked.
const limiterSize = 50000

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		Long:  "Loads configuration, migrates the database, starts the monthly usage rollover schedule, and serves the SDK API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yaml", "path to gateway config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	conn, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	limiter, err := ratelimit.NewWindowLimiter(limiterSize)
	if err != nil {
		return err
	}

	notifier := notify.NewMulti(cfg.Notify)
	quotas := quota.NewService(conn, cfg.Plans, notifier)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Usage counters roll over at midnight on the first of each month.
	sched := cron.New()
	if _, err := sched.AddFunc("0 0 1 * *", func() {
		if err := quotas.ResetMonthly(context.Background()); err != nil {
			log.Printf("serve: monthly reset: %v", err)
		} else {
			log.Printf("serve: monthly usage counters reset")
		}
	}); err != nil {
		return fmt.Errorf("schedule monthly reset: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv, err := server.New(server.Opts{
		Config:  cfg,
		DB:      conn,
		Client:  llm.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.APIKey()),
		Limiter: limiter,
		Quota:   quotas,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Gateway listening on :%d\n", cfg.Server.Port)
	return srv.Start(ctx)
}
