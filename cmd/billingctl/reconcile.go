package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go-repair-billing/internal/logger"
	"go-repair-billing/internal/repository"
	"go-repair-billing/internal/service"
	"go-repair-billing/internal/ws"
	"go-repair-billing/pkg/database"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-derive invoice statuses from payment history",
	Long: `Reconcile walks every live invoice, recomputes its status from the payments
recorded against it, and rewrites statuses that drifted. Sent invoices past
their due date are marked overdue.

When REDIS_ADDRESS is set the run holds a distributed lock so only one
instance reconciles at a time, and corrections are relayed to connected
websocket clients through the API servers.`,
	Example: `  # One-off run
  billingctl reconcile

  # Give up after two minutes
  billingctl reconcile --timeout 2m`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Duration("timeout", 10*time.Minute, "Abort the run after this long")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reconcile")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := database.Connect(cfg.DatabaseURL, logger.WithComponent("database"))
	if err != nil {
		return err
	}

	hub := ws.NewHub(ws.HubConfig{}, logger.WithComponent("ws"))
	opts := service.Options{
		DefaultTaxRate:  cfg.DefaultTaxRate,
		DefaultCurrency: cfg.DefaultCurrency,
		Numberer:        service.CountingNumberer{Prefix: cfg.InvoiceNumberPrefix},
	}
	if cfg.RedisAddr != "" {
		rdb, locker, err := database.ConnectRedis(ctx, cfg.RedisAddr, logger.WithComponent("redis"))
		if err != nil {
			return err
		}
		defer rdb.Close()
		hub.UseRelay(ws.NewRedisRelay(rdb, logger.WithComponent("relay")))
		opts.Locker = locker
	}
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	svc := service.NewSettlementService(repository.NewStore(db), hub, opts, logger.WithComponent("settlement"))

	start := time.Now()
	report, err := svc.Reconcile(ctx)
	if report != nil {
		log.Info().
			Int("checked", report.Checked).
			Int("corrected", report.Corrected).
			Dur("elapsed", time.Since(start)).
			Msg("Reconcile finished")
		fmt.Fprintf(cmd.OutOrStdout(), "checked %d invoices, corrected %d\n", report.Checked, report.Corrected)
	}
	return err
}
