package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/custodian/internal/assistant"
	"github.com/user/custodian/internal/delivery"
	"github.com/user/custodian/internal/gateway"
	"github.com/user/custodian/internal/scheduler"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/telegram"
	"github.com/user/custodian/internal/types"
	"github.com/user/custodian/internal/watch"
	"github.com/user/custodian/internal/webhook"
)

const pidFile = "custodian.pid"

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("watch", "", "drop folder to seal new evidence from")
	serveCmd.Flags().Duration("debounce", 2*time.Second, "drop folder batch quiet period")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the custodian daemon (HTTP API, Telegram, scheduled audits)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFile)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	watchDir, _ := cmd.Flags().GetString("watch")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ai, err := assistant.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("create assistant: %w", err)
	}
	audits := auditLog(cfg)

	// Delivery registry
	deliveryReg := delivery.NewRegistry()
	deliveryReg.Register("log:", delivery.LogHandler())
	deliveryReg.Register("file:", delivery.FileHandler(filepath.Join(cfg.DataDir, "outbox")))
	targets := []string{"log:", "file:"}

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, store, ai, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")

		deliveryReg.Register(telegram.TargetPrefix, adapter.Handler())
		if cfg.Telegram.ChatID != 0 {
			targets = append(targets, telegram.TargetPrefix)
		}
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Gateway
	gw := gateway.New(int64(cfg.MaxConcurrent))
	gw.Handle("notify", delivery.JobHandler(deliveryReg, targets))
	if ai.Available() {
		gw.Handle("brief", assistant.BriefHandler(ai, filepath.Join(cfg.DataDir, "briefs")))
	} else {
		slog.Warn("assistant briefings disabled (no llm.api_key)")
	}
	gw.Start(ctx)
	defer gw.Stop()

	// Scheduler
	auditor := scheduler.NewAuditor(store, audits, func(res state.AuditResult) {
		n := delivery.Notice{CaseID: res.CaseID, Alert: "integrity audit failed: " + res.Error}
		for _, target := range targets {
			if err := deliveryReg.Deliver(ctx, target, n); err != nil {
				slog.Error("tamper alert delivery failed", "target", target, "error", err)
			}
		}
	})
	sched := scheduler.New(auditor, cfg.AuditSchedule)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// Drop folder
	if watchDir != "" {
		folder := watch.New(watchDir, debounce, func(ctx context.Context, b watch.Batch) error {
			rec, err := sealCase(ctx, cfg, store, batchName(time.Now()), b.Intakes)
			if err != nil {
				return err
			}
			return dispatch(gw, rec)
		})
		go func() {
			if err := folder.Run(ctx); err != nil {
				slog.Error("drop folder stopped", "dir", watchDir, "error", err)
			}
		}()
		slog.Info("watching drop folder", "dir", watchDir)
	}

	// HTTP API
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           webhook.NewServer(store, audits, ai),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http api started", "listen", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http api error", "error", err)
		}
	}()
	defer httpServer.Close()

	slog.Info("custodian started",
		"data_dir", cfg.DataDir,
		"store", cfg.Store,
		"max_concurrent", cfg.MaxConcurrent,
		"audit_schedule", cfg.AuditSchedule,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case <-sigChan:
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
			}
		}
	}
}

// dispatch queues post-seal jobs for a newly persisted case. Job failures
// are logged by the gateway and never reach the store.
func dispatch(gw *gateway.Gateway, rec *types.CaseRecord) error {
	jobs, err := gw.Dispatch(rec)
	if err != nil {
		return err
	}
	slog.Info("case sealed", "case", rec.ID, "jobs", len(jobs))
	return nil
}
