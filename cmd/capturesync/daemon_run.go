package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"capturesync/internal/config"
	"capturesync/internal/daemon"
	"capturesync/internal/ipc"
	"capturesync/internal/logging"
	"capturesync/internal/metrics"
	"capturesync/internal/pipeline"
)

type processOptions struct {
	// autoStart begins watching immediately instead of waiting for `start`.
	autoStart bool
	// console receives canonical progress lines; nil keeps the terminal for logs.
	console io.Writer
	// progress draws a bar on stderr while console lines are printed.
	progress bool
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext, opts processOptions) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	session := time.Now()
	logPath := cfg.SessionLogPath(session)
	logOpts := logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: logPath,
	}
	if opts.console != nil {
		logOpts.Writer = io.Discard
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "capturesync-*.log", logPath)

	var progress *progressObserver
	var observer pipeline.Observer
	if opts.console != nil {
		progress = newProgressObserver(opts.console, os.Stderr, opts.progress)
		observer = progress
	}

	d, err := daemon.New(cfg, logger, daemon.Options{Observer: observer})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()
	if progress != nil {
		progress.bind(d.Coordinator().Stats)
	}
	if err := d.Acquire(); err != nil {
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if stop, err := serveMetrics(cfg, d, logger); err != nil {
		logging.WarnWithContext(logger, "metrics listener unavailable", "metrics_listen_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "choose a free address for metrics.bind"),
			logging.String(logging.FieldImpact, "metrics are not exported"),
		)
	} else {
		defer stop()
	}

	if opts.autoStart {
		if err := d.Start(signalCtx); err != nil {
			if opts.console != nil {
				return err
			}
			logging.WarnWithContext(logger, "pipeline did not start", "pipeline_start_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix the configuration and run `capturesync start`"),
				logging.String(logging.FieldImpact, "no photos are processed until started"),
			)
		}
	}

	<-signalCtx.Done()
	logger.Info("capturesync shutting down", logging.String(logging.FieldEventType, "shutdown"))
	if progress != nil {
		progress.finish()
	}
	return nil
}

func serveMetrics(cfg *config.Config, d *daemon.Daemon, logger *slog.Logger) (func(), error) {
	if cfg.Metrics.Bind == "" {
		return func() {}, nil
	}
	srv, err := metrics.Listen(d.Metrics(), cfg.Metrics.Bind, logger)
	if err != nil {
		return nil, err
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Close(shutdownCtx)
	}, nil
}

func sessionLogs(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "capturesync-*.log")
}
