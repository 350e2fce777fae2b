package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/captrail/captrail/pkg/captrail/capture"
	"github.com/captrail/captrail/pkg/captrail/config"
	"github.com/captrail/captrail/pkg/captrail/history"
	"github.com/captrail/captrail/pkg/captrail/observability"
	"github.com/captrail/captrail/pkg/captrail/source"
)

var (
	runEnableMetrics bool
	runEnableTracing bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start capturing until interrupted",
	Long: `Run installs the platform input hooks and records events into the
configured log file. Capture continues until SIGINT or SIGTERM, then
the pipeline drains, flushes and records the session's final stats.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runCapture(cfg)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runEnableMetrics, "metrics", false, "record OpenTelemetry metrics")
	runCmd.Flags().BoolVar(&runEnableTracing, "tracing", false, "record OpenTelemetry spans")
	rootCmd.AddCommand(runCmd)
}

func runCapture(cfg config.Config) error {
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	opts := []capture.Option{capture.WithLogger(logger)}
	if runEnableMetrics {
		opts = append(opts, capture.WithMetrics(observability.NewMetricsRecorder()))
	}
	if runEnableTracing {
		opts = append(opts, capture.WithSpans(observability.NewSpanManager()))
	}

	if cfg.HistoryPath != "" {
		store, err := history.NewSQLiteStore(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		opts = append(opts, capture.WithHistory(store))
	}

	// Platform hooks deliver through the installing thread's message
	// queue, so the dispatcher must stay on one OS thread.
	runtime.LockOSThread()

	src, err := source.NewHook()
	switch {
	case err == nil:
		opts = append(opts, capture.WithSource(src))
	case errors.Is(err, source.ErrUnsupported):
		logger.Warn("platform input hooks unavailable, capturing window activity only")
	default:
		return fmt.Errorf("install input hooks: %w", err)
	}

	sys, err := capture.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sys.Start(ctx); err != nil {
		return err
	}

	var maintenance *cron.Cron
	if cfg.MaintenanceSchedule != "" {
		maintenance = cron.New()
		_, err := maintenance.AddFunc(cfg.MaintenanceSchedule, func() {
			if err := sys.Flush(); err != nil {
				logger.Warn("scheduled flush failed", slog.String("error", err.Error()))
			}
			if cfg.RotateLogs {
				if err := sys.Rotate(); err != nil {
					logger.Warn("scheduled rotation failed", slog.String("error", err.Error()))
				}
			}
		})
		if err != nil {
			return fmt.Errorf("invalid maintenance schedule: %w", err)
		}
		maintenance.Start()
		defer maintenance.Stop()
	}

	<-ctx.Done()

	if err := sys.Stop(); err != nil {
		return err
	}

	snap := sys.Stats()
	logger.Info("session summary",
		slog.String("session_id", sys.SessionID()),
		slog.Uint64("total_events", snap.TotalEvents),
		slog.Uint64("dropped_events", snap.DroppedEvents),
		slog.Uint64("window_changes", snap.WindowChanges),
		slog.Uint64("total_writes", snap.TotalWrites),
		slog.Uint64("bytes_written", snap.BytesWritten),
		slog.Uint64("files_rotated", snap.FilesRotated),
	)
	return nil
}

// buildLogger creates the operational logger. Stealth mode raises the
// level to error so routine activity leaves no trace of its own.
func buildLogger(cfg config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if cfg.Mode == config.ModeStealth {
		level = "error"
	} else if cfg.Mode == config.ModeDebug {
		level = "debug"
	}
	return observability.NewLogger(observability.LoggerOptions{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
}
