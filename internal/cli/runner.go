// Package cli runs one post-processing utility: argument checks, logging,
// metrics, exit-code mapping and the optional run archive.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"river-postproc/internal/config"
	"river-postproc/internal/models"
	"river-postproc/internal/repository"
	"river-postproc/internal/services"
	"river-postproc/pkg/database"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

// Version is reported in every log entry
const Version = "1.0.0"

// Unbounded marks a tool without an upper argument count
const Unbounded = -1

// Env carries what a tool needs while it runs
type Env struct {
	Logger  *logging.StructuredLogger
	Metrics *metrics.Collector
	Stdout  io.Writer
}

// Tool describes one utility binary
type Tool struct {
	Name    string
	Usage   string
	MinArgs int
	MaxArgs int
	Run     func(ctx context.Context, env *Env, args []string) (models.RunSummary, error)
}

// Main executes the tool with the process arguments and exits with its code
func Main(tool Tool) {
	os.Exit(Execute(tool, os.Args[1:], os.Stdout))
}

// Execute runs the tool and returns the process exit code
func Execute(tool Tool, args []string, stdout io.Writer) int {
	cfg, err := config.LoadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stdout, "ERROR - invalid configuration: %v\n", err)
		return models.ExitInvalid
	}

	if len(args) < tool.MinArgs || (tool.MaxArgs != Unbounded && len(args) > tool.MaxArgs) {
		fmt.Fprintf(stdout, "ERROR - %s\n", models.NewUsageError(len(args), tool.Usage).Error())
		return models.ExitInvalid
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger(tool.Name, Version, level)
	if cfg.Logging.Output == "stdout" {
		logger.SetOutput(stdout)
	} else {
		logger.SetOutput(os.Stderr)
	}
	collector := metrics.NewCollector(cfg.Metrics.Namespace)

	runID := uuid.NewString()
	ctx := logging.WithTool(logging.WithRunID(context.Background(), runID), tool.Name)

	logger.Info(ctx, "[TOOL_START] Starting utility", logging.Fields{
		"arguments": args,
	})

	startedAt := time.Now().UTC()
	timer := collector.NewTimer(collector.ToolDuration.WithLabelValues(tool.Name))
	summary, runErr := tool.Run(ctx, &Env{Logger: logger, Metrics: collector, Stdout: stdout}, args)
	duration := timer.ObserveDuration()

	code := models.ExitCode(runErr)
	status := models.RunStatusSuccess
	message := summary.Message
	if runErr != nil {
		status = models.RunStatusFailure
		message = runErr.Error()
		fmt.Fprintf(stdout, "ERROR - %s\n", message)
		logger.Error(ctx, "[TOOL_FAILED] Utility failed", logging.Fields{
			"exit_code": code,
			"kind":      string(models.ErrorKindOf(runErr)),
		}, runErr)
	} else {
		logger.Info(ctx, "[TOOL_COMPLETE] Utility completed", logging.Fields{
			"rows_in":     summary.RowsIn,
			"rows_out":    summary.RowsOut,
			"duration_ms": duration.Milliseconds(),
		})
	}
	collector.RecordRun(tool.Name, status)

	if cfg.Archive.Enabled {
		run := &models.RunRecord{
			ID:         runID,
			Tool:       tool.Name,
			Arguments:  strings.Join(args, " "),
			Status:     status,
			ExitCode:   code,
			RowsIn:     summary.RowsIn,
			RowsOut:    summary.RowsOut,
			Message:    message,
			StartedAt:  startedAt,
			DurationMS: duration.Milliseconds(),
		}
		if err := archiveRun(ctx, cfg, logger, collector, run, summary.Digest); err != nil {
			logger.Warn(ctx, "[ARCHIVE_WARNING] Run not archived", logging.Fields{
				"error": err.Error(),
			})
		}
	}

	if cfg.Metrics.PushgatewayURL != "" {
		if err := collector.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Namespace, tool.Name); err != nil {
			logger.Warn(ctx, "[METRICS_PUSH_WARNING] Failed to push metrics", logging.Fields{
				"url":   cfg.Metrics.PushgatewayURL,
				"error": err.Error(),
			})
		}
	}

	return code
}

// archiveRun opens the archive for the duration of one insert
func archiveRun(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, collector *metrics.Collector, run *models.RunRecord, digest []models.DigestRow) error {
	db, err := database.NewArchiveDB(cfg.Database.ToDatabaseConfig(), logger, collector)
	if err != nil {
		collector.ArchiveWriteFailures.Inc()
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer db.Close()

	svc := services.NewArchiveService(repository.NewArchiveRepository(db, logger, collector), logger, collector)
	return svc.Record(ctx, run, digest)
}
