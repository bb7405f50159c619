package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"river-postproc/internal/models"
	"river-postproc/pkg/database"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

// ArchiveRepository provides data access for archived utility runs
type ArchiveRepository interface {
	// Run operations
	CreateRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.RunRecord, int, error)

	// Digest operations
	SaveDigest(ctx context.Context, runID string, rows []models.DigestRow) error
	ListDigest(ctx context.Context, runID string) ([]*models.DigestSummary, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// RunFilter defines filters for querying runs
type RunFilter struct {
	Tool   *string
	Status *string
	Limit  int
	Offset int
}

// archiveRepository implements ArchiveRepository
type archiveRepository struct {
	db      *database.ArchiveDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(db *database.ArchiveDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ArchiveRepository {
	return &archiveRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const runColumns = `id, tool, arguments, status, exit_code, rows_in, rows_out, message, started_at, duration_ms`

// CreateRun stores a finished run
func (r *archiveRepository) CreateRun(ctx context.Context, run *models.RunRecord) error {
	query := `
		INSERT INTO tool_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, "insert_run", query,
		run.ID,
		run.Tool,
		run.Arguments,
		run.Status,
		run.ExitCode,
		run.RowsIn,
		run.RowsOut,
		run.Message,
		run.StartedAt.UTC(),
		run.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_RUN] Run archived", logging.Fields{
		"run_id": run.ID,
		"tool":   run.Tool,
		"status": run.Status,
	})

	return nil
}

// GetRun retrieves a run by ID
func (r *archiveRepository) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM tool_runs
		WHERE id = ?
	`

	var run models.RunRecord
	err := r.db.GetContext(ctx, "get_run", &run, query, id)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "tool_run",
			ID:       id,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// ListRuns retrieves runs with filtering and pagination, newest first
func (r *archiveRepository) ListRuns(ctx context.Context, filter RunFilter) ([]*models.RunRecord, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}

	if filter.Tool != nil {
		where += " AND tool = ?"
		args = append(args, *filter.Tool)
	}

	if filter.Status != nil {
		where += " AND status = ?"
		args = append(args, *filter.Status)
	}

	// Get total count
	var totalCount int
	err := r.db.GetContext(ctx, "count_runs", &totalCount, "SELECT COUNT(*) FROM tool_runs"+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query := "SELECT " + runColumns + " FROM tool_runs" + where +
		" ORDER BY started_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	var runs []*models.RunRecord
	err = r.db.SelectContext(ctx, "list_runs", &runs, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, totalCount, nil
}

// SaveDigest stores the summary rows of a digest run in one transaction
func (r *archiveRepository) SaveDigest(ctx context.Context, runID string, rows []models.DigestRow) error {
	if len(rows) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_SAVE_DIGEST] Digest rows stored", logging.Fields{
			"run_id":      runID,
			"count":       len(rows),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO digest_summaries (run_id, label, nrmse, nbias, nstde, nash)
		VALUES (?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, runID, row.Label, row.NRMSE, row.NBias, row.NSTDE, row.Nash); err != nil {
			r.metrics.RecordDBError("insert_digest_error")
			return fmt.Errorf("failed to insert digest row %s: %w", row.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListDigest retrieves the summary rows of a run in mean, median, 68% order
func (r *archiveRepository) ListDigest(ctx context.Context, runID string) ([]*models.DigestSummary, error) {
	query := `
		SELECT run_id, label, nrmse, nbias, nstde, nash
		FROM digest_summaries
		WHERE run_id = ?
		ORDER BY CASE label WHEN 'mean' THEN 0 WHEN 'median' THEN 1 ELSE 2 END
	`

	var rows []*models.DigestSummary
	if err := r.db.SelectContext(ctx, "list_digest", &rows, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list digest: %w", err)
	}
	return rows, nil
}

// HealthCheck performs a repository health check
func (r *archiveRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
