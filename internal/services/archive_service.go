package services

import (
	"context"
	"fmt"

	"river-postproc/internal/models"
	"river-postproc/internal/repository"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

// ArchiveService records utility runs and serves them back
type ArchiveService struct {
	repo    repository.ArchiveRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewArchiveService creates a new archive service
func NewArchiveService(repo repository.ArchiveRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ArchiveService {
	return &ArchiveService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Record stores a finished run and, for digests, its summary rows
func (s *ArchiveService) Record(ctx context.Context, run *models.RunRecord, digest []models.DigestRow) error {
	if err := s.repo.CreateRun(ctx, run); err != nil {
		s.metrics.ArchiveWriteFailures.Inc()
		return err
	}
	if err := s.repo.SaveDigest(ctx, run.ID, digest); err != nil {
		s.metrics.ArchiveWriteFailures.Inc()
		return err
	}

	s.logger.Debug(ctx, "[ARCHIVE_RECORD] Run recorded", logging.Fields{
		"tool":        run.Tool,
		"status":      run.Status,
		"exit_code":   run.ExitCode,
		"digest_rows": len(digest),
	})
	return nil
}

// ListRuns retrieves archived runs with filtering
func (s *ArchiveService) ListRuns(ctx context.Context, filter repository.RunFilter) ([]*models.RunRecord, int, error) {
	return s.repo.ListRuns(ctx, filter)
}

// GetRun retrieves one archived run
func (s *ArchiveService) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	return s.repo.GetRun(ctx, id)
}

// GetDigest retrieves the summary rows of a run; the run must exist
func (s *ArchiveService) GetDigest(ctx context.Context, id string) ([]*models.DigestSummary, error) {
	if _, err := s.repo.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListDigest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get digest of run %s: %w", id, err)
	}
	return rows, nil
}

// HealthCheck checks the archive database
func (s *ArchiveService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
