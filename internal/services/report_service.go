package services

import (
	"context"

	"github.com/sjperalta/fintera-installments/internal/jobs"
	"github.com/sjperalta/fintera-installments/internal/metrics"
	"github.com/sjperalta/fintera-installments/internal/models"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/pkg/logger"
)

// ReportService produces read-only portfolio figures
type ReportService struct {
	statsRepo repository.StatsRepository
	metrics   *metrics.Metrics
	clock     Clock
}

func NewReportService(statsRepo repository.StatsRepository, m *metrics.Metrics, clock Clock) *ReportService {
	return &ReportService{
		statsRepo: statsRepo,
		metrics:   m,
		clock:     clock,
	}
}

// Portfolio summarizes plan counts and amounts owed as of a date; the zero
// date means today.
func (s *ReportService) Portfolio(ctx context.Context, asOf models.Date) (*repository.PortfolioStats, error) {
	if asOf.IsZero() {
		asOf = s.clock.Today()
	}
	return s.statsRepo.Portfolio(ctx, asOf)
}

// Ping checks the database connection
func (s *ReportService) Ping(ctx context.Context) error {
	return s.statsRepo.Ping(ctx)
}

// RefreshGauges is a scheduled job that pushes the portfolio into metrics
func (s *ReportService) RefreshGauges(ctx context.Context) error {
	stats, err := s.Portfolio(ctx, models.Date{})
	if err != nil {
		return err
	}
	s.metrics.Portfolio(stats.Active, stats.Completed, stats.Cancelled, stats.Defaulted,
		stats.OutstandingAmount, stats.OverdueAmount)
	logger.Debug("[Report] portfolio gauges refreshed", "active", stats.Active, "defaulted", stats.Defaulted)
	return nil
}

// WorkerStatus reports the background worker counters
func (s *ReportService) WorkerStatus(worker *jobs.Worker) map[string]any {
	if worker == nil {
		return map[string]any{}
	}
	stats := worker.GetStats()
	return map[string]any{
		"active_jobs":    stats.ActiveJobs,
		"finished_jobs":  stats.FinishedJobs,
		"failed_jobs":    stats.FailedJobs,
		"queue_length":   stats.QueueLength,
		"max_concurrent": stats.MaxConcurrent,
	}
}
