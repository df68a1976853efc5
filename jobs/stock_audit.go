package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/gudang/internal/history"
	jobmetrics "github.com/odyssey-erp/gudang/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Auditor reports products whose ledger cannot explain the current balance.
type Auditor interface {
	Anomalies(ctx context.Context) ([]history.Anomaly, error)
}

// StockAuditJob runs the reconciliation audit on a schedule.
type StockAuditJob struct {
	Auditor Auditor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockAuditJob initialises the stock audit handler.
func NewStockAuditJob(auditor Auditor, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockAuditJob {
	return &StockAuditJob{Auditor: auditor, Logger: logger, Metrics: metrics}
}

// Handle executes one audit run.
func (j *StockAuditJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Auditor == nil {
		return errors.New("stock audit: handler not configured")
	}
	var payload StockAuditPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskStockAudit)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.Reason != "" {
		logger = logger.With(slog.String("reason", payload.Reason))
	}
	logger.Info("starting stock audit")

	anomalies, err := j.Auditor.Anomalies(ctx)
	if err != nil {
		logger.Error("stock audit failed", slog.Any("error", err))
		return err
	}
	for _, a := range anomalies {
		logger.Warn("stock ledger does not reconcile",
			slog.String("product_code", a.ProductCode),
			slog.Int("current", a.Current),
			slog.Int("origin", a.Origin),
			slog.Int("lowest", a.Lowest),
			slog.Time("lowest_at", a.LowestAt),
		)
	}
	j.metrics().SetAnomalies(len(anomalies))

	logger.Info("completed stock audit",
		slog.Int("anomalies", len(anomalies)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *StockAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockAudit))
	}
	return slog.Default().With(slog.String("job", TaskStockAudit))
}

func (j *StockAuditJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
