package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/kasirpos/kasirpos/internal/jobs"
)

// LowStockScanJob walks the catalog and raises an alert for every
// product under the restock threshold.
type LowStockScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Threshold <= 0 {
		payload.Threshold = 5
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger().With(slog.Int("threshold", payload.Threshold))
	logger.Info("starting low stock scan")

	if j.Pool == nil {
		resultErr = errors.New("low stock scan: pool not configured")
		return resultErr
	}
	rows, err := j.Pool.Query(ctx, `SELECT id, name, stock_quantity FROM products WHERE stock_quantity < $1 ORDER BY stock_quantity ASC`, payload.Threshold)
	if err != nil {
		resultErr = err
		return resultErr
	}
	defer rows.Close()

	flagged := 0
	for rows.Next() {
		var id int64
		var name string
		var stock int
		if err := rows.Scan(&id, &name, &stock); err != nil {
			resultErr = err
			return resultErr
		}
		logger.Warn("low stock",
			slog.Int64("product_id", id),
			slog.String("product_name", name),
			slog.Int("stock_quantity", stock),
		)
		j.metrics().AddLowStock(id, 1)
		flagged++
	}
	if err := rows.Err(); err != nil {
		resultErr = err
		return resultErr
	}

	logger.Info("completed low stock scan",
		slog.Int("flagged", flagged),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
