package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the only queue the worker consumes.
	QueueDefault = "default"
	// TaskStockAudit replays the ledger and flags products that do not reconcile.
	TaskStockAudit = "stock:audit"
)

const stockAuditMaxRetry = 3

// StockAuditPayload records why an audit ran. Every audit covers all products.
type StockAuditPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewStockAuditTask constructs an Asynq task.
func NewStockAuditTask(payload StockAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockAudit, data, asynq.MaxRetry(stockAuditMaxRetry), asynq.Queue(QueueDefault)), nil
}

// Client submits tasks to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueStockAudit enqueues an on-demand stock audit.
func (c *Client) EnqueueStockAudit(ctx context.Context, payload StockAuditPayload) (*asynq.TaskInfo, error) {
	task, err := NewStockAuditTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
