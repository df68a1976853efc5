package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerRejectsInvalidCron(t *testing.T) {
	mr := miniredis.RunT(t)
	task, err := NewStockAuditTask(StockAuditPayload{Reason: "cron"})
	require.NoError(t, err)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Logger:    quietLogger(),
		Cron:      []CronRegistration{{Spec: "every tuesday", Task: task}},
	})
	require.ErrorContains(t, err, "stock:audit")

	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Logger:    quietLogger(),
		Handlers:  []TaskHandler{{Type: TaskStockAudit, Handler: func(context.Context, *asynq.Task) error { return nil }}, {}},
		Cron:      []CronRegistration{{Spec: "0 2 * * *", Task: task}, {Spec: "", Task: task}},
	})
	require.NoError(t, err)
	require.NotNil(t, w.scheduler)
}

func TestRunWithoutWorkerFails(t *testing.T) {
	var w *Worker
	require.Error(t, w.Run(context.Background()))
}

func TestStockAuditTaskTargetsDefaultQueue(t *testing.T) {
	task, err := NewStockAuditTask(StockAuditPayload{Reason: "manual:sari"})
	require.NoError(t, err)
	require.Equal(t, TaskStockAudit, task.Type())
	require.JSONEq(t, `{"reason":"manual:sari"}`, string(task.Payload()))
}
