package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gudang/internal/rowstore"
	"github.com/odyssey-erp/gudang/internal/shared"
)

func seedLogger(t *testing.T) *Logger {
	t.Helper()
	logger := NewLogger(rowstore.NewMemory())
	base := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	entries := []shared.AuditLog{
		{Actor: "budi", Action: "ledger:IN", Entity: "transactions", EntityID: "t1", At: base},
		{Actor: "sari", Action: "opname:approve", Entity: "opname", EntityID: "OPN-1", Meta: map[string]any{"after": 45}, At: base.Add(time.Hour)},
		{Actor: "sari", Action: "opname:reject", Entity: "opname", EntityID: "OPN-2", At: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, logger.Record(context.Background(), e))
	}
	return logger
}

func TestLoggerRejectsIncompleteEntries(t *testing.T) {
	logger := NewLogger(rowstore.NewMemory())
	err := logger.Record(context.Background(), shared.AuditLog{Actor: "budi", Action: "x"})
	require.Error(t, err)
}

func TestServiceTimelinePaging(t *testing.T) {
	svc := NewService(seedLogger(t))
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, "opname:reject", result.Rows[0].Action)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestServiceExportFilters(t *testing.T) {
	svc := NewService(seedLogger(t))
	rows, err := svc.Export(context.Background(), TimelineFilters{Actor: "SARI"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.EqualValues(t, 45, rows[1].Meta["after"])

	rows, err = svc.Export(context.Background(), TimelineFilters{
		From: time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "OPN-1", rows[0].EntityID)
}

func TestExporterWritesHeaderAndRows(t *testing.T) {
	rows, err := NewService(seedLogger(t)).Export(context.Background(), TimelineFilters{Action: "opname:approve"})
	require.NoError(t, err)
	out, err := NewExporter().WriteCSV(rows)
	require.NoError(t, err)
	require.Equal(t, "at,actor,action,entity,entity_id,meta\n2024-03-10T09:00:00Z,sari,opname:approve,opname,OPN-1,\"{\"\"after\"\":45}\"\n", string(out))
}
