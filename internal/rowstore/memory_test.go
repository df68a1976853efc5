package rowstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPreservesAppendOrder(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "t", []Row{{"id": "1"}, {"id": "2"}}))
	require.NoError(t, store.Append(ctx, "t", []Row{{"id": "3"}}))

	rows, err := store.List(ctx, "t")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "1", rows[0]["id"])
	require.Equal(t, "3", rows[2]["id"])
}

func TestMemoryUpdateAndDeleteByMatch(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "t", []Row{
		{"batch": "A", "code": "X", "status": "PENDING"},
		{"batch": "A", "code": "Y", "status": "PENDING"},
		{"batch": "B", "code": "X", "status": "PENDING"},
	}))

	n, err := store.Update(ctx, "t", Match{"batch": "A", "code": "X"}, Row{"status": "APPROVED"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, _ := store.List(ctx, "t")
	require.Equal(t, "APPROVED", rows[0]["status"])
	require.Equal(t, "PENDING", rows[1]["status"])

	n, err = store.Delete(ctx, "t", Match{"batch": "A"})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rows, _ = store.List(ctx, "t")
	require.Len(t, rows, 1)
	require.Equal(t, "B", rows[0]["batch"])
}

func TestMemoryRejectsEmptyMatch(t *testing.T) {
	store := NewMemory()
	_, err := store.Delete(context.Background(), "t", Match{})
	require.ErrorIs(t, err, ErrEmptyMatch)
}

func TestMemoryListReturnsCopies(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "t", []Row{{"stock": "5"}}))

	rows, _ := store.List(ctx, "t")
	rows[0]["stock"] = "999"

	again, _ := store.List(ctx, "t")
	require.Equal(t, 5, again[0].Int("stock"))
}

func TestRowParsingIsLenient(t *testing.T) {
	row := Row{"qty": " 12 ", "bad": "abc", "ts": "nope"}
	require.Equal(t, 12, row.Int("qty"))
	require.Equal(t, 0, row.Int("bad"))
	require.True(t, row.Time("ts").IsZero())
	_, err := row.StrictInt("bad")
	require.Error(t, err)
}
