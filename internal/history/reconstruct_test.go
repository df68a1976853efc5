package history

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*3600)

func scenario() (map[string]int, []Movement, time.Time, time.Time, time.Time) {
	t1 := time.Date(2024, 5, 8, 9, 0, 0, 0, wib)
	t2 := time.Date(2024, 5, 9, 15, 0, 0, 0, wib)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, wib)
	current := map[string]int{"P": 50}
	moves := []Movement{
		{ProductCode: "P", At: t1, Delta: 20, Seq: 0},
		{ProductCode: "P", At: t2, Delta: -10, Seq: 1},
	}
	return current, moves, t1, t2, now
}

func TestBuildTimelineScenario(t *testing.T) {
	current, moves, t1, t2, now := scenario()
	tl := BuildTimeline(current, moves, now)

	cases := []struct {
		at   time.Time
		want int
	}{
		{time.Time{}, 40},
		{t1.Add(-time.Nanosecond), 40},
		{t1, 60},
		{t1.Add(time.Hour), 60},
		{t2.Add(-time.Nanosecond), 60},
		{t2, 50},
		{now, 50},
		{now.AddDate(1, 0, 0), 50},
	}
	for _, tc := range cases {
		got, ok := tl.BalanceAt("P", tc.at)
		require.True(t, ok)
		require.Equal(t, tc.want, got, "at %s", tc.at)
	}

	points := tl.Checkpoints("P")
	require.Len(t, points, 4)
	require.True(t, points[0].At.IsZero())
	require.Equal(t, 40, points[0].Balance)
	for i := 1; i < len(points); i++ {
		require.False(t, points[i].At.Before(points[i-1].At), "checkpoints ascend")
	}
}

func TestBuildTimelineRoundTripAtNow(t *testing.T) {
	current := map[string]int{"A": 7, "B": 0, "C": 120}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(42))
	var moves []Movement
	for i := 0; i < 200; i++ {
		code := []string{"A", "B", "C"}[rng.Intn(3)]
		delta := rng.Intn(20) + 1
		if rng.Intn(2) == 0 {
			delta = -delta
		}
		moves = append(moves, Movement{ProductCode: code, At: base.Add(time.Duration(rng.Intn(5000)) * time.Minute), Delta: delta, Seq: i})
	}
	now := base.AddDate(0, 1, 0)
	tl := BuildTimeline(current, moves, now)
	require.Equal(t, current, tl.At(now))
}

func TestBuildTimelineZeroTransactions(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	tl := BuildTimeline(map[string]int{"P": 13}, nil, now)
	for _, at := range []time.Time{{}, now.AddDate(-5, 0, 0), now, now.AddDate(0, 0, 3)} {
		got, ok := tl.BalanceAt("P", at)
		require.True(t, ok)
		require.Equal(t, 13, got)
	}
	_, ok := tl.BalanceAt("missing", now)
	require.False(t, ok)
}

func TestSameTimestampUsesLedgerOrder(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := at.Add(time.Hour)
	moves := []Movement{
		{ProductCode: "P", At: at, Delta: -3, Seq: 1},
		{ProductCode: "P", At: at, Delta: 5, Seq: 0},
	}
	tl := BuildTimeline(map[string]int{"P": 10}, moves, now)

	points := tl.Checkpoints("P")
	require.Equal(t, []int{8, 13, 10, 10}, []int{points[0].Balance, points[1].Balance, points[2].Balance, points[3].Balance})

	got, _ := tl.BalanceAt("P", at)
	require.Equal(t, 10, got, "an instant sees every movement stamped with it")
	got, _ = tl.BalanceAt("P", at.Add(-time.Nanosecond))
	require.Equal(t, 8, got)
}

func TestBuildTimelineIgnoresUnrequestedProductsAndKeepsInput(t *testing.T) {
	current, moves, _, _, now := scenario()
	moves = append(moves, Movement{ProductCode: "OTHER", At: now.Add(-time.Hour), Delta: 99, Seq: 2})
	snapshot := append([]Movement(nil), moves...)
	// reversed input order must not matter
	reversed := []Movement{moves[2], moves[1], moves[0]}

	tl := BuildTimeline(current, reversed, now)
	require.Equal(t, []string{"P"}, tl.Codes())
	got, _ := tl.BalanceAt("P", time.Time{})
	require.Equal(t, 40, got)
	require.Equal(t, snapshot, moves)
}

func TestFindAnomalies(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := at.Add(48 * time.Hour)
	current := map[string]int{"OK": 5, "BAD": 2, "DIP": 10}
	moves := []Movement{
		{ProductCode: "OK", At: at, Delta: 5, Seq: 0},
		// stock says 2 but the ledger took in 10: origin is -8
		{ProductCode: "BAD", At: at, Delta: 10, Seq: 1},
		// origin fine but an opname correction hides an intermediate dip
		{ProductCode: "DIP", At: at, Delta: -6, Seq: 2},
		{ProductCode: "DIP", At: at.Add(time.Hour), Delta: 12, Seq: 3},
	}
	got := FindAnomalies(current, moves, now)
	require.Len(t, got, 2)
	require.Equal(t, "BAD", got[0].ProductCode)
	require.Equal(t, -8, got[0].Origin)
	require.Equal(t, -8, got[0].Lowest)
	require.Equal(t, "DIP", got[1].ProductCode)
	require.Equal(t, 4, got[1].Origin)
	require.Equal(t, -2, got[1].Lowest)
	require.Equal(t, at, got[1].LowestAt)
}
