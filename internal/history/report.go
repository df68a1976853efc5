package history

import (
	"time"
)

// Point is the reconstructed balance of each requested product at one tick.
type Point struct {
	Instant  time.Time      `json:"instant"`
	Balances map[string]int `json:"balances"`
}

// Reconstruct answers q from the current balances and the ledger. Hourly
// ticks report the balance at the tick itself; daily and monthly ticks report
// the closing balance of their bucket. The output depends only on the
// arguments.
func Reconstruct(current map[string]int, moves []Movement, q Query, now time.Time, loc *time.Location) ([]Point, error) {
	ticks, err := Ticks(q, now, loc)
	if err != nil {
		return nil, err
	}
	tl := BuildTimeline(current, moves, now)
	points := make([]Point, 0, len(ticks))
	for _, tick := range ticks {
		points = append(points, Point{Instant: tick.Start, Balances: tl.At(tick.Lookup)})
	}
	return points, nil
}
