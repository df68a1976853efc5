// Package history derives past stock balances from the append-only ledger and
// the current authoritative balance, without any snapshot table.
package history

import (
	"sort"
	"time"
)

// Movement is a ledger entry reduced to its effect on one product. Delta is
// positive for IN and negative for OUT.
type Movement struct {
	ProductCode string
	At          time.Time
	Delta       int
	// Seq is the ledger append position; it orders movements sharing At.
	Seq int
}

// Checkpoint is the balance in effect from At until the next checkpoint.
type Checkpoint struct {
	At      time.Time `json:"at"`
	Balance int       `json:"balance"`
}

// Timeline holds ascending checkpoints per product.
type Timeline struct {
	series map[string][]Checkpoint
}

// SortMovements orders movements by timestamp, breaking ties by ledger append
// position.
func SortMovements(moves []Movement) {
	sort.SliceStable(moves, func(i, j int) bool {
		if !moves[i].At.Equal(moves[j].At) {
			return moves[i].At.Before(moves[j].At)
		}
		return moves[i].Seq < moves[j].Seq
	})
}

// BuildTimeline walks backward from now. The accumulator starts at the
// current balance; each movement, newest first, first records the balance
// right after it and is then undone. What remains after undoing everything
// becomes the origin checkpoint at the zero instant. A final checkpoint at
// max(now, newest movement) carries the current balance.
//
// Movements for codes missing from current are ignored. moves is not
// modified.
func BuildTimeline(current map[string]int, moves []Movement, now time.Time) Timeline {
	byCode := make(map[string][]Movement, len(current))
	for _, m := range moves {
		if _, ok := current[m.ProductCode]; !ok {
			continue
		}
		byCode[m.ProductCode] = append(byCode[m.ProductCode], m)
	}

	series := make(map[string][]Checkpoint, len(current))
	for code, balance := range current {
		list := byCode[code]
		SortMovements(list)

		points := make([]Checkpoint, len(list)+2)
		acc := balance
		for i := len(list) - 1; i >= 0; i-- {
			points[i+1] = Checkpoint{At: list[i].At, Balance: acc}
			acc -= list[i].Delta
		}
		points[0] = Checkpoint{At: time.Time{}, Balance: acc}

		last := now
		if n := len(list); n > 0 && list[n-1].At.After(last) {
			last = list[n-1].At
		}
		points[len(points)-1] = Checkpoint{At: last, Balance: balance}
		series[code] = points
	}
	return Timeline{series: series}
}

// BalanceAt returns the balance of code at t using the latest checkpoint at or
// before t.
func (tl Timeline) BalanceAt(code string, t time.Time) (int, bool) {
	points, ok := tl.series[code]
	if !ok || len(points) == 0 {
		return 0, false
	}
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].At.After(t)
	})
	if idx == 0 {
		return points[0].Balance, true
	}
	return points[idx-1].Balance, true
}

// At returns every product's balance at t.
func (tl Timeline) At(t time.Time) map[string]int {
	out := make(map[string]int, len(tl.series))
	for code := range tl.series {
		out[code], _ = tl.BalanceAt(code, t)
	}
	return out
}

// Checkpoints returns the ascending checkpoints of code.
func (tl Timeline) Checkpoints(code string) []Checkpoint {
	points := tl.series[code]
	out := make([]Checkpoint, len(points))
	copy(out, points)
	return out
}

// Codes lists the products covered by the timeline in sorted order.
func (tl Timeline) Codes() []string {
	codes := make([]string, 0, len(tl.series))
	for code := range tl.series {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
