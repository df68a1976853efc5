package history

import "time"

// Anomaly flags a product whose ledger replay dips below zero. A negative
// replayed balance means the authoritative stock diverged from the ledger,
// e.g. through an approved opname correction or a lost update.
type Anomaly struct {
	ProductCode string    `json:"productCode"`
	Current     int       `json:"current"`
	Origin      int       `json:"origin"`
	Lowest      int       `json:"lowest"`
	LowestAt    time.Time `json:"lowestAt"`
}

// FindAnomalies replays the ledger backward for every product and reports
// those whose origin or any intermediate balance is negative, sorted by code.
func FindAnomalies(current map[string]int, moves []Movement, now time.Time) []Anomaly {
	tl := BuildTimeline(current, moves, now)
	var out []Anomaly
	for _, code := range tl.Codes() {
		points := tl.series[code]
		lowest := points[0]
		for _, p := range points[1:] {
			if p.Balance < lowest.Balance {
				lowest = p
			}
		}
		if lowest.Balance >= 0 {
			continue
		}
		out = append(out, Anomaly{
			ProductCode: code,
			Current:     current[code],
			Origin:      points[0].Balance,
			Lowest:      lowest.Balance,
			LowestAt:    lowest.At,
		})
	}
	return out
}
