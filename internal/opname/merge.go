package opname

import (
	"slices"
	"sort"
)

// Merge folds lines sharing (date, productCode) into one row with summed
// stocks and a label recomputed from the summed variance. The result is
// sorted by date descending, then product code. Inputs are not modified.
func Merge(records []Record) []MergedRow {
	type key struct{ date, code string }
	index := make(map[key]int)
	var out []MergedRow
	for _, rec := range records {
		k := key{rec.Date, rec.ProductCode}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, MergedRow{
				Date:        rec.Date,
				ProductCode: rec.ProductCode,
				ProductName: rec.ProductName,
				Status:      StatusApproved,
			})
			i = len(out) - 1
		}
		row := &out[i]
		row.SystemStock += rec.SystemStock
		row.PhysicalStock += rec.PhysicalStock
		row.Variance += rec.Variance
		row.Lines++
		if rec.Status != StatusApproved {
			row.Status = StatusPending
		}
		if row.ProductName == "" {
			row.ProductName = rec.ProductName
		}
		if !slices.Contains(row.OpnameIDs, rec.OpnameID) {
			row.OpnameIDs = append(row.OpnameIDs, rec.OpnameID)
		}
	}
	for i := range out {
		out[i].Label = LabelFor(out[i].Variance)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ProductCode < out[j].ProductCode
	})
	return out
}
