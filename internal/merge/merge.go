// Package merge concatenates the normalized rows of every release into the
// final table.
package merge

import "github.com/ginjaninja78/mineral-stats-etl/internal/model"

// Merge concatenates results in the order given and drops the unit column,
// which is redundant once every value is in metric tons.
//
// Rows are neither deduplicated nor aggregated: an observation present in
// two releases appears twice. Merging the same input twice therefore doubles
// the table.
func Merge(results ...[]model.Row) []model.Observation {
	n := 0
	for _, rows := range results {
		n += len(rows)
	}

	out := make([]model.Observation, 0, n)
	for _, rows := range results {
		for _, r := range rows {
			out = append(out, model.Observation{
				Country:   r.Country,
				Commodity: r.Commodity,
				Year:      r.Year,
				Value:     r.Value,
			})
		}
	}
	return out
}
