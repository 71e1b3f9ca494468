package allocation

import (
	"fmt"
	"math"

	"github.com/sells-group/dealdock/internal/model"
)

const totalTolerance = 1e-6

// Violation is a weighted category whose points do not add up.
type Violation struct {
	Category model.Category `json:"category"`
	Total    float64        `json:"total"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: points total %.2f, want 0 or 100", v.Category, v.Total)
}

// Validate checks that every category with a nonzero weight has its points
// summing to either 0 or exactly 100 across all rows. Compute tolerates
// anything; this check gates finalization.
func Validate(rows []model.Row, weights []model.Weight) []Violation {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	input := weightMap(weights)

	totals := make(map[model.Category]float64, len(model.Categories))
	for _, r := range rows {
		for _, c := range model.Categories {
			totals[c] += coercePoints(r.Points(c))
		}
	}

	var out []Violation
	for _, c := range model.Categories {
		if input[c] == 0 {
			continue
		}
		t := totals[c]
		if math.Abs(t) < totalTolerance || math.Abs(t-100) < totalTolerance {
			continue
		}
		out = append(out, Violation{Category: c, Total: t})
	}
	return out
}
