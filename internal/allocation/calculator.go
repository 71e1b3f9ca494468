// Package allocation splits a deal's value among contributors from their
// per-category points and the category weights.
package allocation

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/dealdock/internal/model"
)

// Result is the output of a single Compute call. It is what gets persisted
// onto a deal.
type Result struct {
	Totals           map[model.Category]float64 `json:"totals"`
	UsedCategories   []model.Category           `json:"usedCategories"`
	EffectiveWeights map[model.Category]float64 `json:"effectiveWeights"`
	List             []model.Share              `json:"list"`
}

// Patch returns the deal update that stores r.
func (r Result) Patch() model.DealPatch {
	return model.DealPatch{
		Totals:           r.Totals,
		EffectiveWeights: r.EffectiveWeights,
		List:             r.List,
	}
}

// DefaultWeights is substituted when a deal carries no weights.
func DefaultWeights() []model.Weight {
	return []model.Weight{
		{Category: model.CategoryCS, Weight: 50},
		{Category: model.CategoryKonzept, Weight: 30},
		{Category: model.CategoryPitch, Weight: 20},
	}
}

type contributor struct {
	name   string
	points map[model.Category]float64
}

// Compute turns raw points into a percentage and money split.
//
// In preview mode weights are used as given and each point counts as a
// percent of its category, which is what a half-filled form needs. In final
// mode weights are renormalized over the categories that actually received
// points, each person gets their share of the category's awarded points, and
// the rounding residual goes to the top-ranked person so the list sums to
// exactly 100.
//
// Compute never fails: malformed numbers are coerced to zero.
func Compute(rows []model.Row, weights []model.Weight, amount float64, preview bool) Result {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	input := weightMap(weights)
	people := merge(rows)

	totals := make(map[model.Category]float64, len(model.Categories))
	for _, c := range model.Categories {
		totals[c] = 0
	}
	for _, p := range people {
		for _, c := range model.Categories {
			totals[c] += p.points[c]
		}
	}

	used := make([]model.Category, 0, len(model.Categories))
	for _, c := range model.Categories {
		if totals[c] > 0 {
			used = append(used, c)
		}
	}

	res := Result{
		Totals:         totals,
		UsedCategories: used,
		List:           make([]model.Share, 0, len(people)),
	}

	if preview {
		res.EffectiveWeights = input
		for _, p := range people {
			var pct float64
			for _, c := range model.Categories {
				pct += p.points[c] / 100 * input[c]
			}
			res.List = append(res.List, model.Share{Name: p.name, Pct: pct, Money: money(amount, pct)})
		}
		return res
	}

	res.EffectiveWeights = renormalize(input, used)
	if len(used) == 0 {
		return res
	}

	for _, p := range people {
		var pct float64
		for _, c := range used {
			pct += p.points[c] / safeDivisor(totals[c]) * res.EffectiveWeights[c]
		}
		pct = round2(pct)
		if pct < 0 {
			pct = 0
		}
		res.List = append(res.List, model.Share{Name: p.name, Pct: pct})
	}

	sort.SliceStable(res.List, func(i, j int) bool {
		return res.List[i].Pct > res.List[j].Pct
	})

	var sum float64
	for _, s := range res.List {
		sum += s.Pct
	}
	if residual := 100 - sum; residual != 0 {
		res.List[0].Pct = round2(res.List[0].Pct + residual)
	}

	for i := range res.List {
		res.List[i].Money = money(amount, res.List[i].Pct)
	}
	return res
}

// merge folds rows into one contributor per name. Names match exactly after
// trimming; blank names are never merged and are dropped when they carry no
// points.
func merge(rows []model.Row) []contributor {
	var out []contributor
	index := make(map[string]int, len(rows))

	for _, r := range rows {
		name := strings.TrimSpace(r.Name)
		pts := map[model.Category]float64{
			model.CategoryCS:      coercePoints(r.CS),
			model.CategoryKonzept: coercePoints(r.Konzept),
			model.CategoryPitch:   coercePoints(r.Pitch),
		}

		if name == "" {
			if pts[model.CategoryCS]+pts[model.CategoryKonzept]+pts[model.CategoryPitch] == 0 {
				continue
			}
			out = append(out, contributor{points: pts})
			continue
		}

		if at, ok := index[name]; ok {
			for c, v := range pts {
				out[at].points[c] += v
			}
			continue
		}
		index[name] = len(out)
		out = append(out, contributor{name: name, points: pts})
	}
	return out
}

// renormalize spreads the input weight over the used categories so they sum
// to 100 in whole percents. The rounding residual lands on the first used
// category. Unused categories get 0.
func renormalize(input map[model.Category]float64, used []model.Category) map[model.Category]float64 {
	eff := make(map[model.Category]float64, len(model.Categories))
	for _, c := range model.Categories {
		eff[c] = 0
	}
	if len(used) == 0 {
		return eff
	}

	var usedSum float64
	for _, c := range used {
		usedSum += input[c]
	}

	var assigned float64
	for _, c := range used {
		if usedSum > 0 {
			eff[c] = math.Round(input[c] / usedSum * 100)
		} else {
			eff[c] = math.Round(100 / float64(len(used)))
		}
		assigned += eff[c]
	}
	eff[used[0]] += 100 - assigned
	return eff
}

func weightMap(weights []model.Weight) map[model.Category]float64 {
	m := make(map[model.Category]float64, len(model.Categories))
	for _, c := range model.Categories {
		m[c] = 0
	}
	for _, w := range weights {
		if _, known := m[w.Category]; !known {
			continue
		}
		m[w.Category] += coerceWeight(w.Weight)
	}
	return m
}

func coercePoints(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func coerceWeight(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func safeDivisor(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func money(amount, pct float64) float64 {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	return math.Round(amount * pct / 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
