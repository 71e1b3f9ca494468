package allocation

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdock/internal/model"
)

func std() []model.Weight {
	return []model.Weight{
		{Category: model.CategoryCS, Weight: 50},
		{Category: model.CategoryKonzept, Weight: 30},
		{Category: model.CategoryPitch, Weight: 20},
	}
}

func pctSum(list []model.Share) float64 {
	var s float64
	for _, e := range list {
		s += e.Pct
	}
	return s
}

func TestCompute_ThreePeopleOneCategoryEach(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: "Alice", CS: 100},
		{Name: "Bob", Konzept: 100},
		{Name: "Carol", Pitch: 100},
	}

	res := Compute(rows, std(), 10000, false)

	require.Len(t, res.List, 3)
	assert.Equal(t, model.Share{Name: "Alice", Pct: 50, Money: 5000}, res.List[0])
	assert.Equal(t, model.Share{Name: "Bob", Pct: 30, Money: 3000}, res.List[1])
	assert.Equal(t, model.Share{Name: "Carol", Pct: 20, Money: 2000}, res.List[2])
	assert.Equal(t, 100.0, res.Totals[model.CategoryCS])
	assert.Equal(t, 100.0, res.Totals[model.CategoryKonzept])
	assert.Equal(t, 100.0, res.Totals[model.CategoryPitch])
	assert.Equal(t, 100.0, pctSum(res.List))
	assert.Equal(t, model.Categories, res.UsedCategories)
}

func TestCompute_RenormalizesToUsedCategories(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: "Alice", CS: 60},
		{Name: "Bob", CS: 40},
	}

	res := Compute(rows, std(), 1000, false)

	assert.Equal(t, []model.Category{model.CategoryCS}, res.UsedCategories)
	assert.Equal(t, 100.0, res.EffectiveWeights[model.CategoryCS])
	assert.Equal(t, 0.0, res.EffectiveWeights[model.CategoryKonzept])
	assert.Equal(t, 0.0, res.EffectiveWeights[model.CategoryPitch])
	require.Len(t, res.List, 2)
	assert.Equal(t, model.Share{Name: "Alice", Pct: 60, Money: 600}, res.List[0])
	assert.Equal(t, model.Share{Name: "Bob", Pct: 40, Money: 400}, res.List[1])
}

func TestCompute_SharesOfCategoryTotalNotRawPoints(t *testing.T) {
	t.Parallel()
	// Category totals of 30 are treated as the whole category.
	rows := []model.Row{
		{Name: "Alice", CS: 10},
		{Name: "Bob", CS: 10},
		{Name: "Carol", CS: 10},
	}

	res := Compute(rows, std(), 1000, false)

	require.Len(t, res.List, 3)
	assert.Equal(t, "Alice", res.List[0].Name)
	assert.InDelta(t, 33.34, res.List[0].Pct, 1e-9)
	assert.InDelta(t, 33.33, res.List[1].Pct, 1e-9)
	assert.InDelta(t, 33.33, res.List[2].Pct, 1e-9)
	assert.InDelta(t, 100, pctSum(res.List), 1e-9)
	assert.Equal(t, 333.0, res.List[0].Money)
}

func TestCompute_ResidualGoesToTopRanked(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: "Low", CS: 1},
		{Name: "High", CS: 2},
	}

	res := Compute(rows, std(), 0, false)

	require.Len(t, res.List, 2)
	assert.Equal(t, "High", res.List[0].Name)
	assert.InDelta(t, 66.67, res.List[0].Pct, 1e-9)
	assert.InDelta(t, 33.33, res.List[1].Pct, 1e-9)
	assert.InDelta(t, 100, pctSum(res.List), 1e-9)
}

func TestCompute_StableTieOrder(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: "Zed", CS: 50},
		{Name: "Amy", CS: 50},
	}

	res := Compute(rows, std(), 100, false)

	require.Len(t, res.List, 2)
	assert.Equal(t, "Zed", res.List[0].Name)
	assert.Equal(t, "Amy", res.List[1].Name)
}

func TestCompute_Preview(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: "Bob", CS: 10},
		{Name: "Alice", CS: 50, Konzept: 100},
	}

	res := Compute(rows, std(), 2000, true)

	require.Len(t, res.List, 2)
	// Preview keeps input order and does no correction.
	assert.Equal(t, "Bob", res.List[0].Name)
	assert.InDelta(t, 5, res.List[0].Pct, 1e-9)
	assert.Equal(t, 100.0, res.List[0].Money)
	assert.Equal(t, "Alice", res.List[1].Name)
	assert.InDelta(t, 55, res.List[1].Pct, 1e-9)
	assert.Equal(t, 1100.0, res.List[1].Money)
	assert.Equal(t, 50.0, res.EffectiveWeights[model.CategoryCS])
	assert.Equal(t, 20.0, res.EffectiveWeights[model.CategoryPitch])
}

func TestCompute_MergesByExactName(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: "Alice", CS: 50},
		{Name: "Alice ", CS: 30},
		{Name: "alice", CS: 20},
	}

	res := Compute(rows, std(), 100, false)

	require.Len(t, res.List, 2)
	assert.Equal(t, model.Share{Name: "Alice", Pct: 80, Money: 80}, res.List[0])
	assert.Equal(t, model.Share{Name: "alice", Pct: 20, Money: 20}, res.List[1])
}

func TestCompute_BlankRows(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: ""},
		{Name: "  ", CS: 50},
		{Name: "", CS: 50},
	}

	res := Compute(rows, std(), 100, false)

	require.Len(t, res.List, 2)
	assert.Equal(t, "", res.List[0].Name)
	assert.Equal(t, 50.0, res.List[0].Pct)
	assert.Equal(t, 50.0, res.List[1].Pct)
}

func TestCompute_CoercesMalformedInput(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: "Alice", CS: math.NaN(), Konzept: 100},
		{Name: "Bob", CS: math.Inf(1), Pitch: -20},
	}
	weights := []model.Weight{
		{Category: model.CategoryCS, Weight: math.Inf(1)},
		{Category: model.CategoryKonzept, Weight: 30},
		{Category: "unknown", Weight: 70},
	}

	res := Compute(rows, weights, 100, false)

	assert.Equal(t, 0.0, res.Totals[model.CategoryCS])
	assert.Equal(t, 0.0, res.Totals[model.CategoryPitch])
	require.Len(t, res.List, 2)
	assert.Equal(t, model.Share{Name: "Alice", Pct: 100, Money: 100}, res.List[0])
	assert.Equal(t, model.Share{Name: "Bob", Pct: 0, Money: 0}, res.List[1])
}

func TestCompute_ClampsPointsAbove100(t *testing.T) {
	t.Parallel()
	res := Compute([]model.Row{{Name: "Alice", CS: 250}}, std(), 0, true)
	require.Len(t, res.List, 1)
	assert.InDelta(t, 50, res.List[0].Pct, 1e-9)
}

func TestCompute_NoPointsFinalIsEmpty(t *testing.T) {
	t.Parallel()
	rows := []model.Row{{Name: "Alice"}, {Name: "Bob"}}

	res := Compute(rows, std(), 100, false)

	assert.Empty(t, res.List)
	assert.NotNil(t, res.List)
	assert.Empty(t, res.UsedCategories)
	for _, c := range model.Categories {
		assert.Equal(t, 0.0, res.EffectiveWeights[c])
	}
}

func TestCompute_DefaultWeightsWhenEmpty(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: "Alice", CS: 100},
		{Name: "Bob", Konzept: 100},
	}

	res := Compute(rows, nil, 800, false)

	// 50/30 renormalized over two used categories: 62.5 -> 63, 37.5 -> 38, residual -1 on cs.
	assert.Equal(t, 62.0, res.EffectiveWeights[model.CategoryCS])
	assert.Equal(t, 38.0, res.EffectiveWeights[model.CategoryKonzept])
	require.Len(t, res.List, 2)
	assert.Equal(t, "Alice", res.List[0].Name)
	assert.Equal(t, 62.0, res.List[0].Pct)
	assert.Equal(t, 38.0, res.List[1].Pct)
}

func TestCompute_UsedCategoriesWithZeroWeightSplitEvenly(t *testing.T) {
	t.Parallel()
	weights := []model.Weight{
		{Category: model.CategoryCS, Weight: 0},
		{Category: model.CategoryKonzept, Weight: 0},
		{Category: model.CategoryPitch, Weight: 100},
	}
	rows := []model.Row{{Name: "Alice", CS: 100}, {Name: "Bob", Konzept: 100}}

	res := Compute(rows, weights, 0, false)

	assert.Equal(t, 50.0, res.EffectiveWeights[model.CategoryCS])
	assert.Equal(t, 50.0, res.EffectiveWeights[model.CategoryKonzept])
	assert.Equal(t, 0.0, res.EffectiveWeights[model.CategoryPitch])
}

func TestCompute_EffectiveWeightResidualOnFirstUsed(t *testing.T) {
	t.Parallel()
	weights := []model.Weight{
		{Category: model.CategoryCS, Weight: 1},
		{Category: model.CategoryKonzept, Weight: 1},
		{Category: model.CategoryPitch, Weight: 1},
	}
	rows := []model.Row{{Name: "Alice", CS: 100, Konzept: 100, Pitch: 100}}

	res := Compute(rows, weights, 0, false)

	assert.Equal(t, 34.0, res.EffectiveWeights[model.CategoryCS])
	assert.Equal(t, 33.0, res.EffectiveWeights[model.CategoryKonzept])
	assert.Equal(t, 33.0, res.EffectiveWeights[model.CategoryPitch])
	require.Len(t, res.List, 1)
	assert.Equal(t, 100.0, res.List[0].Pct)
}

func TestCompute_OnlyCategoryAGetsAllWeight(t *testing.T) {
	t.Parallel()
	for _, w := range []float64{1, 10, 50, 99} {
		weights := []model.Weight{
			{Category: model.CategoryCS, Weight: w},
			{Category: model.CategoryKonzept, Weight: 100 - w},
			{Category: model.CategoryPitch, Weight: 17},
		}
		res := Compute([]model.Row{{Name: "A", CS: 70}, {Name: "B", CS: 30}}, weights, 0, false)
		assert.Equal(t, 100.0, res.EffectiveWeights[model.CategoryCS], "weight %v", w)
		assert.Equal(t, 0.0, res.EffectiveWeights[model.CategoryKonzept])
		assert.Equal(t, 0.0, res.EffectiveWeights[model.CategoryPitch])
	}
}

func TestCompute_ZeroAmountGivesZeroMoney(t *testing.T) {
	t.Parallel()
	res := Compute([]model.Row{{Name: "A", CS: 100}}, std(), 0, false)
	require.Len(t, res.List, 1)
	assert.Equal(t, 0.0, res.List[0].Money)
}

func TestCompute_SingleEntryGetsWholeAmount(t *testing.T) {
	t.Parallel()
	res := Compute([]model.Row{{Name: "A", CS: 30, Pitch: 5}}, std(), 1234.56, false)
	require.Len(t, res.List, 1)
	assert.Equal(t, 100.0, res.List[0].Pct)
	assert.Equal(t, math.Round(1234.56), res.List[0].Money)
}

func TestCompute_Idempotent(t *testing.T) {
	t.Parallel()
	rows := []model.Row{
		{Name: "A", CS: 33, Konzept: 12},
		{Name: "B", CS: 40, Pitch: 7},
		{Name: "", Konzept: 9},
		{Name: "A", Pitch: 60},
	}
	first := Compute(rows, std(), 98765, false)
	second := Compute(rows, std(), 98765, false)
	assert.Equal(t, first, second)
}

func TestCompute_FinalSumAndMoneyProperties(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewPCG(7, 11))
	names := []string{"Alice", "Bob", "Carol", "Dan", "", "Eve"}

	for i := 0; i < 300; i++ {
		n := 1 + r.IntN(8)
		rows := make([]model.Row, n)
		for j := range rows {
			rows[j] = model.Row{
				Name:    names[r.IntN(len(names))],
				CS:      float64(r.IntN(101)),
				Konzept: float64(r.IntN(101)) * float64(r.IntN(2)),
				Pitch:   float64(r.IntN(101)) * float64(r.IntN(2)),
			}
		}
		weights := []model.Weight{
			{Category: model.CategoryCS, Weight: float64(r.IntN(100))},
			{Category: model.CategoryKonzept, Weight: float64(r.IntN(100))},
			{Category: model.CategoryPitch, Weight: float64(r.IntN(100))},
		}
		amount := math.Round(r.Float64()*1_000_000*100) / 100

		res := Compute(rows, weights, amount, false)
		if len(res.List) == 0 {
			continue
		}

		assert.InDelta(t, 100, pctSum(res.List), 1e-6, "iteration %d", i)

		var moneySum float64
		for _, e := range res.List {
			assert.GreaterOrEqual(t, e.Pct, 0.0)
			moneySum += e.Money
		}
		assert.LessOrEqual(t, math.Abs(moneySum-math.Round(amount)), float64(len(res.List)), "iteration %d", i)
	}
}

func TestResult_Patch(t *testing.T) {
	t.Parallel()
	res := Compute([]model.Row{{Name: "A", CS: 100}}, std(), 10, false)
	p := res.Patch()
	assert.Equal(t, res.List, p.List)
	assert.Equal(t, res.Totals, p.Totals)
	assert.Equal(t, res.EffectiveWeights, p.EffectiveWeights)
	assert.Nil(t, p.DockPhase)
}
