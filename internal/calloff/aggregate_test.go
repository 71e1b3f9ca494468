package calloff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdock/internal/model"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 12, 0, 0, 0, time.UTC)
}

func framework(list []model.Share, calls ...model.CallOff) model.Deal {
	return model.Deal{
		ID:           "fw-1",
		ProjectType:  model.ProjectFramework,
		List:         list,
		Transactions: calls,
	}
}

func TestAggregateActuals_FounderOnly(t *testing.T) {
	t.Parallel()
	d := framework(
		[]model.Share{{Name: "Alice", Pct: 60}, {Name: "Bob", Pct: 40}},
		model.CallOff{Type: model.CallOffFounder, Amount: 1000, Date: day(1, 10)},
		model.CallOff{Type: model.CallOffFounder, Amount: 500, Date: day(2, 10)},
	)

	got := AggregateActuals(d, AllTime)

	assert.Equal(t, 1500.0, got.TotalVolume)
	require.Len(t, got.List, 2)
	assert.Equal(t, "Alice", got.List[0].Name)
	assert.Equal(t, 900.0, got.List[0].Money)
	assert.InDelta(t, 60, got.List[0].Pct, 1e-9)
	assert.Equal(t, "Bob", got.List[1].Name)
	assert.Equal(t, 600.0, got.List[1].Money)
	assert.InDelta(t, 40, got.List[1].Pct, 1e-9)
}

func TestAggregateActuals_HunterSplitsFounderShare(t *testing.T) {
	t.Parallel()
	d := framework(
		[]model.Share{{Name: "Alice", Pct: 100}},
		model.CallOff{
			Type:   model.CallOffHunter,
			Amount: 1000,
			Date:   day(3, 1),
			List:   []model.Share{{Name: "Carol", Pct: 50}, {Name: "Dan", Pct: 50}},
		},
	)

	got := AggregateActuals(d, AllTime)

	assert.Equal(t, 1000.0, got.TotalVolume)
	require.Len(t, got.List, 3)
	assert.Equal(t, "Carol", got.List[0].Name)
	assert.Equal(t, 400.0, got.List[0].Money)
	assert.Equal(t, "Dan", got.List[1].Name)
	assert.Equal(t, 400.0, got.List[1].Money)
	assert.Equal(t, "Alice", got.List[2].Name)
	assert.Equal(t, 1000*FounderShare, got.List[2].Money)
	assert.InDelta(t, 20, got.List[2].Pct, 1e-9)
}

func TestAggregateActuals_HunterWithoutOwnListUsesParent(t *testing.T) {
	t.Parallel()
	d := framework(
		[]model.Share{{Name: "Alice", Pct: 75}, {Name: "Bob", Pct: 25}},
		model.CallOff{Type: model.CallOffHunter, Amount: 400, Date: day(3, 1)},
	)

	got := AggregateActuals(d, AllTime)

	require.Len(t, got.List, 2)
	assert.Equal(t, 300.0, got.List[0].Money)
	assert.Equal(t, 100.0, got.List[1].Money)
}

func TestAggregateActuals_HunterRowsWithoutListUseOwnTeam(t *testing.T) {
	t.Parallel()
	d := framework(
		[]model.Share{{Name: "Alice", Pct: 100}},
		model.CallOff{
			Type:   model.CallOffHunter,
			Amount: 1000,
			Date:   day(3, 1),
			Rows:   []model.Row{{Name: "Hank", CS: 100}},
		},
	)

	got := AggregateActuals(d, AllTime)

	assert.Equal(t, 1000.0, got.TotalVolume)
	require.Len(t, got.List, 2)
	assert.Equal(t, "Hank", got.List[0].Name)
	assert.Equal(t, 800.0, got.List[0].Money)
	assert.Equal(t, "Alice", got.List[1].Name)
	assert.Equal(t, 200.0, got.List[1].Money)
}

func TestAggregateActuals_MergesNamesIgnoringCase(t *testing.T) {
	t.Parallel()
	d := framework(
		[]model.Share{{Name: "Alice", Pct: 100}},
		model.CallOff{
			Type:   model.CallOffHunter,
			Amount: 100,
			Date:   day(1, 1),
			List:   []model.Share{{Name: "alice", Pct: 100}},
		},
	)

	got := AggregateActuals(d, AllTime)

	require.Len(t, got.List, 1)
	assert.Equal(t, "Alice", got.List[0].Name)
	assert.Equal(t, 100.0, got.List[0].Money)
	assert.Equal(t, 100.0, got.List[0].Pct)
}

func TestAggregateActuals_Window(t *testing.T) {
	t.Parallel()
	d := framework(
		[]model.Share{{Name: "Alice", Pct: 100}},
		model.CallOff{Type: model.CallOffFounder, Amount: 100, Date: day(1, 15)},
		model.CallOff{Type: model.CallOffFounder, Amount: 200, Date: day(2, 15)},
		model.CallOff{Type: model.CallOffFounder, Amount: 400, Date: day(3, 15)},
	)

	all := AggregateActuals(d, AllTime)
	assert.Equal(t, 700.0, all.TotalVolume)

	feb := AggregateActuals(d, Window{From: day(2, 15), To: day(2, 15)})
	assert.Equal(t, 200.0, feb.TotalVolume)
	require.Len(t, feb.List, 1)
	assert.Equal(t, 200.0, feb.List[0].Money)

	fromFeb := AggregateActuals(d, Window{From: day(2, 1)})
	assert.Equal(t, 600.0, fromFeb.TotalVolume)

	untilFeb := AggregateActuals(d, Window{To: day(2, 28)})
	assert.Equal(t, 300.0, untilFeb.TotalVolume)
}

func TestAggregateActuals_NarrowingNeverIncreasesVolume(t *testing.T) {
	t.Parallel()
	var calls []model.CallOff
	for i := 0; i < 12; i++ {
		calls = append(calls, model.CallOff{
			Type:   model.CallOffFounder,
			Amount: float64(100 * (i + 1)),
			Date:   time.Date(2026, time.Month(i+1), 5, 0, 0, 0, 0, time.UTC),
		})
	}
	d := framework([]model.Share{{Name: "A", Pct: 100}}, calls...)

	prev := AggregateActuals(d, AllTime).TotalVolume
	for m := 1; m <= 6; m++ {
		w := Window{
			From: time.Date(2026, time.Month(m), 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, time.Month(13-m), 28, 0, 0, 0, 0, time.UTC),
		}
		v := AggregateActuals(d, w).TotalVolume
		assert.LessOrEqual(t, v, prev)
		assert.Equal(t, Volume(d, w), v)
		prev = v
	}
}

func TestAggregateActuals_EffectiveDateFallsBackToCreatedAt(t *testing.T) {
	t.Parallel()
	d := framework(
		[]model.Share{{Name: "A", Pct: 100}},
		model.CallOff{Type: model.CallOffFounder, Amount: 50, CreatedAt: day(5, 1)},
	)

	assert.Equal(t, 50.0, AggregateActuals(d, Window{From: day(4, 1), To: day(6, 1)}).TotalVolume)
	assert.Equal(t, 0.0, AggregateActuals(d, Window{To: day(4, 1)}).TotalVolume)
}

func TestAggregateActuals_EmptyWhenNoVolume(t *testing.T) {
	t.Parallel()
	d := framework([]model.Share{{Name: "A", Pct: 100}})
	got := AggregateActuals(d, AllTime)
	assert.Equal(t, 0.0, got.TotalVolume)
	assert.Empty(t, got.List)
	assert.NotNil(t, got.List)

	d.Transactions = []model.CallOff{{Type: model.CallOffFounder, Amount: -20, Date: day(1, 1)}}
	got = AggregateActuals(d, AllTime)
	assert.Equal(t, 0.0, got.TotalVolume)
	assert.Empty(t, got.List)
}

func TestWindow_Contains(t *testing.T) {
	t.Parallel()
	w := Window{From: day(1, 1), To: day(1, 31)}
	assert.True(t, w.Contains(day(1, 1)))
	assert.True(t, w.Contains(day(1, 31)))
	assert.False(t, w.Contains(day(2, 1)))
	assert.True(t, AllTime.Contains(time.Time{}))
}

func TestParseWindow(t *testing.T) {
	t.Parallel()

	w, err := ParseWindow("2026-02-01", "2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), w.From)
	assert.True(t, w.Contains(time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	w, err = ParseWindow("", "2026-03-01T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, w.From.IsZero())
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), w.To)

	w, err = ParseWindow(" ", "")
	require.NoError(t, err)
	assert.Equal(t, AllTime, w)

	_, err = ParseWindow("yesterday", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calloff: parse from")

	_, err = ParseWindow("2026-03-01", "2026-02-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ends before it starts")
}
