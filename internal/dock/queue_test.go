package dock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOAndDedupe(t *testing.T) {
	q := NewQueue("advance")
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, q.Push("a", at))
	assert.True(t, q.Push("b", at.Add(time.Second)))
	assert.False(t, q.Push("a", at.Add(2*time.Second)))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, "advance", q.Name())

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, Entry{DealID: "a", ScheduledAt: at}, e)
	assert.False(t, q.Contains("a"))

	assert.True(t, q.Push("a", at))
	e, _ = q.Pop()
	assert.Equal(t, "b", e.DealID)
	e, _ = q.Pop()
	assert.Equal(t, "a", e.DealID)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueue_Remove(t *testing.T) {
	q := NewQueue("x")
	now := time.Now()
	q.Push("a", now)
	q.Push("b", now)
	q.Push("c", now)

	assert.True(t, q.Remove("b"))
	assert.False(t, q.Remove("b"))
	assert.Equal(t, 2, q.Len())

	e, _ := q.Pop()
	assert.Equal(t, "a", e.DealID)
	e, _ = q.Pop()
	assert.Equal(t, "c", e.DealID)
}

func TestDrain_CountsOnlyAcceptedEntries(t *testing.T) {
	q := NewQueue("x")
	now := time.Now()
	for _, id := range []string{"skip1", "a", "skip2", "b", "c"} {
		q.Push(id, now)
	}

	var seen []string
	n := Drain(q, 2, func(e Entry) bool {
		seen = append(seen, e.DealID)
		return e.DealID[0] != 's'
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"skip1", "a", "skip2", "b"}, seen)
	assert.Equal(t, 1, q.Len())
}

func TestDrain_EmptyQueue(t *testing.T) {
	n := Drain(NewQueue("x"), 5, func(Entry) bool { return true })
	assert.Equal(t, 0, n)
}

func TestDrain_ZeroLimit(t *testing.T) {
	q := NewQueue("x")
	q.Push("a", time.Now())
	n := Drain(q, 0, func(Entry) bool { return true })
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, q.Len())
}
