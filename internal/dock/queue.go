package dock

import "time"

// Entry is one scheduled piece of work for a deal.
type Entry struct {
	DealID      string
	ScheduledAt time.Time
}

// Queue is a FIFO of deal ids. An id is queued at most once.
// It is not safe for concurrent use; the Engine guards its queues.
type Queue struct {
	name    string
	items   []Entry
	members map[string]struct{}
}

// NewQueue returns an empty queue labelled name.
func NewQueue(name string) *Queue {
	return &Queue{name: name, members: make(map[string]struct{})}
}

// Name returns the queue label.
func (q *Queue) Name() string { return q.name }

// Len returns the number of queued entries.
func (q *Queue) Len() int { return len(q.items) }

// Contains reports whether id is queued.
func (q *Queue) Contains(id string) bool {
	_, ok := q.members[id]
	return ok
}

// Push appends id unless it is already queued.
func (q *Queue) Push(id string, at time.Time) bool {
	if q.Contains(id) {
		return false
	}
	q.members[id] = struct{}{}
	q.items = append(q.items, Entry{DealID: id, ScheduledAt: at})
	return true
}

// Pop removes and returns the oldest entry.
func (q *Queue) Pop() (Entry, bool) {
	if len(q.items) == 0 {
		return Entry{}, false
	}
	e := q.items[0]
	q.items[0] = Entry{}
	q.items = q.items[1:]
	delete(q.members, e.DealID)
	return e, true
}

// Remove drops id from the queue wherever it sits.
func (q *Queue) Remove(id string) bool {
	if !q.Contains(id) {
		return false
	}
	delete(q.members, id)
	for i, e := range q.items {
		if e.DealID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	return true
}

// Drain pops entries and hands them to fn until fn has counted limit of
// them or the queue is empty. fn returns false for entries it discarded
// without doing work; those do not count. Drain returns the counted total.
func Drain(q *Queue, limit int, fn func(Entry) bool) int {
	n := 0
	for n < limit {
		e, ok := q.Pop()
		if !ok {
			break
		}
		if fn(e) {
			n++
		}
	}
	return n
}
