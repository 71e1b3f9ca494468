// Package calloff aggregates a framework contract's draw-downs into the
// money each person has actually earned from it.
package calloff

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdock/internal/allocation"
	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/people"
)

// FounderShare is the fraction of a hunter call-off credited to the
// framework's original team. The rest goes to the call-off's own team.
// It is the same for every contract.
const FounderShare = 0.2

// Window bounds call-off effective dates, inclusive on both ends. A zero
// bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// AllTime is the unbounded window.
var AllTime = Window{}

// Contains reports whether t falls inside w.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// ParseWindow reads inclusive bounds given as RFC 3339 timestamps or plain
// dates. A plain upper date covers that whole day. Blank bounds stay open.
func ParseWindow(from, to string) (Window, error) {
	var w Window
	if s := strings.TrimSpace(from); s != "" {
		t, _, err := parseBound(s)
		if err != nil {
			return Window{}, eris.Wrapf(err, "calloff: parse from %q", s)
		}
		w.From = t
	}
	if s := strings.TrimSpace(to); s != "" {
		t, dateOnly, err := parseBound(s)
		if err != nil {
			return Window{}, eris.Wrapf(err, "calloff: parse to %q", s)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		w.To = t
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return Window{}, eris.Errorf("calloff: window ends before it starts")
	}
	return w, nil
}

func parseBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}

// PersonActual is one person's earned money from the contract.
type PersonActual struct {
	Name  string  `json:"name"`
	Money float64 `json:"money"`
	Pct   float64 `json:"pct"`
}

// Actuals is the distribution of a contract's call-offs within a window.
type Actuals struct {
	List        []PersonActual `json:"list"`
	TotalVolume float64        `json:"totalVolume"`
}

type ledger struct {
	index map[string]int
	rows  []PersonActual
}

func (l *ledger) credit(shares []model.Share, amount float64) {
	for _, s := range shares {
		k := people.Key(s.Name)
		at, ok := l.index[k]
		if !ok {
			at = len(l.rows)
			l.index[k] = at
			l.rows = append(l.rows, PersonActual{Name: s.Name})
		}
		l.rows[at].Money += amount * finite(s.Pct) / 100
	}
}

// AggregateActuals distributes every call-off of deal dated inside w.
//
// Founder call-offs go entirely through the deal's stored list. Hunter
// call-offs give FounderShare through the deal's list and the remainder
// through the call-off's own list. A hunter call-off with rows but no stored
// list is split from its rows on the fly; one with neither falls back to the
// deal's list for the remainder too.
func AggregateActuals(deal model.Deal, w Window) Actuals {
	l := &ledger{index: make(map[string]int)}
	var total float64

	for _, c := range deal.Transactions {
		if !w.Contains(c.EffectiveDate()) {
			continue
		}
		amount := finite(c.Amount)
		if amount <= 0 {
			continue
		}
		total += amount

		if c.Type != model.CallOffHunter {
			l.credit(deal.List, amount)
			continue
		}

		founderPart := amount * FounderShare
		hunterPart := amount - founderPart
		l.credit(deal.List, founderPart)
		l.credit(hunterList(deal, c), hunterPart)
	}

	out := Actuals{List: []PersonActual{}, TotalVolume: total}
	if total == 0 {
		return out
	}

	for _, r := range l.rows {
		r.Money = roundCents(r.Money)
		r.Pct = r.Money / total * 100
		out.List = append(out.List, r)
	}
	sort.SliceStable(out.List, func(i, j int) bool {
		return out.List[i].Money > out.List[j].Money
	})
	return out
}

func hunterList(deal model.Deal, c model.CallOff) []model.Share {
	if len(c.List) > 0 {
		return c.List
	}
	if own := allocation.CallOffList(c); len(own) > 0 {
		return own
	}
	return deal.List
}

// Volume returns the summed call-off amounts inside w.
func Volume(deal model.Deal, w Window) float64 {
	var total float64
	for _, c := range deal.Transactions {
		if a := finite(c.Amount); a > 0 && w.Contains(c.EffectiveDate()) {
			total += a
		}
	}
	return total
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
