// Package report builds per-person and per-team earnings over a date range.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/sells-group/dealdock/internal/calloff"
	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/people"
)

// PersonRow is one person's totals in the window.
type PersonRow struct {
	Name  string  `json:"name"`
	Team  string  `json:"team"`
	Money float64 `json:"money"`
	Score float64 `json:"score"`
	Deals int     `json:"deals"`
}

// TeamRow aggregates PersonRows by team.
type TeamRow struct {
	Team    string  `json:"team"`
	Money   float64 `json:"money"`
	Score   float64 `json:"score"`
	Members int     `json:"members"`
}

// Report is the analytics view for one window.
type Report struct {
	From       *time.Time  `json:"from,omitempty"`
	To         *time.Time  `json:"to,omitempty"`
	Deals      int         `json:"deals"`
	Volume     float64     `json:"volume"`
	TotalMoney float64     `json:"totalMoney"`
	TotalScore float64     `json:"totalScore"`
	People     []PersonRow `json:"people"`
	Teams      []TeamRow   `json:"teams"`
}

type contribution struct {
	name  string
	money float64
}

// Build credits each deal's money to people.
//
// Fixed deals count once, by creation date, through their stored list.
// Framework deals count through the call-offs dated inside w. Each
// contribution is weighted by the deal's reward factor to form the score.
// dir may be nil, in which case everyone is reported as unassigned.
func Build(deals []model.Deal, dir *people.Directory, w calloff.Window) Report {
	rep := Report{People: []PersonRow{}, Teams: []TeamRow{}}
	if !w.From.IsZero() {
		from := w.From
		rep.From = &from
	}
	if !w.To.IsZero() {
		to := w.To
		rep.To = &to
	}

	index := make(map[string]int)
	for i := range deals {
		d := &deals[i]
		contribs, volume := contributions(d, w)
		if len(contribs) == 0 {
			continue
		}
		rep.Deals++
		rep.Volume += volume
		factor := d.RewardFactor()

		seen := make(map[string]bool, len(contribs))
		for _, c := range contribs {
			k := people.Key(c.name)
			at, ok := index[k]
			if !ok {
				name := c.name
				if p, found := dir.Lookup(c.name); found {
					name = p.Name
				}
				at = len(rep.People)
				index[k] = at
				rep.People = append(rep.People, PersonRow{Name: name, Team: dir.Team(c.name)})
			}
			row := &rep.People[at]
			row.Money += c.money
			row.Score += c.money * factor
			if !seen[k] {
				seen[k] = true
				row.Deals++
			}
		}
	}

	teams := make(map[string]int)
	for i := range rep.People {
		p := &rep.People[i]
		p.Money = round2(p.Money)
		p.Score = round2(p.Score)
		rep.TotalMoney += p.Money
		rep.TotalScore += p.Score

		at, ok := teams[p.Team]
		if !ok {
			at = len(rep.Teams)
			teams[p.Team] = at
			rep.Teams = append(rep.Teams, TeamRow{Team: p.Team})
		}
		rep.Teams[at].Money += p.Money
		rep.Teams[at].Score += p.Score
		rep.Teams[at].Members++
	}
	for i := range rep.Teams {
		rep.Teams[i].Money = round2(rep.Teams[i].Money)
		rep.Teams[i].Score = round2(rep.Teams[i].Score)
	}
	rep.Volume = round2(rep.Volume)
	rep.TotalMoney = round2(rep.TotalMoney)
	rep.TotalScore = round2(rep.TotalScore)

	sort.SliceStable(rep.People, func(i, j int) bool {
		if rep.People[i].Score != rep.People[j].Score {
			return rep.People[i].Score > rep.People[j].Score
		}
		return rep.People[i].Name < rep.People[j].Name
	})
	sort.SliceStable(rep.Teams, func(i, j int) bool {
		if rep.Teams[i].Score != rep.Teams[j].Score {
			return rep.Teams[i].Score > rep.Teams[j].Score
		}
		return rep.Teams[i].Team < rep.Teams[j].Team
	})
	return rep
}

func contributions(d *model.Deal, w calloff.Window) ([]contribution, float64) {
	if d.ProjectType == model.ProjectFramework {
		actuals := calloff.AggregateActuals(*d, w)
		out := make([]contribution, 0, len(actuals.List))
		for _, a := range actuals.List {
			if people.Key(a.Name) != "" {
				out = append(out, contribution{name: a.Name, money: a.Money})
			}
		}
		return out, actuals.TotalVolume
	}

	if !w.Contains(d.CreatedAt) {
		return nil, 0
	}
	out := make([]contribution, 0, len(d.List))
	for _, s := range d.List {
		if m := finite(s.Money); m > 0 && people.Key(s.Name) != "" {
			out = append(out, contribution{name: s.Name, money: m})
		}
	}
	if len(out) == 0 {
		return nil, 0
	}
	return out, finite(d.AmountValue())
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
