package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sells-group/dealdock/internal/allocation"
	"github.com/sells-group/dealdock/internal/calloff"
	"github.com/sells-group/dealdock/internal/dock"
	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/report"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

func rightAlign(cols ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c, Align: text.AlignRight}
	}
	return cfgs
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDealsTable(out io.Writer, deals []model.Deal) {
	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Client", "Title", "Type", "Amount", "Phase", "Ready", "Created"})
	for _, d := range deals {
		amount := "-"
		if d.Amount != nil {
			amount = formatMoney(*d.Amount)
		}
		phase := d.DockPhase.String()
		if d.DockFinalAssignment != "" {
			phase += " (" + string(d.DockFinalAssignment) + ")"
		}
		ready := "no"
		if dock.IsReady(d) {
			ready = "yes"
		}
		t.AppendRow(table.Row{
			truncateID(d.ID), d.Client, d.Title, string(d.ProjectType),
			amount, phase, ready, d.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	t.SetColumnConfigs(rightAlign(5))
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(deals)})
	t.Render()
}

func formatDealDetail(out io.Writer, d *model.Deal, hint *model.ConflictHint) {
	fmt.Fprintf(out, "ID:       %s\n", d.ID)
	fmt.Fprintf(out, "Client:   %s\n", d.Client)
	fmt.Fprintf(out, "Title:    %s\n", d.Title)
	fmt.Fprintf(out, "Type:     %s\n", d.ProjectType)
	fmt.Fprintf(out, "Source:   %s\n", d.Source)
	fmt.Fprintf(out, "Project:  %s\n", d.ProjectNumber)
	fmt.Fprintf(out, "KV:       %s\n", strings.Join(d.ReferenceCodes(), ", "))
	if d.Amount != nil {
		fmt.Fprintf(out, "Amount:   %s\n", formatMoney(*d.Amount))
	}
	fmt.Fprintf(out, "Phase:    %s\n", d.DockPhase)
	if d.DockFinalAssignment != "" {
		fmt.Fprintf(out, "Final:    %s x%.1f\n", d.DockFinalAssignment, d.RewardFactor())
	}

	if reasons := dock.Reasons(*d); len(reasons) > 0 {
		fmt.Fprintln(out, "\nNot ready:")
		for _, r := range reasons {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	if hint != nil && hint.HasConflicts() {
		fmt.Fprintln(out, "\nReference conflicts:")
		for _, c := range hint.Conflicts {
			fmt.Fprintf(out, "  - %s shared with %s\n", c.KVNumber, strings.Join(c.DealIDs, ", "))
		}
	}

	if len(d.List) > 0 {
		fmt.Fprintln(out)
		formatShares(out, d.List)
	}
	if d.ProjectType == model.ProjectFramework && len(d.Transactions) > 0 {
		fmt.Fprintln(out)
		formatCallOffs(out, d.Transactions)
	}
}

func formatShares(out io.Writer, list []model.Share) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Name", "Pct", "Money"})
	var pct, money float64
	for _, s := range list {
		t.AppendRow(table.Row{s.Name, formatPct(s.Pct), formatMoney(s.Money)})
		pct += s.Pct
		money += s.Money
	}
	t.AppendFooter(table.Row{"Total", formatPct(pct), formatMoney(money)})
	t.SetColumnConfigs(rightAlign(2, 3))
	t.Render()
}

func formatCallOffs(out io.Writer, calls []model.CallOff) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Date", "Type", "KV", "Amount"})
	for _, c := range calls {
		t.AppendRow(table.Row{c.EffectiveDate().Format("2006-01-02"), string(c.Type), c.KVNumber, formatMoney(c.Amount)})
	}
	t.SetColumnConfigs(rightAlign(4))
	t.Render()
}

func formatResult(out io.Writer, res allocation.Result) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Category", "Points", "Effective weight"})
	for _, c := range model.Categories {
		t.AppendRow(table.Row{string(c), fmt.Sprintf("%.2f", res.Totals[c]), formatPct(res.EffectiveWeights[c])})
	}
	t.SetColumnConfigs(rightAlign(2, 3))
	t.Render()

	fmt.Fprintln(out)
	formatShares(out, res.List)
}

func formatViolations(out io.Writer, violations []allocation.Violation) {
	if len(violations) == 0 {
		return
	}
	fmt.Fprintln(out, "\nIncomplete categories:")
	for _, v := range violations {
		fmt.Fprintf(out, "  - %s\n", v)
	}
}

func formatActuals(out io.Writer, a calloff.Actuals) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Name", "Money", "Pct"})
	for _, p := range a.List {
		t.AppendRow(table.Row{p.Name, formatMoney(p.Money), formatPct(p.Pct)})
	}
	t.AppendFooter(table.Row{"Volume", formatMoney(a.TotalVolume), ""})
	t.SetColumnConfigs(rightAlign(2, 3))
	t.Render()
}

func formatPassReport(out io.Writer, r dock.PassReport) {
	fmt.Fprintf(out, "Pass at %s over %d deal(s) in %s\n",
		r.StartedAt.Format("2006-01-02 15:04:05"), r.Deals, r.Duration)

	t := newTable(out)
	t.AppendHeader(table.Row{"Deal", "Change"})
	for _, tr := range r.Advanced {
		t.AppendRow(table.Row{truncateID(tr.DealID), fmt.Sprintf("%s -> %s", tr.From, tr.To)})
	}
	for _, tr := range r.Downgraded {
		t.AppendRow(table.Row{truncateID(tr.DealID), fmt.Sprintf("%s -> %s", tr.From, tr.To)})
	}
	for _, h := range r.Checked {
		change := "conflict check: clear"
		if h.HasConflicts() {
			change = fmt.Sprintf("conflict check: %d shared reference(s)", len(h.Conflicts))
		}
		t.AppendRow(table.Row{truncateID(h.DealID), change})
	}
	for _, n := range r.Notices {
		t.AppendRow(table.Row{truncateID(n.DealID), fmt.Sprintf("%s failed: %s", n.Kind, n.Message)})
	}
	if t.Length() == 0 {
		fmt.Fprintln(out, "Nothing to do.")
	} else {
		t.Render()
	}

	fmt.Fprintf(out, "Pending: advance=%d downgrade=%d conflict=%d, dropped=%d\n",
		r.Pending[dock.KindAdvance], r.Pending[dock.KindDowngrade], r.Pending[dock.KindConflict], r.Dropped)
}

func formatReport(out io.Writer, r report.Report) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Name", "Team", "Deals", "Money", "Score"})
	for _, p := range r.People {
		t.AppendRow(table.Row{p.Name, p.Team, p.Deals, formatMoney(p.Money), formatMoney(p.Score)})
	}
	t.AppendFooter(table.Row{"Total", "", r.Deals, formatMoney(r.TotalMoney), formatMoney(r.TotalScore)})
	t.SetColumnConfigs(rightAlign(3, 4, 5))
	t.Render()

	fmt.Fprintln(out)
	teams := newTable(out)
	teams.AppendHeader(table.Row{"Team", "Members", "Money", "Score"})
	for _, tr := range r.Teams {
		teams.AppendRow(table.Row{tr.Team, tr.Members, formatMoney(tr.Money), formatMoney(tr.Score)})
	}
	teams.SetColumnConfigs(rightAlign(2, 3, 4))
	teams.Render()
}
