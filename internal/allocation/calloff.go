package allocation

import "github.com/sells-group/dealdock/internal/model"

// CallOffList computes a hunter call-off's own split from its rows and
// weights. Call-offs of other types, and hunter call-offs without rows,
// have no list of their own and yield nil.
func CallOffList(c model.CallOff) []model.Share {
	if c.Type != model.CallOffHunter || len(c.Rows) == 0 {
		return nil
	}
	return Compute(c.Rows, c.Weights, c.Amount, false).List
}

// AllocateCallOffs returns a copy of calls in which every hunter call-off
// with rows carries a freshly computed list. changed reports whether any
// call-off was recomputed.
func AllocateCallOffs(calls []model.CallOff) (out []model.CallOff, changed bool) {
	out = append([]model.CallOff(nil), calls...)
	for i := range out {
		if list := CallOffList(out[i]); list != nil {
			out[i].List = list
			changed = true
		}
	}
	return out, changed
}

// Plan is the full update an allocate action writes: the deal's own split
// and, for framework contracts, the split of each hunter call-off.
func Plan(d model.Deal) (Result, model.DealPatch) {
	res := Compute(d.Rows, d.Weights, d.AmountValue(), false)
	patch := res.Patch()
	if calls, changed := AllocateCallOffs(d.Transactions); changed {
		patch.Transactions = calls
	}
	return res, patch
}
