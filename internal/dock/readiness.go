// Package dock runs the review board: deals move through phases 1 to 4,
// partly by automation on each board pass and partly by operator action.
package dock

import (
	"math"
	"strings"

	"github.com/sells-group/dealdock/internal/model"
)

// Readiness failure reasons.
const (
	ReasonAmount        = "amount missing or negative"
	ReasonClient        = "client missing"
	ReasonProjectNumber = "project number missing"
	ReasonReference     = "no reference code"
	ReasonAllocation    = "nobody holds a positive share"
)

// Reasons lists every completeness clause deal fails, in a fixed order.
// An empty result means the deal is ready.
func Reasons(d model.Deal) []string {
	var out []string
	if d.Amount == nil || math.IsNaN(*d.Amount) || math.IsInf(*d.Amount, 0) || *d.Amount < 0 {
		out = append(out, ReasonAmount)
	}
	if strings.TrimSpace(d.Client) == "" {
		out = append(out, ReasonClient)
	}
	if strings.TrimSpace(d.ProjectNumber) == "" {
		out = append(out, ReasonProjectNumber)
	}
	if len(d.ReferenceCodes()) == 0 {
		out = append(out, ReasonReference)
	}
	if !hasPositiveShare(d.List) {
		out = append(out, ReasonAllocation)
	}
	return out
}

// IsReady reports whether deal carries everything needed to leave phase 1.
func IsReady(d model.Deal) bool {
	return len(Reasons(d)) == 0
}

func hasPositiveShare(list []model.Share) bool {
	for _, s := range list {
		if s.Pct > 0 || s.Money > 0 {
			return true
		}
	}
	return false
}
