package model

import (
	"math"
	"strings"
	"time"
)

// ProjectType classifies a deal as a one-off or a framework contract.
type ProjectType string

const (
	ProjectFixed     ProjectType = "fixed"
	ProjectFramework ProjectType = "framework"
)

// SourceManual marks deals entered by hand rather than imported from a CRM.
const SourceManual = "manual"

// Phase is a deal's position on the review board.
type Phase int

const (
	PhaseIncoming Phase = 1 // imported, unreviewed
	PhasePending  Phase = 2 // fields complete, pending approval
	PhaseApproved Phase = 3 // approved, pending final assignment
	PhaseArchived Phase = 4 // terminal
)

func (p Phase) String() string {
	switch p {
	case PhaseIncoming:
		return "incoming"
	case PhasePending:
		return "pending"
	case PhaseApproved:
		return "approved"
	case PhaseArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the four board phases.
func (p Phase) Valid() bool {
	return p >= PhaseIncoming && p <= PhaseArchived
}

// InitialPhase returns the phase a new deal enters the board with. Manually
// entered deals were already vouched for by a person and start approved;
// everything imported from elsewhere starts as incoming.
func InitialPhase(source string) Phase {
	s := strings.TrimSpace(source)
	if s == "" || strings.EqualFold(s, SourceManual) {
		return PhaseApproved
	}
	return PhaseIncoming
}

// Assignment is the terminal classification an operator gives a deal.
type Assignment string

const (
	AssignFixed     Assignment = "fixed"
	AssignFramework Assignment = "framework"
	AssignCallOff   Assignment = "call-off"
)

// Valid reports whether a is a known final assignment.
func (a Assignment) Valid() bool {
	switch a {
	case AssignFixed, AssignFramework, AssignCallOff:
		return true
	default:
		return false
	}
}

// RewardFactors are the allowed reporting multipliers.
var RewardFactors = []float64{0.5, 1.0, 1.5, 2.0}

// QuantizeRewardFactor snaps v to the nearest allowed reward factor.
// Non-finite input yields the neutral factor 1.0.
func QuantizeRewardFactor(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 1.0
	}
	q := math.Round(v*2) / 2
	if q < RewardFactors[0] {
		return RewardFactors[0]
	}
	if last := RewardFactors[len(RewardFactors)-1]; q > last {
		return last
	}
	return q
}

// Deal is the central document: commercial data, allocation inputs and
// outputs, and lifecycle state.
type Deal struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`

	ProjectType   ProjectType `json:"projectType" yaml:"projectType"`
	Source        string      `json:"source" yaml:"source"`
	Amount        *float64    `json:"amount,omitempty" yaml:"amount,omitempty"`
	Client        string      `json:"client" yaml:"client"`
	Title         string      `json:"title" yaml:"title"`
	ProjectNumber string      `json:"projectNumber" yaml:"projectNumber"`
	KVNumbers     []string    `json:"kvNumbers,omitempty" yaml:"kvNumbers,omitempty"`

	Rows             []Row                `json:"rows,omitempty" yaml:"rows,omitempty"`
	Weights          []Weight             `json:"weights,omitempty" yaml:"weights,omitempty"`
	Totals           map[Category]float64 `json:"totals,omitempty" yaml:"totals,omitempty"`
	EffectiveWeights map[Category]float64 `json:"effectiveWeights,omitempty" yaml:"effectiveWeights,omitempty"`
	List             []Share              `json:"list,omitempty" yaml:"list,omitempty"`

	DockPhase           Phase      `json:"dockPhase,omitempty" yaml:"dockPhase,omitempty"`
	DockFinalAssignment Assignment `json:"dockFinalAssignment,omitempty" yaml:"dockFinalAssignment,omitempty"`
	DockRewardFactor    float64    `json:"dockRewardFactor,omitempty" yaml:"dockRewardFactor,omitempty"`

	Transactions []CallOff `json:"transactions,omitempty" yaml:"transactions,omitempty"`
}

// IsTerminal reports whether the deal has left the board.
func (d *Deal) IsTerminal() bool {
	return d.DockFinalAssignment != "" || d.DockPhase == PhaseArchived
}

// AmountValue returns the amount, or 0 when it is unknown.
func (d *Deal) AmountValue() float64 {
	if d.Amount == nil {
		return 0
	}
	return *d.Amount
}

// RewardFactor returns the stored reward factor, defaulting to 1.0.
func (d *Deal) RewardFactor() float64 {
	if d.DockRewardFactor == 0 {
		return 1.0
	}
	return QuantizeRewardFactor(d.DockRewardFactor)
}

// ReferenceCodes returns the non-blank KV numbers, trimmed.
func (d *Deal) ReferenceCodes() []string {
	out := make([]string, 0, len(d.KVNumbers))
	for _, kv := range d.KVNumbers {
		if kv = strings.TrimSpace(kv); kv != "" {
			out = append(out, kv)
		}
	}
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
