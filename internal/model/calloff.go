package model

import "time"

// CallOffType says how a call-off's money is attributed.
type CallOffType string

const (
	// CallOffFounder draws are credited through the framework's own team split.
	CallOffFounder CallOffType = "founder"
	// CallOffHunter draws carry their own team for the hunter share.
	CallOffHunter CallOffType = "hunter"
)

// CallOff is one draw-down against a framework contract.
type CallOff struct {
	ID        string      `json:"id" yaml:"id"`
	Type      CallOffType `json:"type" yaml:"type"`
	Amount    float64     `json:"amount" yaml:"amount"`
	KVNumber  string      `json:"kvNumber,omitempty" yaml:"kvNumber,omitempty"`
	Date      time.Time   `json:"date" yaml:"date"`
	CreatedAt time.Time   `json:"createdAt" yaml:"createdAt"`
	Rows      []Row       `json:"rows,omitempty" yaml:"rows,omitempty"`
	Weights   []Weight    `json:"weights,omitempty" yaml:"weights,omitempty"`
	List      []Share     `json:"list,omitempty" yaml:"list,omitempty"`
}

// EffectiveDate is the date the draw counts for, falling back to its
// creation time when no date was recorded.
func (c CallOff) EffectiveDate() time.Time {
	if c.Date.IsZero() {
		return c.CreatedAt
	}
	return c.Date
}

// Person is a member of staff who can receive a share.
type Person struct {
	Name  string `json:"name" yaml:"name"`
	Team  string `json:"team" yaml:"team"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Conflict is one reference code shared with other deals.
type Conflict struct {
	KVNumber string   `json:"kvNumber"`
	DealIDs  []string `json:"dealIds"`
}

// ConflictHint is the result of the latest duplicate-reference check for a deal.
type ConflictHint struct {
	DealID    string     `json:"dealId"`
	CheckedAt time.Time  `json:"checkedAt"`
	Conflicts []Conflict `json:"conflicts"`
}

// HasConflicts reports whether the check found any shared reference.
func (h ConflictHint) HasConflicts() bool {
	return len(h.Conflicts) > 0
}
