package model

// DealPatch is a partial update. Nil fields are left untouched; a non-nil
// empty slice or map clears the field.
type DealPatch struct {
	ProjectType   *ProjectType `json:"projectType,omitempty"`
	Source        *string      `json:"source,omitempty"`
	Amount        *float64     `json:"amount,omitempty"`
	Client        *string      `json:"client,omitempty"`
	Title         *string      `json:"title,omitempty"`
	ProjectNumber *string      `json:"projectNumber,omitempty"`
	KVNumbers     []string     `json:"kvNumbers"`

	Rows             []Row                `json:"rows"`
	Weights          []Weight             `json:"weights"`
	Totals           map[Category]float64 `json:"totals"`
	EffectiveWeights map[Category]float64 `json:"effectiveWeights"`
	List             []Share              `json:"list"`

	DockPhase           *Phase      `json:"dockPhase,omitempty"`
	DockFinalAssignment *Assignment `json:"dockFinalAssignment,omitempty"`
	DockRewardFactor    *float64    `json:"dockRewardFactor,omitempty"`

	Transactions []CallOff `json:"transactions"`
}

// Apply writes the set fields of p onto d. Identity and timestamps are
// never touched; stores stamp UpdatedAt themselves.
func (p DealPatch) Apply(d *Deal) {
	if p.ProjectType != nil {
		d.ProjectType = *p.ProjectType
	}
	if p.Source != nil {
		d.Source = *p.Source
	}
	if p.Amount != nil {
		d.Amount = Ptr(*p.Amount)
	}
	if p.Client != nil {
		d.Client = *p.Client
	}
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.ProjectNumber != nil {
		d.ProjectNumber = *p.ProjectNumber
	}
	if p.KVNumbers != nil {
		d.KVNumbers = append([]string(nil), p.KVNumbers...)
	}
	if p.Rows != nil {
		d.Rows = append([]Row(nil), p.Rows...)
	}
	if p.Weights != nil {
		d.Weights = append([]Weight(nil), p.Weights...)
	}
	if p.Totals != nil {
		d.Totals = copyCategoryMap(p.Totals)
	}
	if p.EffectiveWeights != nil {
		d.EffectiveWeights = copyCategoryMap(p.EffectiveWeights)
	}
	if p.List != nil {
		d.List = append([]Share(nil), p.List...)
	}
	if p.DockPhase != nil {
		d.DockPhase = *p.DockPhase
	}
	if p.DockFinalAssignment != nil {
		d.DockFinalAssignment = *p.DockFinalAssignment
	}
	if p.DockRewardFactor != nil {
		d.DockRewardFactor = QuantizeRewardFactor(*p.DockRewardFactor)
	}
	if p.Transactions != nil {
		d.Transactions = append([]CallOff(nil), p.Transactions...)
	}
}

// IsEmpty reports whether the patch sets nothing.
func (p DealPatch) IsEmpty() bool {
	return p.ProjectType == nil && p.Source == nil && p.Amount == nil &&
		p.Client == nil && p.Title == nil && p.ProjectNumber == nil &&
		p.KVNumbers == nil && p.Rows == nil && p.Weights == nil &&
		p.Totals == nil && p.EffectiveWeights == nil && p.List == nil &&
		p.DockPhase == nil && p.DockFinalAssignment == nil &&
		p.DockRewardFactor == nil && p.Transactions == nil
}

func copyCategoryMap(m map[Category]float64) map[Category]float64 {
	out := make(map[Category]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
