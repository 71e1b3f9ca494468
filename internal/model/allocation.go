package model

// Category is one of the weighted contribution types.
type Category string

const (
	CategoryCS      Category = "cs"      // consultative selling
	CategoryKonzept Category = "konzept" // concept creation
	CategoryPitch   Category = "pitch"
)

// Categories lists every category in canonical order.
var Categories = []Category{CategoryCS, CategoryKonzept, CategoryPitch}

// Row is one line of the allocation form: a person and their points per
// category, each in [0,100].
type Row struct {
	Name    string  `json:"name" yaml:"name"`
	CS      float64 `json:"cs" yaml:"cs"`
	Konzept float64 `json:"konzept" yaml:"konzept"`
	Pitch   float64 `json:"pitch" yaml:"pitch"`
}

// Points returns the row's points for category c.
func (r Row) Points(c Category) float64 {
	switch c {
	case CategoryCS:
		return r.CS
	case CategoryKonzept:
		return r.Konzept
	case CategoryPitch:
		return r.Pitch
	default:
		return 0
	}
}

// Weight is a category's share of the whole, in percent.
type Weight struct {
	Category Category `json:"category" yaml:"category"`
	Weight   float64  `json:"weight" yaml:"weight"`
}

// Share is one person's computed slice of a deal.
type Share struct {
	Name  string  `json:"name" yaml:"name"`
	Pct   float64 `json:"pct" yaml:"pct"`
	Money float64 `json:"money" yaml:"money"`
}
