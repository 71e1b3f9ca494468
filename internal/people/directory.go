// Package people holds the staff directory used to resolve share recipients
// to teams.
package people

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dealdock/internal/model"
)

// Unassigned is the team reported for names missing from the directory.
const Unassigned = "unassigned"

// fold is stateless and safe for concurrent use.
var fold = cases.Fold()

// Key returns the case-insensitive match key for a person's name.
func Key(name string) string {
	return fold.String(strings.TrimSpace(name))
}

// Directory is an immutable name-indexed set of people.
type Directory struct {
	byKey map[string]model.Person
	order []string
}

// NewDirectory indexes people by name. Blank and duplicate names are rejected.
func NewDirectory(people []model.Person) (*Directory, error) {
	d := &Directory{byKey: make(map[string]model.Person, len(people))}
	for i, p := range people {
		k := Key(p.Name)
		if k == "" {
			return nil, eris.Errorf("people: entry %d has no name", i)
		}
		if prev, ok := d.byKey[k]; ok {
			return nil, eris.Errorf("people: %q duplicates %q", p.Name, prev.Name)
		}
		p.Name = strings.TrimSpace(p.Name)
		d.byKey[k] = p
		d.order = append(d.order, k)
	}
	return d, nil
}

type directoryFile struct {
	People []model.Person `yaml:"people"`
}

// LoadFile reads a YAML directory of the form `people: [{name, team, email}]`.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "people: read %s", path)
	}
	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "people: parse %s", path)
	}
	return NewDirectory(f.People)
}

// Lookup finds a person by name, ignoring case.
func (d *Directory) Lookup(name string) (model.Person, bool) {
	if d == nil {
		return model.Person{}, false
	}
	p, ok := d.byKey[Key(name)]
	return p, ok
}

// Team returns the person's team, or Unassigned.
func (d *Directory) Team(name string) string {
	p, ok := d.Lookup(name)
	if !ok || strings.TrimSpace(p.Team) == "" {
		return Unassigned
	}
	return p.Team
}

// All returns every person in insertion order.
func (d *Directory) All() []model.Person {
	if d == nil {
		return nil
	}
	out := make([]model.Person, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.byKey[k])
	}
	return out
}

// Len returns the number of people.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.order)
}
