// Package store persists deal documents. Every backend keeps the whole deal
// as one JSON document keyed by id.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdock/internal/allocation"
	"github.com/sells-group/dealdock/internal/model"
)

// ErrNotFound is returned when no deal has the requested id.
var ErrNotFound = eris.New("deal not found")

// Store defines the persistence interface for deals.
type Store interface {
	List(ctx context.Context) ([]model.Deal, error)
	Get(ctx context.Context, id string) (*model.Deal, error)
	// Create assigns identity, timestamps and the initial board phase when
	// the document does not carry them yet.
	Create(ctx context.Context, deal model.Deal) (*model.Deal, error)
	// Update applies patch to the stored document and stamps UpdatedAt.
	Update(ctx context.Context, id string, patch model.DealPatch) (*model.Deal, error)
	Delete(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// PrepareNew fills in what a freshly created deal needs before it is
// written: an id, timestamps, a project type and its initial phase. Hunter
// call-offs entered with rows but no list get their split computed.
func PrepareNew(d model.Deal, now time.Time) model.Deal {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.ProjectType == "" {
		d.ProjectType = model.ProjectFixed
	}
	if d.DockPhase == 0 {
		d.DockPhase = model.InitialPhase(d.Source)
	}
	if d.DockFinalAssignment != "" {
		d.DockPhase = model.PhaseArchived
	}
	for i := range d.Transactions {
		if d.Transactions[i].ID == "" {
			d.Transactions[i].ID = uuid.New().String()
		}
		if d.Transactions[i].CreatedAt.IsZero() {
			d.Transactions[i].CreatedAt = now
		}
		if len(d.Transactions[i].List) == 0 {
			d.Transactions[i].List = allocation.CallOffList(d.Transactions[i])
		}
	}
	return d
}

func encodeDeal(d model.Deal) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", eris.Wrapf(err, "marshal deal %s", d.ID)
	}
	return string(data), nil
}

func decodeDeal(doc []byte) (*model.Deal, error) {
	var d model.Deal
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, eris.Wrap(err, "unmarshal deal")
	}
	return &d, nil
}

// Importer is implemented by stores that can write many deals at once,
// replacing documents whose id already exists.
type Importer interface {
	Import(ctx context.Context, deals []model.Deal) (int64, error)
}
