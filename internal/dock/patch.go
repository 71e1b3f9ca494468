package dock

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdock/internal/model"
)

// ErrInvalidLifecycle is returned for a raw document update whose board
// fields would break the phase and assignment pairing.
var ErrInvalidLifecycle = eris.New("invalid lifecycle fields")

// CheckLifecyclePatch validates the board fields of a raw document update.
// The document API is the persistence layer the engine itself commits
// through, so it accepts lifecycle writes, but only in the shapes the engine
// produces: a known phase, and a final assignment only together with the
// archived phase.
func CheckLifecyclePatch(p model.DealPatch) error {
	if p.DockPhase != nil && !p.DockPhase.Valid() {
		return eris.Wrapf(ErrInvalidLifecycle, "dock: phase %d", int(*p.DockPhase))
	}
	archiving := p.DockPhase != nil && *p.DockPhase == model.PhaseArchived
	if p.DockFinalAssignment != nil {
		if !p.DockFinalAssignment.Valid() {
			return eris.Wrapf(ErrInvalidAssignment, "dock: %q", *p.DockFinalAssignment)
		}
		if !archiving {
			return eris.Wrap(ErrInvalidLifecycle, "dock: final assignment without archived phase")
		}
	}
	if archiving && p.DockFinalAssignment == nil {
		return eris.Wrap(ErrInvalidLifecycle, "dock: archived phase without final assignment")
	}
	return nil
}
