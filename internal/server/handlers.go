package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/dealdock/internal/allocation"
	"github.com/sells-group/dealdock/internal/calloff"
	"github.com/sells-group/dealdock/internal/dock"
	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/report"
	"github.com/sells-group/dealdock/internal/store"
)

// maxBody caps request bodies.
const maxBody = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dock.ErrTerminal), errors.Is(err, dock.ErrWrongPhase):
		return http.StatusConflict
	case errors.Is(err, dock.ErrNotReady),
		errors.Is(err, dock.ErrInvalidAllocation),
		errors.Is(err, dock.ErrInvalidAssignment),
		errors.Is(err, dock.ErrInvalidLifecycle):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("component", "server"),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

func (s *Server) handleGetDeal(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCreateDeal(w http.ResponseWriter, r *http.Request) {
	var d model.Deal
	if !decode(w, r, &d) {
		return
	}
	created, err := s.store.Create(r.Context(), d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.board.Trigger()
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateDeal is the raw document update used by pkg/kvstore. Board
// fields pass through when they have a shape the engine would commit.
func (s *Server) handleUpdateDeal(w http.ResponseWriter, r *http.Request) {
	var patch model.DealPatch
	if !decode(w, r, &patch) {
		return
	}
	if err := dock.CheckLifecyclePatch(patch); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.board.Trigger()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteDeal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.engine.Evict(r.Context(), id)
	s.board.Trigger()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	hint, ok := s.engine.Hints().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no conflict check recorded")
		return
	}
	writeJSON(w, http.StatusOK, hint)
}

type readinessResponse struct {
	Ready   bool        `json:"ready"`
	Reasons []string    `json:"reasons"`
	Phase   model.Phase `json:"phase"`
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	reasons := dock.Reasons(*d)
	if reasons == nil {
		reasons = []string{}
	}
	writeJSON(w, http.StatusOK, readinessResponse{Ready: len(reasons) == 0, Reasons: reasons, Phase: d.DockPhase})
}

func (s *Server) handleActuals(w http.ResponseWriter, r *http.Request) {
	win, err := calloff.ParseWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if d.ProjectType != model.ProjectFramework {
		writeError(w, http.StatusUnprocessableEntity, "deal is not a framework contract")
		return
	}
	writeJSON(w, http.StatusOK, calloff.AggregateActuals(*d, win))
}

type computeRequest struct {
	Rows    []model.Row    `json:"rows"`
	Weights []model.Weight `json:"weights"`
	Amount  float64        `json:"amount"`
	Preview bool           `json:"preview"`
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, allocation.Compute(req.Rows, req.Weights, req.Amount, req.Preview))
}

type allocateResponse struct {
	Deal       *model.Deal            `json:"deal"`
	Violations []allocation.Violation `json:"violations"`
}

// handleAllocate recomputes the final split from the deal's stored rows and
// weights, and each hunter call-off's split from its own rows, and saves them.
func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_, patch := allocation.Plan(*d)
	updated, err := s.store.Update(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.board.Trigger()

	violations := allocation.Validate(updated.Rows, updated.Weights)
	if violations == nil {
		violations = []allocation.Violation{}
	}
	writeJSON(w, http.StatusOK, allocateResponse{Deal: updated, Violations: violations})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.board.Trigger()
	writeJSON(w, http.StatusOK, d)
}

type finalizeRequest struct {
	Assignment   model.Assignment `json:"assignment"`
	RewardFactor float64          `json:"rewardFactor"`
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := s.engine.Finalize(r.Context(), chi.URLParam(r, "id"), req.Assignment, req.RewardFactor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.board.Trigger()
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleBoardPass(w http.ResponseWriter, r *http.Request) {
	rep, err := s.board.Pass(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type boardResponse struct {
	Last   *dock.PassReport     `json:"last,omitempty"`
	Queues map[string]int       `json:"queues"`
	Hints  []model.ConflictHint `json:"conflicts"`
}

func (s *Server) handleBoard(w http.ResponseWriter, _ *http.Request) {
	resp := boardResponse{
		Queues: s.engine.QueueDepths(),
		Hints:  s.engine.Hints().All(),
	}
	if last, ok := s.board.Last(); ok {
		resp.Last = &last
	}
	if resp.Hints == nil {
		resp.Hints = []model.ConflictHint{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	win, err := calloff.ParseWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deals, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Build(deals, s.people, win))
}
