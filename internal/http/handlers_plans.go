package http

import (
	"net/http"
	"strconv"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if plans == nil {
		plans = []core.Plan{}
	}
	NewJSONResponse().Body(plans).Write(w)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var payload PlanPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		ServiceError(err).Write(w)
		return
	}
	p, err := payload.Plan(s.parse)
	if err != nil {
		ServiceError(err).Write(w)
		return
	}

	created, err := s.plans.Create(r.Context(), p)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/plans/"+strconv.FormatInt(created.ID, 10)).
		Body(created).
		Write(w)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ServiceError(err).Write(w)
		return
	}
	p, err := s.plans.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(p).Write(w)
}

// handleProjectPlan queues a run for a saved plan outside its cadence.
func (s *Server) handleProjectPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ServiceError(err).Write(w)
		return
	}
	run, err := s.plans.Project(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpEnqueue, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusAccepted).
		Header("Location", "/api/projections/runs/"+run.ID).
		Body(run).
		Write(w)
}
