package http

import (
	"net/http"
	"strconv"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/report"
	"patrimonio/internal/services"
)

// handleProject runs a projection synchronously and returns its result.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeProjection(w, r)
	if !ok {
		return
	}

	res, hit, err := s.projections.Project(r.Context(), in)
	if err != nil {
		s.fail(w, r, log.OpSimulate, err)
		return
	}

	cacheHeader := "MISS"
	if hit {
		cacheHeader = "HIT"
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Projection served",
		log.FieldSeed, res.Seed,
		log.FieldSamples, res.Config.SampleCount,
		log.FieldHorizon, res.Config.HorizonYears,
		log.FieldSuccessProbability, res.Goal.SuccessProbability,
		log.FieldCacheHit, hit)

	NewJSONResponse().
		Header("X-Cache", cacheHeader).
		Header("X-Projection-Seed", strconv.FormatUint(res.Seed, 10)).
		Body(res).
		Write(w)
}

// handleEnqueueProjection queues an asynchronous run and answers 202.
func (s *Server) handleEnqueueProjection(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeProjection(w, r)
	if !ok {
		return
	}

	run, err := s.projections.Enqueue(r.Context(), in, 0)
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

func (s *Server) decodeProjection(w http.ResponseWriter, r *http.Request) (in services.ProjectionInput, ok bool) {
	var payload ProjectionPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		ServiceError(err).Write(w)
		return in, false
	}
	opts := s.parse
	opts.StartYear = s.now().Year()
	input, err := payload.Input(opts)
	if err != nil {
		ServiceError(err).Write(w)
		return in, false
	}
	return input, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.projections.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(run).Write(w)
}

// handleRunReport renders a finished run as markdown.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	run, err := s.projections.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	switch {
	case run.Status == core.RunFailed:
		ConflictError("run failed: " + run.Error).Write(w)
		return
	case run.Status != core.RunDone || run.Result == nil:
		ConflictError("run is " + string(run.Status)).Write(w)
		return
	}

	label := "Proiezione " + run.ID
	if run.PlanID != 0 {
		label = "Piano " + strconv.FormatInt(run.PlanID, 10) + ", proiezione " + run.ID
	}
	md, err := report.Markdown(label, run.Result)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}
