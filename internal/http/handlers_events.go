package http

import (
	"net/http"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.List(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if events == nil {
		events = []core.LifeEvent{}
	}
	NewJSONResponse().Body(events).Write(w)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var payload LifeEventPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		ServiceError(err).Write(w)
		return
	}
	e, err := payload.LifeEvent()
	if err != nil {
		ServiceError(err).Write(w)
		return
	}

	created, err := s.events.Create(r.Context(), e)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ServiceError(err).Write(w)
		return
	}
	if err := s.events.Delete(r.Context(), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
