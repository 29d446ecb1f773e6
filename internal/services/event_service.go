package services

import (
	"context"
	"fmt"
	"strings"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/ports"
)

// EventService manages the saved life events applied to projections.
type EventService struct {
	store  ports.LifeEventStore
	logger *log.Logger
}

func NewEventService(store ports.LifeEventStore, logger *log.Logger) *EventService {
	if logger == nil {
		logger = log.Default()
	}
	return &EventService{store: store, logger: logger.WithComponent(log.ComponentEvents)}
}

// List returns the saved events ordered by calendar year.
func (s *EventService) List(ctx context.Context) ([]core.LifeEvent, error) {
	events, err := s.store.ListLifeEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list life events: %w", err)
	}
	return events, nil
}

func (s *EventService) Create(ctx context.Context, e core.LifeEvent) (core.LifeEvent, error) {
	e.Name = strings.TrimSpace(e.Name)
	e.ID = 0
	if err := e.Validate(); err != nil {
		return core.LifeEvent{}, err
	}
	created, err := s.store.CreateLifeEvent(ctx, e)
	if err != nil {
		return core.LifeEvent{}, fmt.Errorf("save life event: %w", err)
	}
	s.logger.InfoContext(ctx, "Life event saved",
		log.FieldEventID, created.ID,
		log.FieldOperation, log.OpCreate,
		"calendar_year", created.CalendarYear,
		"kind", created.Kind,
		"amount_cents", created.Amount.Cents)
	return created, nil
}

func (s *EventService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteLifeEvent(ctx, id); err != nil {
		return fmt.Errorf("delete life event: %w", err)
	}
	s.logger.InfoContext(ctx, "Life event deleted", log.FieldEventID, id, log.FieldOperation, log.OpDelete)
	return nil
}
