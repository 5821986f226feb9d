package usecase

import (
	"context"
	"fmt"

	"astro-events/internal/data/entity"
	"astro-events/internal/data/repository"
	"astro-events/internal/dto/request"
	"astro-events/internal/dto/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventService interface {
	ListEvents(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.EventResponse], error)
	GetEvent(ctx context.Context, eventID string) (*response.EventResponse, error)
}

type eventService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewEventService(repo *repository.Repository, log *zap.Logger) EventService {
	return &eventService{
		repo: repo,
		log:  log.With(zap.String("service", "event")),
	}
}

func (s *eventService) ListEvents(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.EventResponse], error) {
	events, err := s.repo.Event.FindActive(ctx, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list events", zap.Error(err))
		return nil, fmt.Errorf("list events: %w", err)
	}

	total, err := s.repo.Event.CountActive(ctx)
	if err != nil {
		s.log.Error("Failed to count events", zap.Error(err))
		return nil, fmt.Errorf("count events: %w", err)
	}

	responses := make([]response.EventResponse, len(events))
	for i, event := range events {
		// Unlocked occupancy read: fine for display, never for admission.
		occupied, err := s.repo.Event.CountOccupied(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("count occupied for event %s: %w", event.ID.String(), err)
		}
		responses[i] = response.EventToResponse(event, occupied)
	}

	return response.NewPaginatedResponse(responses, req.Page, req.PerPage, total), nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*response.EventResponse, error) {
	eventUUID, err := uuid.Parse(eventID)
	if err != nil {
		return nil, fmt.Errorf("invalid event ID format %s: %w", eventID, err)
	}

	event, err := s.repo.Event.FindByID(ctx, eventUUID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, entity.ErrNotFound)
	}

	occupied, err := s.repo.Event.CountOccupied(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("count occupied for event %s: %w", eventID, err)
	}

	resp := response.EventToResponse(event, occupied)
	return &resp, nil
}
