package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/quill-be/internal/models"
	"github.com/jmoiron/sqlx"
)

// Event types recorded by the services.
const (
	EventUserRegistered = "user.registered"
	EventPostCreated    = "post.created"
	EventCommentCreated = "comment.created"
	EventEventsPruned   = "system.events.pruned"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, userID *int64) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// EventService provides business logic for the activity log.
type EventService struct {
	db *sqlx.DB
}

// NewEventService creates a new EventService.
func NewEventService(db *sqlx.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, userID *int64) error {
	event := models.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Level:   level,
		Message: message,
		UserID:  userID,
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, type, level, message, user_id) VALUES (?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.UserID)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", eventType, err)
	}
	return nil
}

// GetRecentEvents retrieves the most recent events, newest first.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	events := []models.Event{}
	err := s.db.SelectContext(ctx, &events,
		"SELECT id, type, level, message, user_id, created_at FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// PruneEvents deletes events older than the given age and returns how many were removed.
func (s *EventService) PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	modifier := fmt.Sprintf("-%d seconds", int64(olderThan.Seconds()))
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE created_at < datetime('now', ?)", modifier)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}
