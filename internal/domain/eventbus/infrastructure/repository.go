package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"inkwell-server-go/internal/domain/eventbus/repository"
	"inkwell-server-go/internal/platform/errors"
	"inkwell-server-go/internal/platform/storage"
)

// eventRepository is the GORM-backed upload event journal.
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates an event journal on the given database.
func NewEventRepository(db *gorm.DB) repository.EventRepository {
	return &eventRepository{
		db: db,
	}
}

func (r *eventRepository) Store(ctx context.Context, event repository.Event) error {
	dataBytes, err := sonic.Marshal(event.Data)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "event.store.marshal", "failed to marshal event data", err)
	}

	row := &storage.UploadEvent{
		EventType:    event.EventType,
		SessionID:    event.SessionID,
		AttachmentID: event.AttachmentID,
		Data:         dataBytes,
		CreatedAt:    event.CreatedAt,
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "event.store.create", "failed to store event", err)
	}

	return nil
}

func (r *eventRepository) FindBySessionID(ctx context.Context, sessionID string) ([]repository.Event, error) {
	var rows []storage.UploadEvent
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "event.find.session", "failed to find events by session ID", err)
	}

	return r.convertRows(rows)
}

func (r *eventRepository) FindByEventType(ctx context.Context, eventType string, limit int) ([]repository.Event, error) {
	var rows []storage.UploadEvent
	query := r.db.WithContext(ctx).
		Where("event_type = ?", eventType).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "event.find.type", "failed to find events by type", err)
	}

	return r.convertRows(rows)
}

func (r *eventRepository) DeleteOldEvents(ctx context.Context, beforeTime time.Time) error {
	if err := r.db.WithContext(ctx).
		Where("created_at < ?", beforeTime).
		Delete(&storage.UploadEvent{}).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "event.delete.old", "failed to delete old events", err)
	}

	return nil
}

func (r *eventRepository) GetEventStats(ctx context.Context) (map[string]int64, error) {
	var stats []struct {
		EventType string
		Count     int64
	}

	if err := r.db.WithContext(ctx).
		Model(&storage.UploadEvent{}).
		Select("event_type, count(*) as count").
		Group("event_type").
		Scan(&stats).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "event.stats", "failed to get event stats", err)
	}

	result := make(map[string]int64)
	for _, stat := range stats {
		result[stat.EventType] = stat.Count
	}

	return result, nil
}

func (r *eventRepository) convertRows(rows []storage.UploadEvent) ([]repository.Event, error) {
	events := make([]repository.Event, len(rows))

	for i, row := range rows {
		var data interface{}
		if len(row.Data) > 0 {
			if err := sonic.Unmarshal(row.Data, &data); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "event.convert.unmarshal", "failed to unmarshal event data", err)
			}
		}

		events[i] = repository.Event{
			ID:           fmt.Sprintf("%d", row.ID),
			EventType:    row.EventType,
			SessionID:    row.SessionID,
			AttachmentID: row.AttachmentID,
			Data:         data,
			CreatedAt:    row.CreatedAt,
		}
	}

	return events, nil
}
