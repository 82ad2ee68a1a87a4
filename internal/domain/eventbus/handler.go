package eventbus

import (
	"context"
	"time"

	"inkwell-server-go/internal/domain/eventbus/repository"
	"inkwell-server-go/internal/platform/logging"
)

// EventHandler handles bus events by type.
type EventHandler interface {
	Handle(eventType string, data interface{})
}

// DefaultEventHandler logs upload outcomes and session lifecycle, and
// journals upload events when a repository is wired.
type DefaultEventHandler struct {
	logger *logging.Logger
	events repository.EventRepository
}

// NewDefaultEventHandler creates the default handler. events may be nil;
// journaling is then skipped.
func NewDefaultEventHandler(logger *logging.Logger, events repository.EventRepository) *DefaultEventHandler {
	return &DefaultEventHandler{
		logger: logger,
		events: events,
	}
}

// Handle dispatches one event.
func (h *DefaultEventHandler) Handle(eventType string, data interface{}) {
	switch eventType {
	case EventUploadAccepted, EventUploadCompleted, EventUploadFailed:
		payload, ok := data.(UploadEventData)
		if !ok {
			h.logger.WarnTag("EventBus", "unexpected payload %T on %s", data, eventType)
			return
		}
		h.handleUpload(eventType, payload)

	case EventSessionOpened, EventSessionClosed:
		payload, ok := data.(SessionEventData)
		if !ok {
			h.logger.WarnTag("EventBus", "unexpected payload %T on %s", data, eventType)
			return
		}
		h.logger.InfoTag("EventBus", "%s: session=%s remote=%s", eventType, payload.SessionID, payload.RemoteAddr)

	default:
		h.logger.DebugTag("EventBus", "unhandled event type: %s", eventType)
	}
}

func (h *DefaultEventHandler) handleUpload(eventType string, data UploadEventData) {
	switch eventType {
	case EventUploadFailed:
		h.logger.WarnTag("EventBus", "upload failed: session=%s file=%s reason=%s",
			data.SessionID, data.FileName, data.Reason)
	case EventUploadCompleted:
		h.logger.InfoTag("EventBus", "upload completed: session=%s file=%s url=%s",
			data.SessionID, data.FileName, data.URL)
	default:
		h.logger.InfoTag("EventBus", "upload accepted: session=%s file=%s size=%d",
			data.SessionID, data.FileName, data.Size)
	}

	if h.events == nil {
		return
	}
	event := repository.Event{
		EventType:    eventType,
		SessionID:    data.SessionID,
		AttachmentID: data.AttachmentID,
		Data:         data,
		CreatedAt:    time.Now(),
	}
	if err := h.events.Store(context.Background(), event); err != nil {
		h.logger.ErrorTag("EventBus", "failed to journal %s: %v", eventType, err)
	}
}

// SetupEventHandlers installs the default handler on every upload and
// session topic of the shared bus.
func SetupEventHandlers(logger *logging.Logger, events repository.EventRepository) {
	handler := NewDefaultEventHandler(logger, events)

	topics := []string{
		EventUploadAccepted,
		EventUploadCompleted,
		EventUploadFailed,
		EventSessionOpened,
		EventSessionClosed,
	}
	for _, topic := range topics {
		topic := topic
		Subscribe(topic, func(args ...interface{}) {
			if len(args) > 0 {
				handler.Handle(topic, args[0])
			}
		})
	}
}
