package eventbus

import (
	"inkwell-server-go/internal/domain/upload"
)

// Source adapts the per-session gesture topics to the orchestrator's
// event source contract, so Attach/Detach subscribe and unsubscribe on
// the bus. The publish side is PublishDrop/PublishPaste.
type Source struct {
	sessionID string
}

// NewSource creates an event source scoped to one session.
func NewSource(sessionID string) *Source {
	return &Source{sessionID: sessionID}
}

// OnDrop subscribes to this session's drop gestures.
func (s *Source) OnDrop(h func(upload.DropEvent)) func() {
	topic := DropTopic(s.sessionID)
	fn := func(event upload.DropEvent) { h(event) }
	Subscribe(topic, fn)
	return func() {
		Unsubscribe(topic, fn)
	}
}

// OnPaste subscribes to this session's paste gestures.
func (s *Source) OnPaste(h func(upload.PasteEvent)) func() {
	topic := PasteTopic(s.sessionID)
	fn := func(event upload.PasteEvent) { h(event) }
	Subscribe(topic, fn)
	return func() {
		Unsubscribe(topic, fn)
	}
}

// PublishDrop emits one drop gesture for the session.
func PublishDrop(sessionID string, event upload.DropEvent) {
	Publish(DropTopic(sessionID), event)
}

// PublishPaste emits one paste gesture for the session.
func PublishPaste(sessionID string, event upload.PasteEvent) {
	Publish(PasteTopic(sessionID), event)
}
