package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"inkwell-server-go/internal/domain/eventbus/repository"
	"inkwell-server-go/internal/domain/upload"
	platformtesting "inkwell-server-go/internal/platform/testing"
)

func TestSource_ScopedToSession(t *testing.T) {
	source := NewSource("session-a")

	var mu sync.Mutex
	var got []upload.DropEvent
	unsubscribe := source.OnDrop(func(event upload.DropEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event)
	})
	defer unsubscribe()

	PublishDrop("session-a", upload.DropEvent{Files: []upload.File{{Name: "a.png", MIME: "image/png"}}})
	PublishDrop("session-b", upload.DropEvent{Files: []upload.File{{Name: "b.png", MIME: "image/png"}}})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("subscriber received %d events, want 1", len(got))
	}
	if got[0].Files[0].Name != "a.png" {
		t.Fatalf("subscriber received %q, want the session-a event", got[0].Files[0].Name)
	}
}

func TestSource_UnsubscribeStopsDelivery(t *testing.T) {
	source := NewSource("session-unsub")

	received := 0
	unsubscribe := source.OnPaste(func(event upload.PasteEvent) {
		received++
	})

	PublishPaste("session-unsub", upload.PasteEvent{})
	unsubscribe()
	PublishPaste("session-unsub", upload.PasteEvent{})

	if received != 1 {
		t.Fatalf("subscriber received %d events after unsubscribe, want 1", received)
	}
}

func TestSource_DrivesOrchestratorAttach(t *testing.T) {
	// busEditor couples a recording editor with the bus-backed source, the
	// same wiring the ws relay session uses.
	rec := &recordingEditor{inserts: make(chan any, 1)}
	bed := &busEditor{recordingEditor: rec, source: NewSource("session-bus")}

	orchestrator, err := upload.New(bed, upload.Config{}, upload.Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	orchestrator.Attach()

	PublishPaste("session-bus", upload.PasteEvent{Files: []upload.File{
		{Name: "p.png", MIME: "image/png", Data: []byte("x")},
	}})

	select {
	case <-rec.inserts:
	case <-time.After(2 * time.Second):
		t.Fatal("bus gesture never reached the document")
	}

	orchestrator.Detach()
	PublishPaste("session-bus", upload.PasteEvent{Files: []upload.File{
		{Name: "late.png", MIME: "image/png", Data: []byte("x")},
	}})
	select {
	case <-rec.inserts:
		t.Fatal("detached orchestrator still received bus gestures")
	case <-time.After(150 * time.Millisecond):
	}
}

type recordingEditor struct {
	inserts chan any
}

func (e *recordingEditor) Selection() (int, bool) { return 0, false }
func (e *recordingEditor) Length() int            { return 0 }
func (e *recordingEditor) InsertEmbed(index int, embedType string, payload any, source upload.Source) {
	e.inserts <- payload
}
func (e *recordingEditor) RegisterHandler(action string, h func()) func() {
	return func() {}
}

type busEditor struct {
	*recordingEditor
	source *Source
}

func (b *busEditor) OnDrop(h func(upload.DropEvent)) func()   { return b.source.OnDrop(h) }
func (b *busEditor) OnPaste(h func(upload.PasteEvent)) func() { return b.source.OnPaste(h) }

type fakeJournal struct {
	mu     sync.Mutex
	stored []repository.Event
}

func (f *fakeJournal) Store(ctx context.Context, event repository.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, event)
	return nil
}

func (f *fakeJournal) FindBySessionID(ctx context.Context, sessionID string) ([]repository.Event, error) {
	return nil, nil
}

func (f *fakeJournal) FindByEventType(ctx context.Context, eventType string, limit int) ([]repository.Event, error) {
	return nil, nil
}

func (f *fakeJournal) DeleteOldEvents(ctx context.Context, beforeTime time.Time) error {
	return nil
}

func (f *fakeJournal) GetEventStats(ctx context.Context) (map[string]int64, error) {
	return nil, nil
}

func TestDefaultEventHandler_JournalsUploadEvents(t *testing.T) {
	logger := platformtesting.SetupTestLogger(t)
	journal := &fakeJournal{}
	handler := NewDefaultEventHandler(logger, journal)

	handler.Handle(EventUploadCompleted, UploadEventData{
		SessionID:    "s-1",
		AttachmentID: "a-1",
		FileName:     "img.png",
		URL:          "http://localhost/attachments/img.png",
	})

	if len(journal.stored) != 1 {
		t.Fatalf("journal has %d events, want 1", len(journal.stored))
	}
	if journal.stored[0].EventType != EventUploadCompleted {
		t.Fatalf("journaled type = %s", journal.stored[0].EventType)
	}
	if journal.stored[0].AttachmentID != "a-1" {
		t.Fatalf("journaled attachment = %s", journal.stored[0].AttachmentID)
	}
}

func TestDefaultEventHandler_IgnoresForeignPayload(t *testing.T) {
	logger := platformtesting.SetupTestLogger(t)
	journal := &fakeJournal{}
	handler := NewDefaultEventHandler(logger, journal)

	handler.Handle(EventUploadFailed, "not the right struct")
	handler.Handle("something:else", 42)

	if len(journal.stored) != 0 {
		t.Fatalf("journal has %d events, want 0", len(journal.stored))
	}
}
