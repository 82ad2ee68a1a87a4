package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"inkwell-server-go/internal/domain/editor"
	"inkwell-server-go/internal/domain/eventbus"
	"inkwell-server-go/internal/domain/upload"
	"inkwell-server-go/internal/platform/errors"
	"inkwell-server-go/internal/platform/logging"
)

// pickTimeout bounds the pick round trip. The upload chain itself never
// times out; this guards the server against clients that go silent
// after a picked frame.
const pickTimeout = 2 * time.Minute

// EditorSessionOptions configures one relay session.
type EditorSessionOptions struct {
	Logger *logging.Logger
	// Upload is the orchestrator configuration template. The session
	// binds its own notifier and, when unset, a callback that unwraps
	// {"url": ...} upload responses.
	Upload upload.Config
}

// EditorSession is the server half of one connected editor: it owns the
// document of record and an attached upload orchestrator, decodes
// inbound gesture frames, and mirrors document mutations back to the
// client. It implements upload.Notifier through alert frames and
// upload.FilePicker through the picked/pick-result round trip.
type EditorSession struct {
	conn   *Connection
	doc    *editor.Document
	orch   *upload.Orchestrator
	logger *logging.Logger

	pickMu  sync.Mutex
	pending map[string]chan []upload.File

	stop     chan struct{}
	stopOnce sync.Once
}

// NewEditorSession builds the session for an upgraded connection.
func NewEditorSession(conn *Connection, opts EditorSessionOptions) (*EditorSession, error) {
	if conn == nil {
		return nil, errors.New(errors.KindConfig, "ws.session", "connection is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	session := &EditorSession{
		conn:    conn,
		doc:     editor.NewDocument(""),
		logger:  logger,
		pending: make(map[string]chan []upload.File),
		stop:    make(chan struct{}),
	}

	cfg := opts.Upload
	cfg.Notifier = session
	if cfg.CallbackOK == nil {
		cfg.CallbackOK = func(payload any, insert upload.InsertFunc) {
			// Upload sinks answer {"url": ...}; embed the bare URL.
			if body, ok := payload.(map[string]any); ok {
				if url, ok := body["url"].(string); ok && url != "" {
					insert(url)
					return
				}
			}
			insert(payload)
		}
	}

	orch, err := upload.New(&relayEditor{
		Document: session.doc,
		bus:      eventbus.NewSource(conn.ID()),
		session:  session,
	}, cfg, upload.Options{
		Logger: logger,
		Picker: session,
	})
	if err != nil {
		return nil, err
	}
	session.orch = orch

	return session, nil
}

// SessionID implements SessionHandler.
func (s *EditorSession) SessionID() string {
	return s.conn.ID()
}

// Document exposes the session's document of record.
func (s *EditorSession) Document() *editor.Document {
	return s.doc
}

// Handle attaches the orchestrator and runs the frame loop until the
// connection drops. Deferred document tasks drain after every frame,
// which is the session's notion of a tick.
func (s *EditorSession) Handle() {
	s.orch.Attach()

	eventbus.Publish(eventbus.EventSessionOpened, eventbus.SessionEventData{
		SessionID:  s.SessionID(),
		RemoteAddr: s.conn.RemoteAddr(),
	})
	defer eventbus.Publish(eventbus.EventSessionClosed, eventbus.SessionEventData{
		SessionID: s.SessionID(),
	})

	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.DebugTag("WS", "session %s read loop ended: %v", s.SessionID(), err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleFrame(payload)
		s.doc.RunDeferred()
	}
}

// Close implements SessionHandler. Detaches the orchestrator and
// releases every parked pick round trip.
func (s *EditorSession) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.orch.Detach()
	})
}

func (s *EditorSession) handleFrame(raw []byte) {
	frame, err := DecodeClientFrame(raw)
	if err != nil {
		s.logger.WarnTag("WS", "session %s: undecodable frame: %v", s.SessionID(), err)
		return
	}

	switch frame.Type {
	case FrameSelect:
		// The image action blocks on the pick round trip; keep the
		// read loop free to deliver the pick-result.
		go s.doc.Trigger("image")

	case FrameDrop:
		files := DecodeFiles(frame.Files, s.logger)
		s.publishAccepted(files)
		eventbus.PublishDrop(s.SessionID(), upload.DropEvent{
			Files:      files,
			CaretIndex: frame.Caret,
		})

	case FramePaste:
		files := DecodeFiles(frame.Files, s.logger)
		s.publishAccepted(files)
		eventbus.PublishPaste(s.SessionID(), upload.PasteEvent{
			Files: files,
		})

	case FrameSelection:
		if frame.Index != nil {
			s.doc.SetSelection(*frame.Index)
		} else {
			s.doc.ClearSelection()
		}

	case FramePickResult:
		files := DecodeFiles(frame.Files, s.logger)
		s.publishAccepted(files)
		s.resolvePick(frame.ID, files)

	default:
		s.logger.WarnTag("WS", "session %s: unknown frame type %q", s.SessionID(), frame.Type)
	}
}

// publishAccepted journals every file entering intake through this
// session.
func (s *EditorSession) publishAccepted(files []upload.File) {
	for _, file := range files {
		eventbus.Publish(eventbus.EventUploadAccepted, eventbus.UploadEventData{
			SessionID: s.SessionID(),
			FileName:  file.Name,
			Size:      int64(len(file.Data)),
		})
	}
}

// Pick implements upload.FilePicker: send a picked frame and wait for
// the matching pick-result.
func (s *EditorSession) Pick(ctx context.Context, accept string) ([]upload.File, error) {
	id := uuid.NewString()
	reply := make(chan []upload.File, 1)

	s.pickMu.Lock()
	s.pending[id] = reply
	s.pickMu.Unlock()
	defer func() {
		s.pickMu.Lock()
		delete(s.pending, id)
		s.pickMu.Unlock()
	}()

	if err := s.send(PickFrame{Type: FramePicked, ID: id, Accept: accept}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(pickTimeout)
	defer timer.Stop()

	select {
	case files := <-reply:
		return files, nil
	case <-timer.C:
		return nil, ErrPickTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stop:
		return nil, ErrSessionShutdown
	}
}

func (s *EditorSession) resolvePick(id string, files []upload.File) {
	s.pickMu.Lock()
	reply, ok := s.pending[id]
	delete(s.pending, id)
	s.pickMu.Unlock()

	if !ok {
		s.logger.WarnTag("WS", "session %s: pick-result %q matches no pending pick", s.SessionID(), id)
		return
	}
	reply <- files
}

// Alert implements upload.Notifier: failures surface as alert frames.
func (s *EditorSession) Alert(message string) {
	if err := s.send(AlertFrame{Type: FrameAlert, Message: message}); err != nil {
		s.logger.WarnTag("WS", "session %s: alert frame dropped: %v", s.SessionID(), err)
	}
}

func (s *EditorSession) sendInsert(index int, embedType string, payload any, source upload.Source) {
	err := s.send(InsertFrame{
		Type:    FrameInsert,
		Index:   index,
		Embed:   embedType,
		Payload: payload,
		Source:  string(source),
	})
	if err != nil {
		s.logger.WarnTag("WS", "session %s: insert frame dropped: %v", s.SessionID(), err)
	}
}

func (s *EditorSession) send(frame any) error {
	data, err := EncodeFrame(frame)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// relayEditor is the editor the orchestrator binds: the in-memory
// document for state, the session-scoped bus topics for gestures, and
// the session for mirroring insertions to the client.
type relayEditor struct {
	*editor.Document
	bus     *eventbus.Source
	session *EditorSession
}

// InsertEmbed applies the insertion to the document and mirrors it to
// the connected client.
func (e *relayEditor) InsertEmbed(index int, embedType string, payload any, source upload.Source) {
	e.Document.InsertEmbed(index, embedType, payload, source)
	e.session.sendInsert(index, embedType, payload, source)
}

// OnDrop subscribes through the session's bus topic.
func (e *relayEditor) OnDrop(h func(upload.DropEvent)) func() {
	return e.bus.OnDrop(h)
}

// OnPaste subscribes through the session's bus topic.
func (e *relayEditor) OnPaste(h func(upload.PasteEvent)) func() {
	return e.bus.OnPaste(h)
}
