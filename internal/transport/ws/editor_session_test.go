package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"inkwell-server-go/internal/domain/eventbus"
	"inkwell-server-go/internal/domain/upload"
	platformtesting "inkwell-server-go/internal/platform/testing"
)

// serverFrame is the union of every frame the server may send, for
// client-side decoding in tests.
type serverFrame struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Embed   string `json:"embed"`
	Payload any    `json:"payload"`
	Source  string `json:"source"`
	Message string `json:"message"`
	ID      string `json:"id"`
	Accept  string `json:"accept"`
}

func newRelayServer(t *testing.T, template upload.Config) (*httptest.Server, *Hub) {
	t.Helper()

	logger := platformtesting.SetupTestLogger(t)
	hub := NewHub(logger)
	router := NewRouter(hub, logger, RouterOptions{})
	router.SetHandlerBuilder(func(conn *Connection, req *http.Request) (SessionHandler, error) {
		return NewEditorSession(conn, EditorSessionOptions{
			Logger: logger,
			Upload: template,
		})
	})

	srv := httptest.NewServer(http.HandlerFunc(router.Handle))
	t.Cleanup(func() {
		hub.CloseAll(nil)
		srv.Close()
	})
	return srv, hub
}

func dialRelay(t *testing.T, srv *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Set("Client-Id", clientID)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()

	data, err := sonic.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var frame serverFrame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return frame
}

func pngFilePayload(name string) []FilePayload {
	return EncodeFiles([]upload.File{
		{Name: name, MIME: "image/png", Data: []byte("png-payload-" + name)},
	})
}

func TestPasteInlineInsertsDataURI(t *testing.T) {
	srv, _ := newRelayServer(t, upload.Config{PastePolicy: upload.PasteInline})
	conn := dialRelay(t, srv, "inline-1")

	sendFrame(t, conn, ClientFrame{Type: FramePaste, Files: pngFilePayload("shot.png")})

	frame := readFrame(t, conn)
	if frame.Type != FrameInsert {
		t.Fatalf("Type = %q, want %q", frame.Type, FrameInsert)
	}
	if frame.Embed != "image" {
		t.Errorf("Embed = %q, want image", frame.Embed)
	}
	if frame.Source != string(upload.SourceUser) {
		t.Errorf("Source = %q, want %q", frame.Source, upload.SourceUser)
	}
	payload, _ := frame.Payload.(string)
	if !strings.HasPrefix(payload, "data:image/png;base64,") {
		t.Errorf("Payload = %q, want a png data URI", payload)
	}
	if frame.Index != 0 {
		t.Errorf("Index = %d, want 0 on an empty document", frame.Index)
	}
}

func TestSelectionDirectsInsertIndex(t *testing.T) {
	srv, _ := newRelayServer(t, upload.Config{PastePolicy: upload.PasteInline})
	conn := dialRelay(t, srv, "selection-1")

	paste := func(name string) serverFrame {
		sendFrame(t, conn, ClientFrame{Type: FramePaste, Files: pngFilePayload(name)})
		return readFrame(t, conn)
	}

	// No cursor: inserts land at the document end.
	if frame := paste("a.png"); frame.Index != 0 {
		t.Errorf("first insert Index = %d, want 0", frame.Index)
	}
	if frame := paste("b.png"); frame.Index != 1 {
		t.Errorf("second insert Index = %d, want 1", frame.Index)
	}

	// Cursor at 0 wins over the end-of-document default.
	cursor := 0
	sendFrame(t, conn, ClientFrame{Type: FrameSelection, Index: &cursor})
	if frame := paste("c.png"); frame.Index != 0 {
		t.Errorf("cursor insert Index = %d, want 0", frame.Index)
	}

	// Clearing the cursor falls back to the document end.
	sendFrame(t, conn, ClientFrame{Type: FrameSelection})
	if frame := paste("d.png"); frame.Index != 3 {
		t.Errorf("cleared-cursor insert Index = %d, want 3", frame.Index)
	}
}

func TestDropDeliversThroughCustomUploader(t *testing.T) {
	template := upload.Config{
		CustomUploader: func(file upload.File, insert upload.InsertFunc) {
			insert("https://cdn.example.com/" + file.Name)
		},
	}
	srv, _ := newRelayServer(t, template)
	conn := dialRelay(t, srv, "drop-1")

	caret := 0
	sendFrame(t, conn, ClientFrame{Type: FrameDrop, Files: pngFilePayload("dropped.png"), Caret: &caret})

	frame := readFrame(t, conn)
	if frame.Type != FrameInsert {
		t.Fatalf("Type = %q, want %q", frame.Type, FrameInsert)
	}
	if frame.Payload != "https://cdn.example.com/dropped.png" {
		t.Errorf("Payload = %v, want the uploader URL", frame.Payload)
	}
}

func TestPickRoundTrip(t *testing.T) {
	template := upload.Config{
		CustomUploader: func(file upload.File, insert upload.InsertFunc) {
			insert(file.Name)
		},
	}
	srv, _ := newRelayServer(t, template)
	conn := dialRelay(t, srv, "pick-1")

	sendFrame(t, conn, ClientFrame{Type: FrameSelect})

	pick := readFrame(t, conn)
	if pick.Type != FramePicked {
		t.Fatalf("Type = %q, want %q", pick.Type, FramePicked)
	}
	if pick.Accept != "image/*" {
		t.Errorf("Accept = %q, want image/*", pick.Accept)
	}
	if pick.ID == "" {
		t.Fatal("picked frame carries no id")
	}

	sendFrame(t, conn, ClientFrame{
		Type:  FramePickResult,
		ID:    pick.ID,
		Files: pngFilePayload("picked.png"),
	})

	insert := readFrame(t, conn)
	if insert.Type != FrameInsert {
		t.Fatalf("Type = %q, want %q", insert.Type, FrameInsert)
	}
	if insert.Payload != "picked.png" {
		t.Errorf("Payload = %v, want picked.png", insert.Payload)
	}
}

func TestUploadFailureSurfacesAsAlert(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sink offline", http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)

	srv, _ := newRelayServer(t, upload.Config{URL: failing.URL})
	conn := dialRelay(t, srv, "alert-1")

	sendFrame(t, conn, ClientFrame{Type: FramePaste, Files: pngFilePayload("doomed.png")})

	frame := readFrame(t, conn)
	if frame.Type != FrameAlert {
		t.Fatalf("Type = %q, want %q", frame.Type, FrameAlert)
	}
	if !strings.Contains(frame.Message, "[500]") {
		t.Errorf("Message = %q, want the failure code", frame.Message)
	}
}

func TestIntakeJournalsAcceptedFiles(t *testing.T) {
	accepted := make(chan eventbus.UploadEventData, 1)
	handler := func(data eventbus.UploadEventData) {
		accepted <- data
	}
	if err := eventbus.Subscribe(eventbus.EventUploadAccepted, handler); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() {
		_ = eventbus.Unsubscribe(eventbus.EventUploadAccepted, handler)
	})

	srv, _ := newRelayServer(t, upload.Config{PastePolicy: upload.PasteInline})
	conn := dialRelay(t, srv, "journal-1")

	sendFrame(t, conn, ClientFrame{Type: FramePaste, Files: pngFilePayload("note.png")})
	readFrame(t, conn)

	select {
	case data := <-accepted:
		if data.SessionID != "journal-1" || data.FileName != "note.png" {
			t.Errorf("accepted event = %+v", data)
		}
		if data.Size == 0 {
			t.Error("accepted event carries no size")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no accepted event published for the pasted file")
	}
}

func TestHubTracksSessionLifecycle(t *testing.T) {
	srv, hub := newRelayServer(t, upload.Config{PastePolicy: upload.PasteInline})
	conn := dialRelay(t, srv, "lifecycle-1")

	waitFor(t, func() bool { return hub.Count() == 1 }, "session registration")
	if session := hub.Get("lifecycle-1"); session == nil {
		t.Fatal("hub does not know session lifecycle-1")
	}

	_ = conn.Close()
	waitFor(t, func() bool { return hub.Count() == 0 }, "session removal")
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
