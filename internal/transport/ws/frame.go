package ws

import (
	"encoding/base64"

	"github.com/bytedance/sonic"

	"inkwell-server-go/internal/domain/upload"
	"inkwell-server-go/internal/platform/logging"
)

// Client to server frame types.
const (
	FrameSelect     = "select"
	FrameDrop       = "drop"
	FramePaste      = "paste"
	FrameSelection  = "selection"
	FramePickResult = "pick-result"
)

// Server to client frame types.
const (
	FrameInsert = "insert"
	FrameAlert  = "alert"
	FramePicked = "picked"
)

// FilePayload is one file crossing the wire, bytes base64-encoded.
type FilePayload struct {
	Name string `json:"name"`
	MIME string `json:"mime,omitempty"`
	Data string `json:"data"`
}

// ClientFrame is the union of everything a client may send. Type
// selects which of the remaining fields are meaningful.
type ClientFrame struct {
	Type string `json:"type"`
	// Files carries the payloads of drop, paste, and pick-result frames.
	Files []FilePayload `json:"files,omitempty"`
	// Index is the cursor position of a selection frame; absent clears
	// the selection.
	Index *int `json:"index,omitempty"`
	// Caret is the drop target index computed by the client, when it
	// has one.
	Caret *int `json:"caret,omitempty"`
	// ID correlates a pick-result with its picked request.
	ID string `json:"id,omitempty"`
}

// InsertFrame mirrors one embed insertion to the client.
type InsertFrame struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Embed   string `json:"embed"`
	Payload any    `json:"payload"`
	Source  string `json:"source"`
}

// AlertFrame surfaces a user-facing message.
type AlertFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PickFrame asks the client to open its native file dialog and answer
// with a pick-result carrying the same id.
type PickFrame struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Accept string `json:"accept"`
}

// EncodeFrame serializes a frame for the wire.
func EncodeFrame(frame any) ([]byte, error) {
	return sonic.Marshal(frame)
}

// DecodeClientFrame parses one inbound frame.
func DecodeClientFrame(raw []byte) (ClientFrame, error) {
	var frame ClientFrame
	err := sonic.Unmarshal(raw, &frame)
	return frame, err
}

// DecodeFiles converts wire payloads to upload files. Entries whose
// data does not decode are dropped rather than failing the whole frame.
func DecodeFiles(payloads []FilePayload, logger *logging.Logger) []upload.File {
	var files []upload.File
	for _, payload := range payloads {
		data, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			if logger != nil {
				logger.Warn("dropping file %q with undecodable payload: %v", payload.Name, err)
			}
			continue
		}
		files = append(files, upload.File{
			Name: payload.Name,
			MIME: payload.MIME,
			Data: data,
		})
	}
	return files
}

// EncodeFiles converts upload files to wire payloads.
func EncodeFiles(files []upload.File) []FilePayload {
	payloads := make([]FilePayload, 0, len(files))
	for _, file := range files {
		payloads = append(payloads, FilePayload{
			Name: file.Name,
			MIME: file.MIME,
			Data: base64.StdEncoding.EncodeToString(file.Data),
		})
	}
	return payloads
}
