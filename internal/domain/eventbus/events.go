package eventbus

// Event topics. Editor gesture topics are scoped per session via
// DropTopic/PasteTopic; upload and session topics are global.
const (
	EventEditorDrop  = "editor:drop"
	EventEditorPaste = "editor:paste"

	EventUploadAccepted  = "upload:accepted"
	EventUploadCompleted = "upload:completed"
	EventUploadFailed    = "upload:failed"

	EventSessionOpened = "session:opened"
	EventSessionClosed = "session:closed"
)

// DropTopic returns the per-session drop gesture topic.
func DropTopic(sessionID string) string {
	return EventEditorDrop + ":" + sessionID
}

// PasteTopic returns the per-session paste gesture topic.
func PasteTopic(sessionID string) string {
	return EventEditorPaste + ":" + sessionID
}

// UploadEventData is the payload of the upload:* topics.
type UploadEventData struct {
	SessionID    string `json:"session_id"`
	AttachmentID string `json:"attachment_id,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	Size         int64  `json:"size,omitempty"`
	URL          string `json:"url,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// SessionEventData is the payload of the session:* topics.
type SessionEventData struct {
	SessionID  string `json:"session_id"`
	RemoteAddr string `json:"remote_addr,omitempty"`
}
