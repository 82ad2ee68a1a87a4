package aggregate

import (
	"time"

	"github.com/google/uuid"

	"inkwell-server-go/internal/platform/errors"
)

// Attachment is a stored editor image upload.
type Attachment struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	FileName  string         `json:"fileName"`
	Format    string         `json:"format"`
	Size      int64          `json:"size"`
	Hash      string         `json:"hash"`     // sha256 of the content, hex
	URL       string         `json:"url"`      // public address of the stored blob
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewAttachment creates an attachment record for freshly stored content.
func NewAttachment(sessionID, fileName, format string, size int64, hash string) (*Attachment, error) {
	if fileName == "" {
		return nil, errors.New(errors.KindDomain, "attachment.new", "file name cannot be empty")
	}
	if size <= 0 {
		return nil, errors.New(errors.KindDomain, "attachment.new", "size must be positive")
	}
	if hash == "" {
		return nil, errors.New(errors.KindDomain, "attachment.new", "content hash cannot be empty")
	}

	return &Attachment{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		FileName:  fileName,
		Format:    format,
		Size:      size,
		Hash:      hash,
		CreatedAt: time.Now(),
	}, nil
}

// SetURL records where the stored blob is reachable.
func (a *Attachment) SetURL(url string) {
	a.URL = url
}

// WithMetadata merges extra descriptive fields onto the attachment.
func (a *Attachment) WithMetadata(fields map[string]any) *Attachment {
	if len(fields) == 0 {
		return a
	}
	if a.Metadata == nil {
		a.Metadata = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		a.Metadata[k] = v
	}
	return a
}
