package repository

import (
	"context"

	"inkwell-server-go/internal/domain/attach/aggregate"
)

// AttachmentRepository persists stored editor uploads.
type AttachmentRepository interface {
	// Save stores a new attachment record.
	Save(ctx context.Context, attachment *aggregate.Attachment) error

	// FindByID looks up an attachment by its id. Missing records return (nil, nil).
	FindByID(ctx context.Context, id string) (*aggregate.Attachment, error)

	// FindByHash looks up an attachment by content hash. Missing records return (nil, nil).
	FindByHash(ctx context.Context, hash string) (*aggregate.Attachment, error)

	// ListRecent returns up to limit attachments, newest first.
	ListRecent(ctx context.Context, limit int) ([]*aggregate.Attachment, error)

	// CountAll reports the number of stored attachments.
	CountAll(ctx context.Context) (int64, error)

	// Delete removes an attachment record by id.
	Delete(ctx context.Context, id string) error
}
