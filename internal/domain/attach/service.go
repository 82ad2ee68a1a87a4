// Package attach stores editor image uploads. Validated content goes to
// a blob store, repeats are answered from the dedupe index, and every
// stored attachment gets a database record.
package attach

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"inkwell-server-go/internal/domain/attach/aggregate"
	"inkwell-server-go/internal/domain/attach/dedupe"
	"inkwell-server-go/internal/domain/attach/repository"
	"inkwell-server-go/internal/domain/attach/store"
	"inkwell-server-go/internal/domain/image"
	"inkwell-server-go/internal/platform/errors"
	"inkwell-server-go/internal/platform/logging"
	"inkwell-server-go/internal/platform/observability"
)

// AttachmentService coordinates validation, dedupe, blob storage, and
// record keeping for received uploads.
type AttachmentService struct {
	blobs    store.BlobStore
	index    dedupe.Index
	repo     repository.AttachmentRepository
	pipeline *image.Pipeline
	logger   *logging.Logger
}

// NewAttachmentService creates the attachment service.
func NewAttachmentService(
	blobs store.BlobStore,
	index dedupe.Index,
	repo repository.AttachmentRepository,
	pipeline *image.Pipeline,
	logger *logging.Logger,
) *AttachmentService {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &AttachmentService{
		blobs:    blobs,
		index:    index,
		repo:     repo,
		pipeline: pipeline,
		logger:   logger,
	}
}

// AcceptRequest describes one incoming upload.
type AcceptRequest struct {
	SessionID string
	FileName  string
	MIME      string
	Reader    io.Reader
}

// AcceptResult reports where the upload ended up.
type AcceptResult struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	Hash      string `json:"hash"`
	Format    string `json:"format"`
	Duplicate bool   `json:"duplicate"`
}

// Accept validates an upload, stores its content, and returns the public
// URL. Content already seen within the dedupe TTL is answered with the
// existing attachment instead of a second blob.
func (s *AttachmentService) Accept(ctx context.Context, req AcceptRequest) (*AcceptResult, error) {
	ctx, end := observability.StartSpan(ctx, "attach", "accept")
	result, err := s.accept(ctx, req)
	end(err)
	return result, err
}

func (s *AttachmentService) accept(ctx context.Context, req AcceptRequest) (*AcceptResult, error) {
	if req.Reader == nil {
		return nil, errors.New(errors.KindDomain, "attach.accept", "upload body required")
	}

	output, err := s.pipeline.Process(ctx, image.Input{
		Reader:         req.Reader,
		DeclaredFormat: image.FormatFromMIME(req.MIME),
		Source:         req.FileName,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindDomain, "attach.accept", "image validation failed", err)
	}

	sum := sha256.Sum256(output.Bytes)
	hash := hex.EncodeToString(sum[:])

	// An unreachable index must not block uploads; treat errors as a miss.
	entry, hit, err := s.index.Lookup(ctx, hash)
	if err != nil {
		s.logger.WarnTag("Attach", "dedupe lookup failed for %s: %v", hash, err)
	}
	if hit {
		s.logger.InfoTag("Attach", "dedupe hit: hash=%s attachment=%s", hash, entry.AttachmentID)
		observability.RecordCount(ctx, "attach.dedupe_hit", 1, nil)
		return &AcceptResult{
			ID:        entry.AttachmentID,
			URL:       entry.URL,
			Size:      entry.Size,
			Hash:      hash,
			Format:    output.Format,
			Duplicate: true,
		}, nil
	}

	name := req.FileName
	if name == "" {
		name = "pasted." + output.Format
	}
	attachment, err := aggregate.NewAttachment(req.SessionID, name, output.Format, int64(len(output.Bytes)), hash)
	if err != nil {
		return nil, err
	}
	attachment.WithMetadata(map[string]any{
		"width":  output.Validation.Width,
		"height": output.Validation.Height,
	})

	key := blobKey(attachment)
	contentType := "image/" + output.Format
	if err := s.blobs.Put(ctx, key, bytes.NewReader(output.Bytes), attachment.Size, contentType); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "attach.accept", "store blob", err)
	}
	attachment.SetURL(s.blobs.URL(key))

	if err := s.repo.Save(ctx, attachment); err != nil {
		if removeErr := s.blobs.Remove(ctx, key); removeErr != nil {
			s.logger.WarnTag("Attach", "orphaned blob %s after failed save: %v", key, removeErr)
		}
		return nil, errors.Wrap(errors.KindStorage, "attach.accept", "save attachment record", err)
	}

	if err := s.index.Remember(ctx, dedupe.Entry{
		Hash:         hash,
		AttachmentID: attachment.ID,
		URL:          attachment.URL,
		Size:         attachment.Size,
	}); err != nil {
		s.logger.WarnTag("Attach", "dedupe remember failed for %s: %v", hash, err)
	}

	s.logger.InfoTag("Attach", "stored attachment %s: name=%s size=%d url=%s",
		attachment.ID, attachment.FileName, attachment.Size, attachment.URL)
	observability.RecordCount(ctx, "attach.stored", 1, nil)

	return &AcceptResult{
		ID:     attachment.ID,
		URL:    attachment.URL,
		Size:   attachment.Size,
		Hash:   hash,
		Format: output.Format,
	}, nil
}

// Get returns a single attachment record, or nil when unknown.
func (s *AttachmentService) Get(ctx context.Context, id string) (*aggregate.Attachment, error) {
	attachment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "attach.get", "find attachment", err)
	}
	return attachment, nil
}

// List returns up to limit attachment records, newest first.
func (s *AttachmentService) List(ctx context.Context, limit int) ([]*aggregate.Attachment, error) {
	attachments, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "attach.list", "list attachments", err)
	}
	return attachments, nil
}

// Delete removes an attachment: blob, dedupe entry, and record.
func (s *AttachmentService) Delete(ctx context.Context, id string) error {
	attachment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "attach.delete", "find attachment", err)
	}
	if attachment == nil {
		return errors.New(errors.KindDomain, "attach.delete", "attachment not found")
	}

	if err := s.blobs.Remove(ctx, blobKey(attachment)); err != nil {
		s.logger.WarnTag("Attach", "remove blob for %s: %v", id, err)
	}
	if err := s.index.Forget(ctx, attachment.Hash); err != nil {
		s.logger.WarnTag("Attach", "forget dedupe entry for %s: %v", id, err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(errors.KindStorage, "attach.delete", "delete attachment record", err)
	}
	return nil
}

// Stats assembles the counters surfaced by the status endpoint.
func (s *AttachmentService) Stats(ctx context.Context) (map[string]any, error) {
	count, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "attach.stats", "count attachments", err)
	}

	stats := map[string]any{
		"attachments": count,
		"pipeline":    s.pipeline.Metrics(),
	}
	if indexStats, err := s.index.Stats(ctx); err == nil {
		stats["dedupe"] = indexStats
	}
	return stats, nil
}

// blobKey derives the storage key for an attachment.
func blobKey(a *aggregate.Attachment) string {
	if a.Format == "" {
		return a.ID
	}
	return a.ID + "." + a.Format
}
