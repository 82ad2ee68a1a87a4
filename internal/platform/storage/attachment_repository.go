package storage

import (
	"context"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"inkwell-server-go/internal/domain/attach/aggregate"
	"inkwell-server-go/internal/domain/attach/repository"
	"inkwell-server-go/internal/platform/errors"
)

// attachmentRepository is the GORM-backed attachment repository.
type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates an attachment repository on the given database.
func NewAttachmentRepository(db *gorm.DB) repository.AttachmentRepository {
	return &attachmentRepository{
		db: db,
	}
}

// Save persists a new attachment.
func (r *attachmentRepository) Save(ctx context.Context, attachment *aggregate.Attachment) error {
	model, err := r.toModel(attachment)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "attachment.save", "failed to save attachment", err)
	}
	return nil
}

// FindByID looks up an attachment by its identifier.
func (r *attachmentRepository) FindByID(ctx context.Context, id string) (*aggregate.Attachment, error) {
	var model AttachmentRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // attachment does not exist
		}
		return nil, errors.Wrap(errors.KindStorage, "attachment.find_by_id", "failed to find attachment", err)
	}
	return r.fromModel(&model)
}

// FindByHash looks up an attachment by content hash.
func (r *attachmentRepository) FindByHash(ctx context.Context, hash string) (*aggregate.Attachment, error) {
	var model AttachmentRecord
	if err := r.db.WithContext(ctx).Where("hash = ?", hash).Order("created_at DESC").First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // no attachment with this hash
		}
		return nil, errors.Wrap(errors.KindStorage, "attachment.find_by_hash", "failed to find attachment", err)
	}
	return r.fromModel(&model)
}

// ListRecent returns the newest attachments up to limit.
func (r *attachmentRepository) ListRecent(ctx context.Context, limit int) ([]*aggregate.Attachment, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []AttachmentRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "attachment.list_recent", "failed to list attachments", err)
	}

	attachments := make([]*aggregate.Attachment, len(models))
	for i, model := range models {
		attachment, err := r.fromModel(&model)
		if err != nil {
			return nil, err
		}
		attachments[i] = attachment
	}
	return attachments, nil
}

// CountAll returns the total number of stored attachments.
func (r *attachmentRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&AttachmentRecord{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(errors.KindStorage, "attachment.count_all", "failed to count attachments", err)
	}
	return count, nil
}

// Delete removes an attachment by identifier.
func (r *attachmentRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&AttachmentRecord{}).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "attachment.delete", "failed to delete attachment", err)
	}
	return nil
}

// toModel converts the domain object into the storage model.
func (r *attachmentRepository) toModel(attachment *aggregate.Attachment) (*AttachmentRecord, error) {
	model := &AttachmentRecord{
		ID:        attachment.ID,
		SessionID: attachment.SessionID,
		FileName:  attachment.FileName,
		Format:    attachment.Format,
		Size:      attachment.Size,
		Hash:      attachment.Hash,
		URL:       attachment.URL,
		CreatedAt: attachment.CreatedAt,
	}

	if len(attachment.Metadata) > 0 {
		raw, err := sonic.Marshal(attachment.Metadata)
		if err != nil {
			return nil, errors.Wrap(errors.KindStorage, "attachment.to_model", "failed to encode metadata", err)
		}
		model.Metadata = datatypes.JSON(raw)
	}

	return model, nil
}

// fromModel converts the storage model back into the domain object.
func (r *attachmentRepository) fromModel(model *AttachmentRecord) (*aggregate.Attachment, error) {
	attachment := &aggregate.Attachment{
		ID:        model.ID,
		SessionID: model.SessionID,
		FileName:  model.FileName,
		Format:    model.Format,
		Size:      model.Size,
		Hash:      model.Hash,
		URL:       model.URL,
		CreatedAt: model.CreatedAt,
	}

	if len(model.Metadata) > 0 {
		metadata := make(map[string]any)
		if err := sonic.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "attachment.from_model", "failed to decode metadata", err)
		}
		attachment.Metadata = metadata
	}

	return attachment, nil
}
