package upload

import (
	"context"
	"fmt"
	"time"

	chatmodels "chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/pkg/cache"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/shared/observability"
	"chat-messaging-demo/backend/upload/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetadataStore persists attachment metadata records.
type MetadataStore interface {
	Create(ctx context.Context, meta *models.AttachmentMetadata) error
	Get(ctx context.Context, id string) (*models.AttachmentMetadata, error)
	IncrementDownload(ctx context.Context, id, userID string, now time.Time) error
	SetModeration(ctx context.Context, id string, status models.ModerationStatus, detail string, now time.Time) error
}

// GormMetadataStore is the database-backed metadata store.
type GormMetadataStore struct {
	db *gorm.DB
}

// NewGormMetadataStore creates a metadata store over the given database.
func NewGormMetadataStore(db *gorm.DB) *GormMetadataStore {
	return &GormMetadataStore{db: db}
}

// Create implements MetadataStore.
func (s *GormMetadataStore) Create(ctx context.Context, meta *models.AttachmentMetadata) error {
	return s.db.WithContext(ctx).Create(meta).Error
}

// Get implements MetadataStore.
func (s *GormMetadataStore) Get(ctx context.Context, id string) (*models.AttachmentMetadata, error) {
	var meta models.AttachmentMetadata
	if err := s.db.WithContext(ctx).First(&meta, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &meta, nil
}

// IncrementDownload implements MetadataStore. The count is bumped with a
// database-side expression so concurrent downloads never lose updates,
// and the per-user access map is refreshed under a row lock.
func (s *GormMetadataStore) IncrementDownload(ctx context.Context, id, userID string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meta models.AttachmentMetadata
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&meta, "id = ?", id).Error; err != nil {
			return err
		}
		accessed := meta.AccessedBy
		if accessed == nil {
			accessed = models.AccessMap{}
		}
		accessed[userID] = now

		return tx.Model(&models.AttachmentMetadata{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"download_count": gorm.Expr("download_count + 1"),
				"last_accessed":  now,
				"accessed_by":    accessed,
			}).Error
	})
}

// SetModeration implements MetadataStore. Last write wins.
func (s *GormMetadataStore) SetModeration(ctx context.Context, id string, status models.ModerationStatus, detail string, now time.Time) error {
	updates := map[string]interface{}{
		"moderation_status": status,
		"last_scanned":      now,
	}
	if detail != "" {
		updates["scan_detail"] = detail
	}
	return s.db.WithContext(ctx).Model(&models.AttachmentMetadata{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Registry records attachment descriptors and their moderation and
// download bookkeeping. Every operation is strictly best-effort: any
// failure is caught, logged and converted into an empty result, never
// surfaced to the caller. A failed registry write must never undo an
// already-successful upload.
type Registry struct {
	store   MetadataStore
	cache   *cache.Cache
	log     *logger.Logger
	metrics *observability.Metrics
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store MetadataStore, metaCache *cache.Cache, log *logger.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		store:   store,
		cache:   metaCache,
		log:     log.WithComponent("metadata-registry"),
		metrics: metrics,
	}
}

// Record writes the side-channel record for a successful upload and
// returns its id, or "" when the write failed.
func (r *Registry) Record(ctx context.Context, attachment chatmodels.Attachment, conversationID, storageRef string) string {
	meta := &models.AttachmentMetadata{
		ID:               uuid.New().String(),
		FileName:         attachment.Name,
		FileSize:         attachment.SizeBytes,
		FileType:         string(attachment.MimeCategory),
		UploadedBy:       attachment.UploadedBy,
		UploadedAt:       attachment.UploadedAt,
		ChatID:           conversationID,
		DownloadCount:    0,
		ModerationStatus: models.ModerationPending,
		StorageRef:       storageRef,
		Category:         attachment.MimeCategory,
		Checksum:         attachment.Checksum,
		AccessedBy:       models.AccessMap{},
	}

	if err := r.store.Create(ctx, meta); err != nil {
		r.swallow(ctx, err, "metadata record failed", "file", attachment.Name)
		return ""
	}

	r.log.Debug("metadata recorded", "metadata_id", meta.ID, "file", attachment.Name)
	return meta.ID
}

// IncrementDownloadCount bumps the download counter and access map for a
// metadata record. Safe to retry; the count only moves forward.
func (r *Registry) IncrementDownloadCount(ctx context.Context, metadataID, userID string) bool {
	if metadataID == "" {
		return false
	}
	if err := r.store.IncrementDownload(ctx, metadataID, userID, time.Now().UTC()); err != nil {
		r.swallow(ctx, err, "download tracking failed", "metadata_id", metadataID)
		return false
	}
	r.cache.Delete(metadataKey(metadataID))
	return true
}

// SetModerationStatus overwrites the scan status (last write wins).
// Unknown statuses are rejected locally without touching the store.
func (r *Registry) SetModerationStatus(ctx context.Context, metadataID string, status models.ModerationStatus, detail string) bool {
	if metadataID == "" {
		return false
	}
	if !status.Valid() {
		r.log.Warn("ignoring unknown moderation status", "metadata_id", metadataID, "status", string(status))
		return false
	}
	if err := r.store.SetModeration(ctx, metadataID, status, detail, time.Now().UTC()); err != nil {
		r.swallow(ctx, err, "moderation status update failed", "metadata_id", metadataID)
		return false
	}
	r.cache.Delete(metadataKey(metadataID))
	return true
}

// Get fetches a metadata record, serving repeated lookups from cache.
// Returns nil when the record is missing or the read failed.
func (r *Registry) Get(ctx context.Context, metadataID string) *models.AttachmentMetadata {
	if metadataID == "" {
		return nil
	}
	if cached, ok := r.cache.Get(metadataKey(metadataID)); ok {
		if meta, ok := cached.(*models.AttachmentMetadata); ok {
			return meta
		}
	}

	meta, err := r.store.Get(ctx, metadataID)
	if err != nil {
		r.swallow(ctx, err, "metadata read failed", "metadata_id", metadataID)
		return nil
	}
	r.cache.Set(metadataKey(metadataID), meta)
	return meta
}

func (r *Registry) swallow(ctx context.Context, err error, msg string, args ...any) {
	if r.metrics != nil {
		r.metrics.MetadataFailures.Add(ctx, 1)
	}
	r.log.LogError(err, msg, args...)
}

func metadataKey(id string) string {
	return fmt.Sprintf("attachment-metadata:%s", id)
}
