package upload

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	chatmodels "chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/upload/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

// progressChunkSize is how many bytes are hashed between two progress
// events. Matches the chunking of a resumable upload.
const progressChunkSize = 256 * 1024

// BlobStore persists and retrieves stored blobs.
type BlobStore interface {
	Save(ctx context.Context, blob *models.StoredBlob) error
	Get(ctx context.Context, id string) (*models.StoredBlob, error)
}

// GormBlobStore is the database-backed blob store.
type GormBlobStore struct {
	db *gorm.DB
}

// NewGormBlobStore creates a blob store over the given database.
func NewGormBlobStore(db *gorm.DB) *GormBlobStore {
	return &GormBlobStore{db: db}
}

// Save implements BlobStore.
func (s *GormBlobStore) Save(ctx context.Context, blob *models.StoredBlob) error {
	return s.db.WithContext(ctx).Create(blob).Error
}

// Get implements BlobStore.
func (s *GormBlobStore) Get(ctx context.Context, id string) (*models.StoredBlob, error) {
	var blob models.StoredBlob
	if err := s.db.WithContext(ctx).First(&blob, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &blob, nil
}

// BlobStorageProvider is the generic fallback provider: it accepts every
// category and stores the bytes in the blob store with the uploader,
// original name, conversation id and timestamp as custom metadata. The
// served download URL is derived from the blob id.
type BlobStorageProvider struct {
	store   BlobStore
	baseURL string
	log     *logger.Logger
}

// NewBlobStorageProvider builds the provider. baseURL is the public
// prefix under which stored blobs are served.
func NewBlobStorageProvider(store BlobStore, baseURL string, log *logger.Logger) *BlobStorageProvider {
	return &BlobStorageProvider{
		store:   store,
		baseURL: baseURL,
		log:     log.WithComponent("blob-storage"),
	}
}

// Name implements Provider.
func (p *BlobStorageProvider) Name() string {
	return "blob-storage"
}

// Accepts implements Provider. Blob storage is the catch-all backend.
func (p *BlobStorageProvider) Accepts(category chatmodels.Category) bool {
	return true
}

// Upload implements Provider. The file is hashed chunk by chunk so
// progress events track bytes processed, then written in one insert.
func (p *BlobStorageProvider) Upload(ctx context.Context, file File, opts Options, onProgress ProgressFunc) (chatmodels.Attachment, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return chatmodels.Attachment{}, err
	}

	var processed int64
	for processed < file.Size {
		if err := ctx.Err(); err != nil {
			return chatmodels.Attachment{}, err
		}
		end := processed + progressChunkSize
		if end > file.Size {
			end = file.Size
		}
		hasher.Write(file.Data[processed:end])
		processed = end

		if onProgress != nil {
			onProgress(Progress{
				Fraction:         float64(processed) / float64(file.Size) * 90,
				BytesTransferred: processed,
				TotalBytes:       file.Size,
			})
		}
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))

	now := time.Now().UTC()
	blob := &models.StoredBlob{
		ID:             uuid.New().String(),
		ObjectName:     fmt.Sprintf("chat-files/%s/%s", opts.ConversationID, ObjectName(file.Name, now)),
		ConversationID: opts.ConversationID,
		OriginalName:   file.Name,
		ContentType:    file.ContentType,
		Data:           file.Data,
		Size:           file.Size,
		Checksum:       checksum,
		UploadedBy:     opts.UploaderID,
		CreatedAt:      now,
	}

	if err := p.store.Save(ctx, blob); err != nil {
		return chatmodels.Attachment{}, fmt.Errorf("blob store write failed: %w", err)
	}

	if onProgress != nil {
		onProgress(Progress{Fraction: 100, BytesTransferred: file.Size, TotalBytes: file.Size})
	}

	p.log.Info("blob stored",
		"file", file.Name,
		"object", blob.ObjectName,
		"size", file.Size,
		"conversation_id", opts.ConversationID,
	)

	return chatmodels.Attachment{
		URL:        fmt.Sprintf("%s/%s", p.baseURL, blob.ID),
		Name:       file.Name,
		SizeBytes:  file.Size,
		UploadedBy: opts.UploaderID,
		UploadedAt: now,
		Checksum:   checksum,
	}, nil
}
