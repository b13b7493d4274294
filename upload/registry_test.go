package upload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	chatmodels "chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/pkg/cache"
	"chat-messaging-demo/backend/upload/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memMetadataStore struct {
	mu         sync.Mutex
	records    map[string]*models.AttachmentMetadata
	failCreate bool
	failBump   bool
}

func newMemMetadataStore() *memMetadataStore {
	return &memMetadataStore{records: make(map[string]*models.AttachmentMetadata)}
}

func (s *memMetadataStore) Create(ctx context.Context, meta *models.AttachmentMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("store down")
	}
	copied := *meta
	s.records[meta.ID] = &copied
	return nil
}

func (s *memMetadataStore) Get(ctx context.Context, id string) (*models.AttachmentMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *meta
	return &copied, nil
}

func (s *memMetadataStore) IncrementDownload(ctx context.Context, id, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBump {
		return errors.New("store down")
	}
	meta, ok := s.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	meta.DownloadCount++
	if meta.AccessedBy == nil {
		meta.AccessedBy = models.AccessMap{}
	}
	meta.AccessedBy[userID] = now
	meta.LastAccessed = &now
	return nil
}

func (s *memMetadataStore) SetModeration(ctx context.Context, id string, status models.ModerationStatus, detail string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	meta.ModerationStatus = status
	meta.ScanDetail = detail
	meta.LastScanned = &now
	return nil
}

func testRegistry(store MetadataStore) *Registry {
	return NewRegistry(store, cache.NewCacheWith(time.Minute, time.Minute, 100), testLog(), nil)
}

func testAttachment() chatmodels.Attachment {
	return chatmodels.Attachment{
		URL:          "https://files.test/a.png",
		Name:         "a.png",
		SizeBytes:    100,
		MimeCategory: chatmodels.CategoryImage,
		UploadedBy:   "alice",
		UploadedAt:   time.Now().UTC(),
	}
}

func TestRecordAndGet(t *testing.T) {
	store := newMemMetadataStore()
	r := testRegistry(store)

	id := r.Record(context.Background(), testAttachment(), "conv-1", "chat-files/conv-1/a.png")
	require.NotEmpty(t, id)

	meta := r.Get(context.Background(), id)
	require.NotNil(t, meta)
	assert.Equal(t, "a.png", meta.FileName)
	assert.Equal(t, "conv-1", meta.ChatID)
	assert.Equal(t, models.ModerationPending, meta.ModerationStatus)
	assert.EqualValues(t, 0, meta.DownloadCount)
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	store := newMemMetadataStore()
	store.failCreate = true
	r := testRegistry(store)

	id := r.Record(context.Background(), testAttachment(), "conv-1", "ref")
	assert.Empty(t, id, "a failed record yields an empty id, not an error")
}

func TestIncrementDownloadCount(t *testing.T) {
	store := newMemMetadataStore()
	r := testRegistry(store)
	id := r.Record(context.Background(), testAttachment(), "conv-1", "ref")

	assert.True(t, r.IncrementDownloadCount(context.Background(), id, "bob"))
	assert.True(t, r.IncrementDownloadCount(context.Background(), id, "bob"))

	meta := r.Get(context.Background(), id)
	require.NotNil(t, meta)
	assert.EqualValues(t, 2, meta.DownloadCount)
	assert.Contains(t, meta.AccessedBy, "bob")
}

func TestIncrementDownloadCountBestEffort(t *testing.T) {
	store := newMemMetadataStore()
	r := testRegistry(store)
	id := r.Record(context.Background(), testAttachment(), "conv-1", "ref")

	store.failBump = true
	assert.False(t, r.IncrementDownloadCount(context.Background(), id, "bob"))
	assert.False(t, r.IncrementDownloadCount(context.Background(), "", "bob"))
}

func TestSetModerationStatus(t *testing.T) {
	store := newMemMetadataStore()
	r := testRegistry(store)
	id := r.Record(context.Background(), testAttachment(), "conv-1", "ref")

	assert.True(t, r.SetModerationStatus(context.Background(), id, models.ModerationClean, "no findings"))
	meta := r.Get(context.Background(), id)
	require.NotNil(t, meta)
	assert.Equal(t, models.ModerationClean, meta.ModerationStatus)

	// Unknown statuses are rejected locally.
	assert.False(t, r.SetModerationStatus(context.Background(), id, models.ModerationStatus("weird"), ""))
}

func TestGetUnknownMetadata(t *testing.T) {
	r := testRegistry(newMemMetadataStore())
	assert.Nil(t, r.Get(context.Background(), "ghost"))
	assert.Nil(t, r.Get(context.Background(), ""))
}
