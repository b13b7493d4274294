package upload

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"chat-messaging-demo/backend/upload/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string]*models.StoredBlob
	fail  bool
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string]*models.StoredBlob)}
}

func (s *memBlobStore) Save(ctx context.Context, blob *models.StoredBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.blobs[blob.ID] = blob
	return nil
}

func (s *memBlobStore) Get(ctx context.Context, id string) (*models.StoredBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return blob, nil
}

func TestBlobStorageUpload(t *testing.T) {
	store := newMemBlobStore()
	p := NewBlobStorageProvider(store, "https://chat.test/files", testLog())

	data := []byte("some file content")
	var fractions []float64
	att, err := p.Upload(context.Background(),
		File{Name: "notes.txt", Size: int64(len(data)), ContentType: "text/plain", Data: data},
		Options{ConversationID: "conv-1", UploaderID: "alice"},
		func(pr Progress) { fractions = append(fractions, pr.Fraction) })
	require.NoError(t, err)

	require.Len(t, store.blobs, 1)
	var blob *models.StoredBlob
	for _, b := range store.blobs {
		blob = b
	}

	assert.True(t, strings.HasPrefix(blob.ObjectName, "chat-files/conv-1/"))
	assert.True(t, strings.HasSuffix(blob.ObjectName, "_notes.txt"))
	assert.Equal(t, "https://chat.test/files/"+blob.ID, att.URL)
	assert.Equal(t, "alice", att.UploadedBy)

	sum := blake2b.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), blob.Checksum)
	assert.Equal(t, blob.Checksum, att.Checksum)

	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.Equal(t, float64(100), fractions[len(fractions)-1])
}

func TestBlobStorageUploadStoreFailure(t *testing.T) {
	store := newMemBlobStore()
	store.fail = true
	p := NewBlobStorageProvider(store, "https://chat.test/files", testLog())

	_, err := p.Upload(context.Background(),
		File{Name: "notes.txt", Size: 5, Data: []byte("hello")}, Options{}, nil)
	require.Error(t, err)
}

func TestBlobStorageAcceptsEverything(t *testing.T) {
	p := NewBlobStorageProvider(newMemBlobStore(), "https://chat.test/files", testLog())
	assert.True(t, p.Accepts("image"))
	assert.True(t, p.Accepts("video"))
	assert.True(t, p.Accepts("other"))
}
