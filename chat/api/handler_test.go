package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-messaging-demo/backend/pkg/cache"
	apperrors "chat-messaging-demo/backend/pkg/errors"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/upload"
	uploadmodels "chat-messaging-demo/backend/upload/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubBlobStore struct {
	blobs map[string]*uploadmodels.StoredBlob
}

func (s *stubBlobStore) Save(ctx context.Context, blob *uploadmodels.StoredBlob) error {
	s.blobs[blob.ID] = blob
	return nil
}

func (s *stubBlobStore) Get(ctx context.Context, id string) (*uploadmodels.StoredBlob, error) {
	blob, ok := s.blobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return blob, nil
}

type stubMetadataStore struct {
	records map[string]*uploadmodels.AttachmentMetadata
}

func (s *stubMetadataStore) Create(ctx context.Context, meta *uploadmodels.AttachmentMetadata) error {
	s.records[meta.ID] = meta
	return nil
}

func (s *stubMetadataStore) Get(ctx context.Context, id string) (*uploadmodels.AttachmentMetadata, error) {
	meta, ok := s.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return meta, nil
}

func (s *stubMetadataStore) IncrementDownload(ctx context.Context, id, userID string, now time.Time) error {
	meta, ok := s.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	meta.DownloadCount++
	meta.LastAccessed = &now
	return nil
}

func (s *stubMetadataStore) SetModeration(ctx context.Context, id string, status uploadmodels.ModerationStatus, detail string, now time.Time) error {
	meta, ok := s.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	meta.ModerationStatus = status
	meta.ScanDetail = detail
	meta.LastScanned = &now
	return nil
}

func fileTestEngine(t *testing.T, blobs *stubBlobStore, metadata *stubMetadataStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.Config{Level: "error"})
	registry := upload.NewRegistry(metadata, cache.NewCacheWith(time.Minute, time.Minute, 16), log, nil)
	handler := NewHandler(nil, nil, nil, nil, blobs, registry, log)

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.GET("/files/:id", handler.DownloadFile)
	r.GET("/metadata/:id", handler.GetFileMetadata)
	r.PATCH("/metadata/:id/moderation", handler.UpdateModerationStatus)
	return r
}

func downloadTestEngine(t *testing.T, blobs *stubBlobStore) *gin.Engine {
	t.Helper()
	return fileTestEngine(t, blobs, &stubMetadataStore{records: map[string]*uploadmodels.AttachmentMetadata{}})
}

func TestDownloadFileServesBlob(t *testing.T) {
	blobs := &stubBlobStore{blobs: map[string]*uploadmodels.StoredBlob{
		"blob-1": {
			ID:           "blob-1",
			OriginalName: "report.pdf",
			ContentType:  "application/pdf",
			Data:         []byte("%PDF-fake"),
			Size:         9,
			CreatedAt:    time.Now().UTC(),
		},
	}}
	r := downloadTestEngine(t, blobs)

	req, _ := http.NewRequest(http.MethodGet, "/files/blob-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report.pdf")
	assert.Equal(t, "%PDF-fake", w.Body.String())
}

func TestDownloadFileNotFound(t *testing.T) {
	r := downloadTestEngine(t, &stubBlobStore{blobs: map[string]*uploadmodels.StoredBlob{}})

	req, _ := http.NewRequest(http.MethodGet, "/files/ghost", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "FILE_NOT_FOUND")
}

func seedMetadata() *stubMetadataStore {
	return &stubMetadataStore{records: map[string]*uploadmodels.AttachmentMetadata{
		"meta-1": {
			ID:               "meta-1",
			FileName:         "photo.png",
			ModerationStatus: uploadmodels.ModerationPending,
		},
	}}
}

func TestGetFileMetadata(t *testing.T) {
	r := fileTestEngine(t, &stubBlobStore{blobs: map[string]*uploadmodels.StoredBlob{}}, seedMetadata())

	req, _ := http.NewRequest(http.MethodGet, "/metadata/meta-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "photo.png")

	req, _ = http.NewRequest(http.MethodGet, "/metadata/ghost", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateModerationStatusRecordsScanOutcome(t *testing.T) {
	metadata := seedMetadata()
	r := fileTestEngine(t, &stubBlobStore{blobs: map[string]*uploadmodels.StoredBlob{}}, metadata)

	body := strings.NewReader(`{"status":"infected","detail":"EICAR signature"}`)
	req, _ := http.NewRequest(http.MethodPatch, "/metadata/meta-1/moderation", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"recorded":true`)
	assert.Equal(t, uploadmodels.ModerationInfected, metadata.records["meta-1"].ModerationStatus)
	assert.Equal(t, "EICAR signature", metadata.records["meta-1"].ScanDetail)
	assert.NotNil(t, metadata.records["meta-1"].LastScanned)
}

func TestUpdateModerationStatusRejectsUnknownStatus(t *testing.T) {
	metadata := seedMetadata()
	r := fileTestEngine(t, &stubBlobStore{blobs: map[string]*uploadmodels.StoredBlob{}}, metadata)

	body := strings.NewReader(`{"status":"quarantined"}`)
	req, _ := http.NewRequest(http.MethodPatch, "/metadata/meta-1/moderation", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
	assert.Equal(t, uploadmodels.ModerationPending, metadata.records["meta-1"].ModerationStatus)
}

func TestErrorHandlerShapesValidationErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		c.Error(apperrors.NewValidationError("bad input"))
	})

	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
	assert.Contains(t, w.Body.String(), "bad input")
}
