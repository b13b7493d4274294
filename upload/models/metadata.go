package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	chatmodels "chat-messaging-demo/backend/chat/models"
)

// ModerationStatus is the scan-status bookkeeping kept per attachment.
// The scan itself runs elsewhere; this core only records outcomes.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationClean    ModerationStatus = "clean"
	ModerationInfected ModerationStatus = "infected"
	ModerationError    ModerationStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationPending, ModerationClean, ModerationInfected, ModerationError:
		return true
	}
	return false
}

// AccessMap records the last access time per user, keyed by user id.
type AccessMap map[string]time.Time

// Value implements driver.Valuer for jsonb storage.
func (a AccessMap) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal(AccessMap{})
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for jsonb storage.
func (a *AccessMap) Scan(value interface{}) error {
	if value == nil {
		*a = AccessMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	return json.Unmarshal(data, a)
}

// AttachmentMetadata is the registry's best-effort side-channel record
// for one uploaded file. Its absence must never break display.
type AttachmentMetadata struct {
	ID               string              `json:"id" gorm:"primaryKey;type:uuid"`
	FileName         string              `json:"file_name"`
	FileSize         int64               `json:"file_size"`
	FileType         string              `json:"file_type"`
	UploadedBy       string              `json:"uploaded_by"`
	UploadedAt       time.Time           `json:"uploaded_at"`
	ChatID           string              `json:"chat_id" gorm:"index"`
	DownloadCount    int64               `json:"download_count" gorm:"default:0"`
	ModerationStatus ModerationStatus    `json:"moderation_status" gorm:"default:pending"`
	StorageRef       string              `json:"storage_ref"`
	Category         chatmodels.Category `json:"category"`
	Checksum         string              `json:"checksum"`
	LastAccessed     *time.Time          `json:"last_accessed,omitempty"`
	LastScanned      *time.Time          `json:"last_scanned,omitempty"`
	ScanDetail       string              `json:"scan_detail,omitempty"`
	AccessedBy       AccessMap           `json:"accessed_by" gorm:"type:jsonb"`
}

func (AttachmentMetadata) TableName() string {
	return "attachment_metadata"
}

// StoredBlob is the generic blob-storage provider's backing record: the
// raw bytes plus the custom metadata the storage contract requires
// (uploader, original name, conversation id, timestamp).
type StoredBlob struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	ObjectName     string    `json:"object_name" gorm:"index"`
	ConversationID string    `json:"conversation_id" gorm:"index"`
	OriginalName   string    `json:"original_name"`
	ContentType    string    `json:"content_type"`
	Data           []byte    `json:"-"`
	Size           int64     `json:"size"`
	Checksum       string    `json:"checksum"`
	UploadedBy     string    `json:"uploaded_by"`
	CreatedAt      time.Time `json:"created_at"`
}

func (StoredBlob) TableName() string {
	return "stored_blobs"
}
