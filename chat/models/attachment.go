package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Category classifies an attachment by its file extension. Each category
// carries its own size ceiling at validation time.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryArchive  Category = "archive"
	CategoryCode     Category = "code"
	CategoryOther    Category = "other"
)

// DisplayNoun returns the word used in conversation digests, e.g.
// "Image" for a digest like "2 Images".
func (c Category) DisplayNoun() string {
	switch c {
	case CategoryImage:
		return "Image"
	case CategoryVideo:
		return "Video"
	case CategoryAudio:
		return "Audio Clip"
	case CategoryDocument:
		return "Document"
	case CategoryArchive:
		return "Archive"
	case CategoryCode:
		return "Code File"
	default:
		return "File"
	}
}

// Attachment is the normalized descriptor of a successfully uploaded
// file. MetadataID links into the metadata registry and may be empty;
// display must not depend on it.
type Attachment struct {
	URL          string    `json:"url"`
	Name         string    `json:"name"`
	SizeBytes    int64     `json:"size_bytes"`
	MimeCategory Category  `json:"mime_category"`
	Provider     string    `json:"provider_used"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadedAt   time.Time `json:"uploaded_at"`
	MetadataID   string    `json:"metadata_id,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
}

// AttachmentList is the jsonb-stored attachment slice of a message.
type AttachmentList []Attachment

// Value implements driver.Valuer for jsonb storage.
func (l AttachmentList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(AttachmentList{})
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for jsonb storage.
func (l *AttachmentList) Scan(value interface{}) error {
	if value == nil {
		*l = AttachmentList{}
		return nil
	}
	data, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, l)
}

// FormatFileSize renders a byte count for humans, e.g. "2.5 MB".
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}

	const unit = 1024
	sizes := []string{"Bytes", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(unit)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	value := float64(bytes) / math.Pow(unit, float64(i))

	return fmt.Sprintf("%s %s", trimTrailingZeros(value), sizes[i])
}

func trimTrailingZeros(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
