package upload

import (
	"fmt"
	"regexp"
	"time"
)

// File is the candidate attachment handed to validation and upload: a
// name, a declared content type and the raw bytes.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// Options carries the upload context: which conversation the file
// belongs to and who is uploading it.
type Options struct {
	ConversationID string
	UploaderID     string
}

// Progress reports fractional progress for a single file upload.
// Fraction runs 0-100 and is monotonically non-decreasing.
type Progress struct {
	Fraction         float64
	BytesTransferred int64
	TotalBytes       int64
}

// ProgressFunc receives per-file progress events. May be nil.
type ProgressFunc func(Progress)

// BatchProgress reports progress across a sequential multi-file upload.
// Overall is (completedFiles + currentFraction/100) / totalFiles * 100.
type BatchProgress struct {
	FileIndex    int
	FileName     string
	FileFraction float64
	Overall      float64
}

// BatchProgressFunc receives batch progress events. May be nil.
type BatchProgressFunc func(BatchProgress)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// ObjectName builds a collision-resistant storage object name from the
// original filename: a millisecond timestamp prefix plus the sanitized
// name.
func ObjectName(original string, now time.Time) string {
	safe := unsafeNameChars.ReplaceAllString(original, "_")
	return fmt.Sprintf("%d_%s", now.UnixMilli(), safe)
}
