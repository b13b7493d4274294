package upload

import (
	"fmt"
	"path/filepath"
	"strings"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/pkg/config"
)

// categoryExtensions is the fixed extension table used to classify a
// candidate file. Extensions not listed fall into the "other" category.
var categoryExtensions = map[models.Category][]string{
	models.CategoryImage:    {"jpg", "jpeg", "png", "gif", "webp", "bmp", "svg"},
	models.CategoryVideo:    {"mp4", "avi", "mkv", "mov", "wmv", "flv", "webm"},
	models.CategoryAudio:    {"mp3", "wav", "ogg", "aac", "flac", "m4a"},
	models.CategoryDocument: {"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "rtf"},
	models.CategoryArchive:  {"zip", "rar", "7z", "tar", "gz"},
	models.CategoryCode:     {"js", "html", "css", "py", "java", "cpp", "c", "php", "json", "xml"},
}

// ValidatorConfig holds the per-category size ceilings and general
// limits. Values come from configuration, not hard contracts.
type ValidatorConfig struct {
	MaxFilenameLength int
	CategoryLimits    map[models.Category]int64
}

// DefaultValidatorConfig builds limits from application configuration.
func DefaultValidatorConfig() ValidatorConfig {
	cfg := config.Get()
	return ValidatorConfig{
		MaxFilenameLength: cfg.Upload.MaxFilenameLength,
		CategoryLimits: map[models.Category]int64{
			models.CategoryImage:    cfg.Upload.ImageMaxBytes,
			models.CategoryVideo:    cfg.Upload.VideoMaxBytes,
			models.CategoryAudio:    cfg.Upload.AudioMaxBytes,
			models.CategoryDocument: cfg.Upload.DocumentMaxBytes,
			models.CategoryArchive:  cfg.Upload.ArchiveMaxBytes,
			models.CategoryCode:     cfg.Upload.CodeMaxBytes,
			models.CategoryOther:    cfg.Upload.OtherMaxBytes,
		},
	}
}

// Validator classifies candidate files and enforces per-category size
// limits. It is a pure function layer with no side effects.
type Validator struct {
	config ValidatorConfig
}

// NewValidator creates a validator with the given limits.
func NewValidator(config ValidatorConfig) *Validator {
	if config.MaxFilenameLength == 0 {
		config.MaxFilenameLength = 255
	}
	return &Validator{config: config}
}

// ValidationResult is the outcome of screening one file.
type ValidationResult struct {
	OK       bool
	Category models.Category
	Reason   string
}

// CategoryOf infers the category from the file extension.
func CategoryOf(fileName string) models.Category {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	for category, extensions := range categoryExtensions {
		for _, e := range extensions {
			if e == ext {
				return category
			}
		}
	}
	return models.CategoryOther
}

// Limit returns the configured size ceiling for a category.
func (v *Validator) Limit(category models.Category) int64 {
	return v.config.CategoryLimits[category]
}

// Validate screens a single file. Rules are evaluated in order and the
// first failing rule short-circuits with a human-readable reason.
func (v *Validator) Validate(file *File) ValidationResult {
	if file == nil || file.Size == 0 {
		return ValidationResult{OK: false, Reason: "File is empty"}
	}

	if len(file.Name) > v.config.MaxFilenameLength {
		return ValidationResult{
			OK:     false,
			Reason: fmt.Sprintf("Filename is too long (max %d characters)", v.config.MaxFilenameLength),
		}
	}

	category := CategoryOf(file.Name)

	if limit := v.config.CategoryLimits[category]; limit > 0 && file.Size > limit {
		return ValidationResult{
			OK:       false,
			Category: category,
			Reason: fmt.Sprintf("File size should be less than %s for %s files",
				models.FormatFileSize(limit), category),
		}
	}

	return ValidationResult{OK: true, Category: category}
}

// RejectedFile pairs a screened-out file with its reason.
type RejectedFile struct {
	Name   string
	Reason string
}

// BatchResult partitions a candidate batch into the files that passed
// validation and the ones that were rejected.
type BatchResult struct {
	Accepted []File
	Rejected []RejectedFile
}

// Screen validates each file independently and returns the valid subset
// alongside per-file rejection reasons. One bad file never fails the
// batch. At most maxAccepted files are accepted; the surplus is rejected
// with an explanatory reason.
func (v *Validator) Screen(files []File, maxAccepted int) BatchResult {
	var result BatchResult
	for i := range files {
		file := files[i]
		verdict := v.Validate(&file)
		if !verdict.OK {
			result.Rejected = append(result.Rejected, RejectedFile{Name: file.Name, Reason: verdict.Reason})
			continue
		}
		if maxAccepted > 0 && len(result.Accepted) >= maxAccepted {
			result.Rejected = append(result.Rejected, RejectedFile{
				Name:   file.Name,
				Reason: fmt.Sprintf("Too many attachments (max %d per message)", maxAccepted),
			})
			continue
		}
		result.Accepted = append(result.Accepted, file)
	}
	return result
}
