package upload

import (
	"context"
	"fmt"

	"chat-messaging-demo/backend/chat/models"
	apperrors "chat-messaging-demo/backend/pkg/errors"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/pkg/resilience"
	"chat-messaging-demo/backend/shared/observability"
)

// Provider is one upload backend in the fallback chain.
type Provider interface {
	// Name identifies the provider in attachment descriptors and logs.
	Name() string
	// Accepts reports whether this provider handles the given category.
	Accepts(category models.Category) bool
	// Upload stores the file and returns its normalized descriptor.
	// Progress is reported through onProgress when non-nil.
	Upload(ctx context.Context, file File, opts Options, onProgress ProgressFunc) (models.Attachment, error)
}

// Chain uploads one file through an ordered list of providers, falling
// through on failure. A provider is tried at most once per call; an open
// circuit breaker skips the provider without spending its attempt.
type Chain struct {
	providers []Provider
	breakers  map[string]*resilience.CircuitBreaker
	log       *logger.Logger
	metrics   *observability.Metrics
}

// NewChain builds a chain over the given providers, in order.
func NewChain(providers []Provider, log *logger.Logger, metrics *observability.Metrics) *Chain {
	breakers := make(map[string]*resilience.CircuitBreaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = resilience.NewCircuitBreaker(
			resilience.DefaultCircuitBreakerConfig("upload-"+p.Name()), log)
	}
	return &Chain{
		providers: providers,
		breakers:  breakers,
		log:       log.WithComponent("upload-chain"),
		metrics:   metrics,
	}
}

// Upload pushes the file through the chain. The file must already have
// passed validation; category selects which providers participate.
// On success the returned attachment carries the winning provider's
// name. When every provider fails the error is UPLOAD_EXHAUSTED
// wrapping the last provider's error. Fractions reported through
// onProgress never decrease, even when a fallback provider starts over.
func (c *Chain) Upload(ctx context.Context, file File, category models.Category, opts Options, onProgress ProgressFunc) (models.Attachment, error) {
	var lastErr error
	attempted := 0

	// One progress floor spans all providers: a provider that fails
	// after reporting progress must not make its successor appear to
	// rewind the fraction.
	guarded := onProgress
	if onProgress != nil {
		var floor float64
		guarded = func(p Progress) {
			if p.Fraction < floor {
				p.Fraction = floor
			} else {
				floor = p.Fraction
			}
			onProgress(p)
		}
	}

	for _, provider := range c.providers {
		if !provider.Accepts(category) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return models.Attachment{}, err
		}
		attempted++

		if c.metrics != nil {
			c.metrics.UploadAttempts.Add(ctx, 1)
		}

		var attachment models.Attachment
		err := c.breakers[provider.Name()].Execute(func() error {
			var uploadErr error
			attachment, uploadErr = provider.Upload(ctx, file, opts, guarded)
			return uploadErr
		})
		if err == nil {
			attachment.Provider = provider.Name()
			attachment.MimeCategory = category
			c.log.Info("upload succeeded",
				"provider", provider.Name(),
				"file", file.Name,
				"size", file.Size,
			)
			return attachment, nil
		}

		lastErr = err
		if c.metrics != nil {
			c.metrics.UploadFallbacks.Add(ctx, 1)
		}
		c.log.Warn("provider failed, trying next",
			"provider", provider.Name(),
			"file", file.Name,
			"error", err.Error(),
		)
	}

	if c.metrics != nil {
		c.metrics.UploadExhaustions.Add(ctx, 1)
	}

	if attempted == 0 {
		lastErr = fmt.Errorf("no provider accepts category %q", category)
	}
	return models.Attachment{}, apperrors.NewUploadExhaustedError(
		fmt.Sprintf("all providers failed for %q", file.Name), lastErr)
}

// UploadFailure pairs a failed file with the chain error.
type UploadFailure struct {
	Name string
	Err  error
}

// UploadAll uploads a batch strictly sequentially, reporting per-file
// and overall progress. One file's exhaustion does not abort the rest;
// failures are collected and returned alongside the successes.
func (c *Chain) UploadAll(ctx context.Context, files []File, opts Options, onProgress BatchProgressFunc) ([]models.Attachment, []UploadFailure) {
	var (
		attachments []models.Attachment
		failures    []UploadFailure
	)
	total := len(files)

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			for _, remaining := range files[i:] {
				failures = append(failures, UploadFailure{Name: remaining.Name, Err: err})
			}
			break
		}

		index := i
		name := file.Name
		perFile := func(p Progress) {
			if onProgress == nil {
				return
			}
			onProgress(BatchProgress{
				FileIndex:    index,
				FileName:     name,
				FileFraction: p.Fraction,
				Overall:      (float64(index) + p.Fraction/100) / float64(total) * 100,
			})
		}

		attachment, err := c.Upload(ctx, file, CategoryOf(file.Name), opts, perFile)
		if err != nil {
			failures = append(failures, UploadFailure{Name: file.Name, Err: err})
			continue
		}
		perFile(Progress{Fraction: 100, BytesTransferred: file.Size, TotalBytes: file.Size})
		attachments = append(attachments, attachment)
	}

	return attachments, failures
}
