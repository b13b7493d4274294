package upload

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/pkg/config"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/pkg/secrets"
)

// ImageHostProvider uploads images to an external image-hosting HTTP API
// (imgbb-compatible contract): a form-encoded POST carrying the base64
// payload, the API key and an expiration, answered by a success flag and
// a display URL. It only accepts the image category.
type ImageHostProvider struct {
	client       *http.Client
	probeClient  *http.Client
	baseURL      string
	apiKey       string
	expiration   string
	probeEnabled bool
	log          *logger.Logger
}

// imageHostResponse mirrors the provider's JSON answer.
type imageHostResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
		Size       int64  `json:"size"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewImageHostProvider builds the provider from configuration. The API
// key comes from the secrets manager with the env-configured value as
// fallback.
func NewImageHostProvider(ctx context.Context, log *logger.Logger) *ImageHostProvider {
	cfg := config.Get()
	apiKey := secrets.GetSecretWithDefault(ctx, secrets.KeyImageHostAPIKey, cfg.Providers.ImageHostAPIKey)

	return &ImageHostProvider{
		client:       &http.Client{Timeout: 60 * time.Second},
		probeClient:  &http.Client{Timeout: cfg.Upload.ProbeTimeout},
		baseURL:      cfg.Providers.ImageHostURL,
		apiKey:       apiKey,
		expiration:   cfg.Providers.ImageHostExpiration,
		probeEnabled: true,
		log:          log.WithComponent("image-host"),
	}
}

// NewImageHostProviderWith builds a provider with explicit wiring,
// primarily for tests.
func NewImageHostProviderWith(baseURL, apiKey string, client, probeClient *http.Client, probe bool, log *logger.Logger) *ImageHostProvider {
	return &ImageHostProvider{
		client:       client,
		probeClient:  probeClient,
		baseURL:      baseURL,
		apiKey:       apiKey,
		expiration:   "0",
		probeEnabled: probe,
		log:          log.WithComponent("image-host"),
	}
}

// Name implements Provider.
func (p *ImageHostProvider) Name() string {
	return "image-host"
}

// Accepts implements Provider. The image host takes images only.
func (p *ImageHostProvider) Accepts(category models.Category) bool {
	return category == models.CategoryImage
}

// Upload implements Provider.
func (p *ImageHostProvider) Upload(ctx context.Context, file File, opts Options, onProgress ProgressFunc) (models.Attachment, error) {
	if p.apiKey == "" {
		return models.Attachment{}, errors.New("image host API key is not configured")
	}

	report := func(fraction float64, transferred int64) {
		if onProgress != nil {
			onProgress(Progress{Fraction: fraction, BytesTransferred: transferred, TotalBytes: file.Size})
		}
	}
	report(0, 0)

	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(file.Data))
	form.Set("key", p.apiKey)
	form.Set("expiration", p.expiration)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return models.Attachment{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("image host request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded imageHostResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.Attachment{}, fmt.Errorf("image host response malformed: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !decoded.Success {
		msg := decoded.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP status %d", resp.StatusCode)
		}
		return models.Attachment{}, fmt.Errorf("image host rejected upload: %s", msg)
	}

	report(60, file.Size)

	// display_url is optimized for rendering; fall back to the raw URL.
	imageURL := decoded.Data.DisplayURL
	if imageURL == "" {
		imageURL = decoded.Data.URL
	}
	if imageURL == "" {
		return models.Attachment{}, errors.New("image host returned no URL")
	}

	if p.probeEnabled {
		if err := p.probeURL(ctx, imageURL); err != nil {
			return models.Attachment{}, fmt.Errorf("uploaded image not reachable: %w", err)
		}
	}
	report(90, file.Size)

	p.log.Info("image uploaded",
		"file", file.Name,
		"url", imageURL,
		"conversation_id", opts.ConversationID,
	)
	report(100, file.Size)

	return models.Attachment{
		URL:        imageURL,
		Name:       file.Name,
		SizeBytes:  file.Size,
		UploadedBy: opts.UploaderID,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// probeURL checks the returned URL actually serves content. A timeout or
// non-2xx answer is a failure, never a success.
func (p *ImageHostProvider) probeURL(ctx context.Context, imageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.probeClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe answered status %d", resp.StatusCode)
	}
	return nil
}
