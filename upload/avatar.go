package upload

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"chat-messaging-demo/backend/pkg/cache"
	"chat-messaging-demo/backend/pkg/config"
	"chat-messaging-demo/backend/pkg/logger"
)

// AvatarClient resolves fallback avatars through the external
// avatar-generation HTTP API (a GET keyed by display name and size).
// Generated URLs are cached; reachability is verified once per URL.
type AvatarClient struct {
	client  *http.Client
	baseURL string
	cache   *cache.Cache
	log     *logger.Logger
}

// NewAvatarClient builds the client from configuration.
func NewAvatarClient(avatarCache *cache.Cache, log *logger.Logger) *AvatarClient {
	cfg := config.Get()
	return &AvatarClient{
		client:  &http.Client{Timeout: cfg.Upload.ProbeTimeout},
		baseURL: cfg.Providers.AvatarServiceURL,
		cache:   avatarCache,
		log:     log.WithComponent("avatar"),
	}
}

// URL builds the avatar URL for a display name without any network
// round trip.
func (c *AvatarClient) URL(displayName string, size int) string {
	if displayName == "" {
		displayName = "User"
	}
	if size <= 0 {
		size = 40
	}
	query := url.Values{}
	query.Set("name", displayName)
	query.Set("background", "4F46E5")
	query.Set("color", "fff")
	query.Set("size", fmt.Sprintf("%d", size))
	query.Set("bold", "true")
	return c.baseURL + "?" + query.Encode()
}

// ResolveURL returns a verified avatar URL for a display name. The
// result is cached; an unreachable service yields the unverified URL so
// the UI still has something to render.
func (c *AvatarClient) ResolveURL(ctx context.Context, displayName string, size int) string {
	avatarURL := c.URL(displayName, size)

	key := "avatar:" + avatarURL
	if _, ok := c.cache.Get(key); ok {
		return avatarURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return avatarURL
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("avatar service unreachable", "name", displayName, "error", err.Error())
		return avatarURL
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		c.cache.Set(key, true)
	}
	return avatarURL
}
