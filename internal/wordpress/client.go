// Package wordpress publishes campaign posts through the WordPress REST
// API using application-password basic auth.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/pkg/logger"
	"github.com/campaign-agent/pkg/ratelimit"
)

// Client handles WordPress REST API requests
type Client struct {
	baseURL     string
	username    string
	appPassword string
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClient creates a new WordPress API client. The site URL may be given
// with or without a trailing slash or the wp-json prefix.
func NewClient(cfg models.WordPressConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	base = strings.TrimSuffix(base, "/wp-json/wp/v2")
	base = strings.TrimSuffix(base, "/wp-json")

	return &Client{
		baseURL:     base + "/wp-json/wp/v2",
		username:    cfg.Username,
		appPassword: cfg.AppPassword,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("wordpress"),
	}
}

// do performs an HTTP request with basic auth
func (c *Client) do(ctx context.Context, method, path string, contentType string, body io.Reader) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterWordPress); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPassword)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Msg("Making WordPress API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Validate checks the credentials against the authenticated user endpoint
func (c *Client) Validate(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/users/me", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("credential check failed: %s - %s", resp.Status, string(body))
	}
	return nil
}

// Media is an uploaded media item
type Media struct {
	ID  int    `json:"id"`
	URL string `json:"source_url"`
}

// UploadMedia uploads raw image bytes to the media library. Built on a
// raw request rather than do() because the upload needs a
// Content-Disposition header.
func (c *Client) UploadMedia(ctx context.Context, filename, mimeType string, data []byte) (*Media, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterWordPress); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/media", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPassword)
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("media upload rejected: %s - %s", resp.Status, string(body))
	}

	var media Media
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return nil, fmt.Errorf("failed to decode media response: %w", err)
	}

	c.log.Info().Int("media_id", media.ID).Msg("Uploaded media")
	return &media, nil
}

type createPostRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	FeaturedMedia int    `json:"featured_media,omitempty"`
}

// PublishedPost is the created WordPress post
type PublishedPost struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

// CreatePost creates a published post, optionally with a featured image
func (c *Client) CreatePost(ctx context.Context, title, content string, featuredMedia int) (*PublishedPost, error) {
	payload, err := json.Marshal(createPostRequest{
		Title:         title,
		Content:       content,
		Status:        "publish",
		FeaturedMedia: featuredMedia,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/posts", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("post creation rejected: %s - %s", resp.Status, string(body))
	}

	var created PublishedPost
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode post response: %w", err)
	}

	c.log.Info().
		Int("post_id", created.ID).
		Str("link", created.Link).
		Msg("Published post")
	return &created, nil
}

// Publish pushes one campaign post to WordPress: the image first when one
// is attached, then the post with the media as featured image. Returns the
// public link.
func (c *Client) Publish(ctx context.Context, post *models.Post) (string, error) {
	variation := post.Variation(0)
	if variation == nil {
		return "", fmt.Errorf("post %s has no variations to publish", post.ID)
	}

	mediaID := 0
	if post.ImageData != "" {
		mimeType, data, err := DecodeDataURI(post.ImageData)
		if err != nil {
			c.log.Warn().Err(err).Str("post_id", post.ID).Msg("Skipping unreadable image attachment")
		} else {
			media, err := c.UploadMedia(ctx, post.ID+imageExtension(mimeType), mimeType, data)
			if err != nil {
				return "", fmt.Errorf("failed to upload image: %w", err)
			}
			mediaID = media.ID
		}
	}

	created, err := c.CreatePost(ctx, variation.Title, RenderContent(post, variation), mediaID)
	if err != nil {
		return "", err
	}
	return created.Link, nil
}

// RenderContent builds the HTML body for a post's primary variation
func RenderContent(post *models.Post, variation *models.Variation) string {
	var b strings.Builder
	for _, paragraph := range strings.Split(variation.Text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		b.WriteString("<p>" + paragraph + "</p>\n")
	}
	if variation.CallToAction != "" {
		b.WriteString("<p><strong>" + variation.CallToAction + "</strong></p>\n")
	}
	if len(variation.Hashtags) > 0 {
		b.WriteString("<p><em>" + strings.Join(variation.Hashtags, " ") + "</em></p>\n")
	}
	return b.String()
}

// DecodeDataURI splits a data URI into its MIME type and decoded bytes
func DecodeDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}
	rest := strings.TrimPrefix(uri, "data:")
	semi := strings.Index(rest, ";base64,")
	if semi == -1 {
		return "", nil, fmt.Errorf("data URI is not base64-encoded")
	}
	mimeType := rest[:semi]
	data, err := base64.StdEncoding.DecodeString(rest[semi+len(";base64,"):])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return mimeType, data, nil
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
