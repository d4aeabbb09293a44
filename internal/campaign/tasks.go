package campaign

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/campaign-agent/internal/ai"
	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/internal/parser"
	"github.com/campaign-agent/internal/storage"
	"github.com/campaign-agent/internal/wordpress"
	"github.com/campaign-agent/pkg/logger"
)

// ErrPostNotFound is returned when an operation targets a post that is
// not part of the campaign.
var ErrPostNotFound = errors.New("post not found in campaign")

// Manager runs per-post operations against an owned campaign. Image
// regeneration, rewrites, and clip scripts go through field-scoped task
// ownership so a retriggered operation silently discards the older run's
// result.
type Manager struct {
	state    *State
	provider ai.Provider
	wp       *wordpress.Client
	repo     storage.Repository
	cfg      *config.Config
	log      *logger.Logger
}

// NewManager creates a Manager for one campaign. wp may be nil when
// publishing is not configured.
func NewManager(state *State, provider ai.Provider, wp *wordpress.Client, repo storage.Repository, cfg *config.Config, log *logger.Logger) *Manager {
	return &Manager{
		state:    state,
		provider: provider,
		wp:       wp,
		repo:     repo,
		cfg:      cfg,
		log:      log.WithComponent("tasks").WithCampaignID(state.CampaignID()),
	}
}

// State exposes the owned campaign state
func (m *Manager) State() *State {
	return m.state
}

func (m *Manager) save(ctx context.Context) error {
	if err := m.repo.SaveCampaign(ctx, m.state.Snapshot()); err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	return nil
}

func (m *Manager) previewPath(postID string) string {
	return filepath.Join(m.cfg.Images.PreviewDir, m.state.CampaignID(), postID+".png")
}

// RegenerateImage replaces a post's image. The existing preview file is
// released before generation starts so a failed run never leaves the old
// image displayed as if it were current.
func (m *Manager) RegenerateImage(ctx context.Context, postID string) error {
	snapshot := m.state.Snapshot()
	post := snapshot.Post(postID)
	if post == nil {
		return ErrPostNotFound
	}
	if post.ImagePrompt == "" {
		return fmt.Errorf("post %s has no image prompt", postID)
	}

	var oldPreview string
	task := m.state.Acquire(imageField(postID), func(c *models.Campaign) {
		if p := c.Post(postID); p != nil {
			oldPreview = p.ImagePath
			p.ImageStatus = models.ImageLoading
			p.ImagePath = ""
			p.ImageError = ""
		}
	})
	if oldPreview != "" {
		if err := os.Remove(oldPreview); err != nil && !os.IsNotExist(err) {
			m.log.Warn().Err(err).Str("path", oldPreview).Msg("Failed to remove stale image preview")
		}
	}

	image, err := m.provider.GenerateImage(ctx, post.ImagePrompt, ai.AspectFor(post.Platform))
	if err != nil {
		m.state.Commit(task, func(c *models.Campaign) {
			if p := c.Post(postID); p != nil {
				p.ImageStatus = models.ImageError
				p.ImageError = err.Error()
			}
		})
		m.save(ctx)
		return fmt.Errorf("image regeneration failed: %w", err)
	}

	previewPath := m.previewPath(postID)
	if err := os.MkdirAll(filepath.Dir(previewPath), 0755); err == nil {
		if err := os.WriteFile(previewPath, image.Data, 0644); err != nil {
			m.log.Warn().Err(err).Str("path", previewPath).Msg("Failed to write image preview")
			previewPath = ""
		}
	} else {
		previewPath = ""
	}

	committed := m.state.Commit(task, func(c *models.Campaign) {
		if p := c.Post(postID); p != nil {
			p.ImageStatus = models.ImageReady
			p.ImageData = image.DataURI()
			p.ImagePath = previewPath
			p.ImageError = ""
		}
	})
	if !committed {
		// A newer regeneration owns the field; this result is stale.
		if previewPath != "" {
			os.Remove(previewPath)
		}
		m.log.Debug().Str("post_id", postID).Msg("Discarded stale image result")
		return nil
	}
	return m.save(ctx)
}

// Rewrite regenerates one field of one variation in place
func (m *Manager) Rewrite(ctx context.Context, postID string, variationIdx int, field models.RewriteField) error {
	snapshot := m.state.Snapshot()
	post := snapshot.Post(postID)
	if post == nil {
		return ErrPostNotFound
	}

	current, err := fieldValue(post, variationIdx, field)
	if err != nil {
		return err
	}

	task := m.state.Acquire(rewriteField(postID, field), func(c *models.Campaign) {
		if p := c.Post(postID); p != nil {
			p.RewritingField = field
		}
	})

	result, err := m.provider.Generate(ctx, &ai.GenerateRequest{
		Prompt:    ai.RewritePrompt(field, current, snapshot.Tone),
		ForceJSON: true,
		Shape:     ai.ShapeRewrite,
	})
	if err != nil {
		m.state.Commit(task, func(c *models.Campaign) {
			if p := c.Post(postID); p != nil {
				p.RewritingField = ""
			}
		})
		return fmt.Errorf("rewrite failed: %w", err)
	}

	text, err := parser.ParseRewrite(result.Text)
	if err != nil {
		m.state.Commit(task, func(c *models.Campaign) {
			if p := c.Post(postID); p != nil {
				p.RewritingField = ""
			}
		})
		return fmt.Errorf("rewrite produced unusable output: %w", err)
	}

	committed := m.state.Commit(task, func(c *models.Campaign) {
		p := c.Post(postID)
		if p == nil {
			return
		}
		setFieldValue(p, variationIdx, field, text)
		p.RewritingField = ""
	})
	if !committed {
		m.log.Debug().Str("post_id", postID).Str("field", string(field)).Msg("Discarded stale rewrite result")
		return nil
	}
	return m.save(ctx)
}

func fieldValue(post *models.Post, variationIdx int, field models.RewriteField) (string, error) {
	if field == models.RewriteImagePrompt {
		return post.ImagePrompt, nil
	}
	variation := post.Variation(variationIdx)
	if variation == nil {
		return "", fmt.Errorf("post %s has no variation %d", post.ID, variationIdx)
	}
	switch field {
	case models.RewritePostTitle:
		return variation.Title, nil
	case models.RewritePostText:
		return variation.Text, nil
	case models.RewriteCallToAction:
		return variation.CallToAction, nil
	default:
		return "", fmt.Errorf("unknown rewrite field %q", field)
	}
}

func setFieldValue(post *models.Post, variationIdx int, field models.RewriteField, value string) {
	if field == models.RewriteImagePrompt {
		post.ImagePrompt = value
		return
	}
	variation := post.Variation(variationIdx)
	if variation == nil {
		return
	}
	switch field {
	case models.RewritePostTitle:
		variation.Title = value
	case models.RewritePostText:
		variation.Text = value
	case models.RewriteCallToAction:
		variation.CallToAction = value
	}
}

// GenerateSimilar produces new posts modeled on an existing one and
// appends them to the campaign.
func (m *Manager) GenerateSimilar(ctx context.Context, postID string, count int) ([]*models.Post, error) {
	snapshot := m.state.Snapshot()
	post := snapshot.Post(postID)
	if post == nil {
		return nil, ErrPostNotFound
	}
	if count <= 0 {
		count = 2
	}

	result, err := m.provider.Generate(ctx, &ai.GenerateRequest{
		Prompt:    ai.SimilarPostsPrompt(post, count, snapshot.Tone),
		ForceJSON: true,
		Shape:     ai.ShapeCampaign,
	})
	if err != nil {
		return nil, fmt.Errorf("similar post generation failed: %w", err)
	}

	parsed, err := parser.Parse(result.Text)
	if err != nil {
		return nil, fmt.Errorf("similar post generation produced unusable output: %w", err)
	}
	if len(parsed.Posts) == 0 {
		return nil, errors.New("model returned no similar posts")
	}

	for _, p := range parsed.Posts {
		if p.Platform == "" {
			p.Platform = post.Platform
		}
	}
	m.state.Update(func(c *models.Campaign) {
		c.Posts = append(c.Posts, parsed.Posts...)
	})
	if err := m.save(ctx); err != nil {
		return nil, err
	}
	return parsed.Posts, nil
}

// ClipScript generates a short vertical-video script for a post
func (m *Manager) ClipScript(ctx context.Context, postID string) (string, error) {
	snapshot := m.state.Snapshot()
	post := snapshot.Post(postID)
	if post == nil {
		return "", ErrPostNotFound
	}

	task := m.state.Acquire(clipField(postID), func(c *models.Campaign) {
		if p := c.Post(postID); p != nil {
			p.ClipScriptLoading = true
		}
	})

	result, err := m.provider.Generate(ctx, &ai.GenerateRequest{
		Prompt: ai.ClipScriptPrompt(post),
	})
	if err != nil {
		m.state.Commit(task, func(c *models.Campaign) {
			if p := c.Post(postID); p != nil {
				p.ClipScriptLoading = false
			}
		})
		return "", fmt.Errorf("clip script generation failed: %w", err)
	}

	committed := m.state.Commit(task, func(c *models.Campaign) {
		if p := c.Post(postID); p != nil {
			p.ClipScript = result.Text
			p.ClipScriptLoading = false
		}
	})
	if !committed {
		m.log.Debug().Str("post_id", postID).Msg("Discarded stale clip script result")
		return "", nil
	}
	if err := m.save(ctx); err != nil {
		return "", err
	}
	return result.Text, nil
}

// Publish pushes one post to WordPress. Already-published posts are
// skipped, making bulk publish safe to rerun.
func (m *Manager) Publish(ctx context.Context, postID string) error {
	if m.wp == nil {
		return errors.New("WordPress is not configured")
	}

	snapshot := m.state.Snapshot()
	post := snapshot.Post(postID)
	if post == nil {
		return ErrPostNotFound
	}
	if post.WordPressStatus == models.WordPressPublished {
		m.log.Debug().Str("post_id", postID).Msg("Post already published, skipping")
		return nil
	}

	task := m.state.Acquire(wordpressField(postID), func(c *models.Campaign) {
		if p := c.Post(postID); p != nil {
			p.WordPressStatus = models.WordPressPublishing
			p.WordPressError = ""
		}
	})

	link, err := m.wp.Publish(ctx, post)
	if err != nil {
		m.state.Commit(task, func(c *models.Campaign) {
			if p := c.Post(postID); p != nil {
				p.WordPressStatus = models.WordPressFailed
				p.WordPressError = err.Error()
			}
		})
		m.save(ctx)
		return fmt.Errorf("publish failed: %w", err)
	}

	m.state.Commit(task, func(c *models.Campaign) {
		if p := c.Post(postID); p != nil {
			p.WordPressStatus = models.WordPressPublished
			p.WordPressURL = link
			p.WordPressError = ""
			p.IsScheduled = false
			p.ScheduledAt = nil
		}
	})
	return m.save(ctx)
}

// PublishAll publishes every unpublished post sequentially with a delay
// between posts. Failures are collected, not fatal; the run continues to
// the next post.
func (m *Manager) PublishAll(ctx context.Context) (published int, failed int, err error) {
	if m.wp == nil {
		return 0, 0, errors.New("WordPress is not configured")
	}

	snapshot := m.state.Snapshot()
	for i, post := range snapshot.Posts {
		if post.WordPressStatus == models.WordPressPublished {
			continue
		}
		if i > 0 {
			select {
			case <-time.After(m.cfg.Publishing.BulkDelay):
			case <-ctx.Done():
				return published, failed, ctx.Err()
			}
		}
		if err := m.Publish(ctx, post.ID); err != nil {
			failed++
			m.log.Warn().Err(err).Str("post_id", post.ID).Msg("Bulk publish: post failed")
			continue
		}
		published++
	}
	return published, failed, nil
}

// Schedule marks a post for automatic publishing at the given time
func (m *Manager) Schedule(ctx context.Context, postID string, at time.Time) error {
	if at.Before(time.Now()) {
		return fmt.Errorf("scheduled time %s is in the past", at.Format(time.RFC3339))
	}
	ok := m.state.UpdatePost(postID, func(p *models.Post) {
		p.IsScheduled = true
		p.ScheduledAt = &at
	})
	if !ok {
		return ErrPostNotFound
	}
	return m.save(ctx)
}

// Unschedule clears a post's scheduled publishing
func (m *Manager) Unschedule(ctx context.Context, postID string) error {
	ok := m.state.UpdatePost(postID, func(p *models.Post) {
		p.IsScheduled = false
		p.ScheduledAt = nil
	})
	if !ok {
		return ErrPostNotFound
	}
	return m.save(ctx)
}
