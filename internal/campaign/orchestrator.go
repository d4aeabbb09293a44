// Package campaign drives campaign generation end to end: prompting,
// parsing, image fan-out, per-post async tasks, and persistence.
package campaign

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/campaign-agent/internal/ai"
	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/internal/parser"
	"github.com/campaign-agent/internal/source"
	"github.com/campaign-agent/internal/storage"
	"github.com/campaign-agent/pkg/logger"
)

// imageConcurrency bounds the image generation fan-out
const imageConcurrency = 4

// Orchestrator runs the two-phase campaign generation flow
type Orchestrator struct {
	provider ai.Provider
	fetcher  *source.Fetcher
	repo     storage.Repository
	cfg      *config.Config
	log      *logger.Logger
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(provider ai.Provider, fetcher *source.Fetcher, repo storage.Repository, cfg *config.Config, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		fetcher:  fetcher,
		repo:     repo,
		cfg:      cfg,
		log:      log.WithComponent("orchestrator"),
	}
}

// Generate runs the full flow: source resolution, strategy analysis,
// content generation, image fan-out, persistence. The returned campaign
// is complete; partial image failures are recorded on the affected posts
// rather than failing the campaign.
func (o *Orchestrator) Generate(ctx context.Context, req *models.GenerationRequest) (*models.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.Mode == models.InputModeURL && req.SourceText == "" {
		text, err := o.fetcher.Fetch(ctx, req.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve source URL: %w", err)
		}
		req.SourceText = text
	}

	campaign := models.NewCampaign(req)
	state := NewState(campaign)
	log := o.log.WithCampaignID(campaign.ID)

	analysis, grounding, err := o.analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	state.Update(func(c *models.Campaign) {
		c.Analysis = *analysis
		c.Grounding = grounding
	})

	posts, err := o.generateContent(ctx, req, analysis)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		log.Warn().Msg("Model produced a valid but empty response, campaign has no posts")
	}
	state.Update(func(c *models.Campaign) {
		c.Posts = posts
	})

	base := state.Snapshot()
	if !base.HasContent() {
		return nil, errors.New("model returned an empty campaign")
	}

	// Persist before the image fan-out so a crash mid-batch never loses
	// the generated text. Images settle into a second write.
	if err := o.repo.SaveCampaign(ctx, base); err != nil {
		return nil, fmt.Errorf("failed to save campaign: %w", err)
	}

	o.generateImages(ctx, state, posts)

	result := state.Snapshot()
	if err := o.repo.SaveCampaign(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save campaign: %w", err)
	}

	log.Info().
		Int("posts", len(result.Posts)).
		Bool("grounded", result.Grounding != nil).
		Msg("Campaign generated")
	return result, nil
}

// analyze runs the strategy phase. On providers with a retrieval tool the
// phase runs grounded and without schema enforcement; the two are mutually
// exclusive, and grounding is worth more to a strategy pass than a schema
// the parser can recover without.
func (o *Orchestrator) analyze(ctx context.Context, req *models.GenerationRequest) (*models.TopicAnalysis, *models.GroundingMetadata, error) {
	useSearch := o.provider.Name() == models.ProviderGemini && req.Mode == models.InputModeTopic

	result, err := o.provider.Generate(ctx, &ai.GenerateRequest{
		Prompt:    ai.AnalysisPrompt(req, useSearch),
		UseSearch: useSearch,
		ForceJSON: !useSearch,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("analysis phase failed: %w", err)
	}

	parsed, err := parser.Parse(result.Text)
	if err != nil {
		return nil, nil, fmt.Errorf("analysis phase produced unusable output: %w", err)
	}
	if parsed.Analysis == nil {
		o.log.Warn().Msg("Analysis phase returned no topic_analysis, continuing with placeholder")
		placeholder := models.PlaceholderAnalysis()
		return &placeholder, result.Grounding, nil
	}
	return parsed.Analysis, result.Grounding, nil
}

// generateContent runs the post generation phase with the approved
// analysis pinned into the prompt.
func (o *Orchestrator) generateContent(ctx context.Context, req *models.GenerationRequest, analysis *models.TopicAnalysis) ([]*models.Post, error) {
	result, err := o.provider.Generate(ctx, &ai.GenerateRequest{
		Prompt:    ai.ContentPrompt(req, *analysis),
		ForceJSON: true,
		Shape:     ai.ShapeCampaign,
	})
	if err != nil {
		return nil, fmt.Errorf("content phase failed: %w", err)
	}

	parsed, err := parser.Parse(result.Text)
	if err != nil {
		return nil, fmt.Errorf("content phase produced unusable output: %w", err)
	}
	return parsed.Posts, nil
}

// generateImages fans out one image generation per post. Each post
// settles independently: a failed image marks that post and nothing else.
func (o *Orchestrator) generateImages(ctx context.Context, state *State, posts []*models.Post) {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(imageConcurrency)

	for _, post := range posts {
		if post.ImagePrompt == "" {
			continue
		}
		postID := post.ID
		prompt := post.ImagePrompt
		aspect := ai.AspectFor(post.Platform)

		state.UpdatePost(postID, func(p *models.Post) {
			p.ImageStatus = models.ImageLoading
		})

		group.Go(func() error {
			image, err := o.provider.GenerateImage(ctx, prompt, aspect)
			if err != nil {
				if ai.KindOf(err) == ai.KindUnsupported {
					state.UpdatePost(postID, func(p *models.Post) {
						p.ImageStatus = models.ImageIdle
					})
					return nil
				}
				o.log.Warn().Err(err).Str("post_id", postID).Msg("Image generation failed")
				state.UpdatePost(postID, func(p *models.Post) {
					p.ImageStatus = models.ImageError
					p.ImageError = err.Error()
				})
				return nil
			}
			state.UpdatePost(postID, func(p *models.Post) {
				p.ImageStatus = models.ImageReady
				p.ImageData = image.DataURI()
				p.ImageError = ""
			})
			return nil
		})
	}

	group.Wait()
}

// Suggestions asks the provider for posting-time recommendations for the
// campaign's platforms and persists them onto the campaign.
func (o *Orchestrator) Suggestions(ctx context.Context, state *State) ([]models.SchedulingSuggestion, error) {
	snapshot := state.Snapshot()
	platforms := make([]models.Platform, 0, len(snapshot.Posts))
	seen := make(map[models.Platform]bool)
	for _, post := range snapshot.Posts {
		if !seen[post.Platform] {
			seen[post.Platform] = true
			platforms = append(platforms, post.Platform)
		}
	}
	if len(platforms) == 0 {
		return nil, errors.New("campaign has no posts to schedule")
	}

	result, err := o.provider.Generate(ctx, &ai.GenerateRequest{
		Prompt:    ai.SchedulingPrompt(platforms),
		ForceJSON: true,
		Shape:     ai.ShapeScheduling,
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling suggestions failed: %w", err)
	}

	parsed, err := parser.Parse(result.Text)
	if err != nil {
		return nil, fmt.Errorf("scheduling suggestions produced unusable output: %w", err)
	}
	if len(parsed.Suggestions) == 0 {
		return nil, errors.New("model returned no scheduling suggestions")
	}

	state.Update(func(c *models.Campaign) {
		c.Suggestions = parsed.Suggestions
	})
	if err := o.repo.SaveCampaign(ctx, state.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to save campaign: %w", err)
	}
	return parsed.Suggestions, nil
}
