package campaign

import (
	"context"
	"time"

	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/internal/storage"
	"github.com/campaign-agent/internal/wordpress"
	"github.com/campaign-agent/pkg/logger"
)

// Publisher walks the stored campaigns and publishes posts whose
// scheduled time has passed. Driven by the scheduler daemon's cron tick.
type Publisher struct {
	repo storage.Repository
	wp   *wordpress.Client
	cfg  *config.Config
	log  *logger.Logger
}

// NewPublisher creates a Publisher
func NewPublisher(repo storage.Repository, wp *wordpress.Client, cfg *config.Config, log *logger.Logger) *Publisher {
	return &Publisher{
		repo: repo,
		wp:   wp,
		cfg:  cfg,
		log:  log.WithComponent("publisher"),
	}
}

// ProcessDue publishes every due scheduled post. Per-post failures are
// recorded on the post and do not abort the run. Returns the number of
// posts published.
func (p *Publisher) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	campaigns, err := p.repo.ListCampaigns(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, campaign := range campaigns {
		due := duePosts(campaign, now)
		if len(due) == 0 {
			continue
		}

		manager := NewManager(NewState(campaign), nil, p.wp, p.repo, p.cfg, p.log)
		for _, postID := range due {
			if err := manager.Publish(ctx, postID); err != nil {
				p.log.Warn().Err(err).
					Str("campaign_id", campaign.ID).
					Str("post_id", postID).
					Msg("Scheduled publish failed")
				continue
			}
			published++
		}
	}

	if published > 0 {
		p.log.Info().Int("published", published).Msg("Processed due posts")
	}
	return published, nil
}

func duePosts(campaign *models.Campaign, now time.Time) []string {
	var due []string
	for _, post := range campaign.Posts {
		if post.DueFor(now) {
			due = append(due, post.ID)
		}
	}
	return due
}
