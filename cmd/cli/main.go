package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campaign-agent/internal/ai"
	"github.com/campaign-agent/internal/campaign"
	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/internal/source"
	"github.com/campaign-agent/internal/storage"
	"github.com/campaign-agent/internal/storage/sqlite"
	"github.com/campaign-agent/internal/wordpress"
	"github.com/campaign-agent/pkg/logger"
	"github.com/campaign-agent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "campaign-agent",
		Short: "AI marketing campaign generator",
		Long: `Generates multi-platform marketing campaigns from a topic or URL
using Gemini, OpenAI, Claude, or OpenRouter, and publishes them to WordPress.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(campaignsCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(settingsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN, cfg.History.Limit)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Saved settings override the config file
	ctx := context.Background()
	if saved, err := repo.GetAIConfig(ctx); err == nil {
		cfg.AI = *saved
	}
	if saved, err := repo.GetWordPressConfig(ctx); err == nil {
		cfg.WordPress = *saved
	}

	return nil
}

func newProvider(limiter *ratelimit.MultiLimiter) (ai.Provider, error) {
	return ai.New(cfg, limiter, log)
}

func wordpressClient(limiter *ratelimit.MultiLimiter) *wordpress.Client {
	if err := cfg.WordPress.Ready(); err != nil {
		return nil
	}
	return wordpress.NewClient(cfg.WordPress, limiter, log)
}

// managerFor loads a stored campaign and wraps it in a task manager
func managerFor(ctx context.Context, campaignID string) (*campaign.Manager, error) {
	stored, err := repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %s: %w", campaignID, err)
	}

	limiter := ratelimit.NewDefaultLimiter()
	provider, err := newProvider(limiter)
	if err != nil {
		return nil, err
	}

	state := campaign.NewState(stored)
	return campaign.NewManager(state, provider, wordpressClient(limiter), repo, cfg, log), nil
}

// ============ GENERATE COMMAND ============

func generateCmd() *cobra.Command {
	var (
		topic       string
		url         string
		platforms   []string
		tone        string
		goal        string
		count       int
		trendBoost  bool
		skipSuggest bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			req := &models.GenerationRequest{
				Mode:       models.InputModeTopic,
				Topic:      topic,
				SourceURL:  url,
				Tone:       models.Tone(tone),
				Goal:       models.CampaignGoal(goal),
				PostCount:  count,
				TrendBoost: trendBoost,
			}
			if url != "" {
				req.Mode = models.InputModeURL
			}
			if len(platforms) == 0 {
				req.Platforms = models.AllPlatforms
			} else {
				for _, p := range platforms {
					req.Platforms = append(req.Platforms, models.Platform(p))
				}
			}
			if req.Tone == "" {
				req.Tone = models.Tone(cfg.Generation.DefaultTone)
			}
			if req.Goal == "" {
				req.Goal = models.CampaignGoal(cfg.Generation.DefaultGoal)
			}
			if req.PostCount == 0 {
				req.PostCount = cfg.Generation.DefaultPostCount
			}

			limiter := ratelimit.NewDefaultLimiter()
			provider, err := newProvider(limiter)
			if err != nil {
				return err
			}

			fetcher := source.NewFetcher(limiter, log)
			orchestrator := campaign.NewOrchestrator(provider, fetcher, repo, cfg, log)

			result, err := orchestrator.Generate(ctx, req)
			if err != nil {
				return err
			}

			printCampaign(result)

			// Suggestions ride along after the campaign is saved; a
			// failure here never fails the generation itself.
			if !skipSuggest {
				state := campaign.NewState(result)
				suggestions, err := orchestrator.Suggestions(ctx, state)
				if err != nil {
					log.Warn().Err(err).Msg("Failed to get scheduling suggestions")
				} else {
					printSuggestions(suggestions)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic or keyword to build the campaign around")
	cmd.Flags().StringVar(&url, "url", "", "Source URL or sitemap (overrides --topic mode)")
	cmd.Flags().StringSliceVar(&platforms, "platforms", nil, "Target platforms (default: all)")
	cmd.Flags().StringVar(&tone, "tone", "", "Campaign tone")
	cmd.Flags().StringVar(&goal, "goal", "", "Campaign goal")
	cmd.Flags().IntVar(&count, "count", 0, "Number of posts to generate")
	cmd.Flags().BoolVar(&trendBoost, "trend-boost", false, "Weight trending angles heavily")
	cmd.Flags().BoolVar(&skipSuggest, "no-suggest-schedule", false, "Skip the posting-time suggestion fetch")
	return cmd
}

// ============ CAMPAIGN COMMANDS ============

func campaignsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "Campaign history commands",
	}

	cmd.AddCommand(campaignsListCmd())
	cmd.AddCommand(campaignsShowCmd())
	cmd.AddCommand(campaignsDeleteCmd())
	cmd.AddCommand(campaignsClearCmd())
	cmd.AddCommand(campaignsSuggestCmd())
	return cmd
}

func campaignsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored campaigns, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			campaigns, err := repo.ListCampaigns(context.Background())
			if err != nil {
				return err
			}
			if len(campaigns) == 0 {
				fmt.Println("No campaigns stored.")
				return nil
			}
			for _, c := range campaigns {
				fmt.Printf("%-28s %-40s %d posts  %s\n",
					c.ID, truncate(c.Title, 40), len(c.Posts), c.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func campaignsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "Show a stored campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := repo.GetCampaign(context.Background(), args[0])
			if err != nil {
				return err
			}
			printCampaign(stored)
			printSuggestions(stored.Suggestions)
			return nil
		},
	}
}

func campaignsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <campaign-id>",
		Short: "Delete a stored campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repo.DeleteCampaign(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted.")
			return nil
		},
	}
}

func campaignsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repo.ClearCampaigns(context.Background()); err != nil {
				return err
			}
			fmt.Println("History cleared.")
			return nil
		},
	}
}

func campaignsSuggestCmd() *cobra.Command {
	var campaignID string

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Fetch posting-time suggestions for a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			stored, err := repo.GetCampaign(ctx, campaignID)
			if err != nil {
				return err
			}

			limiter := ratelimit.NewDefaultLimiter()
			provider, err := newProvider(limiter)
			if err != nil {
				return err
			}
			orchestrator := campaign.NewOrchestrator(provider, source.NewFetcher(limiter, log), repo, cfg, log)

			suggestions, err := orchestrator.Suggestions(ctx, campaign.NewState(stored))
			if err != nil {
				return err
			}
			printSuggestions(suggestions)
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "Campaign ID")
	cmd.MarkFlagRequired("campaign")
	return cmd
}

// ============ POST COMMANDS ============

func postsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Per-post operations",
	}

	cmd.AddCommand(postsImageCmd())
	cmd.AddCommand(postsRewriteCmd())
	cmd.AddCommand(postsSimilarCmd())
	cmd.AddCommand(postsClipCmd())
	return cmd
}

func postsImageCmd() *cobra.Command {
	var campaignID, postID string

	cmd := &cobra.Command{
		Use:   "image",
		Short: "Regenerate a post's image",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := managerFor(ctx, campaignID)
			if err != nil {
				return err
			}
			if err := manager.RegenerateImage(ctx, postID); err != nil {
				return err
			}
			fmt.Println("Image regenerated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "Campaign ID")
	cmd.Flags().StringVar(&postID, "post", "", "Post ID")
	cmd.MarkFlagRequired("campaign")
	cmd.MarkFlagRequired("post")
	return cmd
}

func postsRewriteCmd() *cobra.Command {
	var campaignID, postID, field string
	var variation int

	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Rewrite one field of a post variation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := managerFor(ctx, campaignID)
			if err != nil {
				return err
			}
			if err := manager.Rewrite(ctx, postID, variation, models.RewriteField(field)); err != nil {
				return err
			}
			fmt.Println("Field rewritten.")
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "Campaign ID")
	cmd.Flags().StringVar(&postID, "post", "", "Post ID")
	cmd.Flags().IntVar(&variation, "variation", 0, "Variation index")
	cmd.Flags().StringVar(&field, "field", "post_text", "Field to rewrite (post_title, post_text, call_to_action, image_prompt)")
	cmd.MarkFlagRequired("campaign")
	cmd.MarkFlagRequired("post")
	return cmd
}

func postsSimilarCmd() *cobra.Command {
	var campaignID, postID string
	var count int

	cmd := &cobra.Command{
		Use:   "similar",
		Short: "Generate new posts in the style of an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := managerFor(ctx, campaignID)
			if err != nil {
				return err
			}
			posts, err := manager.GenerateSimilar(ctx, postID, count)
			if err != nil {
				return err
			}
			fmt.Printf("Generated %d posts:\n", len(posts))
			for _, p := range posts {
				printPost(p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "Campaign ID")
	cmd.Flags().StringVar(&postID, "post", "", "Post ID")
	cmd.Flags().IntVar(&count, "count", 2, "How many posts to generate")
	cmd.MarkFlagRequired("campaign")
	cmd.MarkFlagRequired("post")
	return cmd
}

func postsClipCmd() *cobra.Command {
	var campaignID, postID string

	cmd := &cobra.Command{
		Use:   "clip",
		Short: "Generate a short-video clip script for a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := managerFor(ctx, campaignID)
			if err != nil {
				return err
			}
			script, err := manager.ClipScript(ctx, postID)
			if err != nil {
				return err
			}
			fmt.Println(script)
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "Campaign ID")
	cmd.Flags().StringVar(&postID, "post", "", "Post ID")
	cmd.MarkFlagRequired("campaign")
	cmd.MarkFlagRequired("post")
	return cmd
}

// ============ PUBLISH COMMANDS ============

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "WordPress publishing commands",
	}

	cmd.AddCommand(publishPostCmd())
	cmd.AddCommand(publishAllCmd())
	cmd.AddCommand(publishScheduleCmd())
	cmd.AddCommand(publishUnscheduleCmd())
	return cmd
}

func publishPostCmd() *cobra.Command {
	var campaignID, postID string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Publish one post to WordPress",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := managerFor(ctx, campaignID)
			if err != nil {
				return err
			}
			if err := manager.Publish(ctx, postID); err != nil {
				return err
			}
			fmt.Println("Published.")
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "Campaign ID")
	cmd.Flags().StringVar(&postID, "post", "", "Post ID")
	cmd.MarkFlagRequired("campaign")
	cmd.MarkFlagRequired("post")
	return cmd
}

func publishAllCmd() *cobra.Command {
	var campaignID string

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Publish every unpublished post of a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := managerFor(ctx, campaignID)
			if err != nil {
				return err
			}
			published, failed, err := manager.PublishAll(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Published: %d  Failed: %d\n", published, failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "Campaign ID")
	cmd.MarkFlagRequired("campaign")
	return cmd
}

func publishScheduleCmd() *cobra.Command {
	var campaignID, postID, at string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a post for automatic publishing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			when, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --at time (want RFC3339): %w", err)
			}
			manager, err := managerFor(ctx, campaignID)
			if err != nil {
				return err
			}
			if err := manager.Schedule(ctx, postID, when); err != nil {
				return err
			}
			fmt.Printf("Scheduled for %s.\n", when.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "Campaign ID")
	cmd.Flags().StringVar(&postID, "post", "", "Post ID")
	cmd.Flags().StringVar(&at, "at", "", "Publish time, RFC3339")
	cmd.MarkFlagRequired("campaign")
	cmd.MarkFlagRequired("post")
	cmd.MarkFlagRequired("at")
	return cmd
}

func publishUnscheduleCmd() *cobra.Command {
	var campaignID, postID string

	cmd := &cobra.Command{
		Use:   "unschedule",
		Short: "Clear a post's scheduled publishing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := managerFor(ctx, campaignID)
			if err != nil {
				return err
			}
			if err := manager.Unschedule(ctx, postID); err != nil {
				return err
			}
			fmt.Println("Unscheduled.")
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign", "", "Campaign ID")
	cmd.Flags().StringVar(&postID, "post", "", "Post ID")
	cmd.MarkFlagRequired("campaign")
	cmd.MarkFlagRequired("post")
	return cmd
}

// ============ SETTINGS COMMANDS ============

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Provider and WordPress settings",
	}

	cmd.AddCommand(settingsAICmd())
	cmd.AddCommand(settingsWordPressCmd())
	return cmd
}

func settingsAICmd() *cobra.Command {
	var provider, key, model string

	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Configure and validate the AI provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg.AI = models.AIConfig{
				Provider: models.AIProvider(provider),
				APIKey:   key,
				Model:    model,
			}

			limiter := ratelimit.NewDefaultLimiter()
			p, err := ai.NewForValidation(cfg, limiter, log)
			if err != nil {
				return err
			}

			validation, err := p.Validate(ctx)
			if err != nil {
				return fmt.Errorf("validation request failed: %w", err)
			}
			if !validation.Valid {
				return fmt.Errorf("invalid credentials: %s", validation.Reason)
			}

			cfg.AI.Validated = true
			if err := repo.SaveAIConfig(ctx, &cfg.AI); err != nil {
				return err
			}
			fmt.Printf("Provider %s validated and saved (model %s).\n", provider, cfg.AI.ResolvedModel())
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "gemini", "Provider (gemini, openai, claude, openrouter)")
	cmd.Flags().StringVar(&key, "key", "", "API key (Gemini can use GEMINI_API_KEY instead)")
	cmd.Flags().StringVar(&model, "model", "", "Model override")
	return cmd
}

func settingsWordPressCmd() *cobra.Command {
	var url, username, password string

	cmd := &cobra.Command{
		Use:   "wordpress",
		Short: "Configure and validate WordPress publishing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			wpCfg := models.WordPressConfig{
				URL:         url,
				Username:    username,
				AppPassword: password,
			}

			limiter := ratelimit.NewDefaultLimiter()
			client := wordpress.NewClient(wpCfg, limiter, log)
			if err := client.Validate(ctx); err != nil {
				return fmt.Errorf("WordPress validation failed: %w", err)
			}

			wpCfg.Validated = true
			cfg.WordPress = wpCfg
			if err := repo.SaveWordPressConfig(ctx, &wpCfg); err != nil {
				return err
			}
			fmt.Println("WordPress connection validated and saved.")
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "WordPress site URL")
	cmd.Flags().StringVar(&username, "user", "", "WordPress username")
	cmd.Flags().StringVar(&password, "password", "", "Application password")
	cmd.MarkFlagRequired("url")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("password")
	return cmd
}

// ============ OUTPUT HELPERS ============

func printCampaign(c *models.Campaign) {
	fmt.Printf("\n=== Campaign %s ===\n", c.ID)
	fmt.Printf("Title:    %s\n", c.Title)
	fmt.Printf("Created:  %s\n", c.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Strategy: %s\n", c.Analysis.CampaignStrategy)
	if len(c.Analysis.ViralHooks) > 0 {
		fmt.Printf("Hooks:    %s\n", strings.Join(c.Analysis.ViralHooks, " | "))
	}
	if c.Grounding != nil {
		fmt.Printf("\nSources:\n")
		for _, chunk := range c.Grounding.Chunks {
			if chunk.Web != nil {
				fmt.Printf("  - %s (%s)\n", chunk.Web.Title, chunk.Web.URI)
			}
		}
	}
	fmt.Printf("\nPosts: %d\n", len(c.Posts))
	for _, p := range c.Posts {
		printPost(p)
	}
}

func printPost(p *models.Post) {
	fmt.Printf("\n  [%s] %s (score %.0f, %s)\n", p.ID, p.Platform, p.ViralScore, p.FunnelStage)
	for i := range p.Variations {
		v := &p.Variations[i]
		fmt.Printf("    %s: %s\n", v.Name, truncate(v.Title, 70))
	}
	fmt.Printf("    image: %s", p.ImageStatus)
	if p.ImageError != "" {
		fmt.Printf(" (%s)", p.ImageError)
	}
	fmt.Printf("  wordpress: %s", p.WordPressStatus)
	if p.WordPressURL != "" {
		fmt.Printf(" (%s)", p.WordPressURL)
	}
	fmt.Println()
}

func printSuggestions(suggestions []models.SchedulingSuggestion) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Printf("\n=== Posting-Time Suggestions ===\n")
	for _, s := range suggestions {
		fmt.Printf("  %-16s %s %s: %s\n", s.Platform, s.DayOfWeek, s.TimeOfDay, s.Reasoning)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
