package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaign-agent/internal/models"
)

func topicRequest() *models.GenerationRequest {
	return &models.GenerationRequest{
		Mode:      models.InputModeTopic,
		Topic:     "sourdough baking",
		Platforms: []models.Platform{models.PlatformTwitter, models.PlatformLinkedIn},
		Tone:      "Witty",
		Goal:      "Brand Awareness",
		PostCount: 4,
	}
}

func TestAnalysisPromptDeterministic(t *testing.T) {
	req := topicRequest()
	assert.Equal(t, AnalysisPrompt(req, true), AnalysisPrompt(req, true))
}

func TestAnalysisPromptTopicModeWithSearch(t *testing.T) {
	prompt := AnalysisPrompt(topicRequest(), true)
	assert.Contains(t, prompt, `"sourdough baking"`)
	assert.Contains(t, prompt, "integrated search tool")
	assert.Contains(t, prompt, "topic_analysis")
	assert.NotContains(t, prompt, `"posts"`)
}

func TestAnalysisPromptTopicModeOffline(t *testing.T) {
	prompt := AnalysisPrompt(topicRequest(), false)
	assert.Contains(t, prompt, "existing knowledge")
	assert.NotContains(t, prompt, "integrated search tool")
}

func TestAnalysisPromptURLModeNeverSearches(t *testing.T) {
	req := topicRequest()
	req.Mode = models.InputModeURL
	req.SourceURL = "https://example.com/blog"
	req.SourceText = "Extracted article body"

	prompt := AnalysisPrompt(req, true)
	assert.Contains(t, prompt, "https://example.com/blog")
	assert.Contains(t, prompt, "Extracted article body")
	assert.Contains(t, prompt, "Do not use external search tools")
	assert.NotContains(t, prompt, "integrated search tool")
}

func TestAnalysisPromptTrendBoost(t *testing.T) {
	req := topicRequest()
	req.TrendBoost = true
	assert.Contains(t, AnalysisPrompt(req, false), "TREND BOOST")
	assert.NotContains(t, AnalysisPrompt(topicRequest(), false), "TREND BOOST")
}

func TestContentPromptCarriesAnalysisAndCount(t *testing.T) {
	analysis := models.TopicAnalysis{
		CampaignStrategy:  "own the niche",
		TrendAlignment:    "on trend",
		AudienceResonance: "bakers",
		ContentGaps:       "no starter guides",
		ViralHooks:        models.StringSlice{"hook one", "hook two"},
	}
	prompt := ContentPrompt(topicRequest(), analysis)

	assert.Contains(t, prompt, "own the niche")
	assert.Contains(t, prompt, "hook one; hook two")
	assert.Contains(t, prompt, "Generate exactly 4 posts")
	assert.Contains(t, prompt, `"posts"`)
}

func TestContentPromptOnlySelectedPlatformRules(t *testing.T) {
	prompt := ContentPrompt(topicRequest(), models.TopicAnalysis{})
	assert.Contains(t, prompt, "TWITTER (X):")
	assert.Contains(t, prompt, "LINKEDIN:")
	assert.NotContains(t, prompt, "PINTEREST:")
	assert.NotContains(t, prompt, "YOUTUBE SHORTS:")
}

func TestRulesForDeduplicates(t *testing.T) {
	rules := rulesFor([]models.Platform{
		models.PlatformTwitter,
		models.PlatformTwitter,
		models.PlatformThreads,
	})
	require.Len(t, rules, 2)
}

func TestEnhanceImagePromptPrefix(t *testing.T) {
	got := EnhanceImagePrompt("a minimalist chart")
	assert.Equal(t, "masterpiece, high quality, professional photography, cinematic, a minimalist chart", got)
	assert.True(t, strings.HasSuffix(got, "a minimalist chart"))
}

func TestRewritePromptNamesFieldAndTone(t *testing.T) {
	prompt := RewritePrompt(models.RewritePostText, "old copy", "Bold")
	assert.Contains(t, prompt, "post_text")
	assert.Contains(t, prompt, "old copy")
	assert.Contains(t, prompt, "Bold")
	assert.Contains(t, prompt, `{"text"`)
}

func TestSchedulingPromptListsPlatforms(t *testing.T) {
	prompt := SchedulingPrompt([]models.Platform{models.PlatformFacebook, models.PlatformBluesky})
	assert.Contains(t, prompt, "Facebook")
	assert.Contains(t, prompt, "Bluesky")
	assert.Contains(t, prompt, "scheduling_suggestions")
}
