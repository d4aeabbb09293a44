package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *GenerationRequest {
	return &GenerationRequest{
		Mode:      InputModeTopic,
		Topic:     "Go generics in practice",
		Platforms: []Platform{PlatformLinkedIn, PlatformTwitter},
		Tone:      ToneProfessional,
		Goal:      GoalCommunityEngagement,
		PostCount: 4,
	}
}

func TestGenerationRequestValidate(t *testing.T) {
	assert.NoError(t, validRequest().Validate())

	missing := validRequest()
	missing.Topic = ""
	assert.Error(t, missing.Validate())

	url := validRequest()
	url.Mode = InputModeURL
	url.Topic = ""
	assert.Error(t, url.Validate(), "URL mode needs a source URL")
	url.SourceURL = "https://example.com/feed.xml"
	assert.NoError(t, url.Validate())

	bad := validRequest()
	bad.Mode = "telepathy"
	assert.Error(t, bad.Validate())

	noPlatforms := validRequest()
	noPlatforms.Platforms = nil
	assert.Error(t, noPlatforms.Validate())

	for _, count := range []int{0, -1, 13} {
		r := validRequest()
		r.PostCount = count
		assert.Error(t, r.Validate(), "post count %d", count)
	}
}

func TestGenerationRequestTitle(t *testing.T) {
	assert.Equal(t, "Go generics in practice", validRequest().Title())

	url := validRequest()
	url.Topic = ""
	url.SourceURL = "https://example.com/feed.xml"
	assert.Equal(t, "https://example.com/feed.xml", url.Title())
}

func TestNewCampaign(t *testing.T) {
	c := NewCampaign(validRequest())
	assert.Contains(t, c.ID, "campaign_")
	assert.Equal(t, "Go generics in practice", c.Title)
	assert.Equal(t, ToneProfessional, c.Tone)
	assert.True(t, c.Analysis.IsPlaceholder())
	assert.False(t, c.HasContent())
	assert.NotNil(t, c.Posts)
}

func TestHasContent(t *testing.T) {
	c := NewCampaign(validRequest())
	c.Analysis.CampaignStrategy = "A real strategy"
	assert.True(t, c.HasContent())

	c = NewCampaign(validRequest())
	c.Posts = append(c.Posts, &Post{ID: "p1"})
	assert.True(t, c.HasContent())
}

func TestCampaignCloneIsolation(t *testing.T) {
	original := NewCampaign(validRequest())
	original.Analysis.ViralHooks = StringSlice{"hook"}
	original.Posts = []*Post{{
		ID:          "p1",
		Variations:  []Variation{{Name: "A", Title: "T", Hashtags: StringSlice{"#a"}}},
		ImageStatus: ImageIdle,
	}}
	original.Suggestions = []SchedulingSuggestion{{Platform: PlatformLinkedIn, DayOfWeek: "Tuesday"}}

	dup := original.Clone()
	dup.Posts[0].Variations[0].Title = "changed"
	dup.Posts[0].Variations[0].Hashtags[0] = "#changed"
	dup.Analysis.ViralHooks[0] = "changed"
	dup.Suggestions[0].DayOfWeek = "Friday"

	assert.Equal(t, "T", original.Posts[0].Variations[0].Title)
	assert.Equal(t, "#a", original.Posts[0].Variations[0].Hashtags[0])
	assert.Equal(t, "hook", original.Analysis.ViralHooks[0])
	assert.Equal(t, "Tuesday", original.Suggestions[0].DayOfWeek)
}

func TestPostVariation(t *testing.T) {
	p := &Post{Variations: []Variation{{Name: "A"}, {Name: "B"}}}
	require.NotNil(t, p.Variation(1))
	assert.Equal(t, "B", p.Variation(1).Name)
	assert.Nil(t, p.Variation(2))
	assert.Nil(t, p.Variation(-1))
}

func TestPostDueFor(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	due := &Post{IsScheduled: true, ScheduledAt: &past, WordPressStatus: WordPressIdle}
	assert.True(t, due.DueFor(now))

	notYet := &Post{IsScheduled: true, ScheduledAt: &future, WordPressStatus: WordPressIdle}
	assert.False(t, notYet.DueFor(now))

	unscheduled := &Post{ScheduledAt: &past, WordPressStatus: WordPressIdle}
	assert.False(t, unscheduled.DueFor(now))

	published := &Post{IsScheduled: true, ScheduledAt: &past, WordPressStatus: WordPressPublished}
	assert.False(t, published.DueFor(now))
}

func TestAIConfigReady(t *testing.T) {
	t.Setenv(GeminiKeyEnv, "")

	ready := AIConfig{Provider: ProviderOpenAI, APIKey: "sk-test", Validated: true}
	assert.NoError(t, ready.Ready())

	assert.Error(t, AIConfig{Provider: "mystery", APIKey: "k", Validated: true}.Ready())
	assert.Error(t, AIConfig{Provider: ProviderOpenAI, Validated: true}.Ready())
	assert.Error(t, AIConfig{Provider: ProviderOpenAI, APIKey: "sk-test"}.Ready())
}

func TestAIConfigPreconfiguredGemini(t *testing.T) {
	t.Setenv(GeminiKeyEnv, "server-side-key")
	cfg := AIConfig{Provider: ProviderGemini, Validated: true}
	assert.NoError(t, cfg.Ready())
}

func TestAIConfigResolvedModel(t *testing.T) {
	assert.Equal(t, "gpt-4o", AIConfig{Provider: ProviderOpenAI}.ResolvedModel())
	assert.Equal(t, "gpt-4.1", AIConfig{Provider: ProviderOpenAI, Model: "gpt-4.1"}.ResolvedModel())
}
