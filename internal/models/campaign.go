package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Platform represents a target social network
type Platform string

const (
	PlatformFacebook      Platform = "Facebook"
	PlatformInstagram     Platform = "Instagram"
	PlatformPinterest     Platform = "Pinterest"
	PlatformLinkedIn      Platform = "LinkedIn"
	PlatformTwitter       Platform = "Twitter"
	PlatformThreads       Platform = "Threads"
	PlatformBluesky       Platform = "Bluesky"
	PlatformYouTubeShorts Platform = "YouTube Shorts"
)

// AllPlatforms lists every supported platform
var AllPlatforms = []Platform{
	PlatformFacebook,
	PlatformInstagram,
	PlatformPinterest,
	PlatformLinkedIn,
	PlatformTwitter,
	PlatformThreads,
	PlatformBluesky,
	PlatformYouTubeShorts,
}

// Tone represents the desired writing tone for a campaign
type Tone string

const (
	ToneProfessional  Tone = "Professional"
	ToneCasual        Tone = "Casual"
	ToneWitty         Tone = "Witty"
	ToneInspirational Tone = "Inspirational"
	TonePersuasive    Tone = "Persuasive"
)

// CampaignGoal represents the core objective of a campaign
type CampaignGoal string

const (
	GoalBrandAwareness      CampaignGoal = "Brand Awareness"
	GoalLeadGeneration      CampaignGoal = "Lead Generation"
	GoalCommunityEngagement CampaignGoal = "Community Engagement"
	GoalThoughtLeadership   CampaignGoal = "Thought Leadership"
	GoalSalesConversion     CampaignGoal = "Sales & Conversion"
)

// InputMode selects how the campaign is sourced
type InputMode string

const (
	// InputModeTopic grounds the campaign in a user topic, optionally with
	// real-time search retrieval on providers that support it.
	InputModeTopic InputMode = "topic"
	// InputModeURL treats the supplied URL/sitemap content as the primary
	// source of truth and disables retrieval tools.
	InputModeURL InputMode = "url"
)

// StringSlice is a custom type for storing string arrays in JSON
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	return json.Unmarshal(value.([]byte), s)
}

// GenerationRequest holds the user input that drives one campaign generation
type GenerationRequest struct {
	Mode       InputMode    `json:"mode"`
	Topic      string       `json:"topic"`
	SourceURL  string       `json:"source_url"`
	SourceText string       `json:"source_text"` // fetched content for URL mode
	Platforms  []Platform   `json:"platforms"`
	Tone       Tone         `json:"tone"`
	Goal       CampaignGoal `json:"goal"`
	PostCount  int          `json:"post_count"`
	TrendBoost bool         `json:"trend_boost"`
}

// Validate checks the request before any network call is made
func (r *GenerationRequest) Validate() error {
	switch r.Mode {
	case InputModeTopic:
		if r.Topic == "" {
			return fmt.Errorf("topic is required in topic mode")
		}
	case InputModeURL:
		if r.SourceURL == "" {
			return fmt.Errorf("source URL is required in URL/sitemap mode")
		}
	default:
		return fmt.Errorf("unknown input mode: %q", r.Mode)
	}
	if len(r.Platforms) == 0 {
		return fmt.Errorf("at least one target platform is required")
	}
	if r.PostCount < 1 || r.PostCount > 12 {
		return fmt.Errorf("post count must be between 1 and 12, got %d", r.PostCount)
	}
	return nil
}

// Title returns the campaign title derived from the request
func (r *GenerationRequest) Title() string {
	if r.Topic != "" {
		return r.Topic
	}
	return r.SourceURL
}

// Placeholder analysis text shown while the analysis phase is in flight.
// A campaign whose strategy still equals this value produced no real analysis.
const (
	PlaceholderStrategy = "Analyzing topic and formulating strategy..."
	placeholderTrends   = "Scanning current trends..."
	placeholderAudience = "Identifying audience triggers..."
	placeholderGaps     = "Looking for unique opportunities..."
)

// TopicAnalysis is the strategic narrative produced by the analysis phase
type TopicAnalysis struct {
	CampaignStrategy  string      `json:"campaign_strategy"`
	TrendAlignment    string      `json:"trend_alignment"`
	AudienceResonance string      `json:"audience_resonance"`
	ContentGaps       string      `json:"content_gaps"`
	ViralHooks        StringSlice `json:"viral_hooks"`
	SEOKeywords       StringSlice `json:"seo_keywords,omitempty"`
	FAQSuggestions    StringSlice `json:"faq_suggestions,omitempty"`
	CadenceSuggestion string      `json:"cadence_suggestion,omitempty"`
}

// PlaceholderAnalysis returns the analysis a campaign starts with
func PlaceholderAnalysis() TopicAnalysis {
	return TopicAnalysis{
		CampaignStrategy:  PlaceholderStrategy,
		TrendAlignment:    placeholderTrends,
		AudienceResonance: placeholderAudience,
		ContentGaps:       placeholderGaps,
		ViralHooks:        StringSlice{},
	}
}

// IsPlaceholder reports whether the analysis phase has produced real content yet
func (a TopicAnalysis) IsPlaceholder() bool {
	return a.CampaignStrategy == PlaceholderStrategy
}

// WebGroundingSource is a web citation from retrieval-grounded generation
type WebGroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// ReviewSnippet is a place review excerpt from maps grounding
type ReviewSnippet struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// MapsGroundingSource is a maps/places citation
type MapsGroundingSource struct {
	URI            string          `json:"uri"`
	Title          string          `json:"title"`
	ReviewSnippets []ReviewSnippet `json:"review_snippets,omitempty"`
}

// GroundingChunk is one citation; either web or maps is set
type GroundingChunk struct {
	Web  *WebGroundingSource  `json:"web,omitempty"`
	Maps *MapsGroundingSource `json:"maps,omitempty"`
}

// GroundingMetadata carries the citations backing a grounded generation
type GroundingMetadata struct {
	Chunks []GroundingChunk `json:"grounding_chunks"`
}

// SchedulingSuggestion is a recommended posting slot for a platform
type SchedulingSuggestion struct {
	Platform  Platform `json:"platform"`
	DayOfWeek string   `json:"day_of_week"`
	TimeOfDay string   `json:"time_of_day"` // e.g. "9:00 AM - 11:00 AM"
	Reasoning string   `json:"reasoning"`
}

// Campaign is one generation session's full output and the unit of persistence
type Campaign struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Tone      Tone      `json:"tone"`

	Analysis    TopicAnalysis          `json:"topic_analysis"`
	Posts       []*Post                `json:"posts"`
	Grounding   *GroundingMetadata     `json:"grounding_metadata,omitempty"`
	Suggestions []SchedulingSuggestion `json:"scheduling_suggestions,omitempty"`
}

// NewCampaign creates an empty campaign seeded with placeholder analysis
func NewCampaign(req *GenerationRequest) *Campaign {
	now := time.Now()
	return &Campaign{
		ID:        fmt.Sprintf("campaign_%d", now.UnixMilli()),
		Title:     req.Title(),
		CreatedAt: now,
		Tone:      req.Tone,
		Analysis:  PlaceholderAnalysis(),
		Posts:     []*Post{},
	}
}

// HasContent reports whether the campaign is complete enough to persist:
// either the analysis is no longer the placeholder or at least one post exists.
func (c *Campaign) HasContent() bool {
	return !c.Analysis.IsPlaceholder() || len(c.Posts) > 0
}

// Post returns the post with the given id, or nil
func (c *Campaign) Post(id string) *Post {
	for _, p := range c.Posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Clone returns a deep copy of the campaign. Mutating the copy never
// affects the original; callers use it to hand out safe snapshots.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	dup := *c
	dup.Posts = make([]*Post, len(c.Posts))
	for i, p := range c.Posts {
		dup.Posts[i] = p.Clone()
	}
	dup.Analysis.ViralHooks = append(StringSlice(nil), c.Analysis.ViralHooks...)
	dup.Analysis.SEOKeywords = append(StringSlice(nil), c.Analysis.SEOKeywords...)
	dup.Analysis.FAQSuggestions = append(StringSlice(nil), c.Analysis.FAQSuggestions...)
	if c.Grounding != nil {
		g := GroundingMetadata{Chunks: append([]GroundingChunk(nil), c.Grounding.Chunks...)}
		dup.Grounding = &g
	}
	dup.Suggestions = append([]SchedulingSuggestion(nil), c.Suggestions...)
	return &dup
}
