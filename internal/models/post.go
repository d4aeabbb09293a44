package models

import (
	"time"
)

// FunnelStage is the marketing-funnel classification of a post
type FunnelStage string

const (
	StageAwareness  FunnelStage = "Awareness"
	StageEngagement FunnelStage = "Engagement"
	StageConversion FunnelStage = "Conversion"
)

// ViralTrigger classifies the psychological mechanism a variation exploits
type ViralTrigger string

const (
	TriggerAwe            ViralTrigger = "Awe"
	TriggerHumor          ViralTrigger = "Humor"
	TriggerSocialCurrency ViralTrigger = "Social Currency"
	TriggerCuriosityGap   ViralTrigger = "Curiosity Gap"
	TriggerUrgency        ViralTrigger = "Urgency"
	TriggerStorytelling   ViralTrigger = "Storytelling"
	TriggerPracticalValue ViralTrigger = "Practical Value"
)

// ImageStatus tracks a post's generated image lifecycle
type ImageStatus string

const (
	ImageIdle    ImageStatus = "idle"
	ImageLoading ImageStatus = "loading"
	ImageReady   ImageStatus = "ready"
	ImageError   ImageStatus = "error"
)

// WordPressStatus tracks a post's WordPress publish lifecycle
type WordPressStatus string

const (
	WordPressIdle       WordPressStatus = "idle"
	WordPressPublishing WordPressStatus = "publishing"
	WordPressPublished  WordPressStatus = "published"
	WordPressFailed     WordPressStatus = "error"
)

// RewriteField names a post field that can be rewritten in place
type RewriteField string

const (
	RewritePostTitle    RewriteField = "post_title"
	RewritePostText     RewriteField = "post_text"
	RewriteCallToAction RewriteField = "call_to_action"
	RewriteImagePrompt  RewriteField = "image_prompt"
)

// ViralBreakdown is the sub-score decomposition of a post's viral score
type ViralBreakdown struct {
	EmotionalResonance   float64 `json:"emotional_resonance"`
	PlatformOptimization float64 `json:"platform_optimization"`
	ContentValue         float64 `json:"content_value"`
	EngagementTriggers   float64 `json:"engagement_triggers"`
}

// Variation is one A/B/script alternative of a post's copy
type Variation struct {
	Name         string       `json:"variation_name"`
	Title        string       `json:"post_title"`
	Text         string       `json:"post_text"`
	CallToAction string       `json:"call_to_action"`
	Hashtags     StringSlice  `json:"hashtags"`
	ShareSnippet string       `json:"share_snippet"`
	ViralTrigger ViralTrigger `json:"viral_trigger"`
}

// Post is one platform-targeted content unit within a campaign.
//
// Its image, publish, schedule, rewrite and clip-script sub-states are
// owned by independent async tasks; each task only ever touches the
// fields listed for it and leaves sibling posts untouched.
type Post struct {
	ID          string      `json:"id"`
	Platform    Platform    `json:"platform"`
	FunnelStage FunnelStage `json:"funnel_stage,omitempty"`

	Variations        []Variation    `json:"variations"`
	ImagePrompt       string         `json:"image_prompt"`
	ViralScore        float64        `json:"viral_score"`
	ViralBreakdown    ViralBreakdown `json:"viral_breakdown"`
	OptimizationNotes string         `json:"optimization_notes"`
	SourceURL         string         `json:"source_url,omitempty"`

	// Image generation sub-state. ImagePath is the short-lived preview
	// handle on disk and is not part of the persisted snapshot; ImageData
	// is the durable base64 data URI used for re-uploads.
	ImageStatus ImageStatus `json:"image_status"`
	ImagePath   string      `json:"-"`
	ImageData   string      `json:"image_data,omitempty"`
	ImageError  string      `json:"image_error,omitempty"`

	// WordPress publish sub-state
	WordPressStatus WordPressStatus `json:"wordpress_status"`
	WordPressURL    string          `json:"wordpress_url,omitempty"`
	WordPressError  string          `json:"wordpress_error,omitempty"`

	// Scheduling sub-state
	IsScheduled bool       `json:"is_scheduled,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	// In-flight rewrite marker; cleared when the rewrite settles
	RewritingField RewriteField `json:"-"`

	// Optional short-video script
	ClipScript        string `json:"clip_script,omitempty"`
	ClipScriptLoading bool   `json:"-"`
}

// Variation returns the variation at idx, or nil when out of range
func (p *Post) Variation(idx int) *Variation {
	if idx < 0 || idx >= len(p.Variations) {
		return nil
	}
	return &p.Variations[idx]
}

// Clone returns a deep copy of the post
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Variations = make([]Variation, len(p.Variations))
	for i, v := range p.Variations {
		dup.Variations[i] = v
		dup.Variations[i].Hashtags = append(StringSlice(nil), v.Hashtags...)
	}
	if p.ScheduledAt != nil {
		at := *p.ScheduledAt
		dup.ScheduledAt = &at
	}
	return &dup
}

// DueFor reports whether the post is scheduled and due at the given time
// but not yet published.
func (p *Post) DueFor(now time.Time) bool {
	return p.IsScheduled &&
		p.ScheduledAt != nil &&
		!p.ScheduledAt.After(now) &&
		p.WordPressStatus != WordPressPublished
}
