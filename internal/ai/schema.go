package ai

import "google.golang.org/genai"

// schemaFor picks the response schema matching the envelope a request
// expects. The campaign envelope is the default; the scheduling and
// rewrite calls carry their own, smaller shapes.
func schemaFor(shape ResponseShape) *genai.Schema {
	switch shape {
	case ShapeScheduling:
		return schedulingSchema()
	case ShapeRewrite:
		return rewriteSchema()
	default:
		return campaignSchema()
	}
}

// campaignSchema constrains Gemini's JSON output to the campaign envelope.
// The other providers only support free-form JSON mode, so the parser still
// tolerates fenced and partial output regardless.
func campaignSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"topic_analysis": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"campaign_strategy": {
						Type:        genai.TypeString,
						Description: "Overall content strategy for the campaign",
					},
					"trend_alignment": {
						Type:        genai.TypeString,
						Description: "How the topic aligns with current trends",
					},
					"audience_resonance": {
						Type:        genai.TypeString,
						Description: "Why the content resonates with the target audience",
					},
					"content_gaps": {
						Type:        genai.TypeString,
						Description: "Underserved angles competitors are missing",
					},
					"viral_hooks": {
						Type:  genai.TypeArray,
						Items: &genai.Schema{Type: genai.TypeString},
					},
				},
				Required: []string{"campaign_strategy", "trend_alignment", "audience_resonance", "content_gaps", "viral_hooks"},
			},
			"posts": {
				Type:  genai.TypeArray,
				Items: postSchema(),
			},
		},
		Required: []string{"posts"},
	}
}

func postSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"platform": {
				Type:        genai.TypeString,
				Description: "Target platform, e.g. Twitter or LinkedIn",
			},
			"funnel_stage": {
				Type:        genai.TypeString,
				Description: "Awareness, Consideration or Conversion",
			},
			"variations": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"variation_name": {
							Type:        genai.TypeString,
							Description: "Short label distinguishing the variation",
						},
						"post_title": {
							Type: genai.TypeString,
						},
						"post_text": {
							Type:        genai.TypeString,
							Description: "Full post body, ready to publish",
						},
						"call_to_action": {
							Type: genai.TypeString,
						},
						"hashtags": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeString},
						},
						"share_snippet": {
							Type:        genai.TypeString,
							Description: "One-line teaser for resharing",
						},
						"viral_trigger": {
							Type: genai.TypeString,
						},
					},
					Required: []string{"variation_name", "post_text", "call_to_action"},
				},
			},
			"image_prompt": {
				Type:        genai.TypeString,
				Description: "Prompt for the companion image",
			},
			"viral_score": {
				Type:        genai.TypeNumber,
				Description: "Predicted virality, 0-100",
			},
			"viral_breakdown": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"emotional_resonance":   {Type: genai.TypeNumber},
					"platform_optimization": {Type: genai.TypeNumber},
					"content_value":         {Type: genai.TypeNumber},
					"engagement_triggers":   {Type: genai.TypeNumber},
				},
				Required: []string{"emotional_resonance", "platform_optimization", "content_value", "engagement_triggers"},
			},
			"optimization_notes": {
				Type: genai.TypeString,
			},
		},
		Required: []string{"platform", "variations", "image_prompt", "viral_score", "viral_breakdown"},
	}
}

func schedulingSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"scheduling_suggestions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"platform": {Type: genai.TypeString},
						"day_of_week": {
							Type:        genai.TypeString,
							Description: "Best weekday to post",
						},
						"time_of_day": {
							Type:        genai.TypeString,
							Description: "Time window, e.g. 9:00 AM - 11:00 AM",
						},
						"reasoning": {Type: genai.TypeString},
					},
					Required: []string{"platform", "day_of_week", "time_of_day", "reasoning"},
				},
			},
		},
		Required: []string{"scheduling_suggestions"},
	}
}

func rewriteSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text": {
				Type:        genai.TypeString,
				Description: "The rewritten field, nothing else",
			},
		},
		Required: []string{"text"},
	}
}
