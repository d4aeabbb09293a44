package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/campaign-agent/internal/models"
)

// The prompt builder is deterministic: identical inputs always produce the
// identical instruction string. Platform rules below are documentation for
// the model, not enforced in code; the parser never assumes the model
// obeyed them.

const systemDirectiveTemplate = `SYSTEM DIRECTIVE
You are "CognitoViral," an elite AI strategist with an obsessive commitment to factual accuracy, verifiable credibility, and delivering immense, tangible value. Your mission is to architect viral movements built on a foundation of trust and pure value, establishing the user's brand as a definitive authority. You have a zero-tolerance policy for generic, rehashed ideas. Every post must be 100%% novel and provide a fresh perspective. %s

CORE INSTRUCTION
Your output MUST be a single, valid JSON object. NO commentary or text outside the JSON object. Your entire strategy must be authority-driven.

INPUT PARAMETERS
- Content Source: %s
- Target Platforms: [%s]
- Core Campaign Goal: %s
- Desired Tone: %s`

const (
	searchInstructionGrounded = "To ensure maximum relevance and credibility, your analysis MUST be grounded in real-time information using your integrated search tool. You MUST cross-reference information from multiple high-authority sources to verify all claims."
	searchInstructionURL      = "Your analysis MUST be based on the provided URLs and your existing knowledge. Do not use external search tools."
	searchInstructionOffline  = "Your analysis MUST be based on your existing knowledge. Do not mention that you cannot access real-time data."
)

// platformRules encodes the structural constraints per platform. Stated in
// the instruction text so the model can follow them.
var platformRules = map[models.Platform]string{
	models.PlatformFacebook:      "FACEBOOK: 40-80 words, high credibility, cite a surprising fact or data point. 3-5 high-volume hashtags.",
	models.PlatformInstagram:     "INSTAGRAM: 30-50 words, create a value-packed carousel or infographic concept, use 8-15 hashtags (mix of popular & niche).",
	models.PlatformPinterest:     "PINTEREST: 20-40 words, use strong SEO keywords focused on \"how-to\" or \"ultimate guide\" queries, have a direct CTA to a high-value resource.",
	models.PlatformLinkedIn:      "LINKEDIN: 150-250 words, professional tone, present a well-reasoned, data-backed argument or unique industry insight. Use 3-5 targeted professional hashtags.",
	models.PlatformTwitter:       "TWITTER (X): Under 280 characters, lead with a powerful, verifiable statistic or a myth-busting statement. Use 2-3 hyper-relevant hashtags. Create a thread-worthy hook.",
	models.PlatformThreads:       "THREADS: Under 500 characters, conversational and community-first, open with a question or hot take. 2-4 hashtags.",
	models.PlatformBluesky:       "BLUESKY: Under 300 characters, authentic and direct, no engagement bait. 1-3 hashtags.",
	models.PlatformYouTubeShorts: "YOUTUBE SHORTS: Write a 30-45 second vertical video script with a 2-second hook, fast cuts, and an on-screen-text CTA. 3-5 hashtags in the description.",
}

func sourceInstruction(req *models.GenerationRequest) string {
	if req.Mode == models.InputModeURL {
		instruction := fmt.Sprintf("Your primary source of truth is the content found at the following URL(s)/Sitemap: %q. Your entire campaign strategy, content, and tone MUST be derived from dissecting this source.", req.SourceURL)
		if req.SourceText != "" {
			instruction += fmt.Sprintf(" Extracted source content follows:\n---\n%s\n---", req.SourceText)
		}
		return instruction
	}
	return fmt.Sprintf("The user's core topic or keyword is: %q.", req.Topic)
}

func searchInstruction(req *models.GenerationRequest, searchCapable bool) string {
	if req.Mode == models.InputModeURL {
		return searchInstructionURL
	}
	if searchCapable {
		return searchInstructionGrounded
	}
	return searchInstructionOffline
}

func platformList(platforms []models.Platform) string {
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func systemDirective(req *models.GenerationRequest, searchCapable bool) string {
	return fmt.Sprintf(systemDirectiveTemplate,
		searchInstruction(req, searchCapable),
		sourceInstruction(req),
		platformList(req.Platforms),
		req.Goal,
		req.Tone,
	)
}

// AnalysisPrompt builds the phase-1 instruction: strategy analysis only.
// This phase may be retrieval-grounded, so it asks for no posts.
func AnalysisPrompt(req *models.GenerationRequest, searchCapable bool) string {
	var b strings.Builder
	b.WriteString(systemDirective(req, searchCapable))
	b.WriteString(`

EXECUTION
First, identify the single most helpful, valuable, or unique 'Core Value Proposition' within the source material. Then perform a deep analysis of USER INTENT: go beyond keywords to the underlying questions, problems, and goals of the target audience.

Return a single JSON object with exactly one top-level key "topic_analysis" containing:
- "campaign_strategy": the overall strategy built around the Core Value Proposition (string)
- "trend_alignment": how the campaign aligns with current trends (string)
- "audience_resonance": which audience triggers the campaign exploits (string)
- "content_gaps": underserved angles competitors miss (string)
- "viral_hooks": 3-5 hook lines (array of strings)
- "seo_keywords": primary and LSI keywords woven into the campaign (array of strings)
- "faq_suggestions": question-based phrases the audience actually asks (array of strings)
- "cadence_suggestion": a recommended posting cadence for this campaign (string)

Do NOT include a "posts" key in this response.`)
	if req.TrendBoost {
		b.WriteString("\n\nTREND BOOST: Weight trend_alignment heavily; prefer angles tied to conversations peaking right now.")
	}
	return b.String()
}

// ContentPrompt builds the phase-2 instruction: the posts array, generated
// with the phase-1 analysis as fixed context. Schema enforcement at this
// stage trades away retrieval-tool use on providers where the two are
// mutually exclusive.
func ContentPrompt(req *models.GenerationRequest, analysis models.TopicAnalysis) string {
	var b strings.Builder
	b.WriteString(systemDirective(req, false))
	fmt.Fprintf(&b, `

CAMPAIGN STRATEGY (already approved, generate content that executes it)
- Strategy: %s
- Trend alignment: %s
- Audience resonance: %s
- Content gaps: %s
- Viral hooks: %s

EXECUTION PHASES

PHASE 1: STRATEGIC CONTENT & A/B TEST ARCHITECTURE
Generate exactly %d posts, distributed logically and effectively across the selected target platforms. You can and should create multiple posts for the same platform if it serves the campaign strategy. For each post, create TWO strategic variations (A/B test) in the 'variations' array. The variations MUST test distinct psychological triggers (e.g. Variation A uses a 'Credibility/Data' hook while Variation B uses a 'Storytelling/Emotional' angle). Each variation must be complete with its own 'variation_name' (e.g. "A: Data-Driven Authority"), 'post_title', 'post_text', a low-friction 'call_to_action', 'hashtags', a 'share_snippet' (a short, compelling sentence designed to maximize organic sharing), and a 'viral_trigger' label (one of: Awe, Humor, Social Currency, Curiosity Gap, Urgency, Storytelling, Practical Value).

PHASE 2: PLATFORM-NATIVE OPTIMIZATION
For each post, explicitly state its 'funnel_stage' ('Awareness', 'Engagement', or 'Conversion') and obey the platform rules:
`, analysis.CampaignStrategy, analysis.TrendAlignment, analysis.AudienceResonance, analysis.ContentGaps, strings.Join(analysis.ViralHooks, "; "), req.PostCount)
	for _, rule := range rulesFor(req.Platforms) {
		b.WriteString("- " + rule + "\n")
	}
	b.WriteString(`
PHASE 3: AUTHORITY-BUILDING IMAGE PROMPTS
Generate one hyper-detailed, art-directed 'image_prompt' per post that visually communicates credibility and value. Think 'data visualization, minimalist style', 'photorealistic product in a clean, professional setting'. Avoid generic stock photos.

PHASE 4: VIRAL SCORING
Assign an accurate 'viral_score' (85-100) and a 'viral_breakdown' object with 'emotional_resonance', 'platform_optimization', 'content_value' (weighted heavily), and 'engagement_triggers' (each 0-100). Write concise 'optimization_notes' stating which authority-building triggers are being tested and why.

FINAL CHECK
Return a single, valid JSON object with exactly one top-level key "posts": the array of post objects described above. NO commentary or text outside the JSON object.`)
	return b.String()
}

// rulesFor returns the platform rules for the selected platforms in a
// stable order, keeping the prompt deterministic.
func rulesFor(platforms []models.Platform) []string {
	seen := make(map[models.Platform]bool)
	var rules []string
	for _, p := range platforms {
		if seen[p] {
			continue
		}
		seen[p] = true
		if rule, ok := platformRules[p]; ok {
			rules = append(rules, rule)
		}
	}
	sort.Strings(rules)
	return rules
}

// EnhanceImagePrompt prefixes the art-direction keywords applied to every
// generated image.
func EnhanceImagePrompt(prompt string) string {
	return "masterpiece, high quality, professional photography, cinematic, " + prompt
}

// RewritePrompt asks for a single replacement value for one field of one
// variation, returned as JSON so the parser stays uniform.
func RewritePrompt(field models.RewriteField, current string, tone models.Tone) string {
	return fmt.Sprintf(`You are an elite social media copywriter. Rewrite the following %s to be sharper, more specific, and more compelling, preserving its meaning and a %s tone.

Current %s:
---
%s
---

Return a single JSON object: {"text": "<the rewritten %s>"}. NO commentary outside the JSON object.`,
		field, tone, field, current, field)
}

// SimilarPostsPrompt asks for fresh posts modeled on an existing one
func SimilarPostsPrompt(post *models.Post, count int, tone models.Tone) string {
	original := ""
	if v := post.Variation(0); v != nil {
		original = v.Text
	}
	return fmt.Sprintf(`You are an elite social media strategist. Generate %d NEW posts for %s in the same style, voice, and strategy as the post below, but each with a genuinely fresh angle. Do not paraphrase the original. Desired tone: %s.

Original post:
---
%s
---

Return a single JSON object with exactly one top-level key "posts", an array of post objects. Each post object has: "platform", "funnel_stage", "variations" (two variations, each with "variation_name", "post_title", "post_text", "call_to_action", "hashtags", "share_snippet", "viral_trigger"), "image_prompt", "viral_score", "viral_breakdown" ("emotional_resonance", "platform_optimization", "content_value", "engagement_triggers"), and "optimization_notes". NO commentary outside the JSON object.`,
		count, post.Platform, tone, original)
}

// ClipScriptPrompt asks for a short vertical-video script as plain text
func ClipScriptPrompt(post *models.Post) string {
	body := ""
	if v := post.Variation(0); v != nil {
		body = v.Text
	}
	return fmt.Sprintf(`You are a short-form video director. Turn the following %s post into a 30-45 second vertical video clip script: a 2-second hook, 3-5 quick scenes with spoken lines and on-screen text, and a closing CTA.

Post:
---
%s
---

Return the script as plain text. Do not wrap it in JSON or markdown fences.`,
		post.Platform, body)
}

// SchedulingPrompt asks for best posting slots per platform
func SchedulingPrompt(platforms []models.Platform) string {
	return fmt.Sprintf(`You are a social media operations analyst. For each of these platforms: [%s], recommend the single best weekly posting slot for maximum organic reach.

Return a single JSON object: {"scheduling_suggestions": [{"platform": "<platform>", "day_of_week": "<Monday..Sunday>", "time_of_day": "<e.g. 9:00 AM - 11:00 AM>", "reasoning": "<one sentence>"}]}. NO commentary outside the JSON object.`,
		platformList(platforms))
}
