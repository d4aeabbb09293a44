package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/pkg/logger"
	"github.com/campaign-agent/pkg/ratelimit"
)

// Claude wraps the Anthropic SDK client
type Claude struct {
	client      anthropic.Client
	limiterKey  string
	model       string
	maxTokens   int
	temperature float64
	limiter     *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClaude creates a Claude provider
func NewClaude(cfg *config.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Claude {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.AI.APIKey),
	)

	return &Claude{
		client:      client,
		limiterKey:  ratelimit.LimiterFor(string(models.ProviderClaude)),
		model:       cfg.AI.ResolvedModel(),
		maxTokens:   cfg.Generation.MaxTokens,
		temperature: cfg.Generation.Temperature,
		limiter:     limiter,
		log:         log.WithComponent("ai").WithProvider(string(models.ProviderClaude)),
	}
}

// Name implements Provider.
func (c *Claude) Name() models.AIProvider {
	return models.ProviderClaude
}

// Generate implements Provider. The Anthropic API has no JSON response mode
// and no search tool, so ForceJSON becomes a hard instruction appended to
// the prompt and UseSearch is ignored; the caller's parser handles any
// markdown the model wraps around the object anyway.
func (c *Claude) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if err := c.limiter.Wait(ctx, c.limiterKey); err != nil {
		return nil, wrapError(models.ProviderClaude, KindTransport, "rate limiter interrupted", err)
	}

	prompt := req.Prompt
	if req.ForceJSON {
		prompt += "\n\nIMPORTANT: Respond ONLY with valid JSON. No markdown, no explanation, just the JSON object."
	}

	c.log.Debug().
		Str("model", c.model).
		Int("max_tokens", c.maxTokens).
		Msg("Starting Claude stream")

	stream := c.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(prompt),
				},
			},
		},
	})

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, wrapError(models.ProviderClaude, KindTransport, "failed to accumulate stream event", err)
		}
	}
	if err := stream.Err(); err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			kind := KindHTTP
			if apiErr.StatusCode == 401 || apiErr.StatusCode == 403 {
				kind = KindAuth
			}
			return nil, wrapError(models.ProviderClaude, kind,
				fmt.Sprintf("API error (status %d)", apiErr.StatusCode), err)
		}
		return nil, wrapError(models.ProviderClaude, KindTransport, "stream failed", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		textBlock := block.AsText()
		if textBlock.Text != "" {
			text.WriteString(textBlock.Text)
		}
	}

	c.log.Debug().
		Int("input_tokens", int(message.Usage.InputTokens)).
		Int("output_tokens", int(message.Usage.OutputTokens)).
		Msg("Claude stream complete")

	if text.Len() == 0 {
		return nil, newError(models.ProviderClaude, KindEmpty, "model returned no content")
	}

	return &GenerateResult{Text: text.String()}, nil
}

// GenerateImage implements Provider. Anthropic has no image API.
func (c *Claude) GenerateImage(ctx context.Context, prompt string, aspect AspectRatio) (*Image, error) {
	return nil, newError(models.ProviderClaude, KindUnsupported,
		"image generation is not supported, switch to Gemini or OpenAI for images")
}

// Validate implements Provider with a one-token ping.
func (c *Claude) Validate(ctx context.Context) (*Validation, error) {
	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock("ping"),
				},
			},
		},
	})
	if err == nil {
		return &Validation{Valid: true}, nil
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
		return &Validation{Valid: false, Reason: "API key was rejected"}, nil
	}
	return nil, wrapError(models.ProviderClaude, KindTransport, "validation request failed", err)
}
