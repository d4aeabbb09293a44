package ai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/pkg/logger"
	"github.com/campaign-agent/pkg/ratelimit"
)

// Gemini calls the Google GenAI API. It is the only provider that supports
// retrieval grounding and native image generation, so it carries extra
// surface the other adapters report as unsupported.
type Gemini struct {
	client     *genai.Client
	limiterKey string
	apiKey     string
	model      string
	imageModel string
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
}

// NewGemini creates a Gemini provider. When no key is configured it falls
// back to the GEMINI_API_KEY environment variable, mirroring a deployment
// where the key is provisioned outside the settings store.
func NewGemini(cfg *config.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) (*Gemini, error) {
	apiKey := cfg.AI.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(models.GeminiKeyEnv)
	}
	if apiKey == "" {
		return nil, newError(models.ProviderGemini, KindConfig, "API key is not configured")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, wrapError(models.ProviderGemini, KindConfig, "failed to create client", err)
	}

	return &Gemini{
		client:     client,
		limiterKey: ratelimit.LimiterFor(string(models.ProviderGemini)),
		apiKey:     apiKey,
		model:      cfg.AI.ResolvedModel(),
		imageModel: cfg.Images.GeminiModel,
		limiter:    limiter,
		log:        log.WithComponent("ai").WithProvider(string(models.ProviderGemini)),
	}, nil
}

// Name implements Provider.
func (g *Gemini) Name() models.AIProvider {
	return models.ProviderGemini
}

// Generate implements Provider. Search grounding and a JSON response schema
// cannot be combined on this API; a request asking for both is rejected
// before any network call.
func (g *Gemini) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if req.UseSearch && req.ForceJSON {
		return nil, newError(models.ProviderGemini, KindConfig,
			"search grounding and a JSON response schema are mutually exclusive")
	}

	if err := g.limiter.Wait(ctx, g.limiterKey); err != nil {
		return nil, wrapError(models.ProviderGemini, KindTransport, "rate limiter interrupted", err)
	}

	config := generationConfig(req)

	g.log.Debug().
		Str("model", g.model).
		Bool("search", req.UseSearch).
		Bool("json", req.ForceJSON).
		Msg("Starting generation stream")

	var (
		text      strings.Builder
		grounding *models.GroundingMetadata
	)
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(req.Prompt), config) {
		if err != nil {
			return nil, wrapError(models.ProviderGemini, KindHTTP, "generation stream failed", err)
		}
		text.WriteString(resp.Text())
		if meta := extractGrounding(resp); meta != nil {
			grounding = meta
		}
	}

	if text.Len() == 0 {
		return nil, newError(models.ProviderGemini, KindEmpty, "model returned no content")
	}

	return &GenerateResult{Text: text.String(), Grounding: grounding}, nil
}

// generationConfig maps a request onto the SDK config. JSON mode pins the
// response to the campaign envelope schema so we never have to retry on
// malformed output.
func generationConfig(req *GenerateRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.UseSearch {
		config.Tools = []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		}
	}
	if req.ForceJSON {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schemaFor(req.Shape)
	}
	return config
}

// extractGrounding converts the SDK's grounding metadata, dropping chunks
// that carry neither a web nor a maps source.
func extractGrounding(resp *genai.GenerateContentResponse) *models.GroundingMetadata {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	src := resp.Candidates[0].GroundingMetadata
	if len(src.GroundingChunks) == 0 {
		return nil
	}

	meta := &models.GroundingMetadata{}
	for _, chunk := range src.GroundingChunks {
		var out models.GroundingChunk
		if chunk.Web != nil {
			out.Web = &models.WebGroundingSource{
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			}
		}
		if out.Web == nil && out.Maps == nil {
			continue
		}
		meta.Chunks = append(meta.Chunks, out)
	}
	if len(meta.Chunks) == 0 {
		return nil
	}
	return meta
}

// GenerateImage implements Provider using the Imagen endpoint.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string, aspect AspectRatio) (*Image, error) {
	if err := g.limiter.Wait(ctx, g.limiterKey); err != nil {
		return nil, wrapError(models.ProviderGemini, KindTransport, "rate limiter interrupted", err)
	}

	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, EnhanceImagePrompt(prompt), &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    string(aspect),
	})
	if err != nil {
		return nil, wrapError(models.ProviderGemini, KindHTTP, "image generation failed", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, newError(models.ProviderGemini, KindSafetyBlocked,
			"no image data returned, the prompt was likely blocked by safety filters")
	}

	img := resp.GeneratedImages[0].Image
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &Image{MIMEType: mimeType, Data: img.ImageBytes}, nil
}

// Validate implements Provider. The SDK offers no cheap ping, so the key is
// checked with a raw models-list request.
func (g *Gemini) Validate(ctx context.Context) (*Validation, error) {
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models?key=%s&pageSize=1", g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, wrapError(models.ProviderGemini, KindTransport, "failed to create request", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, wrapError(models.ProviderGemini, KindTransport, "validation request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return &Validation{Valid: true}, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return &Validation{Valid: false, Reason: "API key was rejected"}, nil
	default:
		return nil, newError(models.ProviderGemini, KindHTTP,
			fmt.Sprintf("unexpected status %d during validation", resp.StatusCode))
	}
}
