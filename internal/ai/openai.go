package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/pkg/logger"
	"github.com/campaign-agent/pkg/ratelimit"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	// OpenRouter attribution headers, required for free-tier routing
	openRouterReferer = "https://github.com/campaign-agent"
	openRouterTitle   = "Campaign Agent"
)

// OpenAI speaks the OpenAI-compatible chat completions protocol. The same
// adapter serves OpenRouter, which differs only in base URL, attribution
// headers, and its lack of an images endpoint.
type OpenAI struct {
	provider    models.AIProvider
	limiterKey  string
	baseURL     string
	apiKey      string
	model       string
	imageModel  string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	limiter     *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewOpenAI creates a provider for the OpenAI API
func NewOpenAI(cfg *config.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) *OpenAI {
	return &OpenAI{
		provider:    models.ProviderOpenAI,
		limiterKey:  ratelimit.LimiterFor(string(models.ProviderOpenAI)),
		baseURL:     openAIBaseURL,
		apiKey:      cfg.AI.APIKey,
		model:       cfg.AI.ResolvedModel(),
		imageModel:  cfg.Images.OpenAIModel,
		temperature: cfg.Generation.Temperature,
		maxTokens:   cfg.Generation.MaxTokens,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		limiter:     limiter,
		log:         log.WithComponent("ai").WithProvider(string(models.ProviderOpenAI)),
	}
}

// NewOpenRouter creates a provider for the OpenRouter API
func NewOpenRouter(cfg *config.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) *OpenAI {
	return &OpenAI{
		provider:    models.ProviderOpenRouter,
		limiterKey:  ratelimit.LimiterFor(string(models.ProviderOpenRouter)),
		baseURL:     openRouterBaseURL,
		apiKey:      cfg.AI.APIKey,
		model:       cfg.AI.ResolvedModel(),
		temperature: cfg.Generation.Temperature,
		maxTokens:   cfg.Generation.MaxTokens,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		limiter:     limiter,
		log:         log.WithComponent("ai").WithProvider(string(models.ProviderOpenRouter)),
	}
}

// Name implements Provider.
func (o *OpenAI) Name() models.AIProvider {
	return o.provider
}

func (o *OpenAI) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if o.provider == models.ProviderOpenRouter {
		req.Header.Set("HTTP-Referer", openRouterReferer)
		req.Header.Set("X-Title", openRouterTitle)
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Generate implements Provider. There is no retrieval tool on this
// protocol, so UseSearch is ignored and the prompt's own offline wording
// carries the weight.
func (o *OpenAI) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if err := o.limiter.Wait(ctx, o.limiterKey); err != nil {
		return nil, wrapError(o.provider, KindTransport, "rate limiter interrupted", err)
	}

	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "user", Content: req.Prompt},
		},
		Stream:      true,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	if req.ForceJSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "failed to create request", err)
	}
	o.setHeaders(httpReq)

	o.log.Debug().
		Str("model", o.model).
		Bool("json", req.ForceJSON).
		Msg("Starting chat completions stream")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, o.statusError(resp)
	}

	text, err := drainSSE(resp.Body)
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "stream read failed", err)
	}
	if text == "" {
		return nil, newError(o.provider, KindEmpty, "model returned no content")
	}

	return &GenerateResult{Text: text}, nil
}

// drainSSE accumulates delta content from an OpenAI-style server-sent
// event body. Unparseable data lines are skipped; vendors interleave
// keep-alive and usage frames in the same stream.
func drainSSE(body io.Reader) (string, error) {
	var text strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			text.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return text.String(), nil
}

// statusError turns a non-200 response into a ProviderError, attaching
// actionable advice for the statuses users actually hit.
func (o *OpenAI) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return newError(o.provider, KindAuth,
			msg+". Your API key is likely invalid or lacks permission for this model.")
	case http.StatusMethodNotAllowed:
		return newError(o.provider, KindHTTP,
			msg+". The endpoint rejected the request method, which usually means the base URL or model name is wrong for this provider.")
	default:
		return newError(o.provider, KindHTTP, msg)
	}
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func sizeFor(aspect AspectRatio) string {
	switch aspect {
	case AspectPortrait:
		return "1024x1792"
	case AspectLandscape:
		return "1792x1024"
	default:
		return "1024x1024"
	}
}

// GenerateImage implements Provider via the images endpoint. OpenRouter
// does not proxy it.
func (o *OpenAI) GenerateImage(ctx context.Context, prompt string, aspect AspectRatio) (*Image, error) {
	if o.provider == models.ProviderOpenRouter {
		return nil, newError(o.provider, KindUnsupported,
			"image generation is not supported, switch to Gemini or OpenAI for images")
	}

	if err := o.limiter.Wait(ctx, o.limiterKey); err != nil {
		return nil, wrapError(o.provider, KindTransport, "rate limiter interrupted", err)
	}

	payload, err := json.Marshal(imageRequest{
		Model:          o.imageModel,
		Prompt:         EnhanceImagePrompt(prompt),
		N:              1,
		Size:           sizeFor(aspect),
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "failed to create request", err)
	}
	o.setHeaders(httpReq)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, o.statusError(resp)
	}

	var parsed imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, wrapError(o.provider, KindTransport, "failed to decode image response", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, newError(o.provider, KindSafetyBlocked,
			"no image data returned, the prompt was likely blocked by safety filters")
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "failed to decode image payload", err)
	}

	return &Image{MIMEType: "image/png", Data: data}, nil
}

// Validate implements Provider with a models listing, the cheapest
// authenticated call on this protocol.
func (o *OpenAI) Validate(ctx context.Context) (*Validation, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "failed to create request", err)
	}
	o.setHeaders(httpReq)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapError(o.provider, KindTransport, "validation request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return &Validation{Valid: true}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Validation{Valid: false, Reason: "API key was rejected"}, nil
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, newError(o.provider, KindHTTP,
			fmt.Sprintf("unexpected status %d during validation: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
}
