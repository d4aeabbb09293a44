package ai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/pkg/logger"
	"github.com/campaign-agent/pkg/ratelimit"
)

// GenerateRequest is one text/JSON generation call, already prompted.
//
// UseSearch enables retrieval grounding on providers that support it;
// ForceJSON requests schema-enforced JSON output. At least one vendor API
// rejects both on the same call, so adapters treat the combination as a
// request error rather than silently dropping one.
type GenerateRequest struct {
	Prompt    string
	UseSearch bool
	ForceJSON bool
	Shape     ResponseShape
}

// ResponseShape names the JSON envelope a ForceJSON call expects. Adapters
// that support schema-enforced output pin the response to the matching
// schema; the rest treat every shape as plain JSON mode.
type ResponseShape string

const (
	ShapeCampaign   ResponseShape = "campaign"
	ShapeScheduling ResponseShape = "scheduling"
	ShapeRewrite    ResponseShape = "rewrite"
)

// GenerateResult is the normalized outcome of a generation call: the
// fully accumulated text buffer (vendor stream framing already unwrapped)
// plus any grounding citations the vendor attached along the way.
type GenerateResult struct {
	Text      string
	Grounding *models.GroundingMetadata
}

// AspectRatio is the target shape for a generated image
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "9:16"
	AspectLandscape AspectRatio = "16:9"
)

// AspectFor returns the image aspect ratio suited to a platform
func AspectFor(platform models.Platform) AspectRatio {
	switch platform {
	case models.PlatformInstagram, models.PlatformFacebook, models.PlatformLinkedIn:
		return AspectSquare
	case models.PlatformPinterest, models.PlatformYouTubeShorts:
		return AspectPortrait
	default:
		return AspectSquare
	}
}

// Image is an embeddable generated image payload
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURI returns the image as a data URI suitable for storage and re-upload
func (i *Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, base64.StdEncoding.EncodeToString(i.Data))
}

// Validation is the outcome of a credential probe
type Validation struct {
	Valid  bool
	Reason string
}

// Provider is one AI vendor. Implementations normalize that vendor's
// request/response/stream shapes behind these three operations.
type Provider interface {
	// Name returns the vendor identifier used in error prefixes
	Name() models.AIProvider

	// Generate runs one text/JSON generation call and returns the
	// accumulated output once the vendor stream has drained.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// GenerateImage produces one image for an already-enhanced prompt
	GenerateImage(ctx context.Context, prompt string, aspect AspectRatio) (*Image, error)

	// Validate issues the cheapest possible authenticated request and
	// maps the result to a boolean plus a human-readable reason.
	Validate(ctx context.Context) (*Validation, error)
}

// New selects the adapter for the configured provider. This is the single
// dispatch point; adding a vendor means one new adapter implementation.
// The configuration is checked first, so a missing key or an unvalidated
// config fails here as a config error, before any network call.
func New(cfg *config.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) (Provider, error) {
	if err := cfg.AI.Ready(); err != nil {
		return nil, wrapError(cfg.AI.Provider, KindConfig, "provider configuration is not ready", err)
	}
	return dispatch(cfg, limiter, log)
}

// NewForValidation builds the adapter without the readiness gate. The
// credential check that decides whether a config becomes validated has to
// run against a config that is, by definition, not validated yet.
func NewForValidation(cfg *config.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) (Provider, error) {
	return dispatch(cfg, limiter, log)
}

func dispatch(cfg *config.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) (Provider, error) {
	switch cfg.AI.Provider {
	case models.ProviderGemini:
		return NewGemini(cfg, limiter, log)
	case models.ProviderClaude:
		return NewClaude(cfg, limiter, log), nil
	case models.ProviderOpenAI:
		return NewOpenAI(cfg, limiter, log), nil
	case models.ProviderOpenRouter:
		return NewOpenRouter(cfg, limiter, log), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.AI.Provider)
	}
}
