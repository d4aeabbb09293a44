package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/pkg/logger"
)

func configFor(ai models.AIConfig) *config.Config {
	return &config.Config{AI: ai}
}

func TestNewRejectsUnvalidatedConfig(t *testing.T) {
	provider, err := New(configFor(models.AIConfig{
		Provider: models.ProviderOpenAI,
		APIKey:   "sk-test",
	}), testLimiter(), logger.Default())

	require.Error(t, err)
	assert.Nil(t, provider)
	assert.Equal(t, KindConfig, KindOf(err))

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, models.ProviderOpenAI, perr.Provider)
	assert.Contains(t, err.Error(), "validated")
}

func TestNewRejectsMissingKey(t *testing.T) {
	t.Setenv(models.GeminiKeyEnv, "")

	for _, provider := range []models.AIProvider{
		models.ProviderGemini,
		models.ProviderOpenAI,
		models.ProviderClaude,
		models.ProviderOpenRouter,
	} {
		p, err := New(configFor(models.AIConfig{
			Provider:  provider,
			Validated: true,
		}), testLimiter(), logger.Default())

		require.Error(t, err, "provider %s", provider)
		assert.Nil(t, p)
		assert.Equal(t, KindConfig, KindOf(err), "provider %s", provider)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(configFor(models.AIConfig{
		Provider:  "mystery",
		APIKey:    "k",
		Validated: true,
	}), testLimiter(), logger.Default())

	require.Error(t, err)
	assert.Equal(t, KindConfig, KindOf(err))
}

func TestNewReadyConfigDispatches(t *testing.T) {
	cases := map[models.AIProvider]models.AIProvider{
		models.ProviderOpenAI:     models.ProviderOpenAI,
		models.ProviderClaude:     models.ProviderClaude,
		models.ProviderOpenRouter: models.ProviderOpenRouter,
	}
	for configured, want := range cases {
		p, err := New(configFor(models.AIConfig{
			Provider:  configured,
			APIKey:    "sk-test",
			Validated: true,
		}), testLimiter(), logger.Default())

		require.NoError(t, err)
		assert.Equal(t, want, p.Name())
	}
}

func TestNewForValidationSkipsReadinessGate(t *testing.T) {
	// The credential probe runs before the config is validated, so this
	// path must not be gated on Validated.
	p, err := NewForValidation(configFor(models.AIConfig{
		Provider: models.ProviderClaude,
		APIKey:   "sk-ant-test",
	}), testLimiter(), logger.Default())

	require.NoError(t, err)
	assert.Equal(t, models.ProviderClaude, p.Name())
}
