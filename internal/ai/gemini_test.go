package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/genai"
)

func TestGenerationConfigJSONModeAttachesSchema(t *testing.T) {
	config := generationConfig(&GenerateRequest{ForceJSON: true})

	assert.Equal(t, "application/json", config.ResponseMIMEType)
	require.NotNil(t, config.ResponseSchema)
	assert.Empty(t, config.Tools)

	require.Equal(t, genai.TypeObject, config.ResponseSchema.Type)
	analysis := config.ResponseSchema.Properties["topic_analysis"]
	require.NotNil(t, analysis)
	assert.Contains(t, analysis.Properties, "campaign_strategy")
	assert.Contains(t, analysis.Properties, "viral_hooks")

	posts := config.ResponseSchema.Properties["posts"]
	require.NotNil(t, posts)
	require.Equal(t, genai.TypeArray, posts.Type)
	require.NotNil(t, posts.Items)
	assert.Contains(t, posts.Items.Properties, "variations")
	assert.Contains(t, posts.Items.Properties, "viral_breakdown")
	assert.Contains(t, posts.Items.Required, "image_prompt")

	variation := posts.Items.Properties["variations"].Items
	require.NotNil(t, variation)
	assert.Contains(t, variation.Properties, "post_text")
	assert.Contains(t, variation.Properties, "call_to_action")
}

func TestGenerationConfigSelectsSchemaByShape(t *testing.T) {
	scheduling := generationConfig(&GenerateRequest{ForceJSON: true, Shape: ShapeScheduling})
	require.NotNil(t, scheduling.ResponseSchema)
	assert.Contains(t, scheduling.ResponseSchema.Properties, "scheduling_suggestions")
	assert.NotContains(t, scheduling.ResponseSchema.Properties, "posts")

	rewrite := generationConfig(&GenerateRequest{ForceJSON: true, Shape: ShapeRewrite})
	require.NotNil(t, rewrite.ResponseSchema)
	assert.Contains(t, rewrite.ResponseSchema.Properties, "text")
	assert.Equal(t, []string{"text"}, rewrite.ResponseSchema.Required)
}

func TestGenerationConfigSearchModeHasNoSchema(t *testing.T) {
	config := generationConfig(&GenerateRequest{UseSearch: true})

	require.Len(t, config.Tools, 1)
	assert.NotNil(t, config.Tools[0].GoogleSearch)
	assert.Empty(t, config.ResponseMIMEType)
	assert.Nil(t, config.ResponseSchema)
}
