package campaign

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaign-agent/internal/ai"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/internal/wordpress"
	"github.com/campaign-agent/pkg/ratelimit"
)

func richCampaign() *models.Campaign {
	return &models.Campaign{
		ID:    "campaign_42",
		Title: "Test",
		Tone:  models.ToneWitty,
		Posts: []*models.Post{
			{
				ID:       "post-a",
				Platform: models.PlatformLinkedIn,
				Variations: []models.Variation{
					{Name: "A", Title: "Original Title", Text: "Original body.\n\nSecond paragraph.", CallToAction: "Read more", Hashtags: models.StringSlice{"#go"}},
					{Name: "B", Title: "Alt Title", Text: "Alt body"},
				},
				ImagePrompt:     "a minimalist chart",
				ImageStatus:     models.ImageIdle,
				WordPressStatus: models.WordPressIdle,
			},
			{
				ID:              "post-b",
				Platform:        models.PlatformTwitter,
				Variations:      []models.Variation{{Name: "A", Title: "Second", Text: "Second body"}},
				ImageStatus:     models.ImageIdle,
				WordPressStatus: models.WordPressPublished,
				WordPressURL:    "https://blog.example/old",
			},
		},
	}
}

func newTestManager(t *testing.T, provider *fakeProvider, wp *wordpress.Client) (*Manager, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	state := NewState(richCampaign())
	return NewManager(state, provider, wp, repo, testConfig(t.TempDir()), testLog()), repo
}

func TestRewriteUpdatesVariationField(t *testing.T) {
	provider := &fakeProvider{
		generateFn: func(ctx context.Context, req *ai.GenerateRequest) (*ai.GenerateResult, error) {
			return &ai.GenerateResult{Text: `{"text": "Sharper Title"}`}, nil
		},
	}
	manager, repo := newTestManager(t, provider, nil)

	err := manager.Rewrite(context.Background(), "post-a", 0, models.RewritePostTitle)
	require.NoError(t, err)

	snapshot := manager.State().Snapshot()
	assert.Equal(t, "Sharper Title", snapshot.Posts[0].Variations[0].Title)
	assert.Equal(t, "Alt Title", snapshot.Posts[0].Variations[1].Title)
	assert.Empty(t, snapshot.Posts[0].RewritingField)

	// The rewrite prompt carries the current value and tone
	requests := provider.recorded()
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0].Prompt, "Original Title")
	assert.Contains(t, requests[0].Prompt, string(models.ToneWitty))

	assert.NotNil(t, repo.stored("campaign_42"))
}

func TestRewriteImagePromptTargetsPostField(t *testing.T) {
	provider := &fakeProvider{
		generateFn: func(ctx context.Context, req *ai.GenerateRequest) (*ai.GenerateResult, error) {
			return &ai.GenerateResult{Text: `{"text": "an art-directed diagram"}`}, nil
		},
	}
	manager, _ := newTestManager(t, provider, nil)

	err := manager.Rewrite(context.Background(), "post-a", 0, models.RewriteImagePrompt)
	require.NoError(t, err)
	assert.Equal(t, "an art-directed diagram", manager.State().Snapshot().Posts[0].ImagePrompt)
}

func TestRewriteUnusableOutputClearsLoadingState(t *testing.T) {
	provider := &fakeProvider{
		generateFn: func(ctx context.Context, req *ai.GenerateRequest) (*ai.GenerateResult, error) {
			return &ai.GenerateResult{Text: "no json here"}, nil
		},
	}
	manager, _ := newTestManager(t, provider, nil)

	err := manager.Rewrite(context.Background(), "post-a", 0, models.RewritePostText)
	require.Error(t, err)

	snapshot := manager.State().Snapshot()
	assert.Equal(t, "Original body.\n\nSecond paragraph.", snapshot.Posts[0].Variations[0].Text)
	assert.Empty(t, snapshot.Posts[0].RewritingField)
}

func TestRewriteMissingPost(t *testing.T) {
	manager, _ := newTestManager(t, &fakeProvider{}, nil)
	err := manager.Rewrite(context.Background(), "nope", 0, models.RewritePostText)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestRegenerateImageWritesPreviewAndData(t *testing.T) {
	pixels := []byte{0x89, 0x50, 0x4e, 0x47}
	provider := &fakeProvider{
		imageFn: func(ctx context.Context, prompt string, aspect ai.AspectRatio) (*ai.Image, error) {
			assert.Equal(t, "a minimalist chart", prompt)
			return &ai.Image{MIMEType: "image/png", Data: pixels}, nil
		},
	}
	manager, repo := newTestManager(t, provider, nil)

	err := manager.RegenerateImage(context.Background(), "post-a")
	require.NoError(t, err)

	post := manager.State().Snapshot().Posts[0]
	assert.Equal(t, models.ImageReady, post.ImageStatus)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pixels), post.ImageData)

	require.NotEmpty(t, post.ImagePath)
	written, err := os.ReadFile(post.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, pixels, written)

	// Persisted snapshot keeps the durable data URI
	stored := repo.stored("campaign_42")
	require.NotNil(t, stored)
	assert.Equal(t, post.ImageData, stored.Posts[0].ImageData)
}

func TestRegenerateImageReleasesOldPreview(t *testing.T) {
	manager, _ := newTestManager(t, &fakeProvider{}, nil)

	stale := manager.previewPath("post-a") + ".old"
	require.NoError(t, os.MkdirAll(manager.cfg.Images.PreviewDir+"/campaign_42", 0755))
	require.NoError(t, os.WriteFile(stale, []byte{1}, 0644))
	manager.State().UpdatePost("post-a", func(p *models.Post) {
		p.ImagePath = stale
	})

	require.NoError(t, manager.RegenerateImage(context.Background(), "post-a"))
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestRegenerateImageFailureRecordsError(t *testing.T) {
	provider := &fakeProvider{
		imageFn: func(ctx context.Context, prompt string, aspect ai.AspectRatio) (*ai.Image, error) {
			return nil, &ai.ProviderError{Provider: models.ProviderGemini, Kind: ai.KindSafetyBlocked, Message: "blocked by safety filters"}
		},
	}
	manager, _ := newTestManager(t, provider, nil)

	err := manager.RegenerateImage(context.Background(), "post-a")
	require.Error(t, err)

	post := manager.State().Snapshot().Posts[0]
	assert.Equal(t, models.ImageError, post.ImageStatus)
	assert.Contains(t, post.ImageError, "safety")
}

func TestRegenerateImageStaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	provider := &fakeProvider{
		imageFn: func(ctx context.Context, prompt string, aspect ai.AspectRatio) (*ai.Image, error) {
			close(started)
			<-release
			return &ai.Image{MIMEType: "image/png", Data: []byte{1}}, nil
		},
	}
	manager, _ := newTestManager(t, provider, nil)

	done := make(chan error, 1)
	go func() {
		done <- manager.RegenerateImage(context.Background(), "post-a")
	}()
	<-started

	// A newer operation takes the field while the first is in flight
	manager.State().Acquire(imageField("post-a"), func(c *models.Campaign) {
		c.Post("post-a").ImageStatus = models.ImageLoading
	})
	close(release)

	require.NoError(t, <-done)
	post := manager.State().Snapshot().Posts[0]
	assert.Equal(t, models.ImageLoading, post.ImageStatus)
	assert.Empty(t, post.ImageData)
}

func TestGenerateSimilarAppendsPosts(t *testing.T) {
	provider := &fakeProvider{
		generateFn: func(ctx context.Context, req *ai.GenerateRequest) (*ai.GenerateResult, error) {
			return &ai.GenerateResult{Text: `{"posts": [
				{"variations": [{"variation_name": "A", "post_title": "Fresh", "post_text": "angle"}], "viral_score": 90}
			]}`}, nil
		},
	}
	manager, _ := newTestManager(t, provider, nil)

	posts, err := manager.GenerateSimilar(context.Background(), "post-a", 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	// Platform is inherited from the model post when the model omits it
	assert.Equal(t, models.PlatformLinkedIn, posts[0].Platform)
	assert.Len(t, manager.State().Snapshot().Posts, 3)
}

func TestClipScript(t *testing.T) {
	provider := &fakeProvider{
		generateFn: func(ctx context.Context, req *ai.GenerateRequest) (*ai.GenerateResult, error) {
			assert.False(t, req.ForceJSON)
			return &ai.GenerateResult{Text: "HOOK: two seconds.\nSCENE 1: ..."}, nil
		},
	}
	manager, _ := newTestManager(t, provider, nil)

	script, err := manager.ClipScript(context.Background(), "post-a")
	require.NoError(t, err)
	assert.Contains(t, script, "HOOK")

	post := manager.State().Snapshot().Posts[0]
	assert.Equal(t, script, post.ClipScript)
	assert.False(t, post.ClipScriptLoading)
}

func wordpressServer(t *testing.T, posts *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "admin", user)
		require.Equal(t, "secret", pass)

		switch r.URL.Path {
		case "/wp-json/wp/v2/users/me":
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"id": 1}`)
		case "/wp-json/wp/v2/media":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": 11, "source_url": "https://blog.example/img.png"})
		case "/wp-json/wp/v2/posts":
			n := posts.Add(1)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": int(n), "link": fmt.Sprintf("https://blog.example/p/%d", n)})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testWPClient(url string) *wordpress.Client {
	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter(ratelimit.LimiterWordPress, 1000, 1000)
	return wordpress.NewClient(models.WordPressConfig{
		URL:         url,
		Username:    "admin",
		AppPassword: "secret",
	}, limiter, testLog())
}

func TestPublishPost(t *testing.T) {
	var posts atomic.Int32
	server := wordpressServer(t, &posts)
	defer server.Close()

	manager, repo := newTestManager(t, &fakeProvider{}, testWPClient(server.URL))

	err := manager.Publish(context.Background(), "post-a")
	require.NoError(t, err)

	post := manager.State().Snapshot().Posts[0]
	assert.Equal(t, models.WordPressPublished, post.WordPressStatus)
	assert.Equal(t, "https://blog.example/p/1", post.WordPressURL)
	assert.Empty(t, post.WordPressError)
	assert.NotNil(t, repo.stored("campaign_42"))
}

func TestPublishSkipsAlreadyPublished(t *testing.T) {
	var posts atomic.Int32
	server := wordpressServer(t, &posts)
	defer server.Close()

	manager, _ := newTestManager(t, &fakeProvider{}, testWPClient(server.URL))

	require.NoError(t, manager.Publish(context.Background(), "post-b"))
	assert.Equal(t, int32(0), posts.Load())
	assert.Equal(t, "https://blog.example/old", manager.State().Snapshot().Posts[1].WordPressURL)
}

func TestPublishFailureRecordsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"code": "rest_cannot_create"}`)
	}))
	defer server.Close()

	manager, _ := newTestManager(t, &fakeProvider{}, testWPClient(server.URL))

	err := manager.Publish(context.Background(), "post-a")
	require.Error(t, err)

	post := manager.State().Snapshot().Posts[0]
	assert.Equal(t, models.WordPressFailed, post.WordPressStatus)
	assert.Contains(t, post.WordPressError, "rest_cannot_create")
}

func TestPublishAllIsIdempotent(t *testing.T) {
	var posts atomic.Int32
	server := wordpressServer(t, &posts)
	defer server.Close()

	manager, _ := newTestManager(t, &fakeProvider{}, testWPClient(server.URL))

	published, failed, err := manager.PublishAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published) // post-b was already published
	assert.Equal(t, 0, failed)

	published, failed, err = manager.PublishAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Equal(t, 0, failed)
	assert.Equal(t, int32(1), posts.Load())
}

func TestPublishWithoutClient(t *testing.T) {
	manager, _ := newTestManager(t, &fakeProvider{}, nil)
	assert.Error(t, manager.Publish(context.Background(), "post-a"))
	_, _, err := manager.PublishAll(context.Background())
	assert.Error(t, err)
}

func TestScheduleAndUnschedule(t *testing.T) {
	manager, _ := newTestManager(t, &fakeProvider{}, nil)
	at := time.Now().Add(time.Hour)

	require.NoError(t, manager.Schedule(context.Background(), "post-a", at))
	post := manager.State().Snapshot().Posts[0]
	assert.True(t, post.IsScheduled)
	require.NotNil(t, post.ScheduledAt)
	assert.WithinDuration(t, at, *post.ScheduledAt, time.Second)

	require.NoError(t, manager.Unschedule(context.Background(), "post-a"))
	post = manager.State().Snapshot().Posts[0]
	assert.False(t, post.IsScheduled)
	assert.Nil(t, post.ScheduledAt)
}

func TestSchedulePastTimeRejected(t *testing.T) {
	manager, _ := newTestManager(t, &fakeProvider{}, nil)
	err := manager.Schedule(context.Background(), "post-a", time.Now().Add(-time.Hour))
	assert.Error(t, err)
}

func TestProcessDuePublishesDuePostsOnly(t *testing.T) {
	var posts atomic.Int32
	server := wordpressServer(t, &posts)
	defer server.Close()

	repo := newMemoryRepo()
	stored := richCampaign()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	stored.Posts[0].IsScheduled = true
	stored.Posts[0].ScheduledAt = &past
	stored.Posts = append(stored.Posts, &models.Post{
		ID:              "post-c",
		Platform:        models.PlatformThreads,
		Variations:      []models.Variation{{Name: "A", Title: "Later", Text: "later"}},
		WordPressStatus: models.WordPressIdle,
		IsScheduled:     true,
		ScheduledAt:     &future,
	})
	require.NoError(t, repo.SaveCampaign(context.Background(), stored))

	publisher := NewPublisher(repo, testWPClient(server.URL), testConfig(t.TempDir()), testLog())
	published, err := publisher.ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	saved := repo.stored("campaign_42")
	assert.Equal(t, models.WordPressPublished, saved.Posts[0].WordPressStatus)
	assert.Equal(t, models.WordPressIdle, saved.Posts[2].WordPressStatus)
	assert.False(t, saved.Posts[0].IsScheduled)
}
