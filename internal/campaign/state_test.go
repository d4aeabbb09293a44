package campaign

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaign-agent/internal/models"
)

func testCampaign() *models.Campaign {
	return &models.Campaign{
		ID:    "campaign_1",
		Title: "Test",
		Posts: []*models.Post{
			{ID: "post-a", Platform: models.PlatformTwitter, ImageStatus: models.ImageIdle},
			{ID: "post-b", Platform: models.PlatformLinkedIn, ImageStatus: models.ImageIdle},
		},
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	state := NewState(testCampaign())

	snapshot := state.Snapshot()
	snapshot.Posts[0].ImageStatus = models.ImageReady
	snapshot.Title = "mutated"

	fresh := state.Snapshot()
	assert.Equal(t, models.ImageIdle, fresh.Posts[0].ImageStatus)
	assert.Equal(t, "Test", fresh.Title)
}

func TestUpdatePostMissing(t *testing.T) {
	state := NewState(testCampaign())
	ok := state.UpdatePost("nope", func(p *models.Post) {
		t.Fatal("mutation must not run for a missing post")
	})
	assert.False(t, ok)
}

func TestStaleCommitIsNoOp(t *testing.T) {
	state := NewState(testCampaign())
	field := imageField("post-a")

	first := state.Acquire(field, nil)
	second := state.Acquire(field, nil)

	// The older task lost ownership; its commit must change nothing.
	committed := state.Commit(first, func(c *models.Campaign) {
		c.Post("post-a").ImageStatus = models.ImageError
	})
	assert.False(t, committed)
	assert.Equal(t, models.ImageIdle, state.Snapshot().Posts[0].ImageStatus)

	committed = state.Commit(second, func(c *models.Campaign) {
		c.Post("post-a").ImageStatus = models.ImageReady
	})
	assert.True(t, committed)
	assert.Equal(t, models.ImageReady, state.Snapshot().Posts[0].ImageStatus)
}

func TestCommitConsumesOwnership(t *testing.T) {
	state := NewState(testCampaign())
	task := state.Acquire(imageField("post-a"), nil)

	require.True(t, state.Commit(task, func(c *models.Campaign) {}))
	assert.False(t, state.Commit(task, func(c *models.Campaign) {
		t.Fatal("double commit must not apply")
	}))
}

func TestAcquireAppliesLoadingStateAtomically(t *testing.T) {
	state := NewState(testCampaign())
	state.Acquire(imageField("post-a"), func(c *models.Campaign) {
		c.Post("post-a").ImageStatus = models.ImageLoading
	})
	assert.Equal(t, models.ImageLoading, state.Snapshot().Posts[0].ImageStatus)
}

func TestFieldsAreIndependent(t *testing.T) {
	state := NewState(testCampaign())

	imageTask := state.Acquire(imageField("post-a"), nil)
	state.Acquire(wordpressField("post-a"), nil)
	state.Acquire(imageField("post-b"), nil)

	// Other fields and other posts never displace this task.
	assert.True(t, state.Owns(imageTask))
}

func TestConcurrentAcquireCommit(t *testing.T) {
	state := NewState(testCampaign())
	field := imageField("post-a")

	var wg sync.WaitGroup
	applied := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := state.Acquire(field, nil)
			if state.Commit(task, func(c *models.Campaign) {
				c.Post("post-a").ImageStatus = models.ImageReady
			}) {
				applied <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(applied)

	// At least the last acquisition commits; none race on the campaign.
	count := 0
	for range applied {
		count++
	}
	assert.GreaterOrEqual(t, count, 1)
}
