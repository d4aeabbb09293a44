package campaign

import (
	"fmt"
	"sync"

	"github.com/campaign-agent/internal/models"
)

// State owns the working campaign. All mutation goes through field-scoped
// commits under one lock; readers get deep copies, so no caller ever holds
// a reference into the owned object.
//
// Async operations acquire a task for the field they will write. The
// commit applies only while that task still owns the field; a newer
// acquisition makes every older task's commit a silent no-op. That is the
// whole stale-result defense: last acquisition wins, completion order is
// irrelevant.
type State struct {
	mu       sync.Mutex
	campaign *models.Campaign
	owners   map[string]uint64
	nextSeq  uint64
}

// Task is ownership of one mutable field for one async operation
type Task struct {
	field string
	seq   uint64
}

// NewState creates a State owning the given campaign
func NewState(campaign *models.Campaign) *State {
	return &State{
		campaign: campaign,
		owners:   make(map[string]uint64),
	}
}

// Field keys for task ownership
func imageField(postID string) string { return "post:" + postID + ":image" }

func rewriteField(postID string, field models.RewriteField) string {
	return fmt.Sprintf("post:%s:rewrite:%s", postID, field)
}

func clipField(postID string) string { return "post:" + postID + ":clip" }

func wordpressField(postID string) string { return "post:" + postID + ":wordpress" }

// Snapshot returns a deep copy of the current campaign
func (s *State) Snapshot() *models.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaign.Clone()
}

// CampaignID returns the owned campaign's id
func (s *State) CampaignID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaign.ID
}

// Update applies a mutation to the owned campaign under the lock. Used
// for synchronous edits that need no task ownership.
func (s *State) Update(mutate func(c *models.Campaign)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(s.campaign)
}

// UpdatePost applies a mutation to one post. Returns false when the post
// no longer exists.
func (s *State) UpdatePost(postID string, mutate func(p *models.Post)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	post := s.campaign.Post(postID)
	if post == nil {
		return false
	}
	mutate(post)
	return true
}

// Acquire takes ownership of a field and applies the loading-state
// mutation in the same critical section, so no concurrent reader can see
// ownership without the loading state.
func (s *State) Acquire(field string, mutate func(c *models.Campaign)) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	s.owners[field] = s.nextSeq
	if mutate != nil {
		mutate(s.campaign)
	}
	return Task{field: field, seq: s.nextSeq}
}

// Commit applies the task's result mutation if the task still owns its
// field. Returns false when a newer task took the field, in which case
// nothing is applied.
func (s *State) Commit(task Task, mutate func(c *models.Campaign)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[task.field] != task.seq {
		return false
	}
	delete(s.owners, task.field)
	mutate(s.campaign)
	return true
}

// Owns reports whether the task still owns its field
func (s *State) Owns(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owners[task.field] == task.seq
}
