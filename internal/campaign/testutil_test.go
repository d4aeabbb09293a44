package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/campaign-agent/internal/ai"
	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/internal/storage"
	"github.com/campaign-agent/pkg/logger"
)

// fakeProvider scripts Generate/GenerateImage behavior per test
type fakeProvider struct {
	name       models.AIProvider
	generateFn func(ctx context.Context, req *ai.GenerateRequest) (*ai.GenerateResult, error)
	imageFn    func(ctx context.Context, prompt string, aspect ai.AspectRatio) (*ai.Image, error)

	mu       sync.Mutex
	requests []*ai.GenerateRequest
}

func (f *fakeProvider) Name() models.AIProvider {
	if f.name == "" {
		return models.ProviderGemini
	}
	return f.name
}

func (f *fakeProvider) Generate(ctx context.Context, req *ai.GenerateRequest) (*ai.GenerateResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.generateFn(ctx, req)
}

func (f *fakeProvider) GenerateImage(ctx context.Context, prompt string, aspect ai.AspectRatio) (*ai.Image, error) {
	if f.imageFn == nil {
		return &ai.Image{MIMEType: "image/png", Data: []byte{1}}, nil
	}
	return f.imageFn(ctx, prompt, aspect)
}

func (f *fakeProvider) Validate(ctx context.Context) (*ai.Validation, error) {
	return &ai.Validation{Valid: true}, nil
}

func (f *fakeProvider) recorded() []*ai.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*ai.GenerateRequest(nil), f.requests...)
}

// memoryRepo is an in-memory storage.Repository for tests
type memoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	order     []string
	aiCfg     *models.AIConfig
	wpCfg     *models.WordPressConfig
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{campaigns: make(map[string]*models.Campaign)}
}

func (m *memoryRepo) SaveCampaign(ctx context.Context, c *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		m.order = append([]string{c.ID}, m.order...)
	}
	m.campaigns[c.ID] = c.Clone()
	return nil
}

func (m *memoryRepo) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c.Clone(), nil
}

func (m *memoryRepo) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Campaign, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.campaigns[id].Clone())
	}
	return out, nil
}

func (m *memoryRepo) DeleteCampaign(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.campaigns, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memoryRepo) ClearCampaigns(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns = make(map[string]*models.Campaign)
	m.order = nil
	return nil
}

func (m *memoryRepo) SaveAIConfig(ctx context.Context, cfg *models.AIConfig) error {
	m.aiCfg = cfg
	return nil
}

func (m *memoryRepo) GetAIConfig(ctx context.Context) (*models.AIConfig, error) {
	if m.aiCfg == nil {
		return nil, storage.ErrNotFound
	}
	return m.aiCfg, nil
}

func (m *memoryRepo) SaveWordPressConfig(ctx context.Context, cfg *models.WordPressConfig) error {
	m.wpCfg = cfg
	return nil
}

func (m *memoryRepo) GetWordPressConfig(ctx context.Context) (*models.WordPressConfig, error) {
	if m.wpCfg == nil {
		return nil, storage.ErrNotFound
	}
	return m.wpCfg, nil
}

func (m *memoryRepo) Migrate() error { return nil }
func (m *memoryRepo) Close() error   { return nil }

func (m *memoryRepo) stored(id string) *models.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id]
}

func testConfig(previewDir string) *config.Config {
	cfg := &config.Config{}
	cfg.Images.PreviewDir = previewDir
	cfg.Publishing.BulkDelay = time.Millisecond
	cfg.History.Limit = 20
	cfg.Generation.MaxTokens = 4096
	return cfg
}

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}
