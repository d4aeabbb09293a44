package storage

import (
	"context"
	"errors"
	"time"

	"github.com/campaign-agent/internal/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for data persistence
type Repository interface {
	// Campaign history. Saving an existing campaign moves it to the
	// front of the history; the history is bounded and drops its
	// oldest entries past the limit.
	SaveCampaign(ctx context.Context, campaign *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*models.Campaign, error)
	DeleteCampaign(ctx context.Context, id string) error
	ClearCampaigns(ctx context.Context) error

	// Provider and publishing settings
	SaveAIConfig(ctx context.Context, cfg *models.AIConfig) error
	GetAIConfig(ctx context.Context) (*models.AIConfig, error)
	SaveWordPressConfig(ctx context.Context, cfg *models.WordPressConfig) error
	GetWordPressConfig(ctx context.Context) (*models.WordPressConfig, error)

	// Maintenance
	Migrate() error
	Close() error
}

// CampaignRecord is the persisted form of a campaign. The campaign itself
// is stored as a JSON payload; the indexed columns exist for ordering and
// listing without decoding every row.
type CampaignRecord struct {
	ID        string    `gorm:"primaryKey"`
	Title     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	SavedAt   time.Time `gorm:"index;not null"`
	Payload   []byte    `gorm:"not null"`
}

// SettingRecord is one persisted settings blob keyed by name
type SettingRecord struct {
	Key   string `gorm:"primaryKey"`
	Value []byte `gorm:"not null"`
}

// Setting keys
const (
	SettingAIConfig        = "ai_config"
	SettingWordPressConfig = "wordpress_config"
)
