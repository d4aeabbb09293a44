// Package sqlite implements storage.Repository on an embedded SQLite
// database through GORM.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/campaign-agent/internal/models"
	"github.com/campaign-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db           *gorm.DB
	historyLimit int
}

// New creates a new SQLite repository. historyLimit bounds how many
// campaigns the history retains; zero or negative means unbounded.
func New(dsn string, historyLimit int) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db, historyLimit: historyLimit}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&storage.CampaignRecord{},
		&storage.SettingRecord{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Campaign operations

func (r *Repository) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	payload, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("failed to encode campaign: %w", err)
	}

	record := storage.CampaignRecord{
		ID:        campaign.ID,
		Title:     campaign.Title,
		CreatedAt: campaign.CreatedAt,
		SavedAt:   time.Now(),
		Payload:   payload,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		return r.trim(tx)
	})
}

// trim drops the oldest entries beyond the history limit
func (r *Repository) trim(tx *gorm.DB) error {
	if r.historyLimit <= 0 {
		return nil
	}
	var keep []string
	err := tx.Model(&storage.CampaignRecord{}).
		Order("saved_at DESC").
		Limit(r.historyLimit).
		Pluck("id", &keep).Error
	if err != nil {
		return err
	}
	if len(keep) < r.historyLimit {
		return nil
	}
	return tx.Where("id NOT IN ?", keep).Delete(&storage.CampaignRecord{}).Error
}

func (r *Repository) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	var record storage.CampaignRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	campaign, err := decode(&record)
	if err != nil {
		// Unreadable payloads are dropped rather than wedging the
		// history forever.
		r.db.WithContext(ctx).Delete(&storage.CampaignRecord{}, "id = ?", id)
		return nil, storage.ErrNotFound
	}
	return campaign, nil
}

func (r *Repository) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	var records []storage.CampaignRecord
	err := r.db.WithContext(ctx).
		Order("saved_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	campaigns := make([]*models.Campaign, 0, len(records))
	for i := range records {
		campaign, err := decode(&records[i])
		if err != nil {
			r.db.WithContext(ctx).Delete(&storage.CampaignRecord{}, "id = ?", records[i].ID)
			continue
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, nil
}

func (r *Repository) DeleteCampaign(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&storage.CampaignRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) ClearCampaigns(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&storage.CampaignRecord{}).Error
}

func decode(record *storage.CampaignRecord) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := json.Unmarshal(record.Payload, &campaign); err != nil {
		return nil, fmt.Errorf("corrupted campaign payload for %s: %w", record.ID, err)
	}
	if campaign.ID == "" {
		campaign.ID = record.ID
	}
	return &campaign, nil
}

// Settings operations

func (r *Repository) SaveAIConfig(ctx context.Context, cfg *models.AIConfig) error {
	return r.saveSetting(ctx, storage.SettingAIConfig, cfg)
}

func (r *Repository) GetAIConfig(ctx context.Context) (*models.AIConfig, error) {
	var cfg models.AIConfig
	if err := r.getSetting(ctx, storage.SettingAIConfig, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Repository) SaveWordPressConfig(ctx context.Context, cfg *models.WordPressConfig) error {
	return r.saveSetting(ctx, storage.SettingWordPressConfig, cfg)
}

func (r *Repository) GetWordPressConfig(ctx context.Context) (*models.WordPressConfig, error) {
	var cfg models.WordPressConfig
	if err := r.getSetting(ctx, storage.SettingWordPressConfig, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Repository) saveSetting(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	return r.db.WithContext(ctx).Save(&storage.SettingRecord{Key: key, Value: payload}).Error
}

func (r *Repository) getSetting(ctx context.Context, key string, out any) error {
	var record storage.SettingRecord
	if err := r.db.WithContext(ctx).First(&record, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(record.Value, out); err != nil {
		return fmt.Errorf("corrupted setting payload for %s: %w", key, err)
	}
	return nil
}
