package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nuanyu/companion/backend/internal/model/companion"
)

// CompanionStore 伴侣档案的持久化访问。
type CompanionStore struct {
	db *gorm.DB
}

// NewCompanionStore 创建伴侣存储。
func NewCompanionStore(db *gorm.DB) *CompanionStore {
	return &CompanionStore{db: db}
}

// Get loads a companion by id.
func (s *CompanionStore) Get(ctx context.Context, id string) (*companion.Companion, error) {
	var row companion.Companion
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// GetForUser loads a companion only if it belongs to the user.
func (s *CompanionStore) GetForUser(ctx context.Context, id, userID string) (*companion.Companion, error) {
	var row companion.Companion
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListForUser returns all companions owned by the user.
func (s *CompanionStore) ListForUser(ctx context.Context, userID string) ([]companion.Companion, error) {
	var rows []companion.Companion
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Create validates the personality config once at the boundary and stores
// the companion.
func (s *CompanionStore) Create(ctx context.Context, c *companion.Companion) error {
	if c.Name == "" {
		return companion.ErrNameRequired
	}
	if err := c.Personality.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.IntimacyLevel < 1 {
		c.IntimacyLevel = 1
	}
	return s.db.WithContext(ctx).Create(c).Error
}

// UpdateIntimacy syncs the companion row with the progression ledger's
// output. Only the pipeline calls this, after the ledger has run.
func (s *CompanionStore) UpdateIntimacy(ctx context.Context, id string, level, points int) error {
	return s.db.WithContext(ctx).
		Model(&companion.Companion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"intimacy_level":  level,
			"intimacy_points": points,
		}).Error
}

// EnsureSeed inserts the default companions when they are missing, for
// development bootstrapping.
func (s *CompanionStore) EnsureSeed(ctx context.Context) error {
	for _, c := range companion.Seed() {
		var count int64
		if err := s.db.WithContext(ctx).Model(&companion.Companion{}).Where("id = ?", c.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		seeded := c
		if err := s.db.WithContext(ctx).Create(&seeded).Error; err != nil {
			return err
		}
	}
	return nil
}
