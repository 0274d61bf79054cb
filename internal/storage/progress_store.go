package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nuanyu/companion/backend/internal/model/progress"
)

// ProgressStore is the system of record for RelationshipProgress and the
// memory fragment log. Callers front reads with the progress cache.
type ProgressStore struct {
	db *gorm.DB
}

// NewProgressStore 创建关系进展存储。
func NewProgressStore(db *gorm.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Get loads the progress row for a pair; gorm.ErrRecordNotFound when the
// pair has never interacted.
func (s *ProgressStore) Get(ctx context.Context, userID, companionID string) (*progress.RelationshipProgress, error) {
	var row progress.RelationshipProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND companion_id = ?", userID, companionID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes the progress row, creating it on the first interaction.
func (s *ProgressStore) Upsert(ctx context.Context, p *progress.RelationshipProgress) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.LastUpdated = time.Now().UTC()

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "companion_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"intimacy_level", "intimacy_points", "total_interactions",
			"quality_score", "relationship_days", "milestones",
			"recent_qualities", "growth_trend", "last_updated",
		}),
	}).Create(p).Error
}

// AppendFragment stores one memory fragment.
func (s *ProgressStore) AppendFragment(ctx context.Context, f *progress.MemoryFragment) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(f).Error
}

// Fragments returns the fragment log for a pair, newest first.
func (s *ProgressStore) Fragments(ctx context.Context, userID, companionID string, limit int) ([]progress.MemoryFragment, error) {
	var fragments []progress.MemoryFragment

	q := s.db.WithContext(ctx).
		Where("user_id = ? AND companion_id = ?", userID, companionID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&fragments).Error; err != nil {
		return nil, err
	}
	return fragments, nil
}
