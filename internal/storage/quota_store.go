package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyMessageQuota 每用户每天一行的消息计数。
// The calendar day is part of the key, so a new day implicitly starts a
// fresh counter without any reset job.
type DailyMessageQuota struct {
	UserID       string    `gorm:"primaryKey;size:36"`
	QuotaDate    string    `gorm:"primaryKey;size:10"` // YYYY-MM-DD in UTC
	MessageCount int       `gorm:"not null;default:0"`
	UpdatedAt    time.Time
}

// TableName 指定表名。
func (DailyMessageQuota) TableName() string {
	return "daily_message_quotas"
}

// QuotaStore performs the capped atomic increment that backs the quota ledger.
type QuotaStore struct {
	db *gorm.DB
}

// NewQuotaStore 创建配额存储。
func NewQuotaStore(db *gorm.DB) *QuotaStore {
	return &QuotaStore{db: db}
}

// ReserveSlot increments the (user, day) counter if and only if it is still
// below limit, as a single conditional upsert. Returns false when the quota
// is exhausted. Check-then-increment happens inside the statement, never in
// application code, so concurrent sends from one user cannot both pass on
// the last remaining slot.
func (s *QuotaStore) ReserveSlot(ctx context.Context, userID, day string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "quota_date"}},
		Where: clause.Where{
			Exprs: []clause.Expression{
				gorm.Expr("daily_message_quotas.message_count < ?", limit),
			},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"message_count": gorm.Expr("daily_message_quotas.message_count + 1"),
			"updated_at":    time.Now().UTC(),
		}),
	}).Create(&DailyMessageQuota{
		UserID:       userID,
		QuotaDate:    day,
		MessageCount: 1,
		UpdatedAt:    time.Now().UTC(),
	})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseSlot undoes one reservation. Guarded so a stray release can never
// drive the counter negative.
func (s *QuotaStore) ReleaseSlot(ctx context.Context, userID, day string) error {
	return s.db.WithContext(ctx).
		Model(&DailyMessageQuota{}).
		Where("user_id = ? AND quota_date = ? AND message_count > 0", userID, day).
		UpdateColumn("message_count", gorm.Expr("message_count - 1")).Error
}

// Count returns the committed+reserved message count for the day, zero when
// the row does not exist yet.
func (s *QuotaStore) Count(ctx context.Context, userID, day string) (int, error) {
	var row DailyMessageQuota
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND quota_date = ?", userID, day).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.MessageCount, nil
}
