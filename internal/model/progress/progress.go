package progress

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// GrowthTrend 关系质量的走向，仅作为展示层的参考信息。
type GrowthTrend string

const (
	TrendIncreasing GrowthTrend = "increasing"
	TrendStable     GrowthTrend = "stable"
	TrendDecreasing GrowthTrend = "decreasing"
)

// RecentWindow bounds how many interaction quality records are retained
// inside a RelationshipProgress row.
const RecentWindow = 20

// InteractionQuality is the ephemeral per-exchange score record. It is only
// durable as part of the bounded recent window on RelationshipProgress.
type InteractionQuality struct {
	MessageID   string    `json:"messageId"`
	Length      int       `json:"length"`
	Emotion     int       `json:"emotion"`
	Engagement  int       `json:"engagement"`
	Creativity  int       `json:"creativity"`
	Consistency int       `json:"consistency"`
	Composite   int       `json:"composite"`
	CreatedAt   time.Time `json:"createdAt"`
}

// QualityWindow serializes the bounded recent-quality list into a JSON column.
type QualityWindow []InteractionQuality

func (w *QualityWindow) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	default:
		return errors.New("type assertion for quality window failed")
	}
}

func (w QualityWindow) Value() (driver.Value, error) {
	if w == nil {
		w = QualityWindow{}
	}
	return json.Marshal(w)
}

// StringSet serializes awarded milestone ids into a JSON column.
type StringSet []string

func (s *StringSet) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("type assertion for string set failed")
	}
}

func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		s = StringSet{}
	}
	return json.Marshal(s)
}

// Contains reports whether id is already in the set.
func (s StringSet) Contains(id string) bool {
	for _, item := range s {
		if item == id {
			return true
		}
	}
	return false
}

// RelationshipProgress 记录一对 (用户, 伴侣) 的关系进展。
// One row per pair, created on the first interaction. FirstInteractionAt is
// durable so relationship days survive eviction of the quality window.
type RelationshipProgress struct {
	ID                 string        `json:"id" gorm:"primaryKey;size:36"`
	UserID             string        `json:"userId" gorm:"uniqueIndex:idx_progress_pair;size:36;not null"`
	CompanionID        string        `json:"companionId" gorm:"uniqueIndex:idx_progress_pair;size:36;not null"`
	IntimacyLevel      int           `json:"intimacyLevel" gorm:"default:1"`
	IntimacyPoints     int           `json:"intimacyPoints" gorm:"default:0"`
	TotalInteractions  int           `json:"totalInteractions" gorm:"default:0"`
	QualityScore       float64       `json:"qualityScore" gorm:"default:0"`
	RelationshipDays   int           `json:"relationshipDays" gorm:"default:0"`
	Milestones         StringSet     `json:"milestones" gorm:"type:json"`
	RecentQualities    QualityWindow `json:"-" gorm:"type:json"`
	GrowthTrend        GrowthTrend   `json:"growthTrend" gorm:"size:20;default:'stable'"`
	FirstInteractionAt time.Time     `json:"firstInteractionAt"`
	LastUpdated        time.Time     `json:"lastUpdated"`
}

// TableName 指定表名。
func (RelationshipProgress) TableName() string {
	return "relationship_progress"
}

// Memory fragment types emitted by the engine.
const (
	FragmentMilestone = "milestone"
	FragmentExchange  = "exchange"
)

// MemoryFragment is an append-only log entry created on milestone awards and
// notable exchanges. The engine only writes; the presentation layer reads.
type MemoryFragment struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	UserID         string    `json:"userId" gorm:"index:idx_fragments_pair;size:36;not null"`
	CompanionID    string    `json:"companionId" gorm:"index:idx_fragments_pair;size:36;not null"`
	Type           string    `json:"type" gorm:"size:20;not null"`
	Title          string    `json:"title" gorm:"size:200"`
	Content        string    `json:"content" gorm:"type:text"`
	EmotionalValue int       `json:"emotionalValue"`
	Tags           StringSet `json:"tags" gorm:"type:json"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TableName 指定表名。
func (MemoryFragment) TableName() string {
	return "memory_fragments"
}
