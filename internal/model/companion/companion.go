package companion

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type 表示伴侣的预设性格类型。
type Type string

const (
	TypeGentle       Type = "gentle"       // 温柔型
	TypeLively       Type = "lively"       // 活泼型
	TypeIntellectual Type = "intellectual" // 知性型
	TypeMature       Type = "mature"       // 成熟型
	TypeCool         Type = "cool"         // 高冷型
	TypeCustom       Type = "custom"       // 自定义
)

// Types lists every supported companion type in declaration order.
func Types() []Type {
	return []Type{TypeGentle, TypeLively, TypeIntellectual, TypeMature, TypeCool, TypeCustom}
}

// Valid reports whether t is a known companion type.
func (t Type) Valid() bool {
	switch t {
	case TypeGentle, TypeLively, TypeIntellectual, TypeMature, TypeCool, TypeCustom:
		return true
	}
	return false
}

var (
	ErrInvalidType  = errors.New("unknown companion type")
	ErrNameRequired = errors.New("companion name is required")
)

// PersonalityConfig captures the persona attributes consumed by the reply
// service when assembling the system prompt. Validated once at the boundary.
type PersonalityConfig struct {
	Type          Type     `json:"type"`
	Traits        []string `json:"traits,omitempty"`
	SpeakingStyle string   `json:"speakingStyle,omitempty"`
	Interests     []string `json:"interests,omitempty"`
	Gender        string   `json:"gender,omitempty"`
	Age           int      `json:"age,omitempty"`
	Hobbies       []string `json:"hobbies,omitempty"`
	Skills        []string `json:"skills,omitempty"`
	Occupation    string   `json:"occupation,omitempty"`
	Background    string   `json:"background,omitempty"`
}

// Validate checks the closed type enum and basic field sanity.
func (c PersonalityConfig) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, c.Type)
	}
	if c.Age < 0 {
		return errors.New("age must not be negative")
	}
	return nil
}

// Scan implements sql.Scanner so the config can live in a JSON column.
func (c *PersonalityConfig) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("type assertion for personality config failed")
	}
}

// Value implements driver.Valuer.
func (c PersonalityConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Companion 用户的专属陪伴角色。
// IntimacyLevel is always derived from IntimacyPoints; only the progression
// ledger mutates either field.
type Companion struct {
	ID             string            `json:"id" gorm:"primaryKey;size:36"`
	UserID         string            `json:"userId" gorm:"index;size:36;not null"`
	Name           string            `json:"name" gorm:"size:100;not null"`
	CompanionType  Type              `json:"companionType" gorm:"size:20;not null"`
	Personality    PersonalityConfig `json:"personality" gorm:"type:json"`
	IntimacyLevel  int               `json:"intimacyLevel" gorm:"default:1"`
	IntimacyPoints int               `json:"intimacyPoints" gorm:"default:0"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// TableName 指定表名。
func (Companion) TableName() string {
	return "companions"
}

// StageLabel maps an intimacy level to the coarse relationship stage injected
// into the system prompt. Levels 5 and 6 share the deepest stage.
func StageLabel(level int) string {
	switch {
	case level <= 1:
		return "初次相识" // just met
	case level == 2:
		return "渐渐熟悉"
	case level == 3:
		return "亲密朋友"
	case level == 4:
		return "心有灵犀"
	default:
		return "灵魂相依" // soul-connected
	}
}

// Seed provides default companions for development bootstrapping.
func Seed() []Companion {
	return []Companion{
		{
			ID:            "companion-nuan",
			UserID:        "demo-user",
			Name:          "暖暖",
			CompanionType: TypeGentle,
			Personality: PersonalityConfig{
				Type:          TypeGentle,
				Traits:        []string{"体贴", "耐心", "善解人意"},
				SpeakingStyle: "轻声细语，善于倾听，回应中带着安抚",
				Interests:     []string{"烘焙", "治愈系音乐", "植物"},
				Occupation:    "插画师",
				Background:    "在南方小城长大，喜欢用画笔记录生活里温暖的瞬间。",
			},
			IntimacyLevel: 1,
		},
		{
			ID:            "companion-xing",
			UserID:        "demo-user",
			Name:          "星野",
			CompanionType: TypeLively,
			Personality: PersonalityConfig{
				Type:          TypeLively,
				Traits:        []string{"元气", "好奇", "爱开玩笑"},
				SpeakingStyle: "节奏快、感叹号多，喜欢用流行梗",
				Interests:     []string{"电竞", "街舞", "奶茶测评"},
				Occupation:    "大学生",
				Background:    "永远精力充沛的大二学生，立志把每一天过成冒险。",
			},
			IntimacyLevel: 1,
		},
		{
			ID:            "companion-zhi",
			UserID:        "demo-user",
			Name:          "知夏",
			CompanionType: TypeIntellectual,
			Personality: PersonalityConfig{
				Type:          TypeIntellectual,
				Traits:        []string{"理性", "博学", "温和"},
				SpeakingStyle: "条理清晰，喜欢引用书中的句子",
				Interests:     []string{"科幻小说", "天文", "棋类"},
				Occupation:    "图书编辑",
				Background:    "相信每个问题背后都藏着一个更有趣的问题。",
			},
			IntimacyLevel: 1,
		},
	}
}
