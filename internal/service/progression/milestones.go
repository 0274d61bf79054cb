package progression

import (
	"fmt"

	"github.com/nuanyu/companion/backend/internal/model/progress"
)

// Milestone is one row of the static achievement table. Immutable at
// runtime.
type Milestone struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	MinLevel     int      `json:"minLevel"`
	MinTotal     int      `json:"minTotal"`
	MinDays      int      `json:"minDays"`
	RewardPoints int      `json:"rewardPoints"`
	Unlocks      []string `json:"unlocks,omitempty"`
}

// milestoneTable is ordered by ascending difficulty; evaluation walks it in
// order so an award can cascade into the next entry within one pass.
var milestoneTable = []Milestone{
	{
		ID:           "first_meeting",
		Name:         "初次相遇",
		Description:  "和TA说了第一句话",
		MinLevel:     1,
		MinTotal:     1,
		MinDays:      0,
		RewardPoints: 10,
	},
	{
		ID:           "getting_familiar",
		Name:         "渐渐熟悉",
		Description:  "聊了十次之后，开始了解彼此",
		MinLevel:     2,
		MinTotal:     10,
		MinDays:      1,
		RewardPoints: 20,
	},
	{
		ID:           "trusted_friend",
		Name:         "值得信任",
		Description:  "一周的陪伴，换来一份信任",
		MinLevel:     3,
		MinTotal:     50,
		MinDays:      7,
		RewardPoints: 30,
		Unlocks:      []string{"voice_messages"},
	},
	{
		ID:           "close_companion",
		Name:         "亲密无间",
		Description:  "一个月的朝夕相处",
		MinLevel:     4,
		MinTotal:     150,
		MinDays:      30,
		RewardPoints: 50,
		Unlocks:      []string{"special_scenes"},
	},
	{
		ID:           "deep_bond",
		Name:         "心意相通",
		Description:  "九十天的细水长流",
		MinLevel:     5,
		MinTotal:     400,
		MinDays:      90,
		RewardPoints: 80,
		Unlocks:      []string{"memory_album"},
	},
	{
		ID:           "soul_connection",
		Name:         "灵魂相依",
		Description:  "半年时光，TA已经懂你",
		MinLevel:     6,
		MinTotal:     1000,
		MinDays:      180,
		RewardPoints: 100,
		Unlocks:      []string{"anniversary_mode"},
	},
}

// Milestones returns the static table.
func Milestones() []Milestone {
	out := make([]Milestone, len(milestoneTable))
	copy(out, milestoneTable)
	return out
}

// Engine awards unreached milestones against the current progression state.
type Engine struct {
	ledger *Ledger
}

// NewEngine 创建里程碑引擎。
func NewEngine(ledger *Ledger) *Engine {
	return &Engine{ledger: ledger}
}

// Evaluate walks the table in ascending order, awards every unreached
// milestone whose three thresholds are simultaneously met, adds the reward
// points through the ledger, and returns the newly awarded milestones with
// their memory fragments. Already-awarded ids are skipped, so running the
// evaluation twice on the same state awards nothing the second time.
func (e *Engine) Evaluate(p *progress.RelationshipProgress) ([]Milestone, []progress.MemoryFragment) {
	var awarded []Milestone
	var fragments []progress.MemoryFragment

	for _, m := range milestoneTable {
		if p.Milestones.Contains(m.ID) {
			continue
		}
		if p.IntimacyLevel < m.MinLevel || p.TotalInteractions < m.MinTotal || p.RelationshipDays < m.MinDays {
			continue
		}

		p.Milestones = append(p.Milestones, m.ID)
		// Reward points may immediately satisfy the next entry's level
		// threshold; the loop keeps walking so awards cascade.
		e.ledger.AddRewardPoints(p, m.RewardPoints)

		awarded = append(awarded, m)
		fragments = append(fragments, progress.MemoryFragment{
			UserID:         p.UserID,
			CompanionID:    p.CompanionID,
			Type:           progress.FragmentMilestone,
			Title:          m.Name,
			Content:        fmt.Sprintf("达成里程碑「%s」：%s", m.Name, m.Description),
			EmotionalValue: 5 + m.MinLevel,
			Tags:           progress.StringSet{"milestone", m.ID},
		})
	}

	return awarded, fragments
}
