package progression

import (
	"time"

	"github.com/nuanyu/companion/backend/internal/model/progress"
)

// PointsForQuality maps a composite quality score to the intimacy points
// gained for the exchange. A step function so consistently good exchanges
// outpace raw volume.
func PointsForQuality(quality int) int {
	switch {
	case quality >= 90:
		return 5
	case quality >= 80:
		return 4
	case quality >= 70:
		return 3
	case quality >= 60:
		return 2
	default:
		return 1
	}
}

// LevelForPoints derives the intimacy level from cumulative points. Pure
// and idempotent; the level is never stored independently of the points.
func LevelForPoints(points int) int {
	switch {
	case points >= 1000:
		return 6
	case points >= 500:
		return 5
	case points >= 200:
		return 4
	case points >= 100:
		return 3
	case points >= 50:
		return 2
	default:
		return 1
	}
}

// Ledger accumulates intimacy points and keeps the derived fields of a
// RelationshipProgress row coherent. It is the only component that mutates
// points or level.
type Ledger struct {
	now func() time.Time
}

// NewLedger 创建亲密度账本。
func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// WithClock overrides the clock, for tests spanning multiple days.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Apply folds one scored exchange into the progress row: points, derived
// level, interaction count, the bounded quality window with its rolling
// average, relationship days and growth trend. Returns true when the level
// increased, which triggers milestone evaluation in the same step.
func (l *Ledger) Apply(p *progress.RelationshipProgress, q progress.InteractionQuality) bool {
	now := l.now().UTC()
	if p.FirstInteractionAt.IsZero() {
		p.FirstInteractionAt = now
	}

	oldLevel := p.IntimacyLevel

	p.IntimacyPoints += PointsForQuality(q.Composite)
	p.IntimacyLevel = LevelForPoints(p.IntimacyPoints)
	p.TotalInteractions++

	p.RecentQualities = append(p.RecentQualities, q)
	if len(p.RecentQualities) > progress.RecentWindow {
		p.RecentQualities = p.RecentQualities[len(p.RecentQualities)-progress.RecentWindow:]
	}
	p.QualityScore = rollingAverage(p.RecentQualities)

	p.RelationshipDays = relationshipDays(p.FirstInteractionAt, now)
	p.GrowthTrend = Trend(p.RecentQualities)
	p.LastUpdated = now

	return p.IntimacyLevel > oldLevel
}

// AddRewardPoints applies a milestone reward and recomputes the level.
func (l *Ledger) AddRewardPoints(p *progress.RelationshipProgress, points int) {
	p.IntimacyPoints += points
	p.IntimacyLevel = LevelForPoints(p.IntimacyPoints)
}

// relationshipDays counts whole days since the durable first interaction,
// so the value never resets when the quality window rolls over.
func relationshipDays(first, now time.Time) int {
	if first.IsZero() || now.Before(first) {
		return 0
	}
	return int(now.Sub(first).Hours() / 24)
}

func rollingAverage(window progress.QualityWindow) float64 {
	if len(window) == 0 {
		return 0
	}
	sum := 0
	for _, q := range window {
		sum += q.Composite
	}
	return float64(sum) / float64(len(window))
}
