package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nuanyu/companion/backend/internal/analysis/emotion"
	"github.com/nuanyu/companion/backend/internal/analysis/quality"
	"github.com/nuanyu/companion/backend/internal/cache"
	chatmodel "github.com/nuanyu/companion/backend/internal/model/chat"
	"github.com/nuanyu/companion/backend/internal/model/companion"
	"github.com/nuanyu/companion/backend/internal/model/progress"
	"github.com/nuanyu/companion/backend/internal/service/ai"
	"github.com/nuanyu/companion/backend/internal/service/moderation"
	"github.com/nuanyu/companion/backend/internal/service/notify"
	"github.com/nuanyu/companion/backend/internal/service/plan"
	"github.com/nuanyu/companion/backend/internal/service/progression"
	"github.com/nuanyu/companion/backend/internal/service/quota"
	"github.com/nuanyu/companion/backend/internal/storage"
)

const (
	// maxMessageRunes bounds inbound content before the quota check runs.
	maxMessageRunes = 2000

	// replyPersistRetries bounds the persistence retry after the user
	// message is already durable.
	replyPersistRetries = 3

	// notableEmotionValue is the intensity from which an exchange earns a
	// memory fragment of its own.
	notableEmotionValue = 6
)

// SendResult is the composed outcome of one successful pipeline run.
type SendResult struct {
	Message           chatmodel.Message       `json:"message"`
	CompanionResponse chatmodel.Message       `json:"companionResponse"`
	IntimacyLevel     int                     `json:"intimacyLevel"`
	QuotaRemaining    *int                    `json:"quotaRemaining,omitempty"`
	NewMilestones     []progression.Milestone `json:"newMilestones,omitempty"`
}

// Pipeline sequences quota, moderation, reply acquisition, scoring, the
// intimacy ledger and milestone evaluation for one inbound message.
type Pipeline struct {
	companions *storage.CompanionStore
	messages   *storage.MessageStore
	progress   *storage.ProgressStore
	cache      cache.ProgressCache
	gate       *moderation.Gate
	plans      plan.Service
	quota      *quota.Ledger
	replies    *ai.ReplyService
	ledger     *progression.Ledger
	engine     *progression.Engine
	notifier   *notify.Hub
}

// NewPipeline 组装消息处理管线。
func NewPipeline(
	companions *storage.CompanionStore,
	messages *storage.MessageStore,
	progressStore *storage.ProgressStore,
	progressCache cache.ProgressCache,
	gate *moderation.Gate,
	plans plan.Service,
	quotaLedger *quota.Ledger,
	replies *ai.ReplyService,
	ledger *progression.Ledger,
	engine *progression.Engine,
	notifier *notify.Hub,
) *Pipeline {
	return &Pipeline{
		companions: companions,
		messages:   messages,
		progress:   progressStore,
		cache:      progressCache,
		gate:       gate,
		plans:      plans,
		quota:      quotaLedger,
		replies:    replies,
		ledger:     ledger,
		engine:     engine,
		notifier:   notifier,
	}
}

// SendMessage runs the full pipeline for one inbound message. Any failure
// before the user message is persisted aborts without durable side effects
// and releases the quota reservation. Once the user message is durable the
// pipeline always produces a companion reply, falling back when generation
// fails.
func (p *Pipeline) SendMessage(ctx context.Context, userID, companionID, content, messageType string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(content)) > maxMessageRunes {
		return nil, ErrMessageTooLong
	}

	comp, err := p.companions.GetForUser(ctx, companionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanionMissing
		}
		return nil, fmt.Errorf("failed to load companion: %w", err)
	}

	userPlan, err := p.plans.GetPlan(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	reservation, allowed, err := p.quota.CheckAndReserve(ctx, userID, userPlan)
	if err != nil {
		return nil, fmt.Errorf("quota reservation failed: %w", err)
	}
	if !allowed {
		return nil, ErrQuotaExceeded
	}

	if !p.gate.Check(content) {
		p.quota.Release(ctx, reservation)
		return nil, ErrContentRejected
	}

	userMsg := chatmodel.Message{
		UserID:      userID,
		CompanionID: companionID,
		SenderType:  chatmodel.SenderUser,
		Content:     content,
		MessageType: messageType,
	}
	if err := p.messages.Append(ctx, &userMsg); err != nil {
		p.quota.Release(ctx, reservation)
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	// The user message is durable now. Detach from the caller's context so
	// a disconnect can no longer orphan it; the remaining steps run to
	// completion regardless.
	ctx = context.WithoutCancel(ctx)

	history, err := p.messages.History(ctx, userID, companionID, 2*10)
	if err != nil {
		log.Printf("[pipeline] history load failed for user=%s: %v", userID, err)
		history = []chatmodel.Message{userMsg}
	}

	replyText := p.replies.GetReply(ctx, comp, history, content)

	replyMsg := chatmodel.Message{
		UserID:      userID,
		CompanionID: companionID,
		SenderType:  chatmodel.SenderCompanion,
		Content:     replyText,
		MessageType: "text",
	}
	if err := p.persistReply(ctx, &replyMsg); err != nil {
		// The user message must never stay unanswered; the degraded result
		// still carries the reply text even though it is not durable.
		log.Printf("[pipeline] reply persistence exhausted retries for user=%s: %v", userID, err)
	}

	p.quota.Commit(ctx, reservation)

	result := &SendResult{Message: userMsg, CompanionResponse: replyMsg}
	if !reservation.Unlimited {
		remaining := reservation.Remaining
		result.QuotaRemaining = &remaining
	}

	p.applyProgression(ctx, comp, userMsg, replyMsg, result)

	return result, nil
}

// applyProgression scores the exchange and updates the intimacy ledger,
// milestones and progress row. Failures here degrade the result but never
// fail the send: the conversation itself already happened.
func (p *Pipeline) applyProgression(ctx context.Context, comp *companion.Companion, userMsg, replyMsg chatmodel.Message, result *SendResult) {
	prog, err := p.loadProgress(ctx, comp.UserID, comp.ID)
	if err != nil {
		log.Printf("[pipeline] progress load failed for user=%s companion=%s: %v", comp.UserID, comp.ID, err)
		result.IntimacyLevel = comp.IntimacyLevel
		return
	}

	history, _ := p.messages.History(ctx, comp.UserID, comp.ID, 2*10)
	scored := quality.Score(userMsg.Content, replyMsg.Content, history)

	q := progress.InteractionQuality{
		MessageID:   userMsg.ID,
		Length:      scored.Length,
		Emotion:     scored.Emotion,
		Engagement:  scored.Engagement,
		Creativity:  scored.Creativity,
		Consistency: scored.Consistency,
		Composite:   scored.Composite,
		CreatedAt:   time.Now().UTC(),
	}

	p.ledger.Apply(prog, q)

	awarded, fragments := p.engine.Evaluate(prog)
	for _, f := range fragments {
		fragment := f
		if err := p.progress.AppendFragment(ctx, &fragment); err != nil {
			log.Printf("[pipeline] fragment write failed: %v", err)
		}
	}
	for _, m := range awarded {
		log.Printf("[pipeline] milestone awarded user=%s companion=%s id=%s", comp.UserID, comp.ID, m.ID)
		if p.notifier != nil {
			p.notifier.Publish(notify.MilestoneEvent{
				UserID:      comp.UserID,
				CompanionID: comp.ID,
				MilestoneID: m.ID,
				Name:        m.Name,
				Description: m.Description,
				AwardedAt:   time.Now().UTC(),
			})
		}
	}

	if decision := emotion.Analyze(userMsg.Content, replyMsg.Content); decision.Intensity >= notableEmotionValue {
		fragment := progress.MemoryFragment{
			UserID:         comp.UserID,
			CompanionID:    comp.ID,
			Type:           progress.FragmentExchange,
			Title:          "一次难忘的对话",
			Content:        userMsg.Content,
			EmotionalValue: decision.Intensity,
			Tags:           progress.StringSet{"exchange", string(decision.Emotion)},
		}
		if err := p.progress.AppendFragment(ctx, &fragment); err != nil {
			log.Printf("[pipeline] exchange fragment write failed: %v", err)
		}
	}

	if err := p.progress.Upsert(ctx, prog); err != nil {
		log.Printf("[pipeline] progress save failed for user=%s companion=%s: %v", comp.UserID, comp.ID, err)
		p.cache.Invalidate(ctx, comp.UserID, comp.ID)
	} else {
		p.cache.Set(ctx, prog)
	}

	if err := p.companions.UpdateIntimacy(ctx, comp.ID, prog.IntimacyLevel, prog.IntimacyPoints); err != nil {
		log.Printf("[pipeline] companion intimacy sync failed: %v", err)
	}

	result.IntimacyLevel = prog.IntimacyLevel
	result.NewMilestones = awarded
}

// persistReply retries the reply write a bounded number of times.
func (p *Pipeline) persistReply(ctx context.Context, msg *chatmodel.Message) error {
	var err error
	for attempt := 1; attempt <= replyPersistRetries; attempt++ {
		if err = p.messages.Append(ctx, msg); err == nil {
			return nil
		}
		log.Printf("[pipeline] reply persistence attempt %d failed: %v", attempt, err)
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return err
}

// loadProgress reads through the cache, falling back to the store and
// creating the row's in-memory shape on the first interaction.
func (p *Pipeline) loadProgress(ctx context.Context, userID, companionID string) (*progress.RelationshipProgress, error) {
	if cached, ok := p.cache.Get(ctx, userID, companionID); ok {
		return cached, nil
	}

	prog, err := p.progress.Get(ctx, userID, companionID)
	if err == nil {
		p.cache.Set(ctx, prog)
		return prog, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &progress.RelationshipProgress{
			UserID:        userID,
			CompanionID:   companionID,
			IntimacyLevel: 1,
			GrowthTrend:   progress.TrendStable,
		}, nil
	}
	return nil, err
}

// Progress returns the relationship progress for a pair, read through the
// cache.
func (p *Pipeline) Progress(ctx context.Context, userID, companionID string) (*progress.RelationshipProgress, error) {
	return p.loadProgress(ctx, userID, companionID)
}

// Memories returns the memory fragment log for a pair, newest first.
func (p *Pipeline) Memories(ctx context.Context, userID, companionID string, limit int) ([]progress.MemoryFragment, error) {
	return p.progress.Fragments(ctx, userID, companionID, limit)
}

// History returns the conversation transcript in creation order.
func (p *Pipeline) History(ctx context.Context, userID, companionID string, limit int) ([]chatmodel.Message, error) {
	return p.messages.History(ctx, userID, companionID, limit)
}
