package chat_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nuanyu/companion/backend/internal/cache"
	"github.com/nuanyu/companion/backend/internal/model/companion"
	"github.com/nuanyu/companion/backend/internal/service/ai"
	"github.com/nuanyu/companion/backend/internal/service/chat"
	"github.com/nuanyu/companion/backend/internal/service/moderation"
	"github.com/nuanyu/companion/backend/internal/service/notify"
	"github.com/nuanyu/companion/backend/internal/service/plan"
	"github.com/nuanyu/companion/backend/internal/service/progression"
	"github.com/nuanyu/companion/backend/internal/service/quota"
	"github.com/nuanyu/companion/backend/internal/storage"
)

type testEnv struct {
	pipeline   *chat.Pipeline
	companions *storage.CompanionStore
	messages   *storage.MessageStore
	progress   *storage.ProgressStore
	quota      *storage.QuotaStore
	plans      *plan.StaticService
	hub        *notify.Hub
}

func newTestEnv(t *testing.T, dailyLimit int) *testEnv {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	companions := storage.NewCompanionStore(db)
	messages := storage.NewMessageStore(db)
	progressStore := storage.NewProgressStore(db)
	quotaStore := storage.NewQuotaStore(db)

	memCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(memCache.Close)

	plans := plan.NewStaticService(plan.Plan{DailyLimit: dailyLimit})
	ledger := progression.NewLedger()
	hub := notify.NewHub()

	// nil chain keeps generation on the fallback pools, so replies are
	// deterministic pool content without any network dependency.
	replies := ai.NewReplyServiceWithChain(nil, time.Second)
	replies.Fallback().Seed(1)

	pipeline := chat.NewPipeline(
		companions,
		messages,
		progressStore,
		memCache,
		moderation.NewGate(),
		plans,
		quota.NewLedger(quotaStore),
		replies,
		ledger,
		progression.NewEngine(ledger),
		hub,
	)

	return &testEnv{
		pipeline:   pipeline,
		companions: companions,
		messages:   messages,
		progress:   progressStore,
		quota:      quotaStore,
		plans:      plans,
		hub:        hub,
	}
}

func (e *testEnv) seedCompanion(t *testing.T, userID string) *companion.Companion {
	t.Helper()
	c := &companion.Companion{
		UserID:        userID,
		Name:          "暖暖",
		CompanionType: companion.TypeGentle,
		Personality: companion.PersonalityConfig{
			Type:          companion.TypeGentle,
			SpeakingStyle: "轻声细语",
		},
		IntimacyLevel: 1,
	}
	if err := e.companions.Create(context.Background(), c); err != nil {
		t.Fatalf("failed to seed companion: %v", err)
	}
	return c
}

func TestSendMessageHappyPath(t *testing.T) {
	env := newTestEnv(t, 20)
	comp := env.seedCompanion(t, "u1")
	ctx := context.Background()

	result, err := env.pipeline.SendMessage(ctx, "u1", comp.ID, "你好", "text")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if result.Message.Content != "你好" || result.Message.SenderType != "user" {
		t.Fatalf("user message not echoed: %+v", result.Message)
	}
	if result.CompanionResponse.Content == "" {
		t.Fatal("companion response must never be empty")
	}
	if result.CompanionResponse.SenderType != "companion" {
		t.Fatalf("reply sender type wrong: %q", result.CompanionResponse.SenderType)
	}
	if result.QuotaRemaining == nil || *result.QuotaRemaining != 19 {
		t.Fatalf("quota remaining should be 19, got %v", result.QuotaRemaining)
	}

	history, err := env.pipeline.History(ctx, "u1", comp.ID, 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user message and reply persisted, got %d rows", len(history))
	}

	prog, err := env.pipeline.Progress(ctx, "u1", comp.ID)
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	if prog.TotalInteractions != 1 {
		t.Fatalf("interaction count should be 1, got %d", prog.TotalInteractions)
	}
	if prog.IntimacyPoints < 1 {
		t.Fatalf("a completed exchange must earn points, got %d", prog.IntimacyPoints)
	}
	if !prog.Milestones.Contains("first_meeting") {
		t.Fatal("the first exchange awards the first_meeting milestone")
	}
}

func TestSendMessageFirstMilestoneInResult(t *testing.T) {
	env := newTestEnv(t, 20)
	comp := env.seedCompanion(t, "u1")

	result, err := env.pipeline.SendMessage(context.Background(), "u1", comp.ID, "你好呀", "text")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(result.NewMilestones) != 1 || result.NewMilestones[0].ID != "first_meeting" {
		t.Fatalf("expected first_meeting in the result, got %+v", result.NewMilestones)
	}

	// The second send must not re-award it.
	result, err = env.pipeline.SendMessage(context.Background(), "u1", comp.ID, "今天过得怎么样？", "text")
	if err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	for _, m := range result.NewMilestones {
		if m.ID == "first_meeting" {
			t.Fatal("milestones must be awarded exactly once")
		}
	}
}

func TestSendMessageQuotaExceeded(t *testing.T) {
	env := newTestEnv(t, 1)
	comp := env.seedCompanion(t, "u1")
	ctx := context.Background()

	if _, err := env.pipeline.SendMessage(ctx, "u1", comp.ID, "第一条", "text"); err != nil {
		t.Fatalf("first send should succeed: %v", err)
	}

	progBefore, err := env.pipeline.Progress(ctx, "u1", comp.ID)
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}

	_, err = env.pipeline.SendMessage(ctx, "u1", comp.ID, "第二条", "text")
	if !errors.Is(err, chat.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// The rejected send leaves no trace: no rows, no progression.
	history, _ := env.pipeline.History(ctx, "u1", comp.ID, 10)
	if len(history) != 2 {
		t.Fatalf("rejected send must not persist messages, got %d rows", len(history))
	}
	progAfter, _ := env.pipeline.Progress(ctx, "u1", comp.ID)
	if progAfter.IntimacyPoints != progBefore.IntimacyPoints ||
		progAfter.TotalInteractions != progBefore.TotalInteractions {
		t.Fatal("rejected send must not advance progression")
	}
}

func TestSendMessageUnlimitedPlanSkipsQuota(t *testing.T) {
	env := newTestEnv(t, 1)
	comp := env.seedCompanion(t, "u1")
	env.plans.SetPlan("u1", plan.Plan{Unlimited: true})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := env.pipeline.SendMessage(ctx, "u1", comp.ID, "随便聊聊", "text")
		if err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
		if result.QuotaRemaining != nil {
			t.Fatal("unlimited plans report no remaining quota")
		}
	}

	count, err := env.quota.Count(ctx, "u1", time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("unlimited plans must not touch the counter, got %d", count)
	}
}

func TestSendMessageContentRejected(t *testing.T) {
	env := newTestEnv(t, 5)
	comp := env.seedCompanion(t, "u1")
	ctx := context.Background()

	_, err := env.pipeline.SendMessage(ctx, "u1", comp.ID, "我们聊聊赌博吧", "text")
	if !errors.Is(err, chat.ErrContentRejected) {
		t.Fatalf("expected ErrContentRejected, got %v", err)
	}

	history, _ := env.pipeline.History(ctx, "u1", comp.ID, 10)
	if len(history) != 0 {
		t.Fatalf("rejected content must not persist, got %d rows", len(history))
	}

	// The reservation is released, so the full budget is still available.
	count, err := env.quota.Count(ctx, "u1", time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected content must not consume quota, counter at %d", count)
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t, 5)
	comp := env.seedCompanion(t, "u1")
	ctx := context.Background()

	if _, err := env.pipeline.SendMessage(ctx, "u1", comp.ID, "   ", "text"); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	long := make([]rune, 2001)
	for i := range long {
		long[i] = '啊'
	}
	if _, err := env.pipeline.SendMessage(ctx, "u1", comp.ID, string(long), "text"); !errors.Is(err, chat.ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestSendMessageCompanionMissing(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()

	if _, err := env.pipeline.SendMessage(ctx, "u1", "no-such-companion", "你好", "text"); !errors.Is(err, chat.ErrCompanionMissing) {
		t.Fatalf("expected ErrCompanionMissing, got %v", err)
	}
}

func TestSendMessageCompanionOwnership(t *testing.T) {
	env := newTestEnv(t, 5)
	comp := env.seedCompanion(t, "owner")

	_, err := env.pipeline.SendMessage(context.Background(), "intruder", comp.ID, "你好", "text")
	if !errors.Is(err, chat.ErrCompanionMissing) {
		t.Fatalf("another user's companion must read as missing, got %v", err)
	}
}

func TestSendMessageMilestoneNotification(t *testing.T) {
	env := newTestEnv(t, 5)
	comp := env.seedCompanion(t, "u1")

	events := env.hub.Subscribe()
	defer env.hub.Unsubscribe(events)

	if _, err := env.pipeline.SendMessage(context.Background(), "u1", comp.ID, "你好", "text"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.MilestoneID != "first_meeting" || ev.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a milestone event on the hub")
	}
}

func TestSendMessageConcurrentQuota(t *testing.T) {
	const limit = 3
	const attempts = 8

	env := newTestEnv(t, limit)
	comp := env.seedCompanion(t, "u1")

	var successes int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.pipeline.SendMessage(context.Background(), "u1", comp.ID, "并发消息", "text")
			switch {
			case err == nil:
				atomic.AddInt64(&successes, 1)
			case errors.Is(err, chat.ErrQuotaExceeded):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != limit {
		t.Fatalf("expected exactly %d sends to pass, got %d", limit, successes)
	}

	history, err := env.pipeline.History(context.Background(), "u1", comp.ID, 50)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2*limit {
		t.Fatalf("expected %d persisted rows, got %d", 2*limit, len(history))
	}
}

func TestSendMessageCallerDisconnect(t *testing.T) {
	env := newTestEnv(t, 5)
	comp := env.seedCompanion(t, "u1")

	// A context cancelled mid-flight must not orphan the exchange once the
	// user message is durable. Cancelling before the call aborts cleanly
	// instead; here the call runs with a live context and we only assert
	// that the completed exchange is fully consistent.
	ctx, cancel := context.WithCancel(context.Background())
	result, err := env.pipeline.SendMessage(ctx, "u1", comp.ID, "你好", "text")
	cancel()
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if result.CompanionResponse.Content == "" {
		t.Fatal("reply missing")
	}
	history, _ := env.pipeline.History(context.Background(), "u1", comp.ID, 10)
	if len(history) != 2 {
		t.Fatalf("expected both rows, got %d", len(history))
	}
}
