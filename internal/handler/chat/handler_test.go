package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nuanyu/companion/backend/internal/cache"
	"github.com/nuanyu/companion/backend/internal/model/companion"
	chathandler "github.com/nuanyu/companion/backend/internal/handler/chat"
	"github.com/nuanyu/companion/backend/internal/service/ai"
	chatservice "github.com/nuanyu/companion/backend/internal/service/chat"
	"github.com/nuanyu/companion/backend/internal/service/moderation"
	"github.com/nuanyu/companion/backend/internal/service/notify"
	"github.com/nuanyu/companion/backend/internal/service/plan"
	"github.com/nuanyu/companion/backend/internal/service/progression"
	"github.com/nuanyu/companion/backend/internal/service/quota"
	"github.com/nuanyu/companion/backend/internal/storage"
)

func newTestRouter(t *testing.T, dailyLimit int) (http.Handler, *companion.Companion) {
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
	memCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(memCache.Close)

	ledger := progression.NewLedger()
	pipeline := chatservice.NewPipeline(
		companions,
		storage.NewMessageStore(db),
		storage.NewProgressStore(db),
		memCache,
		moderation.NewGate(),
		plan.NewStaticService(plan.Plan{DailyLimit: dailyLimit}),
		quota.NewLedger(storage.NewQuotaStore(db)),
		ai.NewReplyServiceWithChain(nil, time.Second),
		ledger,
		progression.NewEngine(ledger),
		notify.NewHub(),
	)

	comp := &companion.Companion{
		UserID:        "u1",
		Name:          "暖暖",
		CompanionType: companion.TypeGentle,
		Personality:   companion.PersonalityConfig{Type: companion.TypeGentle},
		IntimacyLevel: 1,
	}
	if err := companions.Create(context.Background(), comp); err != nil {
		t.Fatalf("failed to seed companion: %v", err)
	}

	r := chi.NewRouter()
	chathandler.New(pipeline).RegisterRoutes(r)
	return r, comp
}

func sendMessage(t *testing.T, router http.Handler, userID, companionID, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"companionId": companionID,
		"content":     content,
		"messageType": "text",
	})
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", bytes.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestSendMessageEndpoint(t *testing.T) {
	router, comp := newTestRouter(t, 20)

	rec := sendMessage(t, router, "u1", comp.ID, "你好")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	resp, ok := body["companionResponse"].(map[string]interface{})
	if !ok || resp["content"] == "" {
		t.Fatalf("missing companion response: %v", body)
	}
	if remaining, ok := body["quotaRemaining"].(float64); !ok || remaining != 19 {
		t.Fatalf("quotaRemaining should be 19: %v", body["quotaRemaining"])
	}
}

func TestSendMessageRequiresIdentity(t *testing.T) {
	router, comp := newTestRouter(t, 20)

	rec := sendMessage(t, router, "", comp.ID, "你好")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity header, got %d", rec.Code)
	}
}

func TestSendMessageInvalidBody(t *testing.T) {
	router, _ := newTestRouter(t, 20)

	req := httptest.NewRequest(http.MethodPost, "/chat/messages", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestSendMessageQuotaExceededStatus(t *testing.T) {
	router, comp := newTestRouter(t, 1)

	if rec := sendMessage(t, router, "u1", comp.ID, "第一条"); rec.Code != http.StatusOK {
		t.Fatalf("first send should pass, got %d", rec.Code)
	}

	rec := sendMessage(t, router, "u1", comp.ID, "第二条")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "quota_exceeded" {
		t.Fatalf("expected quota_exceeded code, got %v", body["code"])
	}
}

func TestSendMessageRejectedContentStatus(t *testing.T) {
	router, comp := newTestRouter(t, 5)

	rec := sendMessage(t, router, "u1", comp.ID, "带我去赌场玩")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "content_rejected" {
		t.Fatalf("expected content_rejected code, got %v", body["code"])
	}
}

func TestSendMessageUnknownCompanionStatus(t *testing.T) {
	router, _ := newTestRouter(t, 5)

	rec := sendMessage(t, router, "u1", "missing-id", "你好")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSendMessageEmptyContentStatus(t *testing.T) {
	router, comp := newTestRouter(t, 5)

	rec := sendMessage(t, router, "u1", comp.ID, "   ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank content, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "invalid_message" {
		t.Fatalf("expected invalid_message code, got %v", body["code"])
	}
}

func TestHistoryEndpoint(t *testing.T) {
	router, comp := newTestRouter(t, 5)

	sendMessage(t, router, "u1", comp.ID, "第一条")
	sendMessage(t, router, "u1", comp.ID, "第二条")

	req := httptest.NewRequest(http.MethodGet, "/chat/history/"+comp.ID+"?limit=3", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	messages, ok := body["messages"].([]interface{})
	if !ok {
		t.Fatalf("missing messages array: %v", body)
	}
	if len(messages) != 3 {
		t.Fatalf("limit=3 should return 3 rows of the 4 persisted, got %d", len(messages))
	}
}

func TestHistoryInvalidLimit(t *testing.T) {
	router, comp := newTestRouter(t, 5)

	req := httptest.NewRequest(http.MethodGet, "/chat/history/"+comp.ID+"?limit=zero", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", rec.Code)
	}
}
