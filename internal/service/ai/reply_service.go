package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/nuanyu/companion/backend/internal/config"
	"github.com/nuanyu/companion/backend/internal/model/chat"
	"github.com/nuanyu/companion/backend/internal/model/companion"
)

// historyLimit bounds how many recent turns are replayed to the model.
const historyLimit = 10

// ChainRunner is the compiled prompt→model chain. Satisfied by
// compose.Runnable; tests substitute a fake.
type ChainRunner interface {
	Invoke(ctx context.Context, input map[string]any, opts ...compose.Option) (*schema.Message, error)
}

// ReplyService produces the companion's reply for one exchange. GetReply
// never fails: any backend error within the bounded timeout degrades to a
// deterministic fallback line keyed by companion type.
type ReplyService struct {
	chain    ChainRunner
	fallback *FallbackPicker
	timeout  time.Duration
}

// NewReplyService creates the eino chain from configuration.
func NewReplyService(ctx context.Context, cfg config.AIConfig) (*ReplyService, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newReplyServiceWithModel(ctx, chatModel, cfg.ReplyTimeout())
}

func newReplyServiceWithModel(ctx context.Context, chatModel model.ChatModel, timeout time.Duration) (*ReplyService, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ReplyService{
		chain:    runnable,
		fallback: NewFallbackPicker(),
		timeout:  timeout,
	}, nil
}

// NewReplyServiceWithChain wires a prebuilt chain, used by tests and by the
// degraded boot path when no model credentials are configured.
func NewReplyServiceWithChain(chain ChainRunner, timeout time.Duration) *ReplyService {
	return &ReplyService{
		chain:    chain,
		fallback: NewFallbackPicker(),
		timeout:  timeout,
	}
}

// Fallback exposes the picker so callers can seed it in tests.
func (s *ReplyService) Fallback() *FallbackPicker {
	return s.fallback
}

// GetReply returns the companion's reply text within the bounded timeout.
// On any generation failure it falls back per companion type instead of
// surfacing an error; retries against the backend belong to the caller of
// the generative API, never here.
func (s *ReplyService) GetReply(ctx context.Context, comp *companion.Companion, history []chat.Message, userMessage string) string {
	if s == nil || s.chain == nil {
		return s.fallbackLine(comp)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := map[string]any{
		"system":  BuildSystemPrompt(comp),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(genCtx, input)
	if err != nil {
		log.Printf("[ai] generation failed for companion=%s: %v", comp.ID, err)
		return s.fallbackLine(comp)
	}
	if response == nil || response.Content == "" {
		log.Printf("[ai] empty generation for companion=%s", comp.ID)
		return s.fallbackLine(comp)
	}

	log.Printf("[ai] generated reply for companion=%s, length=%d", comp.ID, len(response.Content))
	return response.Content
}

func (s *ReplyService) fallbackLine(comp *companion.Companion) string {
	if s == nil || s.fallback == nil {
		return NewFallbackPicker().Pick(comp.Personality.Type)
	}
	return s.fallback.Pick(comp.Personality.Type)
}

// buildHistoryMessages trims the transcript to the most recent turns and
// converts them into schema messages.
func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.SenderType {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.SenderCompanion:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
