package ai

import (
	"strings"
	"testing"

	"github.com/nuanyu/companion/backend/internal/model/chat"
	"github.com/nuanyu/companion/backend/internal/model/companion"
)

func TestBuildSystemPromptIncludesProfile(t *testing.T) {
	comp := &companion.Companion{
		ID:            "c1",
		Name:          "暖暖",
		CompanionType: companion.TypeGentle,
		Personality: companion.PersonalityConfig{
			Type:          companion.TypeGentle,
			Traits:        []string{"体贴", "耐心"},
			SpeakingStyle: "轻声细语",
			Occupation:    "插画师",
		},
		IntimacyLevel: 3,
	}

	prompt := BuildSystemPrompt(comp)

	for _, want := range []string{"暖暖", "体贴", "轻声细语", "插画师", companion.StageLabel(3)} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildSystemPromptStageFollowsLevel(t *testing.T) {
	comp := &companion.Companion{Name: "暖暖", Personality: companion.PersonalityConfig{Type: companion.TypeGentle}}

	comp.IntimacyLevel = 1
	early := BuildSystemPrompt(comp)
	comp.IntimacyLevel = 6
	late := BuildSystemPrompt(comp)

	if !strings.Contains(early, companion.StageLabel(1)) {
		t.Fatal("level 1 prompt should carry the first stage label")
	}
	if !strings.Contains(late, companion.StageLabel(6)) {
		t.Fatal("level 6 prompt should carry the deepest stage label")
	}
	if early == late {
		t.Fatal("prompts for different stages should differ")
	}
}

func TestBuildHistoryMessagesTrims(t *testing.T) {
	var messages []chat.Message
	for i := 0; i < 30; i++ {
		sender := chat.SenderUser
		if i%2 == 1 {
			sender = chat.SenderCompanion
		}
		messages = append(messages, chat.Message{SenderType: sender, Content: "msg"})
	}

	history := buildHistoryMessages(messages)
	if len(history) != historyLimit {
		t.Fatalf("expected history trimmed to %d, got %d", historyLimit, len(history))
	}
}

func TestBuildHistoryMessagesEmpty(t *testing.T) {
	if got := buildHistoryMessages(nil); got != nil {
		t.Fatalf("expected nil history, got %d entries", len(got))
	}
}
