package quality

import (
	"math"
	"strings"
	"unicode"

	"github.com/nuanyu/companion/backend/internal/analysis/emotion"
	"github.com/nuanyu/companion/backend/internal/model/chat"
)

// Factor weights. 合计为1。
const (
	weightLength      = 0.15
	weightEmotion     = 0.25
	weightEngagement  = 0.25
	weightCreativity  = 0.20
	weightConsistency = 0.15
)

// consistencyBaseline is the stable value used for the history-consistency
// factor until deeper transcript analysis lands.
const consistencyBaseline = 70

// Result holds the composite quality score and its five factors, each
// normalized to [0,100].
type Result struct {
	Composite   int `json:"composite"`
	Length      int `json:"length"`
	Emotion     int `json:"emotion"`
	Engagement  int `json:"engagement"`
	Creativity  int `json:"creativity"`
	Consistency int `json:"consistency"`
}

// Score rates one (user message, reply) exchange. It is a heuristic
// surrogate that modulates intimacy gain, not a semantic judgment; purely a
// function of its inputs, no side effects.
func Score(userMessage, replyText string, history []chat.Message) Result {
	r := Result{
		Length:      lengthScore(userMessage),
		Emotion:     emotionScore(userMessage, replyText),
		Engagement:  engagementScore(userMessage, replyText),
		Creativity:  creativityScore(replyText),
		Consistency: consistencyScore(history),
	}

	weighted := float64(r.Length)*weightLength +
		float64(r.Emotion)*weightEmotion +
		float64(r.Engagement)*weightEngagement +
		float64(r.Creativity)*weightCreativity +
		float64(r.Consistency)*weightConsistency

	r.Composite = clamp(int(math.Round(weighted)))
	return r
}

// lengthScore rewards messages long enough to carry substance without
// punishing short natural turns too hard.
func lengthScore(message string) int {
	runes := len([]rune(strings.TrimSpace(message)))
	switch {
	case runes == 0:
		return 0
	case runes < 5:
		return 40
	case runes < 15:
		return 70
	case runes < 60:
		return 100
	case runes < 200:
		return 85
	default:
		return 60 // 过长的消息通常是粘贴内容
	}
}

// emotionScore measures emotional keyword density across both sides.
func emotionScore(userMessage, replyText string) int {
	hits := emotion.KeywordHits(userMessage) + emotion.KeywordHits(replyText)
	score := 40 + hits*15
	return clamp(score)
}

// engagementScore counts question marks, exclamation marks and emoji.
func engagementScore(userMessage, replyText string) int {
	combined := userMessage + replyText

	questions := strings.Count(combined, "?") + strings.Count(combined, "？")
	exclaims := strings.Count(combined, "!") + strings.Count(combined, "！")
	emojis := emojiCount(combined)

	score := 30 + questions*15 + exclaims*10 + emojis*12
	return clamp(score)
}

var figurativeMarkers = []string{"像", "仿佛", "好比", "宛如", "如同", "as if", "like a"}

var expressiveMarkers = []string{"我觉得", "我想", "我希望", "我记得", "我喜欢", "i feel", "i think", "i wish"}

var richVocabMarkers = []string{"温柔", "璀璨", "静谧", "辽阔", "斑斓", "悸动", "serendipity", "mellow"}

// creativityScore looks for figurative language, rich vocabulary and
// first-person expressive phrases in the reply.
func creativityScore(replyText string) int {
	lowered := strings.ToLower(replyText)
	score := 40

	for _, marker := range figurativeMarkers {
		if strings.Contains(lowered, marker) {
			score += 20
			break
		}
	}
	for _, marker := range expressiveMarkers {
		if strings.Contains(lowered, marker) {
			score += 20
			break
		}
	}
	for _, marker := range richVocabMarkers {
		if strings.Contains(lowered, marker) {
			score += 20
			break
		}
	}

	return clamp(score)
}

// consistencyScore is a stable baseline for now; the history parameter
// stays so the factor can deepen without changing the contract.
func consistencyScore(_ []chat.Message) int {
	return consistencyBaseline
}

func emojiCount(text string) int {
	count := 0
	for _, r := range text {
		if unicode.Is(unicode.So, r) || (r >= 0x1F300 && r <= 0x1FAFF) {
			count++
		}
	}
	return count
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
