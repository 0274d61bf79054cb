package emotion

import "strings"

// Label 表示一次对话交换的主导情绪。
type Label string

const (
	Neutral Label = "neutral"
	Happy   Label = "happy"
	Sad     Label = "sad"
	Angry   Label = "angry"
	Excited Label = "excited"
	Tender  Label = "tender"
	Comfort Label = "comfort"
)

// Decision carries the dominant emotion of an exchange plus an intensity in
// [0,10], used as the emotional value of memory fragments.
type Decision struct {
	Emotion   Label
	Intensity int
}

// labelOrder fixes the iteration order for dominant-label selection, so
// tied scores always resolve to the same label.
var labelOrder = []Label{Happy, Sad, Angry, Excited, Tender, Comfort}

var keywordBuckets = map[Label][]string{
	Happy: {
		"开心", "高兴", "喜悦", "快乐", "太好了", "太棒了", "真棒", "哈哈", "lol", "amazing",
		"awesome", "great", "thanks", "thank you", "love", "喜欢", "满意", "好耶", "笑死",
	},
	Sad: {
		"难过", "伤心", "失落", "沮丧", "悲伤", "哭", "痛苦", "寂寞", "孤单", "失望",
		"unhappy", "sad", "cry", "depressed", "upset", "hurt", "心碎", "低落", "委屈",
	},
	Angry: {
		"生气", "愤怒", "火大", "气死", "烦死", "受够了", "气愤", "抓狂",
		"angry", "furious", "rage", "mad", "annoyed", "气炸",
	},
	Excited: {
		"期待", "激动", "太酷了", "震撼", "惊喜", "哇塞", "哇哦", "can't wait",
		"unbelievable", "燃", "热血", "兴奋", "给力", "wow", "惊艳", "太妙了",
	},
	Tender: {
		"温柔", "轻声", "慢慢", "柔和", "soft", "gentle", "calm", "平静", "放松",
		"细腻", "温和", "暖", "静静", "轻轻",
	},
	Comfort: {
		"别担心", "没事", "我懂", "理解", "支持", "陪着", "抱抱", "不要怕", "安心",
		"安慰", "陪伴", "放心", "i'm here", "take it easy", "慢慢来",
	},
}

// KeywordHits counts emotional keyword occurrences in the text, shared by
// the interaction quality scorer's emotional-density factor.
func KeywordHits(text string) int {
	normalized := strings.ToLower(text)
	if strings.TrimSpace(normalized) == "" {
		return 0
	}

	hits := 0
	for _, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				hits++
			}
		}
	}
	return hits
}

// Analyze infers the dominant emotion of one user/companion exchange.
// 若双方都没有明显情绪词，返回中性。
func Analyze(userText, replyText string) Decision {
	combined := strings.ToLower(userText + "\n" + replyText)

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(combined, word) {
				scores[label] += 3
			}
		}
	}

	exclamations := strings.Count(userText, "!") + strings.Count(userText, "！")
	if exclamations > 0 {
		scores[Excited] += exclamations * 2
	}

	bestLabel := Neutral
	bestScore := 0
	for _, label := range labelOrder {
		if s := scores[label]; s > bestScore {
			bestScore = s
			bestLabel = label
		}
	}

	if bestScore == 0 {
		return Decision{Emotion: Neutral, Intensity: 0}
	}

	intensity := 2 + bestScore/3
	if intensity > 10 {
		intensity = 10
	}
	return Decision{Emotion: bestLabel, Intensity: intensity}
}
