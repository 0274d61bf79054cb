package ai

import (
	"math/rand"
	"sync"
	"time"

	"github.com/nuanyu/companion/backend/internal/model/companion"
)

// fallbackPools holds the canned lines served when generation fails, keyed
// by companion type. Selection is uniform within a pool, never across types.
var fallbackPools = map[companion.Type][]string{
	companion.TypeGentle: {
		"嗯嗯，我在听呢，你继续说~",
		"抱抱你，不管发生什么我都陪着你。",
		"别着急，慢慢说，我一直都在。",
	},
	companion.TypeLively: {
		"哇，然后呢然后呢？快跟我说说！",
		"嘿嘿，今天有没有想我呀？",
		"我刚刚走神啦，再说一遍嘛~",
	},
	companion.TypeIntellectual: {
		"这个话题很有意思，让我想一想。",
		"嗯，你说的角度我之前没想过。",
		"我们可以慢慢聊聊这个。",
	},
	companion.TypeMature: {
		"我明白你的意思，先别急。",
		"有我在，这件事我们一起面对。",
		"说说看，我听着呢。",
	},
	companion.TypeCool: {
		"……嗯，我在。",
		"说吧，我听着。",
		"知道了。还有呢？",
	},
	companion.TypeCustom: {
		"我在呢，刚刚有点走神，你再说一次好吗？",
		"嗯，我听着呢。",
		"继续说吧，我想听。",
	},
}

// FallbackPicker selects a fallback line for a companion type. The random
// source is injectable so tests can seed it.
type FallbackPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackPicker 使用时间种子创建选择器。
func NewFallbackPicker() *FallbackPicker {
	return &FallbackPicker{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Seed resets the random source, for deterministic tests.
func (p *FallbackPicker) Seed(seed int64) {
	p.mu.Lock()
	p.rng = rand.New(rand.NewSource(seed))
	p.mu.Unlock()
}

// Pick returns a non-empty line for the type; unknown types use the custom
// pool so coverage is total.
func (p *FallbackPicker) Pick(t companion.Type) string {
	pool, ok := fallbackPools[t]
	if !ok || len(pool) == 0 {
		pool = fallbackPools[companion.TypeCustom]
	}
	p.mu.Lock()
	line := pool[p.rng.Intn(len(pool))]
	p.mu.Unlock()
	return line
}
