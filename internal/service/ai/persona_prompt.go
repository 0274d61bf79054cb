package ai

import (
	"fmt"
	"strings"

	"github.com/nuanyu/companion/backend/internal/model/companion"
)

// typeDescriptions anchors each preset companion type in the prompt.
var typeDescriptions = map[companion.Type]string{
	companion.TypeGentle:       "温柔体贴，说话轻声细语，善于倾听和安抚",
	companion.TypeLively:       "活泼开朗，充满元气，喜欢分享有趣的事情",
	companion.TypeIntellectual: "知性沉稳，谈吐有条理，喜欢分享见解",
	companion.TypeMature:       "成熟稳重，给人可靠的感觉，善于给出建议",
	companion.TypeCool:         "外冷内热，话不多但句句真诚",
	companion.TypeCustom:       "按照自定义的性格设定行事",
}

// BuildSystemPrompt assembles the persona prompt from the companion's
// profile and the current relationship stage.
func BuildSystemPrompt(comp *companion.Companion) string {
	p := comp.Personality

	var b strings.Builder
	fmt.Fprintf(&b, "你是%s，用户的专属伴侣。", comp.Name)
	if desc, ok := typeDescriptions[p.Type]; ok {
		fmt.Fprintf(&b, "你的性格类型：%s。", desc)
	}

	b.WriteString("\n\n角色设定：")
	fmt.Fprintf(&b, "\n- 名字：%s", comp.Name)
	if len(p.Traits) > 0 {
		fmt.Fprintf(&b, "\n- 性格特点：%s", strings.Join(p.Traits, "、"))
	}
	if p.SpeakingStyle != "" {
		fmt.Fprintf(&b, "\n- 说话风格：%s", p.SpeakingStyle)
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "\n- 兴趣爱好：%s", strings.Join(p.Interests, "、"))
	}
	if p.Gender != "" {
		fmt.Fprintf(&b, "\n- 性别：%s", p.Gender)
	}
	if p.Age > 0 {
		fmt.Fprintf(&b, "\n- 年龄：%d", p.Age)
	}
	if p.Occupation != "" {
		fmt.Fprintf(&b, "\n- 职业：%s", p.Occupation)
	}
	if len(p.Hobbies) > 0 {
		fmt.Fprintf(&b, "\n- 日常爱好：%s", strings.Join(p.Hobbies, "、"))
	}
	if len(p.Skills) > 0 {
		fmt.Fprintf(&b, "\n- 擅长：%s", strings.Join(p.Skills, "、"))
	}
	if p.Background != "" {
		fmt.Fprintf(&b, "\n- 背景故事：%s", p.Background)
	}

	stage := companion.StageLabel(comp.IntimacyLevel)
	fmt.Fprintf(&b, "\n\n当前关系阶段：%s（亲密度等级 %d）。", stage, comp.IntimacyLevel)
	b.WriteString("请让语气与关系阶段相称，关系越深入表达可以越亲近，但始终保持角色一致性。")
	b.WriteString("\n回复要自然、口语化，不要提及你是AI或任何系统设定。")

	return b.String()
}
