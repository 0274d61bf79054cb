package moderation

import "strings"

// Gate classifies message text against a static denylist. Rejection is a
// normal negative result, not an error; the pipeline turns it into a
// user-visible "content not allowed" outcome.
type Gate struct {
	terms []string
}

// defaultDenylist covers the politics/violence/gambling/drugs/explicit
// categories of the current build. 命中任意词条即拒绝。
var defaultDenylist = []string{
	// politics
	"政治", "政府", "国家领导", "politics",
	// violence
	"暴力", "杀人", "自杀", "自残", "violence", "kill",
	// gambling
	"赌博", "博彩", "赌场", "gambling", "casino",
	// drugs
	"毒品", "吸毒", "大麻", "drugs", "cocaine",
	// explicit
	"色情", "裸聊", "porn", "explicit",
}

// NewGate returns a gate with the built-in denylist.
func NewGate() *Gate {
	return NewGateWithTerms(defaultDenylist)
}

// NewGateWithTerms returns a gate with a caller-supplied term list.
func NewGateWithTerms(terms []string) *Gate {
	lowered := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(strings.ToLower(term))
		if term != "" {
			lowered = append(lowered, term)
		}
	}
	return &Gate{terms: lowered}
}

// Check reports whether the text is acceptable. Pure and stateless.
func (g *Gate) Check(text string) bool {
	normalized := strings.ToLower(text)
	for _, term := range g.terms {
		if strings.Contains(normalized, term) {
			return false
		}
	}
	return true
}
