// Package routine derives an ordered skincare routine from a skin type and issue tags.
// The engine is a pure function of its rule table and inputs.
package routine

import "strings"

// Engine evaluates a rule table. Safe for concurrent use.
type Engine struct {
	base     map[string]string
	issues   []IssueRule
	fallback string
}

// NewEngine builds an engine from validated rules.
func NewEngine(r Rules) *Engine {
	e := &Engine{
		base:     make(map[string]string, len(r.Base)),
		issues:   make([]IssueRule, len(r.Issues)),
		fallback: r.Fallback,
	}
	for _, b := range r.Base {
		e.base[strings.ToLower(b.SkinType)] = b.Instruction
	}
	for i, is := range r.Issues {
		e.issues[i] = IssueRule{Keyword: strings.ToLower(is.Keyword), Instruction: is.Instruction}
	}
	return e
}

// Default returns an engine over the embedded rules.
func Default() *Engine {
	r, err := DefaultRules()
	if err != nil {
		panic(err) // embedded table is validated by tests
	}
	return NewEngine(r)
}

// Recommend returns the routine for skinType and issues. Unknown skin types get no base
// step. Every keyword hit is appended, duplicates included. The result is never empty.
func (e *Engine) Recommend(skinType string, issues []string) []string {
	out := make([]string, 0, 1+len(issues))
	if step, ok := e.base[strings.ToLower(skinType)]; ok {
		out = append(out, step)
	}

	matched := false
	for _, issue := range issues {
		tag := strings.ToLower(issue)
		for _, rule := range e.issues {
			if strings.Contains(tag, rule.Keyword) {
				out = append(out, rule.Instruction)
				matched = true
			}
		}
	}
	if !matched {
		out = append(out, e.fallback)
	}
	return out
}
