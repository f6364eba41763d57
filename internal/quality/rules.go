// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/pdiddy/proposal-engine/internal/markup"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// ruleEnv is the environment custom rule expressions are evaluated
// against. Unset limits are zero.
type ruleEnv struct {
	Section    string `expr:"section"`
	Required   bool   `expr:"required"`
	Format     string `expr:"format"`
	Text       string `expr:"text"`
	WordCount  int    `expr:"word_count"`
	CharCount  int    `expr:"char_count"`
	WordLimit  int    `expr:"word_limit"`
	CharLimit  int    `expr:"char_limit"`
	PageLimit  int    `expr:"page_limit"`
	Citations  int    `expr:"citations"`
	Paragraphs int    `expr:"paragraphs"`
	Locked     int    `expr:"locked"`
}

func newRuleEnv(d types.SectionDraft, spec types.SectionSpec) ruleEnv {
	deref := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}
	return ruleEnv{
		Section:    spec.Name,
		Required:   spec.Required,
		Format:     string(spec.Format),
		Text:       d.Text,
		WordCount:  markup.WordCount(d.Text),
		CharCount:  markup.CharCount(d.Text),
		WordLimit:  deref(spec.WordLimit),
		CharLimit:  deref(spec.CharLimit),
		PageLimit:  deref(spec.PageLimit),
		Citations:  len(d.Citations),
		Paragraphs: len(markup.Paragraphs(d.Text)),
		Locked:     len(d.LockedParagraphs),
	}
}

type compiledRule struct {
	types.QualityRule
	program *exprvm.Program
}

func compileRule(r types.QualityRule) (compiledRule, error) {
	if r.Expr == "" {
		return compiledRule{}, fmt.Errorf("quality rule %q: expression must not be empty", r.Name)
	}
	program, err := exprlang.Compile(r.Expr, exprlang.Env(ruleEnv{}), exprlang.AsBool())
	if err != nil {
		return compiledRule{}, fmt.Errorf("compiling quality rule %q: %w", r.Name, err)
	}
	return compiledRule{QualityRule: r, program: program}, nil
}

// eval reports whether the draft violates the rule.
func (r compiledRule) eval(env ruleEnv) (bool, error) {
	out, err := exprlang.Run(r.program, env)
	if err != nil {
		return false, err
	}
	violated, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("rule returned %T, want bool", out)
	}
	return violated, nil
}

func (r compiledRule) message() string {
	if r.Message != "" {
		return r.Message
	}
	return "rule " + r.Name + " failed"
}
