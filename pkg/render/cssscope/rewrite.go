// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cssscope

import (
	"fmt"
	"regexp"
	"strings"
)

// leading compounds that address the page root, mapped onto the scope root
var rootKeywords = []string{":root", "html", "body"}

// dynamic and element-generating pseudos that a static matcher cannot evaluate
var dynamicPseudoRe = regexp.MustCompile(`::?(?i:hover|focus-visible|focus-within|focus|active|visited|target|before|after|placeholder|selection|marker|first-line|first-letter|backdrop|-webkit-[a-z-]+|-moz-[a-z-]+)(?:\([^)]*\))?`)

func ScopeSelectorFor(scopeId string) string {
	return fmt.Sprintf(`[data-snip-scope="%s"]`, scopeId)
}

// ScopeSelector prefixes one selector so it can only match inside the scope root.
func ScopeSelector(sel string, scope string) string {
	sel = strings.TrimSpace(sel)
	rest, hitRoot := stripRootCompounds(sel)
	if hitRoot {
		if rest == "" {
			return scope
		}
		return scope + " " + rest
	}
	return scope + " " + sel
}

func stripRootCompounds(sel string) (string, bool) {
	hit := false
	for {
		n := rootCompoundLen(sel)
		if n == 0 {
			return sel, hit
		}
		hit = true
		sel = strings.TrimSpace(sel[n:])
	}
}

func isSelectorSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isCombinator(c byte) bool {
	return c == '>' || c == '+' || c == '~'
}

// rootCompoundLen returns the length of a leading root compound (html, body,
// :root with any attached classes, attributes or pseudos) plus the descendant
// or child combinator after it.  0 means sel does not start with one.
// sibling combinators are left alone, the root has no siblings to scope.
func rootCompoundLen(sel string) int {
	i := 0
	for _, kw := range rootKeywords {
		if len(sel) >= len(kw) && strings.EqualFold(sel[:len(kw)], kw) {
			i = len(kw)
			break
		}
	}
	if i == 0 {
		return 0
	}
	if i < len(sel) && !strings.ContainsRune(".#[:", rune(sel[i])) && !isSelectorSpace(sel[i]) && !isCombinator(sel[i]) {
		return 0
	}
	depth := 0
	var quote byte
	for ; i < len(sel); i++ {
		c := sel[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if depth == 0 && (isSelectorSpace(c) || isCombinator(c)) {
			break
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		}
	}
	if quote != 0 || depth != 0 {
		return 0
	}
	j := i
	for j < len(sel) && isSelectorSpace(sel[j]) {
		j++
	}
	if j < len(sel) && sel[j] == '>' {
		j++
		for j < len(sel) && isSelectorSpace(sel[j]) {
			j++
		}
		return j
	}
	if j < len(sel) && isCombinator(sel[j]) {
		return 0
	}
	return j
}

// Rewrite returns css with every style-rule selector confined to scope.
// @keyframes, @font-face, @property and other non-grouping at-rules pass
// through unchanged, so animation names remain document-global.
func Rewrite(css string, scope string) (string, error) {
	sheet, err := ParseStylesheet(css)
	if err != nil {
		return "", err
	}
	rewriteRules(sheet.Rules, scope)
	return sheet.String(), nil
}

func rewriteRules(rules []*Rule, scope string) {
	for _, rule := range rules {
		if rule.IsGrouping() {
			rewriteRules(rule.Children, scope)
			continue
		}
		if !rule.IsStyleRule() {
			continue
		}
		selectors := SplitSelectors(rule.Prelude)
		for i, sel := range selectors {
			selectors[i] = ScopeSelector(sel, scope)
		}
		rule.Prelude = strings.Join(selectors, ", ")
	}
}

// MatchableSelector drops pseudo-classes/elements a static matcher cannot
// evaluate.  `a:hover .x` becomes `a .x`.
func MatchableSelector(sel string) string {
	stripped := dynamicPseudoRe.ReplaceAllString(sel, "")
	stripped = strings.TrimSpace(stripped)
	if stripped == "" {
		return "*"
	}
	// a compound reduced to nothing before a combinator, e.g. "::before > a"
	if strings.HasPrefix(stripped, ">") || strings.HasPrefix(stripped, "+") || strings.HasPrefix(stripped, "~") {
		stripped = "* " + stripped
	}
	return stripped
}
