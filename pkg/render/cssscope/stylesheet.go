// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cssscope

import (
	"fmt"
	"strings"
)

// at-rules whose block holds more rules (and so more selectors)
var groupingAtRules = map[string]bool{
	"media":     true,
	"supports":  true,
	"layer":     true,
	"container": true,
	"document":  true,
	"scope":     true,
}

type Rule struct {
	Prelude  string // selector list, or the full at-rule prelude including "@name"
	AtName   string // lowercased at-rule name without "@", "" for style rules
	Body     string // raw block contents (declarations, or raw at-rule body)
	HasBlock bool   // false for statement at-rules such as @import
	Children []*Rule
}

func (r *Rule) IsStyleRule() bool {
	return r.AtName == "" && r.HasBlock
}

func (r *Rule) IsGrouping() bool {
	return groupingAtRules[r.AtName] && r.HasBlock
}

type Stylesheet struct {
	Rules []*Rule
}

type sheetScanner struct {
	input string
	pos   int
}

func ParseStylesheet(css string) (*Stylesheet, error) {
	rules, err := parseRules(css)
	if err != nil {
		return nil, err
	}
	return &Stylesheet{Rules: rules}, nil
}

func parseRules(css string) ([]*Rule, error) {
	s := &sheetScanner{input: css}
	var rules []*Rule
	for {
		prelude, term, err := s.readPrelude()
		if err != nil {
			return nil, err
		}
		prelude = strings.TrimSpace(prelude)
		if term == 0 {
			if prelude != "" {
				return nil, fmt.Errorf("unterminated rule %q at end of stylesheet", abbrev(prelude))
			}
			return rules, nil
		}
		if term == ';' {
			if strings.HasPrefix(prelude, "@") {
				rules = append(rules, &Rule{Prelude: prelude, AtName: atRuleName(prelude)})
			}
			// stray declarations outside a block are dropped, browsers ignore them too
			continue
		}
		bodyStart := s.pos
		err = s.skipBlock()
		if err != nil {
			return nil, err
		}
		body := s.input[bodyStart : s.pos-1]
		rule := &Rule{Prelude: prelude, Body: body, HasBlock: true}
		if strings.HasPrefix(prelude, "@") {
			rule.AtName = atRuleName(prelude)
		}
		if rule.IsGrouping() {
			rule.Children, err = parseRules(body)
			if err != nil {
				return nil, fmt.Errorf("inside %q: %w", abbrev(prelude), err)
			}
		}
		rules = append(rules, rule)
	}
}

func atRuleName(prelude string) string {
	name := strings.TrimPrefix(prelude, "@")
	end := strings.IndexFunc(name, func(r rune) bool {
		return !(isIdentChar(r) || r == '-')
	})
	if end >= 0 {
		name = name[:end]
	}
	return strings.ToLower(name)
}

func abbrev(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

func (s *sheetScanner) eof() bool {
	return s.pos >= len(s.input)
}

// skips a comment starting at pos, returns false if there is none
func (s *sheetScanner) skipComment() (bool, error) {
	if !strings.HasPrefix(s.input[s.pos:], "/*") {
		return false, nil
	}
	end := strings.Index(s.input[s.pos+2:], "*/")
	if end < 0 {
		return true, fmt.Errorf("unclosed comment at pos %d", s.pos+1)
	}
	s.pos += end + 4
	return true, nil
}

func (s *sheetScanner) skipString() error {
	quote := s.input[s.pos]
	start := s.pos
	s.pos++
	for !s.eof() {
		c := s.input[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		s.pos++
		if c == quote {
			return nil
		}
	}
	return fmt.Errorf("unmatched quote at pos %d", start+1)
}

// reads up to (and consumes) the next top-level '{' or ';'.  comments are dropped from the prelude.
func (s *sheetScanner) readPrelude() (string, byte, error) {
	var sb strings.Builder
	parens := 0
	for !s.eof() {
		skipped, err := s.skipComment()
		if err != nil {
			return "", 0, err
		}
		if skipped {
			sb.WriteByte(' ')
			continue
		}
		c := s.input[s.pos]
		switch {
		case c == '"' || c == '\'':
			start := s.pos
			if err := s.skipString(); err != nil {
				return "", 0, err
			}
			sb.WriteString(s.input[start:s.pos])
			continue
		case c == '(' || c == '[':
			parens++
		case c == ')' || c == ']':
			if parens > 0 {
				parens--
			}
		case (c == '{' || c == ';') && parens == 0:
			s.pos++
			return sb.String(), c, nil
		case c == '}' && parens == 0:
			return "", 0, fmt.Errorf("unexpected '}' at pos %d", s.pos+1)
		}
		sb.WriteByte(c)
		s.pos++
	}
	return sb.String(), 0, nil
}

// pos is just past an opening '{'; leaves pos just past the matching '}'
func (s *sheetScanner) skipBlock() error {
	start := s.pos - 1
	depth := 1
	for !s.eof() {
		skipped, err := s.skipComment()
		if err != nil {
			return err
		}
		if skipped {
			continue
		}
		c := s.input[s.pos]
		if c == '"' || c == '\'' {
			if err := s.skipString(); err != nil {
				return err
			}
			continue
		}
		s.pos++
		if c == '{' {
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
	return fmt.Errorf("unclosed block starting at pos %d", start+1)
}

func (ss *Stylesheet) String() string {
	var sb strings.Builder
	writeRules(&sb, ss.Rules)
	return sb.String()
}

func writeRules(sb *strings.Builder, rules []*Rule) {
	for _, rule := range rules {
		if !rule.HasBlock {
			sb.WriteString(rule.Prelude)
			sb.WriteString(";\n")
			continue
		}
		sb.WriteString(rule.Prelude)
		sb.WriteString(" {")
		if rule.IsGrouping() {
			sb.WriteString("\n")
			writeRules(sb, rule.Children)
		} else {
			sb.WriteString(rule.Body)
		}
		sb.WriteString("}\n")
	}
}

// Walk visits every style rule, descending into grouping at-rules.
func (ss *Stylesheet) Walk(fn func(rule *Rule)) {
	walkRules(ss.Rules, fn)
}

func walkRules(rules []*Rule, fn func(rule *Rule)) {
	for _, rule := range rules {
		if rule.IsGrouping() {
			walkRules(rule.Children, fn)
			continue
		}
		if rule.IsStyleRule() {
			fn(rule)
		}
	}
}

// SplitSelectors splits a selector list on top-level commas.
func SplitSelectors(prelude string) []string {
	var rtn []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(prelude); i++ {
		c := prelude[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
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
		case ',':
			if depth == 0 {
				rtn = appendSelector(rtn, prelude[start:i])
				start = i + 1
			}
		}
	}
	return appendSelector(rtn, prelude[start:])
}

func appendSelector(list []string, sel string) []string {
	sel = strings.Join(strings.Fields(sel), " ")
	if sel == "" {
		return list
	}
	return append(list, sel)
}
