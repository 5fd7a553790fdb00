// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cssscope

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// DeclParser parses a declaration list (a style attribute or a rule body) into
// property -> value.  quotes and parens are respected, so `url("a;b")` is one value.
type DeclParser struct {
	Input      string
	Pos        int
	Length     int
	InQuote    bool
	QuoteChar  rune
	OpenParens int
}

func MakeDeclParser(input string) *DeclParser {
	return &DeclParser{
		Input:  input,
		Length: len(input),
	}
}

func ParseDecls(input string) (map[string]string, error) {
	return MakeDeclParser(input).Parse()
}

func (p *DeclParser) Parse() (map[string]string, error) {
	result := make(map[string]string)
	lastProp := ""
	for {
		p.skipWhitespaceAndSemis()
		if p.eof() {
			break
		}
		propName, err := p.parseIdentifierColon(lastProp)
		if err != nil {
			return nil, err
		}
		lastProp = propName
		p.skipWhitespace()
		value, err := p.parseValue(propName)
		if err != nil {
			return nil, err
		}
		result[propName] = value
		p.skipWhitespace()
		if p.eof() {
			break
		}
		if !p.expectChar(';') {
			break
		}
	}
	p.skipWhitespace()
	if !p.eof() {
		return nil, fmt.Errorf("bad declaration list, unexpected character %q at pos %d", string(p.Input[p.Pos]), p.Pos+1)
	}
	return result, nil
}

// FormatDecls writes decls back out in a stable (sorted) order.
func FormatDecls(decls map[string]string) string {
	keys := make([]string, 0, len(decls))
	for k := range decls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, k+":"+decls[k])
	}
	return strings.Join(parts, ";")
}

func (p *DeclParser) parseIdentifierColon(lastProp string) (string, error) {
	start := p.Pos
	for !p.eof() {
		c := p.peekChar()
		if isIdentChar(c) || c == '-' {
			p.advance()
		} else {
			break
		}
	}
	propName := p.Input[start:p.Pos]
	p.skipWhitespace()
	if p.eof() {
		return "", fmt.Errorf("bad declaration list, expected colon after property %q, got EOF, at pos %d", propName, p.Pos+1)
	}
	if propName == "" {
		return "", fmt.Errorf("bad declaration list, invalid property name after property %q, at pos %d", lastProp, p.Pos+1)
	}
	if !p.expectChar(':') {
		return "", fmt.Errorf("bad declaration list, bad property name starting with %q, expected colon, got %q, at pos %d", propName, string(p.Input[p.Pos]), p.Pos+1)
	}
	return strings.ToLower(propName), nil
}

func (p *DeclParser) parseValue(propName string) (string, error) {
	start := p.Pos
	quotePos := 0
	parenPosStack := make([]int, 0)
	for !p.eof() {
		c := p.peekChar()
		if p.InQuote {
			if c == p.QuoteChar {
				p.InQuote = false
			} else if c == '\\' {
				p.advance()
			}
		} else {
			if c == '"' || c == '\'' {
				p.InQuote = true
				p.QuoteChar = c
				quotePos = p.Pos
			} else if c == '(' {
				p.OpenParens++
				parenPosStack = append(parenPosStack, p.Pos)
			} else if c == ')' {
				if p.OpenParens == 0 {
					return "", fmt.Errorf("unmatched ')' at pos %d", p.Pos+1)
				}
				p.OpenParens--
				parenPosStack = parenPosStack[:len(parenPosStack)-1]
			} else if c == ';' && p.OpenParens == 0 {
				break
			}
		}
		p.advance()
	}
	if p.eof() && p.InQuote {
		return "", fmt.Errorf("bad declaration list, while parsing property %q, unmatched quote at pos %d", propName, quotePos+1)
	}
	if p.eof() && p.OpenParens > 0 {
		return "", fmt.Errorf("bad declaration list, while parsing property %q, unmatched '(' at pos %d", propName, parenPosStack[len(parenPosStack)-1]+1)
	}
	return strings.TrimSpace(p.Input[start:p.Pos]), nil
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func (p *DeclParser) skipWhitespace() {
	for !p.eof() && unicode.IsSpace(p.peekChar()) {
		p.advance()
	}
}

func (p *DeclParser) skipWhitespaceAndSemis() {
	for !p.eof() && (unicode.IsSpace(p.peekChar()) || p.peekChar() == ';') {
		p.advance()
	}
}

func (p *DeclParser) expectChar(expected rune) bool {
	if !p.eof() && p.peekChar() == expected {
		p.advance()
		return true
	}
	return false
}

func (p *DeclParser) peekChar() rune {
	if p.Pos >= p.Length {
		return 0
	}
	return rune(p.Input[p.Pos])
}

func (p *DeclParser) advance() {
	p.Pos++
}

func (p *DeclParser) eof() bool {
	return p.Pos >= p.Length
}
