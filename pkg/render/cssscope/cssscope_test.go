// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cssscope

import (
	"log"
	"strings"
	"testing"
)

func compareMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func TestParseDecls(t *testing.T) {
	style := `background: url("example;with;semicolons.jpg"); color: red; --rotate: 0deg; content: "hello;world";`
	parsed, err := ParseDecls(style)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	expected := map[string]string{
		"background": `url("example;with;semicolons.jpg")`,
		"color":      "red",
		"--rotate":   "0deg",
		"content":    `"hello;world"`,
	}
	if !compareMaps(parsed, expected) {
		t.Fatalf("parsed %v, want %v", parsed, expected)
	}
	if FormatDecls(map[string]string{"width": "1px", "color": "red"}) != "color:red;width:1px" {
		t.Fatalf("format not sorted")
	}
}

func TestParseDeclErrors(t *testing.T) {
	for _, style := range []string{`hello more: bad;`, `background: url("example.jpg`, `foo: url(...`} {
		_, err := ParseDecls(style)
		if err == nil {
			t.Fatalf("expected error for %q", style)
		}
		log.Printf("got expected error: %v\n", err)
	}
}

const gradientButtonCss = `@property --rotate {
  syntax: "<angle>";
  initial-value: 0deg;
  inherits: false;
}
/* the button */
.btn { cursor: pointer; }
.btn:hover .hl, .btn .rainbow { animation: spin 2s; }
@media (max-width: 600px) {
  .btn { padding: 2px; }
}
@keyframes spin {
  0% { --rotate: 0deg; }
  100% { --rotate: 360deg; }
}`

func TestParseStylesheet(t *testing.T) {
	sheet, err := ParseStylesheet(gradientButtonCss)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sheet.Rules) != 5 {
		t.Fatalf("expected 5 top-level rules, got %d", len(sheet.Rules))
	}
	if sheet.Rules[0].AtName != "property" || sheet.Rules[0].IsGrouping() {
		t.Fatalf("bad @property rule: %#v", sheet.Rules[0])
	}
	if !sheet.Rules[3].IsGrouping() || len(sheet.Rules[3].Children) != 1 {
		t.Fatalf("@media should hold one child rule: %#v", sheet.Rules[3])
	}
	var selectors []string
	sheet.Walk(func(rule *Rule) {
		selectors = append(selectors, SplitSelectors(rule.Prelude)...)
	})
	want := []string{".btn", ".btn:hover .hl", ".btn .rainbow", ".btn"}
	if strings.Join(selectors, "|") != strings.Join(want, "|") {
		t.Fatalf("selectors = %v, want %v", selectors, want)
	}
}

func TestParseStylesheetErrors(t *testing.T) {
	for _, css := range []string{`.a { color: red;`, `.a { content: "x }`, `} .a {}`, `/* open`} {
		if _, err := ParseStylesheet(css); err == nil {
			t.Fatalf("expected error for %q", css)
		}
	}
}

func TestRewrite(t *testing.T) {
	scope := ScopeSelectorFor("abc")
	out, err := Rewrite(gradientButtonCss, scope)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if !strings.Contains(out, `[data-snip-scope="abc"] .btn:hover .hl, [data-snip-scope="abc"] .btn .rainbow {`) {
		t.Fatalf("selector list not scoped:\n%s", out)
	}
	if !strings.Contains(out, "@keyframes spin {") || strings.Contains(out, `[data-snip-scope="abc"] 0%`) {
		t.Fatalf("keyframes must pass through untouched:\n%s", out)
	}
	if !strings.Contains(out, "@media (max-width: 600px) {\n[data-snip-scope=\"abc\"] .btn {") {
		t.Fatalf("media children not scoped:\n%s", out)
	}
	if _, err := ParseStylesheet(out); err != nil {
		t.Fatalf("rewritten css should parse again: %v", err)
	}
}

func TestScopeSelectorRoots(t *testing.T) {
	scope := ScopeSelectorFor("s")
	cases := []struct {
		in   string
		want string
	}{
		{"body", scope},
		{":root", scope},
		{"html body .a", scope + " .a"},
		{"body > .x", scope + " .x"},
		{"div", scope + " div"},
		{"bodyguard .x", scope + " bodyguard .x"},
		{"*", scope + " *"},
		{"body.dark p", scope + " p"},
		{`html[data-x="a b"] .x`, scope + " .x"},
		{`body[data-x='a>b']`, scope},
		{"html:not(.a .b) > p", scope + " p"},
		{"BODY>.x", scope + " .x"},
		{"body ~ .x", scope + " body ~ .x"},
	}
	for _, tc := range cases {
		if got := ScopeSelector(tc.in, scope); got != tc.want {
			t.Fatalf("ScopeSelector(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMatchableSelector(t *testing.T) {
	cases := map[string]string{
		".wrap:hover .btn .line.top": ".wrap .btn .line.top",
		"a::before":                  "a",
		"::selection":                "*",
		".x:first-child":             ".x:first-child",
	}
	for in, want := range cases {
		if got := MatchableSelector(in); got != want {
			t.Fatalf("MatchableSelector(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAnalyze(t *testing.T) {
	markup := `<div class="wrapper main" id="root"><span class="light"></span></div>`
	css := `.wrapper { display:flex } div { color: red } body { margin: 0 } #root > span, p { x: y }`
	a := Analyze(markup, css)
	if strings.Join(a.Classes, ",") != "light,main,wrapper" || strings.Join(a.IDs, ",") != "root" {
		t.Fatalf("names = %v / %v", a.Classes, a.IDs)
	}
	if len(a.Leaky) != 3 {
		t.Fatalf("expected 3 leaky selectors, got %#v", a.Leaky)
	}
	if a.Leaky[0].Selector != "div" || a.Leaky[0].Reason != LeakReasonUnbound {
		t.Fatalf("unexpected first leak: %#v", a.Leaky[0])
	}
	if a.Leaky[1].Selector != "body" || a.Leaky[1].Reason != LeakReasonRoot {
		t.Fatalf("unexpected second leak: %#v", a.Leaky[1])
	}
	if a.Leaky[2].Selector != "p" {
		t.Fatalf("unexpected third leak: %#v", a.Leaky[2])
	}
}
