// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package isolation

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/wavetermdev/snipgallery/pkg/render/cssscope"
	"github.com/wavetermdev/snipgallery/pkg/render/dom"
	"golang.org/x/net/html"
)

// Leak is one element outside a container that a stylesheet mounted inside
// that container would style.  To is "" for page chrome.
type Leak struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Selector string `json:"selector"`
	Element  string `json:"element"`
}

// CrossScopeMatches evaluates every stylesheet mounted on the page against the
// whole document, the way a browser applies them, and reports matches that
// land outside the stylesheet's own container.  dynamic pseudo-classes are
// treated as always active.
func CrossScopeMatches(page *dom.Page) []Leak {
	var leaks []Leak
	doc := page.Document()
	for _, c := range page.Containers() {
		c.Find("style").Each(func(_ int, styleSel *goquery.Selection) {
			sheet, err := cssscope.ParseStylesheet(styleSel.Text())
			if err != nil {
				return
			}
			sheet.Walk(func(rule *cssscope.Rule) {
				for _, sel := range cssscope.SplitSelectors(rule.Prelude) {
					doc.Find(cssscope.MatchableSelector(sel)).Each(func(_ int, match *goquery.Selection) {
						node := match.Get(0)
						owner := page.ContainerOf(node)
						if owner == c || isDocumentFrame(node) {
							return
						}
						leak := Leak{From: c.ID(), Selector: sel, Element: node.Data}
						if owner != nil {
							leak.To = owner.ID()
						}
						leaks = append(leaks, leak)
					})
				}
			})
		})
	}
	return leaks
}

// html/head/body and their plumbing are not content, matching them is
// reported through cssscope.Analyze instead.
func isDocumentFrame(node *html.Node) bool {
	switch node.Data {
	case "html", "head", "body", "style", "script", "meta", "title":
		return true
	}
	return false
}
