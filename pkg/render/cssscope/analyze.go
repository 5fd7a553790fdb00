// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cssscope

import (
	"errors"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/wavetermdev/htmltoken"
)

const (
	LeakReasonRoot    = "targets the page root"
	LeakReasonUnbound = "references no class or id declared by this snippet"
)

var classRefRe = regexp.MustCompile(`\.(-?[_a-zA-Z][_a-zA-Z0-9-]*)`)
var idRefRe = regexp.MustCompile(`#(-?[_a-zA-Z][_a-zA-Z0-9-]*)`)

type LeakySelector struct {
	Selector string `json:"selector"`
	Reason   string `json:"reason"`
}

// Analysis describes how well a snippet's stylesheet stays within its own
// markup when it is injected without rewriting.
type Analysis struct {
	Classes []string        `json:"classes,omitempty"`
	IDs     []string        `json:"ids,omitempty"`
	Leaky   []LeakySelector `json:"leaky,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (a *Analysis) HasLeaks() bool {
	return len(a.Leaky) > 0
}

// CollectNames tokenizes markup and returns the class names and ids it declares.
func CollectNames(markup string) (classes []string, ids []string, err error) {
	classSet := make(map[string]bool)
	idSet := make(map[string]bool)
	iter := htmltoken.NewTokenizer(strings.NewReader(markup))
	for {
		tokenType := iter.Next()
		if tokenType == htmltoken.ErrorToken {
			if iter.Err() != nil && !errors.Is(iter.Err(), io.EOF) {
				err = iter.Err()
			}
			break
		}
		if tokenType != htmltoken.StartTagToken && tokenType != htmltoken.SelfClosingTagToken {
			continue
		}
		token := iter.Token()
		for _, attr := range token.Attr {
			switch strings.ToLower(attr.Key) {
			case "class":
				for _, cls := range strings.Fields(attr.Val) {
					classSet[cls] = true
				}
			case "id":
				if id := strings.TrimSpace(attr.Val); id != "" {
					idSet[id] = true
				}
			}
		}
	}
	return sortedKeys(classSet), sortedKeys(idSet), err
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	rtn := make([]string, 0, len(m))
	for k := range m {
		rtn = append(rtn, k)
	}
	sort.Strings(rtn)
	return rtn
}

// Analyze flags selectors that are not anchored to the snippet's own classes or ids.
func Analyze(markup string, css string) *Analysis {
	rtn := &Analysis{}
	classes, ids, err := CollectNames(markup)
	rtn.Classes = classes
	rtn.IDs = ids
	if err != nil {
		rtn.Error = err.Error()
	}
	if strings.TrimSpace(css) == "" {
		return rtn
	}
	sheet, err := ParseStylesheet(css)
	if err != nil {
		rtn.Error = err.Error()
		return rtn
	}
	classSet := toSet(classes)
	idSet := toSet(ids)
	sheet.Walk(func(rule *Rule) {
		for _, sel := range SplitSelectors(rule.Prelude) {
			if _, hitRoot := stripRootCompounds(sel); hitRoot {
				rtn.Leaky = append(rtn.Leaky, LeakySelector{Selector: sel, Reason: LeakReasonRoot})
				continue
			}
			if !isAnchored(sel, classSet, idSet) {
				rtn.Leaky = append(rtn.Leaky, LeakySelector{Selector: sel, Reason: LeakReasonUnbound})
			}
		}
	})
	return rtn
}

func toSet(list []string) map[string]bool {
	rtn := make(map[string]bool, len(list))
	for _, v := range list {
		rtn[v] = true
	}
	return rtn
}

func isAnchored(sel string, classSet map[string]bool, idSet map[string]bool) bool {
	for _, m := range classRefRe.FindAllStringSubmatch(sel, -1) {
		if classSet[m[1]] {
			return true
		}
	}
	for _, m := range idRefRe.FindAllStringSubmatch(sel, -1) {
		if idSet[m[1]] {
			return true
		}
	}
	return false
}
