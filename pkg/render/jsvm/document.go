// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package jsvm

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"github.com/wavetermdev/snipgallery/pkg/render/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// the document a script sees.  its root (document.body / documentElement) is
// the container root, nothing above it is reachable.
func (s *scope) makeDocument() *goja.Object {
	rt := s.rt
	root := s.container.Root()
	doc := rt.NewObject()
	rootVal := s.wrap(root)
	doc.Set("body", rootVal)
	doc.Set("documentElement", rootVal)
	doc.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return s.querySelector(root, call.Argument(0).String())
	})
	doc.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return s.querySelectorAll(root, call.Argument(0).String())
	})
	doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		var found *html.Node
		walkElems(root, func(n *html.Node) bool {
			if v, ok := dom.GetAttr(n, "id"); ok && v == id {
				found = n
				return false
			}
			return true
		})
		if found == nil {
			return goja.Null()
		}
		return s.wrap(found)
	})
	doc.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		names := strings.Fields(call.Argument(0).String())
		var rtn []any
		walkElems(root, func(n *html.Node) bool {
			if n != root && hasAllClasses(n, names) {
				rtn = append(rtn, s.wrap(n))
			}
			return true
		})
		return rt.NewArray(rtn...)
	})
	doc.Set("createElement", func(call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(strings.TrimSpace(call.Argument(0).String()))
		if tag == "" || strings.ContainsAny(tag, " <>/\"'=") {
			panic(rt.NewTypeError("createElement: invalid tag name %q", tag))
		}
		node := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
		return s.wrap(node)
	})
	doc.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		s.addListener(root, call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	doc.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		s.removeListener(root, call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	return doc
}

func (s *scope) compileSelector(sel string) cascadia.Selector {
	compiled, err := cascadia.Compile(sel)
	if err != nil {
		panic(s.rt.NewTypeError("'%s' is not a valid selector", sel))
	}
	return compiled
}

func (s *scope) querySelector(node *html.Node, sel string) goja.Value {
	found := goquery.NewDocumentFromNode(node).FindMatcher(s.compileSelector(sel)).First()
	if found.Length() == 0 {
		return goja.Null()
	}
	return s.wrap(found.Get(0))
}

func (s *scope) querySelectorAll(node *html.Node, sel string) goja.Value {
	found := goquery.NewDocumentFromNode(node).FindMatcher(s.compileSelector(sel))
	rtn := make([]any, 0, found.Length())
	for _, n := range found.Nodes {
		rtn = append(rtn, s.wrap(n))
	}
	return s.rt.NewArray(rtn...)
}

// walkElems visits element nodes depth first until fn returns false
func walkElems(node *html.Node, fn func(n *html.Node) bool) bool {
	if node.Type == html.ElementNode && !fn(node) {
		return false
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if !walkElems(child, fn) {
			return false
		}
	}
	return true
}

func classesOf(n *html.Node) []string {
	cls, _ := dom.GetAttr(n, "class")
	return strings.Fields(cls)
}

func hasAllClasses(n *html.Node, names []string) bool {
	if len(names) == 0 {
		return false
	}
	have := classesOf(n)
	for _, name := range names {
		found := false
		for _, h := range have {
			if h == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *scope) nodeOf(v goja.Value) *html.Node {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return s.nodes[obj]
}

func (s *scope) isRoot(n *html.Node) bool {
	return n == s.container.Root()
}

// inside reports whether n is the container root or below it
func (s *scope) inside(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if s.isRoot(p) {
			return true
		}
	}
	return false
}

func renderChildren(n *html.Node) string {
	var buf bytes.Buffer
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		html.Render(&buf, child)
	}
	return buf.String()
}
