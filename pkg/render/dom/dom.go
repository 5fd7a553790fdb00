// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dom is an in-memory mount point for the renderer, built on
// x/net/html nodes and queried through goquery.
package dom

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wavetermdev/snipgallery/pkg/render"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const ScopeAttr = "data-snip-scope"
const MountClass = "snip-mount"
const MountStyle = "position:relative;width:100%;height:100%;display:flex;align-items:center;justify-content:center"
const DotStyle = "display:inline-block;width:8px;height:8px;margin:0 4px;border-radius:9999px;background:#4b5563"

// ScriptRunner executes snippet scripts against a container.  Run reports only
// synchronous failures.  Dispose drops everything the container's scripts created.
type ScriptRunner interface {
	Run(c *Container, js string) error
	Dispose(c *Container)
}

type StyleScoper func(css string) (string, error)

type Option func(c *Container)

func WithScriptRunner(runner ScriptRunner) Option {
	return func(c *Container) {
		c.scripts = runner
	}
}

func WithStyleScoper(scoper StyleScoper) Option {
	return func(c *Container) {
		c.scoper = scoper
	}
}

// Container is the exclusively owned subtree root one renderer instance mounts into.
type Container struct {
	id      string
	root    *html.Node
	scripts ScriptRunner
	scoper  StyleScoper
}

var _ render.MountTarget = (*Container)(nil)

func NewContainer(id string, opts ...Option) *Container {
	root := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: ScopeAttr, Val: id},
			{Key: "class", Val: MountClass},
			{Key: "style", Val: MountStyle},
		},
	}
	c := &Container{id: id, root: root}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Container) ID() string {
	return c.id
}

func (c *Container) Root() *html.Node {
	return c.root
}

func (c *Container) Selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(c.root).Selection
}

// Find matches selector against the container's descendants only.
func (c *Container) Find(selector string) *goquery.Selection {
	return c.Selection().Find(selector)
}

func (c *Container) ChildCount() int {
	count := 0
	for child := c.root.FirstChild; child != nil; child = child.NextSibling {
		count++
	}
	return count
}

func (c *Container) Clear() {
	if c.scripts != nil {
		c.scripts.Dispose(c)
	}
	for c.root.FirstChild != nil {
		c.root.RemoveChild(c.root.FirstChild)
	}
}

func (c *Container) AttachStyle(css string) error {
	if c.scoper != nil {
		scoped, err := c.scoper(css)
		if err != nil {
			return fmt.Errorf("scoping stylesheet: %w", err)
		}
		css = scoped
	}
	styleNode := newElem(atom.Style)
	styleNode.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	c.root.AppendChild(styleNode)
	return nil
}

func (c *Container) AttachMarkup(markup string) error {
	nodes, err := ParseFragment(markup)
	if err != nil {
		return err
	}
	wrapper := newElem(atom.Div)
	wrapper.Attr = []html.Attribute{
		{Key: "class", Val: render.MarkupClass},
		{Key: "style", Val: render.MarkupLayoutStyle},
	}
	for _, node := range nodes {
		wrapper.AppendChild(node)
	}
	c.root.AppendChild(wrapper)
	return nil
}

func (c *Container) AttachScript(js string) error {
	scriptNode := newElem(atom.Script)
	scriptNode.AppendChild(&html.Node{Type: html.TextNode, Data: EscapeScriptText(js)})
	c.root.AppendChild(scriptNode)
	if c.scripts == nil {
		return nil
	}
	return c.scripts.Run(c, js)
}

func (c *Container) AttachPlaceholder() error {
	for i := 0; i < render.PlaceholderDotCount; i++ {
		dot := newElem(atom.Span)
		dot.Attr = []html.Attribute{
			{Key: "class", Val: render.PlaceholderDotClass},
			{Key: "style", Val: DotStyle},
		}
		c.root.AppendChild(dot)
	}
	return nil
}

func (c *Container) InnerHTML() string {
	var buf bytes.Buffer
	for child := c.root.FirstChild; child != nil; child = child.NextSibling {
		html.Render(&buf, child)
	}
	return buf.String()
}

func (c *Container) OuterHTML() string {
	var buf bytes.Buffer
	html.Render(&buf, c.root)
	return buf.String()
}

var scriptCloseRe = regexp.MustCompile(`(?i)</(script)`)

// EscapeScriptText keeps a "</script" inside script source from closing the
// element when the tree is serialized.
func EscapeScriptText(js string) string {
	return scriptCloseRe.ReplaceAllString(js, `<\/$1`)
}

func newElem(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
}

// ParseFragment parses untrusted markup in a <body> context.  the returned
// nodes are detached and may be appended anywhere.
func ParseFragment(markup string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("parsing markup: %w", err)
	}
	for _, node := range nodes {
		node.Parent = nil
		node.PrevSibling = nil
		node.NextSibling = nil
	}
	return nodes, nil
}

func GetAttr(node *html.Node, key string) (string, bool) {
	for _, attr := range node.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func SetAttr(node *html.Node, key string, val string) {
	for i := range node.Attr {
		if node.Attr[i].Key == key {
			node.Attr[i].Val = val
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: val})
}

func RemoveAttr(node *html.Node, key string) {
	for i := range node.Attr {
		if node.Attr[i].Key == key {
			node.Attr = append(node.Attr[:i], node.Attr[i+1:]...)
			return
		}
	}
}

// TextContent concatenates all descendant text nodes.
func TextContent(node *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return sb.String()
}

// SetTextContent replaces all children of node with a single text node.
func SetTextContent(node *html.Node, text string) {
	for node.FirstChild != nil {
		node.RemoveChild(node.FirstChild)
	}
	if text != "" {
		node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}
