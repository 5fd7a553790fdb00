// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package dom

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is a shared document hosting many containers side by side, the way a
// gallery grid hosts many previews.  stylesheets inside any container apply
// document-wide, as they would in a browser.
type Page struct {
	doc        *html.Node
	body       *html.Node
	containers []*Container
}

func NewPage() *Page {
	doc := &html.Node{Type: html.DocumentNode}
	htmlNode := newElem(atom.Html)
	head := newElem(atom.Head)
	body := newElem(atom.Body)
	htmlNode.AppendChild(head)
	htmlNode.AppendChild(body)
	doc.AppendChild(htmlNode)
	return &Page{doc: doc, body: body}
}

// Mount places the container's root under the page body.
func (p *Page) Mount(c *Container) {
	if c.root.Parent != nil {
		c.root.Parent.RemoveChild(c.root)
	}
	p.body.AppendChild(c.root)
	p.containers = append(p.containers, c)
}

// Remove detaches the container (its owning view unmounted).
func (p *Page) Remove(c *Container) {
	if c.root.Parent == p.body {
		p.body.RemoveChild(c.root)
	}
	for i, pc := range p.containers {
		if pc == c {
			p.containers = append(p.containers[:i], p.containers[i+1:]...)
			break
		}
	}
}

func (p *Page) Containers() []*Container {
	return p.containers
}

func (p *Page) Document() *goquery.Document {
	return goquery.NewDocumentFromNode(p.doc)
}

// ContainerOf returns the mounted container owning node, or nil for page chrome.
func (p *Page) ContainerOf(node *html.Node) *Container {
	for n := node; n != nil; n = n.Parent {
		for _, c := range p.containers {
			if c.root == n {
				return c
			}
		}
	}
	return nil
}

func (p *Page) HTML() string {
	var buf bytes.Buffer
	html.Render(&buf, p.doc)
	return buf.String()
}
