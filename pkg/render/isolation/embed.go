// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package isolation

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wavetermdev/snipgallery/pkg/render"
	"github.com/wavetermdev/snipgallery/pkg/render/dom"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const FrameSandbox = "allow-scripts"
const HostAttr = "data-snip-host"
const ErrorMessageType = "snip-error"

type EmbedOpts struct {
	Height int    // px, 0 means fill the parent
	Title  string // frame title, for accessibility
	URL    string // frame only: load the document from URL instead of srcdoc
}

type Embedded struct {
	Strategy Strategy             `json:"strategy"`
	ScopeId  string               `json:"scopeid"`
	Markup   string               `json:"markup"`
	Report   *render.RenderReport `json:"-"`
}

func heightStyle(height int) string {
	if height <= 0 {
		return "width:100%;height:100%"
	}
	return fmt.Sprintf("width:100%%;height:%dpx", height)
}

// Embed renders src and returns the markup a page includes to show it.
func Embed(strategy Strategy, scopeId string, src render.ComponentSource, opts EmbedOpts) (*Embedded, error) {
	rtn := &Embedded{Strategy: strategy, ScopeId: scopeId}
	switch strategy {
	case StrategyNone, StrategyRewrite:
		container, report := Build(strategy, scopeId, src)
		rtn.Report = report
		rtn.Markup = fmt.Sprintf(`<div %s="%s" style="%s">%s</div>`, HostAttr, html.EscapeString(scopeId), heightStyle(opts.Height), container.OuterHTML())
	case StrategyShadow:
		container, report := Build(strategy, scopeId, src)
		rtn.Report = report
		rtn.Markup = shadowMarkup(scopeId, container, opts)
	case StrategyFrame:
		if opts.URL != "" {
			rtn.Markup = frameTag(fmt.Sprintf(`src="%s"`, html.EscapeString(opts.URL)), opts)
			return rtn, nil
		}
		doc, report := FrameDocument(scopeId, src)
		rtn.Report = report
		rtn.Markup = frameTag(fmt.Sprintf(`srcdoc="%s"`, html.EscapeString(doc)), opts)
	default:
		return nil, fmt.Errorf("invalid isolation strategy %q", strategy)
	}
	return rtn, nil
}

func frameTag(srcAttr string, opts EmbedOpts) string {
	title := opts.Title
	if title == "" {
		title = "component preview"
	}
	return fmt.Sprintf(`<iframe sandbox="%s" %s title="%s" loading="lazy" style="%s;border:0;display:block"></iframe>`,
		FrameSandbox, srcAttr, html.EscapeString(title), heightStyle(opts.Height))
}

// scripts inside a declarative shadow root are inert, so they are lifted out
// and run against the shadow root instead of the global document.
func shadowMarkup(scopeId string, container *dom.Container, opts EmbedOpts) string {
	var scripts []string
	container.Find("script").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		scripts = append(scripts, dom.TextContent(node))
		node.Parent.RemoveChild(node)
	})
	var sb strings.Builder
	fmt.Fprintf(&sb, `<div %s="%s" style="%s">`, HostAttr, html.EscapeString(scopeId), heightStyle(opts.Height))
	sb.WriteString(`<template shadowrootmode="open">`)
	sb.WriteString(`<style>:host{display:block}</style>`)
	sb.WriteString(container.OuterHTML())
	sb.WriteString(`</template></div>`)
	for _, js := range scripts {
		sb.WriteString("<script>")
		fmt.Fprintf(&sb, "(function(document){\ntry {\n%s\n} catch (e) { console.error(%q, e); }\n})(document.querySelector('[%s=%q]').shadowRoot);",
			js, "snippet script failed ["+scopeId+"]", HostAttr, scopeId)
		sb.WriteString("</script>")
	}
	return sb.String()
}

// forwards uncaught errors to the embedding page, which can show them next to the preview
const frameErrorPrelude = `window.addEventListener("error", function (e) {
  try { parent.postMessage({ type: %q, scope: %q, message: String(e.message || e) }, "*"); } catch (_) {}
});`

// FrameDocument returns the complete standalone document loaded by the frame strategy.
func FrameDocument(scopeId string, src render.ComponentSource) (string, *render.RenderReport) {
	container, report := Build(StrategyFrame, scopeId, src)
	doc := &xhtml.Node{Type: xhtml.DocumentNode}
	doc.AppendChild(&xhtml.Node{Type: xhtml.DoctypeNode, Data: "html"})
	htmlNode := &xhtml.Node{Type: xhtml.ElementNode, Data: "html", DataAtom: atom.Html}
	head := &xhtml.Node{Type: xhtml.ElementNode, Data: "head", DataAtom: atom.Head}
	body := &xhtml.Node{Type: xhtml.ElementNode, Data: "body", DataAtom: atom.Body}
	meta := &xhtml.Node{Type: xhtml.ElementNode, Data: "meta", DataAtom: atom.Meta, Attr: []xhtml.Attribute{{Key: "charset", Val: "utf-8"}}}
	baseStyle := &xhtml.Node{Type: xhtml.ElementNode, Data: "style", DataAtom: atom.Style}
	baseStyle.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: "html,body{margin:0;width:100%;height:100%;overflow:hidden}"})
	prelude := &xhtml.Node{Type: xhtml.ElementNode, Data: "script", DataAtom: atom.Script}
	prelude.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: fmt.Sprintf(frameErrorPrelude, ErrorMessageType, scopeId)})
	head.AppendChild(meta)
	head.AppendChild(baseStyle)
	head.AppendChild(prelude)
	htmlNode.AppendChild(head)
	htmlNode.AppendChild(body)
	doc.AppendChild(htmlNode)
	root := container.Root()
	body.AppendChild(root)
	var sb strings.Builder
	xhtml.Render(&sb, doc)
	body.RemoveChild(root)
	return sb.String(), report
}
