// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package render_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/wavetermdev/snipgallery/pkg/render"
	"github.com/wavetermdev/snipgallery/pkg/render/dom"
)

func newInstance(id string) (*render.Instance, *dom.Container) {
	c := dom.NewContainer(id)
	return render.NewInstance(id, c), c
}

func TestEmptySourceShowsPlaceholder(t *testing.T) {
	inst, c := newInstance("p")
	for _, src := range []render.ComponentSource{{}, {HTML: "  ", CSS: "\n", JS: "\t"}} {
		report := inst.Render(src)
		if !report.Placeholder {
			t.Fatalf("expected placeholder for %#v", src)
		}
		if c.ChildCount() != render.PlaceholderDotCount {
			t.Fatalf("expected %d children, got %d: %s", render.PlaceholderDotCount, c.ChildCount(), c.InnerHTML())
		}
		if c.Find("."+render.PlaceholderDotClass).Length() != render.PlaceholderDotCount {
			t.Fatalf("dots missing: %s", c.InnerHTML())
		}
	}
}

func TestRenderMarkupAndStyle(t *testing.T) {
	inst, c := newInstance("hi")
	report := inst.Render(render.ComponentSource{HTML: "<b>hi</b>", CSS: "b{color:blue}"})
	if err := report.Err(); err != nil {
		t.Fatalf("render: %v", err)
	}
	if c.ChildCount() != 2 {
		t.Fatalf("expected style + markup wrapper, got %s", c.InnerHTML())
	}
	root := c.Root()
	if root.FirstChild.Data != "style" || root.FirstChild.NextSibling.Data != "div" {
		t.Fatalf("style must precede markup: %s", c.InnerHTML())
	}
	wrapper := c.Find("." + render.MarkupClass)
	style, _ := wrapper.Attr("style")
	if style != render.MarkupLayoutStyle {
		t.Fatalf("layout contract not applied: %q", style)
	}
	if wrapper.Find("b").Text() != "hi" {
		t.Fatalf("markup not mounted: %s", c.InnerHTML())
	}
	if c.Find("style").Text() != "b{color:blue}" {
		t.Fatalf("style not mounted verbatim: %s", c.InnerHTML())
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	inst, c := newInstance("idem")
	src := render.ComponentSource{HTML: `<div class="x">1</div>`, CSS: ".x{}", JS: "1+1"}
	inst.Render(src)
	first := c.InnerHTML()
	inst.Render(src)
	if c.InnerHTML() != first {
		t.Fatalf("second render differs:\n%s\n%s", first, c.InnerHTML())
	}
	if c.Find(".x").Length() != 1 || c.Find("style").Length() != 1 || c.Find("script").Length() != 1 {
		t.Fatalf("duplicate nodes after re-render: %s", c.InnerHTML())
	}
}

func TestRebuildLeavesNothingBehind(t *testing.T) {
	inst, c := newInstance("swap")
	inst.Render(render.ComponentSource{HTML: `<i class="old">o</i>`, CSS: ".old{}", JS: "var a"})
	inst.Render(render.ComponentSource{HTML: `<u class="new">n</u>`})
	if c.Find(".old").Length() != 0 || c.Find("style").Length() != 0 || c.Find("script").Length() != 0 {
		t.Fatalf("old nodes left behind: %s", c.InnerHTML())
	}
	if c.Find(".new").Length() != 1 || c.ChildCount() != 1 {
		t.Fatalf("new markup missing: %s", c.InnerHTML())
	}
}

func TestUpdateSkipsUnchanged(t *testing.T) {
	inst, c := newInstance("upd")
	src := render.ComponentSource{HTML: "<p>a</p>"}
	if report := inst.Update(src); report.Skipped {
		t.Fatalf("first update must mount")
	}
	ticket := inst.Ticket()
	if report := inst.Update(src); !report.Skipped {
		t.Fatalf("identical update should be skipped")
	}
	if !ticket.Valid() {
		t.Fatalf("skipped update must not invalidate tickets")
	}
	report := inst.Update(render.ComponentSource{HTML: "<p>a</p>", JS: "1"})
	if report.Skipped || ticket.Valid() {
		t.Fatalf("changed update must rebuild and advance the generation")
	}
	if got, mounted := inst.Source(); !mounted || got.JS != "1" {
		t.Fatalf("source not recorded: %#v", got)
	}
	if c.Find("script").Length() != 1 {
		t.Fatalf("script not mounted: %s", c.InnerHTML())
	}
}

func TestUnmountClearsAndInvalidates(t *testing.T) {
	inst, c := newInstance("gone")
	inst.Render(render.ComponentSource{HTML: "<b>x</b>", CSS: "b{}"})
	ticket := inst.Ticket()
	inst.Unmount()
	if c.ChildCount() != 0 {
		t.Fatalf("expected zero children after unmount, got %s", c.InnerHTML())
	}
	if ticket.Valid() {
		t.Fatalf("ticket should be stale after unmount")
	}
	if inst.ApplyIfCurrent(ticket, func() { t.Fatalf("stale result applied") }) {
		t.Fatalf("ApplyIfCurrent accepted a stale ticket")
	}
	if _, mounted := inst.Source(); mounted {
		t.Fatalf("instance still reports mounted")
	}
}

func TestTicketFromOtherInstanceRejected(t *testing.T) {
	a, _ := newInstance("a")
	b, _ := newInstance("b")
	ticket := a.Ticket()
	if b.ApplyIfCurrent(ticket, func() {}) {
		t.Fatalf("ticket applied to the wrong instance")
	}
	applied := false
	if !a.ApplyIfCurrent(ticket, func() { applied = true }) || !applied {
		t.Fatalf("current ticket rejected")
	}
	var zero render.Ticket
	if zero.Valid() {
		t.Fatalf("zero ticket must be invalid")
	}
}

// failingTarget records calls and fails the steps it is told to
type failingTarget struct {
	calls      []string
	failStyle  bool
	panicMark  bool
	failScript bool
}

func (f *failingTarget) Clear() {
	f.calls = append(f.calls, "clear")
}

func (f *failingTarget) AttachStyle(css string) error {
	f.calls = append(f.calls, "style")
	if f.failStyle {
		return errors.New("bad css")
	}
	return nil
}

func (f *failingTarget) AttachMarkup(html string) error {
	f.calls = append(f.calls, "markup")
	if f.panicMark {
		panic("markup exploded")
	}
	return nil
}

func (f *failingTarget) AttachScript(js string) error {
	f.calls = append(f.calls, "script")
	if f.failScript {
		return errors.New("ReferenceError: nope is not defined")
	}
	return nil
}

func (f *failingTarget) AttachPlaceholder() error {
	f.calls = append(f.calls, "placeholder")
	return nil
}

func TestStepOrderAndScriptFailure(t *testing.T) {
	target := &failingTarget{failScript: true}
	inst := render.NewInstance("order", target)
	report := inst.Render(render.ComponentSource{HTML: "<div>ok</div>", CSS: "div{}", JS: "nope()"})
	if strings.Join(target.calls, ",") != "clear,style,markup,script" {
		t.Fatalf("unexpected step order %v", target.calls)
	}
	if report.ScriptErr() == nil || report.Placeholder {
		t.Fatalf("script failure should be reported without a placeholder: %#v", report)
	}
	if report.StepErr(render.StepMarkup) != nil {
		t.Fatalf("markup step should have succeeded")
	}
}

func TestNothingBuiltFallsBackToPlaceholder(t *testing.T) {
	target := &failingTarget{failStyle: true, panicMark: true}
	inst := render.NewInstance("fallback", target)
	report := inst.Render(render.ComponentSource{HTML: "<div>", CSS: "div{"})
	if !report.Placeholder {
		t.Fatalf("expected placeholder fallback: %#v", report)
	}
	if strings.Join(target.calls, ",") != "clear,style,markup,clear,placeholder" {
		t.Fatalf("unexpected calls %v", target.calls)
	}
	err := report.StepErr(render.StepMarkup)
	if err == nil || !strings.Contains(err.Error(), "markup exploded") {
		t.Fatalf("panic should be converted into a step error, got %v", err)
	}
	if report.Err() == nil {
		t.Fatalf("report should carry the step errors")
	}
}

func TestStyleOnlyResultFallsBackToPlaceholder(t *testing.T) {
	target := &failingTarget{failScript: true}
	inst := render.NewInstance("styleonly", target)
	report := inst.Render(render.ComponentSource{CSS: ".a{color:red}", JS: "throw new Error('x')"})
	if !report.Placeholder {
		t.Fatalf("style without visible content should fall back to the placeholder: %#v", report)
	}
	if strings.Join(target.calls, ",") != "clear,style,script,clear,placeholder" {
		t.Fatalf("unexpected calls %v", target.calls)
	}
	if report.ScriptErr() == nil {
		t.Fatalf("script error should still be reported")
	}

	target = &failingTarget{}
	inst = render.NewInstance("scriptonly", target)
	report = inst.Render(render.ComponentSource{CSS: ".a{}", JS: "build()"})
	if report.Placeholder {
		t.Fatalf("a script that ran may have built content, no placeholder expected")
	}
}
