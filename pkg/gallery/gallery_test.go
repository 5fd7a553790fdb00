// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package gallery

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/wavetermdev/snipgallery/pkg/blobstore"
	"github.com/wavetermdev/snipgallery/pkg/gevents"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"github.com/wavetermdev/snipgallery/pkg/render"
)

type recordingClient struct {
	lock   sync.Mutex
	events []gevents.Event
}

func (c *recordingClient) ClientId() string { return "recorder" }

func (c *recordingClient) SendEvent(event gevents.Event) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.events = append(c.events, event)
}

func (c *recordingClient) names() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	var rtn []string
	for _, ev := range c.events {
		rtn = append(rtn, ev.Event)
	}
	return rtn
}

func initService(t *testing.T) (*Service, *recordingClient) {
	t.Helper()
	err := gstore.OpenGStore(filepath.Join(t.TempDir(), gstore.GStoreDBName))
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") || strings.Contains(err.Error(), "requires cgo") {
			t.Skipf("gallery tests require sqlite/cgo: %v", err)
		}
		t.Fatalf("error initializing gstore: %v", err)
	}
	t.Cleanup(func() {
		gstore.CloseGStore()
	})
	store, err := blobstore.NewLocalStore(t.TempDir(), "test-secret")
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	broker := gevents.MakeBroker()
	recorder := &recordingClient{}
	for _, eventType := range gevents.AllEvents {
		broker.Subscribe(recorder, gevents.SubscriptionRequest{Event: eventType, AllScopes: true})
	}
	return NewService(blobstore.NewAvatarService(store), WithBroker(broker)), recorder
}

func TestNormalizeInput(t *testing.T) {
	input := ComponentInput{
		Title:      "  Glow  ",
		Category:   "style",
		Tags:       []string{" css ", "css", "", "glow"},
		OriginLink: "https://example.com/x",
	}
	if err := input.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if input.Title != "Glow" || strings.Join(input.Tags, ",") != "css,glow" {
		t.Fatalf("unexpected normalized input %+v", input)
	}
	bad := []struct {
		name  string
		input ComponentInput
		field string
	}{
		{"no title", ComponentInput{Title: "   ", Category: "style"}, "title"},
		{"all category", ComponentInput{Title: "x", Category: "all"}, "category"},
		{"unknown category", ComponentInput{Title: "x", Category: "Visual"}, "category"},
		{"ftp link", ComponentInput{Title: "x", Category: "other", OriginLink: "ftp://example.com"}, "originlink"},
		{"relative link", ComponentInput{Title: "x", Category: "other", OriginLink: "/about"}, "originlink"},
		{"long tag", ComponentInput{Title: "x", Category: "other", Tags: []string{strings.Repeat("t", MaxTagLen+1)}}, "tags"},
	}
	for _, tc := range bad {
		err := tc.input.Normalize()
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field {
			t.Fatalf("%s: expected field %q, got %v", tc.name, tc.field, err)
		}
	}
}

func TestCategories(t *testing.T) {
	if IsAssignableCategory(CategoryAll) {
		t.Fatalf("all should not be assignable")
	}
	for _, key := range []string{"style", "animation", "interaction", "copywriting", "other"} {
		if !IsAssignableCategory(key) {
			t.Fatalf("%s should be assignable", key)
		}
	}
	badge := CategoryBadge("animation")
	if badge.Background != "#fffbeb" || badge.Color != "#f59e0b" {
		t.Fatalf("unexpected animation badge %+v", badge)
	}
	badge = CategoryBadge("legacy")
	if badge.Label != "legacy" || badge.Color != "#16a34a" {
		t.Fatalf("unexpected fallback badge %+v", badge)
	}
}

func TestNavigate(t *testing.T) {
	list := []*gstore.ComponentRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	n := Navigate(list, "a")
	if n.Index != 0 || n.Prev != nil || n.Next.ID != "b" || n.Total != 3 {
		t.Fatalf("first: %+v", n)
	}
	n = Navigate(list, "b")
	if n.Prev.ID != "a" || n.Next.ID != "c" {
		t.Fatalf("middle: %+v", n)
	}
	n = Navigate(list, "c")
	if n.Prev.ID != "b" || n.Next != nil {
		t.Fatalf("last: %+v", n)
	}
	n = Navigate(list, "zzz")
	if n.Index != -1 || n.Prev != nil || n.Next != nil {
		t.Fatalf("missing: %+v", n)
	}
}

func TestDryRun(t *testing.T) {
	diag := DryRun(render.ComponentSource{
		HTML: `<div class="card">hi</div>`,
		CSS:  `.card{color:red} div{margin:0}`,
		JS:   `console.log("mounted"); setTimeout(() => { throw new Error("later") }, 10); throw new Error("boom")`,
	}, 0)
	if !strings.Contains(diag.ScriptError, "boom") {
		t.Fatalf("expected script error, got %q", diag.ScriptError)
	}
	if len(diag.Leaky) != 1 || diag.Leaky[0].Selector != "div" {
		t.Fatalf("expected div to be leaky, got %+v", diag.Leaky)
	}
	if len(diag.Console) != 1 || diag.Console[0].Text != "mounted" {
		t.Fatalf("unexpected console %+v", diag.Console)
	}
	if len(diag.TimerErrors) != 1 || !strings.Contains(diag.TimerErrors[0], "later") {
		t.Fatalf("expected the timer error, got %+v", diag.TimerErrors)
	}
	if diag.Clean() {
		t.Fatalf("diagnostics should not be clean")
	}
	empty := DryRun(render.ComponentSource{}, 0)
	if !empty.Placeholder || !empty.Clean() {
		t.Fatalf("empty source should render the placeholder cleanly: %+v", empty)
	}
}

func TestBuiltinsRenderCleanly(t *testing.T) {
	for _, rec := range BuiltinComponents() {
		if !IsAssignableCategory(rec.Category) {
			t.Fatalf("%s has bad category %q", rec.Title, rec.Category)
		}
		diag := DryRun(rec.Source(), 0)
		if !diag.Clean() {
			t.Fatalf("%s: unexpected diagnostics %+v", rec.Title, diag)
		}
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	svc, recorder := initService(t)
	ctx := context.Background()
	owner, other := "user-owner", "user-other"

	_, err := svc.Create(ctx, owner, ComponentInput{Title: "", Category: "style"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Create(ctx, "", ComponentInput{Title: "x", Category: "style"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous create should be forbidden, got %v", err)
	}

	res, err := svc.Create(ctx, owner, ComponentInput{
		Title:    "Pulse",
		Category: "animation",
		HTML:     `<i class="pulse"></i>`,
		CSS:      `.pulse{animation: p 1s infinite}`,
		Tags:     []string{"keyframes"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := res.Component.ID
	if id == "" || res.Component.UserID != owner || res.Diagnostics == nil || !res.Diagnostics.Clean() {
		t.Fatalf("unexpected create result %+v %+v", res.Component, res.Diagnostics)
	}

	_, err = svc.Update(ctx, other, id, ComponentInput{Title: "Stolen", Category: "animation"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("update by non-owner should be forbidden, got %v", err)
	}
	res, err = svc.Update(ctx, owner, id, ComponentInput{Title: "Pulse 2", Category: "animation", JS: `throw new Error("oops")`})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !strings.Contains(res.Diagnostics.ScriptError, "oops") {
		t.Fatalf("expected script diagnostics, got %+v", res.Diagnostics)
	}
	got, err := svc.Get(ctx, id)
	if err != nil || got.Title != "Pulse 2" || got.JS == "" {
		t.Fatalf("Get after update: %+v %v", got, err)
	}
	_, err = svc.Update(ctx, owner, "missing-id", ComponentInput{Title: "x", Category: "style"})
	if !errors.Is(err, gstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := svc.Delete(ctx, other, id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete by non-owner should be forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, owner, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, id); !errors.Is(err, gstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	want := []string{gevents.Event_ComponentCreated, gevents.Event_ComponentUpdated, gevents.Event_ComponentDeleted}
	if strings.Join(recorder.names(), ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events %v", recorder.names())
	}
}

func TestListAndSeed(t *testing.T) {
	svc, _ := initService(t)
	ctx := context.Background()
	n, err := svc.Seed(ctx)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if n != len(builtins) {
		t.Fatalf("seeded %d, want %d", n, len(builtins))
	}
	n, err = svc.Seed(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second seed should be a no-op: %d %v", n, err)
	}
	all, err := svc.List(ctx, CategoryAll, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != len(builtins) {
		t.Fatalf("listed %d, want %d", len(all), len(builtins))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].CreatedAt < all[i].CreatedAt {
			t.Fatalf("list not newest first at %d", i)
		}
	}
	styles, err := svc.List(ctx, "style", "")
	if err != nil {
		t.Fatalf("List style: %v", err)
	}
	for _, rec := range styles {
		if rec.Category != CategoryStyle || !rec.Builtin {
			t.Fatalf("unexpected record in style list %+v", rec)
		}
	}
	if len(styles) == 0 || len(styles) >= len(all) {
		t.Fatalf("style filter returned %d of %d", len(styles), len(all))
	}
	if _, err := svc.List(ctx, "Visual", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown category should be rejected, got %v", err)
	}
	mine, err := svc.List(ctx, "", "nobody")
	if err != nil || len(mine) != 0 {
		t.Fatalf("user filter: %d %v", len(mine), err)
	}
}

func TestHydrate(t *testing.T) {
	svc, _ := initService(t)
	ctx := context.Background()
	user := &gstore.UserRecord{Email: "ada@example.com", Username: "ada", AvatarPath: "https://cdn.example.com/ada.png"}
	if err := gstore.DBInsertUser(ctx, user); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	records := []*gstore.ComponentRecord{
		{ID: "1", Title: "one", Category: "style", UserID: user.ID, CreatedAt: 1_757_635_200_000},
		{ID: "2", Title: "two", Category: "other", UserID: "ghost"},
		{ID: "3", Title: "three", Category: "style", UserID: user.ID},
	}
	cards, err := svc.Hydrate(ctx, records)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("got %d cards", len(cards))
	}
	if cards[0].Author.Username != "ada" || cards[0].Author.AvatarURL != user.AvatarPath {
		t.Fatalf("unexpected author %+v", cards[0].Author)
	}
	if cards[0].Date != "2025-09-12" || cards[0].Category.Label != "Style" {
		t.Fatalf("unexpected card %+v", cards[0])
	}
	if cards[1].Author.Username != UnknownUser || cards[1].Author.AvatarURL != "" {
		t.Fatalf("missing user should be unknown, got %+v", cards[1].Author)
	}
	if cards[2].Author != cards[0].Author {
		t.Fatalf("same user should hydrate identically")
	}
}

func TestUserLookupIgnoresCallerCancel(t *testing.T) {
	svc, _ := initService(t)
	user := &gstore.UserRecord{Email: "grace@example.com", Username: "grace"}
	if err := gstore.DBInsertUser(context.Background(), user); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()
	got, err := svc.lookupUser(ctx, user.ID)
	if err != nil || got == nil || got.Username != "grace" {
		t.Fatalf("lookup shared by callers must not fail on one caller's cancel: %+v %v", got, err)
	}
}
