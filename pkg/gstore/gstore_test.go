// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package gstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func initDb(t *testing.T) {
	t.Logf("initializing db for %q", t.Name())
	err := OpenGStore(filepath.Join(t.TempDir(), GStoreDBName))
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") || strings.Contains(err.Error(), "requires cgo") {
			t.Skipf("gstore tests require sqlite/cgo: %v", err)
		}
		t.Fatalf("error initializing gstore: %v", err)
	}
	t.Cleanup(func() {
		CloseGStore()
	})
}

func TestComponentCrud(t *testing.T) {
	initDb(t)
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()

	rec := &ComponentRecord{
		Title:    "Gradient Divider",
		Category: "style",
		Desc:     "a soft divider",
		HTML:     `<div class="divider"></div>`,
		CSS:      ".divider{height:1px}",
		Tags:     []string{"divider", "gradient"},
		UserID:   "u1",
	}
	err := DBInsertComponent(ctx, rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt == 0 || rec.UpdatedAt != rec.CreatedAt {
		t.Fatalf("insert should assign id and timestamps: %#v", rec)
	}
	got, err := DBGetComponent(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != rec.Title || got.Desc != rec.Desc || got.CSS != rec.CSS || got.UserID != "u1" {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if len(got.Tags) != 2 || got.Tags[1] != "gradient" {
		t.Fatalf("tags not stored: %#v", got.Tags)
	}

	got.Title = "Divider"
	got.JS = "console.log(1)"
	got.UserID = "someone-else"
	err = DBUpdateComponent(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _ := DBGetComponent(ctx, rec.ID)
	if updated.Title != "Divider" || updated.JS != "console.log(1)" {
		t.Fatalf("update not applied: %#v", updated)
	}
	if updated.UserID != "u1" || updated.CreatedAt != rec.CreatedAt {
		t.Fatalf("owner and creation time must not change: %#v", updated)
	}

	err = DBDeleteComponent(ctx, rec.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = DBGetComponent(ctx, rec.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := DBDeleteComponent(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := DBUpdateComponent(ctx, rec); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update of deleted record, got %v", err)
	}
}

func TestListComponentsOrderAndFilter(t *testing.T) {
	initDb(t)
	ctx := context.Background()
	base := time.Now().UnixMilli()
	inputs := []*ComponentRecord{
		{Title: "oldest", Category: "style", UserID: "a", CreatedAt: base - 3000},
		{Title: "middle", Category: "animation", UserID: "b", CreatedAt: base - 2000},
		{Title: "newest", Category: "style", UserID: "b", CreatedAt: base - 1000},
	}
	for _, rec := range inputs {
		if err := DBInsertComponent(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	all, err := DBListComponents(ctx, ComponentFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var titles []string
	for _, rec := range all {
		titles = append(titles, rec.Title)
	}
	if strings.Join(titles, ",") != "newest,middle,oldest" {
		t.Fatalf("expected newest first, got %v", titles)
	}
	styles, _ := DBListComponents(ctx, ComponentFilter{Category: "style"})
	if len(styles) != 2 || styles[0].Title != "newest" {
		t.Fatalf("category filter wrong: %d", len(styles))
	}
	byB, _ := DBListComponents(ctx, ComponentFilter{Category: "style", UserID: "b"})
	if len(byB) != 1 || byB[0].Title != "newest" {
		t.Fatalf("combined filter wrong: %d", len(byB))
	}
	count, _ := DBCountComponents(ctx)
	if count != 3 {
		t.Fatalf("count = %d", count)
	}
	none, err := DBListComponents(ctx, ComponentFilter{Category: "copywriting"})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list: %v %v", none, err)
	}
}

func TestUsers(t *testing.T) {
	initDb(t)
	ctx := context.Background()
	user := &UserRecord{Email: " Ada@Example.com ", PasswordHash: "hash", Username: "ada"}
	if err := DBInsertUser(ctx, user); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	dup := &UserRecord{Email: "ADA@example.com", PasswordHash: "x", Username: "other"}
	if err := DBInsertUser(ctx, dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
	byEmail, err := DBGetUserByEmail(ctx, "ada@EXAMPLE.com")
	if err != nil || byEmail.ID != user.ID || byEmail.PasswordHash != "hash" {
		t.Fatalf("lookup by email: %#v %v", byEmail, err)
	}

	byEmail.Username = "Ada L."
	byEmail.AvatarPath = "avatars/ada.png"
	byEmail.IsOfficial = true
	byEmail.Email = "changed@example.com"
	if err := DBUpdateUser(ctx, byEmail); err != nil {
		t.Fatalf("update user: %v", err)
	}
	got, _ := DBGetUser(ctx, user.ID)
	if got.Username != "Ada L." || got.AvatarPath != "avatars/ada.png" || !got.IsOfficial || got.Email != "ada@example.com" {
		t.Fatalf("unexpected user after update: %#v", got)
	}

	users, err := DBGetUsers(ctx, []string{user.ID, "missing"})
	if err != nil {
		t.Fatalf("get users: %v", err)
	}
	if len(users) != 1 || users[user.ID] == nil {
		t.Fatalf("expected only the existing user, got %v", users)
	}
	if _, err := DBGetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := DBUpdateUser(ctx, &UserRecord{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
