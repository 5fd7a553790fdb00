// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package gstore

import (
	"errors"
	"time"

	"github.com/wavetermdev/snipgallery/pkg/render"
	"github.com/wavetermdev/snipgallery/pkg/util/dbutil"
)

var ErrNotFound = errors.New("not found")
var ErrDuplicateEmail = errors.New("email already registered")

type ComponentRecord struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Desc       string   `json:"desc,omitempty" dbmap:"descr"`
	HTML       string   `json:"html,omitempty"`
	CSS        string   `json:"css,omitempty"`
	JS         string   `json:"js,omitempty"`
	Tags       []string `json:"tags"`
	OriginLink string   `json:"originlink,omitempty"`
	UserID     string   `json:"userid,omitempty"`
	Builtin    bool     `json:"builtin,omitempty"`
	CreatedAt  int64    `json:"createdat"`
	UpdatedAt  int64    `json:"updatedat"`
}

func (c *ComponentRecord) UseDBMap() {}

func (c *ComponentRecord) Source() render.ComponentSource {
	return render.ComponentSource{HTML: c.HTML, CSS: c.CSS, JS: c.JS}
}

func (c *ComponentRecord) CreatedTime() time.Time {
	return time.UnixMilli(c.CreatedAt)
}

type UserRecord struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Username     string `json:"username"`
	AvatarPath   string `json:"avatarpath,omitempty"`
	Sex          string `json:"sex,omitempty"`
	IsOfficial   bool   `json:"isofficial,omitempty"`
	CreatedAt    int64  `json:"createdat"`
}

func (u *UserRecord) UseDBMap() {}

type ComponentFilter struct {
	Category string // "" for any
	UserID   string // "" for any
}

var _ dbutil.DBMappable = (*ComponentRecord)(nil)
var _ dbutil.DBMappable = (*UserRecord)(nil)
