// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"

	"github.com/google/uuid"
)

const (
	AvatarURLTTL   = 60 * time.Second
	MaxAvatarBytes = 2 * 1024 * 1024
	AvatarPrefix   = "avatars"
)

var ErrUnsupportedImage = errors.New("unsupported image type")
var ErrAvatarTooLarge = errors.New("avatar exceeds size limit")

var avatarExts = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var AvatarPalette = []string{
	"#3B82F6",
	"#EF4444",
	"#10B981",
	"#F59E0B",
	"#8B5CF6",
	"#EC4899",
	"#06B6D4",
	"#84CC16",
}

type AvatarService struct {
	store Store
	ttl   time.Duration
}

func NewAvatarService(store Store) *AvatarService {
	return &AvatarService{store: store, ttl: AvatarURLTTL}
}

func (a *AvatarService) Store() Store {
	return a.store
}

func IsAbsoluteURL(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// URL resolves a stored avatar path to something a browser can load.  failures
// are logged and resolve to "" so callers fall back to the default avatar.
func (a *AvatarService) URL(ctx context.Context, avatarPath string) string {
	if avatarPath == "" {
		return ""
	}
	if IsAbsoluteURL(avatarPath) {
		return avatarPath
	}
	if a == nil || a.store == nil {
		return ""
	}
	signed, err := a.store.SignedURL(ctx, avatarPath, a.ttl)
	if err != nil {
		log.Printf("[avatar] cannot sign %q: %v\n", avatarPath, err)
		return ""
	}
	return signed
}

// Upload stores an avatar image for userId and returns its blob path.
func (a *AvatarService) Upload(ctx context.Context, userId string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty avatar upload")
	}
	if len(data) > MaxAvatarBytes {
		return "", ErrAvatarTooLarge
	}
	contentType := http.DetectContentType(data)
	ext, ok := avatarExts[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}
	if _, err := uuid.Parse(userId); err != nil {
		return "", fmt.Errorf("invalid user id %q", userId)
	}
	blobPath := AvatarPrefix + "/" + userId + "/" + uuid.NewString() + ext
	err = a.store.Put(ctx, blobPath, bytes.NewReader(data), contentType)
	if err != nil {
		return "", err
	}
	return blobPath, nil
}

type DefaultAvatarInfo struct {
	Letter string `json:"letter"`
	Color  string `json:"color"`
}

// DefaultAvatar picks the placeholder letter and colour for a user without
// an avatar image.  the colour is stable for a given name.
func DefaultAvatar(name string) DefaultAvatarInfo {
	name = strings.TrimSpace(name)
	letter := "?"
	for _, ch := range name {
		letter = string(unicode.ToUpper(ch))
		break
	}
	var hash int64
	for _, unit := range utf16.Encode([]rune(name)) {
		shifted := int32(uint32(int32(hash)) << 5)
		hash = int64(unit) + int64(shifted) - hash
	}
	idx := hash
	if idx < 0 {
		idx = -idx
	}
	return DefaultAvatarInfo{
		Letter: letter,
		Color:  AvatarPalette[idx%int64(len(AvatarPalette))],
	}
}
