// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package blobstore holds uploaded files (avatars) and hands out short-lived
// signed URLs for them.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"
)

var ErrNotExist = fs.ErrNotExist

type ObjectInfo struct {
	Path        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

type Store interface {
	Name() string
	Put(ctx context.Context, blobPath string, r io.Reader, contentType string) error
	Open(ctx context.Context, blobPath string) (io.ReadCloser, *ObjectInfo, error)
	Stat(ctx context.Context, blobPath string) (*ObjectInfo, error)
	Delete(ctx context.Context, blobPath string) error
	SignedURL(ctx context.Context, blobPath string, ttl time.Duration) (string, error)
}

var validSegmentRe = regexp.MustCompile(`^[a-zA-Z0-9_@.-]+$`)

// CleanPath validates a relative, slash separated blob path.
func CleanPath(blobPath string) (string, error) {
	if blobPath == "" {
		return "", fmt.Errorf("empty blob path")
	}
	if strings.HasPrefix(blobPath, "/") || strings.Contains(blobPath, "\\") {
		return "", fmt.Errorf("invalid blob path %q", blobPath)
	}
	cleaned := path.Clean(blobPath)
	for _, seg := range strings.Split(cleaned, "/") {
		if seg == "." || seg == ".." || !validSegmentRe.MatchString(seg) {
			return "", fmt.Errorf("invalid blob path %q", blobPath)
		}
	}
	return cleaned, nil
}
