// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"fmt"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type Config struct {
	Backend  string
	LocalDir string
	Secret   string
	S3       S3Opts
}

// Open returns the store selected by cfg.Backend.  an empty backend is local.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("local blob store needs a directory")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Secret)
	case BackendS3:
		return NewS3Store(ctx, cfg.S3)
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
}
