// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package snipbase

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheAndRemoveEnvVars(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(SnipDataHomeEnvVar, dataDir)
	t.Setenv(SnipDevVarName, "1")
	err := CacheAndRemoveEnvVars()
	if err != nil {
		t.Fatalf("cache env vars: %v", err)
	}
	if GetSnipDataDir() != dataDir {
		t.Fatalf("data dir = %q, want %q", GetSnipDataDir(), dataDir)
	}
	if GetSnipConfigDir() != filepath.Join(dataDir, ConfigDir) {
		t.Fatalf("config dir defaulted wrong: %q", GetSnipConfigDir())
	}
	if !IsDevMode() {
		t.Fatalf("expected dev mode")
	}
	if os.Getenv(SnipDataHomeEnvVar) != "" {
		t.Fatalf("env var should have been removed")
	}
}

func TestTryMkdirsRejectsFile(t *testing.T) {
	dir := t.TempDir()
	fileName := filepath.Join(dir, "notadir")
	if err := os.WriteFile(fileName, []byte("x"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := TryMkdirs(fileName, 0700, "test dir"); err == nil {
		t.Fatalf("expected error for regular file")
	}
	if err := TryMkdirs(filepath.Join(dir, "a", "b"), 0700, "test dir"); err != nil {
		t.Fatalf("mkdirs: %v", err)
	}
}

func TestAcquireSnipLock(t *testing.T) {
	DataHome_VarCache = t.TempDir()
	lock, err := AcquireSnipLock()
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer lock.Close()
	_, err = AcquireSnipLock()
	if err == nil {
		t.Fatalf("second lock should fail")
	}
}
