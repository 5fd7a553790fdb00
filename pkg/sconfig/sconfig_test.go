// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package sconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavetermdev/snipgallery/pkg/render/isolation"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
)

func writeSettings(t *testing.T, dir string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte(content), 0644))
}

func TestMissingFileUsesDefaults(t *testing.T) {
	snipbase.Listen_VarCache = ""
	full := ReadFullConfigFromDir(t.TempDir())
	require.Empty(t, full.ConfigErrors)
	require.Equal(t, DefaultSettings(), full.Settings)
	require.Equal(t, 192, full.Settings.PreviewCardHeight)
	require.Equal(t, 300, full.Settings.PreviewDetailHeight)
	require.Equal(t, isolation.StrategyFrame, full.Settings.Isolation())
}

func TestSettingsOverlay(t *testing.T) {
	snipbase.Listen_VarCache = ""
	dir := t.TempDir()
	writeSettings(t, dir, `{
		"render:isolation": "rewrite",
		"preview:debouncems": 50,
		"blob:backend": "s3",
		"blob:bucket": "avatars",
		"blob:region": "us-west-2"
	}`)
	full := ReadFullConfigFromDir(dir)
	require.Empty(t, full.ConfigErrors)
	s := full.Settings
	require.Equal(t, isolation.StrategyRewrite, s.Isolation())
	require.EqualValues(t, 50, s.DebounceDuration().Milliseconds())
	require.Equal(t, BlobBackendS3, s.BlobBackend)
	require.Equal(t, "avatars", s.BlobBucket)
	require.Equal(t, 192, s.PreviewCardHeight, "unset keys keep defaults")
}

func TestBadValuesFallBack(t *testing.T) {
	snipbase.Listen_VarCache = ""
	dir := t.TempDir()
	writeSettings(t, dir, `{
		"render:isolation": "iframe",
		"preview:cardheight": -1,
		"blob:backend": "s3",
		"term:fontsize": 12
	}`)
	full := ReadFullConfigFromDir(dir)
	var errs []string
	for _, cerr := range full.ConfigErrors {
		errs = append(errs, cerr.Err)
	}
	joined := strings.Join(errs, "\n")
	require.Contains(t, joined, `unknown key "term:fontsize"`)
	require.Contains(t, joined, ConfigKey_RenderIsolation)
	require.Contains(t, joined, ConfigKey_PreviewCardHeight)
	require.Contains(t, joined, ConfigKey_BlobBucket)
	require.Equal(t, string(isolation.DefaultStrategy), full.Settings.RenderIsolation)
	require.Equal(t, 192, full.Settings.PreviewCardHeight)
	require.Equal(t, BlobBackendLocal, full.Settings.BlobBackend)
}

func TestParseErrorKeepsDefaults(t *testing.T) {
	snipbase.Listen_VarCache = ""
	dir := t.TempDir()
	writeSettings(t, dir, `{"preview:cardheight": `)
	full := ReadFullConfigFromDir(dir)
	require.Len(t, full.ConfigErrors, 1)
	require.Contains(t, full.ConfigErrors[0].Err, "parse error")
	require.Equal(t, DefaultSettings(), full.Settings)
}

func TestListenEnvOverride(t *testing.T) {
	snipbase.Listen_VarCache = "0.0.0.0:9000"
	defer func() {
		snipbase.Listen_VarCache = ""
	}()
	dir := t.TempDir()
	writeSettings(t, dir, `{"web:listen": "127.0.0.1:1"}`)
	require.Equal(t, "0.0.0.0:9000", ReadFullConfigFromDir(dir).Settings.WebListen)
}

func TestWatcherReload(t *testing.T) {
	snipbase.Listen_VarCache = ""
	dir := t.TempDir()
	w := NewWatcher(dir)
	defer w.Close()
	var seen []int
	w.OnUpdate(func(update FullConfigType) {
		seen = append(seen, update.Settings.PreviewCardHeight)
	})
	require.Equal(t, 192, w.GetSettings().PreviewCardHeight)
	writeSettings(t, dir, `{"preview:cardheight": 240}`)
	w.Reload()
	require.Equal(t, 240, w.GetSettings().PreviewCardHeight)
	require.Equal(t, []int{240}, seen)
}

func TestWriteDefaultSettings(t *testing.T) {
	snipbase.Listen_VarCache = ""
	dir := t.TempDir()
	written, err := WriteDefaultSettings(dir)
	require.NoError(t, err)
	require.True(t, written)
	written, err = WriteDefaultSettings(dir)
	require.NoError(t, err)
	require.False(t, written, "existing settings must not be overwritten")
	full := ReadFullConfigFromDir(dir)
	require.Empty(t, full.ConfigErrors)
	require.Equal(t, DefaultSettings(), full.Settings)
}

func TestSettingsSchema(t *testing.T) {
	barr, err := SettingsSchema()
	require.NoError(t, err)
	schema := string(barr)
	require.Contains(t, schema, `"preview:cardheight"`)
	require.Contains(t, schema, `"frame"`)
	require.Contains(t, schema, `"additionalProperties": false`)
}
