// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavetermdev/snipgallery/pkg/render"
	"github.com/wavetermdev/snipgallery/pkg/render/isolation"
)

func TestReadSource(t *testing.T) {
	src, err := readSource(strings.NewReader(`{"html":"<b>hi</b>","css":"b{color:red}"}`))
	require.NoError(t, err)
	require.Equal(t, "<b>hi</b>", src.HTML)
	require.Equal(t, "b{color:red}", src.CSS)
	require.Empty(t, src.JS)

	_, err = readSource(strings.NewReader(`<b>not json</b>`))
	require.Error(t, err)
}

func TestRenderSourceMarkup(t *testing.T) {
	src := render.ComponentSource{HTML: `<p class="note">hello</p>`, CSS: `.note{color:red}`}
	output, clean, err := renderSource(src, isolation.StrategyShadow, false, 120)
	require.NoError(t, err)
	require.True(t, clean)
	require.Contains(t, output, "hello")
	require.Contains(t, output, "height:120px")

	output, _, err = renderSource(src, isolation.StrategyFrame, false, 0)
	require.NoError(t, err)
	require.Contains(t, output, "srcdoc=")
}

func TestRenderSourceHeadless(t *testing.T) {
	src := render.ComponentSource{HTML: `<p>x</p>`, CSS: `p{margin:0}`, JS: `throw new Error("nope")`}
	output, clean, err := renderSource(src, isolation.StrategyRewrite, true, 0)
	require.NoError(t, err)
	require.False(t, clean)
	var report HeadlessReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	require.Equal(t, isolation.StrategyRewrite, report.Strategy)
	require.Contains(t, report.Diagnostics.ScriptError, "nope")
	require.NotEmpty(t, report.Diagnostics.Leaky)

	output, clean, err = renderSource(render.ComponentSource{}, isolation.StrategyRewrite, true, 0)
	require.NoError(t, err)
	require.True(t, clean)
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	require.True(t, report.Placeholder)
}

func TestGalleryURL(t *testing.T) {
	require.Equal(t, "http://127.0.0.1:8190/", galleryURL(":8190", ""))
	require.Equal(t, "http://localhost:9000/c/a%2Fb", galleryURL("localhost:9000", "a/b"))
}
