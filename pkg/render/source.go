// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package render

import "strings"

// ComponentSource is one renderable snippet.  all fields are untrusted and optional.
type ComponentSource struct {
	HTML string `json:"html,omitempty"`
	CSS  string `json:"css,omitempty"`
	JS   string `json:"js,omitempty"`
}

func (s ComponentSource) HasHTML() bool {
	return strings.TrimSpace(s.HTML) != ""
}

func (s ComponentSource) HasCSS() bool {
	return strings.TrimSpace(s.CSS) != ""
}

func (s ComponentSource) HasJS() bool {
	return strings.TrimSpace(s.JS) != ""
}

// whitespace-only fields count as empty
func (s ComponentSource) IsEmpty() bool {
	return !s.HasHTML() && !s.HasCSS() && !s.HasJS()
}

func (s ComponentSource) Equal(other ComponentSource) bool {
	return s.HTML == other.HTML && s.CSS == other.CSS && s.JS == other.JS
}
