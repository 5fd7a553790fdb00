// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package dbutil

import (
	"testing"
)

type testRow struct {
	ID      string
	Desc    string `dbmap:"descr"`
	Tags    []string
	Count   int64
	Enabled bool
	Skip    string `dbmap:"-"`
}

func (r *testRow) UseDBMap() {}

func TestToDBMap(t *testing.T) {
	m := ToDBMap(&testRow{ID: "r1", Desc: "d", Count: 3, Enabled: true, Skip: "x"})
	if m["id"] != "r1" || m["descr"] != "d" || m["count"] != int64(3) || m["enabled"] != true {
		t.Fatalf("unexpected map %v", m)
	}
	if m["tags"] != "[]" {
		t.Fatalf("nil slice should encode as [], got %v", m["tags"])
	}
	if _, ok := m["skip"]; ok {
		t.Fatalf("skipped field present")
	}
}

func TestFromDBMap(t *testing.T) {
	var row testRow
	err := FromDBMap(&row, map[string]any{
		"id":      []byte("r2"),
		"descr":   "text",
		"tags":    `["a","b"]`,
		"count":   int64(7),
		"enabled": int64(1),
	})
	if err != nil {
		t.Fatalf("FromDBMap: %v", err)
	}
	if row.ID != "r2" || row.Desc != "text" || row.Count != 7 || !row.Enabled || len(row.Tags) != 2 {
		t.Fatalf("unexpected row %#v", row)
	}
	err = FromDBMap(&row, map[string]any{"tags": "{not json"})
	if err == nil {
		t.Fatalf("expected an error for bad json")
	}
}
