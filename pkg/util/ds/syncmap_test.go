// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package ds

import (
	"strings"
	"testing"
)

func TestSyncMap(t *testing.T) {
	sm := MakeSyncMap[int]()
	sm.Set("b", 2)
	sm.Set("a", 1)
	if v, ok := sm.Get("a"); !ok || v != 1 {
		t.Fatalf("expected 1, got %d %v", v, ok)
	}
	if _, ok := sm.Get("missing"); ok {
		t.Fatalf("missing key reported present")
	}
	if got := strings.Join(sm.Keys(), ","); got != "a,b" {
		t.Fatalf("keys = %q", got)
	}
	sum := 0
	sm.Range(func(key string, value int) {
		sum += value
		sm.Set(key+"x", value) // Range must not hold the lock
	})
	if sum != 3 || sm.Len() != 4 {
		t.Fatalf("sum=%d len=%d", sum, sm.Len())
	}
	if v, ok := sm.Pop("b"); !ok || v != 2 {
		t.Fatalf("pop: %d %v", v, ok)
	}
	if _, ok := sm.Pop("b"); ok {
		t.Fatalf("second pop should miss")
	}
}
