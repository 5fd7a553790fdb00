// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package ds

import (
	"sort"
	"sync"
)

// SyncMap is a string-keyed map guarded by a mutex.
type SyncMap[T any] struct {
	lock sync.Mutex
	m    map[string]T
}

func MakeSyncMap[T any]() *SyncMap[T] {
	return &SyncMap[T]{m: make(map[string]T)}
}

func (sm *SyncMap[T]) Set(key string, value T) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	sm.m[key] = value
}

func (sm *SyncMap[T]) Get(key string) (T, bool) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	v, ok := sm.m[key]
	return v, ok
}

// Pop removes key and returns the value it held.
func (sm *SyncMap[T]) Pop(key string) (T, bool) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	v, ok := sm.m[key]
	delete(sm.m, key)
	return v, ok
}

func (sm *SyncMap[T]) Len() int {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return len(sm.m)
}

// Keys returns a sorted snapshot of the keys.
func (sm *SyncMap[T]) Keys() []string {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	rtn := make([]string, 0, len(sm.m))
	for key := range sm.m {
		rtn = append(rtn, key)
	}
	sort.Strings(rtn)
	return rtn
}

// Range calls fn on a snapshot of the entries, without holding the lock.
func (sm *SyncMap[T]) Range(fn func(key string, value T)) {
	sm.lock.Lock()
	snapshot := make(map[string]T, len(sm.m))
	for k, v := range sm.m {
		snapshot[k] = v
	}
	sm.lock.Unlock()
	for k, v := range snapshot {
		fn(k, v)
	}
}
