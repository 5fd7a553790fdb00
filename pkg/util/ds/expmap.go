// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package ds

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/binaryheap"
)

// an ExpMap has "expiring" keys.  expired keys are dropped lazily on access,
// so memory is bounded by the number of live keys plus stale heap entries.
type ExpMap[T any] struct {
	lock    *sync.Mutex
	expHeap *binaryheap.Heap // heap of expEntries (sorted by time)
	m       map[string]expMapEntry[T]
	nowFn   func() time.Time
}

type expMapEntry[T any] struct {
	Val T
	Exp time.Time
}

type expEntry struct {
	Key string
	Exp time.Time
}

func heapComparator(aArg, bArg any) int {
	a := aArg.(expEntry)
	b := bArg.(expEntry)
	if a.Exp.Before(b.Exp) {
		return -1
	} else if a.Exp.After(b.Exp) {
		return 1
	}
	return 0
}

func MakeExpMap[T any]() *ExpMap[T] {
	return MakeExpMapWithClock[T](time.Now)
}

// MakeExpMapWithClock is MakeExpMap with an injectable clock (tests)
func MakeExpMapWithClock[T any](nowFn func() time.Time) *ExpMap[T] {
	return &ExpMap[T]{
		lock:    &sync.Mutex{},
		expHeap: binaryheap.NewWith(heapComparator),
		m:       make(map[string]expMapEntry[T]),
		nowFn:   nowFn,
	}
}

func (em *ExpMap[T]) Set(key string, value T, exp time.Time) {
	em.lock.Lock()
	defer em.lock.Unlock()
	em.expireItems_nolock()
	oldEntry, ok := em.m[key]
	em.m[key] = expMapEntry[T]{Val: value, Exp: exp}
	if !ok || !oldEntry.Exp.Equal(exp) {
		em.expHeap.Push(expEntry{Key: key, Exp: exp}) // this might create duplicates.  that's ok.
	}
}

func (em *ExpMap[T]) expireItems_nolock() {
	now := em.nowFn()
	for !em.expHeap.Empty() {
		topI, _ := em.expHeap.Peek()
		top := topI.(expEntry)
		if top.Exp.After(now) {
			break
		}
		em.expHeap.Pop()
		entry, ok := em.m[top.Key]
		// a later Set may have extended the key, only the current expiration counts
		if ok && !entry.Exp.After(now) {
			delete(em.m, top.Key)
		}
	}
}

func (em *ExpMap[T]) Get(key string) (T, bool) {
	em.lock.Lock()
	defer em.lock.Unlock()
	em.expireItems_nolock()
	v, ok := em.m[key]
	return v.Val, ok
}

func (em *ExpMap[T]) Has(key string) bool {
	_, ok := em.Get(key)
	return ok
}

func (em *ExpMap[T]) Delete(key string) {
	em.lock.Lock()
	defer em.lock.Unlock()
	delete(em.m, key)
}

// Len returns the number of unexpired keys.
func (em *ExpMap[T]) Len() int {
	em.lock.Lock()
	defer em.lock.Unlock()
	em.expireItems_nolock()
	return len(em.m)
}
