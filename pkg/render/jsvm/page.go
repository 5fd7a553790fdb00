// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package jsvm

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/wavetermdev/snipgallery/pkg/panichandler"
)

// upper bound on callbacks run by one Advance, stops self-rescheduling timers from spinning forever
const MaxTimerRunsPerAdvance = 10000

// UnhandledErrorFn receives errors thrown by timer callbacks.  they belong to
// the page, never to the renderer that mounted the script.
type UnhandledErrorFn func(scopeId string, err error)

// Page is the page-level event loop shared by every script scope on a page.
// time is virtual: it only moves when Advance is called.
type Page struct {
	lock      *sync.Mutex
	now       time.Duration
	seq       int
	timers    *binaryheap.Heap // of *timerEntry, ordered by due time then seq
	byId      map[int]*timerEntry
	onError   UnhandledErrorFn
	errors    []UnhandledError
	maxErrors int
}

type UnhandledError struct {
	ScopeId string
	Err     error
}

type timerEntry struct {
	id       int
	scopeId  string
	due      time.Duration
	callback func() error
}

func timerComparator(aArg, bArg any) int {
	a := aArg.(*timerEntry)
	b := bArg.(*timerEntry)
	if a.due != b.due {
		if a.due < b.due {
			return -1
		}
		return 1
	}
	return a.id - b.id
}

func NewPage() *Page {
	return &Page{
		lock:      &sync.Mutex{},
		timers:    binaryheap.NewWith(timerComparator),
		byId:      make(map[int]*timerEntry),
		maxErrors: 100,
	}
}

func (p *Page) SetUnhandledErrorHandler(fn UnhandledErrorFn) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.onError = fn
}

func (p *Page) Now() time.Duration {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.now
}

// Pending returns the number of timers still queued.
func (p *Page) Pending() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.byId)
}

// Errors returns the most recent unhandled errors (oldest first).
func (p *Page) Errors() []UnhandledError {
	p.lock.Lock()
	defer p.lock.Unlock()
	rtn := make([]UnhandledError, len(p.errors))
	copy(rtn, p.errors)
	return rtn
}

func (p *Page) schedule(scopeId string, delay time.Duration, callback func() error) int {
	p.lock.Lock()
	defer p.lock.Unlock()
	if delay < 0 {
		delay = 0
	}
	p.seq++
	entry := &timerEntry{id: p.seq, scopeId: scopeId, due: p.now + delay, callback: callback}
	p.timers.Push(entry)
	p.byId[entry.id] = entry
	return entry.id
}

// cancel only removes the index entry, the heap entry is skipped when popped
func (p *Page) cancel(scopeId string, id int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	entry, ok := p.byId[id]
	if ok && entry.scopeId == scopeId {
		delete(p.byId, id)
	}
}

// DropScope discards every pending timer created by scopeId.
func (p *Page) DropScope(scopeId string) int {
	p.lock.Lock()
	defer p.lock.Unlock()
	count := 0
	for id, entry := range p.byId {
		if entry.scopeId == scopeId {
			delete(p.byId, id)
			count++
		}
	}
	return count
}

func (p *Page) popDue_nolock(limit time.Duration) *timerEntry {
	for !p.timers.Empty() {
		topI, _ := p.timers.Peek()
		top := topI.(*timerEntry)
		if top.due > limit {
			return nil
		}
		p.timers.Pop()
		if _, live := p.byId[top.id]; !live {
			continue
		}
		delete(p.byId, top.id)
		return top
	}
	return nil
}

// Advance moves virtual time forward by d, running every timer that comes due
// in order.  callbacks run on the caller's goroutine.  returns the number of
// callbacks run.
func (p *Page) Advance(d time.Duration) int {
	p.lock.Lock()
	limit := p.now + d
	p.lock.Unlock()
	runs := 0
	for runs < MaxTimerRunsPerAdvance {
		p.lock.Lock()
		entry := p.popDue_nolock(limit)
		if entry == nil {
			p.now = limit
			p.lock.Unlock()
			return runs
		}
		p.now = entry.due
		p.lock.Unlock()
		runs++
		if err := panichandler.Guard("jsvm timer "+entry.scopeId, entry.callback); err != nil {
			p.reportError(entry.scopeId, err)
		}
	}
	log.Printf("[jsvm] timer run limit reached, %d timers still pending\n", p.Pending())
	p.lock.Lock()
	p.now = limit
	p.lock.Unlock()
	return runs
}

// Flush runs timers due now without moving time forward (setTimeout(fn, 0)).
func (p *Page) Flush() int {
	return p.Advance(0)
}

func (p *Page) reportError(scopeId string, err error) {
	p.lock.Lock()
	p.errors = append(p.errors, UnhandledError{ScopeId: scopeId, Err: err})
	if len(p.errors) > p.maxErrors {
		p.errors = p.errors[len(p.errors)-p.maxErrors:]
	}
	handler := p.onError
	p.lock.Unlock()
	if handler != nil {
		handler(scopeId, err)
		return
	}
	log.Printf("[jsvm] unhandled error in %s: %v\n", scopeId, err)
}

func (u UnhandledError) String() string {
	return fmt.Sprintf("%s: %v", u.ScopeId, u.Err)
}
