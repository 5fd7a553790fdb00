// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// gallery pubsub system
package gevents

import (
	"slices"
	"sync"
	"time"
)

const (
	Event_ComponentCreated = "component:created"
	Event_ComponentUpdated = "component:updated"
	Event_ComponentDeleted = "component:deleted"
)

var AllEvents = []string{Event_ComponentCreated, Event_ComponentUpdated, Event_ComponentDeleted}

type Event struct {
	Event  string   `json:"event"`
	Scopes []string `json:"scopes,omitempty"`
	Ts     int64    `json:"ts"`
	Data   any      `json:"data,omitempty"`
}

type SubscriptionRequest struct {
	Event     string   `json:"event"`
	Scopes    []string `json:"scopes,omitempty"`
	AllScopes bool     `json:"allscopes,omitempty"`
}

type Client interface {
	ClientId() string
	SendEvent(event Event)
}

type brokerSubscription struct {
	AllSubs   []string            // clientids subscribed to every scope
	ScopeSubs map[string][]string // clientids subscribed to specific scopes
}

func (bs *brokerSubscription) isEmpty() bool {
	return len(bs.AllSubs) == 0 && len(bs.ScopeSubs) == 0
}

type Broker struct {
	lock      *sync.Mutex
	clientMap map[string]Client
	subMap    map[string]*brokerSubscription
}

var DefaultBroker = MakeBroker()

func MakeBroker() *Broker {
	return &Broker{
		lock:      &sync.Mutex{},
		clientMap: make(map[string]Client),
		subMap:    make(map[string]*brokerSubscription),
	}
}

func addUniq(list []string, elem string) []string {
	if slices.Contains(list, elem) {
		return list
	}
	return append(list, elem)
}

func removeElem(list []string, elem string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == elem })
}

func (b *Broker) Subscribe(subscriber Client, sub SubscriptionRequest) {
	b.lock.Lock()
	defer b.lock.Unlock()
	clientId := subscriber.ClientId()
	b.clientMap[clientId] = subscriber
	bs := b.subMap[sub.Event]
	if bs == nil {
		bs = &brokerSubscription{ScopeSubs: make(map[string][]string)}
		b.subMap[sub.Event] = bs
	}
	if sub.AllScopes {
		bs.AllSubs = addUniq(bs.AllSubs, clientId)
	}
	for _, scope := range sub.Scopes {
		bs.ScopeSubs[scope] = addUniq(bs.ScopeSubs[scope], clientId)
	}
}

func (b *Broker) Unsubscribe(subscriber Client, sub SubscriptionRequest) {
	b.lock.Lock()
	defer b.lock.Unlock()
	clientId := subscriber.ClientId()
	bs := b.subMap[sub.Event]
	if bs == nil {
		return
	}
	if sub.AllScopes {
		bs.AllSubs = removeElem(bs.AllSubs, clientId)
	}
	for _, scope := range sub.Scopes {
		scopeSubs := removeElem(bs.ScopeSubs[scope], clientId)
		if len(scopeSubs) == 0 {
			delete(bs.ScopeSubs, scope)
		} else {
			bs.ScopeSubs[scope] = scopeSubs
		}
	}
	if bs.isEmpty() {
		delete(b.subMap, sub.Event)
	}
}

func (b *Broker) UnsubscribeAll(subscriber Client) {
	b.lock.Lock()
	defer b.lock.Unlock()
	clientId := subscriber.ClientId()
	delete(b.clientMap, clientId)
	for eventType, bs := range b.subMap {
		bs.AllSubs = removeElem(bs.AllSubs, clientId)
		for scope, scopeSubs := range bs.ScopeSubs {
			scopeSubs = removeElem(scopeSubs, clientId)
			if len(scopeSubs) == 0 {
				delete(bs.ScopeSubs, scope)
			} else {
				bs.ScopeSubs[scope] = scopeSubs
			}
		}
		if bs.isEmpty() {
			delete(b.subMap, eventType)
		}
	}
}

// Publish delivers event to every matching subscriber.  SendEvent is called
// outside the broker lock, so clients may (un)subscribe from inside it.
func (b *Broker) Publish(event Event) {
	if event.Ts == 0 {
		event.Ts = time.Now().UnixMilli()
	}
	for _, client := range b.getMatchingClients(event) {
		client.SendEvent(event)
	}
}

func (b *Broker) getMatchingClients(event Event) []Client {
	b.lock.Lock()
	defer b.lock.Unlock()
	bs := b.subMap[event.Event]
	if bs == nil {
		return nil
	}
	clientIds := make(map[string]bool)
	for _, clientId := range bs.AllSubs {
		clientIds[clientId] = true
	}
	for _, scope := range event.Scopes {
		for _, clientId := range bs.ScopeSubs[scope] {
			clientIds[clientId] = true
		}
	}
	var rtn []Client
	for clientId := range clientIds {
		if client := b.clientMap[clientId]; client != nil {
			rtn = append(rtn, client)
		}
	}
	return rtn
}
