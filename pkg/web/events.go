// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/launchdarkly/eventsource"
	"github.com/wavetermdev/snipgallery/pkg/gevents"
	"github.com/wavetermdev/snipgallery/pkg/panichandler"
)

const EventChannel = "gallery"
const eventBridgeQueueSize = 64

type sseEvent struct {
	id    string
	event string
	data  string
}

func (e *sseEvent) Id() string    { return e.id }
func (e *sseEvent) Event() string { return e.event }
func (e *sseEvent) Data() string  { return e.data }

var _ eventsource.Event = (*sseEvent)(nil)

// eventBridge forwards broker events to the sse server.  SendEvent never
// blocks the publisher, events are dropped when the queue is full.
type eventBridge struct {
	clientId string
	broker   *gevents.Broker
	server   *eventsource.Server
	queue    chan gevents.Event
	seq      atomic.Int64
	dropped  atomic.Int64
	doneCh   chan struct{}
}

var _ gevents.Client = (*eventBridge)(nil)

func startEventBridge(broker *gevents.Broker, server *eventsource.Server) *eventBridge {
	b := &eventBridge{
		clientId: "sse-" + uuid.NewString(),
		broker:   broker,
		server:   server,
		queue:    make(chan gevents.Event, eventBridgeQueueSize),
		doneCh:   make(chan struct{}),
	}
	for _, eventType := range gevents.AllEvents {
		broker.Subscribe(b, gevents.SubscriptionRequest{Event: eventType, AllScopes: true})
	}
	go b.run()
	return b
}

func (b *eventBridge) ClientId() string {
	return b.clientId
}

func (b *eventBridge) SendEvent(event gevents.Event) {
	select {
	case b.queue <- event:
	default:
		b.dropped.Add(1)
	}
}

func (b *eventBridge) run() {
	defer func() {
		panichandler.PanicHandlerNoError("eventBridge:run", recover())
	}()
	for {
		select {
		case event := <-b.queue:
			barr, err := json.Marshal(event)
			if err != nil {
				log.Printf("[web] cannot marshal event %s: %v\n", event.Event, err)
				continue
			}
			id := fmt.Sprintf("%d", b.seq.Add(1))
			b.server.Publish([]string{EventChannel}, &sseEvent{id: id, event: event.Event, data: string(barr)})
		case <-b.doneCh:
			return
		}
	}
}

func (b *eventBridge) close() {
	b.broker.UnsubscribeAll(b)
	close(b.doneCh)
}
