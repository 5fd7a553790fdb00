// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wavetermdev/snipgallery/pkg/gallery"
	"github.com/wavetermdev/snipgallery/pkg/panichandler"
	"github.com/wavetermdev/snipgallery/pkg/render"
	"github.com/wavetermdev/snipgallery/pkg/render/dom"
	"github.com/wavetermdev/snipgallery/pkg/render/isolation"
	"github.com/wavetermdev/snipgallery/pkg/render/jsvm"
	"github.com/wavetermdev/snipgallery/pkg/util/logutil"
)

const wsReadWaitTimeout = 15 * time.Second
const wsWriteWaitTimeout = 10 * time.Second
const wsPingPeriodTickTime = 10 * time.Second
const wsInitialPingTime = 1 * time.Second
const wsOutputChSize = 100

const (
	PreviewMsg_Source    = "source"
	PreviewMsg_Preview   = "preview"
	PreviewMsg_Unchanged = "unchanged"
	PreviewMsg_Error     = "error"
)

var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:   4 * 1024,
	WriteBufferSize:  32 * 1024,
	HandshakeTimeout: 1 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

type PreviewSourceMsg struct {
	Type      string `json:"type"`
	Seq       int    `json:"seq"`
	HTML      string `json:"html"`
	CSS       string `json:"css"`
	JS        string `json:"js"`
	Isolation string `json:"isolation,omitempty"`
}

type PreviewResultMsg struct {
	Type        string               `json:"type"`
	Seq         int                  `json:"seq"`
	Strategy    isolation.Strategy   `json:"strategy,omitempty"`
	Fragment    string               `json:"fragment,omitempty"`
	Diagnostics *gallery.Diagnostics `json:"diagnostics,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// previewSession owns one headless Instance per connection.  edits are
// debounced, unchanged sources are skipped by Instance.Update, and results
// whose ticket went stale before they were ready are dropped.
type previewSession struct {
	connId    string
	server    *Server
	outputCh  chan any
	closeCh   chan any
	debounce  time.Duration
	lock      sync.Mutex
	timer     *time.Timer
	pending   *PreviewSourceMsg
	closed    bool
	page      *jsvm.Page
	runner    *jsvm.Runner
	container *dom.Container
	inst      *render.Instance
	timerErrs []string
}

func newPreviewSession(server *Server, outputCh chan any, closeCh chan any) *previewSession {
	settings := server.settings()
	ps := &previewSession{
		connId:   uuid.New().String(),
		server:   server,
		outputCh: outputCh,
		closeCh:  closeCh,
		debounce: settings.DebounceDuration(),
	}
	ps.page = jsvm.NewPage()
	ps.page.SetUnhandledErrorHandler(func(scopeId string, err error) {
		ps.timerErrs = append(ps.timerErrs, gallery.ScriptMessage(err))
	})
	var runnerOpts []jsvm.RunnerOption
	if settings.ScriptTimeout() > 0 {
		runnerOpts = append(runnerOpts, jsvm.WithTimeLimit(settings.ScriptTimeout()))
	}
	ps.runner = jsvm.NewRunner(ps.page, runnerOpts...)
	scopeId := isolation.NewScopeId()
	opts := append(isolation.ContainerOptions(isolation.StrategyRewrite, scopeId), dom.WithScriptRunner(ps.runner))
	ps.container = dom.NewContainer(scopeId, opts...)
	ps.inst = render.NewInstance("preview-"+ps.connId, ps.container)
	return ps
}

func (ps *previewSession) send(msg any) {
	select {
	case ps.outputCh <- msg:
	case <-ps.closeCh:
	default:
		log.Printf("[preview] %s output queue full, dropping message\n", ps.connId)
	}
}

func (ps *previewSession) submit(msg *PreviewSourceMsg) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	if ps.closed {
		return
	}
	ps.pending = msg
	if ps.timer != nil {
		ps.timer.Stop()
	}
	if ps.debounce <= 0 {
		go ps.fire()
		return
	}
	ps.timer = time.AfterFunc(ps.debounce, ps.fire)
}

// fire renders the latest pending source.  the rebuild and its ticket are
// taken under the session lock so an older fire cannot claim a newer generation.
func (ps *previewSession) fire() {
	defer func() {
		panichandler.PanicHandlerNoError("previewSession:fire", recover())
	}()
	ps.lock.Lock()
	msg := ps.pending
	ps.pending = nil
	if msg == nil || ps.closed {
		ps.lock.Unlock()
		return
	}
	src := render.ComponentSource{HTML: msg.HTML, CSS: msg.CSS, JS: msg.JS}
	ps.timerErrs = nil
	report := ps.inst.Update(src)
	if report.Skipped {
		ps.lock.Unlock()
		ps.send(PreviewResultMsg{Type: PreviewMsg_Unchanged, Seq: msg.Seq})
		return
	}
	ps.page.Advance(gallery.DryRunWindow)
	diag := gallery.Diagnose(src, report, ps.runner.Console(ps.container), ps.timerErrs)
	ticket := ps.inst.Ticket()
	ps.lock.Unlock()
	go ps.finish(ticket, msg, src, diag)
}

func (ps *previewSession) finish(ticket render.Ticket, msg *PreviewSourceMsg, src render.ComponentSource, diag *gallery.Diagnostics) {
	defer func() {
		panichandler.PanicHandlerNoError("previewSession:finish", recover())
	}()
	settings := ps.server.settings()
	strategy := settings.Isolation()
	if msg.Isolation != "" {
		if parsed, err := isolation.ParseStrategy(msg.Isolation); err == nil {
			strategy = parsed
		}
	}
	result := PreviewResultMsg{Type: PreviewMsg_Preview, Seq: msg.Seq, Strategy: strategy, Diagnostics: diag}
	embedded, err := isolation.Embed(strategy, isolation.NewScopeId(), src, isolation.EmbedOpts{Height: settings.PreviewDetailHeight, Title: "preview"})
	if err != nil {
		result = PreviewResultMsg{Type: PreviewMsg_Error, Seq: msg.Seq, Error: err.Error()}
	} else {
		result.Fragment = embedded.Markup
	}
	applied := ps.inst.ApplyIfCurrent(ticket, func() {
		ps.send(result)
	})
	if !applied {
		logutil.DevPrintf("[preview] %s dropping stale result for seq %d\n", ps.connId, msg.Seq)
	}
}

func (ps *previewSession) close() {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	if ps.closed {
		return
	}
	ps.closed = true
	if ps.timer != nil {
		ps.timer.Stop()
	}
	ps.pending = nil
	ps.inst.Unmount()
}

func getMessageType(jmsg map[string]any) string {
	if str, ok := jmsg["type"].(string); ok {
		return str
	}
	return ""
}

func (ps *previewSession) processMessage(message []byte) {
	var msg PreviewSourceMsg
	err := json.Unmarshal(message, &msg)
	if err != nil {
		ps.send(PreviewResultMsg{Type: PreviewMsg_Error, Error: fmt.Sprintf("invalid message: %v", err)})
		return
	}
	if msg.Type != PreviewMsg_Source {
		ps.send(PreviewResultMsg{Type: PreviewMsg_Error, Seq: msg.Seq, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
		return
	}
	ps.submit(&msg)
}

func (ps *previewSession) ReadLoop(conn *websocket.Conn) {
	readWait := wsReadWaitTimeout
	conn.SetReadLimit(256 * 1024)
	conn.SetReadDeadline(time.Now().Add(readWait))
	defer close(ps.closeCh)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[preview] ReadPump error: %v\n", err)
			}
			break
		}
		jmsg := map[string]any{}
		err = json.Unmarshal(message, &jmsg)
		if err != nil {
			log.Printf("[preview] Error unmarshalling json: %v\n", err)
			break
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		msgType := getMessageType(jmsg)
		if msgType == "pong" {
			// nothing
			continue
		}
		if msgType == "ping" {
			now := time.Now()
			pongMessage := map[string]any{"type": "pong", "stime": now.UnixMilli()}
			ps.send(pongMessage)
			continue
		}
		ps.processMessage(message)
	}
}

func WritePing(conn *websocket.Conn) error {
	now := time.Now()
	pingMessage := map[string]any{"type": "ping", "stime": now.UnixMilli()}
	jsonVal, _ := json.Marshal(pingMessage)
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout)) // no error
	return conn.WriteMessage(websocket.TextMessage, jsonVal)
}

func (ps *previewSession) WriteLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(wsInitialPingTime)
	defer ticker.Stop()
	initialPing := true
	for {
		select {
		case msg := <-ps.outputCh:
			barr, err := json.Marshal(msg)
			if err != nil {
				log.Printf("[preview] cannot marshal websocket message: %v\n", err)
				// just loop again
				break
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout))
			err = conn.WriteMessage(websocket.TextMessage, barr)
			if err != nil {
				conn.Close()
				log.Printf("[preview] WritePump error: %v\n", err)
				return
			}

		case <-ticker.C:
			err := WritePing(conn)
			if err != nil {
				log.Printf("[preview] WritePump error: %v\n", err)
				return
			}
			if initialPing {
				initialPing = false
				ticker.Reset(wsPingPeriodTickTime)
			}

		case <-ps.closeCh:
			return
		}
	}
}

func (s *Server) handlePreviewWs(w http.ResponseWriter, r *http.Request) {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the http error
		log.Printf("[preview] websocket upgrade failed: %v\n", err)
		return
	}
	defer conn.Close()
	ps := newPreviewSession(s, make(chan any, wsOutputChSize), make(chan any))
	s.previews.Set(ps.connId, ps)
	defer func() {
		s.previews.Pop(ps.connId)
		ps.close()
	}()
	log.Printf("[preview] new websocket connection: connid:%s\n", ps.connId)
	wg := &sync.WaitGroup{}
	wg.Add(2)
	go func() {
		// read loop
		defer wg.Done()
		ps.ReadLoop(conn)
	}()
	go func() {
		// write loop
		defer wg.Done()
		ps.WriteLoop(conn)
	}()
	wg.Wait()
}
