// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/launchdarkly/eventsource"
	"github.com/wavetermdev/snipgallery/pkg/authn"
	"github.com/wavetermdev/snipgallery/pkg/blobstore"
	"github.com/wavetermdev/snipgallery/pkg/gallery"
	"github.com/wavetermdev/snipgallery/pkg/gevents"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"github.com/wavetermdev/snipgallery/pkg/sconfig"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
	"github.com/wavetermdev/snipgallery/pkg/util/ds"
)

type WebFnType = func(http.ResponseWriter, *http.Request)

// Header constants
const (
	CacheControlHeaderKey     = "Cache-Control"
	CacheControlHeaderNoCache = "no-cache"

	ContentTypeHeaderKey = "Content-Type"
	ContentTypeJson      = "application/json"
	ContentTypeHtml      = "text/html; charset=utf-8"

	ContentLengthHeaderKey = "Content-Length"
	AuthorizationHeaderKey = "Authorization"

	ContentSecurityPolicyHeaderKey = "Content-Security-Policy"
	ContentTypeOptionsHeaderKey    = "X-Content-Type-Options"
	ETagHeaderKey                  = "ETag"
	IfNoneMatchHeaderKey           = "If-None-Match"
)

const HttpReadTimeout = 5 * time.Second
const HttpMaxHeaderBytes = 60000
const HttpTimeoutDuration = 21 * time.Second
const MaxJsonBodyBytes = 512 * 1024

type WebFnOpts struct {
	AllowCaching bool
	JsonErrors   bool
	NoTimeout    bool // streaming handlers (websocket, sse)
}

type ServerOpts struct {
	Gallery  *gallery.Service
	Auth     *authn.Provider
	Avatars  *blobstore.AvatarService
	Settings func() sconfig.SettingsType
	Broker   *gevents.Broker
}

type Server struct {
	gallery  *gallery.Service
	auth     *authn.Provider
	avatars  *blobstore.AvatarService
	settings func() sconfig.SettingsType
	broker   *gevents.Broker
	events   *eventsource.Server
	bridge   *eventBridge
	pages    *pageRenderer
	previews *ds.SyncMap[*previewSession]
	started  time.Time
}

func NewServer(opts ServerOpts) *Server {
	s := &Server{
		gallery:  opts.Gallery,
		auth:     opts.Auth,
		avatars:  opts.Avatars,
		settings: opts.Settings,
		broker:   opts.Broker,
		pages:    newPageRenderer(),
		previews: ds.MakeSyncMap[*previewSession](),
		started:  time.Now(),
	}
	if s.settings == nil {
		s.settings = sconfig.DefaultSettings
	}
	if s.broker == nil {
		s.broker = gevents.DefaultBroker
	}
	s.events = eventsource.NewServer()
	s.events.AllowCORS = snipbase.IsDevMode()
	s.bridge = startEventBridge(s.broker, s.events)
	return s
}

func (s *Server) Close() {
	s.previews.Range(func(connId string, ps *previewSession) {
		ps.close()
	})
	s.bridge.close()
	s.events.Close()
}

// StatusError carries an explicit http status through handler error returns.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...any) error {
	return &StatusError{Status: http.StatusBadRequest, Err: fmt.Errorf(format, args...)}
}

func httpStatusForErr(err error) int {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Status
	case errors.Is(err, gallery.ErrInvalidInput),
		errors.Is(err, authn.ErrInvalidEmail),
		errors.Is(err, authn.ErrWeakPassword),
		errors.Is(err, authn.ErrInvalidProfile),
		errors.Is(err, blobstore.ErrUnsupportedImage),
		errors.Is(err, blobstore.ErrAvatarTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, authn.ErrInvalidCredentials), errors.Is(err, authn.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, gallery.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, gstore.ErrNotFound), errors.Is(err, blobstore.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, gstore.ErrDuplicateEmail):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func marshalReturnValue(data any, err error) []byte {
	var mapRtn = make(map[string]any)
	if err != nil {
		mapRtn["error"] = err.Error()
	} else {
		mapRtn["success"] = true
		mapRtn["data"] = data
	}
	rtn, err := json.Marshal(mapRtn)
	if err != nil {
		return marshalReturnValue(nil, fmt.Errorf("error serializing response: %v", err))
	}
	return rtn
}

func writeJsonRtn(w http.ResponseWriter, data any, err error) {
	status := http.StatusOK
	if err != nil {
		status = httpStatusForErr(err)
		if status == http.StatusInternalServerError {
			log.Printf("[web] internal error: %v\n", err)
		}
	}
	jsonRtn := marshalReturnValue(data, err)
	w.Header().Set(ContentTypeHeaderKey, ContentTypeJson)
	w.Header().Set(ContentLengthHeaderKey, fmt.Sprintf("%d", len(jsonRtn)))
	w.WriteHeader(status)
	w.Write(jsonRtn)
}

// jsonHandler adapts a (data, error) returning function to the json envelope.
func jsonHandler(fn func(r *http.Request) (any, error)) WebFnType {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fn(r)
		writeJsonRtn(w, data, err)
	}
}

func readJsonBody(r *http.Request, dest any) error {
	defer r.Body.Close()
	bodyData, err := io.ReadAll(io.LimitReader(r.Body, MaxJsonBodyBytes+1))
	if err != nil {
		return badRequest("unable to read request body: %v", err)
	}
	if len(bodyData) > MaxJsonBodyBytes {
		return &StatusError{Status: http.StatusRequestEntityTooLarge, Err: fmt.Errorf("request body too large")}
	}
	err = json.Unmarshal(bodyData, dest)
	if err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func WebFnWrap(opts WebFnOpts, fn WebFnType) WebFnType {
	wrapped := func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recErr := recover()
			if recErr == nil {
				return
			}
			panicStr := fmt.Sprintf("panic: %v", recErr)
			log.Printf("[web] panic: %v\n", recErr)
			debug.PrintStack()
			if opts.JsonErrors {
				writeJsonRtn(w, nil, errors.New(panicStr))
			} else {
				http.Error(w, panicStr, http.StatusInternalServerError)
			}
		}()
		if !opts.AllowCaching {
			w.Header().Set(CacheControlHeaderKey, CacheControlHeaderNoCache)
		}
		fn(w, r)
	}
	if opts.NoTimeout {
		return wrapped
	}
	timeoutHandler := http.TimeoutHandler(http.HandlerFunc(wrapped), HttpTimeoutDuration, "Timeout")
	return timeoutHandler.ServeHTTP
}

func MakeTCPListener(serverAddr string) (net.Listener, error) {
	rtn, err := net.Listen("tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("error creating listener at %v: %v", serverAddr, err)
	}
	log.Printf("Server listening on %s\n", rtn.Addr())
	return rtn, nil
}

func (s *Server) Router() *mux.Router {
	gr := mux.NewRouter()
	page := WebFnOpts{}
	api := WebFnOpts{JsonErrors: true}
	stream := WebFnOpts{NoTimeout: true}

	gr.HandleFunc("/", WebFnWrap(page, s.handleGalleryPage)).Methods(http.MethodGet)
	gr.HandleFunc("/c/{id}", WebFnWrap(page, s.handleDetailPage)).Methods(http.MethodGet)
	gr.HandleFunc("/c/{id}/edit", WebFnWrap(page, s.handleEditPage)).Methods(http.MethodGet)
	gr.HandleFunc("/create", WebFnWrap(page, s.handleEditPage)).Methods(http.MethodGet)
	gr.HandleFunc("/signin", WebFnWrap(page, s.handleSigninPage)).Methods(http.MethodGet)
	gr.HandleFunc("/preview/{id}", WebFnWrap(WebFnOpts{}, s.handlePreviewDocument)).Methods(http.MethodGet)
	gr.HandleFunc("/blob/{path:.+}", WebFnWrap(WebFnOpts{AllowCaching: true}, s.handleBlob)).Methods(http.MethodGet)

	gr.HandleFunc("/api/preview", WebFnWrap(api, jsonHandler(s.handlePreview))).Methods(http.MethodPost)
	gr.HandleFunc("/api/categories", WebFnWrap(api, jsonHandler(s.handleCategories))).Methods(http.MethodGet)
	gr.HandleFunc("/api/components", WebFnWrap(api, jsonHandler(s.handleListComponents))).Methods(http.MethodGet)
	gr.HandleFunc("/api/components", WebFnWrap(api, jsonHandler(s.handleCreateComponent))).Methods(http.MethodPost)
	gr.HandleFunc("/api/components/{id}", WebFnWrap(api, jsonHandler(s.handleGetComponent))).Methods(http.MethodGet)
	gr.HandleFunc("/api/components/{id}", WebFnWrap(api, jsonHandler(s.handleUpdateComponent))).Methods(http.MethodPut)
	gr.HandleFunc("/api/components/{id}", WebFnWrap(api, jsonHandler(s.handleDeleteComponent))).Methods(http.MethodDelete)
	gr.HandleFunc("/api/auth/signup", WebFnWrap(api, s.handleSignUp)).Methods(http.MethodPost)
	gr.HandleFunc("/api/auth/signin", WebFnWrap(api, s.handleSignIn)).Methods(http.MethodPost)
	gr.HandleFunc("/api/auth/signout", WebFnWrap(api, s.handleSignOut)).Methods(http.MethodPost)
	gr.HandleFunc("/api/auth/me", WebFnWrap(api, jsonHandler(s.handleMe))).Methods(http.MethodGet)
	gr.HandleFunc("/api/auth/me", WebFnWrap(api, jsonHandler(s.handleUpdateMe))).Methods(http.MethodPatch)
	gr.HandleFunc("/api/users/{id}", WebFnWrap(api, jsonHandler(s.handleGetUser))).Methods(http.MethodGet)
	gr.HandleFunc("/api/avatar", WebFnWrap(api, jsonHandler(s.handleAvatarURL))).Methods(http.MethodGet)
	gr.HandleFunc("/api/avatar", WebFnWrap(api, jsonHandler(s.handleAvatarUpload))).Methods(http.MethodPost)
	gr.HandleFunc("/api/health", WebFnWrap(api, jsonHandler(s.handleHealth))).Methods(http.MethodGet)

	gr.HandleFunc("/api/events", WebFnWrap(stream, s.events.Handler(EventChannel))).Methods(http.MethodGet)
	gr.HandleFunc("/ws/preview", WebFnWrap(stream, s.handlePreviewWs))
	return gr
}

func (s *Server) Handler() http.Handler {
	var rtn http.Handler = s.Router()
	if snipbase.IsDevMode() {
		rtn = handlers.CombinedLoggingHandler(os.Stderr, rtn)
		rtn = handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}),
			handlers.AllowedHeaders([]string{AuthorizationHeaderKey, ContentTypeHeaderKey}),
		)(rtn)
	}
	return rtn
}

// blocking
func (s *Server) RunWebServer(listener net.Listener) error {
	server := &http.Server{
		ReadTimeout:    HttpReadTimeout,
		MaxHeaderBytes: HttpMaxHeaderBytes,
		Handler:        s.Handler(),
	}
	err := server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		log.Printf("ERROR: %v\n", err)
		return err
	}
	return nil
}
