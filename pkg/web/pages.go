// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/wavetermdev/snipgallery/pkg/gallery"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"github.com/wavetermdev/snipgallery/pkg/render/isolation"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
)

//go:embed templates/*.html
var templateFS embed.FS

type pageRenderer struct {
	tmpl *template.Template
}

func newPageRenderer() *pageRenderer {
	funcs := template.FuncMap{
		"categoryURL": func(key string) string {
			if key == gallery.CategoryAll {
				return "/"
			}
			return "/?category=" + url.QueryEscape(key)
		},
		"inc": func(n int) int {
			return n + 1
		},
		// colours come from the fixed category and avatar palettes
		"safeCSS": func(s string) template.CSS {
			return template.CSS(s)
		},
	}
	tmpl := template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
	return &pageRenderer{tmpl: tmpl}
}

type pageBase struct {
	Title      string
	Version    string
	User       *gstore.UserRecord
	Categories []gallery.Category
	Selected   string
}

type cardView struct {
	*gallery.Card
	Preview template.HTML
}

type galleryPage struct {
	pageBase
	Cards []cardView
}

type detailPage struct {
	pageBase
	Card    cardView
	Nav     gallery.Neighbors
	CanEdit bool
}

type editPage struct {
	pageBase
	Component  *gstore.ComponentRecord
	Assignable []gallery.Category
	DebounceMs int
	Height     int
}

type signinPage struct {
	pageBase
	Next string
}

func (p *pageRenderer) write(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	err := p.tmpl.ExecuteTemplate(&buf, name, data)
	if err != nil {
		log.Printf("[web] template %s: %v\n", name, err)
		http.Error(w, "error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set(ContentTypeHeaderKey, ContentTypeHtml)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) base(r *http.Request, title string, selected string) pageBase {
	return pageBase{
		Title:      title,
		Version:    snipbase.SnipVersion,
		User:       s.currentUser(r),
		Categories: gallery.Categories,
		Selected:   selected,
	}
}

func pageError(w http.ResponseWriter, err error) {
	status := httpStatusForErr(err)
	if status == http.StatusInternalServerError {
		log.Printf("[web] page error: %v\n", err)
	}
	http.Error(w, http.StatusText(status), status)
}

// embedCard renders the preview markup for one record.  the frame strategy
// loads /preview/{id} instead of inlining a srcdoc.
func (s *Server) embedCard(card *gallery.Card, height int) cardView {
	strategy := s.settings().Isolation()
	rec := card.Component
	opts := isolation.EmbedOpts{Height: height, Title: rec.Title}
	if strategy == isolation.StrategyFrame {
		opts.URL = "/preview/" + url.PathEscape(rec.ID)
	}
	embedded, err := isolation.Embed(strategy, isolation.NewScopeId(), rec.Source(), opts)
	if err != nil {
		log.Printf("[web] embed %s: %v\n", rec.ID, err)
		return cardView{Card: card}
	}
	// markup is produced by the renderer, every snippet value inside it is escaped or sandboxed
	return cardView{Card: card, Preview: template.HTML(embedded.Markup)}
}

func (s *Server) handleGalleryPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("signin") {
		http.Redirect(w, r, signinURL(r.URL.Query().Get("next")), http.StatusFound)
		return
	}
	category := r.URL.Query().Get("category")
	if category == "" {
		category = gallery.CategoryAll
	}
	cards, _, err := s.listCards(r.Context(), category, "")
	if err != nil {
		pageError(w, err)
		return
	}
	height := s.settings().PreviewCardHeight
	views := make([]cardView, 0, len(cards))
	for _, card := range cards {
		views = append(views, s.embedCard(card, height))
	}
	s.pages.write(w, "gallery.html", galleryPage{
		pageBase: s.base(r, "Snippet Gallery", category),
		Cards:    views,
	})
}

func (s *Server) handleDetailPage(w http.ResponseWriter, r *http.Request) {
	detail, err := s.componentDetail(r, mux.Vars(r)["id"])
	if err != nil {
		pageError(w, err)
		return
	}
	category := r.URL.Query().Get("category")
	if category == "" {
		category = gallery.CategoryAll
	}
	s.pages.write(w, "detail.html", detailPage{
		pageBase: s.base(r, detail.Card.Component.Title, category),
		Card:     s.embedCard(detail.Card, s.settings().PreviewDetailHeight),
		Nav:      detail.Nav,
		CanEdit:  detail.CanEdit,
	})
}

func (s *Server) handleEditPage(w http.ResponseWriter, r *http.Request) {
	user := s.currentUser(r)
	if user == nil {
		http.Redirect(w, r, signinURL(r.URL.Path), http.StatusFound)
		return
	}
	rec := &gstore.ComponentRecord{Category: gallery.CategoryStyle}
	title := "New snippet"
	if id, ok := mux.Vars(r)["id"]; ok {
		existing, err := s.gallery.Get(r.Context(), id)
		if err != nil {
			pageError(w, err)
			return
		}
		if existing.UserID != user.ID {
			pageError(w, fmt.Errorf("editing %s: %w", id, gallery.ErrForbidden))
			return
		}
		rec = existing
		title = "Edit " + existing.Title
	}
	settings := s.settings()
	var assignable []gallery.Category
	for _, cat := range gallery.Categories {
		if gallery.IsAssignableCategory(cat.Key) {
			assignable = append(assignable, cat)
		}
	}
	page := editPage{
		pageBase:   s.base(r, title, ""),
		Component:  rec,
		Assignable: assignable,
		DebounceMs: settings.PreviewDebounceMs,
		Height:     settings.PreviewDetailHeight,
	}
	page.pageBase.User = user
	s.pages.write(w, "edit.html", page)
}

// localNext only allows same-site paths as a post sign-in target.
func localNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func signinURL(next string) string {
	next = localNext(next)
	if next == "/" {
		return "/signin"
	}
	return "/signin?next=" + url.QueryEscape(next)
}

func (s *Server) handleSigninPage(w http.ResponseWriter, r *http.Request) {
	next := localNext(r.URL.Query().Get("next"))
	if s.currentUser(r) != nil {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}
	s.pages.write(w, "signin.html", signinPage{
		pageBase: s.base(r, "Sign in", ""),
		Next:     next,
	})
}

// PreviewDocumentCSP keeps the snippet document on an opaque origin also when
// it is opened directly rather than through a card iframe.
const PreviewDocumentCSP = "sandbox allow-scripts"

func previewETag(rec *gstore.ComponentRecord) string {
	return fmt.Sprintf(`"%s-%d"`, rec.ID, rec.UpdatedAt)
}

func etagMatches(ifNoneMatch string, etag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(candidate), "W/"))
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}

func (s *Server) handlePreviewDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := s.gallery.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, gstore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		pageError(w, err)
		return
	}
	etag := previewETag(rec)
	w.Header().Set(ContentSecurityPolicyHeaderKey, PreviewDocumentCSP)
	w.Header().Set(ContentTypeOptionsHeaderKey, "nosniff")
	w.Header().Set(ETagHeaderKey, etag)
	if etagMatches(r.Header.Get(IfNoneMatchHeaderKey), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	doc, _ := isolation.FrameDocument(isolation.NewScopeId(), rec.Source())
	w.Header().Set(ContentTypeHeaderKey, ContentTypeHtml)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
