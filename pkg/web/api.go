// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/wavetermdev/snipgallery/pkg/authn"
	"github.com/wavetermdev/snipgallery/pkg/blobstore"
	"github.com/wavetermdev/snipgallery/pkg/gallery"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"github.com/wavetermdev/snipgallery/pkg/render"
	"github.com/wavetermdev/snipgallery/pkg/render/isolation"
)

type PreviewRequest struct {
	HTML      string `json:"html"`
	CSS       string `json:"css"`
	JS        string `json:"js"`
	Isolation string `json:"isolation,omitempty"`
	Height    int    `json:"height,omitempty"`
}

type PreviewResponse struct {
	Strategy    isolation.Strategy   `json:"strategy"`
	ScopeId     string               `json:"scopeid"`
	Document    string               `json:"document"`
	Fragment    string               `json:"fragment"`
	Diagnostics *gallery.Diagnostics `json:"diagnostics"`
}

type PublicUser struct {
	ID            string                      `json:"id"`
	Username      string                      `json:"username"`
	AvatarURL     string                      `json:"avatarurl,omitempty"`
	Sex           string                      `json:"sex,omitempty"`
	IsOfficial    bool                        `json:"isofficial,omitempty"`
	DefaultAvatar blobstore.DefaultAvatarInfo `json:"defaultavatar"`
}

type ComponentDetail struct {
	Card    *gallery.Card     `json:"card"`
	Nav     gallery.Neighbors `json:"nav"`
	CanEdit bool              `json:"canedit"`
}

type AuthRequest struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Profile  authn.Profile `json:"profile"`
}

// buildPreview renders src for the browser and dry-runs it headlessly for diagnostics.
func (s *Server) buildPreview(req PreviewRequest) (*PreviewResponse, error) {
	settings := s.settings()
	strategy := settings.Isolation()
	if req.Isolation != "" {
		var err error
		strategy, err = isolation.ParseStrategy(req.Isolation)
		if err != nil {
			return nil, badRequest("%v", err)
		}
	}
	height := req.Height
	if height <= 0 {
		height = settings.PreviewDetailHeight
	}
	src := render.ComponentSource{HTML: req.HTML, CSS: req.CSS, JS: req.JS}
	scopeId := isolation.NewScopeId()
	doc, _ := isolation.FrameDocument(scopeId, src)
	embedded, err := isolation.Embed(strategy, scopeId, src, isolation.EmbedOpts{Height: height, Title: "preview"})
	if err != nil {
		return nil, err
	}
	return &PreviewResponse{
		Strategy:    strategy,
		ScopeId:     scopeId,
		Document:    doc,
		Fragment:    embedded.Markup,
		Diagnostics: gallery.DryRun(src, settings.ScriptTimeout()),
	}, nil
}

func (s *Server) handlePreview(r *http.Request) (any, error) {
	var req PreviewRequest
	if err := readJsonBody(r, &req); err != nil {
		return nil, err
	}
	return s.buildPreview(req)
}

func (s *Server) handleCategories(r *http.Request) (any, error) {
	return gallery.Categories, nil
}

func (s *Server) listCards(ctx context.Context, category string, userId string) ([]*gallery.Card, []*gstore.ComponentRecord, error) {
	records, err := s.gallery.List(ctx, category, userId)
	if err != nil {
		return nil, nil, err
	}
	cards, err := s.gallery.Hydrate(ctx, records)
	if err != nil {
		return nil, nil, err
	}
	return cards, records, nil
}

func (s *Server) handleListComponents(r *http.Request) (any, error) {
	q := r.URL.Query()
	cards, _, err := s.listCards(r.Context(), q.Get("category"), q.Get("user"))
	return cards, err
}

func (s *Server) componentDetail(r *http.Request, id string) (*ComponentDetail, error) {
	rec, err := s.gallery.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	cards, err := s.gallery.Hydrate(r.Context(), []*gstore.ComponentRecord{rec})
	if err != nil {
		return nil, err
	}
	rtn := &ComponentDetail{Card: cards[0]}
	records, err := s.gallery.List(r.Context(), r.URL.Query().Get("category"), "")
	if err == nil {
		rtn.Nav = gallery.Navigate(records, id)
	} else {
		rtn.Nav = gallery.Neighbors{Index: -1}
	}
	if user := s.currentUser(r); user != nil && user.ID == rec.UserID {
		rtn.CanEdit = true
	}
	return rtn, nil
}

func (s *Server) handleGetComponent(r *http.Request) (any, error) {
	return s.componentDetail(r, mux.Vars(r)["id"])
}

func (s *Server) handleCreateComponent(r *http.Request) (any, error) {
	user, err := s.requireUser(r)
	if err != nil {
		return nil, err
	}
	var input gallery.ComponentInput
	if err := readJsonBody(r, &input); err != nil {
		return nil, err
	}
	return s.gallery.Create(r.Context(), user.ID, input)
}

func (s *Server) handleUpdateComponent(r *http.Request) (any, error) {
	user, err := s.requireUser(r)
	if err != nil {
		return nil, err
	}
	var input gallery.ComponentInput
	if err := readJsonBody(r, &input); err != nil {
		return nil, err
	}
	return s.gallery.Update(r.Context(), user.ID, mux.Vars(r)["id"], input)
}

func (s *Server) handleDeleteComponent(r *http.Request) (any, error) {
	user, err := s.requireUser(r)
	if err != nil {
		return nil, err
	}
	id := mux.Vars(r)["id"]
	err = s.gallery.Delete(r.Context(), user.ID, id)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

func (s *Server) publicUser(ctx context.Context, user *gstore.UserRecord) *PublicUser {
	return &PublicUser{
		ID:            user.ID,
		Username:      user.Username,
		AvatarURL:     s.avatars.URL(ctx, user.AvatarPath),
		Sex:           user.Sex,
		IsOfficial:    user.IsOfficial,
		DefaultAvatar: blobstore.DefaultAvatar(user.Username),
	}
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := readJsonBody(r, &req); err != nil {
		writeJsonRtn(w, nil, err)
		return
	}
	// official accounts are created with snipctl useradd --official
	req.Profile.IsOfficial = false
	_, err := s.auth.SignUp(r.Context(), req.Email, req.Password, req.Profile)
	if err != nil {
		writeJsonRtn(w, nil, err)
		return
	}
	session, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeJsonRtn(w, nil, err)
		return
	}
	setSessionCookie(w, session)
	writeJsonRtn(w, session, nil)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := readJsonBody(r, &req); err != nil {
		writeJsonRtn(w, nil, err)
		return
	}
	session, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeJsonRtn(w, nil, err)
		return
	}
	setSessionCookie(w, session)
	writeJsonRtn(w, session, nil)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := getSessionToken(r)
	clearSessionCookie(w)
	if token == "" {
		writeJsonRtn(w, nil, authn.ErrUnauthenticated)
		return
	}
	err := s.auth.SignOut(token)
	writeJsonRtn(w, map[string]bool{"signedout": err == nil}, err)
}

func (s *Server) handleMe(r *http.Request) (any, error) {
	return s.requireUser(r)
}

func (s *Server) handleUpdateMe(r *http.Request) (any, error) {
	user, err := s.requireUser(r)
	if err != nil {
		return nil, err
	}
	var update authn.ProfileUpdate
	if err := readJsonBody(r, &update); err != nil {
		return nil, err
	}
	return s.auth.UpdateProfile(r.Context(), user.ID, update)
}

func (s *Server) handleGetUser(r *http.Request) (any, error) {
	user, err := gstore.DBGetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	return s.publicUser(r.Context(), user), nil
}

func (s *Server) handleAvatarURL(r *http.Request) (any, error) {
	return map[string]string{"url": s.avatars.URL(r.Context(), r.URL.Query().Get("path"))}, nil
}

func avatarUploadReader(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(ContentTypeHeaderKey))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, nil
	}
	err := r.ParseMultipartForm(blobstore.MaxAvatarBytes + 4096)
	if err != nil {
		return nil, badRequest("invalid multipart upload: %v", err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest("missing file field: %v", err)
	}
	return file, nil
}

func (s *Server) handleAvatarUpload(r *http.Request) (any, error) {
	user, err := s.requireUser(r)
	if err != nil {
		return nil, err
	}
	reader, err := avatarUploadReader(r)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	blobPath, err := s.avatars.Upload(r.Context(), user.ID, reader)
	if err != nil {
		return nil, fmt.Errorf("avatar upload: %w", err)
	}
	_, err = s.auth.UpdateProfile(r.Context(), user.ID, authn.ProfileUpdate{AvatarPath: &blobPath})
	if err != nil {
		return nil, err
	}
	return map[string]string{"path": blobPath, "url": s.avatars.URL(r.Context(), blobPath)}, nil
}
