// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/wavetermdev/snipgallery/pkg/authn"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
)

const SessionCookieName = "snip_session"

func getSessionToken(r *http.Request) string {
	authHeader := r.Header.Get(AuthorizationHeaderKey)
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err == nil {
		return cookie.Value
	}
	return ""
}

// currentUser is nil (with no error) for anonymous requests and for requests
// carrying a stale token.
func (s *Server) currentUser(r *http.Request) *gstore.UserRecord {
	token := getSessionToken(r)
	if token == "" || s.auth == nil {
		return nil
	}
	user, err := s.auth.CurrentUser(r.Context(), token)
	if err != nil {
		return nil
	}
	return user
}

func (s *Server) requireUser(r *http.Request) (*gstore.UserRecord, error) {
	user := s.currentUser(r)
	if user == nil {
		return nil, authn.ErrUnauthenticated
	}
	return user, nil
}

func setSessionCookie(w http.ResponseWriter, session *authn.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  time.UnixMilli(session.ExpiresAt),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
