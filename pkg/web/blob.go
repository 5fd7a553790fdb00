// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wavetermdev/snipgallery/pkg/blobstore"
)

// handleBlob serves local blobs behind signed urls.  with the s3 backend the
// signed urls point at s3 directly and this route answers 404.
func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	local, ok := s.avatars.Store().(*blobstore.LocalStore)
	if !ok {
		http.NotFound(w, r)
		return
	}
	blobPath := mux.Vars(r)["path"]
	q := r.URL.Query()
	err := local.VerifySignature(blobPath, q.Get("exp"), q.Get("sig"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	rc, info, err := local.Open(r.Context(), blobPath)
	if errors.Is(err, blobstore.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer rc.Close()
	if info.ContentType != "" {
		w.Header().Set(ContentTypeHeaderKey, info.ContentType)
	}
	w.Header().Set(CacheControlHeaderKey, "private, max-age=60")
	if seeker, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, info.Path, info.ModTime, seeker)
		return
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}
