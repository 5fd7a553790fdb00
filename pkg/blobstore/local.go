// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"
)

const LocalURLPrefix = "/blob/"

var ErrBadSignature = errors.New("invalid blob signature")
var ErrExpiredSignature = errors.New("expired blob signature")

// LocalStore keeps blobs under a directory and signs URLs served by the web
// server's /blob/ route.
type LocalStore struct {
	dir    string
	secret []byte
	nowFn  func() time.Time
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore uses secret for signing, a random per-process secret when empty
// (signed urls then do not survive a restart).
func NewLocalStore(dir string, secret string) (*LocalStore, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating blob secret: %w", err)
		}
	}
	return &LocalStore{dir: dir, secret: key, nowFn: time.Now}, nil
}

func (s *LocalStore) Name() string {
	return "local"
}

func (s *LocalStore) fsPath(blobPath string) (string, string, error) {
	cleaned, err := CleanPath(blobPath)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(s.dir, filepath.FromSlash(cleaned)), nil
}

func (s *LocalStore) Put(ctx context.Context, blobPath string, r io.Reader, contentType string) error {
	_, fullPath, err := s.fsPath(blobPath)
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(fullPath), 0700)
	if err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	_, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing blob %s: %w", blobPath, errors.Join(copyErr, closeErr))
	}
	err = os.Rename(tmpName, fullPath)
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing blob %s: %w", blobPath, err)
	}
	return nil
}

func (s *LocalStore) Stat(ctx context.Context, blobPath string) (*ObjectInfo, error) {
	cleaned, fullPath, err := s.fsPath(blobPath)
	if err != nil {
		return nil, err
	}
	finfo, err := os.Stat(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", cleaned, ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	if finfo.IsDir() {
		return nil, fmt.Errorf("blob %s: %w", cleaned, ErrNotExist)
	}
	return &ObjectInfo{
		Path:        cleaned,
		Size:        finfo.Size(),
		ContentType: mime.TypeByExtension(path.Ext(cleaned)),
		ModTime:     finfo.ModTime(),
	}, nil
}

func (s *LocalStore) Open(ctx context.Context, blobPath string) (io.ReadCloser, *ObjectInfo, error) {
	info, err := s.Stat(ctx, blobPath)
	if err != nil {
		return nil, nil, err
	}
	fd, err := os.Open(filepath.Join(s.dir, filepath.FromSlash(info.Path)))
	if err != nil {
		return nil, nil, err
	}
	return fd, info, nil
}

func (s *LocalStore) Delete(ctx context.Context, blobPath string) error {
	cleaned, fullPath, err := s.fsPath(blobPath)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob %s: %w", cleaned, ErrNotExist)
	}
	return err
}

func (s *LocalStore) sign(cleaned string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", cleaned, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedURL returns /blob/<path>?exp=<unix>&sig=<hmac>.  the blob must exist.
func (s *LocalStore) SignedURL(ctx context.Context, blobPath string, ttl time.Duration) (string, error) {
	info, err := s.Stat(ctx, blobPath)
	if err != nil {
		return "", err
	}
	exp := s.nowFn().Add(ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.sign(info.Path, exp))
	return LocalURLPrefix + info.Path + "?" + q.Encode(), nil
}

// VerifySignature checks the exp/sig query values of a signed URL for blobPath.
func (s *LocalStore) VerifySignature(blobPath string, expStr string, sig string) error {
	cleaned, err := CleanPath(blobPath)
	if err != nil {
		return err
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	expected := s.sign(cleaned, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrBadSignature
	}
	if s.nowFn().Unix() > exp {
		return ErrExpiredSignature
	}
	return nil
}
