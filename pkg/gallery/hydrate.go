// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package gallery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wavetermdev/snipgallery/pkg/blobstore"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"golang.org/x/sync/errgroup"
)

const (
	UnknownUser        = "Unknown User"
	HydrateConcurrency = 8
	CardDateFormat     = "2006-01-02"
)

const userLookupTimeout = 5 * time.Second

type Author struct {
	ID         string                      `json:"id,omitempty"`
	Username   string                      `json:"username"`
	AvatarURL  string                      `json:"avatarurl,omitempty"`
	IsOfficial bool                        `json:"isofficial,omitempty"`
	Default    blobstore.DefaultAvatarInfo `json:"defaultavatar"`
}

type Card struct {
	Component *gstore.ComponentRecord `json:"component"`
	Category  Category                `json:"category"`
	Author    Author                  `json:"author"`
	Date      string                  `json:"date"`
}

func unknownAuthor(id string) Author {
	return Author{ID: id, Username: UnknownUser, Default: blobstore.DefaultAvatar(UnknownUser)}
}

// lookupUser collapses concurrent lookups of the same user.  a missing user is
// (nil, nil).  the shared flight does not inherit any caller's cancellation.
func (s *Service) lookupUser(ctx context.Context, id string) (*gstore.UserRecord, error) {
	val, err, _ := s.userGroup.Do(id, func() (any, error) {
		flightCtx, cancelFn := context.WithTimeout(context.WithoutCancel(ctx), userLookupTimeout)
		defer cancelFn()
		user, err := gstore.DBGetUser(flightCtx, id)
		if errors.Is(err, gstore.ErrNotFound) {
			return (*gstore.UserRecord)(nil), nil
		}
		return user, err
	})
	if err != nil {
		return nil, err
	}
	return val.(*gstore.UserRecord), nil
}

func (s *Service) ResolveAuthor(ctx context.Context, id string) (Author, error) {
	if id == "" {
		return unknownAuthor(""), nil
	}
	user, err := s.lookupUser(ctx, id)
	if err != nil {
		return Author{}, err
	}
	if user == nil {
		return unknownAuthor(id), nil
	}
	name := user.Username
	if name == "" {
		name = user.Email
	}
	return Author{
		ID:         user.ID,
		Username:   name,
		AvatarURL:  s.avatars.URL(ctx, user.AvatarPath),
		IsOfficial: user.IsOfficial,
		Default:    blobstore.DefaultAvatar(name),
	}, nil
}

// Hydrate turns records into grid cards, resolving each distinct author once.
func (s *Service) Hydrate(ctx context.Context, records []*gstore.ComponentRecord) ([]*Card, error) {
	var lock sync.Mutex
	authors := make(map[string]Author)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(HydrateConcurrency)
	seen := make(map[string]bool)
	for _, rec := range records {
		userId := rec.UserID
		if seen[userId] {
			continue
		}
		seen[userId] = true
		g.Go(func() error {
			author, err := s.ResolveAuthor(gctx, userId)
			if err != nil {
				return err
			}
			lock.Lock()
			defer lock.Unlock()
			authors[userId] = author
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	cards := make([]*Card, 0, len(records))
	for _, rec := range records {
		cards = append(cards, &Card{
			Component: rec,
			Category:  CategoryBadge(rec.Category),
			Author:    authors[rec.UserID],
			Date:      rec.CreatedTime().UTC().Format(CardDateFormat),
		})
	}
	return cards, nil
}
