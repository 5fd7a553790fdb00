// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gallery is the component gallery service: listing and filtering,
// validated create/update, ownership checks, and card hydration.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wavetermdev/snipgallery/pkg/blobstore"
	"github.com/wavetermdev/snipgallery/pkg/gevents"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"golang.org/x/sync/singleflight"
)

const (
	MaxTitleLen = 100
	MaxTags     = 10
	MaxTagLen   = 32
	MaxCodeLen  = 64 * 1024
)

var ErrForbidden = errors.New("forbidden")
var ErrInvalidInput = errors.New("invalid input")

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

type ComponentInput struct {
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Desc       string   `json:"desc,omitempty"`
	HTML       string   `json:"html,omitempty"`
	CSS        string   `json:"css,omitempty"`
	JS         string   `json:"js,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	OriginLink string   `json:"originlink,omitempty"`
}

type SaveResult struct {
	Component   *gstore.ComponentRecord `json:"component"`
	Diagnostics *Diagnostics            `json:"diagnostics"`
}

type Service struct {
	avatars       *blobstore.AvatarService
	broker        *gevents.Broker
	scriptTimeout time.Duration
	userGroup     singleflight.Group
}

type ServiceOption func(s *Service)

func WithScriptTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.scriptTimeout = d
	}
}

func WithBroker(broker *gevents.Broker) ServiceOption {
	return func(s *Service) {
		s.broker = broker
	}
}

func NewService(avatars *blobstore.AvatarService, opts ...ServiceOption) *Service {
	s := &Service{
		avatars: avatars,
		broker:  gevents.DefaultBroker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Avatars() *blobstore.AvatarService {
	return s.avatars
}

// List returns components newest first.  "all" (or "") means every category.
func (s *Service) List(ctx context.Context, category string, userID string) ([]*gstore.ComponentRecord, error) {
	category = strings.TrimSpace(category)
	if category == CategoryAll {
		category = ""
	}
	if category != "" && !IsAssignableCategory(category) {
		return nil, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", category)}
	}
	return gstore.DBListComponents(ctx, gstore.ComponentFilter{Category: category, UserID: userID})
}

func (s *Service) Get(ctx context.Context, id string) (*gstore.ComponentRecord, error) {
	return gstore.DBGetComponent(ctx, id)
}

func normalizeTags(tags []string) ([]string, error) {
	rtn := []string{}
	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLen {
			return nil, &ValidationError{Field: "tags", Message: fmt.Sprintf("tag %q is longer than %d characters", tag, MaxTagLen)}
		}
		seen[tag] = true
		rtn = append(rtn, tag)
	}
	if len(rtn) > MaxTags {
		return nil, &ValidationError{Field: "tags", Message: fmt.Sprintf("at most %d tags", MaxTags)}
	}
	return rtn, nil
}

func validateOriginLink(link string) error {
	if link == "" {
		return nil
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "originlink", Message: "must be an http(s) url"}
	}
	return nil
}

// Normalize trims and validates input in place.
func (input *ComponentInput) Normalize() error {
	input.Title = strings.TrimSpace(input.Title)
	input.Category = strings.TrimSpace(input.Category)
	input.Desc = strings.TrimSpace(input.Desc)
	input.OriginLink = strings.TrimSpace(input.OriginLink)
	if input.Title == "" {
		return &ValidationError{Field: "title", Message: "required"}
	}
	if utf8.RuneCountInString(input.Title) > MaxTitleLen {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("longer than %d characters", MaxTitleLen)}
	}
	if !IsAssignableCategory(input.Category) {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", input.Category)}
	}
	for field, code := range map[string]string{"html": input.HTML, "css": input.CSS, "js": input.JS} {
		if len(code) > MaxCodeLen {
			return &ValidationError{Field: field, Message: fmt.Sprintf("larger than %d bytes", MaxCodeLen)}
		}
	}
	tags, err := normalizeTags(input.Tags)
	if err != nil {
		return err
	}
	input.Tags = tags
	return validateOriginLink(input.OriginLink)
}

func (input *ComponentInput) applyTo(rec *gstore.ComponentRecord) {
	rec.Title = input.Title
	rec.Category = input.Category
	rec.Desc = input.Desc
	rec.HTML = input.HTML
	rec.CSS = input.CSS
	rec.JS = input.JS
	rec.Tags = input.Tags
	rec.OriginLink = input.OriginLink
}

func (s *Service) Create(ctx context.Context, userID string, input ComponentInput) (*SaveResult, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	if err := input.Normalize(); err != nil {
		return nil, err
	}
	rec := &gstore.ComponentRecord{UserID: userID}
	input.applyTo(rec)
	err := gstore.DBInsertComponent(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("saving component: %w", err)
	}
	s.publish(gevents.Event_ComponentCreated, rec)
	return &SaveResult{Component: rec, Diagnostics: DryRun(rec.Source(), s.scriptTimeout)}, nil
}

func (s *Service) getOwned(ctx context.Context, userID string, id string) (*gstore.ComponentRecord, error) {
	rec, err := gstore.DBGetComponent(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID == "" || rec.UserID != userID {
		return nil, fmt.Errorf("component %s: %w", id, ErrForbidden)
	}
	return rec, nil
}

func (s *Service) Update(ctx context.Context, userID string, id string, input ComponentInput) (*SaveResult, error) {
	if err := input.Normalize(); err != nil {
		return nil, err
	}
	rec, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	input.applyTo(rec)
	err = gstore.DBUpdateComponent(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("saving component: %w", err)
	}
	s.publish(gevents.Event_ComponentUpdated, rec)
	return &SaveResult{Component: rec, Diagnostics: DryRun(rec.Source(), s.scriptTimeout)}, nil
}

func (s *Service) Delete(ctx context.Context, userID string, id string) error {
	rec, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	err = gstore.DBDeleteComponent(ctx, id)
	if err != nil {
		return err
	}
	s.publish(gevents.Event_ComponentDeleted, rec)
	return nil
}

type ComponentEventData struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	UserID   string `json:"userid"`
}

func EventScopes(rec *gstore.ComponentRecord) []string {
	return []string{"component:" + rec.ID, "category:" + rec.Category, "user:" + rec.UserID}
}

func (s *Service) publish(eventType string, rec *gstore.ComponentRecord) {
	if s.broker == nil {
		return
	}
	log.Printf("[gallery] %s %s %q\n", eventType, rec.ID, rec.Title)
	s.broker.Publish(gevents.Event{
		Event:  eventType,
		Scopes: EventScopes(rec),
		Data: ComponentEventData{
			ID:       rec.ID,
			Title:    rec.Title,
			Category: rec.Category,
			UserID:   rec.UserID,
		},
	})
}

type Neighbors struct {
	Index int                     `json:"index"` // -1 when id is not in the list
	Total int                     `json:"total"`
	Prev  *gstore.ComponentRecord `json:"prev,omitempty"`
	Next  *gstore.ComponentRecord `json:"next,omitempty"`
}

// Navigate finds the detail view neighbours of id within list.  there is no wraparound.
func Navigate(list []*gstore.ComponentRecord, id string) Neighbors {
	rtn := Neighbors{Index: -1, Total: len(list)}
	for idx, rec := range list {
		if rec.ID == id {
			rtn.Index = idx
			break
		}
	}
	if rtn.Index == -1 {
		return rtn
	}
	if rtn.Index > 0 {
		rtn.Prev = list[rtn.Index-1]
	}
	if rtn.Index < len(list)-1 {
		rtn.Next = list[rtn.Index+1]
	}
	return rtn
}
