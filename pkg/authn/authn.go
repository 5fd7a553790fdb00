// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package authn is the gallery's identity provider: accounts with bcrypt
// password hashes, EdDSA session tokens, and server-side revocation.
package authn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"github.com/wavetermdev/snipgallery/pkg/util/ds"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLen = 6
const MaxPasswordLen = 72 // bcrypt limit
const MaxUsernameLen = 50
const DefaultTokenTTL = 7 * 24 * time.Hour

var ErrInvalidCredentials = errors.New("invalid email or password")
var ErrUnauthenticated = errors.New("not signed in")
var ErrInvalidEmail = errors.New("invalid email address")
var ErrWeakPassword = fmt.Errorf("password must be between %d and %d characters", MinPasswordLen, MaxPasswordLen)
var ErrInvalidProfile = errors.New("invalid profile")

var validSexValues = map[string]bool{"": true, "male": true, "female": true, "other": true}

type Profile struct {
	Username   string `json:"username,omitempty"`
	AvatarPath string `json:"avatarpath,omitempty"`
	Sex        string `json:"sex,omitempty"`
	IsOfficial bool   `json:"isofficial,omitempty"`
}

// ProfileUpdate changes only the fields that are set.
type ProfileUpdate struct {
	Username   *string `json:"username,omitempty"`
	AvatarPath *string `json:"avatarpath,omitempty"`
	Sex        *string `json:"sex,omitempty"`
}

type Session struct {
	Token     string             `json:"token"`
	ExpiresAt int64              `json:"expiresat"`
	User      *gstore.UserRecord `json:"user"`
}

type Provider struct {
	signer     *Signer
	revoked    *ds.ExpMap[bool]
	tokenTTL   time.Duration
	bcryptCost int
}

type ProviderOption func(p *Provider)

func WithTokenTTL(ttl time.Duration) ProviderOption {
	return func(p *Provider) {
		if ttl > 0 {
			p.tokenTTL = ttl
		}
	}
}

func WithBcryptCost(cost int) ProviderOption {
	return func(p *Provider) {
		p.bcryptCost = cost
	}
}

func NewProvider(signer *Signer, opts ...ProviderOption) *Provider {
	p := &Provider{
		signer:     signer,
		revoked:    ds.MakeExpMap[bool](),
		tokenTTL:   DefaultTokenTTL,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) TokenTTL() time.Duration {
	return p.tokenTTL
}

func normalizeAndCheckEmail(email string) (string, error) {
	email = gstore.NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// DefaultUsername is the local part of the email address.
func DefaultUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func checkProfileFields(username string, sex string) error {
	if strings.TrimSpace(username) == "" || len(username) > MaxUsernameLen {
		return fmt.Errorf("%w: username must be 1-%d characters", ErrInvalidProfile, MaxUsernameLen)
	}
	if !validSexValues[sex] {
		return fmt.Errorf("%w: unknown sex value %q", ErrInvalidProfile, sex)
	}
	return nil
}

// SignUp creates an account.  it does not sign the user in.
func (p *Provider) SignUp(ctx context.Context, email string, password string, profile Profile) (*gstore.UserRecord, error) {
	email, err := normalizeAndCheckEmail(email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(profile.Username)
	if username == "" {
		username = DefaultUsername(email)
	}
	if err := checkProfileFields(username, profile.Sex); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &gstore.UserRecord{
		Email:        email,
		PasswordHash: string(hash),
		Username:     username,
		AvatarPath:   strings.TrimSpace(profile.AvatarPath),
		Sex:          profile.Sex,
		IsOfficial:   profile.IsOfficial,
	}
	err = gstore.DBInsertUser(ctx, user)
	if err != nil {
		return nil, err
	}
	log.Printf("[authn] new user %s (%s)\n", user.ID, user.Username)
	return user, nil
}

func (p *Provider) SignIn(ctx context.Context, email string, password string) (*Session, error) {
	user, err := gstore.DBGetUserByEmail(ctx, email)
	if errors.Is(err, gstore.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	claims := &SessionClaims{Email: user.Email}
	claims.Subject = user.ID
	token, err := p.signer.Sign(claims, p.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.UnixMilli(), User: user}, nil
}

// SignOut revokes token until it would have expired anyway.
func (p *Provider) SignOut(token string) error {
	claims, err := p.Validate(token)
	if err != nil {
		return err
	}
	p.revoked.Set(claims.ID, true, claims.ExpiresAt.Time)
	return nil
}

func (p *Provider) Validate(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := p.signer.ValidateAndExtract(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if p.revoked.Has(claims.ID) {
		return nil, fmt.Errorf("%w: session was signed out", ErrUnauthenticated)
	}
	return claims, nil
}

// CurrentUser resolves a session token to its (still existing) user.
func (p *Provider) CurrentUser(ctx context.Context, token string) (*gstore.UserRecord, error) {
	claims, err := p.Validate(token)
	if err != nil {
		return nil, err
	}
	user, err := gstore.DBGetUser(ctx, claims.UserID())
	if errors.Is(err, gstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", ErrUnauthenticated)
	}
	return user, err
}

func (p *Provider) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*gstore.UserRecord, error) {
	user, err := gstore.DBGetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if update.Username != nil {
		user.Username = strings.TrimSpace(*update.Username)
	}
	if update.AvatarPath != nil {
		user.AvatarPath = strings.TrimSpace(*update.AvatarPath)
	}
	if update.Sex != nil {
		user.Sex = *update.Sex
	}
	if err := checkProfileFields(user.Username, user.Sex); err != nil {
		return nil, err
	}
	err = gstore.DBUpdateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return user, nil
}
