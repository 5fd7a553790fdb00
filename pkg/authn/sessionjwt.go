// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package authn

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const IssuerSnipGallery = "snipgallery"
const SessionKeyFile = "session.key"

type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

func (c *SessionClaims) UserID() string {
	return c.Subject
}

// Signer issues and validates EdDSA session tokens.
type Signer struct {
	lock       sync.Mutex
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

func NewSigner(privKey ed25519.PrivateKey) (*Signer, error) {
	if len(privKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: expected %d, got %d", ed25519.PrivateKeySize, len(privKey))
	}
	return &Signer{
		privateKey: privKey,
		publicKey:  privKey.Public().(ed25519.PublicKey),
	}, nil
}

func GenerateSigner() (*Signer, error) {
	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return NewSigner(privKey)
}

// LoadOrCreateSigner reads the base64 private key at keyPath, generating and
// persisting a new one on first run.
func LoadOrCreateSigner(keyPath string) (*Signer, error) {
	barr, err := os.ReadFile(keyPath)
	if err == nil {
		keyData, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(barr)))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", keyPath, err)
		}
		return NewSigner(ed25519.PrivateKey(keyData))
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", keyPath, err)
	}
	signer, err := GenerateSigner()
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(signer.privateKey)
	err = os.WriteFile(keyPath, []byte(encoded+"\n"), 0600)
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", keyPath, err)
	}
	return signer, nil
}

func (s *Signer) PublicKeyBase64() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return base64.StdEncoding.EncodeToString(s.publicKey)
}

// Sign fills in jti, issuer and timestamps when unset.
func (s *Signer) Sign(claims *SessionClaims, ttl time.Duration) (string, error) {
	s.lock.Lock()
	privKey := s.privateKey
	s.lock.Unlock()
	now := time.Now()
	if claims.ID == "" {
		claims.ID = uuid.New().String()
	}
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.Issuer == "" {
		claims.Issuer = IssuerSnipGallery
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tokenStr, err := token.SignedString(privKey)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return tokenStr, nil
}

func (s *Signer) ValidateAndExtract(tokenStr string) (*SessionClaims, error) {
	s.lock.Lock()
	pubKey := s.publicKey
	s.lock.Unlock()
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return pubKey, nil
	}, jwt.WithIssuer(IssuerSnipGallery), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("invalid token, missing subject or id")
	}
	return claims, nil
}
