// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package authn

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"golang.org/x/crypto/bcrypt"
)

func initProvider(t *testing.T, opts ...ProviderOption) *Provider {
	t.Helper()
	err := gstore.OpenGStore(filepath.Join(t.TempDir(), gstore.GStoreDBName))
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") || strings.Contains(err.Error(), "requires cgo") {
			t.Skipf("authn tests require sqlite/cgo: %v", err)
		}
		t.Fatalf("error initializing gstore: %v", err)
	}
	t.Cleanup(func() {
		gstore.CloseGStore()
	})
	signer, err := GenerateSigner()
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return NewProvider(signer, append([]ProviderOption{WithBcryptCost(bcrypt.MinCost)}, opts...)...)
}

func TestSignUpDefaultsAndValidation(t *testing.T) {
	p := initProvider(t)
	ctx := context.Background()
	user, err := p.SignUp(ctx, "Grace@Example.com", "secret1", Profile{Sex: "female"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Username != "grace" || user.Email != "grace@example.com" {
		t.Fatalf("username should default to the email local part: %#v", user)
	}
	if user.PasswordHash == "secret1" || user.PasswordHash == "" {
		t.Fatalf("password must be hashed")
	}
	if _, err := p.SignUp(ctx, "grace@example.com", "secret2", Profile{}); !errors.Is(err, gstore.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
	if _, err := p.SignUp(ctx, "short@example.com", "12345", Profile{}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", err)
	}
	if _, err := p.SignUp(ctx, "not-an-email", "123456", Profile{}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected invalid email error, got %v", err)
	}
	if _, err := p.SignUp(ctx, "x@example.com", "123456", Profile{Sex: "robot"}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected invalid profile error, got %v", err)
	}
}

func TestSignInOutLifecycle(t *testing.T) {
	p := initProvider(t)
	ctx := context.Background()
	user, err := p.SignUp(ctx, "alan@example.com", "turing42", Profile{Username: "Alan"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := p.SignIn(ctx, "alan@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := p.SignIn(ctx, "nobody@example.com", "turing42"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email must look like a bad password, got %v", err)
	}
	sess, err := p.SignIn(ctx, "ALAN@example.com", "turing42")
	if err != nil {
		t.Fatalf("signin: %v", err)
	}
	if sess.User.ID != user.ID || sess.Token == "" {
		t.Fatalf("bad session %#v", sess)
	}
	expires := time.UnixMilli(sess.ExpiresAt)
	if d := time.Until(expires); d < DefaultTokenTTL-time.Minute || d > DefaultTokenTTL {
		t.Fatalf("expected a %v token, expires in %v", DefaultTokenTTL, d)
	}
	current, err := p.CurrentUser(ctx, sess.Token)
	if err != nil || current.Username != "Alan" {
		t.Fatalf("current user: %#v %v", current, err)
	}
	if err := p.SignOut(sess.Token); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if _, err := p.Validate(sess.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("revoked token still valid: %v", err)
	}
	if _, err := p.Validate(""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("empty token must be unauthenticated")
	}
}

func TestTokensFromOtherKeysRejected(t *testing.T) {
	p := initProvider(t)
	other, _ := GenerateSigner()
	claims := &SessionClaims{}
	claims.Subject = "u1"
	token, err := other.Sign(claims, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := p.Validate(token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("token from another key accepted: %v", err)
	}
	expired := &SessionClaims{}
	expired.Subject = "u1"
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token, _ = p.signer.Sign(expired, time.Hour)
	if _, err := p.Validate(token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	p := initProvider(t)
	ctx := context.Background()
	user, _ := p.SignUp(ctx, "ken@example.com", "unix1969", Profile{})
	name := "  Ken T.  "
	avatar := "avatars/ken.png"
	updated, err := p.UpdateProfile(ctx, user.ID, ProfileUpdate{Username: &name, AvatarPath: &avatar})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Username != "Ken T." || updated.AvatarPath != avatar {
		t.Fatalf("unexpected profile %#v", updated)
	}
	empty := " "
	if _, err := p.UpdateProfile(ctx, user.ID, ProfileUpdate{Username: &empty}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected invalid profile, got %v", err)
	}
	if _, err := p.UpdateProfile(ctx, "missing", ProfileUpdate{}); !errors.Is(err, gstore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadOrCreateSigner(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), SessionKeyFile)
	first, err := LoadOrCreateSigner(keyPath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := LoadOrCreateSigner(keyPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if first.PublicKeyBase64() != second.PublicKeyBase64() {
		t.Fatalf("persisted key not reused")
	}
	claims := &SessionClaims{}
	claims.Subject = "u1"
	token, _ := first.Sign(claims, time.Hour)
	got, err := second.ValidateAndExtract(token)
	if err != nil || got.UserID() != "u1" || got.ID == "" {
		t.Fatalf("token not valid across restarts: %#v %v", got, err)
	}
}
