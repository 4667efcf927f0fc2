package auth

import (
	"context"
	"crypto"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/identity/pkg/agents"
)

// Config describes the identity provider
type Config struct {
	IssuerURL string
	Audience  string
	// UserInfoURL overrides the discovered userinfo endpoint
	UserInfoURL string
}

// TokenVerifier validates bearer access tokens issued by the identity provider
type TokenVerifier struct {
	verifier *oidc.IDTokenVerifier
	provider *oidc.Provider
}

// NewTokenVerifier discovers the provider configuration and JWKS from
// <issuer>/.well-known/openid-configuration
func NewTokenVerifier(ctx context.Context, config Config) (*TokenVerifier, error) {
	if config.IssuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover identity provider: %w", err)
	}

	if config.UserInfoURL != "" {
		var discovered oidc.ProviderConfig
		if err := provider.Claims(&discovered); err != nil {
			return nil, fmt.Errorf("failed to read provider metadata: %w", err)
		}
		discovered.UserInfoURL = config.UserInfoURL
		provider = discovered.NewProvider(ctx)
	}

	return &TokenVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: config.Audience}),
		provider: provider,
	}, nil
}

// NewStaticTokenVerifier verifies tokens against fixed public keys instead of
// a discovered JWKS. now may be nil.
func NewStaticTokenVerifier(config Config, now func() time.Time, keys ...crypto.PublicKey) *TokenVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	v := &TokenVerifier{
		verifier: oidc.NewVerifier(config.IssuerURL, keySet, &oidc.Config{
			ClientID: config.Audience,
			Now:      now,
		}),
	}
	if config.UserInfoURL != "" {
		v.provider = (&oidc.ProviderConfig{
			IssuerURL:   config.IssuerURL,
			UserInfoURL: config.UserInfoURL,
		}).NewProvider(context.Background())
	}
	return v
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Verify checks raw and returns its identity claims
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	token, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var tc tokenClaims
	if err := token.Claims(&tc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{
		Subject: token.Subject,
		Email:   agents.NormalizeEmail(tc.Email),
		Name:    tc.Name,
	}
	if claims.Email == "" {
		if err := v.fillFromUserInfo(ctx, raw, claims); err != nil {
			return nil, err
		}
	}
	if claims.Email == "" {
		return nil, ErrMissingEmail
	}

	return claims, nil
}

func (v *TokenVerifier) fillFromUserInfo(ctx context.Context, raw string, claims *Claims) error {
	if v.provider == nil || v.provider.UserInfoEndpoint() == "" {
		return nil
	}

	info, err := v.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return fmt.Errorf("failed to fetch userinfo: %w", err)
	}

	if info.Subject != "" && info.Subject != claims.Subject {
		return fmt.Errorf("%w: userinfo subject mismatch", ErrInvalidToken)
	}
	claims.Email = agents.NormalizeEmail(info.Email)
	if claims.Name == "" {
		var extra tokenClaims
		if err := info.Claims(&extra); err == nil {
			claims.Name = extra.Name
		}
	}
	return nil
}
