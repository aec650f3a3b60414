package salesforce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Supported OAuth grant types.
const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
)

// DefaultTokenTTL is how long a token is reused when the token endpoint does
// not report an expiry. Salesforce omits expires_in.
const DefaultTokenTTL = time.Hour

// AuthConfig configures a TokenProvider.
type AuthConfig struct {
	TokenURL     string
	GrantType    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string // password plus security token, when required
	TokenTTL     time.Duration
	HTTPClient   *http.Client
}

// TokenProvider obtains and caches an access token. Each reconciler owns
// its own provider; nothing is shared process-wide.
type TokenProvider struct {
	cfg AuthConfig
	now func() time.Time

	mu      sync.Mutex
	cached  *Credential
	expires time.Time
}

// NewTokenProvider validates cfg and returns a provider.
func NewTokenProvider(cfg AuthConfig) (*TokenProvider, error) {
	if cfg.TokenURL == "" {
		return nil, errors.New("token url is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	switch cfg.GrantType {
	case "", GrantClientCredentials:
		cfg.GrantType = GrantClientCredentials
	case GrantPassword:
		if cfg.Username == "" {
			return nil, errors.New("password grant requires a username")
		}
	default:
		return nil, fmt.Errorf("unsupported grant type '%s' — must be one of: %s, %s", cfg.GrantType, GrantClientCredentials, GrantPassword)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &TokenProvider{cfg: cfg, now: time.Now}, nil
}

// Token returns a valid credential, fetching a new one when the cached
// token is missing or expired.
func (p *TokenProvider) Token(ctx context.Context) (*Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.now().Before(p.expires) {
		return p.cached, nil
	}

	if p.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.cfg.HTTPClient)
	}

	tok, err := p.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining access token: %w", err)
	}

	cred := &Credential{AccessToken: tok.AccessToken}
	if inst, ok := tok.Extra("instance_url").(string); ok {
		cred.InstanceURL = strings.TrimRight(inst, "/")
	}

	expires := p.now().Add(p.cfg.TokenTTL)
	if !tok.Expiry.IsZero() && tok.Expiry.Before(expires) {
		expires = tok.Expiry
	}
	p.cached = cred
	p.expires = expires
	return cred, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

func (p *TokenProvider) fetch(ctx context.Context) (*oauth2.Token, error) {
	if p.cfg.GrantType == GrantPassword {
		oc := &oauth2.Config{
			ClientID:     p.cfg.ClientID,
			ClientSecret: p.cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  p.cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		return oc.PasswordCredentialsToken(ctx, p.cfg.Username, p.cfg.Password)
	}

	cc := &clientcredentials.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		TokenURL:     p.cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cc.Token(ctx)
}
