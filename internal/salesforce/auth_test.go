package salesforce

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		if r.Form.Get("client_id") != "cid" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_client_id"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-`+r.Form.Get("grant_type")+`","instance_url":"https://org.example.com/","token_type":"Bearer"}`)
	}))
}

func TestTokenProvider_ClientCredentials(t *testing.T) {
	var calls atomic.Int32
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	p, err := NewTokenProvider(AuthConfig{TokenURL: srv.URL, ClientID: "cid", ClientSecret: "secret"})
	require.NoError(t, err)

	cred, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-client_credentials", cred.AccessToken)
	assert.Equal(t, "https://org.example.com", cred.InstanceURL)

	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "token should be cached")
}

func TestTokenProvider_PasswordGrant(t *testing.T) {
	var calls atomic.Int32
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	p, err := NewTokenProvider(AuthConfig{TokenURL: srv.URL, GrantType: GrantPassword, ClientID: "cid", Username: "u", Password: "p"})
	require.NoError(t, err)

	cred, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-password", cred.AccessToken)
}

func TestTokenProvider_RefreshAfterTTL(t *testing.T) {
	var calls atomic.Int32
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	p, err := NewTokenProvider(AuthConfig{TokenURL: srv.URL, ClientID: "cid", TokenTTL: time.Minute})
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	_, err = p.Token(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	p.Invalidate()
	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTokenProvider_Failure(t *testing.T) {
	var calls atomic.Int32
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	p, err := NewTokenProvider(AuthConfig{TokenURL: srv.URL, ClientID: "wrong"})
	require.NoError(t, err)

	_, err = p.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "obtaining access token")
}

func TestNewTokenProvider_Validation(t *testing.T) {
	_, err := NewTokenProvider(AuthConfig{ClientID: "cid"})
	assert.Error(t, err)

	_, err = NewTokenProvider(AuthConfig{TokenURL: "http://x"})
	assert.Error(t, err)

	_, err = NewTokenProvider(AuthConfig{TokenURL: "http://x", ClientID: "cid", GrantType: GrantPassword})
	assert.ErrorContains(t, err, "username")

	_, err = NewTokenProvider(AuthConfig{TokenURL: "http://x", ClientID: "cid", GrantType: "jwt"})
	assert.ErrorContains(t, err, "unsupported grant type")
}
