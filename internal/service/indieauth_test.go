package service

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cleverdevil/dwell/internal/model"
	"github.com/cleverdevil/dwell/internal/utils"
)

type staticCreds map[string]string

func (c staticCreds) PasswordHash(me string) (string, bool) {
	h, ok := c[model.NormalizeMe(me)]
	return h, ok
}

const (
	testMe       = "https://example.com/"
	testClient   = "https://app.example/"
	testRedirect = "https://app.example/cb"
	testSecret   = "test-secret"
)

func newAuth(t *testing.T) *AuthService {
	t.Helper()
	hash, err := utils.HashPassword("hunter2", 4)
	require.NoError(t, err)
	return NewAuthService(newCodeRepo(t), staticCreds{testMe: hash}, testSecret, time.Hour, zaptest.NewLogger(t))
}

func authRequest() AuthRequest {
	return AuthRequest{
		Me:           "https://example.com",
		ClientID:     testClient,
		RedirectURI:  testRedirect,
		State:        "xyz",
		ResponseType: "code",
		Scope:        "create update",
	}
}

// issue walks the consent form and returns the code from the redirect.
func issue(t *testing.T, s *AuthService, r AuthRequest) string {
	t.Helper()
	target, err := s.Approve(context.Background(), r, "Approve", "hunter2")
	require.NoError(t, err)
	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "xyz", u.Query().Get("state"))
	code := u.Query().Get("code")
	require.Len(t, code, 64)
	return code
}

func TestBeginAuth(t *testing.T) {
	s := newAuth(t)
	r, err := s.BeginAuth(authRequest())
	require.NoError(t, err)
	assert.Equal(t, testMe, r.Me)

	for _, missing := range []string{"me", "client_id", "redirect_uri", "state", "response_type", "scope"} {
		t.Run(missing, func(t *testing.T) {
			r := authRequest()
			switch missing {
			case "me":
				r.Me = ""
			case "client_id":
				r.ClientID = ""
			case "redirect_uri":
				r.RedirectURI = ""
			case "state":
				r.State = ""
			case "response_type":
				r.ResponseType = ""
			case "scope":
				r.Scope = ""
			}
			_, err := s.BeginAuth(r)
			assertStatus(t, err, http.StatusBadRequest, "Invalid request: missing argument "+missing)
		})
	}
}

func TestAuthorizationFlow(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)
	code := issue(t, s, authRequest())

	me, err := s.ExchangeForIdentity(ctx, code, testRedirect, testClient)
	require.NoError(t, err)
	assert.Equal(t, testMe, me)

	tok, err := s.ExchangeForToken(ctx, TokenRequest{Code: code, Me: "https://example.com", RedirectURI: testRedirect, ClientID: testClient})
	require.NoError(t, err)
	assert.Equal(t, testMe, tok.Me)
	assert.Equal(t, "create update", tok.Scope)
	assert.Equal(t, "Bearer", tok.TokenType)

	claims, err := s.VerifyAccessToken(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testMe, claims.Me)
	assert.Equal(t, testClient, claims.ClientID)
	assert.Equal(t, "create update", claims.Scope)

	// the code stays usable as a bearer credential
	scopes, ok := s.VerifyToken(ctx, code)
	require.True(t, ok)
	assert.True(t, scopes.Has(model.ScopeCreate))
	assert.False(t, scopes.Has(model.ScopeDelete))

	// the signed token is not a bearer credential
	_, ok = s.VerifyToken(ctx, tok.AccessToken)
	assert.False(t, ok)
}

func TestApproveDenied(t *testing.T) {
	s := newAuth(t)
	target, err := s.Approve(context.Background(), authRequest(), "Deny", "")
	require.NoError(t, err)
	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "access_denied", u.Query().Get("error"))
	assert.Equal(t, "xyz", u.Query().Get("state"))
	assert.Empty(t, u.Query().Get("code"))
}

func TestApproveWrongPassword(t *testing.T) {
	s := newAuth(t)
	_, err := s.Approve(context.Background(), authRequest(), "Approve", "wrong")
	assertStatus(t, err, http.StatusForbidden, "Invalid password.")

	r := authRequest()
	r.Me = "https://stranger.example/"
	_, err = s.Approve(context.Background(), r, "Approve", "hunter2")
	assertStatus(t, err, http.StatusForbidden, "Invalid password.")
}

func TestApproveKeepsRedirectQuery(t *testing.T) {
	s := newAuth(t)
	r := authRequest()
	r.RedirectURI = "https://app.example/cb?session=1"
	target, err := s.Approve(context.Background(), r, "Approve", "hunter2")
	require.NoError(t, err)
	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "1", u.Query().Get("session"))
	assert.NotEmpty(t, u.Query().Get("code"))
}

func TestApproveRejectsRelativeRedirect(t *testing.T) {
	s := newAuth(t)
	r := authRequest()
	r.RedirectURI = "/cb"
	_, err := s.Approve(context.Background(), r, "Approve", "hunter2")
	assertStatus(t, err, http.StatusBadRequest, "")
}

func TestExchangeRejects(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)
	code := issue(t, s, authRequest())

	tests := []struct {
		name string
		req  TokenRequest
	}{
		{"unknown code", TokenRequest{Code: "nope", Me: testMe, RedirectURI: testRedirect, ClientID: testClient}},
		{"empty code", TokenRequest{Me: testMe, RedirectURI: testRedirect, ClientID: testClient}},
		{"other client", TokenRequest{Code: code, Me: testMe, RedirectURI: testRedirect, ClientID: "https://evil.example/"}},
		{"other redirect", TokenRequest{Code: code, Me: testMe, RedirectURI: "https://app.example/other", ClientID: testClient}},
		{"other me", TokenRequest{Code: code, Me: "https://someone.else/", RedirectURI: testRedirect, ClientID: testClient}},
		{"missing me", TokenRequest{Code: code, RedirectURI: testRedirect, ClientID: testClient}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ExchangeForToken(ctx, tt.req)
			assertStatus(t, err, http.StatusUnauthorized, "Invalid auth code.")
		})
	}

	_, err := s.ExchangeForIdentity(ctx, code, testRedirect, "https://evil.example/")
	assertStatus(t, err, http.StatusUnauthorized, "Invalid auth code.")
}

func TestExpiredCodes(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)
	code := issue(t, s, authRequest())

	s.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, ok := s.VerifyToken(ctx, code)
	assert.False(t, ok)
	_, err := s.ExchangeForIdentity(ctx, code, testRedirect, testClient)
	assertStatus(t, err, http.StatusUnauthorized, "Invalid auth code.")
	_, err = s.ExchangeForToken(ctx, TokenRequest{Code: code, Me: testMe, RedirectURI: testRedirect, ClientID: testClient})
	assertStatus(t, err, http.StatusUnauthorized, "Invalid auth code.")

	n, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	s.Now = time.Now
	_, ok = s.VerifyToken(ctx, code)
	assert.False(t, ok, "swept code must stay gone")
}

func TestVerifyAccessTokenRejects(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)

	_, err := s.VerifyAccessToken(ctx, "not-a-jwt")
	assertStatus(t, err, http.StatusForbidden, "Invalid token.")

	forged, err := utils.NewAccessToken("other-secret", testMe, testClient, "create", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = s.VerifyAccessToken(ctx, forged.Token)
	assertStatus(t, err, http.StatusForbidden, "Invalid token.")

	expired, err := utils.NewAccessToken(testSecret, testMe, testClient, "create", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = s.VerifyAccessToken(ctx, expired.Token)
	assertStatus(t, err, http.StatusForbidden, "Invalid token.")
}

func TestEnforceScope(t *testing.T) {
	assert.NoError(t, EnforceScope(model.ParseScopes("create delete"), model.ScopeDelete))
	assertStatus(t, EnforceScope(model.ParseScopes("create"), model.ScopeUpdate),
		http.StatusUnauthorized, "Token not authorized for scope: update")
	assertStatus(t, UnauthorizedToken(), http.StatusUnauthorized, "Unauthorized Token")
}

func TestStartSweeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newAuth(t)
	code := issue(t, s, authRequest())
	s.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	s.StartSweeper(ctx, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, err := s.Codes.FindByHash(context.Background(), utils.HashCode(code))
		return err != nil
	}, 5*time.Second, 20*time.Millisecond)
}
