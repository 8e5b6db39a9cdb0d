package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/cleverdevil/dwell/internal/model"
	"github.com/cleverdevil/dwell/internal/repository"
	"github.com/cleverdevil/dwell/internal/utils"
)

// Fixed client-facing reasons.
const (
	msgInvalidCode     = "Invalid auth code."
	msgInvalidPassword = "Invalid password."
	msgInvalidToken    = "Invalid token."
	msgUnauthorized    = "Unauthorized Token"
)

// DefaultCodeTTL is the lifetime of a code when none is configured.
const DefaultCodeTTL = 100 * 365 * 24 * time.Hour

// CodeStore persists authorization codes by hash.
type CodeStore interface {
	Create(ctx context.Context, c model.AuthorizationCode) error
	FindBound(ctx context.Context, codeHash, clientID, redirectURL string) (*model.AuthorizationCode, error)
	FindByHash(ctx context.Context, codeHash string) (*model.AuthorizationCode, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Credentials resolves the password hash of an identity.
type Credentials interface {
	PasswordHash(me string) (string, bool)
}

// AuthRequest carries the parameters of an authorization request.
type AuthRequest struct {
	Me           string `json:"me"`
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	State        string `json:"state"`
	ResponseType string `json:"response_type"`
	Scope        string `json:"scope"`
}

// TokenRequest carries the parameters of a code-for-token exchange.
type TokenRequest struct {
	Code        string
	Me          string
	RedirectURI string
	ClientID    string
}

// TokenResponse is the token endpoint's success body.
type TokenResponse struct {
	Me          string `json:"me"`
	Scope       string `json:"scope"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthService issues and checks authorization codes and access tokens.
//
// Two credentials exist and are never interchangeable. Protected endpoints
// accept the code itself as a bearer credential and check it against the
// codes table (revocable, expiring). The signed access token minted by
// ExchangeForToken is a self-contained assertion that only the token
// verification endpoint validates.
type AuthService struct {
	Codes   CodeStore
	Creds   Credentials
	Secret  string
	CodeTTL time.Duration
	Now     func() time.Time
	Log     *zap.Logger

	failures metric.Int64Counter
}

func NewAuthService(codes CodeStore, creds Credentials, secret string, ttl time.Duration, log *zap.Logger) *AuthService {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &AuthService{
		Codes:   codes,
		Creds:   creds,
		Secret:  secret,
		CodeTTL: ttl,
		Now:     time.Now,
		Log:     log,
	}
	s.failures, _ = otel.Meter("github.com/cleverdevil/dwell/internal/service").Int64Counter(
		"dwell.auth.failures", metric.WithDescription("Rejected authorization attempts by reason"))
	return s
}

func (s *AuthService) now() time.Time { return s.Now().UTC() }

func (s *AuthService) count(ctx context.Context, reason string) {
	if s.failures != nil {
		s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func (s *AuthService) fail(ctx context.Context, reason string, err *Error) *Error {
	s.count(ctx, reason)
	return err
}

// BeginAuth validates an authorization request and normalizes me. Every
// parameter is mandatory.
func (s *AuthService) BeginAuth(r AuthRequest) (AuthRequest, error) {
	for _, p := range []struct{ name, value string }{
		{"me", r.Me},
		{"client_id", r.ClientID},
		{"redirect_uri", r.RedirectURI},
		{"state", r.State},
		{"response_type", r.ResponseType},
		{"scope", r.Scope},
	} {
		if p.value == "" {
			return AuthRequest{}, BadRequest("Invalid request: missing argument " + p.name)
		}
	}
	r.Me = model.NormalizeMe(r.Me)
	return r, nil
}

// Approve handles the consent form. approve must be "Approve" for a code
// to be minted; any other value sends the client back with
// error=access_denied. The returned string is the redirect target.
func (s *AuthService) Approve(ctx context.Context, r AuthRequest, approve, password string) (string, error) {
	if r.Me == "" || r.ClientID == "" || r.RedirectURI == "" {
		return "", BadRequest("Invalid request data")
	}
	target, err := url.Parse(r.RedirectURI)
	if err != nil || !target.IsAbs() {
		return "", BadRequest("Invalid request: bad redirect_uri")
	}
	me := model.NormalizeMe(r.Me)

	if approve != "Approve" {
		return withQuery(target, map[string]string{"error": "access_denied", "state": r.State}), nil
	}

	hash, ok := s.Creds.PasswordHash(me)
	if !ok || !utils.VerifyPassword(hash, password) {
		s.Log.Warn("password rejected", zap.String("me", me), zap.String("client_id", r.ClientID))
		return "", s.fail(ctx, "password", Forbidden(msgInvalidPassword))
	}

	code, err := utils.NewCode()
	if err != nil {
		return "", Internal(err)
	}
	now := s.now()
	if err := s.Codes.Create(ctx, model.AuthorizationCode{
		CodeHash:    utils.HashCode(code),
		ClientID:    r.ClientID,
		RedirectURL: r.RedirectURI,
		Me:          me,
		Scope:       r.Scope,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.CodeTTL),
	}); err != nil {
		return "", Internal(err)
	}
	s.Log.Info("authorization code issued",
		zap.String("me", me), zap.String("client_id", r.ClientID), zap.String("scope", r.Scope))

	return withQuery(target, map[string]string{"code": code, "state": r.State}), nil
}

// ExchangeForIdentity returns the identity bound to a live code. The code
// must match clientID and redirectURL exactly.
func (s *AuthService) ExchangeForIdentity(ctx context.Context, code, redirectURL, clientID string) (string, error) {
	c, err := s.lookupBound(ctx, code, clientID, redirectURL)
	if err != nil {
		return "", err
	}
	return model.NormalizeMe(c.Me), nil
}

// ExchangeForToken mints a signed access token for a live code whose bound
// identity equals r.Me after normalization. The code stays valid.
func (s *AuthService) ExchangeForToken(ctx context.Context, r TokenRequest) (*TokenResponse, error) {
	c, err := s.lookupBound(ctx, r.Code, r.ClientID, r.RedirectURI)
	if err != nil {
		return nil, err
	}
	me := model.NormalizeMe(c.Me)
	if r.Me == "" || model.NormalizeMe(r.Me) != me {
		return nil, s.fail(ctx, "me_mismatch", Unauthorized(msgInvalidCode))
	}
	tok, err := utils.NewAccessToken(s.Secret, me, r.ClientID, c.Scope, c.ExpiresAt)
	if err != nil {
		return nil, Internal(err)
	}
	return &TokenResponse{Me: me, Scope: c.Scope, AccessToken: tok.Token, TokenType: "Bearer"}, nil
}

func (s *AuthService) lookupBound(ctx context.Context, code, clientID, redirectURL string) (*model.AuthorizationCode, error) {
	if code == "" {
		return nil, s.fail(ctx, "missing_code", Unauthorized(msgInvalidCode))
	}
	c, err := s.Codes.FindBound(ctx, utils.HashCode(code), clientID, redirectURL)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.fail(ctx, "unknown_code", Unauthorized(msgInvalidCode))
	}
	if err != nil {
		return nil, Internal(err)
	}
	if !c.ValidAt(s.now()) {
		return nil, s.fail(ctx, "expired_code", Unauthorized(msgInvalidCode))
	}
	return c, nil
}

// VerifyToken checks a bearer code against the codes table and returns its
// scopes. ok is false for unknown or expired codes.
func (s *AuthService) VerifyToken(ctx context.Context, code string) (model.Scopes, bool) {
	if code == "" {
		return nil, false
	}
	c, err := s.Codes.FindByHash(ctx, utils.HashCode(code))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.Log.Error("code lookup failed", zap.Error(err))
		}
		s.count(ctx, "unknown_bearer")
		return nil, false
	}
	if !c.ValidAt(s.now()) {
		s.count(ctx, "expired_bearer")
		return nil, false
	}
	return model.ParseScopes(c.Scope), true
}

// VerifyAccessToken validates a signed access token.
func (s *AuthService) VerifyAccessToken(ctx context.Context, raw string) (*utils.AccessClaims, error) {
	claims, err := utils.ParseAccessToken(s.Secret, raw)
	if err != nil {
		return nil, s.fail(ctx, "bad_access_token", Forbidden(msgInvalidToken))
	}
	claims.Me = model.NormalizeMe(claims.Me)
	return claims, nil
}

// EnforceScope fails unless scopes grants required.
func EnforceScope(scopes model.Scopes, required string) error {
	if scopes.Has(required) {
		return nil
	}
	return Unauthorized("Token not authorized for scope: " + required)
}

// UnauthorizedToken is the rejection for a missing or invalid bearer code.
func UnauthorizedToken() *Error { return Unauthorized(msgUnauthorized) }

// SweepExpired deletes codes whose expiry has passed.
func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.Codes.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Log.Info("expired codes swept", zap.Int64("deleted", n))
	}
	return n, nil
}

// StartSweeper runs SweepExpired every interval until ctx ends.
func (s *AuthService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := s.SweepExpired(ctx); err != nil && ctx.Err() == nil {
					s.Log.Error("code sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

func withQuery(u *url.URL, params map[string]string) string {
	out := *u
	q := out.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	out.RawQuery = q.Encode()
	return out.String()
}
