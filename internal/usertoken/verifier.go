// Package usertoken verifies session JWTs minted by the auth provider and
// signed with keys from its JWKS endpoint.
package usertoken

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer   = "meetai-auth"
	defaultAudience = "meetai-api"
	defaultLeeway   = 30 * time.Second
)

var (
	errUnknownKey     = errors.New("unknown token key")
	errMissingSubject = errors.New("token subject missing")
)

// Identity is the caller carried by a verified session token. Email and Name
// come from the provider's profile claims and may be empty.
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
	Name          string
	Image         string
}

type sessionClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Config configures session token verification.
type Config struct {
	JWKSURL    string
	Issuer     string
	Audience   string
	Leeway     time.Duration
	HTTPClient *http.Client
	// MinRefreshInterval bounds how often an unknown kid may force a JWKS
	// fetch before the cached set expires.
	MinRefreshInterval time.Duration
}

// Verifier validates RS256 session tokens against a cached JWKS.
type Verifier struct {
	keys   *keySet
	parser *jwt.Parser
}

// NewVerifier fetches the key set once and fails when it is unusable.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		return nil, errors.New("token verifier requires jwksURL")
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	keys := newKeySet(jwksURL, client, cfg.MinRefreshInterval)
	if err := keys.refresh(ctx); err != nil {
		return nil, err
	}
	return &Verifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(orDefault(cfg.Issuer, defaultIssuer)),
			jwt.WithAudience(orDefault(cfg.Audience, defaultAudience)),
			jwt.WithIssuedAt(),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}, nil
}

// Verify validates token and returns the identity it names. A token signed
// by a key the cache has not seen triggers one JWKS refresh, so provider key
// rotation is picked up without a restart.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	claims, err := v.parse(token)
	if errors.Is(err, errUnknownKey) || (err != nil && v.keys.expired()) {
		if refreshErr := v.keys.refreshIfAllowed(ctx); refreshErr != nil {
			return Identity{}, refreshErr
		}
		claims, err = v.parse(token)
	}
	if err != nil {
		return Identity{}, err
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Identity{}, errMissingSubject
	}
	return Identity{
		UserID:        subject,
		Email:         strings.TrimSpace(claims.Email),
		EmailVerified: claims.EmailVerified,
		Name:          strings.TrimSpace(claims.Name),
		Image:         strings.TrimSpace(claims.Picture),
	}, nil
}

func (v *Verifier) parse(token string) (sessionClaims, error) {
	var claims sessionClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := v.keys.lookup(strings.TrimSpace(kid))
		if !ok {
			return nil, errUnknownKey
		}
		return key, nil
	})
	return claims, err
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
