package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"meetai/internal/usertoken"
	"meetai/pkg/domain"
)

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// authorize resolves the caller from a session JWT first and falls back to
// the session table, which also accepts opaque session tokens.
func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := s.sessionToken(r)
	if !ok {
		s.audit(r, "api.authorize", "fail", "reason", "missing_token")
		return domain.User{}, false
	}
	ctx := r.Context()

	if s.tokenVerifier != nil {
		identity, err := s.tokenVerifier.Verify(ctx, token)
		if err == nil {
			user, ok := s.jwtUser(r, identity)
			if !ok {
				return domain.User{}, false
			}
			s.audit(r, "api.authorize", "success", "user_id", user.ID, "method", "jwt")
			return user, true
		}
	}

	userID, found, err := s.users.GetUserIDBySession(ctx, token, s.now())
	if err != nil || !found {
		s.audit(r, "api.authorize", "fail", "reason", "invalid_session")
		return domain.User{}, false
	}
	user, found, err := s.users.GetUserByID(ctx, userID)
	if err != nil || !found {
		s.audit(r, "api.authorize", "fail", "reason", "unknown_user")
		return domain.User{}, false
	}
	s.audit(r, "api.authorize", "success", "user_id", user.ID, "method", "session")
	return user, true
}

// jwtUser loads the token's user. A subject the user table has not seen yet
// is registered from the token claims, since agents and meetings reference it.
func (s *Server) jwtUser(r *http.Request, identity usertoken.Identity) (domain.User, bool) {
	ctx := r.Context()
	user, found, err := s.users.GetUserByID(ctx, identity.UserID)
	if err != nil {
		s.audit(r, "api.authorize", "fail", "reason", "user_lookup_failed")
		return domain.User{}, false
	}
	if found {
		return user, true
	}
	now := s.now().UTC()
	user = domain.User{
		ID:            identity.UserID,
		Name:          identity.Name,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Image:         identity.Image,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if user.Name == "" {
		user.Name = identity.Email
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		s.audit(r, "api.authorize", "fail", "reason", "user_register_failed", "user_id", user.ID)
		return domain.User{}, false
	}
	s.audit(r, "api.user_registered", "success", "user_id", user.ID)
	return user, true
}

// sessionToken reads a bearer token, or the session cookie set by the auth
// provider. Signed cookies carry "<token>.<signature>"; a JWT has two dots
// and passes through whole. With a cookie secret configured, plain cookie
// values are refused.
func (s *Server) sessionToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r); ok {
		return token, true
	}
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(c.Value)
	dots := strings.Count(value, ".")
	if dots == 0 && len(s.cookieSecret) > 0 {
		s.audit(r, "api.authorize", "fail", "reason", "unsigned_cookie")
		return "", false
	}
	if dots == 1 {
		token, signature, _ := strings.Cut(value, ".")
		if !s.validCookieSignature(token, signature) {
			s.audit(r, "api.authorize", "fail", "reason", "bad_cookie_signature")
			return "", false
		}
		value = token
	}
	if value == "" {
		return "", false
	}
	return value, true
}

// validCookieSignature checks signature = base64(HMAC-SHA256(secret, token)).
// Without a configured secret only the session table vouches for the token.
func (s *Server) validCookieSignature(token, signature string) bool {
	if len(s.cookieSecret) == 0 {
		return true
	}
	if unescaped, err := url.PathUnescape(signature); err == nil {
		signature = unescaped
	}
	mac := hmac.New(sha256.New, s.cookieSecret)
	mac.Write([]byte(token))
	want := mac.Sum(nil)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawURLEncoding, base64.URLEncoding} {
		got, err := enc.DecodeString(signature)
		if err == nil && hmac.Equal(got, want) {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
