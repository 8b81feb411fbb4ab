// Package auth verifies the access tokens issued to storefront users.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// DefaultCookieName is the cookie carrying the access token.
const DefaultCookieName = "accessToken"

var (
	// ErrNoToken is returned when the request carries no access token.
	ErrNoToken = errors.New("no access token provided")
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid access token")
)

// Claims are the access token claims. UserID is the storefront user.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 access tokens signed with a shared secret.
type Verifier struct {
	secret     []byte
	cookieName string
	now        func() time.Time
}

// NewVerifier creates a Verifier. An empty cookieName selects
// DefaultCookieName.
func NewVerifier(secret []byte, cookieName string) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty token secret")
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Verifier{secret: secret, cookieName: cookieName, now: time.Now}, nil
}

// Issue signs a token for userID valid for ttl.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}

// Verify parses a token and returns its user ID.
func (v *Verifier) Verify(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.UserID == "" {
		return "", errors.Wrap(ErrInvalidToken, "missing userId")
	}
	return claims.UserID, nil
}

// TokenFromRequest reads the access token cookie, falling back to a Bearer
// Authorization header.
func (v *Verifier) TokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(v.cookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok && token != "" {
		return token, nil
	}
	return "", ErrNoToken
}

type userKey struct{}

// WithUserID stores the authenticated user ID on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the authenticated user ID stored by the middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

// Middleware rejects requests without a valid access token with 401 and
// stores the user ID on the request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := v.TokenFromRequest(r)
			if err != nil {
				unauthorized(w, "Unauthorized - No access token provided")
				return
			}
			userID, err := v.Verify(token)
			if err != nil {
				zctx.From(r.Context()).Debug("Rejected access token", zap.Error(err))
				unauthorized(w, "Unauthorized - Invalid access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(e.Bytes())
}
