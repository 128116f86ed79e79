package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "garden_session"

var ErrInvalidToken = errors.New("invalid access token")

// Claims identify the operator behind a dashboard session.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Issuer exchanges access tokens for signed session tokens.
type Issuer struct {
	secret []byte
	tokens []string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer signs sessions with secret, or with a random per-process key
// when secret is empty. An empty accessTokens list accepts any non-empty
// access token.
func NewIssuer(secret string, accessTokens []string) (*Issuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	return &Issuer{
		secret: key,
		tokens: accessTokens,
		ttl:    12 * time.Hour,
		now:    time.Now,
	}, nil
}

// Login checks accessToken and returns a signed session token for name.
func (i *Issuer) Login(accessToken, name string) (string, *Claims, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" || !i.accepts(accessToken) {
		return "", nil, ErrInvalidToken
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "operator"
	}
	now := i.now()
	claims := &Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			Issuer:    "kube-garden",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return signed, claims, nil
}

func (i *Issuer) accepts(token string) bool {
	if len(i.tokens) == 0 {
		return true
	}
	for _, t := range i.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(t)) == 1 {
			return true
		}
	}
	return false
}

// Validate parses and verifies a session token.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer("kube-garden"), jwt.WithExpirationRequired(), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

type ctxKey struct{}

// FromContext returns the claims Middleware attached to the request.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// Middleware requires a session from an Authorization bearer header or the
// garden_session cookie. Each credential present is tried, bearer first, so
// a stale cookie does not shadow a valid header.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, token := range credentials(r) {
			if claims, err := i.Validate(token); err == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
				return
			}
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func credentials(r *http.Request) []string {
	var tokens []string
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(h[len("Bearer "):]); t != "" {
			tokens = append(tokens, t)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		tokens = append(tokens, c.Value)
	}
	return tokens
}
