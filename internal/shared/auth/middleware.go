package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/healthsync/symptom-triage/internal/shared/config"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// User is the authenticated caller. Wearable tokens are present only when
// the identity provider linked a wearable account at login.
type User struct {
	ID                   string `json:"sub"`
	WearableAccessToken  string `json:"-"`
	WearableRefreshToken string `json:"-"`
}

// WearableLinked reports whether vitals can be fetched for this user.
func (u *User) WearableLinked() bool {
	return u != nil && u.WearableAccessToken != ""
}

// Claims extends JWT claims with the wearable link
type Claims struct {
	jwt.RegisteredClaims
	WearableAccessToken  string `json:"wearable_access_token,omitempty"`
	WearableRefreshToken string `json:"wearable_refresh_token,omitempty"`
}

// Middleware creates JWT authentication middleware. With auth disabled
// requests pass through anonymously and handlers fall back to the user id
// supplied in the request body.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			user, err := ParseToken(cfg.JWTSecret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseToken validates an HMAC-signed token and builds the user from its claims.
func ParseToken(secret, tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return &User{
		ID:                   claims.Subject,
		WearableAccessToken:  claims.WearableAccessToken,
		WearableRefreshToken: claims.WearableRefreshToken,
	}, nil
}

// IssueToken signs a token for a user. Used by the CLI to mint local
// development tokens and by tests.
func IssueToken(secret string, user User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		WearableAccessToken:  user.WearableAccessToken,
		WearableRefreshToken: user.WearableRefreshToken,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// WithUser returns a context carrying user
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
