package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/MelonGO/gemini-chatbot/store"
)

const (
	issuer = "gemini-chatbot"

	// AccessTokenDuration is the lifetime of an issued access token.
	AccessTokenDuration = 7 * 24 * time.Hour
)

type contextKey int

const userIDContextKey contextKey = iota

// SetUserIDInContext stores the authenticated user id in the context.
func SetUserIDInContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// GetUserIDFromContext returns the authenticated user id, empty if the
// request was not authenticated.
func GetUserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey).(string)
	return userID
}

// GenerateAccessToken issues a signed token for the given user.
func GenerateAccessToken(userID, secret string) (string, error) {
	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenDuration)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Authenticator validates bearer tokens against the user table.
type Authenticator struct {
	store  *store.Store
	secret string
}

// NewAuthenticator creates an authenticator with the given signing secret.
func NewAuthenticator(st *store.Store, secret string) *Authenticator {
	return &Authenticator{store: st, secret: secret}
}

// Authenticate parses the Authorization header value and returns the
// authenticated user. The token must be a bearer token signed with the
// server secret and reference an existing user.
func (a *Authenticator) Authenticate(ctx context.Context, authHeader string) (*store.User, error) {
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		return nil, errors.New("missing bearer token")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid access token")
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid access token")
	}

	user, err := a.store.GetUser(ctx, &store.FindUser{ID: &claims.Subject})
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}
	if user == nil {
		return nil, errors.New("user not found")
	}
	return user, nil
}
