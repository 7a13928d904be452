// Package session issues and verifies the bearer tokens the HTTP surface
// authenticates with. Tokens are HS256 JWTs carrying the user id as subject.
package session

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type contextKey string

const userIDKey contextKey = "userID"

const tokenTTL = 30 * 24 * time.Hour

type Manager struct {
	secret []byte
	logger *log.Logger
}

func NewManager(secret string) *Manager {
	return &Manager{
		secret: []byte(secret),
		logger: log.New(os.Stdout, "session: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// CreateToken mints a signed token for a user.
func (m *Manager) CreateToken(userID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	tok, err := jwt.NewBuilder().
		Subject(userID.String()).
		IssuedAt(now).
		Expiration(now.Add(tokenTTL)).
		Build()
	if err != nil {
		return "", err
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, m.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verify parses and validates a token, returning the user id it carries.
func (m *Manager) Verify(token string) (uuid.UUID, error) {
	parsed, err := jwt.Parse([]byte(token), jwt.WithKey(jwa.HS256, m.secret), jwt.WithValidate(true))
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(parsed.Subject())
}

// WithAuth rejects requests without a valid bearer token and stashes the
// user id in the request context.
func (m *Manager) WithAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		userID, err := m.Verify(token)
		if err != nil {
			m.logger.Printf("rejected token: %v", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// GetUserID pulls the authenticated user id from a request context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}
