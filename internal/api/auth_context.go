package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mycellarapp/cellar-server/internal/auth"
	"github.com/mycellarapp/cellar-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	// userIDKey is the context key for the authenticated user ID.
	userIDKey ctxKey = "userID"
	// authErrKey holds why a presented token was rejected.
	authErrKey ctxKey = "authErr"
)

// Authenticator verifies access tokens. *service.AccountService implements it.
type Authenticator interface {
	Authenticate(token string) (*auth.AccessClaims, error)
}

// GetUserID returns the authenticated user ID from context.
// A rejected token reports its own error, a missing one a plain 401.
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if ok && userID != "" {
		return userID, nil
	}
	if err, ok := ctx.Value(authErrKey).(error); ok {
		return "", err
	}
	return "", huma.Error401Unauthorized("Authentication required")
}

// setUserID stores the user ID in context.
func setUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// bearerToken extracts the token from an Authorization header. The event
// stream also accepts ?token= because EventSource cannot set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if strings.HasSuffix(r.URL.Path, "/events") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// authMiddleware validates bearer tokens and stores the user ID in context.
// Requests without a valid token continue anonymously; handlers use
// GetUserID to reject them.
func authMiddleware(verifier Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Authenticate(token)
			if err != nil {
				ctx := context.WithValue(r.Context(), authErrKey, err)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			next.ServeHTTP(w, r.WithContext(setUserID(r.Context(), claims.UserID)))
		})
	}
}

// session resolves the caller and their active cellar.
func (s *Server) session(ctx context.Context) (service.Session, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return service.Session{}, err
	}

	active, err := s.services.Cellars.ActiveCellar(ctx, userID)
	if err != nil {
		return service.Session{}, err
	}
	return service.Session{UserID: userID, ActiveCellarID: active}, nil
}

// eventUser resolves the user for the event stream.
func eventUser(r *http.Request) (string, bool) {
	userID, err := GetUserID(r.Context())
	return userID, err == nil
}
