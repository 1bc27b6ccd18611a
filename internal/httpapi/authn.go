package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"fleetdesk.org/internal/auth"
)

const (
	authHeader      = "Authorization"
	bearer          = "Bearer "
	issuerKeyHeader = "X-Issuer-Key"
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth resolves the bearer token into an actor on the context and
// bootstraps the actor's role assignment. Without a configured signing
// secret the service runs open, in single local operator mode.
func (a *API) withAuth(next http.Handler) http.Handler {
	if !auth.TokensEnabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		actor, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := auth.ContextWithActor(r.Context(), actor)
		if a.svc.Users != nil {
			a.svc.Users.EnsureActor(ctx)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	if !strings.HasPrefix(header, bearer) {
		return "", errors.New("authorization header must use the Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearer))
	if token == "" {
		return "", errors.New("bearer token is empty")
	}
	return token, nil
}

type tokenRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

// handleAuthToken mints a bearer token for a caller that proves possession
// of the issuer key. Identity claims in the body are taken at face value
// only once that key checks out; without a configured key minting is
// disabled entirely.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !auth.VerifyIssuerKey(r.Header.Get(issuerKeyHeader)) {
		writeError(w, r, http.StatusForbidden, "invalid or missing issuer key")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, r, http.StatusBadRequest, "id is required")
		return
	}

	token, err := auth.GenerateToken(auth.Actor{ID: req.ID, Name: req.Name, Email: req.Email}, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(tokenTTL),
	})
}
