package middleware

import (
	"context"
	"net/http"
	"strings"

	"agendify/pkg/auth"
	"agendify/pkg/logger"
	"agendify/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// AccountResolver loads the role for an account when the session cache
// has no entry for the presented token.
type AccountResolver interface {
	ResolveRole(ctx context.Context, accountID string) (model.Role, error)
}

type Authenticator struct {
	tokens   *auth.TokenManager
	sessions *auth.SessionCache
	accounts AccountResolver
	log      *logger.Logger
}

func NewAuthenticator(tokens *auth.TokenManager, sessions *auth.SessionCache, accounts AccountResolver, log *logger.Logger) *Authenticator {
	return &Authenticator{
		tokens:   tokens,
		sessions: sessions,
		accounts: accounts,
		log:      log,
	}
}

// Authenticate verifies the Bearer token, resolves the caller's role and
// places an auth.Identity in the request context. Requests without a valid
// token are rejected with 401.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			rejectUnauthorized(w, a.log, r, "missing bearer token")
			return
		}

		accountID, err := a.tokens.Verify(token)
		if err != nil {
			rejectUnauthorized(w, a.log, r, "invalid token")
			return
		}

		identity, err := a.resolveIdentity(r.Context(), token, accountID)
		if err != nil {
			rejectUnauthorized(w, a.log, r, "unknown account")
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) resolveIdentity(ctx context.Context, token, accountID string) (auth.Identity, error) {
	tokenHash := auth.HashToken(token)

	if cached, ok := a.sessions.Get(ctx, tokenHash); ok {
		return cached, nil
	}

	role, err := a.accounts.ResolveRole(ctx, accountID)
	if err != nil {
		return auth.Identity{}, err
	}

	identity := auth.Identity{AccountID: accountID, Role: role}
	a.sessions.Set(ctx, tokenHash, identity)

	return identity, nil
}

// Protect adapts Authenticate to httprouter's handle signature so handlers
// can guard individual routes while auth endpoints stay public.
func (a *Authenticator) Protect(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next(w, r, ps)
		})).ServeHTTP(w, r)
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func rejectUnauthorized(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	requestID := ""
	if rid := r.Context().Value(RequestIDKey); rid != nil {
		if id, ok := rid.(string); ok {
			requestID = id
		}
	}

	log.Warn("Unauthorized request",
		"request_id", requestID,
		"reason", reason,
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Authentication required"}`))
}
