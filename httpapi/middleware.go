package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/voundbrand/go-authority/core"
)

type contextKey string

const (
	requestIDContextKey contextKey = "authority.http.request_id"
	authContextKey      contextKey = "authority.http.auth"
)

const requestIDHeader = "X-Request-Id"

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// recovery turns handler panics into a logged stack plus a generic 500
// envelope. Panic values never reach the response body.
func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			s.logger.Error("panic recovered",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestIDFrom(r.Context()),
				"stack", string(debug.Stack()),
			)
			writeErrorEnvelope(w, http.StatusInternalServerError, errorBody{
				Message: "An unexpected error occurred",
				Code:    core.AuthorityErrorInternal,
			})
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", s.cors.AllowedOrigin)
		header.Set("Access-Control-Allow-Methods", strings.Join(s.cors.AllowedMethods, ", "))
		header.Set("Access-Control-Allow-Headers", strings.Join(s.cors.AllowedHeaders, ", "))
		next.ServeHTTP(w, r)
	})
}

// handlePreflight answers every OPTIONS request. The cors middleware already
// set the allow headers; preflight only adds the cache hint.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// authenticate resolves the bearer credential and stores the resulting auth
// context for downstream handlers. Any failure is the uniform 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		auth, err := s.services.Auth.VerifyCredential(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey, auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireScopes gates a subrouter on the authenticated caller's grants. It
// always runs after authenticate; a missing auth context is a wiring bug and
// rejects the request outright.
func (s *Server) requireScopes(needed ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := authFromContext(r.Context())
			if !ok {
				s.writeError(w, r, core.NewCredentialInvalidError())
				return
			}
			if err := s.services.Auth.RequireScopes(r.Context(), auth, needed...); err != nil {
				s.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authFromContext(ctx context.Context) (core.AuthContext, bool) {
	if ctx == nil {
		return core.AuthContext{}, false
	}
	auth, ok := ctx.Value(authContextKey).(core.AuthContext)
	return auth, ok
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", core.NewCredentialInvalidError()
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", core.NewCredentialInvalidError()
	}
	return token, nil
}
