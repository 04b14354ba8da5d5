package httpapi

import (
	"context"
	"net/http"
	"strings"

	"cargamasiva-backend-go/internal/services"
)

type contextKey string

const ctxClaims contextKey = "claims"

// authHolder lets WithAuth hand the claims back to RequestLogger, which
// only sees the outer request.
type authHolder struct {
	claims services.Claims
}

func WithAuth(tokens services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				WriteError(w, http.StatusUnauthorized, "Autenticación requerida")
				return
			}
			claims, err := tokens.VerifyAccess(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if holder, ok := r.Context().Value(ctxClaims).(*authHolder); ok {
				holder.claims = claims
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ctxClaims, &authHolder{claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func currentClaims(r *http.Request) services.Claims {
	if holder, ok := r.Context().Value(ctxClaims).(*authHolder); ok {
		return holder.claims
	}
	return services.Claims{}
}

func CurrentRUT(r *http.Request) string {
	return currentClaims(r).RUT
}

func CurrentRoles(r *http.Request) []string {
	return currentClaims(r).Roles
}

func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !services.HasRole(CurrentRoles(r), role) {
				WriteError(w, http.StatusForbidden, "No autorizado")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
