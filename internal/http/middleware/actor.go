package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorClaims is the token issued by the identity service: the subject is the
// actor id and role is one of subject, provider or operator.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Actor verifies an HMAC-signed bearer token and stores the caller in the
// request context.
func Actor(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "authentication disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			claims := ActorClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			actor, ok := actorFromClaims(claims)
			if !ok {
				http.Error(w, "invalid token subject", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func actorFromClaims(claims ActorClaims) (scheduling.Actor, bool) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return scheduling.Actor{}, false
	}
	role := scheduling.Role(strings.ToLower(strings.TrimSpace(claims.Role)))
	switch role {
	case scheduling.RoleSubject, scheduling.RoleProvider, scheduling.RoleOperator:
	default:
		return scheduling.Actor{}, false
	}
	return scheduling.Actor{ID: id, Role: role}, true
}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor scheduling.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the authenticated caller if present.
func ActorFromContext(ctx context.Context) (scheduling.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(scheduling.Actor)
	return actor, ok
}
