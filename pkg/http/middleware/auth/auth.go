package auth

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/golang-jwt/jwt/v4"
)

type ctxKey string

const actorKey ctxKey = "actor"

// NewAuthMiddleware validates the bearer token and stores the acting
// user's id and role in the request context. Token issuance belongs to the
// auth collaborator; this side only verifies.
func NewAuthMiddleware() func(next http.Handler) http.Handler {
	secret := []byte(os.Getenv("CHECKOUT_JWT_SECRET"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)

				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(
				strings.TrimPrefix(header, "Bearer "),
				claims,
				func(t *jwt.Token) (interface{}, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}

					return secret, nil
				},
			)
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)

				return
			}

			userID, ok := claims["user_id"].(float64)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)

				return
			}
			role, _ := claims["role"].(string)
			if role == "" {
				role = string(actor.RoleUser)
			}

			act := actor.Actor{
				ID:   int64(userID),
				Role: actor.Role(role),
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), act)))
		})
	}
}

// WithActor returns a context carrying the actor. Exported for tests.
func WithActor(ctx context.Context, act actor.Actor) context.Context {
	return context.WithValue(ctx, actorKey, act)
}

// FromContext extracts the acting user placed by the middleware.
func FromContext(ctx context.Context) (actor.Actor, bool) {
	act, ok := ctx.Value(actorKey).(actor.Actor)

	return act, ok
}
