package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/sartorlabs/sartor/libs/auth"
	"github.com/sartorlabs/sartor/libs/httpx"
	"github.com/sartorlabs/sartor/services/booking-service/internal/booking"
	"github.com/sartorlabs/sartor/services/booking-service/internal/model"
)

type actorContextKey struct{}

// ActorFrom returns the authenticated actor stored by RequireAuth.
func ActorFrom(ctx context.Context) (booking.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(booking.Actor)
	return actor, ok
}

func withActor(ctx context.Context, actor booking.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// RequireAuth verifies the bearer token and puts the actor in the request
// context. Requests without a valid token never reach the handler.
func RequireAuth(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseAndVerifyHS256(token, secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			role := model.Role(claims.Role)
			switch role {
			case model.RoleCustomer, model.RoleStaff, model.RoleAdmin:
			default:
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			actor := booking.Actor{ID: claims.Sub, Email: claims.Email, Role: role}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}
