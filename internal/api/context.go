package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/orbit/internal/validation"
)

// userIDContextKey is the context key for the validated path user ID.
type userIDContextKey struct{}

// WithUserID returns a new context with the user ID attached.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext extracts the user ID from the context.
// Returns "" if not present.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey{}).(string)
	return id
}

// UserIDMiddleware validates the {userID} path parameter and attaches it to
// the request context. Invalid IDs get a 422 before reaching the handler.
func UserIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if errs := validation.ValidateUserID("user_id", userID); len(errs) > 0 {
			WriteProblemWithErrors(w, r, "Invalid user ID", errs)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
