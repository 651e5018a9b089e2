package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestWithUserID_RoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-1")
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Errorf("UserIDFromContext() = %q, want user-1", got)
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("UserIDFromContext() = %q, want empty", got)
	}
}

func TestUserIDMiddleware(t *testing.T) {
	var seen string
	router := chi.NewRouter()
	router.With(UserIDMiddleware).Get("/users/{userID}", func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantSeen   string
	}{
		{"valid", "/users/alice", http.StatusOK, "alice"},
		{"too long", "/users/" + strings.Repeat("a", 129), http.StatusUnprocessableEntity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if seen != tt.wantSeen {
				t.Errorf("user id = %q, want %q", seen, tt.wantSeen)
			}
		})
	}
}
