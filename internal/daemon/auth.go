package daemon

import (
	"crypto/subtle"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"reelsmith/internal/api"
	"reelsmith/internal/services"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(w)
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, "Bearer ")), []byte(token)) != 1 {
			unauthorized(w)
			return
		}
		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","kind":"unauthorized"}` + "\n"))
}

// withRequestContext attaches the acting user and a correlation id to the
// request context and caps the request body size.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := services.WithRequestID(r.Context(), requestID)
		ctx = services.WithUserID(ctx, headerUserID(r))
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func headerUserID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(api.HeaderUserID)); id != "" {
		return id
	}
	return api.DefaultUserID
}

// userID returns the acting user stored by withRequestContext.
func userID(r *http.Request) string {
	if id, ok := services.UserIDFromContext(r.Context()); ok && id != "" {
		return id
	}
	return headerUserID(r)
}

// assetHandler serves stored files without directory listings. Assets are
// public so generation providers can fetch reference media by URL.
func assetHandler(root string) http.Handler {
	files := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(clean)))
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
