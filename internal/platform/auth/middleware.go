package auth

import (
	"net/http"

	"github.com/harvestlink/api/internal/platform/httpx"
)

// Middleware resolves the caller identity from the Authorization header and
// stores it on the request context. Requests without a usable identity are
// rejected before reaching the handlers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := ParseBearer(r.Header.Get("Authorization"))
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "missing or malformed credentials", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}
