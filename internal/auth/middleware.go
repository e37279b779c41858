package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Middleware guards handlers with a Verifier.
type Middleware struct {
	verifier *Verifier
}

func NewMiddleware(v *Verifier) *Middleware {
	return &Middleware{verifier: v}
}

// Require rejects requests without a credential valid for scope, replying
// with status and detail before next reads the body.
func (m *Middleware) Require(scope string, status int, detail string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.verifier.Enforced(scope) {
			next(w, r)
			return
		}

		if err := m.verifier.Verify(scope, BearerToken(r.Header.Get("Authorization"))); err != nil {
			slog.Warn("Rejected request", "path", r.URL.Path, "scope", scope, "remote", r.RemoteAddr, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"detail": detail})
			return
		}

		next(w, r)
	}
}
