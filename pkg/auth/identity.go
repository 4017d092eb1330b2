package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"dealdesk/pkg/config"
	"dealdesk/pkg/logger"
	"dealdesk/pkg/utils"
)

// Role represents the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig mirrors the security-related configuration used to drive
// authentication, CORS and rate limiting behavior. Shared by limiter.go
// and gateway.go.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

type ctxActorKey struct{}

// RequireSignedActor verifies HMAC signature headers and injects the
// verified actor id into the request context.
func RequireSignedActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role-Name")
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		// Backend/admin callers may omit the signature entirely; a
		// present signature is still verified below.
		if role == "backend" || role == "admin" {
			if sig == "" {
				next.ServeHTTP(w, r)
				return
			}
		}

		if sig == "" || userID == "" {
			logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			utils.JSONError(w, http.StatusUnauthorized, "missing signature headers")
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			utils.JSONError(w, http.StatusInternalServerError, "server misconfigured: no signing secrets available")
			return
		}

		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", "user", userID)
			utils.JSONError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		logger.Info("signature_verified", "user", userID)
		ctx := context.WithValue(r.Context(), ctxActorKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorIDFromContext returns the verified actor id or empty string.
func ActorIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxActorKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func validateActor(a string) (bool, string) {
	if a == "" {
		return false, "actor required"
	}
	if len(a) > 128 {
		return false, "actor too long"
	}
	return true, ""
}

// ResolveActorFromRequest is the canonical resolver handlers call. A
// signature-verified actor (in context) is authoritative; conflicting
// actors in header/body/query are rejected with 403. Without a
// signature, backend/admin roles may supply an actor via body, header
// (X-User-ID) or query; frontend callers get 401.
func ResolveActorFromRequest(r *http.Request, bodyActor string) (string, int, string) {
	if id := ActorIDFromContext(r.Context()); id != "" {
		if q := strings.TrimSpace(r.URL.Query().Get("actor")); q != "" && q != id {
			logger.Warn("actor_mismatch_signature_query", "signature", id, "query", q, "path", r.URL.Path)
			return "", http.StatusForbidden, "actor mismatch between signature and query param"
		}
		if h := strings.TrimSpace(r.Header.Get("X-User-ID")); h != "" && h != id {
			logger.Warn("actor_mismatch_signature_header", "signature", id, "header", h, "path", r.URL.Path)
			return "", http.StatusForbidden, "actor mismatch between signature and header"
		}
		if bodyActor != "" && bodyActor != id {
			logger.Warn("actor_mismatch_signature_body", "signature", id, "body", bodyActor, "path", r.URL.Path)
			return "", http.StatusForbidden, "actor mismatch between signature and body"
		}
		return id, 0, ""
	}

	role := r.Header.Get("X-Role-Name")
	if role == "backend" || role == "admin" {
		for _, cand := range []string{bodyActor, strings.TrimSpace(r.Header.Get("X-User-ID")), strings.TrimSpace(r.URL.Query().Get("actor"))} {
			if cand == "" {
				continue
			}
			if ok, msg := validateActor(cand); !ok {
				logger.Warn("invalid_backend_actor", "user", cand, "path", r.URL.Path)
				return "", http.StatusBadRequest, msg
			}
			return cand, 0, ""
		}
		logger.Warn("backend_missing_actor", "remote", r.RemoteAddr, "path", r.URL.Path)
		return "", http.StatusBadRequest, "actor required for backend requests"
	}

	logger.Warn("missing_actor_signature", "role", role, "path", r.URL.Path)
	return "", http.StatusUnauthorized, "missing or invalid actor signature"
}
