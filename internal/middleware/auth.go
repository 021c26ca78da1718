package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/rota/internal/auth"
	"github.com/dukerupert/rota/internal/store"
)

// RequireIdentity verifies the bearer token and stores the caller's Identity.
func RequireIdentity(verifier auth.Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("identity rejected", "error", err, "remote", RealIP(r))
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireGroupMember loads the group named by the {group_id} path value and
// checks the caller is on its roster. It must wrap a handler registered on a
// pattern containing {group_id}, inside RequireIdentity.
func RequireGroupMember(groupStore *store.GroupStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			group, err := groupStore.GetByID(r.PathValue("group_id"))
			if err != nil {
				logger.Error("load group for auth", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to load group")
				return
			}
			if group == nil || group.Member(id.UID) == nil {
				writeError(w, http.StatusNotFound, "group not found")
				return
			}

			role := auth.RoleMember
			if group.IsAdmin(id.UID) {
				role = auth.RoleAdmin
			}
			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				UserID:  id.UID,
				GroupID: group.ID,
				Role:    role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the caller administers the current group.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashSecret bcrypt-hashes the shared sweep secret once at startup.
func HashSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}

// RequireSweepSecret admits requests whose bearer token matches the hashed
// secret. With no secret configured the endpoint is closed.
func RequireSweepSecret(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hash) == 0 {
				writeError(w, http.StatusForbidden, "sweep endpoint disabled")
				return
			}
			token, ok := bearerToken(r)
			if !ok || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromQuery copies an access_token query parameter into the
// Authorization header. Browsers cannot set headers on websocket upgrades.
func TokenFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if tok := r.URL.Query().Get("access_token"); tok != "" {
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+tok)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
