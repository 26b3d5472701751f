package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/research-hours/internal/core/identity"
)

// RBACAuthorization gates administrative routes on role scope. Per-record
// stage checks happen in the approval service, not here.
type RBACAuthorization struct {
	logger *slog.Logger
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{logger: logger}
}

// RequireScope admits users holding at least one active role of the given kinds.
func (ra *RBACAuthorization) RequireScope(kinds ...identity.ScopeKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				ra.logger.Warn("authorization check failed: user not found in context")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !user.HasAnyScope(kinds...) {
				ra.logger.WarnContext(r.Context(), "access denied: missing admin scope",
					"user_id", user.ID,
					"required_scopes", kinds)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyAdmin admits any reviewer regardless of scope.
func (ra *RBACAuthorization) RequireAnyAdmin() func(http.Handler) http.Handler {
	return ra.RequireScope(identity.ScopeUniversity, identity.ScopeFaculty, identity.ScopeDepartment)
}

func (ra *RBACAuthorization) RequireUniversityAdmin() func(http.Handler) http.Handler {
	return ra.RequireScope(identity.ScopeUniversity)
}
