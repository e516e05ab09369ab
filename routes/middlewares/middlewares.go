package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/oauth"
	"github.com/mitchellh/mapstructure"

	"github.com/mbolis/civic-survey/httpx"
	"github.com/mbolis/civic-survey/log"
	"github.com/mbolis/civic-survey/model"
)

// Principal is the admin user a bearer token was issued to.
type Principal struct {
	UserID    string     `mapstructure:"user_id" json:"id"`
	Email     string     `mapstructure:"email" json:"email"`
	Role      model.Role `mapstructure:"role" json:"role"`
	CompanyID string     `mapstructure:"company_id" json:"companyId,omitempty"`
}

func (p Principal) IsGlobalAdmin() bool {
	return p.Role == model.RoleGlobalAdmin
}

// CanAccess reports whether the principal may act on data of a company.
func (p Principal) CanAccess(companyID string) bool {
	return p.IsGlobalAdmin() || (p.CompanyID != "" && p.CompanyID == companyID)
}

type principalKey struct{}

// GetPrincipal returns the principal stored by Authenticate.
func GetPrincipal(r *http.Request) (Principal, bool) {
	p, ok := r.Context().Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticate checks the bearer token and stores its principal in the
// request context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), principal).Handler(next)
	}
}

func principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)

		var p Principal
		err := mapstructure.Decode(claims, &p)
		if err != nil || p.UserID == "" || p.Role == "" {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.claims")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets through principals having one of the given roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := GetPrincipal(r)
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.LogStatusMsg(w, r, http.StatusForbidden, log.DebugLevel, "auth.role", "role %q not allowed", p.Role)
		})
	}
}

// RequestLogger logs one line per request once it is served.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(log.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("request")
			} else {
				entry.Info("request")
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
