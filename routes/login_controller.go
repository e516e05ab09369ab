package routes

import (
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/mbolis/civic-survey/app"
	"github.com/mbolis/civic-survey/httpx"
	"github.com/mbolis/civic-survey/log"
	"github.com/mbolis/civic-survey/routes/middlewares"
)

var reRefreshAuth = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

// Login exchanges HTTP basic credentials (email and password) for an access
// and a refresh token.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		body := url.Values{
			"grant_type": {"password"},
			"username":   {user},
			"password":   {pass},
		}
		r.Body = io.NopCloser(strings.NewReader(body.Encode()))
		r.Header.Set("content-type", "application/x-www-form-urlencoded")
		r.Header.Set("content-length", strconv.Itoa(len(body.Encode())))

		resp := httpx.NewResponseBuffer()
		app.UserCredentials(resp, r)
		if resp.Status() != http.StatusOK {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "login.denied")
			return
		}
		resp.Flush(w)
	}
}

// Refresh exchanges a refresh token, sent as "Authorization: Refresh <token>",
// for a new token pair.
func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := reRefreshAuth.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}
		token := match[1]

		body := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {token},
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, "/", strings.NewReader(body.Encode()))
		if err != nil {
			httpx.LogInternalError(w, r, "refresh.new_request", err)
			return
		}
		req.Header.Set("content-type", "application/x-www-form-urlencoded")
		req.Header.Set("content-length", strconv.Itoa(len(body.Encode())))

		resp := httpx.NewResponseBuffer()
		app.UserCredentials(resp, req)
		if resp.Status() != http.StatusOK {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "refresh.denied")
			return
		}
		resp.Flush(w)
	}
}

func Verify(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := middlewares.GetPrincipal(r)
		render.JSON(w, r, map[string]any{
			"user": p,
		})
	}
}

// Logout revokes every refresh token of the caller. Access tokens already
// issued stay valid until they expire.
func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := middlewares.GetPrincipal(r)
		n, err := httpx.RevokeTokens(r, app.DB, p.Email)
		if err != nil {
			httpx.LogInternalError(w, r, "db.logout.delete_tokens", err)
			return
		}
		log.Debugf("logout: revoked %d refresh tokens of %s", n, p.Email)

		w.WriteHeader(http.StatusNoContent)
	}
}
