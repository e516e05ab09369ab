package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/mbolis/civic-survey/app"
	"github.com/mbolis/civic-survey/httpx"
	"github.com/mbolis/civic-survey/log"
	"github.com/mbolis/civic-survey/model"
	"github.com/mbolis/civic-survey/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middlewares.RequestLogger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))
	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "route.not_found")
	})

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Get("/health", Health(app))

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))
	api.Route("/auth", func(r chi.Router) {
		r.Use(middlewares.Authenticate(app.TokenSecret))

		r.Get("/verify", Verify(app))
		r.Post("/logout", Logout(app))
	})

	api.Route("/public", func(r chi.Router) {
		r.Get("/{companySlug}", PublicGetSurvey(app))
		r.Post("/{companySlug}/responses", PublicSubmitResponse(app))
	})

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Authenticate(app.TokenSecret))

		r.Get("/profile", Profile(app))

		r.Route("/companies", func(r chi.Router) {
			r.Use(middlewares.RequireRole(model.RoleGlobalAdmin))

			r.Get("/", ListCompanies(app))
			r.Post("/", CreateCompany(app))
			r.Post("/{id}/admins", CreateCompanyAdmin(app))
		})
		r.With(middlewares.RequireRole(model.RoleCompanyAdmin)).
			Get("/company", GetOwnCompany(app))

		// CRUD survey
		r.Route("/surveys", func(r chi.Router) {
			r.Get("/", ListSurveys(app))
			r.Post("/", CreateSurvey(app))
			r.Get("/{id}", GetSurveyById(app))
			r.Put("/{id}", UpdateSurvey(app))
			r.Patch("/{id}/toggle", ToggleSurvey(app))
			r.Delete("/{id}", DeleteSurvey(app))

			r.Get("/{id}/responses", ListSurveyResponses(app))
			r.Delete("/{id}/responses", DeleteSurveyResponses(app))
		})

		r.Get("/analytics/{id}", SurveyAnalytics(app))
		r.Get("/analytics/{id}/debug", SurveyAnalyticsDebug(app))
	})

	return api
}

func Health(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if err := app.PingContext(r.Context()); err != nil {
			log.Warnf("health.db_ping: %s", err)
			status = "degraded"
			render.Status(r, http.StatusServiceUnavailable)
		}
		render.JSON(w, r, map[string]any{
			"status": status,
		})
	}
}
