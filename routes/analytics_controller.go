package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/civic-survey/analytics"
	"github.com/mbolis/civic-survey/app"
	"github.com/mbolis/civic-survey/httpx"
)

// SurveyAnalytics reports the aggregated answers of a survey, optionally
// restricted to the city given in the "city" query parameter.
func SurveyAnalytics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey, ok := ownedSurvey(app, w, r, "get_analytics")
		if !ok {
			return
		}

		result, err := app.Analytics.Survey(r.Context(), survey.ID, r.URL.Query().Get("city"))
		if errors.Is(err, analytics.ErrSurveyNotFound) {
			httpx.LogNotFound(w, r, "get_analytics", survey.ID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_analytics", err)
			return
		}

		render.JSON(w, r, result)
	}
}

func SurveyAnalyticsDebug(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey, ok := ownedSurvey(app, w, r, "get_analytics_debug")
		if !ok {
			return
		}

		report, err := app.Analytics.Debug(r.Context(), survey.ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_analytics_debug", err)
			return
		}

		render.JSON(w, r, report)
	}
}
