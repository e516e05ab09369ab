package routes

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/civic-survey/analytics"
	"github.com/mbolis/civic-survey/app"
	"github.com/mbolis/civic-survey/httpx"
	"github.com/mbolis/civic-survey/log"
)

func ListSurveyResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey, ok := ownedSurvey(app, w, r, "get_responses")
		if !ok {
			return
		}

		responses, err := app.Store.ListResponses(r.Context(), survey.ID, "")
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_responses", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"survey": map[string]any{
				"id":        survey.ID,
				"title":     survey.Title,
				"companyId": survey.CompanyID,
			},
			"responses":      analytics.Readable(responses),
			"totalResponses": len(responses),
		})
	}
}

// DeleteSurveyResponses removes every response of a survey for good.
func DeleteSurveyResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey, ok := ownedSurvey(app, w, r, "delete_responses")
		if !ok {
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(r.Context(), `
			DELETE FROM question_answer
			WHERE survey_response_id IN (SELECT id FROM survey_response WHERE survey_id = $1)`,
			survey.ID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_responses.answers", err)
			return
		}

		res, err := tx.ExecContext(r.Context(), `
			DELETE FROM survey_response
			WHERE survey_id = $1`,
			survey.ID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_responses", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_responses.verify", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_responses.commit", err)
			return
		}

		log.WithFields(log.Fields{"survey": survey.ID, "count": n}).Info("responses deleted")
		render.JSON(w, r, map[string]any{
			"deletedCount": n,
		})
	}
}
