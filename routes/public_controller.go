package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/mbolis/civic-survey/app"
	"github.com/mbolis/civic-survey/httpx"
	"github.com/mbolis/civic-survey/log"
	"github.com/mbolis/civic-survey/model"
)

// PublicGetSurvey serves the newest active survey of a company to respondents.
func PublicGetSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "companySlug")

		survey, err := app.Store.ActiveSurvey(r.Context(), slug)
		if err != nil {
			httpx.LogInternalError(w, r, "db.public_get_survey", err)
			return
		}
		if survey == nil {
			httpx.LogStatusMsg(w, r, http.StatusNotFound, log.DebugLevel, "public_get_survey", "no active survey for %q", slug)
			return
		}

		questions, err := app.Store.Questions(r.Context(), survey.ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.public_get_survey.questions", err)
			return
		}
		for i := range questions {
			for j := range questions[i].Options {
				questions[i].Options[j].IsCorrect = false
			}
		}
		survey.Questions = questions

		render.JSON(w, r, map[string]any{
			"survey": survey,
		})
	}
}

type storedAnswer struct {
	questionID string
	text       *string
	selected   []string
	rating     *float64
}

// prepareAnswers checks a submission against the survey questions: every
// answer must reference one of them, at most once, and every required
// question must get a non-empty answer.
func prepareAnswers(questions []model.Question, answers []model.SubmittedAnswer) ([]storedAnswer, error) {
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var result *multierror.Error
	seen := map[string]bool{}
	stored := make([]storedAnswer, 0, len(answers))
	for i, a := range answers {
		if _, ok := byID[a.QuestionID]; !ok {
			result = multierror.Append(result, fmt.Errorf("answers[%d]: unknown question %q", i, a.QuestionID))
			continue
		}
		if seen[a.QuestionID] {
			result = multierror.Append(result, fmt.Errorf("answers[%d]: question %q answered twice", i, a.QuestionID))
			continue
		}
		seen[a.QuestionID] = true

		text, selected, rating, ok := model.ConvertAnswer(a.Answer)
		if !ok {
			seen[a.QuestionID] = false
			continue
		}
		stored = append(stored, storedAnswer{a.QuestionID, text, selected, rating})
	}

	for _, q := range questions {
		if q.IsRequired && !seen[q.ID] {
			result = multierror.Append(result, fmt.Errorf("question %q is required", q.QuestionText))
		}
	}

	if result != nil {
		result.ErrorFormat = model.JoinErrors
	}
	return stored, result.ErrorOrNil()
}

func nullString(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// PublicSubmitResponse stores the answers of a respondent to the active
// survey of a company.
func PublicSubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "companySlug")

		submission := model.Submission{}
		err := render.DecodeJSON(r.Body, &submission)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if submission.Answers == nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "submission.validate", "answers must be a list")
			return
		}

		survey, err := app.Store.ActiveSurvey(r.Context(), slug)
		if err != nil {
			httpx.LogInternalError(w, r, "db.submit.get_survey", err)
			return
		}
		if survey == nil {
			httpx.LogStatusMsg(w, r, http.StatusNotFound, log.DebugLevel, "submit.get_survey", "no active survey for %q", slug)
			return
		}

		questions, err := app.Store.Questions(r.Context(), survey.ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.submit.get_questions", err)
			return
		}

		answers, err := prepareAnswers(questions, submission.Answers)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "submission.validate", "%s", err)
			return
		}

		city := strings.TrimSpace(submission.City)
		if city == "" {
			city = model.UnknownCity
		}
		contact := submission.ContactInfo
		if contact == nil {
			contact = &model.Contact{}
		}
		var newsletter any
		if contact.Newsletter != nil {
			newsletter = *contact.Newsletter
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		now := time.Now().UTC()
		responseId := uuid.NewString()
		_, err = tx.ExecContext(r.Context(), `
			INSERT INTO survey_response (
				id, survey_id, company_id, session_token, city,
				contact_name, contact_email, contact_phone, wants_newsletter,
				created_at, completed_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			responseId,
			survey.ID,
			survey.CompanyID,
			uuid.NewString(),
			city,
			nullString(contact.Name),
			nullString(contact.Email),
			nullString(contact.Phone),
			newsletter,
			now,
			now,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_response", err)
			return
		}

		stmt, err := tx.PrepareContext(r.Context(), `
			INSERT INTO question_answer (id, survey_response_id, question_id, answer_text, selected_options, rating_value)
			VALUES ($1, $2, $3, $4, $5, $6)`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_response.answers.prepare", err)
			return
		}
		defer stmt.Close()

		for _, a := range answers {
			var selectedJson any
			if a.selected != nil {
				b, err := json.Marshal(a.selected)
				if err != nil {
					httpx.LogInternalError(w, r, "insert_response.answers.selected", err)
					return
				}
				selectedJson = string(b)
			}
			_, err = stmt.ExecContext(r.Context(), uuid.NewString(), responseId, a.questionID, a.text, selectedJson, a.rating)
			if err != nil {
				httpx.LogInternalError(w, r, "db.insert_response.answers.insert", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_response.commit", err)
			return
		}

		log.WithFields(log.Fields{"survey": survey.ID, "response": responseId, "answers": len(answers)}).Debug("response stored")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":      responseId,
			"message": "Respostas enviadas com sucesso!",
		})
	}
}
