package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/mbolis/civic-survey/app"
	"github.com/mbolis/civic-survey/httpx"
	"github.com/mbolis/civic-survey/log"
	"github.com/mbolis/civic-survey/model"
)

// ownedSurvey loads the live survey named in the URL, answering 404 when it
// does not exist and 403 when it belongs to another company.
func ownedSurvey(app app.App, w http.ResponseWriter, r *http.Request, code string) (*model.Survey, bool) {
	surveyId := chi.URLParam(r, "id")

	survey, err := app.Store.GetSurvey(r.Context(), surveyId)
	if err != nil {
		httpx.LogInternalError(w, r, "db."+code, err)
		return nil, false
	}
	if survey == nil {
		httpx.LogNotFound(w, r, code, surveyId)
		return nil, false
	}
	if !principal(r).CanAccess(survey.CompanyID) {
		httpx.LogStatusMsg(w, r, http.StatusForbidden, log.DebugLevel, code+".forbidden", "survey %s belongs to another company", surveyId)
		return nil, false
	}
	return survey, true
}

func nullable(s model.Ideology) any {
	if s == "" {
		return nil
	}
	return string(s)
}

func insertQuestions(ctx context.Context, tx *sql.Tx, surveyId string, questions []model.Question, now time.Time) error {
	qStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO question (id, survey_id, question_text, question_type, is_required, order_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return err
	}
	defer qStmt.Close()

	oStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO question_option (id, question_id, option_text, option_value, order_index, is_correct)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return err
	}
	defer oStmt.Close()

	for i := range questions {
		q := &questions[i]
		q.ID = uuid.NewString()
		_, err = qStmt.ExecContext(ctx, q.ID, surveyId, q.QuestionText, q.QuestionType, q.IsRequired, q.OrderIndex, now)
		if err != nil {
			return err
		}

		for j := range q.Options {
			o := &q.Options[j]
			o.ID = uuid.NewString()
			_, err = oStmt.ExecContext(ctx, o.ID, q.ID, o.OptionText, o.OptionValue, o.OrderIndex, o.IsCorrect)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func CreateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey := model.Survey{}
		err := render.DecodeJSON(r.Body, &survey)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		err = model.PrepareSurvey(&survey)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "survey.validate", "%s", err)
			return
		}

		p := principal(r)
		if !p.IsGlobalAdmin() {
			survey.CompanyID = p.CompanyID
		}
		if survey.CompanyID == "" {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "survey.validate", "companyId is required")
			return
		}

		contactJson, err := json.Marshal(survey.CollectContactInfo)
		if err != nil {
			httpx.LogInternalError(w, r, "insert_survey.contact_info", err)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var companyExists bool
		err = tx.QueryRowContext(r.Context(), `
			SELECT 1 FROM company
			WHERE id = $1
				AND deleted_at IS NULL`,
			survey.CompanyID,
		).Scan(&companyExists)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "insert_survey.get_company", survey.CompanyID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_survey.get_company", err)
			return
		}

		now := time.Now().UTC()
		surveyId := uuid.NewString()
		_, err = tx.ExecContext(r.Context(), `
			INSERT INTO survey (
				id, company_id, title, description, is_active,
				federal_ideology, state_ideology, collect_contact_info, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			surveyId,
			survey.CompanyID,
			survey.Title,
			survey.Description,
			*survey.IsActive,
			nullable(survey.FederalIdeology),
			nullable(survey.StateIdeology),
			string(contactJson),
			now,
			now,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_survey", err)
			return
		}

		err = insertQuestions(r.Context(), tx, surveyId, survey.Questions, now)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_survey.questions", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_survey.commit", err)
			return
		}

		log.WithFields(log.Fields{"survey": surveyId, "company": survey.CompanyID}).Info("survey created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":      surveyId,
			"version": 1,
		})
	}
}

func ListSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := `
			SELECT
				s.id, s.company_id, c.name, s.version, s.title, s.description, s.is_active,
				s.federal_ideology, s.state_ideology, s.collect_contact_info, s.created_at, s.updated_at,
				(SELECT COUNT(*) FROM question q WHERE q.survey_id = s.id AND q.deleted_at IS NULL),
				(SELECT COUNT(*) FROM survey_response sr WHERE sr.survey_id = s.id AND sr.deleted_at IS NULL)
			FROM survey s
			INNER JOIN company c ON (c.id = s.company_id)
			WHERE s.deleted_at IS NULL`
		args := []any{}

		p := principal(r)
		companyId := r.URL.Query().Get("companyId")
		if !p.IsGlobalAdmin() {
			companyId = p.CompanyID
		}
		if companyId != "" {
			query += `
				AND s.company_id = $1`
			args = append(args, companyId)
		}
		query += `
			ORDER BY s.created_at DESC`

		rows, err := app.QueryContext(r.Context(), query, args...)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_surveys", err)
			return
		}
		defer rows.Close()

		surveys := []model.Survey{}
		for rows.Next() {
			var (
				s          model.Survey
				isActive   bool
				federal    sql.NullString
				state      sql.NullString
				contact    string
				created    time.Time
				updated    time.Time
				nQuestions int
				nResponses int
			)
			err = rows.Scan(
				&s.ID, &s.CompanyID, &s.CompanyName, &s.Version, &s.Title, &s.Description, &isActive,
				&federal, &state, &contact, &created, &updated,
				&nQuestions, &nResponses,
			)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_surveys.scan", err)
				return
			}
			err = json.Unmarshal([]byte(contact), &s.CollectContactInfo)
			if err != nil {
				log.Warnf("get_surveys.contact_info: survey %s: %s", s.ID, err)
			}

			s.IsActive = &isActive
			s.FederalIdeology = model.Ideology(federal.String)
			s.StateIdeology = model.Ideology(state.String)
			s.CreatedAt, s.UpdatedAt = &created, &updated
			s.QuestionsCount, s.ResponsesCount = &nQuestions, &nResponses
			surveys = append(surveys, s)
		}
		if err = rows.Err(); err != nil {
			httpx.LogInternalError(w, r, "db.get_surveys.next", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"surveys": surveys,
		})
	}
}

func GetSurveyById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey, ok := ownedSurvey(app, w, r, "get_survey")
		if !ok {
			return
		}

		questions, err := app.Store.Questions(r.Context(), survey.ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_survey.questions", err)
			return
		}
		survey.Questions = questions

		render.JSON(w, r, survey)
	}
}

// UpdateSurvey replaces the survey fields and its whole question list. Old
// questions and options are soft deleted so stored answers keep their
// metadata. The request must carry the version it was based on.
func UpdateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := ownedSurvey(app, w, r, "update_survey")
		if !ok {
			return
		}

		survey := model.Survey{}
		err := render.DecodeJSON(r.Body, &survey)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		err = model.PrepareSurvey(&survey)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "survey.validate", "%s", err)
			return
		}

		contactJson, err := json.Marshal(survey.CollectContactInfo)
		if err != nil {
			httpx.LogInternalError(w, r, "update_survey.contact_info", err)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		now := time.Now().UTC()
		res, err := tx.ExecContext(r.Context(), `
			UPDATE survey
			SET
				title = $1,
				description = $2,
				is_active = $3,
				federal_ideology = $4,
				state_ideology = $5,
				collect_contact_info = $6,
				updated_at = $7,
				version = version+1
			WHERE id = $8
				AND version = $9
				AND deleted_at IS NULL`,
			survey.Title,
			survey.Description,
			*survey.IsActive,
			nullable(survey.FederalIdeology),
			nullable(survey.StateIdeology),
			string(contactJson),
			now,
			current.ID,
			survey.Version,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_survey", err)
			return
		}
		// optimistic lock
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_survey.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "db.update_survey.verify.conflict",
				"survey was modified: current version is %d", current.Version)
			return
		}

		// retire all questions
		_, err = tx.ExecContext(r.Context(), `
			UPDATE question_option
			SET deleted_at = $1
			WHERE deleted_at IS NULL
				AND question_id IN (SELECT id FROM question WHERE survey_id = $2)`,
			now,
			current.ID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_survey.delete_options", err)
			return
		}
		_, err = tx.ExecContext(r.Context(), `
			UPDATE question
			SET deleted_at = $1
			WHERE survey_id = $2
				AND deleted_at IS NULL`,
			now,
			current.ID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_survey.delete_questions", err)
			return
		}

		// recreate all questions
		err = insertQuestions(r.Context(), tx, current.ID, survey.Questions, now)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_survey.questions", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_survey.commit", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"id":      current.ID,
			"version": survey.Version + 1,
		})
	}
}

func ToggleSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := ownedSurvey(app, w, r, "toggle_survey")
		if !ok {
			return
		}

		isActive := !*current.IsActive
		res, err := app.ExecContext(r.Context(), `
			UPDATE survey
			SET
				is_active = $1,
				updated_at = $2,
				version = version+1
			WHERE id = $3
				AND version = $4
				AND deleted_at IS NULL`,
			isActive,
			time.Now().UTC(),
			current.ID,
			current.Version,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.toggle_survey", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.toggle_survey.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatus(w, r, http.StatusConflict, log.DebugLevel, "db.toggle_survey.verify.conflict")
			return
		}

		render.JSON(w, r, map[string]any{
			"id":       current.ID,
			"isActive": isActive,
			"version":  current.Version + 1,
		})
	}
}

// DeleteSurvey soft deletes a survey with its questions and options.
// Responses are kept.
func DeleteSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := ownedSurvey(app, w, r, "delete_survey")
		if !ok {
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		now := time.Now().UTC()
		_, err = tx.ExecContext(r.Context(), `
			UPDATE question_option
			SET deleted_at = $1
			WHERE deleted_at IS NULL
				AND question_id IN (SELECT id FROM question WHERE survey_id = $2)`,
			now,
			current.ID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_survey.options", err)
			return
		}

		_, err = tx.ExecContext(r.Context(), `
			UPDATE question
			SET deleted_at = $1
			WHERE survey_id = $2
				AND deleted_at IS NULL`,
			now,
			current.ID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_survey.questions", err)
			return
		}

		res, err := tx.ExecContext(r.Context(), `
			UPDATE survey
			SET deleted_at = $1
			WHERE id = $2
				AND deleted_at IS NULL`,
			now,
			current.ID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_survey", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_survey.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "delete_survey", current.ID)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_survey.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
