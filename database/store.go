package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mbolis/civic-survey/analytics"
	"github.com/mbolis/civic-survey/log"
	"github.com/mbolis/civic-survey/model"
)

// Store holds the read queries shared by the admin, public and analytics
// endpoints. Soft-deleted surveys, questions, options and responses are never
// returned, except for question metadata joined onto stored answers.
type Store struct {
	db *sql.DB
}

var _ analytics.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetSurvey returns nil when the survey does not exist or was deleted.
func (s *Store) GetSurvey(ctx context.Context, surveyID string) (*model.Survey, error) {
	var (
		sv         model.Survey
		isActive   bool
		federal    sql.NullString
		state      sql.NullString
		contactRaw string
	)
	sv.CreatedAt, sv.UpdatedAt = new(time.Time), new(time.Time)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			s.id, s.company_id, c.name, s.version, s.title, s.description, s.is_active,
			s.federal_ideology, s.state_ideology, s.collect_contact_info,
			s.created_at, s.updated_at
		FROM survey s
		INNER JOIN company c ON (c.id = s.company_id)
		WHERE s.id = $1
			AND s.deleted_at IS NULL`,
		surveyID,
	).Scan(
		&sv.ID, &sv.CompanyID, &sv.CompanyName, &sv.Version, &sv.Title, &sv.Description, &isActive,
		&federal, &state, &contactRaw,
		sv.CreatedAt, sv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get survey")
	}

	sv.IsActive = &isActive
	sv.FederalIdeology = model.Ideology(federal.String)
	sv.StateIdeology = model.Ideology(state.String)
	if err := json.Unmarshal([]byte(contactRaw), &sv.CollectContactInfo); err != nil {
		log.Warnf("survey %s: unreadable collect_contact_info: %s", sv.ID, err)
	}
	return &sv, nil
}

// Questions lists the live questions of a survey by order index, each with
// its live options in order.
func (s *Store) Questions(ctx context.Context, surveyID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			q.id, q.question_text, q.question_type, q.is_required, q.order_index,
			o.id, o.option_text, o.option_value, o.order_index, o.is_correct
		FROM question q
		LEFT OUTER JOIN question_option o ON (o.question_id = q.id AND o.deleted_at IS NULL)
		WHERE q.survey_id = $1
			AND q.deleted_at IS NULL
		ORDER BY q.order_index, q.created_at, q.id, o.order_index, o.id`,
		surveyID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list questions")
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var (
			q          model.Question
			optID      sql.NullString
			optText    sql.NullString
			optValue   sql.NullString
			optOrder   sql.NullInt64
			optCorrect sql.NullBool
		)
		err = rows.Scan(
			&q.ID, &q.QuestionText, &q.QuestionType, &q.IsRequired, &q.OrderIndex,
			&optID, &optText, &optValue, &optOrder, &optCorrect,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan question")
		}

		last := len(questions) - 1
		if last < 0 || questions[last].ID != q.ID {
			q.Options = []model.QuestionOption{}
			questions = append(questions, q)
			last++
		}
		if optID.Valid {
			questions[last].Options = append(questions[last].Options, model.QuestionOption{
				ID:          optID.String,
				OptionText:  optText.String,
				OptionValue: optValue.String,
				OrderIndex:  int(optOrder.Int64),
				IsCorrect:   optCorrect.Bool,
			})
		}
	}
	return questions, errors.Wrap(rows.Err(), "iterate questions")
}

// ListResponses returns the live responses of a survey, newest first, each
// with its answers and the metadata of the answered question. An empty city
// means every city.
func (s *Store) ListResponses(ctx context.Context, surveyID, city string) ([]model.Response, error) {
	query := `
		SELECT
			r.id, r.city, r.created_at, r.completed_at,
			r.contact_name, r.contact_email, r.contact_phone, r.wants_newsletter,
			a.id, a.question_id, a.answer_text, a.selected_options, a.rating_value,
			q.question_text, q.question_type, q.order_index
		FROM survey_response r
		LEFT OUTER JOIN question_answer a ON (a.survey_response_id = r.id)
		LEFT OUTER JOIN question q ON (q.id = a.question_id)
		WHERE r.survey_id = $1
			AND r.deleted_at IS NULL`
	args := []any{surveyID}
	if city != "" {
		query += `
			AND r.city = $2`
		args = append(args, city)
	}
	query += `
		ORDER BY r.created_at DESC, r.id, q.order_index, a.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list responses")
	}
	defer rows.Close()

	responses := []model.Response{}
	for rows.Next() {
		var (
			r          model.Response
			completed  sql.NullTime
			name       sql.NullString
			email      sql.NullString
			phone      sql.NullString
			newsletter sql.NullBool

			answerID   sql.NullString
			questionID sql.NullString
			answerText sql.NullString
			selected   sql.NullString
			ratingVal  sql.NullFloat64

			qText  sql.NullString
			qType  sql.NullString
			qOrder sql.NullInt64
		)
		err = rows.Scan(
			&r.ID, &r.City, &r.CreatedAt, &completed,
			&name, &email, &phone, &newsletter,
			&answerID, &questionID, &answerText, &selected, &ratingVal,
			&qText, &qType, &qOrder,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan response")
		}

		last := len(responses) - 1
		if last < 0 || responses[last].ID != r.ID {
			if completed.Valid {
				r.CompletedAt = &completed.Time
			}
			if name.Valid || email.Valid || phone.Valid || newsletter.Valid {
				r.Contact = &model.Contact{Name: name.String, Email: email.String, Phone: phone.String}
				if newsletter.Valid {
					r.Contact.Newsletter = &newsletter.Bool
				}
			}
			r.Answers = []model.Answer{}
			responses = append(responses, r)
			last++
		}
		if !answerID.Valid {
			continue
		}

		a := model.Answer{ID: answerID.String, QuestionID: questionID.String}
		if answerText.Valid {
			a.Text = &answerText.String
		}
		if ratingVal.Valid {
			a.Rating = &ratingVal.Float64
		}
		if selected.Valid {
			if err := json.Unmarshal([]byte(selected.String), &a.SelectedOptions); err != nil {
				log.Debugf("answer %s: unreadable selected_options, ignoring: %s", a.ID, err)
				a.SelectedOptions = []string{}
			}
		}
		if qType.Valid {
			a.Question = &model.AnsweredQuestion{
				Text:       qText.String,
				Type:       model.QuestionType(qType.String),
				OrderIndex: int(qOrder.Int64),
			}
		}
		responses[last].Answers = append(responses[last].Answers, a)
	}
	return responses, errors.Wrap(rows.Err(), "iterate responses")
}

// ListOptionLabels returns option texts by option value for each question,
// including options of questions replaced since the answers were stored.
func (s *Store) ListOptionLabels(ctx context.Context, questionIDs []string) (analytics.OptionLabels, error) {
	labels := analytics.OptionLabels{}
	if len(questionIDs) == 0 {
		return labels, nil
	}

	placeholders := make([]string, len(questionIDs))
	args := make([]any, len(questionIDs))
	for i, id := range questionIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, option_value, option_text
		FROM question_option
		WHERE question_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY question_id, order_index`,
		args...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list option labels")
	}
	defer rows.Close()

	for rows.Next() {
		var questionID, value, text string
		if err := rows.Scan(&questionID, &value, &text); err != nil {
			return nil, errors.Wrap(err, "scan option label")
		}
		if labels[questionID] == nil {
			labels[questionID] = map[string]string{}
		}
		labels[questionID][value] = text
	}
	return labels, errors.Wrap(rows.Err(), "iterate option labels")
}

// ActiveSurvey returns the newest active survey of the company with the given
// slug, or nil when the company is unknown or has no active survey.
func (s *Store) ActiveSurvey(ctx context.Context, companySlug string) (*model.Survey, error) {
	var surveyID string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id
		FROM survey s
		INNER JOIN company c ON (c.id = s.company_id)
		WHERE c.slug = $1
			AND c.deleted_at IS NULL
			AND s.is_active = $2
			AND s.deleted_at IS NULL
		ORDER BY s.created_at DESC
		LIMIT 1`,
		companySlug,
		true,
	).Scan(&surveyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get active survey")
	}
	return s.GetSurvey(ctx, surveyID)
}
