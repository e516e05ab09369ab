package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/mbolis/civic-survey/model"
)

var ErrSurveyNotFound = errors.New("survey not found")

// AllCities disables the city filter, as does an empty city.
const AllCities = "all"

// Store is the read side of persistence the report needs. GetSurvey returns a
// nil survey when none exists; ListResponses returns newest first.
type Store interface {
	GetSurvey(ctx context.Context, surveyID string) (*model.Survey, error)
	ListResponses(ctx context.Context, surveyID, city string) ([]model.Response, error)
	ListOptionLabels(ctx context.Context, questionIDs []string) (OptionLabels, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Survey builds the analytics report of a survey, restricted to one city
// unless city is empty or AllCities. Any store failure aborts the report.
func (s *Service) Survey(ctx context.Context, surveyID, city string) (*Result, error) {
	sv, err := s.store.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, ErrSurveyNotFound
	}

	if city == AllCities {
		city = ""
	}
	responses, err := s.store.ListResponses(ctx, surveyID, city)
	if err != nil {
		return nil, err
	}

	labels := OptionLabels{}
	if ids := ChoiceQuestionIDs(responses); len(ids) > 0 {
		labels, err = s.store.ListOptionLabels(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	info := SurveyInfo{
		ID:              sv.ID,
		Title:           sv.Title,
		FederalIdeology: sv.FederalIdeology,
		StateIdeology:   sv.StateIdeology,
	}
	return Aggregate(info, responses, labels), nil
}

// DebugRow exposes the raw answers of one response next to the interest
// answer the report would read from it.
type DebugRow struct {
	ID             string        `json:"id"`
	City           string        `json:"city"`
	CreatedAt      time.Time     `json:"createdAt"`
	InterestAnswer *string       `json:"interestAnswer"`
	InterestArea   *InterestArea `json:"interestArea"`
	AllAnswers     []DebugAnswer `json:"allAnswers"`
}

type DebugAnswer struct {
	Order    *int     `json:"order"`
	Question *string  `json:"question"`
	Answer   *string  `json:"answer"`
	Rating   *float64 `json:"rating"`
}

type DebugReport struct {
	SurveyID       string     `json:"surveyId"`
	TotalResponses int        `json:"totalResponses"`
	Responses      []DebugRow `json:"responses"`
}

// Debug lists every response of the survey with its raw answers.
func (s *Service) Debug(ctx context.Context, surveyID string) (*DebugReport, error) {
	responses, err := s.store.ListResponses(ctx, surveyID, "")
	if err != nil {
		return nil, err
	}

	report := &DebugReport{
		SurveyID:       surveyID,
		TotalResponses: len(responses),
		Responses:      make([]DebugRow, 0, len(responses)),
	}
	for _, r := range responses {
		ex := Extract(r.Answers)
		row := DebugRow{
			ID:             r.ID,
			City:           r.City,
			CreatedAt:      r.CreatedAt,
			InterestAnswer: ex.Interest,
			AllAnswers:     make([]DebugAnswer, 0, len(r.Answers)),
		}
		if ex.Interest != nil {
			area := ClassifyInterest(*ex.Interest)
			row.InterestArea = &area
		}
		for _, a := range r.Answers {
			da := DebugAnswer{Answer: a.Text, Rating: finite(a.Rating)}
			if a.Question != nil {
				order, text := a.Question.OrderIndex, a.Question.Text
				da.Order, da.Question = &order, &text
			}
			row.AllAnswers = append(row.AllAnswers, da)
		}
		report.Responses = append(report.Responses, row)
	}
	return report, nil
}
