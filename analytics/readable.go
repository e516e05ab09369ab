package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mbolis/civic-survey/model"
)

// Pseudo questions prepended to the answers of a readable response.
const (
	ContactQuestionID = "contact_info"
	CityQuestionID    = "city_info"
)

type ReadableResponse struct {
	ID          string           `json:"id"`
	SubmittedAt time.Time        `json:"submittedAt"`
	Answers     []ReadableAnswer `json:"answers"`
}

type ReadableAnswer struct {
	ID            string `json:"id"`
	QuestionID    string `json:"questionId"`
	QuestionText  string `json:"questionText"`
	QuestionType  string `json:"questionType"`
	QuestionOrder int    `json:"questionOrder"`
	AnswerText    string `json:"answerText"`
}

// Readable flattens stored responses for display: every answer becomes one
// line of text, contact details and city come first as pseudo answers, and
// answers are sorted by question order. Empty answers and answers whose
// question is gone are left out.
func Readable(responses []model.Response) []ReadableResponse {
	out := make([]ReadableResponse, 0, len(responses))
	for _, r := range responses {
		rr := ReadableResponse{
			ID:          r.ID,
			SubmittedAt: r.CreatedAt,
			Answers:     []ReadableAnswer{},
		}
		if r.CompletedAt != nil {
			rr.SubmittedAt = *r.CompletedAt
		}

		if c := r.Contact; c != nil && (c.Name != "" || c.Email != "" || c.Phone != "") {
			newsletter := "Não"
			if c.Newsletter != nil && *c.Newsletter {
				newsletter = "Sim"
			}
			rr.Answers = append(rr.Answers, ReadableAnswer{
				ID:            ContactQuestionID,
				QuestionID:    ContactQuestionID,
				QuestionText:  "Informações de Contato",
				QuestionType:  "contact",
				QuestionOrder: 1,
				AnswerText: fmt.Sprintf("Nome: %s, Email: %s, Telefone: %s, Newsletter: %s",
					orNA(c.Name), orNA(c.Email), orNA(c.Phone), newsletter),
			})
		}
		if r.City != "" {
			rr.Answers = append(rr.Answers, ReadableAnswer{
				ID:            CityQuestionID,
				QuestionID:    CityQuestionID,
				QuestionText:  "Cidade",
				QuestionType:  string(model.QuestionText),
				QuestionOrder: 2,
				AnswerText:    r.City,
			})
		}

		for _, a := range r.Answers {
			if a.Question == nil {
				continue
			}
			text := answerText(a)
			if text == "" {
				continue
			}
			rr.Answers = append(rr.Answers, ReadableAnswer{
				ID:            a.ID,
				QuestionID:    a.QuestionID,
				QuestionText:  a.Question.Text,
				QuestionType:  string(a.Question.Type),
				QuestionOrder: a.Question.OrderIndex,
				AnswerText:    text,
			})
		}

		sort.SliceStable(rr.Answers, func(i, j int) bool {
			return rr.Answers[i].QuestionOrder < rr.Answers[j].QuestionOrder
		})
		out = append(out, rr)
	}
	return out
}

func answerText(a model.Answer) string {
	switch {
	case a.Text != nil && *a.Text != "":
		return *a.Text
	case a.SelectedOptions != nil:
		return strings.Join(a.SelectedOptions, ", ")
	case a.Rating != nil:
		return strconv.FormatFloat(*a.Rating, 'f', -1, 64)
	}
	return ""
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
