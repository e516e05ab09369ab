package analytics

import (
	"math"
	"strconv"
	"strings"

	"github.com/mbolis/civic-survey/model"
)

// Slot is the meaning analytics gives to a question by its order index.
// Surveys are expected to place exactly one question on each slot; a missing
// slot leaves the matching values empty.
type Slot int

const (
	SlotFederal  Slot = 1
	SlotState    Slot = 2
	SlotCity     Slot = 3
	SlotInterest Slot = 4
)

// Extraction is what one response contributes to the aggregate.
type Extraction struct {
	FederalRating *float64
	StateRating   *float64
	CityRating    *float64
	Interest      *string
	Choices       []Choice
}

// Choice is the selection made on one multiple-choice question.
type Choice struct {
	QuestionID string
	Question   model.AnsweredQuestion
	Options    []string
}

// Extract reads the slot values and multiple-choice selections out of the
// answers of a single response. Answers whose question metadata is missing
// are ignored.
func Extract(answers []model.Answer) Extraction {
	var ex Extraction
	for _, a := range answers {
		if a.Question == nil {
			continue
		}

		if a.Question.Type == model.QuestionMultipleChoice {
			c := Choice{QuestionID: a.QuestionID, Question: *a.Question, Options: []string{}}
			switch {
			case a.SelectedOptions != nil:
				c.Options = append(c.Options, a.SelectedOptions...)
			case a.Text != nil && *a.Text != "":
				// rows stored before selection lists existed keep the value as text
				c.Options = append(c.Options, *a.Text)
			}
			ex.Choices = append(ex.Choices, c)
		}

		switch Slot(a.Question.OrderIndex) {
		case SlotFederal:
			ex.FederalRating = ratingOf(a)
		case SlotState:
			ex.StateRating = ratingOf(a)
		case SlotCity:
			ex.CityRating = ratingOf(a)
		case SlotInterest:
			ex.Interest = nil
			if a.Text != nil && *a.Text != "" {
				text := *a.Text
				ex.Interest = &text
			}
		}
	}
	return ex
}

func ratingOf(a model.Answer) *float64 {
	if a.Rating != nil {
		return finite(a.Rating)
	}
	if a.Text == nil {
		return nil
	}
	if r, ok := leadingInt(*a.Text); ok {
		return &r
	}
	return nil
}

// finite copies r, dropping stored NaN and infinite ratings.
func finite(r *float64) *float64 {
	if r == nil || math.IsNaN(*r) || math.IsInf(*r, 0) {
		return nil
	}
	v := *r
	return &v
}

// leadingInt parses the integer prefix of s, so "8 pontos" reads as 8.
func leadingInt(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return float64(n), true
}
