package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mbolis/civic-survey/model"
)

const maxRating = 10

type SurveyInfo struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	FederalIdeology model.Ideology `json:"federalIdeology"`
	StateIdeology   model.Ideology `json:"stateIdeology"`
}

type Result struct {
	Survey         SurveyInfo               `json:"survey"`
	Summary        Summary                  `json:"summary"`
	Ratings        Ratings                  `json:"ratings"`
	MultipleChoice map[string]ChoiceSummary `json:"multipleChoice"`
	Responses      []ResponseRow            `json:"responses"`
}

type Summary struct {
	TotalResponses   int            `json:"totalResponses"`
	Cities           []CitySummary  `json:"cities"`
	PoliticalLeaning LeaningCounts  `json:"politicalLeaning"`
	InterestAreas    InterestCounts `json:"interestAreas"`
}

type LeaningCounts struct {
	Left    int `json:"left"`
	Center  int `json:"center"`
	Right   int `json:"right"`
	Unknown int `json:"unknown"`
}

func (c *LeaningCounts) add(l Leaning) {
	switch l {
	case LeaningLeft:
		c.Left++
	case LeaningCenter:
		c.Center++
	case LeaningRight:
		c.Right++
	default:
		c.Unknown++
	}
}

type InterestCounts struct {
	Security  int `json:"security"`
	Education int `json:"education"`
	Health    int `json:"health"`
	Other     int `json:"other"`
}

func (c *InterestCounts) add(area InterestArea) {
	switch area {
	case InterestSecurity:
		c.Security++
	case InterestEducation:
		c.Education++
	case InterestHealth:
		c.Health++
	default:
		c.Other++
	}
}

// CitySummary.PoliticalLeaning only has keys for leanings seen in the city.
type CitySummary struct {
	Name                 string          `json:"name"`
	TotalResponses       int             `json:"totalResponses"`
	AverageFederalRating float64         `json:"averageFederalRating"`
	AverageStateRating   float64         `json:"averageStateRating"`
	PoliticalLeaning     map[Leaning]int `json:"politicalLeaning"`
}

type Ratings struct {
	Federal RatingStats `json:"federal"`
	State   RatingStats `json:"state"`
	City    RatingStats `json:"city"`
}

type RatingStats struct {
	Average      float64  `json:"average"`
	Distribution []Bucket `json:"distribution"`
}

type Bucket struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

type ChoiceSummary struct {
	QuestionText   string        `json:"questionText"`
	QuestionOrder  int           `json:"questionOrder"`
	TotalResponses int           `json:"totalResponses"`
	Options        []OptionTally `json:"options"`
}

type OptionTally struct {
	OptionID   string `json:"optionId"`
	OptionText string `json:"optionText"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type ResponseRow struct {
	ID               string    `json:"id"`
	City             string    `json:"city"`
	CreatedAt        time.Time `json:"createdAt"`
	FederalRating    *float64  `json:"federalRating"`
	StateRating      *float64  `json:"stateRating"`
	CityRating       *float64  `json:"cityRating"`
	InterestAnswer   *string   `json:"interestAnswer"`
	PoliticalLeaning Leaning   `json:"politicalLeaning"`
}

// OptionLabels maps question id → option value → option text.
type OptionLabels map[string]map[string]string

// Aggregate computes the survey report over responses in a single pass. Cities
// and options keep the order in which they are first met, so the same input
// always yields the same output.
func Aggregate(info SurveyInfo, responses []model.Response, labels OptionLabels) *Result {
	var (
		cities    []*cityAcc
		cityIndex = map[string]*cityAcc{}
		choices   []*choiceAcc
		choiceIdx = map[string]*choiceAcc{}

		federal, state, city ratingAcc
	)

	res := &Result{
		Survey:         info,
		MultipleChoice: map[string]ChoiceSummary{},
		Responses:      make([]ResponseRow, 0, len(responses)),
	}
	res.Summary.TotalResponses = len(responses)

	for _, r := range responses {
		name := r.City
		if name == "" {
			name = model.UnknownCity
		}
		ex := Extract(r.Answers)
		leaning := Classify(ex.FederalRating, ex.StateRating, info.FederalIdeology, info.StateIdeology)

		c, ok := cityIndex[name]
		if !ok {
			c = &cityAcc{name: name, leanings: map[Leaning]int{}}
			cityIndex[name] = c
			cities = append(cities, c)
		}
		c.count++
		c.federal.add(ex.FederalRating)
		c.state.add(ex.StateRating)
		c.leanings[leaning]++

		federal.add(ex.FederalRating)
		state.add(ex.StateRating)
		city.add(ex.CityRating)
		res.Summary.PoliticalLeaning.add(leaning)

		if ex.Interest != nil {
			res.Summary.InterestAreas.add(ClassifyInterest(*ex.Interest))
		}

		for _, ch := range ex.Choices {
			acc, ok := choiceIdx[ch.QuestionID]
			if !ok {
				acc = &choiceAcc{questionID: ch.QuestionID, question: ch.Question, index: map[string]int{}}
				choiceIdx[ch.QuestionID] = acc
				choices = append(choices, acc)
			}
			for _, opt := range ch.Options {
				acc.add(opt)
			}
		}

		res.Responses = append(res.Responses, ResponseRow{
			ID:               r.ID,
			City:             name,
			CreatedAt:        r.CreatedAt,
			FederalRating:    ex.FederalRating,
			StateRating:      ex.StateRating,
			CityRating:       ex.CityRating,
			InterestAnswer:   ex.Interest,
			PoliticalLeaning: leaning,
		})
	}

	res.Summary.Cities = make([]CitySummary, 0, len(cities))
	for _, c := range cities {
		res.Summary.Cities = append(res.Summary.Cities, CitySummary{
			Name:                 c.name,
			TotalResponses:       c.count,
			AverageFederalRating: c.federal.mean(),
			AverageStateRating:   c.state.mean(),
			PoliticalLeaning:     c.leanings,
		})
	}

	res.Ratings = Ratings{
		Federal: federal.stats(),
		State:   state.stats(),
		City:    city.stats(),
	}

	for _, acc := range choices {
		res.MultipleChoice[acc.questionID] = acc.summary(labels[acc.questionID])
	}

	return res
}

// ChoiceQuestionIDs lists the multiple-choice questions answered in responses,
// in first-seen order.
func ChoiceQuestionIDs(responses []model.Response) []string {
	seen := map[string]bool{}
	var ids []string
	for _, r := range responses {
		for _, a := range r.Answers {
			if a.Question == nil || a.Question.Type != model.QuestionMultipleChoice || seen[a.QuestionID] {
				continue
			}
			seen[a.QuestionID] = true
			ids = append(ids, a.QuestionID)
		}
	}
	return ids
}

type cityAcc struct {
	name           string
	count          int
	federal, state ratingAcc
	leanings       map[Leaning]int
}

type ratingAcc struct {
	values []float64
}

func (a *ratingAcc) add(r *float64) {
	if r != nil {
		a.values = append(a.values, *r)
	}
}

func (a *ratingAcc) mean() float64 {
	if len(a.values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range a.values {
		sum += v
	}
	return sum / float64(len(a.values))
}

// stats buckets ratings into 0..10; out-of-range values still count towards
// the average.
func (a *ratingAcc) stats() RatingStats {
	counts := make([]int, maxRating+1)
	for _, v := range a.values {
		if v >= 0 && v <= maxRating {
			counts[int(math.Round(v))]++
		}
	}
	dist := make([]Bucket, len(counts))
	for i, n := range counts {
		dist[i] = Bucket{Rating: i, Count: n}
	}
	return RatingStats{Average: a.mean(), Distribution: dist}
}

type choiceAcc struct {
	questionID string
	question   model.AnsweredQuestion
	options    []OptionTally
	index      map[string]int
	total      int
}

func (a *choiceAcc) add(option string) {
	i, ok := a.index[option]
	if !ok {
		i = len(a.options)
		a.index[option] = i
		a.options = append(a.options, OptionTally{OptionID: option})
	}
	a.options[i].Count++
	a.total++
}

func (a *choiceAcc) summary(labels map[string]string) ChoiceSummary {
	options := make([]OptionTally, len(a.options))
	copy(options, a.options)
	for i := range options {
		o := &options[i]
		if text, ok := labels[o.OptionID]; ok {
			o.OptionText = text
		} else {
			o.OptionText = fmt.Sprintf("Opção %s", o.OptionID)
		}
		o.Percentage = percentage(o.Count, a.total)
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Count > options[j].Count
	})
	return ChoiceSummary{
		QuestionText:   a.question.Text,
		QuestionOrder:  a.question.OrderIndex,
		TotalResponses: a.total,
		Options:        options,
	}
}

func percentage(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}
