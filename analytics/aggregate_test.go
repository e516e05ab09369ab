package analytics

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/mbolis/civic-survey/model"
)

var leftLeft = SurveyInfo{ID: "S1", Title: "Pesquisa", FederalIdeology: model.IdeologyLeft, StateIdeology: model.IdeologyLeft}

func ratedResponse(id, city string, federal, state float64) model.Response {
	return model.Response{
		ID:        id,
		City:      city,
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Answers: []model.Answer{
			{QuestionID: "q1", Rating: rating(federal), Question: question(1, model.QuestionRating)},
			{QuestionID: "q2", Rating: rating(state), Question: question(2, model.QuestionRating)},
		},
	}
}

func choiceResponse(id string, options ...string) model.Response {
	return model.Response{
		ID: id,
		Answers: []model.Answer{{
			QuestionID:      "mc",
			SelectedOptions: options,
			Question:        &model.AnsweredQuestion{Text: "Prioridade", Type: model.QuestionMultipleChoice, OrderIndex: 5},
		}},
	}
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(leftLeft, nil, nil)

	if res.Summary.TotalResponses != 0 {
		t.Errorf("TotalResponses = %d", res.Summary.TotalResponses)
	}
	if len(res.Summary.Cities) != 0 || len(res.MultipleChoice) != 0 || len(res.Responses) != 0 {
		t.Errorf("expected empty collections, got %+v", res)
	}
	if res.Summary.PoliticalLeaning != (LeaningCounts{}) || res.Summary.InterestAreas != (InterestCounts{}) {
		t.Errorf("expected zero counts, got %+v", res.Summary)
	}
	for _, stats := range []RatingStats{res.Ratings.Federal, res.Ratings.State, res.Ratings.City} {
		if stats.Average != 0 || len(stats.Distribution) != 11 {
			t.Errorf("unexpected rating stats %+v", stats)
		}
		for _, b := range stats.Distribution {
			if b.Count != 0 {
				t.Errorf("bucket %d = %d", b.Rating, b.Count)
			}
		}
	}

	b, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(b, []byte(`"cities":[]`)) || !bytes.Contains(b, []byte(`"multipleChoice":{}`)) || !bytes.Contains(b, []byte(`"responses":[]`)) {
		t.Errorf("collections should encode empty, got %s", b)
	}
}

func TestAggregateCities(t *testing.T) {
	res := Aggregate(leftLeft, []model.Response{
		ratedResponse("r1", "X", 8, 8),
		ratedResponse("r2", "Y", 2, 2),
		ratedResponse("r3", "X", 6, 8),
	}, nil)

	cities := res.Summary.Cities
	if len(cities) != 2 {
		t.Fatalf("cities = %+v", cities)
	}
	x, y := cities[0], cities[1]
	if x.Name != "X" || x.TotalResponses != 2 || x.AverageFederalRating != 7 || x.AverageStateRating != 8 {
		t.Errorf("X = %+v", x)
	}
	if y.Name != "Y" || y.TotalResponses != 1 || y.AverageFederalRating != 2 || y.AverageStateRating != 2 {
		t.Errorf("Y = %+v", y)
	}
	if x.PoliticalLeaning[LeaningLeft] != 1 || x.PoliticalLeaning[LeaningCenter] != 1 || len(x.PoliticalLeaning) != 2 {
		t.Errorf("X leanings = %v", x.PoliticalLeaning)
	}
	if y.PoliticalLeaning[LeaningRight] != 1 || len(y.PoliticalLeaning) != 1 {
		t.Errorf("Y leanings = %v", y.PoliticalLeaning)
	}

	want := LeaningCounts{Left: 1, Center: 1, Right: 1}
	if res.Summary.PoliticalLeaning != want {
		t.Errorf("PoliticalLeaning = %+v, want %+v", res.Summary.PoliticalLeaning, want)
	}
	if res.Ratings.Federal.Average != 16.0/3 {
		t.Errorf("federal average = %v", res.Ratings.Federal.Average)
	}
}

func TestAggregateDefaultsCity(t *testing.T) {
	res := Aggregate(leftLeft, []model.Response{{ID: "r1"}}, nil)
	if res.Summary.Cities[0].Name != model.UnknownCity || res.Responses[0].City != model.UnknownCity {
		t.Errorf("city = %q / %q", res.Summary.Cities[0].Name, res.Responses[0].City)
	}
	if res.Responses[0].PoliticalLeaning != LeaningUnknown {
		t.Errorf("leaning = %q", res.Responses[0].PoliticalLeaning)
	}
	if res.Summary.Cities[0].AverageFederalRating != 0 {
		t.Errorf("average without ratings = %v", res.Summary.Cities[0].AverageFederalRating)
	}
}

func TestAggregateDistribution(t *testing.T) {
	res := Aggregate(leftLeft, []model.Response{
		ratedResponse("r1", "X", 7.6, 5),
		ratedResponse("r2", "X", -1, 5),
		ratedResponse("r3", "X", 11, 5),
		ratedResponse("r4", "X", 10, 0),
	}, nil)

	dist := res.Ratings.Federal.Distribution
	if dist[8].Count != 1 || dist[10].Count != 1 {
		t.Errorf("distribution = %+v", dist)
	}
	total := 0
	for i, b := range dist {
		if b.Rating != i {
			t.Errorf("bucket %d labelled %d", i, b.Rating)
		}
		total += b.Count
	}
	if total != 2 {
		t.Errorf("out-of-range ratings should be dropped, total = %d", total)
	}
	if want := (7.6 - 1 + 11 + 10) / 4; math.Abs(res.Ratings.Federal.Average-want) > 1e-9 {
		t.Errorf("average = %v, want %v", res.Ratings.Federal.Average, want)
	}
	if res.Ratings.State.Distribution[5].Count != 3 || res.Ratings.State.Distribution[0].Count != 1 {
		t.Errorf("state distribution = %+v", res.Ratings.State.Distribution)
	}
}

func TestAggregateMultipleChoice(t *testing.T) {
	labels := OptionLabels{"mc": {"A": "Saúde", "B": "Escola"}}
	res := Aggregate(leftLeft, []model.Response{
		choiceResponse("r1", "B"),
		choiceResponse("r2", "A"),
		choiceResponse("r3", "A"),
		choiceResponse("r4", "A"),
	}, labels)

	mc, ok := res.MultipleChoice["mc"]
	if !ok {
		t.Fatalf("missing question: %+v", res.MultipleChoice)
	}
	if mc.TotalResponses != 4 || mc.QuestionText != "Prioridade" || mc.QuestionOrder != 5 {
		t.Errorf("summary = %+v", mc)
	}
	want := []OptionTally{
		{OptionID: "A", OptionText: "Saúde", Count: 3, Percentage: 75},
		{OptionID: "B", OptionText: "Escola", Count: 1, Percentage: 25},
	}
	if len(mc.Options) != len(want) {
		t.Fatalf("options = %+v", mc.Options)
	}
	for i := range want {
		if mc.Options[i] != want[i] {
			t.Errorf("options[%d] = %+v, want %+v", i, mc.Options[i], want[i])
		}
	}
}

func TestAggregateMultipleChoiceTiesAndFallbackLabel(t *testing.T) {
	res := Aggregate(leftLeft, []model.Response{
		choiceResponse("r1", "z", "y"),
		choiceResponse("r2", "x"),
	}, nil)

	opts := res.MultipleChoice["mc"].Options
	ids := []string{opts[0].OptionID, opts[1].OptionID, opts[2].OptionID}
	if ids[0] != "z" || ids[1] != "y" || ids[2] != "x" {
		t.Errorf("ties should keep encounter order, got %v", ids)
	}
	if opts[0].OptionText != "Opção z" {
		t.Errorf("fallback label = %q", opts[0].OptionText)
	}
	if opts[0].Percentage != 33 {
		t.Errorf("percentage = %d", opts[0].Percentage)
	}
}

func TestAggregateMultipleChoiceZeroTotal(t *testing.T) {
	res := Aggregate(leftLeft, []model.Response{choiceResponse("r1")}, nil)
	mc := res.MultipleChoice["mc"]
	if mc.TotalResponses != 0 || len(mc.Options) != 0 {
		t.Errorf("summary = %+v", mc)
	}
	if percentage(0, 0) != 0 {
		t.Error("percentage of empty tally should be 0")
	}
}

func TestAggregateInterestAreas(t *testing.T) {
	interest := func(id, answer string) model.Response {
		return model.Response{ID: id, Answers: []model.Answer{
			{QuestionID: "q4", Text: text(answer), Question: question(4, model.QuestionText)},
		}}
	}
	res := Aggregate(leftLeft, []model.Response{
		interest("r1", "Segurança"),
		interest("r2", "educação"),
		interest("r3", "hospital"),
		interest("r4", "lazer"),
		{ID: "r5"},
	}, nil)

	want := InterestCounts{Security: 1, Education: 1, Health: 1, Other: 1}
	if res.Summary.InterestAreas != want {
		t.Errorf("InterestAreas = %+v, want %+v", res.Summary.InterestAreas, want)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	responses := []model.Response{
		ratedResponse("r1", "X", 8, 2),
		ratedResponse("r2", "Y", 4, 9),
		choiceResponse("r3", "a", "b"),
		choiceResponse("r4", "b"),
	}
	first, err := json.Marshal(Aggregate(leftLeft, responses, nil))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(Aggregate(leftLeft, responses, nil))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("outputs differ:\n%s\n%s", first, second)
	}
}
