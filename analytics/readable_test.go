package analytics

import (
	"testing"
	"time"

	"github.com/mbolis/civic-survey/model"
)

func TestReadable(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(time.Minute)
	yes := true

	out := Readable([]model.Response{{
		ID:          "r1",
		City:        "Recife",
		CreatedAt:   created,
		CompletedAt: &completed,
		Contact:     &model.Contact{Name: "Ana", Newsletter: &yes},
		Answers: []model.Answer{
			{ID: "a3", QuestionID: "q5", SelectedOptions: []string{"A", "B"}, Question: question(5, model.QuestionMultipleChoice)},
			{ID: "a1", QuestionID: "q3", Rating: rating(0), Text: text(""), Question: question(3, model.QuestionRating)},
			{ID: "a2", QuestionID: "q4", Text: text("Mais escolas"), Question: question(4, model.QuestionText)},
			{ID: "a4", QuestionID: "q6", Text: text(""), Question: question(6, model.QuestionText)},
			{ID: "a5", QuestionID: "gone", Text: text("orphan")},
		},
	}})

	if len(out) != 1 {
		t.Fatalf("got %d responses", len(out))
	}
	r := out[0]
	if !r.SubmittedAt.Equal(completed) {
		t.Errorf("SubmittedAt = %v, want completion time", r.SubmittedAt)
	}

	want := []struct {
		id, text string
		order    int
	}{
		{ContactQuestionID, "Nome: Ana, Email: N/A, Telefone: N/A, Newsletter: Sim", 1},
		{CityQuestionID, "Recife", 2},
		{"a1", "0", 3},
		{"a2", "Mais escolas", 4},
		{"a3", "A, B", 5},
	}
	if len(r.Answers) != len(want) {
		t.Fatalf("answers = %+v", r.Answers)
	}
	for i, w := range want {
		got := r.Answers[i]
		if got.ID != w.id || got.AnswerText != w.text || got.QuestionOrder != w.order {
			t.Errorf("answers[%d] = %+v, want %+v", i, got, w)
		}
	}
}

func TestReadableWithoutContact(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := Readable([]model.Response{{ID: "r1", CreatedAt: created, Contact: &model.Contact{}}})
	if len(out[0].Answers) != 0 {
		t.Errorf("expected no pseudo answers, got %+v", out[0].Answers)
	}
	if !out[0].SubmittedAt.Equal(created) {
		t.Errorf("SubmittedAt = %v, want creation time", out[0].SubmittedAt)
	}
}
