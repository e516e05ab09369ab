package routes

import (
	"math"
	"net/http"
	"testing"

	"github.com/mbolis/civic-survey/analytics"
	"github.com/mbolis/civic-survey/model"
)

func civicSurvey() map[string]any {
	return map[string]any{
		"title":              "Avaliação de governo",
		"description":        "Pesquisa municipal",
		"federalIdeology":    "left",
		"stateIdeology":      "right",
		"collectContactInfo": map[string]bool{"name": true, "email": true},
		"questions": []map[string]any{
			{"questionText": "Nota para o governo federal", "questionType": "rating", "isRequired": true},
			{"questionText": "Nota para o governo estadual", "questionType": "rating", "isRequired": true},
			{"questionText": "Nota para a prefeitura", "questionType": "rating"},
			{"questionText": "Qual área mais precisa de atenção?", "questionType": "text"},
			{
				"questionText": "Prioridades",
				"questionType": "multiple_choice",
				"options": []map[string]any{
					{"optionText": "Saúde", "optionValue": "A"},
					{"optionText": "Escola", "optionValue": "B"},
				},
			},
		},
	}
}

type createdSurvey struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

func (env *testEnv) createSurvey(token string) createdSurvey {
	env.t.Helper()
	resp, body := env.do(http.MethodPost, "/api/admin/surveys", token, civicSurvey())
	expectStatus(env.t, resp, body, http.StatusCreated)

	var created createdSurvey
	decode(env.t, body, &created)
	if created.ID == "" || created.Version != 1 {
		env.t.Fatalf("created = %+v", created)
	}
	return created
}

func (env *testEnv) publicSurvey(slug string) model.Survey {
	env.t.Helper()
	resp, body := env.do(http.MethodGet, "/api/public/"+slug, "", nil)
	expectStatus(env.t, resp, body, http.StatusOK)

	var public struct {
		Survey model.Survey `json:"survey"`
	}
	decode(env.t, body, &public)
	return public.Survey
}

func (env *testEnv) submit(slug string, submission map[string]any) {
	env.t.Helper()
	resp, body := env.do(http.MethodPost, "/api/public/"+slug+"/responses", "", submission)
	expectStatus(env.t, resp, body, http.StatusCreated)
}

func answers(questions []model.Question, values ...any) []map[string]any {
	out := []map[string]any{}
	for i, v := range values {
		if v != nil {
			out = append(out, map[string]any{"questionId": questions[i].ID, "answer": v})
		}
	}
	return out
}

func TestCreateSurveyValidation(t *testing.T) {
	env := newTestEnv(t)
	acme := env.login("admin@acme.com")

	bad := civicSurvey()
	bad["title"] = " "
	bad["federalIdeology"] = "up"
	resp, body := env.do(http.MethodPost, "/api/admin/surveys", acme, bad)
	expectStatus(t, resp, body, http.StatusBadRequest)

	resp, body = env.do(http.MethodPost, "/api/admin/surveys", env.login("root@example.com"), civicSurvey())
	expectStatus(t, resp, body, http.StatusBadRequest)

	global := civicSurvey()
	global["companyId"] = "c2"
	resp, body = env.do(http.MethodPost, "/api/admin/surveys", env.login("root@example.com"), global)
	expectStatus(t, resp, body, http.StatusCreated)

	resp, body = env.do(http.MethodPost, "/api/admin/surveys", "", civicSurvey())
	expectStatus(t, resp, body, http.StatusUnauthorized)
}

func TestSurveyCRUD(t *testing.T) {
	env := newTestEnv(t)
	acme := env.login("admin@acme.com")
	other := env.login("admin@other.com")
	root := env.login("root@example.com")

	created := env.createSurvey(acme)
	path := "/api/admin/surveys/" + created.ID

	resp, body := env.do(http.MethodGet, path, acme, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var survey model.Survey
	decode(t, body, &survey)
	if survey.Title != "Avaliação de governo" || survey.FederalIdeology != model.IdeologyLeft || !survey.CollectContactInfo.Email {
		t.Errorf("survey = %+v", survey)
	}
	if len(survey.Questions) != 5 || survey.Questions[0].OrderIndex != 1 || survey.Questions[4].OrderIndex != 5 {
		t.Fatalf("questions = %+v", survey.Questions)
	}
	if opts := survey.Questions[4].Options; len(opts) != 2 || opts[0].OptionText != "Saúde" || opts[1].OrderIndex != 2 {
		t.Errorf("options = %+v", opts)
	}

	resp, body = env.do(http.MethodGet, path, other, nil)
	expectStatus(t, resp, body, http.StatusForbidden)
	resp, body = env.do(http.MethodGet, path, root, nil)
	expectStatus(t, resp, body, http.StatusOK)
	resp, body = env.do(http.MethodGet, "/api/admin/surveys/missing", acme, nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = env.do(http.MethodGet, "/api/admin/surveys", other, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var list struct {
		Surveys []model.Survey `json:"surveys"`
	}
	decode(t, body, &list)
	if len(list.Surveys) != 0 {
		t.Errorf("other company sees %d surveys", len(list.Surveys))
	}

	resp, body = env.do(http.MethodGet, "/api/admin/surveys", acme, nil)
	expectStatus(t, resp, body, http.StatusOK)
	decode(t, body, &list)
	if len(list.Surveys) != 1 || *list.Surveys[0].QuestionsCount != 5 || *list.Surveys[0].ResponsesCount != 0 || list.Surveys[0].CompanyName != "Acme" {
		t.Errorf("surveys = %+v", list.Surveys)
	}

	// update with the current version, then again with the stale one
	update := civicSurvey()
	update["version"] = 1
	update["title"] = "Avaliação 2025"
	update["questions"] = []map[string]any{{"questionText": "Só uma", "questionType": "text"}}
	resp, body = env.do(http.MethodPut, path, acme, update)
	expectStatus(t, resp, body, http.StatusOK)
	resp, body = env.do(http.MethodPut, path, acme, update)
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = env.do(http.MethodGet, path, acme, nil)
	expectStatus(t, resp, body, http.StatusOK)
	survey = model.Survey{}
	decode(t, body, &survey)
	if survey.Version != 2 || survey.Title != "Avaliação 2025" || len(survey.Questions) != 1 {
		t.Errorf("updated survey = %+v", survey)
	}

	resp, body = env.do(http.MethodPatch, path+"/toggle", acme, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var toggled struct {
		IsActive bool `json:"isActive"`
		Version  int  `json:"version"`
	}
	decode(t, body, &toggled)
	if toggled.IsActive || toggled.Version != 3 {
		t.Errorf("toggled = %+v", toggled)
	}
	resp, body = env.do(http.MethodGet, "/api/public/acme", "", nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = env.do(http.MethodDelete, path, other, nil)
	expectStatus(t, resp, body, http.StatusForbidden)
	resp, body = env.do(http.MethodDelete, path, acme, nil)
	expectStatus(t, resp, body, http.StatusNoContent)
	resp, body = env.do(http.MethodGet, path, acme, nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	var liveQuestions int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM question WHERE survey_id = $1 AND deleted_at IS NULL`, created.ID).Scan(&liveQuestions); err != nil {
		t.Fatal(err)
	}
	if liveQuestions != 0 {
		t.Errorf("%d questions left after delete", liveQuestions)
	}
}

func TestResponsesAndAnalytics(t *testing.T) {
	env := newTestEnv(t)
	acme := env.login("admin@acme.com")
	created := env.createSurvey(acme)

	public := env.publicSurvey("acme")
	if public.ID != created.ID || public.CompanyName != "Acme" || len(public.Questions) != 5 {
		t.Fatalf("public survey = %+v", public)
	}
	q := public.Questions

	env.submit("acme", map[string]any{
		"city":        "Recife",
		"contactInfo": map[string]any{"name": "Ana", "email": "ana@example.com", "newsletter": true},
		"answers":     answers(q, "8", "2", "7", "Segurança pública", []string{"A"}),
	})
	env.submit("acme", map[string]any{
		"city":    "Olinda",
		"answers": answers(q, "5", 5, nil, "mais escolas", []string{"A", "B"}),
	})

	for name, submission := range map[string]map[string]any{
		"unknown question": {"answers": append(answers(q, "8", "2"), map[string]any{"questionId": "nope", "answer": "x"})},
		"missing required": {"answers": answers(q, "8")},
		"empty required":   {"answers": answers(q, "8", " ")},
		"no answers":       {"city": "Recife"},
	} {
		t.Run(name, func(t *testing.T) {
			resp, body := env.do(http.MethodPost, "/api/public/acme/responses", "", submission)
			expectStatus(t, resp, body, http.StatusBadRequest)
		})
	}
	resp, body := env.do(http.MethodPost, "/api/public/nobody/responses", "", map[string]any{"answers": []any{}})
	expectStatus(t, resp, body, http.StatusNotFound)

	report := func(query string) analytics.Result {
		t.Helper()
		resp, body := env.do(http.MethodGet, "/api/admin/analytics/"+created.ID+query, acme, nil)
		expectStatus(t, resp, body, http.StatusOK)
		var res analytics.Result
		decode(t, body, &res)
		return res
	}

	res := report("")
	if res.Summary.TotalResponses != 2 || len(res.Summary.Cities) != 2 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if want := (analytics.LeaningCounts{Left: 1, Center: 1}); res.Summary.PoliticalLeaning != want {
		t.Errorf("leanings = %+v, want %+v", res.Summary.PoliticalLeaning, want)
	}
	if want := (analytics.InterestCounts{Security: 1, Education: 1}); res.Summary.InterestAreas != want {
		t.Errorf("interests = %+v, want %+v", res.Summary.InterestAreas, want)
	}
	if res.Ratings.Federal.Average != 6.5 || res.Ratings.City.Distribution[7].Count != 1 {
		t.Errorf("ratings = %+v", res.Ratings)
	}
	mc, ok := res.MultipleChoice[q[4].ID]
	if !ok || mc.TotalResponses != 3 || len(mc.Options) != 2 {
		t.Fatalf("multiple choice = %+v", res.MultipleChoice)
	}
	if mc.Options[0].OptionText != "Saúde" || mc.Options[0].Percentage != 67 || mc.Options[1].Percentage != 33 {
		t.Errorf("options = %+v", mc.Options)
	}

	if res := report("?city=Recife"); res.Summary.TotalResponses != 1 || res.Responses[0].PoliticalLeaning != analytics.LeaningLeft {
		t.Errorf("Recife report = %+v", res.Summary)
	}
	if res := report("?city=all"); res.Summary.TotalResponses != 2 {
		t.Errorf("all-cities report = %+v", res.Summary)
	}

	resp, body = env.do(http.MethodGet, "/api/admin/analytics/"+created.ID, env.login("admin@other.com"), nil)
	expectStatus(t, resp, body, http.StatusForbidden)
	resp, body = env.do(http.MethodGet, "/api/admin/analytics/missing", acme, nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = env.do(http.MethodGet, "/api/admin/analytics/"+created.ID+"/debug", acme, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var debug analytics.DebugReport
	decode(t, body, &debug)
	if debug.TotalResponses != 2 || debug.Responses[0].InterestArea == nil || *debug.Responses[0].InterestArea != analytics.InterestEducation {
		t.Errorf("debug = %+v", debug)
	}

	resp, body = env.do(http.MethodGet, "/api/admin/surveys/"+created.ID+"/responses", acme, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var listed struct {
		Responses      []analytics.ReadableResponse `json:"responses"`
		TotalResponses int                          `json:"totalResponses"`
	}
	decode(t, body, &listed)
	if listed.TotalResponses != 2 {
		t.Fatalf("listed = %+v", listed)
	}
	recife := listed.Responses[1]
	if len(recife.Answers) != 7 || recife.Answers[0].QuestionID != analytics.ContactQuestionID || recife.Answers[6].AnswerText != "A" {
		t.Errorf("readable answers = %+v", recife.Answers)
	}

	// replacing the questions keeps old answers in the report
	update := civicSurvey()
	update["version"] = 1
	update["questions"] = []map[string]any{{"questionText": "Nova", "questionType": "text"}}
	resp, body = env.do(http.MethodPut, "/api/admin/surveys/"+created.ID, acme, update)
	expectStatus(t, resp, body, http.StatusOK)
	if res := report(""); res.Summary.PoliticalLeaning.Left != 1 || res.MultipleChoice[q[4].ID].Options[0].OptionText != "Saúde" {
		t.Errorf("report after update = %+v", res)
	}

	resp, body = env.do(http.MethodDelete, "/api/admin/surveys/"+created.ID+"/responses", acme, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var deleted struct {
		DeletedCount int `json:"deletedCount"`
	}
	decode(t, body, &deleted)
	if deleted.DeletedCount != 2 {
		t.Errorf("deleted = %d", deleted.DeletedCount)
	}
	if res := report(""); res.Summary.TotalResponses != 0 {
		t.Errorf("report after delete = %+v", res.Summary)
	}
}

func TestNonFiniteRatingsKeepReportsAvailable(t *testing.T) {
	env := newTestEnv(t)
	acme := env.login("admin@acme.com")
	created := env.createSurvey(acme)
	q := env.publicSurvey("acme").Questions

	env.submit("acme", map[string]any{"city": "Recife", "answers": answers(q, "Infinity", "2")})
	env.submit("acme", map[string]any{"city": "Recife", "answers": answers(q, "8", "NaN")})

	var stored int
	err := env.db.QueryRow(`SELECT COUNT(*) FROM question_answer WHERE rating_value IS NOT NULL`).Scan(&stored)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 2 {
		t.Errorf("stored ratings = %d, want 2", stored)
	}

	// rows written before non-finite values were rejected
	env.exec(`UPDATE question_answer SET rating_value = $1 WHERE question_id = $2 AND answer_text = $3`, math.Inf(1), q[1].ID, "2")

	resp, body := env.do(http.MethodGet, "/api/admin/analytics/"+created.ID, acme, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var res analytics.Result
	decode(t, body, &res)
	if res.Summary.TotalResponses != 2 || res.Ratings.Federal.Average != 8 || res.Ratings.State.Average != 0 {
		t.Errorf("ratings = %+v", res.Ratings)
	}

	resp, body = env.do(http.MethodGet, "/api/admin/analytics/"+created.ID+"/debug", acme, nil)
	expectStatus(t, resp, body, http.StatusOK)
	var debug analytics.DebugReport
	decode(t, body, &debug)
	if debug.TotalResponses != 2 || debug.Responses[0].CreatedAt.IsZero() {
		t.Errorf("debug = %+v", debug)
	}
}
