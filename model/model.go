package model

import (
	"encoding/json"
	"time"
)

// UnknownCity is stored for responses submitted without a city.
const UnknownCity = "Não informado"

type Role string

const (
	RoleGlobalAdmin  Role = "global_admin"
	RoleCompanyAdmin Role = "company_admin"
)

// Ideology tags the government a rating question refers to. The zero value
// means the tag is not set; it is encoded as JSON null.
type Ideology string

const (
	IdeologyLeft   Ideology = "left"
	IdeologyCenter Ideology = "center"
	IdeologyRight  Ideology = "right"
)

func (i Ideology) Valid() bool {
	switch i {
	case "", IdeologyLeft, IdeologyCenter, IdeologyRight:
		return true
	}
	return false
}

func (i Ideology) MarshalJSON() ([]byte, error) {
	if i == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(i))
}

func (i *Ideology) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*i = ""
	} else {
		*i = Ideology(*s)
	}
	return nil
}

type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionRating         QuestionType = "rating"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionMultipleChoice, QuestionRating:
		return true
	}
	return false
}

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AdminUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	CompanyID   string    `json:"companyId,omitempty"`
	CompanyName string    `json:"companyName,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	Password    string    `json:"password,omitempty"`
}

type ContactFields struct {
	Name       bool `json:"name"`
	Email      bool `json:"email"`
	Phone      bool `json:"phone"`
	Newsletter bool `json:"newsletter"`
}

type Survey struct {
	ID                 string        `json:"id,omitempty"`
	CompanyID          string        `json:"companyId,omitempty"`
	CompanyName        string        `json:"companyName,omitempty"`
	Version            int           `json:"version"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	IsActive           *bool         `json:"isActive,omitempty"`
	FederalIdeology    Ideology      `json:"federalIdeology"`
	StateIdeology      Ideology      `json:"stateIdeology"`
	CollectContactInfo ContactFields `json:"collectContactInfo"`
	CreatedAt          *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time    `json:"updatedAt,omitempty"`
	QuestionsCount     *int          `json:"questionsCount,omitempty"`
	ResponsesCount     *int          `json:"responsesCount,omitempty"`
	Questions          []Question    `json:"questions,omitempty"`
}

type Question struct {
	ID           string           `json:"id,omitempty"`
	QuestionText string           `json:"questionText"`
	QuestionType QuestionType     `json:"questionType"`
	IsRequired   bool             `json:"isRequired"`
	OrderIndex   int              `json:"orderIndex"`
	Options      []QuestionOption `json:"options"`
}

type QuestionOption struct {
	ID          string `json:"id,omitempty"`
	OptionText  string `json:"optionText"`
	OptionValue string `json:"optionValue"`
	OrderIndex  int    `json:"orderIndex"`
	IsCorrect   bool   `json:"isCorrect"`
}

// Response is a stored submission together with its answers.
type Response struct {
	ID          string     `json:"id"`
	City        string     `json:"city"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Contact     *Contact   `json:"contact,omitempty"`
	Answers     []Answer   `json:"answers"`
}

// Answer holds exactly the columns that were filled at submission time:
// nil SelectedOptions means the answer carried no selection list at all.
type Answer struct {
	ID              string            `json:"id"`
	QuestionID      string            `json:"questionId"`
	Text            *string           `json:"answerText"`
	SelectedOptions []string          `json:"selectedOptions"`
	Rating          *float64          `json:"ratingValue"`
	Question        *AnsweredQuestion `json:"question,omitempty"`
}

// AnsweredQuestion is the question metadata joined onto an answer.
type AnsweredQuestion struct {
	Text       string       `json:"questionText"`
	Type       QuestionType `json:"questionType"`
	OrderIndex int          `json:"orderIndex"`
}

type Contact struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Newsletter *bool  `json:"newsletter,omitempty"`
}

// Submission is the payload posted by a respondent.
type Submission struct {
	ContactInfo *Contact          `json:"contactInfo"`
	City        string            `json:"city"`
	Answers     []SubmittedAnswer `json:"answers"`
}

// SubmittedAnswer.Answer is a string for text, rating and single-choice
// questions, or a list of option values for multi-select questions.
type SubmittedAnswer struct {
	QuestionID string `json:"questionId"`
	Answer     any    `json:"answer"`
}
