package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// JoinErrors is a multierror format listing every message on one line.
func JoinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// PrepareSurvey validates an authored survey and fills in defaulted fields:
// question and option order indexes default to their 1-based position.
// All problems are reported together.
func PrepareSurvey(s *Survey) error {
	var result *multierror.Error

	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		result = multierror.Append(result, fmt.Errorf("title is required"))
	}
	if !s.FederalIdeology.Valid() {
		result = multierror.Append(result, fmt.Errorf("federalIdeology %q is not one of left, center, right", s.FederalIdeology))
	}
	if !s.StateIdeology.Valid() {
		result = multierror.Append(result, fmt.Errorf("stateIdeology %q is not one of left, center, right", s.StateIdeology))
	}
	if s.IsActive == nil {
		active := true
		s.IsActive = &active
	}

	for i := range s.Questions {
		q := &s.Questions[i]
		if q.OrderIndex == 0 {
			q.OrderIndex = i + 1
		}
		if strings.TrimSpace(q.QuestionText) == "" {
			result = multierror.Append(result, fmt.Errorf("questions[%d]: questionText is required", i))
		}
		if !q.QuestionType.Valid() {
			result = multierror.Append(result, fmt.Errorf("questions[%d]: unknown questionType %q", i, q.QuestionType))
		}
		if q.QuestionType != QuestionMultipleChoice {
			q.Options = nil
			continue
		}
		if len(q.Options) == 0 {
			result = multierror.Append(result, fmt.Errorf("questions[%d]: multiple_choice needs at least one option", i))
		}
		for j := range q.Options {
			o := &q.Options[j]
			if o.OrderIndex == 0 {
				o.OrderIndex = j + 1
			}
			if o.OptionValue == "" {
				o.OptionValue = o.OptionText
			}
			if strings.TrimSpace(o.OptionText) == "" {
				result = multierror.Append(result, fmt.Errorf("questions[%d].options[%d]: optionText is required", i, j))
			}
		}
	}

	if result != nil {
		result.ErrorFormat = JoinErrors
	}
	return result.ErrorOrNil()
}

// ConvertAnswer maps a submitted answer onto the answer columns. A string is
// kept as text and, when numeric, also as rating value; a list becomes the
// selected option values; a number becomes a rating. Non-finite numbers
// such as "Infinity" or "NaN" are never ratings. ok is false when the
// answer is empty and should not be stored.
func ConvertAnswer(answer any) (text *string, selected []string, rating *float64, ok bool) {
	switch v := answer.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil, nil, false
		}
		text = &v
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			rating = &n
		}
		return text, nil, rating, true
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &s, nil, nil, true
		}
		return &s, nil, &v, true
	case []any:
		selected = make([]string, 0, len(v))
		for _, item := range v {
			switch item := item.(type) {
			case string:
				selected = append(selected, item)
			case float64:
				selected = append(selected, strconv.FormatFloat(item, 'f', -1, 64))
			}
		}
		if len(selected) == 0 {
			return nil, nil, nil, false
		}
		return nil, selected, nil, true
	}
	return nil, nil, nil, false
}

var reNoIdent = regexp.MustCompile(`\W+`)

// Slugify derives a URL token from a display name: "São José Ltda." → "sao-jose-ltda".
func Slugify(name string) string {
	slug := strings.ToLower(name)
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, slug); err == nil {
		slug = folded
	}
	slug = reNoIdent.ReplaceAllLiteralString(slug, " ")
	return strings.Join(strings.Fields(slug), "-")
}
