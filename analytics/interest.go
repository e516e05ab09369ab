package analytics

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type InterestArea string

const (
	InterestSecurity  InterestArea = "security"
	InterestEducation InterestArea = "education"
	InterestHealth    InterestArea = "health"
	InterestOther     InterestArea = "other"
)

// Keyword lists are matched as substrings of the normalized answer, in this
// order; the first area with a hit wins.
var interestKeywords = []struct {
	area     InterestArea
	keywords []string
}{
	{InterestSecurity, []string{"seguranca", "security", "policia", "crime"}},
	{InterestEducation, []string{"educacao", "education", "escola", "ensino", "professor"}},
	{InterestHealth, []string{"saude", "health", "hospital", "medico", "medicina"}},
}

// NormalizeInterest lower-cases s, strips diacritics and drops everything but
// ASCII letters and whitespace: "Saúde Pública!" → "saude publica".
func NormalizeInterest(s string) string {
	s = strings.ToLower(s)
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}

func ClassifyInterest(answer string) InterestArea {
	normalized := NormalizeInterest(answer)
	for _, group := range interestKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(normalized, kw) {
				return group.area
			}
		}
	}
	return InterestOther
}
