package analytics

import "github.com/mbolis/civic-survey/model"

type Leaning string

const (
	LeaningLeft    Leaning = "left"
	LeaningCenter  Leaning = "center"
	LeaningRight   Leaning = "right"
	LeaningUnknown Leaning = "unknown"
)

const (
	supportThreshold = 7
	opposeThreshold  = 3
)

// Classify derives a respondent's political leaning from the ratings given to
// the federal and state governments and the ideology each government is
// tagged with. Without both tags and both ratings the leaning is unknown.
func Classify(federalRating, stateRating *float64, federalIdeology, stateIdeology model.Ideology) Leaning {
	if federalIdeology == "" || stateIdeology == "" {
		return LeaningUnknown
	}
	if federalRating == nil || stateRating == nil {
		return LeaningUnknown
	}

	federal := impliedLeaning(*federalRating, federalIdeology)
	state := impliedLeaning(*stateRating, stateIdeology)
	if federal == state {
		return federal
	}
	// diverging spheres count as centrist
	return LeaningCenter
}

func impliedLeaning(rating float64, ideology model.Ideology) Leaning {
	switch {
	case rating >= supportThreshold:
		return Leaning(ideology)
	case rating <= opposeThreshold:
		return opposite(ideology)
	default:
		return LeaningCenter
	}
}

func opposite(ideology model.Ideology) Leaning {
	switch ideology {
	case model.IdeologyLeft:
		return LeaningRight
	case model.IdeologyRight:
		return LeaningLeft
	default:
		return LeaningCenter
	}
}
