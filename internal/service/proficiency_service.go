package service

import "github.com/lshigami/testcert/internal/model"

// ProficiencyBand covers the inclusive percentage range [Min, Max].
type ProficiencyBand struct {
	Level string
	Min   int
	Max   int
}

var cefrBands = []ProficiencyBand{
	{Level: "A1", Min: 0, Max: 59},
	{Level: "A2", Min: 60, Max: 69},
	{Level: "B1", Min: 70, Max: 79},
	{Level: "B2", Min: 80, Max: 89},
	{Level: "C1", Min: 90, Max: 95},
	{Level: "C2", Min: 96, Max: 100},
}

var skillBands = []ProficiencyBand{
	{Level: "Novice", Min: 0, Max: 59},
	{Level: "Basic", Min: 60, Max: 69},
	{Level: "Competent", Min: 70, Max: 79},
	{Level: "Proficient", Min: 80, Max: 89},
	{Level: "Expert", Min: 90, Max: 95},
	{Level: "Master", Min: 96, Max: 100},
}

type ProficiencyClassifier interface {
	// Classify returns ok=false when no band matches, which callers must
	// treat as an invariant violation.
	Classify(percentage int, categoryType string, explicitLevel *string) (level string, ok bool)
	Bands(categoryType string) []ProficiencyBand
}

type proficiencyClassifier struct{}

func NewProficiencyClassifier() ProficiencyClassifier {
	return &proficiencyClassifier{}
}

func (p *proficiencyClassifier) Classify(percentage int, categoryType string, explicitLevel *string) (string, bool) {
	if explicitLevel != nil && *explicitLevel != "" {
		return *explicitLevel, true
	}
	for _, band := range p.Bands(categoryType) {
		if percentage >= band.Min && percentage <= band.Max {
			return band.Level, true
		}
	}
	return "", false
}

func (p *proficiencyClassifier) Bands(categoryType string) []ProficiencyBand {
	if categoryType == model.CategoryLanguage {
		return cefrBands
	}
	return skillBands
}
