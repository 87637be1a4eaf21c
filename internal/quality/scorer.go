package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/ignite/crm-quality/internal/domain"
)

// Level is the quality band of a completeness percentage.
type Level string

const (
	LevelPoor      Level = "poor"
	LevelFair      Level = "fair"
	LevelGood      Level = "good"
	LevelExcellent Level = "excellent"
)

// Band breakpoints, in percent.
const (
	ExcellentThreshold = 90
	GoodThreshold      = 70
	FairThreshold      = 50

	// NearlyCompleteThreshold triggers the "nearly complete" recommendation.
	NearlyCompleteThreshold = 80
)

// LevelFor maps a percentage to its band.
func LevelFor(percentage int) Level {
	switch {
	case percentage >= ExcellentThreshold:
		return LevelExcellent
	case percentage >= GoodThreshold:
		return LevelGood
	case percentage >= FairThreshold:
		return LevelFair
	default:
		return LevelPoor
	}
}

// CompletenessResult is the score of one record against one catalog.
type CompletenessResult struct {
	Percentage       int               `json:"percentage"`
	Score            int               `json:"score"`
	MaxScore         int               `json:"max_score"`
	PresentFields    []FieldDescriptor `json:"present_fields"`
	MissingFields    []FieldDescriptor `json:"missing_fields"`
	CriticalMissing  []FieldDescriptor `json:"critical_missing"`
	ImportantMissing []FieldDescriptor `json:"important_missing"`
	Level            Level             `json:"level"`
	Recommendations  []string          `json:"recommendations"`
}

// Score computes the completeness of c. It never fails: absent or blank
// attributes simply count as missing.
func (cat *Catalog) Score(c domain.Customer) CompletenessResult {
	res := CompletenessResult{
		MaxScore:         cat.maxScore,
		PresentFields:    []FieldDescriptor{},
		MissingFields:    []FieldDescriptor{},
		CriticalMissing:  []FieldDescriptor{},
		ImportantMissing: []FieldDescriptor{},
	}

	for _, f := range cat.fields {
		if f.Present(&c) {
			res.PresentFields = append(res.PresentFields, f)
			res.Score += f.Weight
			continue
		}
		res.MissingFields = append(res.MissingFields, f)
		switch f.Priority {
		case PriorityCritical:
			res.CriticalMissing = append(res.CriticalMissing, f)
		case PriorityImportant:
			res.ImportantMissing = append(res.ImportantMissing, f)
		}
	}

	res.Percentage = percentOf(res.Score, res.MaxScore)
	res.Level = LevelFor(res.Percentage)
	res.Recommendations = recommendations(res)
	return res
}

// Score is shorthand for catalog.Score(c).
func Score(c domain.Customer, catalog *Catalog) CompletenessResult {
	return catalog.Score(c)
}

func percentOf(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

func recommendations(res CompletenessResult) []string {
	out := []string{}
	if len(res.CriticalMissing) > 0 {
		out = append(out, fmt.Sprintf("Complete the critical fields: %s", labels(res.CriticalMissing)))
	}
	if len(res.ImportantMissing) > 0 && len(res.CriticalMissing) == 0 {
		out = append(out, fmt.Sprintf("Add important information: %s", labels(res.ImportantMissing)))
	}
	if res.Percentage >= NearlyCompleteThreshold {
		out = append(out, "Profile nearly complete! Fill in the remaining fields to get the most out of reports.")
	}
	if res.Percentage == 100 {
		out = append(out, "Profile complete! Data is ready for accurate reporting.")
	}
	return out
}

func labels(fields []FieldDescriptor) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Label
	}
	return strings.Join(names, ", ")
}

// Keys returns the keys of fields, preserving order.
func Keys(fields []FieldDescriptor) []FieldKey {
	out := make([]FieldKey, len(fields))
	for i, f := range fields {
		out[i] = f.Key
	}
	return out
}
