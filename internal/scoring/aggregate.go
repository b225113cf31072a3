package scoring

import (
	"math"
	"sort"

	"github.com/aura-interview/backend/config"
	"github.com/aura-interview/backend/internal/models"
)

// Overall is the weighted per-question score, rounded to two decimals.
func Overall(w config.Weights, technical, communication, completeness int) float64 {
	return round2(w.Technical*float64(technical) + w.Communication*float64(communication) + w.Completeness*float64(completeness))
}

// Aggregate derives the session report from every score row. It reads nothing else and
// mutates nothing, so calling it twice on the same rows yields the same report.
func Aggregate(rows []models.Score, w config.Weights) models.Report {
	sorted := make([]models.Score, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].QuestionID < sorted[j].QuestionID })

	report := models.Report{
		Weights: models.ReportWeights{
			Technical:     w.Technical,
			Communication: w.Communication,
			Completeness:  w.Completeness,
		},
		RedFlags:    []string{},
		PerQuestion: make([]models.QuestionSummary, 0, len(sorted)),
	}
	if len(sorted) == 0 {
		return report
	}

	var tech, comm, comp float64
	seen := make(map[string]bool)
	for _, s := range sorted {
		c := s.Communication
		if s.Modality == models.ModalityCode {
			c = 0
		}
		tech += float64(s.Technical)
		comm += float64(c)
		comp += float64(s.Completeness)

		flags := s.Feedback.RedFlags
		if flags == nil {
			flags = []string{}
		}
		for _, f := range flags {
			if !seen[f] {
				seen[f] = true
				report.RedFlags = append(report.RedFlags, f)
			}
		}
		report.PerQuestion = append(report.PerQuestion, models.QuestionSummary{
			QuestionID:    s.QuestionID,
			Modality:      s.Modality,
			Technical:     s.Technical,
			Communication: c,
			Completeness:  s.Completeness,
			Overall:       s.Overall,
			Summary:       s.Feedback.Summary,
			RedFlags:      flags,
		})
	}

	n := float64(len(sorted))
	report.SectionScores = models.SectionScores{
		Technical:     round2(tech / n),
		Communication: round2(comm / n),
		Completeness:  round2(comp / n),
	}
	report.OverallScore = round2(
		w.Technical*report.SectionScores.Technical +
			w.Communication*report.SectionScores.Communication +
			w.Completeness*report.SectionScores.Completeness,
	)
	return report
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
