// Package results derives display-ready summaries from interview snapshots.
package results

import (
	"math"

	"github.com/rbright/rehearse/internal/interview"
)

// Band is the color class for a score.
type Band string

const (
	BandGood    Band = "good"
	BandWarning Band = "warning"
	BandPoor    Band = "poor"
)

// TrendPoint is one (ordinal, score) sample of the score series.
type TrendPoint struct {
	Ordinal int     `json:"ordinal" yaml:"ordinal"`
	Score   float64 `json:"score" yaml:"score"`
}

// Summary aggregates all answered questions of a session.
type Summary struct {
	Answered int          `json:"answered" yaml:"answered"`
	Average  float64      `json:"average" yaml:"average"`
	Best     float64      `json:"best" yaml:"best"`
	Worst    float64      `json:"worst" yaml:"worst"`
	Bands    map[Band]int `json:"bands" yaml:"bands"`
}

// ScoreColorBand classifies score; each band includes its lower bound.
func ScoreColorBand(score float64) Band {
	switch {
	case score >= 80:
		return BandGood
	case score >= 50:
		return BandWarning
	default:
		return BandPoor
	}
}

// ProgressPercent is 100 once finished, otherwise answered/total capped at 100.
func ProgressPercent(s interview.Snapshot) float64 {
	if s.Finished() {
		return 100
	}
	if s.Session.AnsweredCount <= 0 || s.Session.TotalQuestions <= 0 {
		return 0
	}
	return math.Min(100, 100*float64(s.Session.AnsweredCount)/float64(s.Session.TotalQuestions))
}

// ScoreTrend returns the scores in submission order.
func ScoreTrend(s interview.Snapshot) []TrendPoint {
	points := make([]TrendPoint, 0, len(s.Results))
	for _, entry := range s.Results {
		points = append(points, TrendPoint{Ordinal: entry.Question.Ordinal, Score: entry.Score})
	}
	return points
}

// Summarize computes aggregate statistics; all fields are zero with no results.
func Summarize(s interview.Snapshot) Summary {
	summary := Summary{Bands: map[Band]int{}}
	if len(s.Results) == 0 {
		return summary
	}

	var total float64
	summary.Best = math.Inf(-1)
	summary.Worst = math.Inf(1)
	for _, entry := range s.Results {
		total += entry.Score
		summary.Best = math.Max(summary.Best, entry.Score)
		summary.Worst = math.Min(summary.Worst, entry.Score)
		summary.Bands[ScoreColorBand(entry.Score)]++
	}
	summary.Answered = len(s.Results)
	summary.Average = total / float64(len(s.Results))
	return summary
}
