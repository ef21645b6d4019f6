// Package report exports a finished interview as JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/results"
	"gopkg.in/yaml.v3"
)

// Format selects the encoding of a written report.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Entry is one answered question in the report.
type Entry struct {
	Ordinal  int          `json:"ordinal" yaml:"ordinal"`
	Question string       `json:"question" yaml:"question"`
	Answer   string       `json:"answer" yaml:"answer"`
	Score    float64      `json:"score" yaml:"score"`
	Band     results.Band `json:"band" yaml:"band"`
	Feedback string       `json:"feedback" yaml:"feedback"`
}

// Report is the exported view of one session.
type Report struct {
	GeneratedAt     time.Time            `json:"generated_at" yaml:"generated_at"`
	SessionID       string               `json:"session_id" yaml:"session_id"`
	TotalQuestions  int                  `json:"total_questions" yaml:"total_questions"`
	Status          string               `json:"status" yaml:"status"`
	ProgressPercent float64              `json:"progress_percent" yaml:"progress_percent"`
	Summary         results.Summary      `json:"summary" yaml:"summary"`
	Trend           []results.TrendPoint `json:"trend" yaml:"trend"`
	Entries         []Entry              `json:"entries" yaml:"entries"`
}

// Build converts a snapshot into a report stamped with now.
func Build(s interview.Snapshot, now time.Time) Report {
	r := Report{
		GeneratedAt:     now.UTC(),
		SessionID:       s.Session.ID,
		TotalQuestions:  s.Session.TotalQuestions,
		Status:          string(s.Session.Status),
		ProgressPercent: results.ProgressPercent(s),
		Summary:         results.Summarize(s),
		Trend:           results.ScoreTrend(s),
		Entries:         make([]Entry, 0, len(s.Results)),
	}
	for _, entry := range s.Results {
		r.Entries = append(r.Entries, Entry{
			Ordinal:  entry.Question.Ordinal,
			Question: entry.Question.Text,
			Answer:   entry.Answer,
			Score:    entry.Score,
			Band:     results.ScoreColorBand(entry.Score),
			Feedback: entry.Feedback,
		})
	}
	return r
}

// FormatForPath picks YAML for .yaml/.yml and JSON otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Write encodes r to w.
func Write(w io.Writer, r Report, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteFile writes r to path, creating parent directories.
func WriteFile(path string, r Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory %q: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open report %q: %w", path, err)
	}
	if err := Write(f, r, FormatForPath(path)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report %q: %w", path, err)
	}
	return nil
}
