package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/results"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func finishedSnapshot() interview.Snapshot {
	return interview.Snapshot{
		Session: interview.Session{ID: "s-9", TotalQuestions: 5, AnsweredCount: 3, Status: fsm.StateFinished},
		Results: []interview.ResultEntry{
			{Question: interview.Question{Text: "What is a slice?", Ordinal: 1}, Answer: "a view", Score: 85, Feedback: "good"},
			{Question: interview.Question{Text: "What is a map?", Ordinal: 2}, Answer: "hash", Score: 45, Feedback: "thin"},
		},
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	r := Build(finishedSnapshot(), now)

	require.Equal(t, now.UTC(), r.GeneratedAt)
	require.Equal(t, "s-9", r.SessionID)
	require.Equal(t, "finished", r.Status)
	require.Equal(t, 100.0, r.ProgressPercent)
	require.Equal(t, 2, r.Summary.Answered)
	require.Equal(t, []results.TrendPoint{{Ordinal: 1, Score: 85}, {Ordinal: 2, Score: 45}}, r.Trend)
	require.Len(t, r.Entries, 2)
	require.Equal(t, Entry{Ordinal: 2, Question: "What is a map?", Answer: "hash", Score: 45, Band: results.BandPoor, Feedback: "thin"}, r.Entries[1])
}

func TestFormatForPath(t *testing.T) {
	require.Equal(t, FormatYAML, FormatForPath("out/report.yaml"))
	require.Equal(t, FormatYAML, FormatForPath("REPORT.YML"))
	require.Equal(t, FormatJSON, FormatForPath("report.json"))
	require.Equal(t, FormatJSON, FormatForPath("report"))
}

func TestWriteJSONHasTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Build(finishedSnapshot(), time.Unix(0, 0)), FormatJSON))
	require.True(t, strings.HasSuffix(buf.String(), "}\n"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "s-9", decoded["session_id"])
}

func TestWriteRejectsUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Report{}, Format("xml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported report format")
}

func TestWriteFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.yaml")
	require.NoError(t, WriteFile(path, Build(finishedSnapshot(), time.Unix(0, 0))))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		SessionID string `yaml:"session_id"`
		Entries   []struct {
			Band string `yaml:"band"`
		} `yaml:"entries"`
	}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Equal(t, "s-9", decoded.SessionID)
	require.Len(t, decoded.Entries, 2)
	require.Equal(t, "good", decoded.Entries[0].Band)
}
