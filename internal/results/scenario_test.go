package results

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/scoring"
	"github.com/stretchr/testify/require"
)

// scriptedService serves len(scores) questions and scores answers in order.
func scriptedService(t *testing.T, scores []float64) *httptest.Server {
	t.Helper()

	var (
		mu     sync.Mutex
		served int
	)
	r := chi.NewRouter()
	r.Post("/start_session", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			NumQuestions int `json:"num_questions"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.Equal(t, len(scores), body.NumQuestions)

		mu.Lock()
		served = 0
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"session_id": "scenario", "question": "Q1"})
	})
	r.Post("/submit_answer", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		score := scores[served]
		served++
		n := served
		mu.Unlock()

		resp := map[string]any{"score": score, "feedback": fmt.Sprintf("feedback %d", n)}
		if n < len(scores) {
			resp["next_question"] = fmt.Sprintf("Q%d", n+1)
		} else {
			resp["next_question"] = nil
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFiveQuestionInterviewEndToEnd(t *testing.T) {
	scores := []float64{90, 40, 65, 50, 80}
	srv := scriptedService(t, scores)

	client, err := scoring.New(scoring.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	ctrl := interview.NewController(nil, client, interview.Options{})

	ctx := context.Background()
	require.NoError(t, ctrl.StartSession(ctx, 5))
	require.InDelta(t, 20.0, ProgressPercent(ctrl.Snapshot()), 1e-9)

	for i := range scores {
		snap := ctrl.Snapshot()
		require.Equal(t, fmt.Sprintf("Q%d", i+1), snap.Question.Text)
		require.Len(t, ScoreTrend(snap), i)
		require.Equal(t, i+1, snap.Session.AnsweredCount)

		require.NoError(t, ctrl.UpdateDraft(fmt.Sprintf("answer %d", i+1)))
		require.NoError(t, ctrl.SubmitAnswer(ctx))
	}

	snap := ctrl.Snapshot()
	require.Equal(t, fsm.StateFinished, snap.Session.Status)
	require.Len(t, snap.Results, 5)
	require.Equal(t, snap.Session.TotalQuestions, snap.Session.AnsweredCount)
	for i, entry := range snap.Results {
		require.Equal(t, scores[i], entry.Score)
		require.Equal(t, fmt.Sprintf("answer %d", i+1), entry.Answer)
	}
	require.Equal(t, 100.0, ProgressPercent(snap))
	require.Equal(t, []TrendPoint{{1, 90}, {2, 40}, {3, 65}, {4, 50}, {5, 80}}, ScoreTrend(snap))
	require.Equal(t, BandGood, ScoreColorBand(snap.Evaluation.Score))
}
