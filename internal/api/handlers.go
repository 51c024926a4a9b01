package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/pai-studio/internal/export"
	"github.com/p-n-ai/pai-studio/internal/planner"
	"github.com/p-n-ai/pai-studio/internal/progress"
	"github.com/p-n-ai/pai-studio/internal/scratch"
	"github.com/p-n-ai/pai-studio/internal/session"
)

type topicRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) handleExam(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, date := s.sess.Exam()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      name,
		"date":      date.Format(time.DateOnly),
		"days_left": s.sess.DaysLeft(),
		"topics":    s.sess.Catalog().Len(),
	})
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.sess.Today(r.Context()))
}

// handlePlan returns the whole plan, or one month with ?month=YYYY-MM.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan := s.sess.Plan(r.Context())
	if m := r.URL.Query().Get("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		plan = planner.InMonth(plan, planner.Month{Year: t.Year(), Month: t.Month()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days":   plan,
		"months": planner.Months(s.sess.Plan(r.Context())),
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   s.sess.Progress(),
		"remaining": s.sess.Remaining(),
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.sess.Topics())
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	topic, err := url.PathUnescape(chi.URLParam(r, "topic"))
	if err != nil || strings.TrimSpace(topic) == "" {
		writeError(w, http.StatusBadRequest, "invalid topic")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	st, err := progress.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sess.Catalog().Contains(topic) {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	if err := s.sess.SetStatus(r.Context(), topic, st); err != nil {
		internalError(w, "set status", err)
		return
	}
	writeJSON(w, http.StatusOK, session.TopicStatus{Topic: topic, Status: st, Label: st.Label()})
}

func (s *Server) handleStudy(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.knownTopic(w, req.Topic) {
		return
	}
	content, err := s.sess.Study(r.Context(), req.Topic)
	if err != nil {
		sessionError(w, "study", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"topic": req.Topic, "content": content})
}

func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topics []string `json:"topics"`
	}
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"contents": s.sess.Prefetch(r.Context(), req.Topics)})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"reply": s.sess.Chat(r.Context(), req.Text)})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.sess.Transcript())
}

func (s *Server) handleActiveTest(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tc, ok := s.sess.ActiveTest()
	if !ok {
		writeError(w, http.StatusNotFound, "no active test")
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleStartTest(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.knownTopic(w, req.Topic) {
		return
	}
	tc, err := s.sess.StartTest(r.Context(), req.Topic)
	if err != nil {
		sessionError(w, "start test", err)
		return
	}
	writeJSON(w, http.StatusCreated, tc)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eval, err := s.sess.SubmitAnswer(r.Context(), req.Answer)
	if err != nil {
		sessionError(w, "submit answer", err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

func (s *Server) handleCloseTest(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sess.CloseTest()
	w.WriteHeader(http.StatusNoContent)
}

// handleScores returns the history newest first, or one topic's scores in
// order with ?topic=.
func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if topic := r.URL.Query().Get("topic"); topic != "" {
		writeJSON(w, http.StatusOK, s.sess.TopicHistory(topic))
		return
	}
	writeJSON(w, http.StatusOK, s.sess.History())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.sess.Stats())
}

// handleDeleteScore deletes by ?topic=&timestamp=YYYY-MM-DD HH:MM:SS.
func (s *Server) handleDeleteScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topic := q.Get("topic")
	ts, err := time.ParseInLocation(progress.TimestampLayout, q.Get("timestamp"), time.Local)
	if topic == "" || err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("topic and timestamp (%s) are required", progress.TimestampLayout))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.sess.DeleteScore(r.Context(), topic, ts, q.Get("transcript"))
	s.writeDeleted(w, ok, err)
}

func (s *Server) handleDeleteScoreByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.sess.DeleteScoreByID(r.Context(), id, r.URL.Query().Get("transcript"))
	s.writeDeleted(w, ok, err)
}

func (s *Server) writeDeleted(w http.ResponseWriter, ok bool, err error) {
	if err != nil {
		sessionError(w, "delete score", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "score not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "✅ Test eliminato con successo"})
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.sess.Transcripts()
	if err != nil {
		internalError(w, "list transcripts", err)
		return
	}
	if recs == nil {
		recs = []scratch.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleReadTranscript(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.sess.ReadTranscript(chi.URLParam(r, "name"))
	if err != nil {
		sessionError(w, "read transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteTranscript(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sess.DeleteTranscript(chi.URLParam(r, "name")); err != nil {
		sessionError(w, "delete transcript", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	name, date := s.sess.Exam()
	report := export.Report{
		ExamName: name,
		ExamDate: date,
		Plan:     s.sess.Plan(r.Context()),
		States:   s.sess.States(),
		Scores:   s.sess.Scores(),
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="piano_studio.xlsx"`)
	if err := export.Write(w, report); err != nil {
		slog.Error("failed to write export", "error", err)
	}
}

// knownTopic rejects names missing from the catalog. Blank names are left
// to the session, which reports them as ErrUnknownTopic.
func (s *Server) knownTopic(w http.ResponseWriter, topic string) bool {
	topic = strings.TrimSpace(topic)
	if topic == "" || s.sess.Catalog().Contains(topic) {
		return true
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown topic %q", topic))
	return false
}

// sessionError maps session errors to status codes.
func sessionError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, session.ErrUnknownTopic):
		writeError(w, http.StatusBadRequest, "topic is required")
	case errors.Is(err, session.ErrNoPendingQuestion):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scratch.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid transcript name")
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "transcript not found")
	default:
		internalError(w, op, err)
	}
}

func internalError(w http.ResponseWriter, op string, err error) {
	slog.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
