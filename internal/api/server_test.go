package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-studio/internal/ai"
	"github.com/p-n-ai/pai-studio/internal/api"
	"github.com/p-n-ai/pai-studio/internal/chat"
	"github.com/p-n-ai/pai-studio/internal/curriculum"
	"github.com/p-n-ai/pai-studio/internal/export"
	"github.com/p-n-ai/pai-studio/internal/planner"
	"github.com/p-n-ai/pai-studio/internal/platform/tables"
	"github.com/p-n-ai/pai-studio/internal/progress"
	"github.com/p-n-ai/pai-studio/internal/scratch"
	"github.com/p-n-ai/pai-studio/internal/session"
)

var today = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

func newSession(t *testing.T, mock *ai.MockProvider) *session.Session {
	t.Helper()
	router := ai.NewRouter()
	router.Register("mock", mock)
	mem := tables.NewMemoryStore()

	sess, err := session.Open(context.Background(), session.Config{
		Catalog:   curriculum.NewCatalog([]string{"Grammar: Tenses", "Grammar: Modals", "Essay"}),
		States:    progress.NewStateStore(mem, "stato_argomenti", nil),
		Ledger:    progress.NewScoreLedger(mem, "punteggi_test", nil),
		Planner:   planner.New(planner.NewMemoryCache()),
		Generator: router,
		Scratch:   scratch.NewStore(t.TempDir()),
		ExamName:  "Prova orale",
		ExamDate:  time.Date(2025, 9, 11, 0, 0, 0, 0, time.UTC),
		Now:       func() time.Time { return today },
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return sess
}

func newServer(t *testing.T, mock *ai.MockProvider, checks map[string]api.Checker) http.Handler {
	t.Helper()
	return api.New(api.Options{
		Session:     newSession(t, mock),
		Checks:      checks,
		CORSOrigins: []string{"http://localhost:3000"},
	}).Router()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	healthy := newServer(t, &ai.MockProvider{}, map[string]api.Checker{
		"storage": api.CheckerFunc(func(context.Context) error { return nil }),
	})
	failing := newServer(t, &ai.MockProvider{}, map[string]api.Checker{
		"cache": api.CheckerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	tests := []struct {
		name       string
		handler    http.Handler
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthz returns 200", healthy, "/healthz", http.StatusOK, `{"status":"ok"}`},
		{"readyz returns 200", healthy, "/readyz", http.StatusOK, `{"status":"ready"}`},
		{"readyz reports failing check", failing, "/readyz", http.StatusServiceUnavailable,
			`{"checks":{"cache":"connection refused"},"status":"unavailable"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, tt.handler, http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestTodayAndPlan(t *testing.T) {
	h := newServer(t, &ai.MockProvider{}, nil)

	rec := do(t, h, http.MethodGet, "/api/today", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("today status = %d", rec.Code)
	}
	view := decodeBody[session.TodayView](t, rec)
	if !view.Scheduled || view.DaysLeft != 10 || view.Topics[0].Topic != "Grammar: Tenses" {
		t.Errorf("today = %+v", view)
	}

	rec = do(t, h, http.MethodGet, "/api/plan?month=2025-09", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("plan status = %d", rec.Code)
	}
	plan := decodeBody[struct {
		Days   []planner.CalendarDay `json:"days"`
		Months []planner.Month       `json:"months"`
	}](t, rec)
	if len(plan.Days) != 10 || len(plan.Months) != 1 {
		t.Errorf("plan has %d days in %d months, want 10 in 1", len(plan.Days), len(plan.Months))
	}

	if rec := do(t, h, http.MethodGet, "/api/plan?month=settembre", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad month status = %d, want 400", rec.Code)
	}
}

func TestTestFlow(t *testing.T) {
	mock := &ai.MockProvider{Responses: []string{"Question?", "Model answer.", "SCORE: 87\nCOMMENT: Good use of tenses."}}
	h := newServer(t, mock, nil)

	rec := do(t, h, http.MethodPost, "/api/test", map[string]string{"topic": "Essay"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	tc := decodeBody[struct {
		Question   string `json:"question"`
		Phase      string `json:"phase"`
		Transcript string `json:"transcript"`
	}](t, rec)
	if tc.Question != "Question?" || tc.Phase != "question" || tc.Transcript == "" {
		t.Errorf("test context = %+v", tc)
	}

	rec = do(t, h, http.MethodPost, "/api/test/answer", map[string]string{"answer": "My answer."})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d, body %s", rec.Code, rec.Body)
	}
	eval := decodeBody[session.Evaluation](t, rec)
	if eval.Score != 87 || eval.Comment != "Good use of tenses." {
		t.Errorf("evaluation = %+v", eval)
	}

	if rec := do(t, h, http.MethodPost, "/api/test/answer", map[string]string{"answer": "again"}); rec.Code != http.StatusConflict {
		t.Errorf("second answer status = %d, want 409", rec.Code)
	}

	scores := decodeBody[[]progress.ScoreEntry](t, do(t, h, http.MethodGet, "/api/scores", nil))
	if len(scores) != 1 || scores[0].Score != 87 {
		t.Fatalf("scores = %+v", scores)
	}
	stats := decodeBody[progress.Stats](t, do(t, h, http.MethodGet, "/api/scores/stats", nil))
	if stats.Count != 1 || stats.Mean != 87 {
		t.Errorf("stats = %+v", stats)
	}

	transcripts := decodeBody[[]scratch.Record](t, do(t, h, http.MethodGet, "/api/transcripts", nil))
	if len(transcripts) != 1 || transcripts[0].Stage != scratch.EvaluationFilled {
		t.Fatalf("transcripts = %+v", transcripts)
	}

	path := fmt.Sprintf("/api/scores/%d?transcript=%s", scores[0].ID, tc.Transcript)
	rec = do(t, h, http.MethodDelete, path, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Test eliminato con successo") {
		t.Errorf("delete = %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodDelete, path, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/transcripts/"+tc.Transcript, nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted transcript status = %d, want 404", rec.Code)
	}

	progressBody := decodeBody[struct {
		Summary   progress.Summary `json:"summary"`
		Remaining []string         `json:"remaining"`
	}](t, do(t, h, http.MethodGet, "/api/progress", nil))
	if progressBody.Summary.Completed != 1 || len(progressBody.Remaining) != 2 {
		t.Errorf("progress = %+v", progressBody)
	}
}

func TestDeleteScoreByTimestamp(t *testing.T) {
	mock := &ai.MockProvider{Responses: []string{"Q", "M", "SCORE: 40\nCOMMENT: weak"}}
	h := newServer(t, mock, nil)
	do(t, h, http.MethodPost, "/api/test", map[string]string{"topic": "Essay"})
	do(t, h, http.MethodPost, "/api/test/answer", map[string]string{"answer": "a"})

	scores := decodeBody[[]progress.ScoreEntry](t, do(t, h, http.MethodGet, "/api/scores?topic=Essay", nil))
	if len(scores) != 1 {
		t.Fatalf("scores = %+v", scores)
	}

	q := "/api/scores?topic=Essay&timestamp=" + strings.ReplaceAll(scores[0].Key(), " ", "%20")
	if rec := do(t, h, http.MethodDelete, q, nil); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodDelete, "/api/scores?topic=Essay", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing timestamp status = %d, want 400", rec.Code)
	}
}

func TestStudyAndChat(t *testing.T) {
	mock := &ai.MockProvider{Response: "Lesson"}
	h := newServer(t, mock, nil)

	rec := do(t, h, http.MethodPost, "/api/study", map[string]string{"topic": "Essay"})
	if rec.Code != http.StatusOK || decodeBody[map[string]string](t, rec)["content"] != "Lesson" {
		t.Errorf("study = %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodPost, "/api/study", map[string]string{"topic": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty topic status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/study", map[string]string{"argomento": "Essay"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/chat", map[string]string{"text": "hello"})
	if rec.Code != http.StatusOK || decodeBody[map[string]string](t, rec)["reply"] != "Lesson" {
		t.Errorf("chat = %d %s", rec.Code, rec.Body)
	}

	transcript := decodeBody[[]session.Exchange](t, do(t, h, http.MethodGet, "/api/transcript", nil))
	if len(transcript) != 2 {
		t.Errorf("transcript has %d exchanges, want 2", len(transcript))
	}

	rec = do(t, h, http.MethodPost, "/api/prefetch", map[string][]string{"topics": {"Grammar: Modals"}})
	if rec.Code != http.StatusOK {
		t.Errorf("prefetch status = %d", rec.Code)
	}
}

func TestSetStatus(t *testing.T) {
	h := newServer(t, &ai.MockProvider{}, nil)

	tests := []struct {
		name       string
		path       string
		status     string
		wantStatus int
	}{
		{"completed", "/api/topics/Essay/status", "completato", http.StatusOK},
		{"escaped topic", "/api/topics/Grammar:%20Modals/status", "da ripassare", http.StatusOK},
		{"invalid status", "/api/topics/Essay/status", "finito", http.StatusBadRequest},
		{"unknown topic", "/api/topics/Poetry/status", "completato", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, tt.path, map[string]string{"status": tt.status})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}

	groups := decodeBody[[]session.TopicGroup](t, do(t, h, http.MethodGet, "/api/topics", nil))
	if groups[0].Topics[1].Status != progress.NeedsReview {
		t.Errorf("Grammar: Modals = %+v, want da ripassare", groups[0].Topics[1])
	}
	if groups[1].Topics[0].Status != progress.Completed {
		t.Errorf("Essay = %+v, want completato", groups[1].Topics[0])
	}
}

func TestExport(t *testing.T) {
	h := newServer(t, &ai.MockProvider{}, nil)

	rec := do(t, h, http.MethodGet, "/api/export.xlsx", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != export.ContentType {
		t.Errorf("Content-Type = %q", got)
	}

	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(export.SheetStates)
	if len(rows) != 4 {
		t.Errorf("state rows = %d, want header + 3", len(rows))
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newServer(t, &ai.MockProvider{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/today", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestChatHandler_RepliesThroughGateway(t *testing.T) {
	gw := chat.NewGateway()
	mock := &chat.MockChannel{}
	gw.Register("mock", mock)

	srv := api.New(api.Options{Session: newSession(t, &ai.MockProvider{}), Gateway: gw})
	handle := srv.ChatHandler(context.Background())
	handle(chat.InboundMessage{Channel: "mock", UserID: "ws-1", Text: "/today"})

	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].UserID != "ws-1" || !strings.HasPrefix(sent[0].Text, "Argomenti di oggi") {
		t.Errorf("reply = %+v", sent[0])
	}
}

func TestUnknownTopicRejected(t *testing.T) {
	mock := &ai.MockProvider{Response: "Lesson"}
	h := newServer(t, mock, nil)

	for _, path := range []string{"/api/study", "/api/test"} {
		rec := do(t, h, http.MethodPost, path, map[string]string{"topic": "Esay"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("POST %s unknown topic status = %d, want 400", path, rec.Code)
		}
	}

	if n := len(mock.Requests()); n != 0 {
		t.Errorf("generator called %d times for an unknown topic", n)
	}
	prog := decodeBody[struct {
		Summary progress.Summary `json:"summary"`
	}](t, do(t, h, http.MethodGet, "/api/progress", nil))
	if prog.Summary.Total != 3 || prog.Summary.NeedsReview != 0 {
		t.Errorf("summary = %+v after unknown topic requests, want 3 untouched topics", prog.Summary)
	}

	rec := do(t, h, http.MethodPost, "/api/study", map[string]string{"topic": " Essay "})
	if rec.Code != http.StatusOK {
		t.Errorf("padded known topic status = %d, want 200", rec.Code)
	}
}
