// Package session orchestrates study and test interactions: it updates topic
// states, records scores, keeps test transcripts and serves the read-side
// views of the plan and progress.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-studio/internal/ai"
	"github.com/p-n-ai/pai-studio/internal/curriculum"
	"github.com/p-n-ai/pai-studio/internal/planner"
	"github.com/p-n-ai/pai-studio/internal/progress"
	"github.com/p-n-ai/pai-studio/internal/scratch"
)

const defaultFanOut = 4

var (
	// ErrNoPendingQuestion is returned by SubmitAnswer outside the question phase.
	ErrNoPendingQuestion = errors.New("no pending test question")
	// ErrUnknownTopic is returned for an empty topic.
	ErrUnknownTopic = errors.New("unknown topic")
)

// Mode is the kind of interaction requested on a topic.
type Mode int

const (
	ModeStudy Mode = iota
	ModeTest
)

func (m Mode) String() string {
	if m == ModeTest {
		return "test"
	}
	return "studio"
}

// Phase is the state of a test attempt.
type Phase int

const (
	PhaseQuestion Phase = iota
	PhaseEvaluated
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseQuestion:
		return "question"
	case PhaseEvaluated:
		return "evaluated"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// TestContext is the in-flight test attempt.
type TestContext struct {
	Topic       string      `json:"topic"`
	Question    string      `json:"question"`
	ModelAnswer string      `json:"model_answer"`
	Phase       Phase       `json:"phase"`
	Transcript  string      `json:"transcript,omitempty"`
	Evaluation  *Evaluation `json:"evaluation,omitempty"`

	record *scratch.Record
}

// Exchange is one user/assistant turn of the session transcript.
type Exchange struct {
	User  string    `json:"user"`
	Reply string    `json:"reply"`
	At    time.Time `json:"at"`
}

// Config holds the session's collaborators.
type Config struct {
	Catalog   *curriculum.Catalog
	States    *progress.StateStore
	Ledger    *progress.ScoreLedger
	Planner   *planner.Planner
	Generator ai.Generator   // nil behaves as an empty router
	Scratch   *scratch.Store // nil disables transcripts
	ExamName  string
	ExamDate  time.Time
	FanOut    int              // concurrent generations in Prefetch (default 4)
	Now       func() time.Time // defaults to time.Now
}

// Session is the single learner's interaction state. It is not safe for
// concurrent use; callers serialize access.
type Session struct {
	catalog   *curriculum.Catalog
	states    *progress.StateStore
	ledger    *progress.ScoreLedger
	planner   *planner.Planner
	generator ai.Generator
	scratch   *scratch.Store
	examName  string
	examDate  time.Time
	fanOut    int
	now       func() time.Time

	transcript []Exchange
	test       *TestContext
	studyMemo  map[string]string
}

// New creates a session. Load must be called before use.
func New(cfg Config) *Session {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = curriculum.NewCatalog(nil)
	}
	p := cfg.Planner
	if p == nil {
		p = planner.New(nil)
	}
	fanOut := cfg.FanOut
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	gen := cfg.Generator
	if gen == nil {
		gen = ai.NewRouter()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		catalog:   catalog,
		states:    cfg.States,
		ledger:    cfg.Ledger,
		planner:   p,
		generator: gen,
		scratch:   cfg.Scratch,
		examName:  cfg.ExamName,
		examDate:  cfg.ExamDate,
		fanOut:    fanOut,
		now:       now,
		studyMemo: map[string]string{},
	}
}

// Open creates a session and loads its persisted state.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	s := New(cfg)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reconciles the topic states with the catalog and loads the score
// history.
func (s *Session) Load(ctx context.Context) error {
	if _, err := s.states.LoadOrInit(ctx, s.catalog.Names()); err != nil {
		return fmt.Errorf("loading topic states: %w", err)
	}
	if _, err := s.ledger.LoadOrInit(ctx); err != nil {
		return fmt.Errorf("loading scores: %w", err)
	}
	slog.Info("session loaded",
		"topics", s.catalog.Len(),
		"scores", len(s.ledger.Entries()),
		"exam_date", s.examDate.Format(time.DateOnly),
	)
	return nil
}

// Exam returns the exam name and date.
func (s *Session) Exam() (string, time.Time) {
	return s.examName, s.examDate
}

// Catalog returns the topic catalog.
func (s *Session) Catalog() *curriculum.Catalog {
	return s.catalog
}

// DaysLeft returns the days from today to the exam.
func (s *Session) DaysLeft() int {
	return planner.DaysUntil(s.now(), s.examDate)
}

// Plan returns the study plan from today to the exam date.
func (s *Session) Plan(ctx context.Context) []planner.CalendarDay {
	now := s.now()
	return s.planner.Plan(ctx, s.catalog.Names(), s.states.Snapshot(), planner.DaysUntil(now, s.examDate), now)
}

// TopicStatus pairs a topic with its current status.
type TopicStatus struct {
	Topic  string          `json:"topic"`
	Status progress.Status `json:"status"`
	Label  string          `json:"label"`
}

// TodayView is today's slice of the plan.
type TodayView struct {
	Date      time.Time     `json:"date"`
	DaysLeft  int           `json:"days_left"`
	Scheduled bool          `json:"scheduled"`
	Review    bool          `json:"review"`
	Topics    []TopicStatus `json:"topics"`
	Message   string        `json:"message,omitempty"`
}

// Messages of a day without topics.
const (
	NothingScheduled = "Hai completato tutti gli argomenti! Usa il tempo per ripassare."
	ExamPassed       = "L'esame è oggi o è già passato: non ci sono altri giorni da pianificare."
)

// Today returns today's topics with their statuses. When the plan has no
// entry for today the view is marked unscheduled.
func (s *Session) Today(ctx context.Context) TodayView {
	now := s.now()
	view := TodayView{
		Date:     planner.DateOf(now),
		DaysLeft: planner.DaysUntil(now, s.examDate),
		Topics:   []TopicStatus{},
	}

	if view.DaysLeft <= 0 {
		view.Message = ExamPassed
		return view
	}

	day, ok := planner.Day(s.Plan(ctx), now)
	if !ok || len(day.Topics) == 0 {
		view.Message = NothingScheduled
		return view
	}

	view.Scheduled = true
	view.Review = day.Review
	for _, topic := range day.Topics {
		view.Topics = append(view.Topics, s.topicStatus(topic))
	}
	return view
}

// Remaining returns the topics that are not completed.
func (s *Session) Remaining() []string {
	return s.states.Remaining()
}

// Progress counts topics per status.
func (s *Session) Progress() progress.Summary {
	return s.states.Summary()
}

// Stats summarises the score history.
func (s *Session) Stats() progress.Stats {
	return s.ledger.Stats()
}

// History returns the score history, newest first.
func (s *Session) History() []progress.ScoreEntry {
	return s.ledger.History()
}

// States returns every topic status in persisted order.
func (s *Session) States() []progress.TopicState {
	return s.states.Records()
}

// Scores returns the score history in append order.
func (s *Session) Scores() []progress.ScoreEntry {
	return s.ledger.Entries()
}

// TopicHistory returns the scores recorded for topic in order.
func (s *Session) TopicHistory(topic string) []progress.ScoreEntry {
	return s.ledger.ForTopic(topic)
}

// TopicGroup is one category of the catalog with statuses.
type TopicGroup struct {
	Category string        `json:"category"`
	Topics   []TopicStatus `json:"topics"`
}

// Topics returns the catalog grouped by category with current statuses.
func (s *Session) Topics() []TopicGroup {
	groups := s.catalog.Groups()
	out := make([]TopicGroup, len(groups))
	for i, g := range groups {
		out[i] = TopicGroup{Category: g.Category}
		for _, t := range g.Topics {
			out[i].Topics = append(out[i].Topics, s.topicStatus(t.Name))
		}
	}
	return out
}

// Transcript returns the exchanges of this session.
func (s *Session) Transcript() []Exchange {
	return append([]Exchange(nil), s.transcript...)
}

// ActiveTest returns the current test attempt, if any.
func (s *Session) ActiveTest() (TestContext, bool) {
	if s.test == nil {
		return TestContext{}, false
	}
	return *s.test, true
}

// Transcripts lists the stored test transcripts, newest first.
func (s *Session) Transcripts() ([]scratch.Record, error) {
	if s.scratch == nil {
		return nil, nil
	}
	return s.scratch.List()
}

// ReadTranscript loads one stored test transcript.
func (s *Session) ReadTranscript(name string) (scratch.Record, error) {
	if s.scratch == nil {
		return scratch.Record{}, fmt.Errorf("transcripts disabled: %w", scratch.ErrInvalidName)
	}
	return s.scratch.Read(name)
}

func (s *Session) topicStatus(topic string) TopicStatus {
	st := s.states.Status(topic)
	return TopicStatus{Topic: topic, Status: st, Label: st.Label()}
}

func (s *Session) record(user, reply string) {
	s.transcript = append(s.transcript, Exchange{User: user, Reply: reply, At: s.now()})
}
