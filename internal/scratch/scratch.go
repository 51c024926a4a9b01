// Package scratch keeps one plain-text transcript per test attempt: topic,
// question, model answer, learner answer and evaluation.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/pai-studio/internal/platform/fsutil"
)

const (
	labelTopic       = "ARGOMENTO: "
	labelQuestion    = "DOMANDA: "
	labelModelAnswer = "RISPOSTA MODELLO: "
	labelAnswer      = "RISPOSTA UTENTE: "
	labelEvaluation  = "VALUTAZIONE: "

	// PendingAnswer and PendingEvaluation hold the place of fields not yet filled.
	PendingAnswer     = "[Sarà aggiunta dopo la risposta dell'utente]"
	PendingEvaluation = "[Sarà aggiunta dopo la valutazione]"

	filePrefix = "test_"
	fileSuffix = ".txt"
)

var (
	// ErrInvalidName is returned for names that are not transcript file names.
	ErrInvalidName = errors.New("scratch: invalid transcript name")
	// ErrOutOfOrder is returned when a field is filled before the previous one.
	ErrOutOfOrder = errors.New("scratch: transcript fields filled out of order")
	// ErrMalformed is returned when a transcript file cannot be parsed.
	ErrMalformed = errors.New("scratch: malformed transcript")
)

// Stage is how far a transcript has been filled.
type Stage int

const (
	QuestionFilled Stage = iota
	AnswerFilled
	EvaluationFilled
)

func (s Stage) String() string {
	switch s {
	case QuestionFilled:
		return "question"
	case AnswerFilled:
		return "answer"
	case EvaluationFilled:
		return "evaluation"
	default:
		return "unknown"
	}
}

// Record is one test transcript.
type Record struct {
	Name        string    `json:"name"`
	Topic       string    `json:"topic"`
	Question    string    `json:"question"`
	ModelAnswer string    `json:"model_answer"`
	Answer      string    `json:"answer,omitempty"`
	Evaluation  string    `json:"evaluation,omitempty"`
	Stage       Stage     `json:"stage"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store keeps transcripts as files in one directory.
type Store struct {
	dir string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir, Now: time.Now}
}

// Dir returns the directory holding the transcripts.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path of the named transcript.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Create writes a new transcript with the question and model answer filled.
func (s *Store) Create(topic, question, modelAnswer string) (Record, error) {
	now := s.Now()
	rec := Record{
		Topic:       topic,
		Question:    question,
		ModelAnswer: modelAnswer,
		Stage:       QuestionFilled,
		CreatedAt:   now.Truncate(time.Second),
	}

	base := fmt.Sprintf("%s%s_%d", filePrefix, Slug(topic), now.Unix())
	rec.Name = base + fileSuffix
	for n := 2; ; n++ {
		if _, err := os.Stat(s.Path(rec.Name)); errors.Is(err, fs.ErrNotExist) {
			break
		}
		rec.Name = fmt.Sprintf("%s_%d%s", base, n, fileSuffix)
	}

	return rec, s.write(rec)
}

// RecordAnswer fills the learner answer and rewrites the transcript.
func (s *Store) RecordAnswer(rec Record, answer string) (Record, error) {
	if rec.Stage != QuestionFilled {
		return rec, fmt.Errorf("%w: answer at stage %s", ErrOutOfOrder, rec.Stage)
	}
	rec.Answer = answer
	rec.Stage = AnswerFilled
	return rec, s.write(rec)
}

// RecordEvaluation fills the evaluation and rewrites the transcript.
func (s *Store) RecordEvaluation(rec Record, evaluation string) (Record, error) {
	if rec.Stage != AnswerFilled {
		return rec, fmt.Errorf("%w: evaluation at stage %s", ErrOutOfOrder, rec.Stage)
	}
	rec.Evaluation = evaluation
	rec.Stage = EvaluationFilled
	return rec, s.write(rec)
}

// Read loads the named transcript.
func (s *Store) Read(name string) (Record, error) {
	if err := validName(name); err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return Record{}, fmt.Errorf("reading transcript %s: %w", name, err)
	}

	rec, err := Parse(string(data))
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", name, err)
	}
	rec.Name = name
	rec.CreatedAt = createdAt(name)
	if rec.CreatedAt.IsZero() {
		if info, err := os.Stat(s.Path(name)); err == nil {
			rec.CreatedAt = info.ModTime().Truncate(time.Second)
		}
	}
	return rec, nil
}

// List returns all readable transcripts, newest first. A missing directory
// yields an empty list.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}

	var out []Record
	for _, e := range entries {
		if e.IsDir() || validName(e.Name()) != nil {
			continue
		}
		rec, err := s.Read(e.Name())
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// Delete removes the named transcript. Deleting a missing transcript is not
// an error.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting transcript %s: %w", name, err)
	}
	return nil
}

func (s *Store) write(rec Record) error {
	if err := fsutil.WriteFileAtomic(s.Path(rec.Name), []byte(Render(rec)), 0o644); err != nil {
		return fmt.Errorf("writing transcript %s: %w", rec.Name, err)
	}
	return nil
}

// Render formats rec as the transcript file body.
func Render(rec Record) string {
	answer, evaluation := PendingAnswer, PendingEvaluation
	if rec.Stage >= AnswerFilled {
		answer = rec.Answer
	}
	if rec.Stage >= EvaluationFilled {
		evaluation = rec.Evaluation
	}

	var b strings.Builder
	for _, field := range [...]struct{ label, value string }{
		{labelTopic, rec.Topic},
		{labelQuestion, rec.Question},
		{labelModelAnswer, rec.ModelAnswer},
		{labelAnswer, answer},
		{labelEvaluation, evaluation},
	} {
		b.WriteString(field.label)
		b.WriteString(field.value)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Parse reads a transcript body written by Render. The stage is derived from
// which fields still hold their placeholders.
func Parse(body string) (Record, error) {
	labels := []string{labelTopic, labelQuestion, labelModelAnswer, labelAnswer, labelEvaluation}
	if !strings.HasPrefix(body, labelTopic) {
		return Record{}, ErrMalformed
	}

	values := make([]string, len(labels))
	pos := len(labelTopic)
	for i := range labels {
		end := len(body)
		next := -1
		if i+1 < len(labels) {
			next = strings.Index(body[pos:], "\n\n"+labels[i+1])
			if next < 0 {
				return Record{}, fmt.Errorf("%w: missing %s", ErrMalformed, strings.TrimSuffix(labels[i+1], ": "))
			}
			end = pos + next
		}
		values[i] = strings.TrimRight(body[pos:end], "\n")
		if next >= 0 {
			pos = end + 2 + len(labels[i+1])
		}
	}

	rec := Record{
		Topic:       values[0],
		Question:    values[1],
		ModelAnswer: values[2],
		Stage:       QuestionFilled,
	}
	if values[3] != PendingAnswer {
		rec.Answer = values[3]
		rec.Stage = AnswerFilled
		if values[4] != PendingEvaluation {
			rec.Evaluation = values[4]
			rec.Stage = EvaluationFilled
		}
	}
	return rec, nil
}

var slugger = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug turns a topic into a file-name fragment: diacritics are stripped and
// every other non-alphanumeric character becomes an underscore.
func Slug(topic string) string {
	s, _, err := transform.String(slugger, topic)
	if err != nil {
		s = topic
	}
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, s)
}

func validName(name string) error {
	if name == "" || filepath.Base(name) != name || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// createdAt extracts the unix timestamp embedded in a transcript name.
func createdAt(name string) time.Time {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	parts := strings.Split(stem, "_")
	// Names of same-second collisions end in _<unix>_<n>.
	for i := len(parts) - 1; i >= 0 && i >= len(parts)-2; i-- {
		if sec, err := strconv.ParseInt(parts[i], 10, 64); err == nil && sec > 1_000_000_000 {
			return time.Unix(sec, 0)
		}
	}
	return time.Time{}
}
