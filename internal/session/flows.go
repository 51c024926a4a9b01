package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-studio/internal/ai"
	"github.com/p-n-ai/pai-studio/internal/planner"
	"github.com/p-n-ai/pai-studio/internal/progress"
)

// Study marks topic as seen and returns an explanation of it.
func (s *Session) Study(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", ErrUnknownTopic
	}

	if err := s.states.SetStatus(ctx, topic, progress.NeedsReview); err != nil {
		return "", fmt.Errorf("study %q: %w", topic, err)
	}
	s.planner.Invalidate(ctx)

	content, ok := s.studyMemo[topic]
	if !ok {
		content = s.generate(ctx, studyRequest(topic))
		if !ai.IsErrorContent(content) {
			s.studyMemo[topic] = content
		}
	}

	s.record(fmt.Sprintf("Richiesta su '%s' [%s]", topic, ModeStudy), content)
	slog.Info("study content served", "topic", topic, "memoized", ok)
	return content, nil
}

// StartTest opens a test attempt on topic: the topic is marked for review,
// a question and a model answer are generated and a transcript is created.
// An attempt already in progress is replaced.
func (s *Session) StartTest(ctx context.Context, topic string) (TestContext, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return TestContext{}, ErrUnknownTopic
	}

	if err := s.states.SetStatus(ctx, topic, progress.NeedsReview); err != nil {
		return TestContext{}, fmt.Errorf("start test %q: %w", topic, err)
	}
	s.planner.Invalidate(ctx)

	question := s.generate(ctx, questionRequest(topic))
	if ai.IsErrorContent(question) {
		slog.Warn("question generation failed, using default", "topic", topic, "content", question)
		question = defaultQuestion(topic)
	}
	modelAnswer := s.generate(ctx, modelAnswerRequest(topic, question))
	if ai.IsErrorContent(modelAnswer) {
		slog.Warn("model answer generation failed, using default", "topic", topic, "content", modelAnswer)
		modelAnswer = defaultModelAnswer(topic)
	}

	tc := &TestContext{
		Topic:       topic,
		Question:    question,
		ModelAnswer: modelAnswer,
		Phase:       PhaseQuestion,
	}
	if s.scratch != nil {
		rec, err := s.scratch.Create(topic, question, modelAnswer)
		if err != nil {
			slog.Warn("creating test transcript failed", "topic", topic, "error", err)
		} else {
			tc.Transcript = rec.Name
			tc.record = &rec
		}
	}

	s.test = tc
	s.record(fmt.Sprintf("Richiesta test su '%s'", topic), question)
	slog.Info("test started", "topic", topic, "transcript", tc.Transcript)
	return *tc, nil
}

// SubmitAnswer grades answer against the pending question, records the
// score and marks the topic completed.
func (s *Session) SubmitAnswer(ctx context.Context, answer string) (Evaluation, error) {
	if s.test == nil || s.test.Phase != PhaseQuestion {
		return Evaluation{}, ErrNoPendingQuestion
	}
	tc := s.test

	if tc.record != nil {
		rec, err := s.scratch.RecordAnswer(*tc.record, answer)
		if err != nil {
			slog.Warn("writing answer to transcript failed", "transcript", tc.Transcript, "error", err)
		} else {
			tc.record = &rec
		}
	}

	raw := s.generate(ctx, evaluationRequest(tc.Topic, tc.Question, tc.ModelAnswer, answer))
	eval := ParseEvaluation(raw)
	if !eval.Parsed {
		slog.Warn("evaluation not in expected format, using default score",
			"topic", tc.Topic,
			"score", eval.Score,
			"raw", raw,
		)
	}

	entry, err := s.ledger.Add(ctx, tc.Topic, eval.Score, eval.Comment)
	if err != nil {
		return Evaluation{}, fmt.Errorf("recording score for %q: %w", tc.Topic, err)
	}
	if err := s.states.SetStatus(ctx, tc.Topic, progress.Completed); err != nil {
		// The attempt stays pending only if its score is gone again.
		if _, derr := s.ledger.DeleteByID(ctx, entry.ID); derr != nil {
			slog.Error("rolling back score failed", "topic", tc.Topic, "score_id", entry.ID, "error", derr)
			tc.Phase = PhaseEvaluated
			tc.Evaluation = &eval
		}
		return Evaluation{}, fmt.Errorf("completing %q: %w", tc.Topic, err)
	}
	s.planner.Invalidate(ctx)

	if tc.record != nil {
		rec, err := s.scratch.RecordEvaluation(*tc.record, raw)
		if err != nil {
			slog.Warn("writing evaluation to transcript failed", "transcript", tc.Transcript, "error", err)
		} else {
			tc.record = &rec
		}
	}

	tc.Phase = PhaseEvaluated
	tc.Evaluation = &eval
	s.record("Risposta al test: "+answer, raw)
	slog.Info("test evaluated", "topic", tc.Topic, "score", eval.Score, "parsed", eval.Parsed)
	return eval, nil
}

// CloseTest discards the current test attempt. The topic keeps the status
// it was given when the test started.
func (s *Session) CloseTest() {
	if s.test == nil {
		return
	}
	s.test.Phase = PhaseClosed
	slog.Info("test closed", "topic", s.test.Topic)
	s.test = nil
}

// Chat sends free text to the generator and returns its reply.
func (s *Session) Chat(ctx context.Context, text string) string {
	reply := s.generate(ctx, chatRequest(text))
	s.record(text, reply)
	return reply
}

// Prefetch generates study explanations for topics concurrently and stores
// the successful ones for later Study calls. With no topics, today's planned
// topics are used. The returned contents follow the order of topics.
func (s *Session) Prefetch(ctx context.Context, topics []string) []string {
	if len(topics) == 0 {
		for _, ts := range s.Today(ctx).Topics {
			if ts.Topic != planner.DeepReview {
				topics = append(topics, ts.Topic)
			}
		}
	}

	out := make([]string, len(topics))
	var (
		reqs []ai.GenerateRequest
		idx  []int
	)
	for i, topic := range topics {
		if content, ok := s.studyMemo[topic]; ok {
			out[i] = content
			continue
		}
		reqs = append(reqs, studyRequest(topic))
		idx = append(idx, i)
	}

	results := ai.GenerateAll(ctx, s.generator, reqs, s.fanOut)
	for j, res := range results {
		i := idx[j]
		content := ai.Content(res.Text, res.Err)
		out[i] = content
		if res.Err == nil {
			s.studyMemo[topics[i]] = content
		}
	}

	slog.Info("study content prefetched", "topics", len(topics), "generated", len(reqs))
	return out
}

// DeleteScore removes the score recorded for topic at timestamp and, when
// transcript is not empty, the matching test transcript.
func (s *Session) DeleteScore(ctx context.Context, topic string, timestamp time.Time, transcript string) (bool, error) {
	ok, err := s.ledger.Delete(ctx, topic, timestamp)
	if err != nil {
		return false, fmt.Errorf("deleting score for %q: %w", topic, err)
	}
	if err := s.deleteTranscript(transcript); err != nil {
		return ok, err
	}
	return ok, nil
}

// DeleteScoreByID removes the score with the given id.
func (s *Session) DeleteScoreByID(ctx context.Context, id int64, transcript string) (bool, error) {
	ok, err := s.ledger.DeleteByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deleting score %d: %w", id, err)
	}
	if err := s.deleteTranscript(transcript); err != nil {
		return ok, err
	}
	return ok, nil
}

// DeleteTranscript removes a stored test transcript.
func (s *Session) DeleteTranscript(name string) error {
	return s.deleteTranscript(name)
}

func (s *Session) deleteTranscript(name string) error {
	if name == "" || s.scratch == nil {
		return nil
	}
	if s.test != nil && s.test.Transcript == name {
		s.test.record = nil
	}
	if err := s.scratch.Delete(name); err != nil {
		return fmt.Errorf("deleting transcript %q: %w", name, err)
	}
	return nil
}

// SetStatus sets the status of topic directly.
func (s *Session) SetStatus(ctx context.Context, topic string, st progress.Status) error {
	if strings.TrimSpace(topic) == "" {
		return ErrUnknownTopic
	}
	if err := s.states.SetStatus(ctx, topic, st); err != nil {
		return err
	}
	s.planner.Invalidate(ctx)
	return nil
}

// generate calls the generator and folds failures into error-shaped content.
func (s *Session) generate(ctx context.Context, req ai.GenerateRequest) string {
	text, err := s.generator.Generate(ctx, req)
	if err != nil {
		slog.Warn("text generation failed", "task", req.Task.String(), "error", err)
	}
	return ai.Content(text, err)
}
