package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const troubleReply = "Si è verificato un problema tecnico. Riprova tra poco."

const helpText = `Comandi disponibili:
/today - argomenti di oggi
/progress - avanzamento
/study <argomento> - spiegazione di un argomento
/test <argomento> - domanda d'esame su un argomento
/close - chiude il test in corso

Quando c'è una domanda in sospeso, il testo inviato è la risposta al test.`

// HandleMessage serves the text command surface of chat channels. Commands
// start with "/"; other text answers the pending test question or, without
// one, is sent to the free chat.
func (s *Session) HandleMessage(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	if strings.HasPrefix(text, "/") {
		return s.handleCommand(ctx, text)
	}

	if s.test != nil && s.test.Phase == PhaseQuestion {
		eval, err := s.SubmitAnswer(ctx, text)
		if err != nil {
			slog.Error("failed to submit answer", "error", err)
			return troubleReply, nil
		}
		return fmt.Sprintf("Punteggio: %d/100\n\n%s", eval.Score, eval.Comment), nil
	}

	return s.Chat(ctx, text), nil
}

func (s *Session) handleCommand(ctx context.Context, text string) (string, error) {
	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "/help", "/start":
		return helpText, nil
	case "/today":
		return s.formatToday(ctx), nil
	case "/progress":
		return s.formatProgress(), nil
	case "/study":
		topic, ok := s.resolveTopic(arg)
		if !ok {
			return topicNotFound(arg), nil
		}
		content, err := s.Study(ctx, topic)
		if err != nil {
			slog.Error("failed to study topic", "topic", topic, "error", err)
			return troubleReply, nil
		}
		return content, nil
	case "/test":
		topic, ok := s.resolveTopic(arg)
		if !ok {
			return topicNotFound(arg), nil
		}
		tc, err := s.StartTest(ctx, topic)
		if err != nil {
			slog.Error("failed to start test", "topic", topic, "error", err)
			return troubleReply, nil
		}
		return fmt.Sprintf("Domanda su %s:\n\n%s", tc.Topic, tc.Question), nil
	case "/close":
		if _, ok := s.ActiveTest(); !ok {
			return "Nessun test in corso.", nil
		}
		s.CloseTest()
		return "Test chiuso.", nil
	default:
		return fmt.Sprintf("Comando sconosciuto: %s\nUsa /help per la lista dei comandi.", cmd), nil
	}
}

// resolveTopic matches name against the catalog ignoring case.
func (s *Session) resolveTopic(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, topic := range s.catalog.Names() {
		if strings.EqualFold(topic, name) {
			return topic, true
		}
	}
	return "", false
}

func topicNotFound(name string) string {
	if name == "" {
		return "Indica un argomento, ad esempio /study Present Perfect"
	}
	return fmt.Sprintf("Argomento non trovato: %s", name)
}

func (s *Session) formatToday(ctx context.Context) string {
	view := s.Today(ctx)
	if !view.Scheduled {
		return view.Message
	}

	var b strings.Builder
	title := "Argomenti di oggi"
	if view.Review {
		title = "Ripasso di oggi"
	}
	fmt.Fprintf(&b, "%s (%s, %d giorni all'esame):\n", title, view.Date.Format("02/01/2006"), view.DaysLeft)
	for _, ts := range view.Topics {
		fmt.Fprintf(&b, "- %s %s\n", ts.Label, ts.Topic)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Session) formatProgress() string {
	sum := s.Progress()
	stats := s.Stats()
	msg := fmt.Sprintf("Avanzamento: %.1f%% (%d/%d completati, %d da ripassare, %d non iniziati)",
		sum.Percent, sum.Completed, sum.Total, sum.NeedsReview, sum.NotStarted)
	if stats.Count > 0 {
		msg += fmt.Sprintf("\nTest svolti: %d, media %.1f, tendenza %+d", stats.Count, stats.Mean, stats.Trend)
	}
	return msg
}
