// Package progress owns the learner's persistent study state: one mastery
// status per topic and the append-only history of test scores.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/p-n-ai/pai-studio/internal/platform/tables"
)

// Column names of the state table.
const (
	ColumnTopic  = "Argomento"
	ColumnStatus = "Stato"
)

// TopicState is one row of the state table.
type TopicState struct {
	Topic  string `json:"topic"`
	Status Status `json:"status"`
}

// Summary counts topics per status.
type Summary struct {
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	NeedsReview int     `json:"needs_review"`
	NotStarted  int     `json:"not_started"`
	Percent     float64 `json:"percent"`
}

// StateStore holds the status of every known topic and persists it on each
// change. In-memory state is replaced only after the write succeeds.
type StateStore struct {
	store    tables.Store
	table    string
	notifier Notifier

	order  []string
	status map[string]Status
}

// NewStateStore creates a state store backed by the named table.
func NewStateStore(store tables.Store, table string, notifier Notifier) *StateStore {
	return &StateStore{
		store:    store,
		table:    table,
		notifier: notifierOrNop(notifier),
		status:   map[string]Status{},
	}
}

// LoadOrInit loads the persisted states and reconciles them with topics.
// Topics missing from the table are appended as NotStarted and the merged
// table is saved; persisted topics absent from the catalog are kept.
func (s *StateStore) LoadOrInit(ctx context.Context, topics []string) (map[string]Status, error) {
	t, ok, err := s.store.Load(ctx, s.table)
	if err != nil {
		return nil, err
	}

	var (
		order  []string
		status = map[string]Status{}
	)
	if ok {
		order, status, err = decodeStates(s.table, t)
		if err != nil {
			return nil, err
		}
	}

	added := 0
	for _, topic := range topics {
		if _, known := status[topic]; known {
			continue
		}
		order = append(order, topic)
		status[topic] = NotStarted
		added++
	}

	if !ok || added > 0 {
		if err := s.store.Save(ctx, s.table, encodeStates(order, status)); err != nil {
			return nil, err
		}
		slog.Info("topic states initialised", "table", s.table, "added", added, "total", len(order))
	}

	s.order, s.status = order, status
	return s.Snapshot(), nil
}

// SetStatus upserts the status of topic and persists the table.
func (s *StateStore) SetStatus(ctx context.Context, topic string, st Status) error {
	if !st.Valid() {
		return fmt.Errorf("set status of %q: invalid status %d", topic, int(st))
	}

	order := s.order
	if _, known := s.status[topic]; !known {
		order = append(append([]string(nil), s.order...), topic)
	}
	status := make(map[string]Status, len(s.status)+1)
	for k, v := range s.status {
		status[k] = v
	}
	status[topic] = st

	if err := s.store.Save(ctx, s.table, encodeStates(order, status)); err != nil {
		return err
	}
	s.order, s.status = order, status

	s.notifier.Notify(ctx, Event{
		Kind:    EventStatusChanged,
		Topic:   topic,
		Status:  st.String(),
		Message: fmt.Sprintf("✅ Stato aggiornato: %s → %s", topic, st),
		At:      time.Now(),
	})
	return nil
}

// Status returns the status of topic. Unknown topics are NotStarted.
func (s *StateStore) Status(topic string) Status {
	return s.status[topic]
}

// Snapshot returns a copy of the topic → status map.
func (s *StateStore) Snapshot() map[string]Status {
	out := make(map[string]Status, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

// Records returns the states in table order.
func (s *StateStore) Records() []TopicState {
	out := make([]TopicState, len(s.order))
	for i, topic := range s.order {
		out[i] = TopicState{Topic: topic, Status: s.status[topic]}
	}
	return out
}

// Remaining returns the topics that are not completed, in table order.
func (s *StateStore) Remaining() []string {
	var out []string
	for _, topic := range s.order {
		if s.status[topic] != Completed {
			out = append(out, topic)
		}
	}
	return out
}

// Summary counts topics per status.
func (s *StateStore) Summary() Summary {
	sum := Summary{Total: len(s.order)}
	for _, topic := range s.order {
		switch s.status[topic] {
		case Completed:
			sum.Completed++
		case NeedsReview:
			sum.NeedsReview++
		default:
			sum.NotStarted++
		}
	}
	if sum.Total > 0 {
		sum.Percent = math.Round(float64(sum.Completed)/float64(sum.Total)*1000) / 10
	}
	return sum
}

func encodeStates(order []string, status map[string]Status) tables.Table {
	t := tables.Table{
		Header: []string{ColumnTopic, ColumnStatus},
		Rows:   make([][]string, 0, len(order)),
	}
	for _, topic := range order {
		t.Rows = append(t.Rows, []string{topic, status[topic].String()})
	}
	return t
}

func decodeStates(name string, t tables.Table) ([]string, map[string]Status, error) {
	ti, si := t.Column(ColumnTopic), t.Column(ColumnStatus)
	if ti < 0 || si < 0 {
		return nil, nil, &tables.StorageError{
			Op:    "load",
			Table: name,
			Err:   fmt.Errorf("want columns %s, %s; got %v", ColumnTopic, ColumnStatus, t.Header),
		}
	}

	var order []string
	status := map[string]Status{}
	for _, row := range t.Rows {
		topic, raw := cell(row, ti), cell(row, si)
		if topic == "" {
			continue
		}
		if _, dup := status[topic]; dup {
			slog.Warn("duplicate topic in state table", "table", name, "topic", topic)
			continue
		}
		st, err := ParseStatus(raw)
		if err != nil {
			slog.Warn("unknown status, treating as not started", "table", name, "topic", topic, "status", raw)
		}
		order = append(order, topic)
		status[topic] = st
	}
	return order, status, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
