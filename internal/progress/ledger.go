package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/pai-studio/internal/platform/tables"
)

// TimestampLayout is the persisted form of ScoreEntry.Timestamp, in local time.
const TimestampLayout = "2006-01-02 15:04:05"

// Column names of the score table.
const (
	ColumnScore     = "Punteggio"
	ColumnTimestamp = "Data"
	ColumnComment   = "Commento"
)

// ErrScoreOutOfRange is returned by Add for scores outside [0, 100].
var ErrScoreOutOfRange = errors.New("score out of range [0, 100]")

// ScoreEntry is one recorded test result. ID is assigned when the entry is
// loaded or appended and is not persisted.
type ScoreEntry struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
	Comment   string    `json:"comment"`
}

// Key returns the persisted timestamp, which together with Topic identifies
// the entry on disk.
func (e ScoreEntry) Key() string {
	return e.Timestamp.Format(TimestampLayout)
}

// Stats summarises the ledger.
type Stats struct {
	Count  int         `json:"count"`
	Mean   float64     `json:"mean"`
	Latest *ScoreEntry `json:"latest,omitempty"`
	Trend  int         `json:"trend"`
}

// ScoreLedger is the append-only history of test scores.
type ScoreLedger struct {
	store    tables.Store
	table    string
	notifier Notifier

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	entries []ScoreEntry
	nextID  int64
}

// NewScoreLedger creates a ledger backed by the named table.
func NewScoreLedger(store tables.Store, table string, notifier Notifier) *ScoreLedger {
	return &ScoreLedger{
		store:    store,
		table:    table,
		notifier: notifierOrNop(notifier),
		Now:      time.Now,
	}
}

// LoadOrInit loads the persisted ledger, creating an empty table when none
// exists. Rows that cannot be parsed are skipped.
func (l *ScoreLedger) LoadOrInit(ctx context.Context) ([]ScoreEntry, error) {
	t, ok, err := l.store.Load(ctx, l.table)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := l.store.Save(ctx, l.table, encodeEntries(nil)); err != nil {
			return nil, err
		}
		l.entries = nil
		return nil, nil
	}

	raw, err := decodeEntries(l.table, t)
	if err != nil {
		return nil, err
	}
	entries := make([]ScoreEntry, len(raw))
	for i, e := range raw {
		l.nextID++
		e.ID = l.nextID
		entries[i] = e
	}
	l.entries = entries
	return l.Entries(), nil
}

// Add appends a score stamped with the current time and persists the ledger.
func (l *ScoreLedger) Add(ctx context.Context, topic string, score int, comment string) (ScoreEntry, error) {
	if score < 0 || score > 100 {
		return ScoreEntry{}, fmt.Errorf("add score %d for %q: %w", score, topic, ErrScoreOutOfRange)
	}

	entry := ScoreEntry{
		ID:        l.nextID + 1,
		Topic:     topic,
		Score:     score,
		Timestamp: l.Now().Truncate(time.Second),
		Comment:   comment,
	}
	next := append(append(make([]ScoreEntry, 0, len(l.entries)+1), l.entries...), entry)
	if err := l.store.Save(ctx, l.table, encodeEntries(next)); err != nil {
		return ScoreEntry{}, err
	}
	l.entries = next
	l.nextID++

	s := score
	l.notifier.Notify(ctx, Event{
		Kind:    EventScoreAdded,
		Topic:   topic,
		Score:   &s,
		Message: fmt.Sprintf("✅ Punteggio salvato: %s → %d/100", topic, score),
		At:      entry.Timestamp,
	})
	return entry, nil
}

// Delete removes the earliest-appended entry matching topic and timestamp
// (compared at second precision) and persists the ledger. It reports whether
// an entry was removed.
func (l *ScoreLedger) Delete(ctx context.Context, topic string, timestamp time.Time) (bool, error) {
	key := timestamp.Format(TimestampLayout)
	return l.deleteWhere(ctx, func(e ScoreEntry) bool {
		return e.Topic == topic && e.Key() == key
	})
}

// DeleteByID removes the entry with the given in-process ID.
func (l *ScoreLedger) DeleteByID(ctx context.Context, id int64) (bool, error) {
	return l.deleteWhere(ctx, func(e ScoreEntry) bool { return e.ID == id })
}

func (l *ScoreLedger) deleteWhere(ctx context.Context, match func(ScoreEntry) bool) (bool, error) {
	idx := -1
	for i, e := range l.entries {
		if match(e) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	removed := l.entries[idx]
	next := make([]ScoreEntry, 0, len(l.entries)-1)
	next = append(next, l.entries[:idx]...)
	next = append(next, l.entries[idx+1:]...)
	if err := l.store.Save(ctx, l.table, encodeEntries(next)); err != nil {
		return false, err
	}
	l.entries = next

	l.notifier.Notify(ctx, Event{
		Kind:    EventScoreDeleted,
		Topic:   removed.Topic,
		Message: "✅ Test eliminato con successo",
		At:      l.Now(),
	})
	return true, nil
}

// Find returns the entry with the given in-process ID.
func (l *ScoreLedger) Find(id int64) (ScoreEntry, bool) {
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return ScoreEntry{}, false
}

// Entries returns all entries in append order.
func (l *ScoreLedger) Entries() []ScoreEntry {
	return append([]ScoreEntry(nil), l.entries...)
}

// History returns all entries newest first. Entries with equal timestamps
// keep the later-appended one first.
func (l *ScoreLedger) History() []ScoreEntry {
	out := make([]ScoreEntry, len(l.entries))
	for i, e := range l.entries {
		out[len(out)-1-i] = e
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// ForTopic returns the entries for topic in append order.
func (l *ScoreLedger) ForTopic(topic string) []ScoreEntry {
	var out []ScoreEntry
	for _, e := range l.entries {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// Stats computes the mean score, the latest entry and the trend between the
// earliest and latest entries.
func (l *ScoreLedger) Stats() Stats {
	st := Stats{Count: len(l.entries)}
	if st.Count == 0 {
		return st
	}

	sum := 0
	latest, earliest := 0, 0
	for i, e := range l.entries {
		sum += e.Score
		if !e.Timestamp.Before(l.entries[latest].Timestamp) {
			latest = i
		}
		if e.Timestamp.Before(l.entries[earliest].Timestamp) {
			earliest = i
		}
	}
	st.Mean = float64(sum) / float64(st.Count)

	le := l.entries[latest]
	st.Latest = &le
	if st.Count >= 2 {
		st.Trend = le.Score - l.entries[earliest].Score
	}
	return st
}

func encodeEntries(entries []ScoreEntry) tables.Table {
	t := tables.Table{
		Header: []string{ColumnTopic, ColumnScore, ColumnTimestamp, ColumnComment},
		Rows:   make([][]string, 0, len(entries)),
	}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{e.Topic, strconv.Itoa(e.Score), e.Key(), e.Comment})
	}
	return t
}

func decodeEntries(name string, t tables.Table) ([]ScoreEntry, error) {
	ti, si, di, ci := t.Column(ColumnTopic), t.Column(ColumnScore), t.Column(ColumnTimestamp), t.Column(ColumnComment)
	if ti < 0 || si < 0 || di < 0 {
		return nil, &tables.StorageError{
			Op:    "load",
			Table: name,
			Err:   fmt.Errorf("want columns %s, %s, %s; got %v", ColumnTopic, ColumnScore, ColumnTimestamp, t.Header),
		}
	}

	var out []ScoreEntry
	for i, row := range t.Rows {
		score, err := parseScore(cell(row, si))
		if err != nil {
			slog.Warn("skipping score row", "table", name, "row", i+1, "error", err)
			continue
		}
		ts, err := time.ParseInLocation(TimestampLayout, cell(row, di), time.Local)
		if err != nil {
			slog.Warn("skipping score row", "table", name, "row", i+1, "error", err)
			continue
		}
		comment := ""
		if ci >= 0 {
			comment = cell(row, ci)
		}
		out = append(out, ScoreEntry{
			Topic:     cell(row, ti),
			Score:     score,
			Timestamp: ts,
			Comment:   comment,
		})
	}
	return out, nil
}

// parseScore accepts integers and the "87.0" form written by dataframe tools.
func parseScore(v string) (int, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q", v)
	}
	return int(math.Round(f)), nil
}
