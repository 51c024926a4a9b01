package progress_test

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-studio/internal/platform/tables"
	"github.com/p-n-ai/pai-studio/internal/progress"
)

const stateTable = "stato_argomenti"

func TestStateStore_LoadOrInit_Fresh(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := tables.NewCSVStore(dir)

	states := progress.NewStateStore(store, stateTable, nil)
	got, err := states.LoadOrInit(ctx, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("LoadOrInit() error = %v", err)
	}
	want := map[string]progress.Status{"A": progress.NotStarted, "B": progress.NotStarted, "C": progress.NotStarted}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadOrInit() = %v, want %v", got, want)
	}

	data, err := os.ReadFile(store.Path(stateTable))
	if err != nil {
		t.Fatalf("state file not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "Argomento,Stato\nA,non iniziato\n") {
		t.Errorf("state file = %q", data)
	}

	reloaded, err := progress.NewStateStore(store, stateTable, nil).LoadOrInit(ctx, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if !reflect.DeepEqual(reloaded, want) {
		t.Errorf("reload = %v, want %v", reloaded, want)
	}
}

func TestStateStore_LoadOrInit_Reconciles(t *testing.T) {
	ctx := context.Background()
	mem := tables.NewMemoryStore()
	if err := mem.Save(ctx, stateTable, tables.Table{
		Header: []string{"Argomento", "Stato"},
		Rows: [][]string{
			{"Old", "completato"},
			{"A", "da ripassare"},
			{"A", "completato"},
			{"Weird", "finito"},
		},
	}); err != nil {
		t.Fatal(err)
	}

	states := progress.NewStateStore(mem, stateTable, nil)
	got, err := states.LoadOrInit(ctx, []string{"A", "B"})
	if err != nil {
		t.Fatalf("LoadOrInit() error = %v", err)
	}

	want := map[string]progress.Status{
		"Old":   progress.Completed,
		"A":     progress.NeedsReview,
		"Weird": progress.NotStarted,
		"B":     progress.NotStarted,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadOrInit() = %v, want %v", got, want)
	}

	var order []string
	for _, r := range states.Records() {
		order = append(order, r.Topic)
	}
	if !reflect.DeepEqual(order, []string{"Old", "A", "Weird", "B"}) {
		t.Errorf("Records() order = %v", order)
	}

	saved, _, _ := mem.Load(ctx, stateTable)
	if len(saved.Rows) != 4 || saved.Rows[3][0] != "B" {
		t.Errorf("merged table not persisted: %v", saved.Rows)
	}
}

func TestStateStore_LoadOrInit_NoNewTopicsSkipsSave(t *testing.T) {
	ctx := context.Background()
	mem := tables.NewMemoryStore()
	states := progress.NewStateStore(mem, stateTable, nil)
	if _, err := states.LoadOrInit(ctx, []string{"A"}); err != nil {
		t.Fatal(err)
	}
	saves := mem.Saves

	if _, err := progress.NewStateStore(mem, stateTable, nil).LoadOrInit(ctx, []string{"A"}); err != nil {
		t.Fatal(err)
	}
	if mem.Saves != saves {
		t.Errorf("Saves = %d, want %d", mem.Saves, saves)
	}
}

func TestStateStore_LoadOrInit_MissingColumns(t *testing.T) {
	ctx := context.Background()
	mem := tables.NewMemoryStore()
	_ = mem.Save(ctx, stateTable, tables.Table{Header: []string{"Topic"}, Rows: [][]string{{"A"}}})

	_, err := progress.NewStateStore(mem, stateTable, nil).LoadOrInit(ctx, []string{"A"})
	var serr *tables.StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("LoadOrInit() error = %v, want *tables.StorageError", err)
	}
}

func TestStateStore_SetStatus(t *testing.T) {
	ctx := context.Background()
	notifier := progress.NewMemoryNotifier()
	mem := tables.NewMemoryStore()
	states := progress.NewStateStore(mem, stateTable, notifier)
	if _, err := states.LoadOrInit(ctx, []string{"A", "B"}); err != nil {
		t.Fatal(err)
	}

	if err := states.SetStatus(ctx, "A", progress.Completed); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := states.SetStatus(ctx, "Z", progress.NeedsReview); err != nil {
		t.Fatalf("SetStatus(unknown) error = %v", err)
	}

	if states.Status("A") != progress.Completed {
		t.Errorf("Status(A) = %v", states.Status("A"))
	}
	if states.Status("missing") != progress.NotStarted {
		t.Errorf("Status(missing) = %v, want NotStarted", states.Status("missing"))
	}
	if got := states.Remaining(); !reflect.DeepEqual(got, []string{"B", "Z"}) {
		t.Errorf("Remaining() = %v", got)
	}

	sum := states.Summary()
	want := progress.Summary{Total: 3, Completed: 1, NeedsReview: 1, NotStarted: 1, Percent: 33.3}
	if sum != want {
		t.Errorf("Summary() = %+v, want %+v", sum, want)
	}

	events := notifier.Events()
	if len(events) != 2 || events[0].Kind != progress.EventStatusChanged || events[0].Status != "completato" {
		t.Errorf("events = %+v", events)
	}
	if events[0].Message != "✅ Stato aggiornato: A → completato" {
		t.Errorf("message = %q", events[0].Message)
	}

	reloaded, err := progress.NewStateStore(mem, stateTable, nil).LoadOrInit(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded["A"] != progress.Completed || reloaded["Z"] != progress.NeedsReview {
		t.Errorf("reloaded = %v", reloaded)
	}
}

func TestStateStore_SetStatus_FailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	notifier := progress.NewMemoryNotifier()
	mem := tables.NewMemoryStore()
	states := progress.NewStateStore(mem, stateTable, notifier)
	if _, err := states.LoadOrInit(ctx, []string{"A"}); err != nil {
		t.Fatal(err)
	}

	mem.Err = errors.New("disk full")
	err := states.SetStatus(ctx, "A", progress.Completed)

	var serr *tables.StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("SetStatus() error = %v, want *tables.StorageError", err)
	}
	if states.Status("A") != progress.NotStarted {
		t.Errorf("Status(A) = %v, want unchanged NotStarted", states.Status("A"))
	}
	if err := states.SetStatus(ctx, "new", progress.Completed); err == nil {
		t.Fatal("SetStatus() should fail")
	}
	if len(states.Records()) != 1 {
		t.Errorf("Records() = %v, want only A", states.Records())
	}
	if len(notifier.Events()) != 0 {
		t.Errorf("events emitted on failure: %v", notifier.Events())
	}
}

func TestStateStore_SetStatus_Invalid(t *testing.T) {
	states := progress.NewStateStore(tables.NewMemoryStore(), stateTable, nil)
	if err := states.SetStatus(context.Background(), "A", progress.Status(7)); err == nil {
		t.Fatal("SetStatus() should reject invalid status")
	}
}
