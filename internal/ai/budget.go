package ai

import (
	"fmt"
	"sync"
)

// BudgetChecker checks and records token usage per task type.
type BudgetChecker interface {
	// Check returns true if there is budget left for task.
	Check(task TaskType) (bool, error)
	// Record records token usage for task.
	Record(task TaskType, tokens int) error
	// Usage returns tokens used and the limit for task.
	Usage(task TaskType) (used int64, budget int64, err error)
}

// InMemoryBudget tracks usage for the lifetime of the process. A limit of
// zero means unlimited.
type InMemoryBudget struct {
	mu      sync.RWMutex
	total   int64
	used    int64
	budgets map[TaskType]int64 // task -> budget limit
	usage   map[TaskType]int64 // task -> tokens used
}

// NewInMemoryBudget creates a tracker with an overall limit of total tokens.
func NewInMemoryBudget(total int64) *InMemoryBudget {
	return &InMemoryBudget{
		total:   total,
		budgets: make(map[TaskType]int64),
		usage:   make(map[TaskType]int64),
	}
}

// SetBudget sets the token budget for one task type.
func (b *InMemoryBudget) SetBudget(task TaskType, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[task] = tokens
}

func (b *InMemoryBudget) Check(task TaskType) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.total > 0 && b.used >= b.total {
		return false, nil
	}
	budget, hasBudget := b.budgets[task]
	if !hasBudget || budget == 0 {
		return true, nil
	}
	return b.usage[task] < budget, nil
}

func (b *InMemoryBudget) Record(task TaskType, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.usage[task] += int64(tokens)
	b.used += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(task TaskType) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[task], b.budgets[task], nil
}

// Total returns overall tokens used and the overall limit.
func (b *InMemoryBudget) Total() (used, limit int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.used, b.total
}
