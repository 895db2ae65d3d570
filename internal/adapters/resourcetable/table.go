package resourcetable

import (
	"sync"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// Table is an in-process implementation of the externally-owned resource
// list: an ordered row set keyed by the optimistic correlation id. UIs that
// own their list natively implement ports.ResourceList themselves.
type Table struct {
	mu   sync.Mutex
	rows []domain.ResourceRow
}

func New() *Table {
	return &Table{}
}

func (t *Table) Insert(row domain.ResourceRow) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, row)
}

func (t *Table) Replace(tempID string, res domain.Resource) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].TempID == tempID {
			t.rows[i].Resource = res
			t.rows[i].Name = res.Title
			t.rows[i].Status = domain.RowReady
			return true
		}
	}
	return false
}

func (t *Table) Remove(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].TempID == tempID {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return true
		}
	}
	return false
}

// Rows returns a snapshot in display order.
func (t *Table) Rows() []domain.ResourceRow {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ResourceRow, len(t.rows))
	copy(out, t.rows)
	return out
}
