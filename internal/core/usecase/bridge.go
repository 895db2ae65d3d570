package usecase

import (
	"sync"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// OptimisticResourceBridge translates upload lifecycle events into
// insert/replace/evict instructions against the externally-owned resource
// list. Every optimistic write carries the item's TempResourceID as its
// correlation id; resolution either replaces or evicts by that id. The
// bridge enforces at-most-one visible row per upload item.
type OptimisticResourceBridge struct {
	list ports.ResourceList

	mu      sync.Mutex
	visible map[string]bool
}

func NewOptimisticResourceBridge(list ports.ResourceList) *OptimisticResourceBridge {
	return &OptimisticResourceBridge{
		list:    list,
		visible: make(map[string]bool),
	}
}

// OnOptimisticInsert surfaces a provisional row before the network call
// starts. A second insert for the same temp id is a no-op.
func (b *OptimisticResourceBridge) OnOptimisticInsert(row domain.ResourceRow) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.visible[row.TempID] {
		return
	}
	if row.Status == "" {
		row.Status = domain.RowUploading
	}
	b.list.Insert(row)
	b.visible[row.TempID] = true
}

// OnReplace swaps the optimistic row for the server-confirmed record. The
// row is located by its temp id and replaced in place, never appended a
// second time. Returns false when no row is visible for tempID.
func (b *OptimisticResourceBridge) OnReplace(tempID string, res domain.Resource) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.visible[tempID] {
		return false
	}
	return b.list.Replace(tempID, res)
}

// OnRollback evicts the optimistic row after a failed upload so no ghost
// "uploading forever" entry survives.
func (b *OptimisticResourceBridge) OnRollback(tempID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.visible[tempID] {
		return
	}
	b.list.Remove(tempID)
	delete(b.visible, tempID)
}
