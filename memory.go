package panelkit

import (
	"sync"
)

// Releasable represents any resource that can be released to free memory.
//
// Tables, columns, and group indexes are backed by Apache Arrow buffers and
// implement this interface. Always call Release() when done with a resource
// to prevent memory leaks.
//
// The recommended pattern is to use defer for automatic cleanup:
//
//	tbl, err := panelkit.NewTable(entity, price)
//	if err != nil {
//		return err
//	}
//	defer tbl.Release()
type Releasable interface {
	Release()
}

// MemoryManager tracks resources and releases them in bulk.
//
// It is useful when many short-lived tables are created in loops or across
// operations with unpredictable lifetimes, where individual defer statements
// are impractical. For most use cases, prefer the defer pattern with
// individual Release() calls for better readability.
//
// The MemoryManager is safe for concurrent use from multiple goroutines.
//
// Example:
//
//	err := panelkit.WithMemoryManager(func(manager *panelkit.MemoryManager) error {
//		for _, window := range windows {
//			slice, err := tbl.Slice(window.start, window.end)
//			if err != nil {
//				return err
//			}
//			manager.Track(slice)
//		}
//		return processWindows()
//	})
//	// All tracked resources are released here.
type MemoryManager struct {
	resources []Releasable
	mu        sync.Mutex
}

// NewMemoryManager creates an empty memory manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{resources: make([]Releasable, 0)}
}

// Track adds a resource to be released by ReleaseAll. Nil resources are
// ignored.
func (m *MemoryManager) Track(resource Releasable) {
	if resource != nil {
		m.mu.Lock()
		m.resources = append(m.resources, resource)
		m.mu.Unlock()
	}
}

// Count returns the number of tracked resources.
func (m *MemoryManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources)
}

// ReleaseAll releases all tracked resources and clears the tracking list.
func (m *MemoryManager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, resource := range m.resources {
		if resource != nil {
			resource.Release()
		}
	}
	m.resources = m.resources[:0]
}

// WithTable builds a table, runs fn against it, and releases the table when
// fn returns. A factory error short-circuits without invoking fn.
//
// Example:
//
//	err := panelkit.WithTable(func() (*panelkit.Table, error) {
//		return panelkit.NewTable(
//			panelkit.NewColumn("entity", []string{"acme", "bolt"}),
//			panelkit.NewColumn("price", []float64{101.5, 88.0}),
//		)
//	}, func(tbl *panelkit.Table) error {
//		summary, err := tbl.Select("entity")
//		if err != nil {
//			return err
//		}
//		defer summary.Release()
//		return nil
//	})
func WithTable(factory func() (*Table, error), fn func(*Table) error) error {
	tbl, err := factory()
	if err != nil {
		return err
	}
	defer tbl.Release()
	return fn(tbl)
}

// WithMemoryManager runs fn with a fresh manager and releases every tracked
// resource when fn returns.
func WithMemoryManager(fn func(*MemoryManager) error) error {
	manager := NewMemoryManager()
	defer manager.ReleaseAll()
	return fn(manager)
}
