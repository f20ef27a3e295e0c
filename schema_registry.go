package askql

import (
	"sort"
	"strings"
	"sync"
)

// TableEntry describes one logical table visible to the planner: its
// stable logical name, the physical storage location, and its column set.
type TableEntry struct {
	LogicalName  string   `json:"logical_name"`
	PhysicalName string   `json:"physical_name"`
	Columns      []string `json:"columns"`
	Description  string   `json:"description,omitempty"`
}

// HasColumn reports whether name is a member of the entry's column set.
func (t *TableEntry) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// SchemaRegistry provides logical table lookup operations. It is populated
// by the ingestion subsystem and read on every planning request.
type SchemaRegistry interface {
	// Register creates or overwrites the entry for a logical name
	// (last-writer-wins, process-wide).
	Register(logicalName, physicalName string, columns []string, description string)
	// Resolve returns the physical name for a logical name.
	Resolve(logicalName string) (string, error)
	// Get returns the full entry for a logical name.
	Get(logicalName string) (*TableEntry, error)
	// ListAll returns every registered entry, ordered by logical name.
	ListAll() []TableEntry
}

// MemoryRegistry is an in-process SchemaRegistry backed by a mutex-guarded
// map. Entries persist for the process lifetime; there is no removal.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]TableEntry
}

// NewMemoryRegistry creates an empty in-memory schema registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]TableEntry),
	}
}

// Register creates or overwrites the entry for logicalName. Duplicate
// column names are dropped so the column set stays unique.
func (r *MemoryRegistry) Register(logicalName, physicalName string, columns []string, description string) {
	seen := make(map[string]struct{}, len(columns))
	unique := make([]string, 0, len(columns))
	for _, col := range columns {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		unique = append(unique, col)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[logicalName] = TableEntry{
		LogicalName:  logicalName,
		PhysicalName: physicalName,
		Columns:      unique,
		Description:  description,
	}
}

// Resolve returns the physical name for logicalName.
func (r *MemoryRegistry) Resolve(logicalName string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[logicalName]
	if !ok {
		return "", NewUnplannableError(ErrCodeUnknownTable, "logical table is not registered").WithTable(logicalName)
	}
	return entry.PhysicalName, nil
}

// Get returns a copy of the entry for logicalName so callers never hold a
// live reference into the registry.
func (r *MemoryRegistry) Get(logicalName string) (*TableEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[logicalName]
	if !ok {
		return nil, NewUnplannableError(ErrCodeUnknownTable, "logical table is not registered").WithTable(logicalName)
	}

	out := entry
	out.Columns = append([]string(nil), entry.Columns...)
	return &out, nil
}

// ListAll returns copies of every registered entry, ordered by logical name
// for deterministic schema-context construction.
func (r *MemoryRegistry) ListAll() []TableEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TableEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entry.Columns = append([]string(nil), entry.Columns...)
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalName < out[j].LogicalName })
	return out
}
