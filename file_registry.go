package askql

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileRegistry is a SchemaRegistry backed by a JSON file on disk. Entries
// registered while the process runs are written back to the file, so table
// definitions survive restarts. The file holds an array of TableEntry
// objects; a missing file is treated as an empty registry.
type FileRegistry struct {
	mu     sync.Mutex
	path   string
	memory *MemoryRegistry
}

// NewFileRegistry loads the registry file at path. The file is created on
// the first Register call if it does not exist yet.
func NewFileRegistry(path string) (*FileRegistry, error) {
	r := &FileRegistry{
		path:   path,
		memory: NewMemoryRegistry(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read registry file %s: %w", path, err)
	}

	var entries []TableEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", path, err)
	}
	for _, entry := range entries {
		r.memory.Register(entry.LogicalName, entry.PhysicalName, entry.Columns, entry.Description)
	}
	return r, nil
}

// Register creates or overwrites the entry for logicalName and persists the
// full registry to disk. A failed write keeps the in-memory entry; the next
// successful Register persists it.
func (r *FileRegistry) Register(logicalName, physicalName string, columns []string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.memory.Register(logicalName, physicalName, columns, description)
	r.persist()
}

// Resolve returns the physical name for logicalName.
func (r *FileRegistry) Resolve(logicalName string) (string, error) {
	return r.memory.Resolve(logicalName)
}

// Get returns the full entry for logicalName.
func (r *FileRegistry) Get(logicalName string) (*TableEntry, error) {
	return r.memory.Get(logicalName)
}

// ListAll returns every registered entry, ordered by logical name.
func (r *FileRegistry) ListAll() []TableEntry {
	return r.memory.ListAll()
}

func (r *FileRegistry) persist() {
	data, err := json.MarshalIndent(r.memory.ListAll(), "", "  ")
	if err != nil {
		return
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	os.Rename(tmp, r.path)
}
