package recordstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Client for tests and local development. It
// understands the subset of filter syntax the core actually emits:
// {Field}='value' equality checks, optionally joined with AND(...).
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Record
}

// NewMemory creates an empty in-memory record store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Record)}
}

var eqExpr = regexp.MustCompile(`\{([^}]+)\}\s*=\s*'([^']*)'`)

// List returns records matching the query, in insertion order.
func (m *Memory) List(ctx context.Context, table string, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conditions := eqExpr.FindAllStringSubmatch(q.Formula, -1)
	if q.Formula != "" && len(conditions) == 0 && !strings.HasPrefix(strings.TrimSpace(q.Formula), "AND(") {
		return nil, fmt.Errorf("memory store: unsupported formula %q", q.Formula)
	}

	var out []Record
	for _, rec := range m.tables[table] {
		if matchAll(rec, conditions) {
			out = append(out, cloneRecord(rec))
			if q.MaxRecords > 0 && len(out) >= q.MaxRecords {
				break
			}
		}
	}
	return out, nil
}

// Get returns a record by ID.
func (m *Memory) Get(ctx context.Context, table, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.tables[table] {
		if rec.ID == id {
			return cloneRecord(rec), nil
		}
	}
	return Record{}, fmt.Errorf("memory store: %s/%s not found", table, id)
}

// Create inserts a record with a generated ID.
func (m *Memory) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := Record{ID: "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14], Fields: cloneFields(fields)}
	m.tables[table] = append(m.tables[table], rec)
	return cloneRecord(rec), nil
}

// Update merges fields into an existing record.
func (m *Memory) Update(ctx context.Context, table, id string, fields Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	for i, rec := range rows {
		if rec.ID == id {
			for k, v := range fields {
				rows[i].Fields[k] = v
			}
			return cloneRecord(rows[i]), nil
		}
	}
	return Record{}, fmt.Errorf("memory store: %s/%s not found", table, id)
}

// Delete removes a record by ID. Deleting a missing record is not an error.
func (m *Memory) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	for i, rec := range rows {
		if rec.ID == id {
			m.tables[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Seed inserts a record with a caller-chosen ID (generated when empty),
// for test fixtures.
func (m *Memory) Seed(table, id string, fields Fields) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	}
	rec := Record{ID: id, Fields: cloneFields(fields)}
	m.tables[table] = append(m.tables[table], rec)
	return cloneRecord(rec)
}

func matchAll(rec Record, conditions [][]string) bool {
	for _, cond := range conditions {
		field, want := cond[1], cond[2]
		got := rec.Fields.Str(field, "")
		if got != want {
			// Linked-record fields hold ID lists; FIND()-style formulas
			// against them reduce to membership here.
			if !contains(rec.Fields.Strs(field), want) {
				return false
			}
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func cloneRecord(rec Record) Record {
	return Record{ID: rec.ID, Fields: cloneFields(rec.Fields)}
}

func cloneFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
