package models

import (
	"fmt"
	"time"
)

// ColumnKind is the runtime type a column's values must conform to.
type ColumnKind string

const (
	KindNumber ColumnKind = "Number"
	KindString ColumnKind = "String"
)

// Valid reports whether k is one of the known column kinds.
func (k ColumnKind) Valid() bool {
	return k == KindNumber || k == KindString
}

// Column is one entry of a Format's ordered schema.
type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Format is a named, ordered schema of typed columns. Schemas are immutable
// after creation — only Name/Description metadata may be updated.
type Format struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Schema      []Column  `json:"schema" db:"schema"`
	CreatedBy   string    `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// ColumnNames returns the schema's column names in declared order.
func (f *Format) ColumnNames() []string {
	names := make([]string, len(f.Schema))
	for i, c := range f.Schema {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name, returning ok=false if absent.
func (f *Format) Column(name string) (Column, bool) {
	for _, c := range f.Schema {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// CreateFormatRequest is the body of POST /format.
type CreateFormatRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Schema      []Column `json:"schema" validate:"required,min=1,dive"`
}

// Validate checks structural invariants that go-playground tags can't
// express directly: unique, non-empty column names and known kinds.
func (r *CreateFormatRequest) Validate() error {
	if len(r.Schema) == 0 {
		return fmt.Errorf("schema must declare at least one column")
	}
	seen := make(map[string]bool, len(r.Schema))
	for i, c := range r.Schema {
		if c.Name == "" {
			return fmt.Errorf("column %d: name must not be empty", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("column %d: duplicate column name %q", i, c.Name)
		}
		seen[c.Name] = true
		if !c.Kind.Valid() {
			return fmt.Errorf("column %d (%s): unknown kind %q", i, c.Name, c.Kind)
		}
	}
	return nil
}
