package db

import (
	"errors"
	"fmt"
)

// FieldKind is the FT schema type of an indexed hash field.
type FieldKind int

const (
	FieldTag FieldKind = iota
	FieldNumeric
	FieldVector
)

// Field is one indexed hash field. Tag fields are case sensitive. Vector
// fields are FLOAT32 HNSW with cosine distance.
type Field struct {
	Name      string
	Kind      FieldKind
	Separator string // tag

	Dim            int // vector
	M              int // vector, 0 = server default
	EFConstruction int // vector, 0 = server default
}

// Index is an FT index over the hashes under Prefix.
type Index struct {
	Name   string
	Prefix string
	Fields []Field
}

// IndexBuilder assembles an Index.
//
//	idx, err := db.NewIndex("rag:documents:idx").
//	    Prefix("rag:documents:").
//	    Tag("__source_key", ",").
//	    Vector("__vector", 384, 16, 200).
//	    Build()
type IndexBuilder struct {
	idx Index
}

// NewIndex starts an index named name.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{idx: Index{Name: name}}
}

// Prefix restricts the index to keys starting with p.
func (b *IndexBuilder) Prefix(p string) *IndexBuilder {
	b.idx.Prefix = p
	return b
}

// Tag adds a TAG field split on separator.
func (b *IndexBuilder) Tag(name, separator string) *IndexBuilder {
	b.idx.Fields = append(b.idx.Fields, Field{Name: name, Kind: FieldTag, Separator: separator})
	return b
}

// Numeric adds a NUMERIC field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	b.idx.Fields = append(b.idx.Fields, Field{Name: name, Kind: FieldNumeric})
	return b
}

// Vector adds the HNSW vector field.
func (b *IndexBuilder) Vector(name string, dim, m, efConstruction int) *IndexBuilder {
	b.idx.Fields = append(b.idx.Fields, Field{
		Name:           name,
		Kind:           FieldVector,
		Dim:            dim,
		M:              m,
		EFConstruction: efConstruction,
	})
	return b
}

// Build validates and returns a copy of the index.
func (b *IndexBuilder) Build() (*Index, error) {
	if err := b.idx.Validate(); err != nil {
		return nil, err
	}
	idx := b.idx
	idx.Fields = append([]Field(nil), b.idx.Fields...)
	return &idx, nil
}

// Validate checks the name, field uniqueness and the single vector field.
func (idx *Index) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !validIdentifier(idx.Name) {
		return fmt.Errorf("index name %q contains invalid characters", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]struct{}, len(idx.Fields))
	vectors := 0
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Kind == FieldVector {
			if f.Dim <= 0 {
				return fmt.Errorf("vector field %q needs a positive dimension", f.Name)
			}
			vectors++
		}
	}
	if vectors > 1 {
		return errors.New("at most one vector field is supported")
	}
	return nil
}

// VectorField returns the vector field, if the index has one.
func (idx *Index) VectorField() (Field, bool) {
	for _, f := range idx.Fields {
		if f.Kind == FieldVector {
			return f, true
		}
	}
	return Field{}, false
}

// validIdentifier accepts [a-zA-Z0-9_:-]+.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
