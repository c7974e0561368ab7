package valkey

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/ragstore/internal/db"
)

// CreateIndex runs FT.CREATE for idx.
func (s *Store) CreateIndex(ctx context.Context, idx *db.Index) error {
	args, err := createArgs(idx)
	if err != nil {
		return err
	}
	if err := s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error(); err != nil {
		if serverSays(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Key: idx.Name, Err: err}
	}
	return nil
}

// IndexExists probes FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case missingIndex(err):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Key: name, Err: err}
	}
}

// createArgs renders idx as FT.CREATE arguments (without the command name).
func createArgs(idx *db.Index) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	args := []string{idx.Name, "ON", "HASH"}
	if idx.Prefix != "" {
		args = append(args, "PREFIX", "1", idx.Prefix)
	}
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		f := &idx.Fields[i]
		switch f.Kind {
		case db.FieldTag:
			args = append(args, f.Name, "TAG")
			if f.Separator != "" {
				args = append(args, "SEPARATOR", f.Separator)
			}
			args = append(args, "CASESENSITIVE")
		case db.FieldNumeric:
			args = append(args, f.Name, "NUMERIC")
		case db.FieldVector:
			args = append(args, f.Name)
			args = append(args, vectorArgs(f)...)
		default:
			return nil, fmt.Errorf("field %q: unknown kind %d", f.Name, f.Kind)
		}
	}
	return args, nil
}

func vectorArgs(f *db.Field) []string {
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.Dim),
		"DISTANCE_METRIC", "COSINE",
	}
	if f.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(f.M))
	}
	if f.EFConstruction > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.EFConstruction))
	}
	return append([]string{"VECTOR", "HNSW", strconv.Itoa(len(attrs))}, attrs...)
}
