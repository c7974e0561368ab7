package valkey

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragstore/internal/db"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
)

const (
	defaultVectorField = "__vector"
	scoreField         = "__vector_score"
)

// SearchKNN runs an FT.SEARCH KNN query. Entries come back nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("knn: index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("knn: vector is required")
	case q.K <= 0:
		return nil, errors.New("knn: k must be positive")
	}
	field := q.VectorField
	if field == "" {
		field = defaultVectorField
	}

	pre := "*"
	if f := buildFilter(q.Filters); f != "" {
		pre = "(" + f + ")"
	}
	args := []string{q.IndexName, fmt.Sprintf("%s=>[KNN %d @%s $BLOB]", pre, q.K, field)}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, scoreField)
	}
	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, searchErr(q.IndexName, err)
	}
	res, err := parseReply(raw)
	if err != nil {
		return nil, err
	}
	takeDistances(res.Entries)
	return res, nil
}

// SearchList pages through an index without ranking.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("list: index name is required")
	}
	query := buildFilter(q.Filters)
	if query == "" {
		if q.KeyPrefix != "" {
			return s.walkPrefix(ctx, q)
		}
		query = "*"
	}

	args := []string{q.IndexName, query}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit), "DIALECT", "2")

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, searchErr(q.IndexName, err)
	}
	return parseReply(raw)
}

func searchErr(index string, err error) error {
	if missingIndex(err) {
		err = db.ErrIndexNotFound
	}
	return &db.Error{Op: db.OpSearch, Key: index, Err: err}
}

// walkPrefix lists hashes via SCAN and HGETALL in key order.
func (s *Store) walkPrefix(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	keys, err := s.scanKeys(ctx, q.KeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.IndexName, err)
	}
	slices.Sort(keys)

	total := len(keys)
	if q.Offset >= total {
		return &db.SearchResult{Total: total}, nil
	}
	page := keys[q.Offset:]
	if q.Limit > 0 && len(page) > q.Limit {
		page = page[:q.Limit]
	}

	hashes, err := s.HGetAllMulti(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.IndexName, err)
	}
	entries := make([]db.SearchEntry, 0, len(page))
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue // deleted between SCAN and HGETALL
		}
		entries = append(entries, db.SearchEntry{Key: page[i], Fields: project(fields, q.ReturnFields)})
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func project(all map[string]string, names []string) map[string]string {
	if len(names) == 0 {
		return all
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		if v, ok := all[n]; ok {
			out[n] = v
		}
	}
	return out
}

// parseReply reads the RESP2 layout [total, key, [field, value, ...], ...].
// Malformed pairs are skipped.
func parseReply(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse search total: %w", err)
	}
	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Fields: fieldMap(pairs)})
	}
	return res, nil
}

// takeDistances moves __vector_score into Distance and sorts ascending;
// valkey-search ignores SORTBY on KNN queries.
func takeDistances(entries []db.SearchEntry) {
	for i := range entries {
		if raw, ok := entries[i].Fields[scoreField]; ok {
			if d, err := strconv.ParseFloat(raw, 64); err == nil {
				entries[i].Distance = d
			}
			delete(entries[i].Fields, scoreField)
		}
	}
	slices.SortStableFunc(entries, func(a, b db.SearchEntry) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, err := pairs[j].ToString()
		if err != nil {
			continue
		}
		value, err := pairs[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// buildFilter renders expr as an FT.SEARCH TAG pre-filter.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(expr.Must())+len(expr.MustNot()))
	for _, c := range expr.Must() {
		parts = append(parts, tagClause(c))
	}
	for _, c := range expr.MustNot() {
		parts = append(parts, "-"+tagClause(c))
	}
	return strings.Join(parts, " ")
}

func tagClause(c filter.Condition) string {
	values := make([]string, len(c.Values()))
	for i, v := range c.Values() {
		values[i] = escapeTag(v)
	}
	return "@" + c.Key() + ":{" + strings.Join(values, " | ") + "}"
}

// tagSpecials are the characters the query parser treats as syntax
// inside a TAG value.
const tagSpecials = ",.<>{}[]\"':;!@#$%^&*()-+=~|/ "

func escapeTag(v string) string {
	var sb strings.Builder
	sb.Grow(len(v))
	for _, r := range v {
		if strings.ContainsRune(tagSpecials, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// vectorToBytes encodes v as little-endian FLOAT32, the layout of the
// index's vector field.
func vectorToBytes(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return rueidis.BinaryString(buf)
}
