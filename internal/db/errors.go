package db

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is.
var (
	ErrKeyNotFound   = errors.New("db: no such key")
	ErrIndexNotFound = errors.New("db: no such index")
	ErrIndexExists   = errors.New("db: index exists")
)

// Op is the server command that failed.
type Op string

const (
	OpGet         Op = "GET"
	OpSet         Op = "SET"
	OpDel         Op = "DEL"
	OpExists      Op = "EXISTS"
	OpScan        Op = "SCAN"
	OpHSet        Op = "HSET"
	OpHGetAll     Op = "HGETALL"
	OpCreateIndex Op = "FT.CREATE"
	OpIndexInfo   Op = "FT.INFO"
	OpSearch      Op = "FT.SEARCH"
)

// Error attaches the command and, for single-key commands, the key to a
// store failure.
type Error struct {
	Op  Op
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
