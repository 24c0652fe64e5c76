package storage

import "fmt"

// WriteKindIO is the only WriteError kind: the filesystem refused an operation.
const WriteKindIO = "io"

// WriteError reports a failed filesystem operation on one output file.
type WriteError struct {
	Op   string // "stat", "encode", "write", "read"
	Path string
	Kind string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func ioError(op, path string, err error) *WriteError {
	return &WriteError{Op: op, Path: path, Kind: WriteKindIO, Err: err}
}
