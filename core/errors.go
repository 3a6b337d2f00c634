package core

import (
	"errors"
	"fmt"

	"remotefile/protocols"
)

// Kinds of failure. Every error returned by RemoteFile matches exactly one of
// these with errors.Is.
var (
	ErrTransferFailure  = errors.New("transfer failed")
	ErrPermissionChange = errors.New("permission change failed")
	ErrRename           = errors.New("rename failed")
	ErrCopy             = errors.New("copy failed")
	ErrMove             = errors.New("move failed")
	ErrDelete           = errors.New("delete failed")
	ErrExistenceCheck   = errors.New("existence check failed")
	ErrSizeQuery        = errors.New("size query failed")
)

var (
	ErrEmptyPath   = errors.New("remote path is empty")
	ErrNilConn     = errors.New("connection is nil")
	ErrInvalidName = errors.New("invalid file name")
	ErrInvalidMode = errors.New("invalid transfer mode")
)

// UnknownPropertyError is returned when a property outside name, path and
// size is requested.
type UnknownPropertyError struct {
	Name string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("unknown property %q", e.Name)
}

type Direction uint8

const (
	Download Direction = iota + 1
	Upload
)

func (d Direction) String() string {
	switch d {
	case Download:
		return "download"
	case Upload:
		return "upload"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// TransferError describes a download or upload that did not complete.
type TransferError struct {
	Direction Direction
	Remote    string
	Local     string
	Offset    int64
	Mode      protocols.TransferMode
	Err       error
}

func (e *TransferError) Error() string {
	if e.Direction == Upload {
		return fmt.Sprintf("upload %s to %s (offset %d, %s): %v", e.Local, e.Remote, e.Offset, e.Mode, e.Err)
	}
	return fmt.Sprintf("download %s to %s (offset %d, %s): %v", e.Remote, e.Local, e.Offset, e.Mode, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool { return target == ErrTransferFailure }

type Op string

const (
	OpSize   Op = "size"
	OpChmod  Op = "chmod"
	OpRename Op = "rename"
	OpCopy   Op = "copy"
	OpMove   Op = "move"
	OpDelete Op = "delete"
	OpExists Op = "exists"
)

var opKinds = map[Op]error{
	OpSize:   ErrSizeQuery,
	OpChmod:  ErrPermissionChange,
	OpRename: ErrRename,
	OpCopy:   ErrCopy,
	OpMove:   ErrMove,
	OpDelete: ErrDelete,
	OpExists: ErrExistenceCheck,
}

// OpError describes a failed metadata or management operation. Target is
// set for operations that involve a second path.
type OpError struct {
	Op     Op
	Path   string
	Target string
	Err    error
}

func (e *OpError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Path, e.Target, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool {
	kind, ok := opKinds[e.Op]
	return ok && target == kind
}
