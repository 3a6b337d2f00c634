package protocols

import (
	"context"
	"errors"
	"os"
)

var (
	// ErrSizeUnavailable is returned by Conn.Size when the server cannot
	// report a size for the path. It is an expected outcome, not a failure.
	ErrSizeUnavailable = errors.New("size unavailable")
	// ErrResumeUnsupported is returned when a backend cannot honour a
	// non-zero transfer offset.
	ErrResumeUnsupported = errors.New("resume not supported by this connection")
	// ErrNegativeOffset is returned for offsets below zero.
	ErrNegativeOffset = errors.New("negative transfer offset")
)

// Conn is an established session able to execute primitive file operations
// on a remote system. Implementations serialize exchanges: one command or
// data transfer is in flight at a time.
type Conn interface {
	// Size returns the byte count of path, or ErrSizeUnavailable.
	Size(ctx context.Context, path string) (int64, error)
	// Retrieve downloads remotePath into localPath starting at offset.
	// With offset 0 the local file is truncated; otherwise it is appended to.
	Retrieve(ctx context.Context, localPath, remotePath string, mode TransferMode, offset int64) error
	// Store uploads localPath from offset onward to remotePath at the same offset.
	Store(ctx context.Context, remotePath, localPath string, mode TransferMode, offset int64) error
	Chmod(ctx context.Context, path string, perm os.FileMode) error
	Rename(ctx context.Context, from, to string) error
	Delete(ctx context.Context, path string) error
	// Exists reports false without error when path is not found.
	Exists(ctx context.Context, path string) (bool, error)
	Close() error
}

// Copier is implemented by connections that can copy without moving the
// bytes through the client.
type Copier interface {
	Copy(ctx context.Context, src, dst string) error
}

// DirMaker is implemented by connections that can create remote directories.
type DirMaker interface {
	MkdirAll(ctx context.Context, path string) error
}
