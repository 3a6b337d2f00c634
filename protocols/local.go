package protocols

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// LocalConn serves remote paths from a directory on this machine. Remote
// paths are slash separated and resolved under RootPath; ".." never climbs
// above it.
type LocalConn struct {
	RootPath string

	mu sync.Mutex
}

func (l *LocalConn) Init(ctx context.Context) error {
	return os.MkdirAll(l.RootPath, 0755)
}

func (l *LocalConn) Close() error {
	return nil
}

func (l *LocalConn) full(p string) string {
	return filepath.Join(l.RootPath, filepath.FromSlash(path.Join("/", p)))
}

func (l *LocalConn) Size(ctx context.Context, p string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, err := os.Stat(l.full(p))
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, ErrSizeUnavailable
	}
	return info.Size(), nil
}

func (l *LocalConn) Retrieve(ctx context.Context, localPath, remotePath string, mode TransferMode, offset int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := checkOffset(offset); err != nil {
		return err
	}
	src, err := openSource(l.full(remotePath), offset)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := openDestination(localPath, offset)
	if err != nil {
		return err
	}

	_, err = copyContext(ctx, dst, src)
	if cerr := dst.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (l *LocalConn) Store(ctx context.Context, remotePath, localPath string, mode TransferMode, offset int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := checkOffset(offset); err != nil {
		return err
	}
	src, err := openSource(localPath, offset)
	if err != nil {
		return err
	}
	defer src.Close()

	flags := os.O_WRONLY | os.O_CREATE
	if offset == 0 {
		flags |= os.O_TRUNC
	}
	dst, err := os.OpenFile(l.full(remotePath), flags, 0644)
	if err != nil {
		return err
	}
	if offset > 0 {
		if err := dst.Truncate(offset); err != nil {
			dst.Close()
			return err
		}
		if _, err := dst.Seek(offset, io.SeekStart); err != nil {
			dst.Close()
			return err
		}
	}

	_, err = copyContext(ctx, dst, src)
	if cerr := dst.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (l *LocalConn) Chmod(ctx context.Context, p string, perm os.FileMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return os.Chmod(l.full(p), perm)
}

func (l *LocalConn) Rename(ctx context.Context, from, to string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return os.Rename(l.full(from), l.full(to))
}

func (l *LocalConn) Delete(ctx context.Context, p string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return os.Remove(l.full(p))
}

func (l *LocalConn) Exists(ctx context.Context, p string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := os.Stat(l.full(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *LocalConn) MkdirAll(ctx context.Context, p string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return os.MkdirAll(l.full(p), 0755)
}
