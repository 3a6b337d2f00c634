package core

import (
	"context"
	"os"
	"sync"

	"remotefile/protocols"
)

type call struct {
	Op     string
	Remote string
	Local  string
	Target string
	Mode   protocols.TransferMode
	Offset int64
	Perm   os.FileMode
}

// mockConn records calls and answers from its fields.
type mockConn struct {
	mu     sync.Mutex
	calls  []call
	closed bool

	size    int64
	sizeErr error
	exists  bool
	err     error // returned by every mutating operation
}

func (m *mockConn) record(c call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *mockConn) last() call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return call{}
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockConn) Size(ctx context.Context, p string) (int64, error) {
	m.record(call{Op: "size", Remote: p})
	return m.size, m.sizeErr
}

func (m *mockConn) Retrieve(ctx context.Context, localPath, remotePath string, mode protocols.TransferMode, offset int64) error {
	m.record(call{Op: "retrieve", Remote: remotePath, Local: localPath, Mode: mode, Offset: offset})
	return m.err
}

func (m *mockConn) Store(ctx context.Context, remotePath, localPath string, mode protocols.TransferMode, offset int64) error {
	m.record(call{Op: "store", Remote: remotePath, Local: localPath, Mode: mode, Offset: offset})
	return m.err
}

func (m *mockConn) Chmod(ctx context.Context, p string, perm os.FileMode) error {
	m.record(call{Op: "chmod", Remote: p, Perm: perm})
	return m.err
}

func (m *mockConn) Rename(ctx context.Context, from, to string) error {
	m.record(call{Op: "rename", Remote: from, Target: to})
	return m.err
}

func (m *mockConn) Delete(ctx context.Context, p string) error {
	m.record(call{Op: "delete", Remote: p})
	return m.err
}

func (m *mockConn) Exists(ctx context.Context, p string) (bool, error) {
	m.record(call{Op: "exists", Remote: p})
	return m.exists, m.err
}

func (m *mockConn) Close() error {
	m.closed = true
	return nil
}

// copierConn adds server-side copy to mockConn.
type copierConn struct {
	*mockConn
}

func (c copierConn) Copy(ctx context.Context, src, dst string) error {
	c.record(call{Op: "copy", Remote: src, Target: dst})
	return c.err
}
