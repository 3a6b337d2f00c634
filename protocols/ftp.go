package protocols

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/textproto"
	"os"
	"path"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
)

type FTPConn struct {
	Host        string
	Port        int
	User        string
	Password    string
	ExplicitTLS bool
	Timeout     time.Duration

	mu   sync.Mutex
	conn *ftp.ServerConn
}

func (f *FTPConn) Init(ctx context.Context) error {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []ftp.DialOption{
		ftp.DialWithTimeout(timeout),
		ftp.DialWithContext(ctx),
	}
	if f.ExplicitTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: f.Host}))
	}

	addr := fmt.Sprintf("%s:%d", f.Host, f.Port)
	c, err := ftp.Dial(addr, opts...)
	if err != nil {
		return err
	}

	if err := c.Login(f.User, f.Password); err != nil {
		c.Quit()
		return err
	}
	f.conn = c
	return nil
}

func (f *FTPConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		err := f.conn.Quit()
		f.conn = nil
		return err
	}
	return nil
}

func (f *FTPConn) Size(ctx context.Context, p string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	size, err := f.conn.FileSize(p)
	if err != nil {
		if isUnavailable(err) {
			return 0, ErrSizeUnavailable
		}
		return 0, err
	}
	if size < 0 {
		return 0, ErrSizeUnavailable
	}
	return size, nil
}

func (f *FTPConn) Retrieve(ctx context.Context, localPath, remotePath string, mode TransferMode, offset int64) error {
	if err := checkOffset(offset); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.conn.Type(ftpType(mode)); err != nil {
		return fmt.Errorf("set transfer type %s: %w", mode, err)
	}

	dst, err := openDestination(localPath, offset)
	if err != nil {
		return err
	}

	resp, err := f.conn.RetrFrom(remotePath, uint64(offset))
	if err != nil {
		dst.Close()
		return err
	}

	_, copyErr := copyContext(ctx, dst, resp)
	// Close reads the final server reply; a truncated data channel surfaces here.
	respErr := resp.Close()
	if err := dst.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		return copyErr
	}
	return respErr
}

func (f *FTPConn) Store(ctx context.Context, remotePath, localPath string, mode TransferMode, offset int64) error {
	if err := checkOffset(offset); err != nil {
		return err
	}
	src, err := openSource(localPath, offset)
	if err != nil {
		return err
	}
	defer src.Close()

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.conn.Type(ftpType(mode)); err != nil {
		return fmt.Errorf("set transfer type %s: %w", mode, err)
	}

	r := contextReader{ctx: ctx, r: src}
	if offset == 0 {
		return f.conn.Stor(remotePath, r)
	}
	return f.conn.StorFrom(remotePath, r, uint64(offset))
}

// Chmod is not available: the client library exposes no SITE command.
func (f *FTPConn) Chmod(ctx context.Context, p string, perm os.FileMode) error {
	return fmt.Errorf("ftp SITE CHMOD %o %s: %w", perm.Perm(), p, errors.ErrUnsupported)
}

func (f *FTPConn) Rename(ctx context.Context, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.conn.Rename(from, to)
}

func (f *FTPConn) Delete(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.conn.Delete(p)
}

func (f *FTPConn) Exists(ctx context.Context, p string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	// LIST of the parent is the only lookup every server supports.
	parent := path.Dir(p)
	name := path.Base(p)

	entries, err := f.conn.List(parent)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}

	for _, entry := range entries {
		if entry.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *FTPConn) MkdirAll(ctx context.Context, fullPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dirs := []string{}
	curr := path.Clean(fullPath)
	for curr != "." && curr != "/" && curr != "" {
		dirs = append(dirs, curr)
		curr = path.Dir(curr)
	}

	// Root to leaf; MKD on an existing directory fails and is ignored.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.conn.MakeDir(dirs[i])
	}
	return nil
}

func ftpType(mode TransferMode) ftp.TransferType {
	if mode == Text {
		return ftp.TransferTypeASCII
	}
	return ftp.TransferTypeBinary
}

// isUnavailable reports replies meaning "no such file" or "command not
// implemented", as opposed to transport failures.
func isUnavailable(err error) bool {
	var tpErr *textproto.Error
	if !errors.As(err, &tpErr) {
		return false
	}
	switch tpErr.Code {
	case 500, 501, 502, 504, 550:
		return true
	}
	return false
}

// isNotFound reports replies meaning the path itself is missing. A server
// refusing the command or the data channel is not a missing file.
func isNotFound(err error) bool {
	var tpErr *textproto.Error
	if !errors.As(err, &tpErr) {
		return false
	}
	return tpErr.Code == 450 || tpErr.Code == 550
}
