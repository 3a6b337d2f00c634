package protocols

import (
	"context"
	"fmt"
	"io"
	"os"
)

// contextReader stops a copy as soon as ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, contextReader{ctx: ctx, r: src})
}

func checkOffset(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}
	return nil
}

// openDestination opens a local download target: truncated for a fresh
// transfer, append-only when resuming.
func openDestination(localPath string, offset int64) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(localPath, flags, 0644)
}

// openSource opens a local upload source positioned at offset.
func openSource(localPath string, offset int64) (*os.File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}
