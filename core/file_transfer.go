package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"remotefile/protocols"
)

type transferOptions struct {
	mode       protocols.TransferMode
	offset     int64
	autoResume bool
}

type TransferOption func(*transferOptions)

// WithMode forces the transfer mode for a single call.
func WithMode(mode protocols.TransferMode) TransferOption {
	return func(o *transferOptions) {
		o.mode = mode
	}
}

// WithOffset resumes the transfer at the given byte.
func WithOffset(offset int64) TransferOption {
	return func(o *transferOptions) {
		o.offset = offset
	}
}

// WithAutoResume derives the offset from what has already been transferred:
// the local file size for downloads, the remote size for uploads.
func WithAutoResume() TransferOption {
	return func(o *transferOptions) {
		o.autoResume = true
	}
}

func collectTransferOptions(opts []TransferOption) transferOptions {
	var o transferOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SaveToPath downloads f into dir, keeping the remote name.
func (f *RemoteFile) SaveToPath(ctx context.Context, dir string, opts ...TransferOption) (*RemoteFile, error) {
	return f.SaveToFile(ctx, filepath.Join(dir, f.name), opts...)
}

// SaveToFile downloads f to localPath. Without an offset the destination is
// replaced; with one, bytes from offset onward are appended to it.
func (f *RemoteFile) SaveToFile(ctx context.Context, localPath string, opts ...TransferOption) (*RemoteFile, error) {
	o := collectTransferOptions(opts)
	mode := f.resolveMode(o.mode, f.path)

	offset := o.offset
	if o.autoResume {
		info, err := os.Stat(localPath)
		switch {
		case err == nil:
			offset = info.Size()
		case !errors.Is(err, fs.ErrNotExist):
			return nil, f.transferFailed(Download, localPath, offset, mode, err)
		}
	}
	if err := validateTransfer(mode, offset); err != nil {
		return nil, f.transferFailed(Download, localPath, offset, mode, err)
	}

	f.log.WithFields(logrus.Fields{
		"remote": f.path,
		"local":  localPath,
		"mode":   mode.String(),
		"offset": offset,
	}).Debug("Download started")

	if err := f.conn.Retrieve(ctx, localPath, f.path, mode, offset); err != nil {
		return nil, f.transferFailed(Download, localPath, offset, mode, err)
	}

	f.log.WithFields(logrus.Fields{
		"remote": f.path,
		"local":  localPath,
	}).Debug("Download completed")
	return f, nil
}

// Put uploads localPath to f. Mode resolution looks at localPath, not f's path.
func (f *RemoteFile) Put(ctx context.Context, localPath string, opts ...TransferOption) (*RemoteFile, error) {
	o := collectTransferOptions(opts)
	mode := f.resolveMode(o.mode, localPath)

	offset := o.offset
	if o.autoResume {
		size, err := f.conn.Size(ctx, f.path)
		switch {
		case err == nil:
			offset = size
		case errors.Is(err, protocols.ErrSizeUnavailable), errors.Is(err, fs.ErrNotExist):
			offset = 0
		default:
			return nil, f.transferFailed(Upload, localPath, offset, mode, err)
		}
	}
	if err := validateTransfer(mode, offset); err != nil {
		return nil, f.transferFailed(Upload, localPath, offset, mode, err)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, f.transferFailed(Upload, localPath, offset, mode, err)
	}
	if offset > info.Size() {
		err := fmt.Errorf("offset beyond end of %d byte source", info.Size())
		return nil, f.transferFailed(Upload, localPath, offset, mode, err)
	}

	f.log.WithFields(logrus.Fields{
		"remote": f.path,
		"local":  localPath,
		"mode":   mode.String(),
		"offset": offset,
	}).Debug("Upload started")

	if err := f.conn.Store(ctx, f.path, localPath, mode, offset); err != nil {
		return nil, f.transferFailed(Upload, localPath, offset, mode, err)
	}

	f.log.WithFields(logrus.Fields{
		"remote": f.path,
		"local":  localPath,
		"bytes":  info.Size() - offset,
	}).Debug("Upload completed")
	return f, nil
}

func validateTransfer(mode protocols.TransferMode, offset int64) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	if offset < 0 {
		return fmt.Errorf("%w: %d", protocols.ErrNegativeOffset, offset)
	}
	return nil
}

func (f *RemoteFile) transferFailed(dir Direction, localPath string, offset int64, mode protocols.TransferMode, err error) error {
	f.log.WithFields(logrus.Fields{
		"direction": dir.String(),
		"remote":    f.path,
		"local":     localPath,
		"offset":    offset,
		"error":     err,
	}).Warn("Transfer failed")
	return &TransferError{
		Direction: dir,
		Remote:    f.path,
		Local:     localPath,
		Offset:    offset,
		Mode:      mode,
		Err:       err,
	}
}
