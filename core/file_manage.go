package core

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"remotefile/protocols"
)

// Chmod changes the permission bits of f.
func (f *RemoteFile) Chmod(ctx context.Context, perm os.FileMode) (*RemoteFile, error) {
	if err := f.conn.Chmod(ctx, f.path, perm); err != nil {
		return nil, f.opFailed(OpChmod, "", err)
	}
	f.log.WithFields(logrus.Fields{"remote": f.path, "perm": fmt.Sprintf("%04o", perm.Perm())}).Debug("Permissions changed")
	return f, nil
}

// Rename gives f a new name in the same directory and returns the file at
// its new path. newName must be a bare file name.
func (f *RemoteFile) Rename(ctx context.Context, newName string) (*RemoteFile, error) {
	if newName == "" || newName == "." || newName == ".." || strings.ContainsAny(newName, `/\`) {
		return nil, f.opFailed(OpRename, newName, fmt.Errorf("%w: %q", ErrInvalidName, newName))
	}

	target := path.Join(path.Dir(f.path), newName)
	if err := f.conn.Rename(ctx, f.path, target); err != nil {
		return nil, f.opFailed(OpRename, target, err)
	}
	f.log.WithFields(logrus.Fields{"remote": f.path, "target": target}).Debug("File renamed")
	return f.derive(target), nil
}

// Move relocates f to dest. A dest ending in "/" names a directory and keeps
// the current file name.
func (f *RemoteFile) Move(ctx context.Context, dest string) (*RemoteFile, error) {
	target, err := f.destination(dest)
	if err != nil {
		return nil, f.opFailed(OpMove, dest, err)
	}
	if err := f.conn.Rename(ctx, f.path, target); err != nil {
		return nil, f.opFailed(OpMove, target, err)
	}
	f.log.WithFields(logrus.Fields{"remote": f.path, "target": target}).Debug("File moved")
	return f.derive(target), nil
}

// Copy duplicates f at dest and returns the copy. Connections without a
// server-side copy move the bytes through a local temporary file in binary mode.
func (f *RemoteFile) Copy(ctx context.Context, dest string) (*RemoteFile, error) {
	target, err := f.destination(dest)
	if err != nil {
		return nil, f.opFailed(OpCopy, dest, err)
	}
	if target == f.path {
		return nil, f.opFailed(OpCopy, target, fmt.Errorf("%w: source and destination are the same", ErrInvalidName))
	}

	if c, ok := f.conn.(protocols.Copier); ok {
		err = c.Copy(ctx, f.path, target)
	} else {
		err = f.copyThroughLocal(ctx, target)
	}
	if err != nil {
		return nil, f.opFailed(OpCopy, target, err)
	}
	f.log.WithFields(logrus.Fields{"remote": f.path, "target": target}).Debug("File copied")
	return f.derive(target), nil
}

func (f *RemoteFile) copyThroughLocal(ctx context.Context, target string) error {
	tmp, err := os.CreateTemp("", "remotefile-copy-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := f.conn.Retrieve(ctx, tmpPath, f.path, protocols.Binary, 0); err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}
	if err := f.conn.Store(ctx, target, tmpPath, protocols.Binary, 0); err != nil {
		return fmt.Errorf("store copy: %w", err)
	}
	return nil
}

// Delete removes f from the server.
func (f *RemoteFile) Delete(ctx context.Context) error {
	if err := f.conn.Delete(ctx, f.path); err != nil {
		return f.opFailed(OpDelete, "", err)
	}
	f.log.WithField("remote", f.path).Debug("File deleted")
	return nil
}

// Exists reports whether f is present. A missing file is not an error.
func (f *RemoteFile) Exists(ctx context.Context) (bool, error) {
	ok, err := f.conn.Exists(ctx, f.path)
	if err != nil {
		return false, f.opFailed(OpExists, "", err)
	}
	return ok, nil
}

func (f *RemoteFile) destination(dest string) (string, error) {
	if dest == "" {
		return "", fmt.Errorf("%w: empty destination", ErrInvalidName)
	}
	if strings.HasSuffix(dest, "/") {
		return path.Join(dest, f.name), nil
	}
	return dest, nil
}

func (f *RemoteFile) opFailed(op Op, target string, err error) error {
	f.log.WithFields(logrus.Fields{
		"op":     string(op),
		"remote": f.path,
		"target": target,
		"error":  err,
	}).Warn("Remote operation failed")
	return &OpError{Op: op, Path: f.path, Target: target, Err: err}
}
