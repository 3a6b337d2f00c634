package core

import (
	"context"
	"errors"
	"path"

	"github.com/sirupsen/logrus"

	"remotefile/protocols"
)

// RemoteFile is one file on the other side of a connection.
//
// RemoteFile does not own its connection: it never closes it, and several
// RemoteFiles may share one. Operations are synchronous; the connection
// serializes them. A RemoteFile itself is not safe for concurrent SetMode.
type RemoteFile struct {
	path     string
	name     string
	conn     protocols.Conn
	resolver *protocols.Resolver
	log      logrus.FieldLogger
	options  map[string]any

	override    protocols.TransferMode
	hasOverride bool
}

type Option func(*RemoteFile)

// WithLogger sets the logger used for transfer and management events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *RemoteFile) {
		if l != nil {
			f.log = l
		}
	}
}

// WithResolver replaces the default text/binary classification.
func WithResolver(r *protocols.Resolver) Option {
	return func(f *RemoteFile) {
		if r != nil {
			f.resolver = r
		}
	}
}

// WithOptions attaches caller data to the file. RemoteFile does not read it.
func WithOptions(opts map[string]any) Option {
	return func(f *RemoteFile) {
		f.options = opts
	}
}

// New binds a RemoteFile to p on conn.
func New(p string, conn protocols.Conn, opts ...Option) (*RemoteFile, error) {
	if p == "" {
		return nil, ErrEmptyPath
	}
	if conn == nil {
		return nil, ErrNilConn
	}

	f := &RemoteFile{
		path:     p,
		name:     path.Base(p),
		conn:     conn,
		resolver: protocols.DefaultResolver(),
		log:      logrus.StandardLogger(),
		options:  map[string]any{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// derive returns a RemoteFile for another path sharing f's connection and settings.
func (f *RemoteFile) derive(p string) *RemoteFile {
	nf := *f
	nf.path = p
	nf.name = path.Base(p)
	return &nf
}

func (f *RemoteFile) Name() string { return f.name }

func (f *RemoteFile) Path() string { return f.path }

func (f *RemoteFile) Options() map[string]any { return f.options }

func (f *RemoteFile) IsFile() bool { return true }

func (f *RemoteFile) IsDir() bool { return false }

// Size asks the connection for the file size. ok is false, with a nil error,
// when the server cannot report a size for this path.
func (f *RemoteFile) Size(ctx context.Context) (size int64, ok bool, err error) {
	size, err = f.conn.Size(ctx, f.path)
	if errors.Is(err, protocols.ErrSizeUnavailable) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &OpError{Op: OpSize, Path: f.path, Err: err}
	}
	return size, true, nil
}

type Property string

const (
	PropertyName Property = "name"
	PropertyPath Property = "path"
	PropertySize Property = "size"
)

// ParseProperty maps a property name to its constant.
func ParseProperty(name string) (Property, error) {
	switch p := Property(name); p {
	case PropertyName, PropertyPath, PropertySize:
		return p, nil
	}
	return "", &UnknownPropertyError{Name: name}
}

// SizeUnavailable is what Get returns for "size" when the server cannot
// report one.
type SizeUnavailable struct{}

func (SizeUnavailable) String() string { return "unavailable" }

// Get looks up a property by name for callers driven by user input. Name and
// path are strings. Size is an int64, or SizeUnavailable{} when the server
// cannot size the path; a zero-byte file is int64(0).
func (f *RemoteFile) Get(ctx context.Context, name string) (any, error) {
	p, err := ParseProperty(name)
	if err != nil {
		return nil, err
	}
	switch p {
	case PropertyName:
		return f.name, nil
	case PropertyPath:
		return f.path, nil
	}
	size, ok, err := f.Size(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return SizeUnavailable{}, nil
	}
	return size, nil
}

// SetMode forces every later transfer of f to use mode, unless a call passes
// WithMode explicitly.
func (f *RemoteFile) SetMode(mode protocols.TransferMode) *RemoteFile {
	f.override = mode
	f.hasOverride = true
	return f
}

// ClearMode returns f to per-path mode resolution.
func (f *RemoteFile) ClearMode() *RemoteFile {
	f.override = 0
	f.hasOverride = false
	return f
}

func (f *RemoteFile) Mode() (protocols.TransferMode, bool) {
	return f.override, f.hasOverride
}

// resolveMode picks the mode for one transfer: explicit, then override,
// then the resolver applied to p.
func (f *RemoteFile) resolveMode(explicit protocols.TransferMode, p string) protocols.TransferMode {
	if explicit != 0 {
		return explicit
	}
	if f.hasOverride {
		return f.override
	}
	return f.resolver.Resolve(p)
}
