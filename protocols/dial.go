package protocols

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownType = errors.New("unknown connection type")

// Endpoint describes how to reach a server. Which fields matter depends on Type.
type Endpoint struct {
	Type        string // local, ftp, sftp, minio
	Host        string
	Port        int
	User        string
	Password    string
	KeyPath     string
	SSHAlias    string
	KnownHosts  string
	ExplicitTLS bool
	Timeout     time.Duration
	Root        string
	URL         string
}

func defaultPort(typ string) int {
	switch typ {
	case "ftp":
		return 21
	case "sftp":
		return 22
	}
	return 0
}

// Dial opens a connection for ep. The caller owns the result and must Close it.
func Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	port := ep.Port
	if port == 0 {
		port = defaultPort(ep.Type)
	}

	switch ep.Type {
	case "local":
		c := &LocalConn{RootPath: ep.Root}
		return c, c.Init(ctx)
	case "ftp":
		c := &FTPConn{
			Host:        ep.Host,
			Port:        port,
			User:        ep.User,
			Password:    ep.Password,
			ExplicitTLS: ep.ExplicitTLS,
			Timeout:     ep.Timeout,
		}
		if err := c.Init(ctx); err != nil {
			return nil, err
		}
		return c, nil
	case "sftp":
		c := &SFTPConn{
			Host:       ep.Host,
			Port:       port,
			User:       ep.User,
			Password:   ep.Password,
			KeyPath:    ep.KeyPath,
			SSHAlias:   ep.SSHAlias,
			KnownHosts: ep.KnownHosts,
			Timeout:    ep.Timeout,
		}
		if err := c.Init(ctx); err != nil {
			return nil, err
		}
		return c, nil
	case "minio", "s3":
		c := &MinioConn{URL: ep.URL}
		if err := c.Init(ctx); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, ep.Type)
	}
}
