package protocols

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/alexhunt7/ssher"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type SFTPConn struct {
	Host     string
	Port     int
	User     string
	Password string
	// KeyPath selects public key auth instead of Password.
	KeyPath string
	// SSHAlias resolves host, port, user and identity from ~/.ssh/config.
	SSHAlias string
	// KnownHosts enables host key verification against an OpenSSH known_hosts file.
	KnownHosts string
	Timeout    time.Duration

	mu      sync.Mutex
	client  *sftp.Client
	sshConn *ssh.Client
}

// NewSFTPConn wraps an already established SFTP client. Close releases it.
func NewSFTPConn(client *sftp.Client) *SFTPConn {
	return &SFTPConn{client: client}
}

func (s *SFTPConn) Init(ctx context.Context) error {
	config, addr, err := s.clientConfig()
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < config.Timeout {
		config.Timeout = time.Until(deadline)
	}
	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return err
	}
	s.sshConn = conn

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return err
	}
	s.client = client
	return nil
}

func (s *SFTPConn) clientConfig() (*ssh.ClientConfig, string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var config *ssh.ClientConfig
	var addr string
	if s.SSHAlias != "" {
		cfg, hostPort, err := ssher.ClientConfig(s.SSHAlias, "")
		if err != nil {
			return nil, "", fmt.Errorf("resolve ssh alias %s: %w", s.SSHAlias, err)
		}
		config, addr = cfg, hostPort
	} else {
		var auth ssh.AuthMethod
		if s.KeyPath != "" {
			key, err := os.ReadFile(s.KeyPath)
			if err != nil {
				return nil, "", fmt.Errorf("read ssh key: %w", err)
			}
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				return nil, "", fmt.Errorf("parse ssh key: %w", err)
			}
			auth = ssh.PublicKeys(signer)
		} else {
			auth = ssh.Password(s.Password)
		}
		config = &ssh.ClientConfig{
			User: s.User,
			Auth: []ssh.AuthMethod{auth},
		}
		addr = fmt.Sprintf("%s:%d", s.Host, s.Port)
	}

	config.Timeout = timeout
	config.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	if s.KnownHosts != "" {
		cb, err := knownhosts.New(s.KnownHosts)
		if err != nil {
			return nil, "", fmt.Errorf("load known_hosts: %w", err)
		}
		config.HostKeyCallback = cb
	}
	return config, addr, nil
}

func (s *SFTPConn) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.client != nil {
		err = s.client.Close()
		s.client = nil
	}
	if s.sshConn != nil {
		s.sshConn.Close()
		s.sshConn = nil
	}
	return err
}

func (s *SFTPConn) Size(ctx context.Context, p string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := s.client.Stat(p)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, ErrSizeUnavailable
	}
	return info.Size(), nil
}

// Retrieve ignores mode: SFTP moves bytes verbatim.
func (s *SFTPConn) Retrieve(ctx context.Context, localPath, remotePath string, mode TransferMode, offset int64) error {
	if err := checkOffset(offset); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.client.Open(remotePath)
	if err != nil {
		return err
	}
	defer src.Close()

	if offset > 0 {
		if _, err := src.Seek(offset, io.SeekStart); err != nil {
			return err
		}
	}

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

func (s *SFTPConn) Store(ctx context.Context, remotePath, localPath string, mode TransferMode, offset int64) error {
	if err := checkOffset(offset); err != nil {
		return err
	}
	src, err := openSource(localPath, offset)
	if err != nil {
		return err
	}
	defer src.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	flags := os.O_WRONLY | os.O_CREATE
	if offset == 0 {
		flags |= os.O_TRUNC
	}
	dst, err := s.client.OpenFile(remotePath, flags)
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

func (s *SFTPConn) Chmod(ctx context.Context, p string, perm os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.client.Chmod(p, perm)
}

func (s *SFTPConn) Rename(ctx context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	// posix-rename overwrites an existing target; plain SSH_FXP_RENAME refuses.
	err := s.client.PosixRename(from, to)
	if err == nil {
		return nil
	}
	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) && statusErr.FxCode() == sftp.ErrSSHFxOpUnsupported {
		return s.client.Rename(from, to)
	}
	return err
}

func (s *SFTPConn) Delete(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.client.Remove(p)
}

func (s *SFTPConn) Exists(ctx context.Context, p string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *SFTPConn) MkdirAll(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.client.MkdirAll(p)
}
