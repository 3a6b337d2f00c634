package protocols

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ftpServer answers one FTP session over a directory. It speaks just enough
// of the protocol for FTPConn: login, FEAT, TYPE, EPSV/PASV, REST, SIZE,
// RETR, STOR, LIST, RNFR/RNTO, DELE, MKD and QUIT.
type ftpServer struct {
	root     string
	listener net.Listener
	// refuseData answers EPSV and PASV with 502.
	refuseData bool
	done       chan struct{}

	mu        sync.Mutex
	transfers []string
}

func newFTPServer(t *testing.T, refuseData bool) *ftpServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &ftpServer{
		root:       t.TempDir(),
		listener:   l,
		refuseData: refuseData,
		done:       make(chan struct{}),
	}
	go s.serve()
	t.Cleanup(func() {
		l.Close()
		<-s.done
	})
	return s
}

// dial logs into s. The session is closed when the test ends.
func (s *ftpServer) dial(t *testing.T) *FTPConn {
	t.Helper()
	c := &FTPConn{
		Host:     "127.0.0.1",
		Port:     s.listener.Addr().(*net.TCPAddr).Port,
		User:     "tester",
		Password: "secret",
		Timeout:  5 * time.Second,
	}
	require.NoError(t, c.Init(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

// file returns the on-disk location of a remote path.
func (s *ftpServer) file(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Join("/", p)))
}

func (s *ftpServer) write(t *testing.T, p string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(s.file(p)), 0755))
	require.NoError(t, os.WriteFile(s.file(p), data, 0644))
}

// lastTransfer describes the most recent RETR or STOR as "CMD TYPE REST".
func (s *ftpServer) lastTransfer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transfers) == 0 {
		return ""
	}
	return s.transfers[len(s.transfers)-1]
}

func (s *ftpServer) record(cmd, typ string, rest int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, fmt.Sprintf("%s %s %d", cmd, typ, rest))
}

func (s *ftpServer) serve() {
	defer close(s.done)

	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	reply := func(format string, args ...any) {
		tp.PrintfLine(format, args...)
	}

	var (
		typ        = "A"
		rest       int64
		data       net.Listener
		renameFrom string
	)
	defer func() {
		if data != nil {
			data.Close()
		}
	}()

	openData := func() (net.Listener, error) {
		if data != nil {
			data.Close()
		}
		return net.Listen("tcp", "127.0.0.1:0")
	}
	// accept takes the data connection the client dialed after EPSV/PASV.
	accept := func() (net.Conn, error) {
		if data == nil {
			return nil, fmt.Errorf("no data connection")
		}
		defer func() {
			data.Close()
			data = nil
		}()
		return data.Accept()
	}
	dropData := func() {
		if data != nil {
			data.Close()
			data = nil
		}
	}

	reply("220 test server ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(line, " ")

		switch strings.ToUpper(cmd) {
		case "USER":
			reply("331 Password required")
		case "PASS":
			reply("230 Logged in")
		case "FEAT":
			reply("211-Features:\r\n SIZE\r\n REST STREAM\r\n211 End")
		case "TYPE":
			typ = arg
			reply("200 Type set to %s", arg)
		case "EPSV", "PASV":
			if s.refuseData {
				reply("502 Command not implemented")
				break
			}
			l, err := openData()
			if err != nil {
				reply("425 %v", err)
				break
			}
			data = l
			port := l.Addr().(*net.TCPAddr).Port
			if strings.ToUpper(cmd) == "EPSV" {
				reply("229 Entering Extended Passive Mode (|||%d|)", port)
			} else {
				reply("227 Entering Passive Mode (127,0,0,1,%d,%d)", port/256, port%256)
			}
		case "REST":
			n, err := strconv.ParseInt(arg, 10, 64)
			if err != nil || n < 0 {
				reply("501 Bad offset")
				break
			}
			rest = n
			reply("350 Restarting at %d", n)
		case "SIZE":
			info, err := os.Stat(s.file(arg))
			if err != nil || !info.Mode().IsRegular() {
				reply("550 Could not get file size")
				break
			}
			reply("213 %d", info.Size())
		case "RETR":
			f, err := os.Open(s.file(arg))
			if err != nil {
				dropData()
				reply("550 No such file")
				break
			}
			dc, err := accept()
			if err != nil {
				f.Close()
				reply("425 %v", err)
				break
			}
			s.record("RETR", typ, rest)
			reply("150 Opening data connection")
			f.Seek(rest, io.SeekStart)
			io.Copy(dc, f)
			f.Close()
			dc.Close()
			rest = 0
			reply("226 Transfer complete")
		case "STOR":
			flags := os.O_WRONLY | os.O_CREATE
			if rest == 0 {
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(s.file(arg), flags, 0644)
			if err != nil {
				dropData()
				reply("553 Could not create file")
				break
			}
			dc, err := accept()
			if err != nil {
				f.Close()
				reply("425 %v", err)
				break
			}
			s.record("STOR", typ, rest)
			reply("150 Ok to send data")
			if rest > 0 {
				f.Truncate(rest)
				f.Seek(rest, io.SeekStart)
			}
			io.Copy(f, dc)
			f.Close()
			dc.Close()
			rest = 0
			reply("226 Transfer complete")
		case "LIST":
			entries, err := os.ReadDir(s.file(arg))
			if err != nil {
				dropData()
				reply("550 No such directory")
				break
			}
			dc, err := accept()
			if err != nil {
				reply("425 %v", err)
				break
			}
			reply("150 Here comes the directory listing")
			for _, e := range entries {
				info, err := e.Info()
				if err != nil {
					continue
				}
				perm := "-rw-r--r--"
				if e.IsDir() {
					perm = "drwxr-xr-x"
				}
				fmt.Fprintf(dc, "%s    1 ftp      ftp      %8d Jan 29 10:29 %s\r\n", perm, info.Size(), e.Name())
			}
			dc.Close()
			reply("226 Directory send OK")
		case "RNFR":
			if _, err := os.Stat(s.file(arg)); err != nil {
				reply("550 No such file")
				break
			}
			renameFrom = arg
			reply("350 Ready for RNTO")
		case "RNTO":
			if err := os.Rename(s.file(renameFrom), s.file(arg)); err != nil {
				reply("550 Rename failed")
				break
			}
			reply("250 Rename successful")
		case "DELE":
			if err := os.Remove(s.file(arg)); err != nil {
				reply("550 Delete operation failed")
				break
			}
			reply("250 Delete operation successful")
		case "MKD":
			if err := os.Mkdir(s.file(arg), 0755); err != nil {
				reply("550 Create directory operation failed")
				break
			}
			reply("257 \"%s\" created", arg)
		case "QUIT":
			reply("221 Goodbye")
			return
		default:
			reply("502 Command not implemented")
		}
	}
}
