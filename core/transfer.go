package core

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"remotefile/config"
	"remotefile/protocols"
)

// Dialer opens a connection; protocols.Dial in production.
type Dialer func(ctx context.Context, ep protocols.Endpoint) (protocols.Conn, error)

// TransferManager runs configured jobs, one connection per run.
type TransferManager struct {
	Config         *config.Config
	HistoryManager *HistoryManager
	Dial           Dialer
	Log            logrus.FieldLogger
}

func NewTransferManager(cfg *config.Config, hm *HistoryManager, log logrus.FieldLogger) *TransferManager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TransferManager{
		Config:         cfg,
		HistoryManager: hm,
		Dial:           protocols.Dial,
		Log:            log,
	}
}

// Open dials the named connection and binds a RemoteFile to remotePath on
// it. The caller closes the returned connection.
func (tm *TransferManager) Open(ctx context.Context, connName, remotePath string, log logrus.FieldLogger) (*RemoteFile, protocols.Conn, error) {
	connCfg, ok := tm.Config.Connections[connName]
	if !ok {
		return nil, nil, fmt.Errorf("unknown connection %q", connName)
	}
	ep, err := connCfg.Endpoint()
	if err != nil {
		return nil, nil, fmt.Errorf("connection %s: %w", connName, err)
	}
	conn, err := tm.Dial(ctx, ep)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", connName, err)
	}

	if log == nil {
		log = tm.Log
	}
	file, err := New(remotePath, conn,
		WithLogger(log.WithField("connection", connName)),
		WithResolver(connCfg.Resolver()),
	)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return file, conn, nil
}

func (tm *TransferManager) RunJob(ctx context.Context, job config.Job) (err error) {
	log := tm.Log.WithField("job", job.Name)
	log.Info("Starting job")

	rec := JobRecord{
		Time:      time.Now(),
		Direction: job.Direction,
		Remote:    job.Remote,
		Local:     job.Local,
	}
	defer func() {
		rec.Success = err == nil
		if err != nil {
			rec.Error = err.Error()
		}
		if tm.HistoryManager != nil {
			tm.HistoryManager.Record(job.Name, rec)
			if serr := tm.HistoryManager.Save(); serr != nil {
				log.WithError(serr).Warn("Failed to save history")
			}
		}
	}()

	file, conn, err := tm.Open(ctx, job.Connection, job.Remote, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close connection")
		}
	}()

	var opts []TransferOption
	mode, err := job.TransferMode()
	if err != nil {
		return err
	}
	if mode != 0 {
		opts = append(opts, WithMode(mode))
	}
	if job.Resume {
		opts = append(opts, WithAutoResume())
	}

	switch job.Direction {
	case "get":
		rec.Local, err = tm.runGet(ctx, file, job, opts)
	case "put":
		err = tm.runPut(ctx, file, conn, job, opts)
	default:
		err = fmt.Errorf("unknown direction %q", job.Direction)
	}
	if err != nil {
		return err
	}

	if info, serr := os.Stat(rec.Local); serr == nil {
		rec.Size = info.Size()
	}
	log.WithField("size", rec.Size).Info("Finished job")
	return nil
}

func (tm *TransferManager) runGet(ctx context.Context, file *RemoteFile, job config.Job, opts []TransferOption) (string, error) {
	local := job.Local
	intoDir := strings.HasSuffix(local, "/") || strings.HasSuffix(local, string(filepath.Separator))
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		intoDir = true
	}
	if intoDir {
		local = filepath.Join(local, file.Name())
	}

	if job.Mkdir {
		if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
			return local, fmt.Errorf("failed to mkdir %s: %w", filepath.Dir(local), err)
		}
	}

	if _, err := file.SaveToFile(ctx, local, opts...); err != nil {
		return local, err
	}
	if job.DeleteAfter {
		if err := file.Delete(ctx); err != nil {
			return local, err
		}
	}
	return local, nil
}

func (tm *TransferManager) runPut(ctx context.Context, file *RemoteFile, conn protocols.Conn, job config.Job, opts []TransferOption) error {
	if job.Mkdir {
		parent := path.Dir(job.Remote)
		if dm, ok := conn.(protocols.DirMaker); ok && parent != "." && parent != "/" {
			if err := dm.MkdirAll(ctx, parent); err != nil {
				return fmt.Errorf("failed to mkdir %s: %w", parent, err)
			}
		}
	}

	if _, err := file.Put(ctx, job.Local, opts...); err != nil {
		return err
	}

	perm, err := job.Perm()
	if err != nil {
		return err
	}
	if perm != 0 {
		if _, err := file.Chmod(ctx, perm); err != nil {
			return err
		}
	}
	return nil
}
