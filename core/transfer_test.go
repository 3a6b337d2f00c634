package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remotefile/config"
	"remotefile/protocols"
)

type fixture struct {
	root  string
	local string
	tm    *TransferManager
	hm    *HistoryManager
}

func newFixture(t *testing.T, jobs ...config.Job) *fixture {
	t.Helper()
	fx := &fixture{root: t.TempDir(), local: t.TempDir()}
	cfg := &config.Config{
		Connections: map[string]config.Connection{
			"disk": {Type: "local", Root: fx.root},
		},
		Jobs: jobs,
	}
	fx.hm = NewHistoryManager(filepath.Join(t.TempDir(), "history.json"))
	fx.tm = NewTransferManager(cfg, fx.hm, quietLogger())
	return fx
}

func TestRunJobGetIntoDirectory(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(fx.root, "out"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(fx.root, "out", "report.csv"), []byte("a,b\n1,2\n"), 0644))

	job := config.Job{
		Name:        "fetch",
		Connection:  "disk",
		Direction:   "get",
		Remote:      "out/report.csv",
		Local:       filepath.Join(fx.local, "inbox") + "/",
		Mkdir:       true,
		DeleteAfter: true,
	}
	require.NoError(t, fx.tm.RunJob(context.Background(), job))

	got, err := os.ReadFile(filepath.Join(fx.local, "inbox", "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))
	assert.NoFileExists(t, filepath.Join(fx.root, "out", "report.csv"))

	rec, ok := fx.hm.Last("fetch")
	require.True(t, ok)
	assert.True(t, rec.Success)
	assert.EqualValues(t, 8, rec.Size)
	assert.Equal(t, filepath.Join(fx.local, "inbox", "report.csv"), rec.Local)
}

func TestRunJobPutWithChmod(t *testing.T) {
	fx := newFixture(t)
	src := filepath.Join(fx.local, "dump.bin")
	require.NoError(t, os.WriteFile(src, make([]byte, 300), 0644))

	job := config.Job{
		Name:       "push",
		Connection: "disk",
		Direction:  "put",
		Remote:     "backups/2024/dump.bin",
		Local:      src,
		Mkdir:      true,
		Chmod:      "600",
		Resume:     true,
	}
	require.NoError(t, fx.tm.RunJob(context.Background(), job))

	info, err := os.Stat(filepath.Join(fx.root, "backups", "2024", "dump.bin"))
	require.NoError(t, err)
	assert.EqualValues(t, 300, info.Size())
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	rec, _ := fx.hm.Last("push")
	assert.True(t, rec.Success)
	assert.EqualValues(t, 300, rec.Size)
}

func TestRunJobFailureRecorded(t *testing.T) {
	fx := newFixture(t)
	job := config.Job{Name: "broken", Connection: "disk", Direction: "get", Remote: "missing.csv", Local: filepath.Join(fx.local, "x.csv")}

	err := fx.tm.RunJob(context.Background(), job)
	assert.ErrorIs(t, err, ErrTransferFailure)

	rec, ok := fx.hm.Last("broken")
	require.True(t, ok)
	assert.False(t, rec.Success)
	assert.NotEmpty(t, rec.Error)

	// History is persisted after every run.
	loaded := NewHistoryManager(fx.hm.Path)
	require.NoError(t, loaded.Load())
	_, ok = loaded.Last("broken")
	assert.True(t, ok)
}

func TestRunJobUnknownConnection(t *testing.T) {
	fx := newFixture(t)
	err := fx.tm.RunJob(context.Background(), config.Job{Name: "x", Connection: "nope", Direction: "get"})
	assert.Error(t, err)
}

func TestOpenDialError(t *testing.T) {
	fx := newFixture(t)
	dialErr := errors.New("connection refused")
	fx.tm.Dial = func(ctx context.Context, ep protocols.Endpoint) (protocols.Conn, error) {
		assert.Equal(t, "local", ep.Type)
		return nil, dialErr
	}
	_, _, err := fx.tm.Open(context.Background(), "disk", "a.txt", nil)
	assert.ErrorIs(t, err, dialErr)
}

func TestOpenUsesInjectedDialer(t *testing.T) {
	fx := newFixture(t)
	conn := &mockConn{size: 7}
	fx.tm.Dial = func(ctx context.Context, ep protocols.Endpoint) (protocols.Conn, error) {
		return conn, nil
	}

	f, got, err := fx.tm.Open(context.Background(), "disk", "/data/a.bin", nil)
	require.NoError(t, err)
	assert.Same(t, conn, got)
	size, ok, err := f.Size(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 7, size)
}

func TestRunOnceAggregatesFailures(t *testing.T) {
	good := config.Job{Name: "good", Connection: "disk", Direction: "get", Remote: "a.txt"}
	bad1 := config.Job{Name: "bad1", Connection: "disk", Direction: "get", Remote: "missing1.txt"}
	bad2 := config.Job{Name: "bad2", Connection: "disk", Direction: "get", Remote: "missing2.txt"}
	fx := newFixture(t)
	good.Local = filepath.Join(fx.local, "a.txt")
	bad1.Local = filepath.Join(fx.local, "b.txt")
	bad2.Local = filepath.Join(fx.local, "c.txt")
	fx.tm.Config.Jobs = []config.Job{good, bad1, bad2}
	require.NoError(t, os.WriteFile(filepath.Join(fx.root, "a.txt"), []byte("hello"), 0644))

	r := NewRunner(fx.tm.Config, fx.tm, quietLogger())
	err := r.RunOnce(context.Background(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job bad1")
	assert.Contains(t, err.Error(), "job bad2")
	assert.NotContains(t, err.Error(), "job good")
	assert.ErrorIs(t, err, ErrTransferFailure)

	assert.FileExists(t, good.Local)
	assert.Equal(t, []string{"bad1", "bad2", "good"}, fx.hm.Names())
}

func TestRunnerStartRejectsBadCron(t *testing.T) {
	fx := newFixture(t,
		config.Job{Name: "ok", Cron: "@every 1h", Connection: "disk", Direction: "get", Remote: "a", Local: "b"},
		config.Job{Name: "bad", Cron: "not a cron", Connection: "disk", Direction: "get", Remote: "a", Local: "b"},
	)
	r := NewRunner(fx.tm.Config, fx.tm, quietLogger())
	err := r.Start(context.Background())
	<-r.Stop().Done()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule job bad")
	assert.Len(t, r.Cron.Entries(), 1)
}
