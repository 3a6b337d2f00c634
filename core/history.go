package core

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"
)

// JobRecord is the outcome of the most recent run of a job. Size is that of
// the transfer destination after the run.
type JobRecord struct {
	Time      time.Time `json:"time"`
	Success   bool      `json:"success"`
	Direction string    `json:"direction"`
	Remote    string    `json:"remote"`
	Local     string    `json:"local"`
	Size      int64     `json:"size"`
	Error     string    `json:"error,omitempty"`
}

type HistoryManager struct {
	// JobName -> last run
	Jobs map[string]JobRecord `json:"jobs"`
	Path string
	mu   sync.RWMutex
}

func NewHistoryManager(path string) *HistoryManager {
	return &HistoryManager{
		Jobs: make(map[string]JobRecord),
		Path: path,
	}
}

func (hm *HistoryManager) Load() error {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	data, err := os.ReadFile(hm.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	jobs := make(map[string]JobRecord)
	if err := json.Unmarshal(data, &jobs); err != nil {
		return err
	}
	hm.Jobs = jobs
	return nil
}

func (hm *HistoryManager) Save() error {
	if hm.Path == "" {
		return nil
	}
	// Exclusive so concurrent job runs do not interleave writes.
	hm.mu.Lock()
	defer hm.mu.Unlock()

	data, err := json.MarshalIndent(hm.Jobs, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(hm.Path, data, 0644)
}

func (hm *HistoryManager) Record(job string, rec JobRecord) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.Jobs[job] = rec
}

func (hm *HistoryManager) Last(job string) (JobRecord, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	rec, ok := hm.Jobs[job]
	return rec, ok
}

// Names returns the recorded job names in order.
func (hm *HistoryManager) Names() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.Jobs))
	for name := range hm.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
