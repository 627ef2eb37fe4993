package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/context-cleaner/supervise-go/internal/watchdog"
)

// ServiceTypeSupervisor tags the supervisor's own registry entry.
const ServiceTypeSupervisor = "supervisor"

// Entry is one registered process. The supervisor owns its entry; the
// watchdog only reads it.
type Entry struct {
	ProcessID    int               `json:"pid"`
	ServiceType  string            `json:"service_type"`
	RegisteredAt time.Time         `json:"registration_time"`
	Env          map[string]string `json:"environment_vars"`
}

// PID implements watchdog.ProcessEntry.
func (e *Entry) PID() int { return e.ProcessID }

// RegistrationTime implements watchdog.ProcessEntry.
func (e *Entry) RegistrationTime() time.Time { return e.RegisteredAt }

// EnvironmentVars implements watchdog.ProcessEntry.
func (e *Entry) EnvironmentVars() map[string]string { return e.Env }

// IsAlive implements watchdog.ProcessEntry with an OS-level liveness probe.
func (e *Entry) IsAlive() bool { return pidAlive(e.ProcessID) }

// Compile-time verification that Entry satisfies the watchdog's view.
var _ watchdog.ProcessEntry = (*Entry)(nil)

// FileStore is a process registry persisted as one JSON file under the
// runtime directory. Writes are atomic (write-to-temp plus rename) so a
// reader never observes a torn file.
type FileStore struct {
	log  *slog.Logger
	path string

	// mu serializes read-modify-write cycles within this process.
	// Cross-process safety comes from the atomic rename.
	mu sync.Mutex
}

// Compile-time verification that FileStore satisfies the watchdog's read path.
var _ watchdog.Registry = (*FileStore)(nil)

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(log *slog.Logger, path string) *FileStore {
	return &FileStore{
		log:  log.With("component", "registry"),
		path: path,
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Register inserts or replaces the entry keyed by (service type, pid).
func (s *FileStore) Register(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	replaced := false

	for i, existing := range entries {
		if existing.ServiceType == entry.ServiceType && existing.ProcessID == entry.ProcessID {
			entries[i] = entry
			replaced = true

			break
		}
	}

	if !replaced {
		entries = append(entries, entry)
	}

	if err := s.store(entries); err != nil {
		return err
	}

	s.log.Debug("registered process", "pid", entry.ProcessID, "service_type", entry.ServiceType)

	return nil
}

// Deregister removes the entry keyed by (service type, pid). Removing an
// absent entry is not an error.
func (s *FileStore) Deregister(_ context.Context, serviceType string, pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	kept := entries[:0]

	for _, entry := range entries {
		if entry.ServiceType == serviceType && entry.ProcessID == pid {
			continue
		}

		kept = append(kept, entry)
	}

	return s.store(kept)
}

// Heartbeat refreshes HEARTBEAT_AT/HEARTBEAT_TIMEOUT on the entry keyed by
// (service type, pid).
func (s *FileStore) Heartbeat(_ context.Context, serviceType string, pid int, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.ServiceType != serviceType || entry.ProcessID != pid {
			continue
		}

		if entry.Env == nil {
			entry.Env = make(map[string]string, 2)
		}

		entry.Env[watchdog.EnvHeartbeatAt] = time.Now().UTC().Format(time.RFC3339)
		entry.Env[watchdog.EnvHeartbeatTimeout] = strconv.Itoa(int(timeout / time.Second))

		return s.store(entries)
	}

	return fmt.Errorf("no registry entry for %s pid %d", serviceType, pid)
}

// GetProcessesByType implements watchdog.Registry.
func (s *FileStore) GetProcessesByType(_ context.Context, serviceType string) ([]watchdog.ProcessEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	var matched []watchdog.ProcessEntry

	for _, entry := range entries {
		if entry.ServiceType == serviceType {
			matched = append(matched, entry)
		}
	}

	return matched, nil
}

// load reads the backing file; a missing file is an empty registry.
// Callers hold mu.
func (s *FileStore) load() ([]*Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read registry: %w", err)
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	return entries, nil
}

// store atomically replaces the backing file. Callers hold mu.
func (s *FileStore) store(entries []*Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}

	return nil
}
