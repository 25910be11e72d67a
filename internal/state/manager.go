package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"hostfs/internal/logging"

	"gopkg.in/yaml.v3"
)

var (
	logger = logging.GetLogger().WithPrefix("state")
)

const (
	backupDirName  = ".hostfs-backups"
	backupExt      = ".yaml"
	backupStampFmt = "20060102-150405.000000000"
)

// Manager handles loading and saving the mount table
type Manager struct {
	statePath   string
	backupDir   string
	backupCount int
	mu          sync.Mutex
}

// NewManager creates a new state manager for the given state file path.
// It ensures the state directory exists and is writable.
func NewManager(statePath string) (*Manager, error) {
	logger.Debug("Creating new state manager with path: %s", statePath)

	absPath, err := filepath.Abs(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state path %s: %w", statePath, err)
	}
	logger.Debug("Resolved state path: %s", absPath)

	// Create parent directory if it doesn't exist
	stateDir := filepath.Dir(absPath)
	logger.Debug("Ensuring state directory exists: %s", stateDir)
	if mkdirErr := os.MkdirAll(stateDir, 0o755); mkdirErr != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, mkdirErr)
	}

	backupDir := filepath.Join(stateDir, backupDirName)
	logger.Debug("Creating backup directory: %s", backupDir)
	if backupDirErr := os.MkdirAll(backupDir, 0o755); backupDirErr != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, backupDirErr)
	}

	logger.Debug("State manager initialization complete")
	return &Manager{
		statePath:   absPath,
		backupDir:   backupDir,
		backupCount: 5,
	}, nil
}

// Path returns the absolute path of the mount table file.
func (sm *Manager) Path() string {
	return sm.statePath
}

// Load reads the mount table. A missing or empty file is an empty table.
func (sm *Manager) Load() (*MountTable, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.load()
}

func (sm *Manager) load() (*MountTable, error) {
	logger.Debug("Loading state from: %s", sm.statePath)

	data, err := os.ReadFile(sm.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No state file, starting with an empty mount table")
			return &MountTable{Version: CurrentVersion}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &MountTable{Version: CurrentVersion}, nil
	}

	logger.Trace("Parsing existing state file (%d bytes)", len(data))
	var table MountTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if table.Version == 0 {
		table.Version = CurrentVersion
	}
	if table.Version > CurrentVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d", table.Version, CurrentVersion)
	}
	return &table, nil
}

// Save writes the mount table to disk.
// It automatically creates a backup before saving.
func (sm *Manager) Save(table *MountTable) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.save(table)
}

func (sm *Manager) save(table *MountTable) error {
	logger.Debug("Saving state to: %s", sm.statePath)

	// Create backup before saving
	if backupErr := sm.createBackup(); backupErr != nil {
		logger.Warn("Failed to create backup: %v", backupErr)
		// Continue with save even if backup fails
	}

	table.Version = CurrentVersion
	sortEntries(table.Mounts)

	data, marshalErr := yaml.Marshal(table)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal state: %w", marshalErr)
	}

	// Write to a sibling temp file and rename so readers never see a torn file
	tmp, err := os.CreateTemp(filepath.Dir(sm.statePath), ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set state file mode: %w", err)
	}
	if err := os.Rename(tmpPath, sm.statePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	logger.Trace("Wrote %d bytes of state data", len(data))
	return nil
}

// Register records entry, replacing any entry with the same mount point.
func (sm *Manager) Register(entry MountEntry) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	table, err := sm.load()
	if err != nil {
		return err
	}

	entry.MountPoint = filepath.Clean(entry.MountPoint)
	kept := table.Mounts[:0]
	for _, m := range table.Mounts {
		if m.MountPoint != entry.MountPoint {
			kept = append(kept, m)
		}
	}
	table.Mounts = append(kept, entry)

	logger.Info("Registering mount %s -> %s (pid %d)", entry.Source, entry.MountPoint, entry.PID)
	return sm.save(table)
}

// Deregister removes the entry for mountPoint and returns it.
func (sm *Manager) Deregister(mountPoint string) (MountEntry, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	table, err := sm.load()
	if err != nil {
		return MountEntry{}, err
	}

	mountPoint = filepath.Clean(mountPoint)
	for i, m := range table.Mounts {
		if m.MountPoint == mountPoint {
			table.Mounts = append(table.Mounts[:i], table.Mounts[i+1:]...)
			logger.Info("Deregistering mount %s", mountPoint)
			return m, sm.save(table)
		}
	}
	return MountEntry{}, fmt.Errorf("%s: %w", mountPoint, ErrMountNotFound)
}

// List returns all recorded mounts sorted by mount point.
func (sm *Manager) List() ([]MountEntry, error) {
	table, err := sm.Load()
	if err != nil {
		return nil, err
	}
	sortEntries(table.Mounts)
	return table.Mounts, nil
}

// Prune drops entries whose serving process has exited and returns them.
func (sm *Manager) Prune() ([]MountEntry, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	table, err := sm.load()
	if err != nil {
		return nil, err
	}

	var stale []MountEntry
	kept := table.Mounts[:0]
	for _, m := range table.Mounts {
		if m.Alive() {
			kept = append(kept, m)
			continue
		}
		logger.Debug("Pruning stale mount %s (pid %d)", m.MountPoint, m.PID)
		stale = append(stale, m)
	}
	if len(stale) == 0 {
		return nil, nil
	}
	table.Mounts = kept
	return stale, sm.save(table)
}

func sortEntries(entries []MountEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MountPoint < entries[j].MountPoint
	})
}

// createBackup creates a timestamped backup of the current state file
func (sm *Manager) createBackup() error {
	data, err := os.ReadFile(sm.statePath)
	if err != nil {
		// Skip if state file doesn't exist yet
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	timestamp := time.Now().Format(backupStampFmt)
	backupPath := filepath.Join(sm.backupDir, "state-"+timestamp+backupExt)

	logger.Debug("Creating backup: %s", backupPath)
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	return sm.cleanupOldBackups()
}

// Backups returns backup file paths, newest first.
func (sm *Manager) Backups() ([]string, error) {
	entries, err := os.ReadDir(sm.backupDir)
	if err != nil {
		return nil, err
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "state-") && filepath.Ext(entry.Name()) == backupExt {
			backups = append(backups, filepath.Join(sm.backupDir, entry.Name()))
		}
	}

	// Timestamps sort lexically; newest first
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// cleanupOldBackups removes old backup files, keeping only the most recent ones
func (sm *Manager) cleanupOldBackups() error {
	backups, err := sm.Backups()
	if err != nil {
		return err
	}

	// Remove old backups
	for i := sm.backupCount; i < len(backups); i++ {
		logger.Debug("Removing old backup: %s", backups[i])
		if err := os.Remove(backups[i]); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i], err)
		}
	}

	return nil
}
