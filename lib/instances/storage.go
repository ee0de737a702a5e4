package instances

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Filesystem structure:
// {dataDir}/guests/{instance-id}/
//   metadata.json      # Instance metadata
//   ch.sock            # Cloud Hypervisor API socket (default location)
//   logs/
//     devattach.log    # Per-instance service log

// ensureDirectories creates the instance directory structure
func (m *manager) ensureDirectories(id string) error {
	dirs := []string{
		m.paths.InstanceDir(id),
		m.paths.InstanceLogs(id),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// loadMetadata loads instance metadata from disk
func (m *manager) loadMetadata(id string) (*StoredMetadata, error) {
	data, err := os.ReadFile(m.paths.InstanceMetadata(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta StoredMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// saveMetadata writes instance metadata to disk atomically
func (m *manager) saveMetadata(meta *StoredMetadata) error {
	metaPath := m.paths.InstanceMetadata(meta.Id)

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmp := metaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, metaPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write metadata: %w", err)
	}

	return nil
}

// deleteInstanceData removes all instance data from disk
func (m *manager) deleteInstanceData(id string) error {
	if err := os.RemoveAll(m.paths.InstanceDir(id)); err != nil {
		return fmt.Errorf("remove instance directory: %w", err)
	}
	return nil
}

// listMetadataFiles returns the IDs of all instances with stored metadata
func (m *manager) listMetadataFiles() ([]string, error) {
	guestsDir := m.paths.InstancesDir()

	if err := os.MkdirAll(guestsDir, 0755); err != nil {
		return nil, fmt.Errorf("create guests directory: %w", err)
	}

	entries, err := os.ReadDir(guestsDir)
	if err != nil {
		return nil, fmt.Errorf("read guests directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(guestsDir, entry.Name(), "metadata.json")); err == nil {
			ids = append(ids, entry.Name())
		}
	}

	return ids, nil
}
