// Package paths provides centralized path construction for the devattach data directory.
package paths

import (
	"fmt"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Paths provides typed path construction for the devattach data directory.
type Paths struct {
	dataDir string
}

// New creates a new Paths instance for the given data directory.
func New(dataDir string) *Paths {
	return &Paths{dataDir: dataDir}
}

// DataDir returns the root data directory.
func (p *Paths) DataDir() string {
	return p.dataDir
}

// Instance path methods

// InstancesDir returns the root directory holding per-VM working directories.
func (p *Paths) InstancesDir() string {
	return filepath.Join(p.dataDir, "guests")
}

// InstanceDir returns the working directory for a VM.
func (p *Paths) InstanceDir(id string) string {
	return filepath.Join(p.InstancesDir(), id)
}

// InstanceMetadata returns the path to the stored metadata of a VM.
func (p *Paths) InstanceMetadata(id string) string {
	return filepath.Join(p.InstanceDir(id), "metadata.json")
}

// InstanceSocket returns the path to a socket inside the VM working directory.
func (p *Paths) InstanceSocket(id, name string) string {
	return filepath.Join(p.InstanceDir(id), name)
}

// InstanceLogs returns the logs directory for a VM.
func (p *Paths) InstanceLogs(id string) string {
	return filepath.Join(p.InstanceDir(id), "logs")
}

// InstanceLog returns the path to the devattach log for a VM.
func (p *Paths) InstanceLog(id string) string {
	return filepath.Join(p.InstanceLogs(id), "devattach.log")
}

// ScopedJoin joins rel onto base and guarantees the result stays within base.
// ".." components and symlinks that would escape base are clamped to base,
// the same way a chroot would resolve them.
func ScopedJoin(base, rel string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("scoped join %q: empty base directory", rel)
	}
	joined, err := securejoin.SecureJoin(base, rel)
	if err != nil {
		return "", fmt.Errorf("scoped join %q onto %q: %w", rel, base, err)
	}
	return joined, nil
}
