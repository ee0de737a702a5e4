package instances

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/onkernel/devattach/lib/logger"
	"github.com/samber/lo"
)

// ListInstances returns all instances, oldest first.
func (m *manager) ListInstances(ctx context.Context) ([]Instance, error) {
	result := m.snapshot()
	slices.SortFunc(result, func(a, b Instance) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Id, b.Id)
	})

	logger.FromContext(ctx).DebugContext(ctx, "listed instances", "count", len(result))
	return result, nil
}

// GetInstance returns a single instance by ID
func (m *manager) GetInstance(ctx context.Context, id string) (*Instance, error) {
	var result Instance
	err := m.withInstance(id, func(inst *instance) error {
		result = inst.view()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Resolve tries an exact ID, then an exact name, then a unique ID prefix.
func (m *manager) Resolve(ctx context.Context, idOrName string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.instances[idOrName]; ok {
		return idOrName, nil
	}

	entries := lo.Values(m.instances)
	if inst, ok := lo.Find(entries, func(inst *instance) bool {
		return inst.meta.Name == idOrName
	}); ok {
		return inst.meta.Id, nil
	}

	if idOrName == "" {
		return "", ErrNotFound
	}
	matches := lo.Filter(lo.Keys(m.instances), func(id string, _ int) bool {
		return strings.HasPrefix(id, idOrName)
	})
	switch len(matches) {
	case 0:
		return "", ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: prefix %q matches %d instances", ErrAmbiguousName, idOrName, len(matches))
	}
}
