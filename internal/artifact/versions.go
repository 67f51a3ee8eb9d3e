// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package artifact

import (
	"sort"
	"sync"
)

// versionTable tracks the latest stored version per artifact name.
type versionTable struct {
	mu      sync.RWMutex
	entries map[string]int
}

func newVersionTable() *versionTable {
	return &versionTable{entries: make(map[string]int)}
}

// observe records a version if it is newer than the known latest.
func (t *versionTable) observe(name string, version int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.entries[name]; !ok || version > current {
		t.entries[name] = version
	}
}

// latest returns the newest recorded version for a name.
func (t *versionTable) latest(name string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	version, ok := t.entries[name]
	return version, ok
}

// next returns the version number a new save should use.
func (t *versionTable) next(name string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[name] + 1
}

// names returns all known artifact names in sorted order.
func (t *versionTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries))
	for name := range t.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
