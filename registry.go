package dh_arm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.viam.com/rdk/logging"

	"dh_arm/kinematics"
)

// ModelEntry is a built kinematic model shared by every planner that uses the same source.
type ModelEntry struct {
	model     *kinematics.Model
	source    string
	refCount  int64 // Atomic reference counter
	lastError error
	mu        sync.RWMutex
}

// ModelRegistry builds each kinematic model once per source and hands the same immutable model
// to every planner service configured with it. Models are dropped when the last user releases
// them.
type ModelRegistry struct {
	entries map[string]*ModelEntry // source key -> entry
	mu      sync.RWMutex
}

// NewModelRegistry returns an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		entries: make(map[string]*ModelEntry),
	}
}

// BuildFunc constructs a model on first use.
type BuildFunc func() (*kinematics.Model, error)

// GetModel returns the model registered under key, building it with build when absent.
func (r *ModelRegistry) GetModel(key string, build BuildFunc, logger logging.Logger) (*kinematics.Model, error) {
	r.mu.RLock()
	entry, exists := r.entries[key]
	r.mu.RUnlock()

	if exists {
		if m, err := r.getExistingModel(entry); err == nil {
			return m, nil
		}
	}

	return r.createNewModel(key, build, logger)
}

func (r *ModelRegistry) getExistingModel(entry *ModelEntry) (*kinematics.Model, error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.model == nil {
		if entry.lastError != nil {
			return nil, fmt.Errorf("cached model build error: %w", entry.lastError)
		}
		return nil, fmt.Errorf("model not available for %s", entry.source)
	}

	atomic.AddInt64(&entry.refCount, 1)
	return entry.model, nil
}

func (r *ModelRegistry) createNewModel(key string, build BuildFunc, logger logging.Logger) (*kinematics.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.entries[key]; exists && entry.model != nil {
		return r.getExistingModel(entry)
	}

	entry := &ModelEntry{source: key}
	m, err := build()
	if err != nil {
		// keep the failure visible to Status, a later GetModel retries the build
		entry.lastError = err
		r.entries[key] = entry
		return nil, fmt.Errorf("failed to build kinematic model: %w", err)
	}

	entry.model = m
	atomic.StoreInt64(&entry.refCount, 1)
	r.entries[key] = entry

	if logger != nil {
		logger.Infof("Built %d-joint kinematic model %q for %s", m.DoF(), m.Name(), key)
	}
	return m, nil
}

// ReleaseModel drops one reference to key and forgets the model when none remain.
func (r *ModelRegistry) ReleaseModel(key string) {
	r.mu.RLock()
	entry, exists := r.entries[key]
	r.mu.RUnlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	remaining := atomic.AddInt64(&entry.refCount, -1)
	if remaining <= 0 {
		entry.model = nil
		entry.lastError = nil
		atomic.StoreInt64(&entry.refCount, 0)
	}
	entry.mu.Unlock()

	if remaining <= 0 {
		// the registry lock is always taken before an entry lock
		r.mu.Lock()
		if r.entries[key] == entry {
			delete(r.entries, key)
		}
		r.mu.Unlock()
	}
}

// Status reports the reference count, whether a model is loaded and the last build error.
func (r *ModelRegistry) Status(key string) (int64, bool, error) {
	r.mu.RLock()
	entry, exists := r.entries[key]
	r.mu.RUnlock()

	if !exists {
		return 0, false, nil
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return atomic.LoadInt64(&entry.refCount), entry.model != nil, entry.lastError
}

// Len is the number of registered sources.
func (r *ModelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
