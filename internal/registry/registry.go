// Package registry implements the in-memory model catalog: a primary
// modelId->metadata index plus the type and version secondary indices
// described in spec.md §4.2. Grounded on the indexed-map-with-mutex shape of
// api/pkg/scheduler/slot_store.go.
package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/types"
)

// Stats summarizes the registry's contents.
type Stats struct {
	ModelCount int
	TypeCount  int
}

// SearchCriteria filters List/Search results.
type SearchCriteria struct {
	Type        string
	Description string // substring match, case-sensitive (kept simple)
}

// Patch carries the mutable fields Update may change.
type Patch struct {
	Type        *string
	Description *string
}

// Registry is the in-memory model catalog. versions[modelID] maps version
// string to metadata; the empty version key ("") is not special-cased —
// callers that never version their models simply use version "".
type Registry struct {
	mu         sync.RWMutex
	versions   map[string]map[string]*types.ModelMetadata // modelId -> version -> metadata
	latest     map[string]string                          // modelId -> most recently Put version
	typeIndex  map[string]map[string]struct{}              // type -> set(modelId)
	insertion  []string                                     // modelId insertion order, for stable List
}

func New() *Registry {
	return &Registry{
		versions:  make(map[string]map[string]*types.ModelMetadata),
		latest:    make(map[string]string),
		typeIndex: make(map[string]map[string]struct{}),
	}
}

// Put inserts or overwrites a (modelId, version) entry, stamping
// CreatedAt on first insertion and always bumping UpdatedAt. It migrates
// type-index membership atomically if the type changes across versions.
func (r *Registry) Put(modelID string, meta types.ModelMetadata) (types.ModelMetadata, error) {
	if modelID == "" {
		return types.ModelMetadata{}, apierr.ErrInvalidMetadata
	}
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	byVersion, exists := r.versions[modelID]
	if !exists {
		byVersion = make(map[string]*types.ModelMetadata)
		r.versions[modelID] = byVersion
		r.insertion = append(r.insertion, modelID)
	}

	existing, hadVersion := byVersion[meta.Version]
	meta.ModelID = modelID
	meta.UpdatedAt = now
	if hadVersion {
		meta.CreatedAt = existing.CreatedAt
	} else {
		meta.CreatedAt = now
	}

	stored := meta
	byVersion[meta.Version] = &stored
	if hadVersion && existing.Type != meta.Type {
		r.removeFromTypeIndex(existing.Type, modelID)
	}
	r.latest[modelID] = meta.Version
	r.addToTypeIndex(meta.Type, modelID)

	return stored, nil
}

func (r *Registry) addToTypeIndex(modelType, modelID string) {
	set, ok := r.typeIndex[modelType]
	if !ok {
		set = make(map[string]struct{})
		r.typeIndex[modelType] = set
	}
	set[modelID] = struct{}{}
}

func (r *Registry) removeFromTypeIndex(modelType, modelID string) {
	set, ok := r.typeIndex[modelType]
	if !ok {
		return
	}
	// Only drop modelID from the old type's index if no remaining version
	// of this model still uses that type.
	stillUsesType := false
	for _, m := range r.versions[modelID] {
		if m.Type == modelType {
			stillUsesType = true
			break
		}
	}
	if !stillUsesType {
		delete(set, modelID)
		if len(set) == 0 {
			delete(r.typeIndex, modelType)
		}
	}
}

// Get returns the metadata for modelID. If version is empty, the most
// recently Put version is returned.
func (r *Registry) Get(modelID, version string) (types.ModelMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byVersion, ok := r.versions[modelID]
	if !ok {
		return types.ModelMetadata{}, apierr.ErrModelNotFound
	}
	if version == "" {
		version = r.latest[modelID]
	}
	meta, ok := byVersion[version]
	if !ok {
		return types.ModelMetadata{}, apierr.ErrModelNotFound
	}
	return *meta, nil
}

// Update applies patch to (modelID, version), migrating the type index if
// Type changes, and bumps UpdatedAt.
func (r *Registry) Update(modelID, version string, patch Patch) (types.ModelMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byVersion, ok := r.versions[modelID]
	if !ok {
		return types.ModelMetadata{}, apierr.ErrModelNotFound
	}
	if version == "" {
		version = r.latest[modelID]
	}
	meta, ok := byVersion[version]
	if !ok {
		return types.ModelMetadata{}, apierr.ErrModelNotFound
	}

	oldType := meta.Type
	updated := *meta
	if patch.Type != nil {
		updated.Type = *patch.Type
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	updated.UpdatedAt = time.Now()

	byVersion[version] = &updated
	if updated.Type != oldType {
		r.removeFromTypeIndex(oldType, modelID)
	}
	r.addToTypeIndex(updated.Type, modelID)

	return updated, nil
}

// Delete removes (modelID, version). If version is empty, every version of
// modelID is removed. Returns whether anything was deleted.
func (r *Registry) Delete(modelID, version string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	byVersion, ok := r.versions[modelID]
	if !ok {
		return false
	}

	if version == "" {
		delete(r.versions, modelID)
		for _, m := range byVersion {
			r.removeFromTypeIndex(m.Type, modelID)
		}
		delete(r.latest, modelID)
		r.insertion = removeString(r.insertion, modelID)
		return true
	}

	m, ok := byVersion[version]
	if !ok {
		return false
	}
	delete(byVersion, version)
	r.removeFromTypeIndex(m.Type, modelID)
	if len(byVersion) == 0 {
		delete(r.versions, modelID)
		delete(r.latest, modelID)
		r.insertion = removeString(r.insertion, modelID)
	} else if r.latest[modelID] == version {
		// Fall back to any remaining version; which one follows map
		// iteration order and is not deterministic.
		for v := range byVersion {
			r.latest[modelID] = v
			break
		}
	}
	return true
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// List returns the latest-version metadata for every model, optionally
// filtered by type, in insertion order, capped at limit (0 = unlimited).
func (r *Registry) List(modelType string, limit int) []types.ModelMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.ModelMetadata
	for _, modelID := range r.insertion {
		meta := r.versions[modelID][r.latest[modelID]]
		if modelType != "" && meta.Type != modelType {
			continue
		}
		out = append(out, *meta)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Search filters the latest-version catalog by criteria.
func (r *Registry) Search(criteria SearchCriteria) []types.ModelMetadata {
	all := r.List(criteria.Type, 0)
	if criteria.Description == "" {
		return all
	}
	var out []types.ModelMetadata
	for _, m := range all {
		if strings.Contains(m.Description, criteria.Description) {
			out = append(out, m)
		}
	}
	return out
}

// Stats reports catalog size.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		ModelCount: len(r.versions),
		TypeCount:  len(r.typeIndex),
	}
}
