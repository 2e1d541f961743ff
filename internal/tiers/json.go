package tiers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"admission/internal/models"
)

// JSONStore implements Store using a single JSON file. It keeps an in-memory
// cache that is revalidated against the file's mtime, so an operator editing
// the catalog on disk is picked up within the cache TTL.
type JSONStore struct {
	filePath     string
	cacheTTL     time.Duration
	mu           sync.RWMutex
	data         *jsonData
	lastModified time.Time
	cacheExpiry  time.Time
}

// jsonData is the on-disk document.
type jsonData struct {
	Tiers       []*models.Tier     `json:"tiers"`
	Overrides   []*models.Override `json:"overrides"`
	LastUpdated time.Time          `json:"last_updated"`
}

// NewJSONStore creates a file-backed tier catalog, creating the file with an
// empty document if it does not exist yet.
func NewJSONStore(config Config) (*JSONStore, error) {
	cacheTTL := 5 * time.Minute
	if config.CacheTTL > 0 {
		cacheTTL = config.CacheTTL
	}

	store := &JSONStore{
		filePath: config.Path,
		cacheTTL: cacheTTL,
	}

	if err := store.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}
	if err := store.loadData(); err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}
	return store, nil
}

func (j *JSONStore) ensureFileExists() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		empty := &jsonData{
			Tiers:       []*models.Tier{},
			Overrides:   []*models.Override{},
			LastUpdated: time.Now(),
		}
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.saveDataLocked(empty)
	}
	return nil
}

// loadData refreshes the cache from disk. It uses double-checked locking: a
// fast read-lock path for cache hits and a write-lock slow path that
// re-validates before doing any I/O.
func (j *JSONStore) loadData() error {
	j.mu.RLock()
	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		j.mu.RUnlock()
		return nil
	}
	j.mu.RUnlock()

	j.mu.Lock()
	defer j.mu.Unlock()

	// Another goroutine may have loaded while we waited for the write lock.
	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		return nil
	}

	info, err := os.Stat(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	// File unchanged: extend the cache without re-reading.
	if j.data != nil && !info.ModTime().After(j.lastModified) {
		j.cacheExpiry = time.Now().Add(j.cacheTTL)
		return nil
	}

	fileData, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data jsonData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	j.data = &data
	j.lastModified = info.ModTime()
	j.cacheExpiry = time.Now().Add(j.cacheTTL)
	return nil
}

// saveDataLocked writes the document to disk and refreshes cache bookkeeping.
// Callers must hold the write lock.
func (j *JSONStore) saveDataLocked(data *jsonData) error {
	data.LastUpdated = time.Now()

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(j.filePath, payload, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if info, err := os.Stat(j.filePath); err == nil {
		j.lastModified = info.ModTime()
	}
	j.data = data
	j.cacheExpiry = time.Now().Add(j.cacheTTL)
	return nil
}

func (j *JSONStore) Tiers(ctx context.Context) ([]*models.Tier, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	result := make([]*models.Tier, 0, len(j.data.Tiers))
	for _, tier := range j.data.Tiers {
		tierCopy := *tier
		result = append(result, &tierCopy)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].Name < result[k].Name })
	return result, nil
}

func (j *JSONStore) GetTier(ctx context.Context, name string) (*models.Tier, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, tier := range j.data.Tiers {
		if tier.Name == name {
			tierCopy := *tier
			return &tierCopy, nil
		}
	}
	return nil, ErrNotFound
}

func (j *JSONStore) SaveTier(ctx context.Context, tier *models.Tier) error {
	if err := j.loadData(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	data := j.cloneLocked()
	tierCopy := *tier

	replaced := false
	for i, existing := range data.Tiers {
		if existing.Name == tier.Name {
			data.Tiers[i] = &tierCopy
			replaced = true
			break
		}
	}
	if !replaced {
		data.Tiers = append(data.Tiers, &tierCopy)
	}
	return j.saveDataLocked(data)
}

func (j *JSONStore) DeleteTier(ctx context.Context, name string) error {
	if err := j.loadData(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	data := j.cloneLocked()

	for _, o := range data.Overrides {
		if o.Tier == name {
			return ErrTierInUse
		}
	}

	for i, tier := range data.Tiers {
		if tier.Name == name {
			data.Tiers = append(data.Tiers[:i], data.Tiers[i+1:]...)
			return j.saveDataLocked(data)
		}
	}
	return ErrNotFound
}

func (j *JSONStore) Overrides(ctx context.Context) ([]*models.Override, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	result := make([]*models.Override, 0, len(j.data.Overrides))
	for _, o := range j.data.Overrides {
		oCopy := *o
		result = append(result, &oCopy)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].Identity < result[k].Identity })
	return result, nil
}

func (j *JSONStore) GetOverride(ctx context.Context, identity string) (*models.Override, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, o := range j.data.Overrides {
		if o.Identity == identity {
			oCopy := *o
			return &oCopy, nil
		}
	}
	return nil, ErrNotFound
}

func (j *JSONStore) SaveOverride(ctx context.Context, override *models.Override) error {
	if err := j.loadData(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	data := j.cloneLocked()

	tierExists := false
	for _, tier := range data.Tiers {
		if tier.Name == override.Tier {
			tierExists = true
			break
		}
	}
	if !tierExists {
		return ErrNotFound
	}

	oCopy := *override
	replaced := false
	for i, existing := range data.Overrides {
		if existing.Identity == override.Identity {
			data.Overrides[i] = &oCopy
			replaced = true
			break
		}
	}
	if !replaced {
		data.Overrides = append(data.Overrides, &oCopy)
	}
	return j.saveDataLocked(data)
}

func (j *JSONStore) DeleteOverride(ctx context.Context, identity string) error {
	if err := j.loadData(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	data := j.cloneLocked()
	for i, o := range data.Overrides {
		if o.Identity == identity {
			data.Overrides = append(data.Overrides[:i], data.Overrides[i+1:]...)
			return j.saveDataLocked(data)
		}
	}
	return ErrNotFound
}

func (j *JSONStore) Ping(ctx context.Context) error {
	_, err := os.Stat(j.filePath)
	return err
}

func (j *JSONStore) Close() error {
	return nil
}

// cloneLocked returns a mutable copy of the cached document. Callers must
// hold the write lock.
func (j *JSONStore) cloneLocked() *jsonData {
	data := &jsonData{
		Tiers:     make([]*models.Tier, len(j.data.Tiers)),
		Overrides: make([]*models.Override, len(j.data.Overrides)),
	}
	for i, tier := range j.data.Tiers {
		tierCopy := *tier
		data.Tiers[i] = &tierCopy
	}
	for i, o := range j.data.Overrides {
		oCopy := *o
		data.Overrides[i] = &oCopy
	}
	return data
}
