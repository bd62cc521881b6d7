package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/xhad/newsagent/internal/models"
	"github.com/xhad/newsagent/internal/types"
)

type MemoryStoreConfig struct {
	StoreThreshold      int     // analyses scoring at least this are embedded
	RelatedK            int     // default k for FindRelatedNews
	SimilarityThreshold float32 // default cosine similarity cutoff
}

// MemoryStore owns the processed-id set and the semantic vector index.
//
// Similarity is cosine similarity: higher means closer, and FindRelatedNews
// keeps hits with similarity >= threshold.
type MemoryStore struct {
	config    MemoryStoreConfig
	embedder  types.Embedder
	persister Persister
	log       logrus.FieldLogger

	mu        sync.RWMutex
	processed map[string]struct{}
	entries   []Entry
}

func NewWithConfig(config MemoryStoreConfig, embedder types.Embedder, persister Persister, log logrus.FieldLogger) *MemoryStore {
	if config.StoreThreshold == 0 {
		config.StoreThreshold = 50
	}
	if config.RelatedK == 0 {
		config.RelatedK = 3
	}
	if config.SimilarityThreshold == 0 {
		config.SimilarityThreshold = 0.75
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &MemoryStore{
		config:    config,
		embedder:  embedder,
		persister: persister,
		log:       log.WithField("component", "memory"),
		processed: make(map[string]struct{}),
	}
}

// Load replaces the in-memory state with what the persister holds. On failure
// the store is reset to empty and a *StorageLoadError is returned; the store
// remains usable.
func (m *MemoryStore) Load(ctx context.Context) error {
	snap, err := m.persister.Load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = make(map[string]struct{})
	m.entries = nil

	if err != nil {
		m.log.WithError(err).Warn("Could not load memory, starting empty")
		if IsStorageLoadError(err) {
			return err
		}
		return &StorageLoadError{Err: err}
	}
	if snap == nil {
		return nil
	}

	for _, id := range snap.ProcessedIDs {
		m.processed[id] = struct{}{}
	}
	m.entries = snap.Entries

	m.log.WithFields(logrus.Fields{
		"processed": len(m.processed),
		"memories":  len(m.entries),
	}).Info("Memory loaded")
	return nil
}

// Save flushes the full state to the persister.
func (m *MemoryStore) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(ctx)
}

func (m *MemoryStore) saveLocked(ctx context.Context) error {
	ids := make([]string, 0, len(m.processed))
	for id := range m.processed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	err := m.persister.Save(ctx, &Snapshot{
		ProcessedIDs: ids,
		Entries:      m.entries,
	})
	if err != nil {
		if IsStorageSaveError(err) {
			return err
		}
		return &StorageSaveError{Err: err}
	}
	return nil
}

// IsDuplicate reports whether id has completed a pipeline pass before.
func (m *MemoryStore) IsDuplicate(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processed[id]
	return ok
}

// AddNews marks item as processed and, when the analysis score reaches the
// store threshold, appends its embedding to the index. State is flushed
// before returning. If the embedding fails nothing changes; if the flush
// fails the in-memory change is rolled back and a *StorageSaveError returned.
func (m *MemoryStore) AddNews(ctx context.Context, item models.NewsItem, analysis models.CombinedAnalysis) error {
	var entry *Entry
	if analysis.Score >= m.config.StoreThreshold {
		text := models.EmbeddingText(item, analysis)
		vec, err := m.embedder.EmbedText(ctx, text)
		if err != nil {
			return fmt.Errorf("embed %s: %w", item.ID, err)
		}
		entry = &Entry{
			Record: models.MemoryRecord{
				ID:            item.ID,
				Title:         item.Title,
				Score:         analysis.Score,
				Category:      analysis.Category,
				Published:     item.Published,
				EmbeddingText: text,
			},
			Vector: vec,
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry != nil && len(m.entries) > 0 && len(m.entries[0].Vector) != len(entry.Vector) {
		return fmt.Errorf("embedding dimension %d does not match index dimension %d",
			len(entry.Vector), len(m.entries[0].Vector))
	}

	_, existed := m.processed[item.ID]
	m.processed[item.ID] = struct{}{}
	if entry != nil {
		m.entries = append(m.entries, *entry)
	}

	if err := m.saveLocked(ctx); err != nil {
		if !existed {
			delete(m.processed, item.ID)
		}
		if entry != nil {
			m.entries = m.entries[:len(m.entries)-1]
		}
		m.log.WithError(err).WithField("id", item.ID).Error("Failed to persist memory")
		return err
	}

	m.log.WithFields(logrus.Fields{
		"id":       item.ID,
		"score":    analysis.Score,
		"embedded": entry != nil,
	}).Debug("News added to memory")
	return nil
}

// FindRelatedNews returns up to k records whose cosine similarity to content
// is at least scoreThreshold, nearest first. A non-positive k or a negative
// threshold falls back to the configured default; a threshold of 0 keeps every
// non-opposing neighbour. An empty index yields an empty slice.
func (m *MemoryStore) FindRelatedNews(ctx context.Context, content string, k int, scoreThreshold float32) ([]models.MemoryRecord, error) {
	if k <= 0 {
		k = m.config.RelatedK
	}
	if scoreThreshold < 0 {
		scoreThreshold = m.config.SimilarityThreshold
	}

	m.mu.RLock()
	empty := len(m.entries) == 0
	m.mu.RUnlock()
	if empty || m.embedder == nil {
		return []models.MemoryRecord{}, nil
	}

	query, err := m.embedder.EmbedText(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var candidates []models.MemoryRecord
	if searcher, ok := m.persister.(NeighborSearcher); ok {
		candidates, err = searcher.Nearest(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("nearest neighbours: %w", err)
		}
	} else {
		m.mu.RLock()
		candidates = nearest(m.entries, query, k)
		m.mu.RUnlock()
	}

	related := make([]models.MemoryRecord, 0, len(candidates))
	for _, rec := range candidates {
		if rec.Similarity >= scoreThreshold {
			related = append(related, rec)
		}
	}
	return related, nil
}

type Stats struct {
	Processed int `json:"processed"`
	Memories  int `json:"memories"`
}

func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Processed: len(m.processed),
		Memories:  len(m.entries),
	}
}

func (m *MemoryStore) Close() error {
	return m.persister.Close()
}
