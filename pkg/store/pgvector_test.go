package store_test

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/newsagent/internal/models"
	"github.com/xhad/newsagent/pkg/logger"
	"github.com/xhad/newsagent/pkg/store"
)

func getTestConfig(t *testing.T) store.PGConfig {
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return store.PGConfig{
		ConnString:  connString,
		TablePrefix: "test_" + uuid.NewString()[:8],
		VectorDim:   3,
	}
}

func TestPGPersister(t *testing.T) {
	ctx := context.Background()
	config := getTestConfig(t)

	p, err := store.NewPGPersister(ctx, config)
	require.NoError(t, err)
	defer p.Close()

	snap, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.ProcessedIDs)
	assert.Empty(t, snap.Entries)

	snap = &store.Snapshot{
		ProcessedIDs: []string{"a", "b"},
		Entries: []store.Entry{
			{Record: models.MemoryRecord{ID: "a", Title: "Rates", Score: 80}, Vector: []float32{1, 0, 0}},
			{Record: models.MemoryRecord{ID: "b", Title: "Oil", Score: 60}, Vector: []float32{0, 1, 0}},
		},
	}
	require.NoError(t, p.Save(ctx, snap))

	// Saving the same state again writes nothing new
	require.NoError(t, p.Save(ctx, snap))

	reloaded, err := store.NewPGPersister(ctx, config)
	require.NoError(t, err)
	defer reloaded.Close()

	got, err := reloaded.Load(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, got.ProcessedIDs)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "a", got.Entries[0].Record.ID)
	assert.Equal(t, []float32{0, 1, 0}, got.Entries[1].Vector)

	results, err := reloaded.Nearest(ctx, []float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Greater(t, results[0].Similarity, float32(0.9))
}

func TestMemoryStoreWithPGPersister(t *testing.T) {
	ctx := context.Background()
	config := getTestConfig(t)

	p, err := store.NewPGPersister(ctx, config)
	require.NoError(t, err)
	defer p.Close()

	emb := newFakeEmbedder()
	emb.vectors["Fed holds rates\nNo change"] = []float32{1, 0, 0}
	emb.vectors["rates"] = []float32{1, 0.05, 0}

	m := store.NewWithConfig(store.MemoryStoreConfig{}, emb, p, logger.Discard())
	require.NoError(t, m.Load(ctx))

	item := models.NewsItem{ID: "fed", Title: "Fed holds rates"}
	require.NoError(t, m.AddNews(ctx, item, models.CombinedAnalysis{Summary: "No change", Score: 75}))

	related, err := m.FindRelatedNews(ctx, "rates", 3, 0.75)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "fed", related[0].ID)
}

// Nearest must match an exhaustive scan once the table holds far more rows
// than an approximate index would probe.
func TestPGNearestMatchesExhaustiveScan(t *testing.T) {
	ctx := context.Background()
	config := getTestConfig(t)

	p, err := store.NewPGPersister(ctx, config)
	require.NoError(t, err)
	defer p.Close()

	rng := rand.New(rand.NewSource(7))
	snap := &store.Snapshot{}
	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("item-%d", i)
		vec := []float32{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
		snap.ProcessedIDs = append(snap.ProcessedIDs, id)
		snap.Entries = append(snap.Entries, store.Entry{Record: models.MemoryRecord{ID: id}, Vector: vec})
	}
	require.NoError(t, p.Save(ctx, snap))

	query := []float32{0.3, -0.7, 0.2}
	type scored struct {
		id  string
		sim float64
	}
	all := make([]scored, len(snap.Entries))
	for i, e := range snap.Entries {
		all[i] = scored{id: e.Record.ID, sim: cosine(query, e.Vector)}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].sim > all[j].sim })

	const k = 5
	got, err := p.Nearest(ctx, query, k)
	require.NoError(t, err)
	require.Len(t, got, k)
	for i := range got {
		assert.Equal(t, all[i].id, got[i].ID)
		assert.InDelta(t, all[i].sim, got[i].Similarity, 1e-4)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
