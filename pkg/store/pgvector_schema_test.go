package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGSchemaHasNoApproximateIndex(t *testing.T) {
	p := &PGPersister{config: PGConfig{TablePrefix: "news", VectorDim: 3}}

	stmts := p.schema()
	require.NotEmpty(t, stmts)
	for _, stmt := range stmts {
		lower := strings.ToLower(stmt)
		assert.NotContains(t, lower, "ivfflat")
		assert.NotContains(t, lower, "hnsw")
		assert.NotContains(t, lower, "create index")
	}
	assert.Contains(t, stmts[len(stmts)-1], `DROP INDEX IF EXISTS "news_memory_embedding_idx"`)
	assert.Contains(t, stmts[2], "vector(3)")
}
