package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/newsagent/internal/models"
)

type PGConfig struct {
	ConnString  string
	TablePrefix string
	VectorDim   int
}

// PGPersister keeps the processed-id set and the vector index in Postgres
// with the pgvector extension. Nearest-neighbour queries run in the database
// as an exact scan using the cosine distance operator.
type PGPersister struct {
	config PGConfig
	pool   *pgxpool.Pool

	writtenIDs     map[string]struct{}
	writtenEntries int
}

func NewPGPersister(ctx context.Context, config PGConfig) (*PGPersister, error) {
	if config.TablePrefix == "" {
		config.TablePrefix = "news"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	p := &PGPersister{
		config:     config,
		pool:       pool,
		writtenIDs: make(map[string]struct{}),
	}

	if err := p.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

func (p *PGPersister) idsTable() string {
	return pgx.Identifier{p.config.TablePrefix + "_processed_ids"}.Sanitize()
}

func (p *PGPersister) memoryTable() string {
	return pgx.Identifier{p.config.TablePrefix + "_memory"}.Sanitize()
}

// schema returns the DDL run on startup, in order. The memory table carries
// no approximate (ivfflat/hnsw) index, so Nearest scans every row. An index
// left by older deployments is dropped.
func (p *PGPersister) schema() []string {
	return []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, p.idsTable()),
		// seq is the position in the append-only index; id may repeat
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGINT PRIMARY KEY,
			id TEXT NOT NULL,
			title TEXT,
			score INTEGER,
			category TEXT,
			published TEXT,
			embedding_text TEXT,
			embedding vector(%d)
		)`, p.memoryTable(), p.config.VectorDim),
		fmt.Sprintf("DROP INDEX IF EXISTS %s",
			pgx.Identifier{p.config.TablePrefix + "_memory_embedding_idx"}.Sanitize()),
	}
}

func (p *PGPersister) initialize(ctx context.Context) error {
	for _, stmt := range p.schema() {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (p *PGPersister) Load(ctx context.Context) (*Snapshot, error) {
	p.writtenIDs = make(map[string]struct{})
	p.writtenEntries = 0

	snap := &Snapshot{}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, p.idsTable()))
	if err != nil {
		return nil, &StorageLoadError{Path: p.idsTable(), Err: err}
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &StorageLoadError{Path: p.idsTable(), Err: err}
	}
	snap.ProcessedIDs = ids

	rows, err = p.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, title, score, category, published, embedding_text, embedding
		FROM %s
		ORDER BY seq`, p.memoryTable()))
	if err != nil {
		return nil, &StorageLoadError{Path: p.memoryTable(), Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec models.MemoryRecord
			vec pgvector.Vector
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Score, &rec.Category, &rec.Published, &rec.EmbeddingText, &vec); err != nil {
			return nil, &StorageLoadError{Path: p.memoryTable(), Err: fmt.Errorf("failed to scan row: %w", err)}
		}
		snap.Entries = append(snap.Entries, Entry{Record: rec, Vector: vec.Slice()})
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageLoadError{Path: p.memoryTable(), Err: err}
	}

	for _, id := range ids {
		p.writtenIDs[id] = struct{}{}
	}
	p.writtenEntries = len(snap.Entries)

	return snap, nil
}

// Save inserts ids and entries not yet written in a single transaction.
func (p *PGPersister) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return &StorageSaveError{Path: p.memoryTable(), Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback(ctx)

	insertEntry := fmt.Sprintf(`
		INSERT INTO %s (seq, id, title, score, category, published, embedding_text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (seq) DO NOTHING`, p.memoryTable())

	start := p.writtenEntries
	if start > len(snap.Entries) {
		start = len(snap.Entries)
	}
	for i := start; i < len(snap.Entries); i++ {
		e := snap.Entries[i]
		_, err := tx.Exec(ctx, insertEntry,
			i,
			e.Record.ID,
			e.Record.Title,
			e.Record.Score,
			e.Record.Category,
			e.Record.Published,
			e.Record.EmbeddingText,
			pgvector.NewVector(e.Vector),
		)
		if err != nil {
			return &StorageSaveError{Path: p.memoryTable(), Err: fmt.Errorf("failed to insert memory: %w", err)}
		}
	}

	insertID := fmt.Sprintf(`INSERT INTO %s (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, p.idsTable())
	var fresh []string
	for _, id := range snap.ProcessedIDs {
		if _, ok := p.writtenIDs[id]; ok {
			continue
		}
		if _, err := tx.Exec(ctx, insertID, id); err != nil {
			return &StorageSaveError{Path: p.idsTable(), Err: fmt.Errorf("failed to insert id: %w", err)}
		}
		fresh = append(fresh, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return &StorageSaveError{Path: p.memoryTable(), Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	for _, id := range fresh {
		p.writtenIDs[id] = struct{}{}
	}
	p.writtenEntries = len(snap.Entries)
	return nil
}

// Nearest returns the k closest entries by cosine similarity. It over-fetches
// so that duplicate ids can be collapsed without coming up short.
func (p *PGPersister) Nearest(ctx context.Context, vector []float32, k int) ([]models.MemoryRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, title, score, category, published, embedding_text,
			1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		p.memoryTable())

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), k*2)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	defer rows.Close()

	var records []models.MemoryRecord
	for rows.Next() {
		var (
			rec models.MemoryRecord
			sim float64
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Score, &rec.Category, &rec.Published, &rec.EmbeddingText, &sim); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Similarity = float32(sim)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return firstUnique(records, k), nil
}

func (p *PGPersister) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
