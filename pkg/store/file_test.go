package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/newsagent/internal/models"
)

func testEntries() []Entry {
	return []Entry{
		{Record: models.MemoryRecord{ID: "a", Title: "Alpha", Score: 60, Category: "Markets", EmbeddingText: "Alpha\nsum"}, Vector: []float32{0.1, 0.2, 0.3}},
		{Record: models.MemoryRecord{ID: "b", Title: "Beta", Score: 90, Published: "Mon, 02 Jan 2006"}, Vector: []float32{-1, 0, 1.5}},
	}
}

func TestIndexRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeIndex(&buf, testEntries()))

	got, err := readIndex(&buf, int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, testEntries(), got)
}

func TestReadIndexRejectsBadInput(t *testing.T) {
	var good bytes.Buffer
	require.NoError(t, writeIndex(&good, testEntries()))
	raw := good.Bytes()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "bad magic", input: append([]byte("XXXX"), raw[4:]...)},
		{name: "truncated vectors", input: raw[:len(raw)-3]},
		{name: "trailing data", input: append(append([]byte{}, raw...), 0x01)},
		{name: "huge dimension", input: withHeader(raw, func(h *indexHeader) { h.Dim = 0xF0000000 })},
		{name: "dimension larger than file", input: withHeader(raw, func(h *indexHeader) { h.Dim = 4096 })},
		{name: "count larger than file", input: withHeader(raw, func(h *indexHeader) { h.Count = 1 << 30 })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readIndex(bytes.NewReader(tt.input), int64(len(tt.input)))
			assert.Error(t, err)
		})
	}
}

// withHeader returns a copy of raw with its header rewritten by edit.
func withHeader(raw []byte, edit func(*indexHeader)) []byte {
	var hdr indexHeader
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &hdr); err != nil {
		panic(err)
	}
	edit(&hdr)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		panic(err)
	}
	buf.Write(raw[binary.Size(hdr):])
	return buf.Bytes()
}

func TestFilePersisterCorruptHeaderIsLoadError(t *testing.T) {
	var good bytes.Buffer
	require.NoError(t, writeIndex(&good, testEntries()))

	dir := t.TempDir()
	bad := withHeader(good.Bytes(), func(h *indexHeader) { h.Dim = 0xF0000000 })
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), bad, 0o644))

	_, err := NewFilePersister(dir).Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsStorageLoadError(err))
}

func TestWriteIndexRejectsMixedDimensions(t *testing.T) {
	entries := testEntries()
	entries[1].Vector = []float32{1, 2}

	var buf bytes.Buffer
	assert.Error(t, writeIndex(&buf, entries))
}

func TestFilePersisterFirstRun(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "missing"))

	snap, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.ProcessedIDs)
	assert.Empty(t, snap.Entries)
}

func TestFilePersisterSaveLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewFilePersister(dir)

	snap := &Snapshot{ProcessedIDs: []string{"a", "b", "c"}, Entries: testEntries()}
	require.NoError(t, p.Save(ctx, snap))

	data, err := os.ReadFile(filepath.Join(dir, ProcessedIDsFile))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b","c"]`, string(data))

	got, err := NewFilePersister(dir).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.ProcessedIDs, got.ProcessedIDs)
	assert.Equal(t, snap.Entries, got.Entries)

	// No temp files are left behind
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFilePersisterSkipsUnchangedIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewFilePersister(dir)

	require.NoError(t, p.Save(ctx, &Snapshot{ProcessedIDs: []string{"a"}, Entries: testEntries()}))
	indexPath := filepath.Join(dir, IndexFile)
	before, err := os.Stat(indexPath)
	require.NoError(t, err)

	require.NoError(t, os.Remove(indexPath))
	require.NoError(t, p.Save(ctx, &Snapshot{ProcessedIDs: []string{"a", "z"}, Entries: testEntries()}))

	_, err = os.Stat(indexPath)
	assert.True(t, os.IsNotExist(err), "index rewritten although it did not grow")
	assert.NotZero(t, before.Size())
}

func TestFilePersisterCorruptIDs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProcessedIDsFile), []byte("{not json"), 0o644))

	_, err := NewFilePersister(dir).Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsStorageLoadError(err))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestNearestKeepsBestHitPerID(t *testing.T) {
	entries := []Entry{
		{Record: models.MemoryRecord{ID: "a"}, Vector: []float32{0.5, 0.5}},
		{Record: models.MemoryRecord{ID: "b"}, Vector: []float32{0, 1}},
		{Record: models.MemoryRecord{ID: "a"}, Vector: []float32{1, 0}},
	}

	got := nearest(entries, []float32{1, 0}, 3)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.Equal(t, "b", got[1].ID)
}
