package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xhad/newsagent/internal/models"
)

const (
	ProcessedIDsFile = "processed_ids.json"
	IndexFile        = "memory.index"

	indexMagic   = "NWMI"
	indexVersion = 1
	maxMetaLen   = 1 << 30
	maxDim       = 1 << 16
)

type indexHeader struct {
	Magic   [4]byte
	Version uint32
	Dim     uint32
	Count   uint32
	MetaLen uint32
}

// FilePersister keeps the processed-id set and the vector index as two files
// under one directory. Each file is replaced atomically, so a crash while
// writing one never corrupts the other. The index is written first: a crash
// between the two writes leaves an indexed item that is not yet marked
// processed, which can only produce a duplicate index entry on the next run.
type FilePersister struct {
	dir string

	// entries already on disk; -1 forces the next Save to write the index
	written int
}

func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{dir: dir, written: -1}
}

// Load reads both files. Missing files mean a first run and are not an error.
func (p *FilePersister) Load(ctx context.Context) (*Snapshot, error) {
	p.written = -1
	snap := &Snapshot{}

	idsPath := filepath.Join(p.dir, ProcessedIDsFile)
	data, err := os.ReadFile(idsPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, &StorageLoadError{Path: idsPath, Err: err}
	default:
		if err := json.Unmarshal(data, &snap.ProcessedIDs); err != nil {
			return nil, &StorageLoadError{Path: idsPath, Err: err}
		}
	}

	indexPath := filepath.Join(p.dir, IndexFile)
	f, err := os.Open(indexPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		p.written = 0
		return snap, nil
	case err != nil:
		return nil, &StorageLoadError{Path: indexPath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &StorageLoadError{Path: indexPath, Err: err}
	}

	entries, err := readIndex(f, info.Size())
	if err != nil {
		return nil, &StorageLoadError{Path: indexPath, Err: err}
	}
	snap.Entries = entries
	p.written = len(entries)

	return snap, nil
}

// Save writes the index (when it grew) and then the processed-id set.
func (p *FilePersister) Save(ctx context.Context, snap *Snapshot) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return &StorageSaveError{Path: p.dir, Err: err}
	}

	if len(snap.Entries) != p.written {
		indexPath := filepath.Join(p.dir, IndexFile)
		var buf bytes.Buffer
		if err := writeIndex(&buf, snap.Entries); err != nil {
			return &StorageSaveError{Path: indexPath, Err: err}
		}
		if err := writeFileAtomic(indexPath, buf.Bytes()); err != nil {
			return &StorageSaveError{Path: indexPath, Err: err}
		}
	}

	idsPath := filepath.Join(p.dir, ProcessedIDsFile)
	ids := snap.ProcessedIDs
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return &StorageSaveError{Path: idsPath, Err: err}
	}
	if err := writeFileAtomic(idsPath, data); err != nil {
		// the index on disk may now be ahead of the caller's rolled back state
		p.written = -1
		return &StorageSaveError{Path: idsPath, Err: err}
	}

	p.written = len(snap.Entries)
	return nil
}

func (p *FilePersister) Close() error {
	return nil
}

func writeIndex(w io.Writer, entries []Entry) error {
	var dim int
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}

	records := make([]models.MemoryRecord, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("entry %d has dimension %d, want %d", i, len(e.Vector), dim)
		}
		records[i] = e.Record
		records[i].Similarity = 0
	}
	meta, err := json.Marshal(records)
	if err != nil {
		return err
	}

	hdr := indexHeader{
		Version: indexVersion,
		Dim:     uint32(dim),
		Count:   uint32(len(entries)),
		MetaLen: uint32(len(meta)),
	}
	copy(hdr.Magic[:], indexMagic)

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if _, err := bw.Write(meta); err != nil {
		return err
	}
	for _, e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, e.Vector); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readIndex decodes an index of exactly size bytes. Header fields are checked
// against size before anything is allocated.
func readIndex(r io.Reader, size int64) ([]Entry, error) {
	br := bufio.NewReader(r)

	var hdr indexHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != indexMagic {
		return nil, fmt.Errorf("not a memory index")
	}
	if hdr.Version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", hdr.Version)
	}

	if hdr.MetaLen > maxMetaLen {
		return nil, fmt.Errorf("metadata block of %d bytes is too large", hdr.MetaLen)
	}
	if hdr.Dim > maxDim {
		return nil, fmt.Errorf("vector dimension %d is too large", hdr.Dim)
	}
	want := int64(binary.Size(hdr)) + int64(hdr.MetaLen) + int64(hdr.Count)*int64(hdr.Dim)*4
	if want != size {
		return nil, fmt.Errorf("header describes %d bytes, file has %d", want, size)
	}
	meta := make([]byte, hdr.MetaLen)
	if _, err := io.ReadFull(br, meta); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var records []models.MemoryRecord
	if err := json.Unmarshal(meta, &records); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if len(records) != int(hdr.Count) {
		return nil, fmt.Errorf("metadata has %d records, header says %d", len(records), hdr.Count)
	}

	entries := make([]Entry, len(records))
	for i := range records {
		vec := make([]float32, hdr.Dim)
		if err := binary.Read(br, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		entries[i] = Entry{Record: records[i], Vector: vec}
	}

	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after %d vectors", len(entries))
	}
	return entries, nil
}

// writeFileAtomic writes data to a temp file in the same directory, syncs it
// and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
