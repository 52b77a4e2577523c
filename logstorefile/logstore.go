// Package logstorefile implements raft.LogStore as a single append-only
// file of length-prefixed JSON records, rebuilding its in-memory
// index-to-offset map by scanning the file on Open. It is grounded on the
// teacher's file-backed storage package, simplified to the subset of
// behaviour the replica core needs: durable append, suffix truncation, and
// range reads.
package logstorefile

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jathurchan/raftreplica/types"
)

type record struct {
	Index types.Index     `json:"index"`
	Term  types.Term      `json:"term"`
	Key   []byte          `json:"key,omitempty"`
	Entry []byte          `json:"entry,omitempty"`
	Kind  types.EntryKind `json:"kind"`
}

type offsetEntry struct {
	index  types.Index
	term   types.Term
	offset int64
}

// LogStore persists entries to a single append-only file, each record
// framed by a 4-byte big-endian length prefix.
type LogStore struct {
	path string

	mu     sync.RWMutex
	file   *os.File
	index  []offsetEntry
	offset int64
}

// New creates a LogStore backed by the file at path. Open must be called
// before use.
func New(path string) *LogStore {
	return &LogStore{path: path}
}

// Open opens (creating if absent) the backing file and rebuilds the
// in-memory offset index by scanning it start to end.
func (s *LogStore) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("logstorefile: open %q: %w", s.path, err)
	}
	s.file = f
	return s.rebuildLocked()
}

// rebuildLocked scans the file from the start, truncating at the first
// corrupt or partial record (a torn write from a crash mid-append).
func (s *LogStore) rebuildLocked() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(s.file)
	s.index = s.index[:0]
	var offset int64

	for {
		rec, n, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			if truncErr := s.file.Truncate(offset); truncErr != nil {
				return fmt.Errorf("logstorefile: truncate corrupt tail: %w", truncErr)
			}
			break
		}
		s.index = append(s.index, offsetEntry{index: rec.Index, term: rec.Term, offset: offset})
		offset += n
	}
	s.offset = offset
	_, err := s.file.Seek(0, io.SeekEnd)
	return err
}

func readRecord(r *bufio.Reader) (*record, int64, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, 0, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, 0, io.ErrUnexpectedEOF
	}
	var rec record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, 0, err
	}
	return &rec, int64(4 + length), nil
}

// Close flushes and closes the backing file.
func (s *LogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Append implements raft.LogStore, fsyncing before returning so a
// successful call durably survives a crash.
func (s *LogStore) Append(term types.Term, key, entry []byte, kind types.EntryKind) (types.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := types.Index(len(s.index) + 1)
	rec := record{Index: idx, Term: term, Key: key, Entry: entry, Kind: kind}
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := s.file.Write(lenBuf[:]); err != nil {
		return 0, err
	}
	if _, err := s.file.Write(payload); err != nil {
		return 0, err
	}
	if err := s.file.Sync(); err != nil {
		return 0, err
	}

	s.index = append(s.index, offsetEntry{index: idx, term: term, offset: s.offset})
	s.offset += int64(4 + len(payload))
	return idx, nil
}

// TruncateSuffix implements raft.LogStore by rewriting the file without
// the discarded suffix.
func (s *LogStore) TruncateSuffix(from types.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from == 0 || int(from) > len(s.index) {
		return nil
	}
	keep := s.index[:from-1]

	tmpPath := s.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("logstorefile: open tmp: %w", err)
	}
	var offset int64
	for _, e := range keep {
		entries, err := s.readAtLocked(e.offset)
		if err != nil {
			_ = tmp.Close()
			return err
		}
		payload, err := json.Marshal(record{Index: entries.Index, Term: entries.Term, Key: entries.Key, Entry: entries.Entry, Kind: entries.Kind})
		if err != nil {
			_ = tmp.Close()
			return err
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		if _, err := tmp.Write(lenBuf[:]); err != nil {
			_ = tmp.Close()
			return err
		}
		if _, err := tmp.Write(payload); err != nil {
			_ = tmp.Close()
			return err
		}
		offset += int64(4 + len(payload))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	s.file = f
	s.offset = offset
	for i := range keep {
		keep[i].offset = 0
	}
	return s.rebuildLocked()
}

func (s *LogStore) readAtLocked(offset int64) (*types.LogEntry, error) {
	if _, err := s.file.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	rec, _, err := readRecord(bufio.NewReader(s.file))
	if err != nil {
		return nil, err
	}
	return &types.LogEntry{Index: rec.Index, Term: rec.Term, Key: rec.Key, Entry: rec.Entry, Kind: rec.Kind}, nil
}

// Entries implements raft.LogStore.
func (s *LogStore) Entries(from, to types.Index) ([]types.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if from == 0 || from > to || len(s.index) == 0 {
		return nil, nil
	}
	out := make([]types.LogEntry, 0, to-from+1)
	for _, e := range s.index {
		if e.index < from {
			continue
		}
		if e.index > to {
			break
		}
		entry, err := s.readAtLocked(e.offset)
		if err != nil {
			return nil, fmt.Errorf("logstorefile: read index %d: %w", e.index, err)
		}
		out = append(out, *entry)
	}
	if _, err := s.file.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	return out, nil
}

// TermAt implements raft.LogStore.
func (s *LogStore) TermAt(index types.Index) (types.Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.index {
		if e.index == index {
			return e.term, nil
		}
	}
	return 0, nil
}

// FirstIndex implements raft.LogStore.
func (s *LogStore) FirstIndex() types.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.index) == 0 {
		return 0
	}
	return s.index[0].index
}

// LastIndex implements raft.LogStore.
func (s *LogStore) LastIndex() types.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.index) == 0 {
		return 0
	}
	return s.index[len(s.index)-1].index
}
