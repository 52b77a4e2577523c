// Package logstoremem implements raft.LogStore in memory, for tests and
// for single-process demos where durability across restarts is not
// required.
package logstoremem

import (
	"sync"

	"github.com/jathurchan/raftreplica/types"
)

// LogStore is a mutex-protected, append-only in-memory log.
type LogStore struct {
	mu      sync.RWMutex
	entries []types.LogEntry
}

// New returns an empty LogStore.
func New() *LogStore {
	return &LogStore{}
}

// Open implements raft.LogStore; there is nothing to open in memory.
func (s *LogStore) Open() error { return nil }

// Close implements raft.LogStore; there is nothing to close in memory.
func (s *LogStore) Close() error { return nil }

// Append implements raft.LogStore.
func (s *LogStore) Append(term types.Term, key, entry []byte, kind types.EntryKind) (types.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := types.Index(len(s.entries) + 1)
	s.entries = append(s.entries, types.LogEntry{
		Index: idx, Term: term, Key: key, Entry: entry, Kind: kind,
	})
	return idx, nil
}

// TruncateSuffix implements raft.LogStore, discarding every entry at or
// after from.
func (s *LogStore) TruncateSuffix(from types.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from == 0 || int(from) > len(s.entries)+1 {
		return nil
	}
	s.entries = s.entries[:from-1]
	return nil
}

// Entries implements raft.LogStore, returning the inclusive [from, to] range.
func (s *LogStore) Entries(from, to types.Index) ([]types.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if from == 0 || from > to || len(s.entries) == 0 {
		return nil, nil
	}
	out := make([]types.LogEntry, 0, to-from+1)
	for _, e := range s.entries {
		if e.Index >= from && e.Index <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

// TermAt implements raft.LogStore, returning 0 for an out-of-range index.
func (s *LogStore) TermAt(index types.Index) (types.Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index == 0 || int(index) > len(s.entries) {
		return 0, nil
	}
	return s.entries[index-1].Term, nil
}

// FirstIndex implements raft.LogStore.
func (s *LogStore) FirstIndex() types.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[0].Index
}

// LastIndex implements raft.LogStore.
func (s *LogStore) LastIndex() types.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[len(s.entries)-1].Index
}
