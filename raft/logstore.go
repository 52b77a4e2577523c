package raft

import (
	"fmt"

	"github.com/jathurchan/raftreplica/types"
)

// LogStore is the external collaborator responsible for durable log
// storage (spec §6). Implementations must make append() durable before
// returning; the Log View built on top of it guarantees no index it
// returns can be lost to a crash.
type LogStore interface {
	// Open prepares the store for use. Idempotent.
	Open() error

	// Close releases resources held by the store. Idempotent.
	Close() error

	// Append durably persists a new entry at the next index for the given
	// term, returning the assigned index.
	Append(term types.Term, key, entry []byte, kind types.EntryKind) (types.Index, error)

	// TruncateSuffix discards every entry with index >= from.
	TruncateSuffix(from types.Index) error

	// Entries returns the entries in the inclusive range [from, to].
	Entries(from, to types.Index) ([]types.LogEntry, error)

	// TermAt returns the term of the entry at index, or 0 if absent.
	TermAt(index types.Index) (types.Term, error)

	// FirstIndex returns the index of the oldest retained entry, or 0 if
	// the log is empty.
	FirstIndex() types.Index

	// LastIndex returns the index of the newest entry, or 0 if the log is
	// empty.
	LastIndex() types.Index
}

// logView is a thin adapter over LogStore exposing exactly the operations
// role code needs, per spec §4.2. All calls happen on the context thread.
type logView struct {
	store LogStore
}

func newLogView(store LogStore) *logView {
	return &logView{store: store}
}

func (lv *logView) append(term types.Term, key, entry []byte, kind types.EntryKind) (types.Index, error) {
	idx, err := lv.store.Append(term, key, entry, kind)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageFault, err)
	}
	return idx, nil
}

func (lv *logView) truncateSuffix(from types.Index) error {
	if err := lv.store.TruncateSuffix(from); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFault, err)
	}
	return nil
}

func (lv *logView) entries(from, to types.Index) ([]types.LogEntry, error) {
	entries, err := lv.store.Entries(from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFault, err)
	}
	return entries, nil
}

func (lv *logView) termAt(index types.Index) types.Term {
	if index == 0 {
		return 0
	}
	term, err := lv.store.TermAt(index)
	if err != nil {
		return 0
	}
	return term
}

func (lv *logView) lastIndex() types.Index {
	return lv.store.LastIndex()
}

func (lv *logView) firstIndex() types.Index {
	return lv.store.FirstIndex()
}
