// Package journal keeps a local write-ahead log of ingested snapshots so the web server can
// stream them to browsers without polling the blob store.
package journal

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultJournalDir   = "./wal/snapshots"
	journalSegmentLimit = 1000
	journalMaxSegments  = 10
	snapshotKeyPrefix   = "snapshot_"
)

// WALStore persists ingested snapshots in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init snapshot journal")
	}

	return &WALStore{wal: wal}, nil
}

// Record appends the snapshot to the journal.
func (s *WALStore) Record(_ context.Context, snapshot domain.Snapshot) error {
	if s == nil || s.wal == nil {
		return errors.New("snapshot journal is not initialized")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, snapshotKeyPrefix+snapshot.TS, payload)
}

// SnapshotsAfter returns the journaled snapshots written after index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.SnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("snapshot journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.SnapshotRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, ok := s.wal.Get(idx)
		if !ok || !strings.HasPrefix(key, snapshotKeyPrefix) {
			// evicted segment or foreign entry
			continue
		}
		var snapshot domain.Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, errors.Wrap(err, "decode journaled snapshot")
		}
		records = append(records, domain.SnapshotRecord{Index: idx, Snapshot: snapshot})
	}

	return records, nil
}

// CurrentIndex returns the last written journal index.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
