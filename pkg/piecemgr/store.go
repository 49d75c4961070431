package piecemgr

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// StoreMetrics instruments the badger-backed resume store. Defined here
// (rather than importing the concrete Prometheus collector) so this package
// does not depend on pkg/metrics/prometheus, which in turn depends on this
// package's PieceMetrics interface.
type StoreMetrics interface {
	RecordRead(kind string)
	RecordWrite(kind string)
	RecordError(op string)
	RecordValueLogGC()
}

// Key namespace, same prefixed-key idiom as the badger metadata store this
// is grounded on: one prefix per record kind, torrent id appended as the
// variable suffix.
//
// Record kind   Prefix   Key format          Value
// ===========================================================
// Bitmap        "b:"     b:<torrentID>       piece bitfield bytes
// Checkpoint    "h:"     h:<torrentID>:<piece>  hashOffset (uint64 LE)
const (
	prefixBitmap     = "b:"
	prefixCheckpoint = "h:"
)

func keyBitmap(torrentID string) []byte {
	return []byte(prefixBitmap + torrentID)
}

func keyCheckpoint(torrentID string, piece int) []byte {
	return []byte(fmt.Sprintf("%s%s:%d", prefixCheckpoint, torrentID, piece))
}

// Store persists the piece manager's completed-piece bitmap and per-piece
// hash-offset checkpoints across process restarts (spec §3 "Partial-hash
// record ... survives block eviction"; this extends that survival across
// process restarts too, per SPEC_FULL §6.2 domain-stack badger wiring). The
// Manager writes these records during a full check but never reads them
// back, so a full check after a restart begins again at piece 0.
type Store struct {
	db      *badger.DB
	metrics StoreMetrics
}

// OpenStore opens (creating if absent) a badger database at dir for
// piece-manager persistence. Callers own the returned Store and must Close
// it; nil Config.Store in Manager disables persistence entirely. m may be
// nil to disable metrics recording.
func OpenStore(dir string, m StoreMetrics) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("piecemgr: open store: %w", err)
	}
	return &Store{db: db, metrics: m}, nil
}

func (s *Store) recordRead(kind string) {
	if s.metrics != nil {
		s.metrics.RecordRead(kind)
	}
}

func (s *Store) recordWrite(kind string) {
	if s.metrics != nil {
		s.metrics.RecordWrite(kind)
	}
}

func (s *Store) recordError(op string) {
	if s.metrics != nil {
		s.metrics.RecordError(op)
	}
}

func (s *Store) recordValueLogGC() {
	if s.metrics != nil {
		s.metrics.RecordValueLogGC()
	}
}

// Close releases the underlying badger database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// SaveProgress persists the current bitmap for torrentID. Tick calls it
// after every piece it examines.
func (s *Store) SaveProgress(torrentID string, bitmap *Bitmap) error {
	if s == nil {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyBitmap(torrentID), bitmap.Bytes())
	})
	if err != nil {
		s.recordError("save_progress")
		return err
	}
	s.recordWrite("bitmap")
	return nil
}

// LoadBitmap returns the persisted bitmap for torrentID, if any.
func (s *Store) LoadBitmap(torrentID string, numPieces int) (*Bitmap, bool) {
	if s == nil {
		return nil, false
	}
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBitmap(torrentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	bm, ok := BitmapFromBytes(raw, numPieces)
	if ok {
		s.recordRead("bitmap")
	}
	return bm, ok
}

// SaveCheckpoint persists the incremental hash offset reached for piece
// (spec §3 "Partial-hash record"). Only the offset is stored, not the
// partial SHA-1 state.
func (s *Store) SaveCheckpoint(torrentID string, piece int, hashOffset int64) error {
	if s == nil {
		return nil
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(hashOffset))
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyCheckpoint(torrentID, piece), buf)
	})
	if err != nil {
		s.recordError("save_checkpoint")
		return err
	}
	s.recordWrite("checkpoint")
	return nil
}

// LoadCheckpoint returns the persisted hash offset for piece, if any.
func (s *Store) LoadCheckpoint(torrentID string, piece int) (int64, bool) {
	if s == nil {
		return 0, false
	}
	var offset int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyCheckpoint(torrentID, piece))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("piecemgr: malformed checkpoint record")
			}
			offset = int64(binary.LittleEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		return 0, false
	}
	s.recordRead("checkpoint")
	return offset, true
}

// DiscardCheckpoint removes piece's checkpoint once it has been fully
// hashed and verified (spec §3 "discarded on verification").
func (s *Store) DiscardCheckpoint(torrentID string, piece int) error {
	if s == nil {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyCheckpoint(torrentID, piece))
	})
	if err != nil {
		s.recordError("discard_checkpoint")
		return err
	}
	return nil
}

// RunValueLogGC triggers one badger value-log GC cycle, discarding space
// from deleted/overwritten checkpoint records. Returns badger.ErrNoRewrite
// when there was nothing to reclaim, which callers typically ignore.
func (s *Store) RunValueLogGC(discardRatio float64) error {
	if s == nil {
		return nil
	}
	err := s.db.RunValueLogGC(discardRatio)
	if err == nil {
		s.recordValueLogGC()
	}
	return err
}
