package voucher

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "vouchers"

// Store defines the interface for voucher storage. Stores are append-only and
// list in insertion order.
type Store interface {
	// Append stores a voucher
	Append(v *Voucher) error
	// List returns all vouchers in insertion order
	List() ([]*Voucher, error)
	// Close releases the store
	Close() error
}

// MemoryStore keeps vouchers for the lifetime of the process
type MemoryStore struct {
	mu       sync.RWMutex
	vouchers []*Voucher
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a voucher
func (m *MemoryStore) Append(v *Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vouchers = append(m.vouchers, v)
	return nil
}

// List returns a snapshot of all vouchers
func (m *MemoryStore) List() ([]*Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Voucher, len(m.vouchers))
	copy(out, m.vouchers)
	return out, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// BoltStore implements the Store interface using BoltDB
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) a BoltDB file
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// sequenceKey encodes a bucket sequence big-endian so keys sort in insertion order
func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Append stores a voucher under the next bucket sequence
func (b *BoltStore) Append(v *Voucher) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating sequence: %w", err)
		}

		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling voucher: %w", err)
		}
		return bucket.Put(sequenceKey(seq), data)
	})
}

// List returns all vouchers in insertion order
func (b *BoltStore) List() ([]*Voucher, error) {
	vouchers := make([]*Voucher, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var voucher Voucher
			if err := json.Unmarshal(v, &voucher); err != nil {
				return fmt.Errorf("unmarshaling voucher: %w", err)
			}
			vouchers = append(vouchers, &voucher)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return vouchers, nil
}

// Close closes the database
func (b *BoltStore) Close() error {
	return b.db.Close()
}
