// Package kvstore persists conditions and their fulfillments in a
// Badger key-value database, keyed by condition fingerprint.
package kvstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound indicates no record exists for the given fingerprint.
var ErrNotFound = errors.New("record not found")

// keyPrefix namespaces condition records within the database.
const keyPrefix = "cond/"

// Record is one stored condition, optionally with a fulfillment proving
// it. Records are CBOR-encoded.
type Record struct {
	ID          string    `cbor:"id"`
	URI         string    `cbor:"uri"`
	Condition   []byte    `cbor:"condition"`
	Fulfillment []byte    `cbor:"fulfillment,omitempty"`
	CreatedAt   time.Time `cbor:"created_at"`
}

// Options configures a Store.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps all data in memory, for tests and ephemeral use.
	InMemory bool
	Logger   zerolog.Logger
}

// Store is a Badger-backed condition store.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithLogger(nil)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}
	opts.Logger.Debug().Str("path", opts.Path).Bool("in_memory", opts.InMemory).Msg("condition store opened")
	return &Store{db: db, logger: opts.Logger}, nil
}

// Put stores a record under the condition fingerprint, replacing any
// existing record. A missing ID and creation time are filled in.
func (s *Store) Put(fingerprint []byte, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	value, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(fingerprint), value)
	})
	if err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	s.logger.Debug().Str("id", rec.ID).Hex("fingerprint", fingerprint).Msg("record stored")
	return nil
}

// Get retrieves the record for a condition fingerprint.
func (s *Store) Get(fingerprint []byte) (*Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: fingerprint %s", ErrNotFound, hex.EncodeToString(fingerprint))
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return cbor.Unmarshal(value, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every stored record.
func (s *Store) List() ([]*Record, error) {
	var records []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(itOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			err := it.Item().Value(func(value []byte) error {
				return cbor.Unmarshal(value, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// Delete removes the record for a condition fingerprint, if present.
func (s *Store) Delete(fingerprint []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(fingerprint))
	})
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(fingerprint []byte) []byte {
	return append([]byte(keyPrefix), hex.EncodeToString(fingerprint)...)
}
