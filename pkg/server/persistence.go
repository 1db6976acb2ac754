package server

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Store persists graph snapshots in badger. Each graph serializes to a
// sequence of virtual keys; key i of graph g lives under
// "graph:{g}:vkey:{i}" with the key count under "graph:{g}:vkeys".
// SaveGraph retries with exponential backoff, badger can reject
// transactions transiently under conflict; DeleteGraph writes once.
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) the snapshot store at dir. An empty dir
// opens an in-memory store.
func OpenStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot store")
	}
	return &Store{db: db}, nil
}

// Close releases the store.
func (s *Store) Close() error { return s.db.Close() }

func countKey(name string) []byte {
	return []byte(fmt.Sprintf("graph:%s:vkeys", name))
}

func vkey(name string, i int) []byte {
	return []byte(fmt.Sprintf("graph:%s:vkey:%d", name, i))
}

func retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}

// SaveGraph writes the virtual key sequence for one graph, replacing
// any previous snapshot.
func (s *Store) SaveGraph(name string, keys [][]byte) error {
	write := func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			var cnt [8]byte
			binary.LittleEndian.PutUint64(cnt[:], uint64(len(keys)))
			if err := txn.Set(countKey(name), cnt[:]); err != nil {
				return err
			}
			for i, key := range keys {
				if err := txn.Set(vkey(name, i), key); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return errors.Wrap(backoff.Retry(write, retryPolicy()), "save graph snapshot")
}

// LoadGraph reads the virtual key sequence for one graph, or nil when
// no snapshot exists.
func (s *Store) LoadGraph(name string) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(countKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var count uint64
		if err := item.Value(func(v []byte) error {
			count = binary.LittleEndian.Uint64(v)
			return nil
		}); err != nil {
			return err
		}
		for i := uint64(0); i < count; i++ {
			item, err := txn.Get(vkey(name, int(i)))
			if err != nil {
				return err
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			keys = append(keys, v)
		}
		return nil
	})
	return keys, errors.Wrap(err, "load graph snapshot")
}

// DeleteGraph removes a graph's snapshot.
func (s *Store) DeleteGraph(name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(countKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var count uint64
		if err := item.Value(func(v []byte) error {
			count = binary.LittleEndian.Uint64(v)
			return nil
		}); err != nil {
			return err
		}
		for i := uint64(0); i < count; i++ {
			if err := txn.Delete(vkey(name, int(i))); err != nil {
				return err
			}
		}
		return txn.Delete(countKey(name))
	})
	return errors.Wrap(err, "delete graph snapshot")
}

// GraphNames lists the graphs with stored snapshots.
func (s *Store) GraphNames() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("graph:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := string(it.Item().Key())
			const suffix = ":vkeys"
			if len(k) > len("graph:")+len(suffix) && k[len(k)-len(suffix):] == suffix {
				names = append(names, k[len("graph:"):len(k)-len(suffix)])
			}
		}
		return nil
	})
	return names, errors.Wrap(err, "list graph snapshots")
}
