// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage wraps the key-value database behind the durable pieces of
// the suite: consumed replay nonces and the event journal.
package storage

import (
	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
)

// Storage wraps luxfi's database interface.
type Storage struct {
	db database.Database
}

// NewStorage opens a store of the given type. "memory" is for tests and
// ephemeral runs; anything else opens badger at path.
func NewStorage(dbType string, path string) (*Storage, error) {
	var db database.Database
	var err error

	switch dbType {
	case "memory":
		db = memdb.New()
	default:
		db, err = badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, err
		}
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Put(key, value []byte) error {
	return s.db.Put(key, value)
}

func (s *Storage) Get(key []byte) ([]byte, error) {
	return s.db.Get(key)
}

func (s *Storage) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

func (s *Storage) Delete(key []byte) error {
	return s.db.Delete(key)
}

// NewBatch creates a new batch for atomic operations.
func (s *Storage) NewBatch() database.Batch {
	return s.db.NewBatch()
}

func (s *Storage) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return s.db.NewIteratorWithPrefix(prefix)
}

func (s *Storage) Close() error {
	return s.db.Close()
}
