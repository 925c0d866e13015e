// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/luxfi/conductor/payload"
)

var (
	bucketByDigest = []byte("by_digest")
	bucketByHeight = []byte("by_height")
	bucketMeta     = []byte("meta")
	keyLatest      = []byte("latest")
)

// BoltStore is a disk-backed PayloadStore for callers that need
// certified payloads to survive a restart. The core itself never
// requires this; it is a second, concrete implementation of the
// pluggable store contract so the contract is exercised against more
// than the in-memory reference.
type BoltStore[P payload.Payload] struct {
	db     *bbolt.DB
	decode payload.Decoder[P]
}

// OpenBoltStore opens (creating if necessary) a bbolt database at path
// and prepares it as a PayloadStore. decode reconstructs a P from the
// bytes written by Payload.Encode.
func OpenBoltStore[P payload.Payload](path string, decode payload.Decoder[P]) (*BoltStore[P], error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, newStoreError("open", fmt.Errorf("%w: %v", ErrBackend, err))
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketByDigest, bucketByHeight, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, newStoreError("init", fmt.Errorf("%w: %v", ErrBackend, err))
	}

	return &BoltStore[P]{db: db, decode: decode}, nil
}

// Close releases the underlying database handle.
func (s *BoltStore[P]) Close() error {
	return s.db.Close()
}

func (s *BoltStore[P]) Store(p P) error {
	d := p.Digest()
	h := p.Height()
	body := p.Encode()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		digests := tx.Bucket(bucketByDigest)
		if digests.Get(d[:]) != nil {
			return ErrAlreadyExists
		}
		if err := digests.Put(d[:], body); err != nil {
			return err
		}

		heightKey := heightKey(h)
		if err := tx.Bucket(bucketByHeight).Put(heightKey, d[:]); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		current := meta.Get(keyLatest)
		if current == nil || binary.BigEndian.Uint64(current) < h {
			if err := meta.Put(keyLatest, heightKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if err == ErrAlreadyExists {
			return newStoreError("store", ErrAlreadyExists)
		}
		return newStoreError("store", fmt.Errorf("%w: %v", ErrBackend, err))
	}
	return nil
}

func (s *BoltStore[P]) Get(d payload.Digest) (P, bool) {
	var zero P
	var body []byte
	_ = s.db.View(func(tx *bbolt.Tx) error {
		body = tx.Bucket(bucketByDigest).Get(d[:])
		return nil
	})
	if body == nil {
		return zero, false
	}
	return s.decode(body)
}

func (s *BoltStore[P]) GetByHeight(h uint64) (P, bool) {
	var zero P
	var digest []byte
	_ = s.db.View(func(tx *bbolt.Tx) error {
		digest = tx.Bucket(bucketByHeight).Get(heightKey(h))
		return nil
	})
	if digest == nil {
		return zero, false
	}
	var d payload.Digest
	copy(d[:], digest)
	return s.Get(d)
}

func (s *BoltStore[P]) Latest() (P, bool) {
	var zero P
	var heightKeyBytes []byte
	_ = s.db.View(func(tx *bbolt.Tx) error {
		heightKeyBytes = tx.Bucket(bucketMeta).Get(keyLatest)
		return nil
	})
	if heightKeyBytes == nil {
		return zero, false
	}
	return s.GetByHeight(binary.BigEndian.Uint64(heightKeyBytes))
}

func heightKey(h uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, h)
	return b
}
