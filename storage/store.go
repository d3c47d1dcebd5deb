// Package storage keeps the encoded state of orset
// replicas on stable storage so that a restarted
// replica continues from where it stopped.
package storage

import (
	"os"
	"time"

	"path/filepath"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Variables

var bucketReplicas = []byte("replicas")

// Interfaces

// Store persists opaque replica state by replica name.
type Store interface {

	// Save overwrites the state stored for name.
	Save(name string, state []byte) error

	// Load returns the state stored for name and
	// false if nothing was saved for name yet.
	Load(name string) ([]byte, bool, error)

	// Close releases the underlying resources.
	Close() error
}

// Structs

type boltStore struct {
	db *bolt.DB
}

// Functions

// Open opens or creates the bbolt database at path,
// creating missing parent directories.
func Open(path string) (Store, error) {

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for state database at '%s'", path)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open state database at '%s'", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReplicas)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create replicas bucket")
	}

	return &boltStore{db: db}, nil
}

func (s *boltStore) Save(name string, state []byte) error {

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReplicas).Put([]byte(name), state)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to save state of replica %s", name)
	}

	return nil
}

func (s *boltStore) Load(name string) ([]byte, bool, error) {

	var state []byte

	err := s.db.View(func(tx *bolt.Tx) error {

		// Values are only valid during the transaction.
		if v := tx.Bucket(bucketReplicas).Get([]byte(name)); v != nil {
			state = append([]byte{}, v...)
		}

		return nil
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to load state of replica %s", name)
	}

	return state, (state != nil), nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
