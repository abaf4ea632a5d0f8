// Package stormdb persists calibration records in a storm (bbolt) database.
package stormdb

import (
	"time"

	"github.com/asdine/storm/v3"
	bolt "go.etcd.io/bbolt"

	"github.com/robotalks/feeder.go/pkg/calibration"
)

// Bucket holds one Record per feeder, keyed by feeder id.
const Bucket = "calibration"

// Record is the stored form of one feeder's calibration.
type Record struct {
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Backend implements calibration.Backend.
type Backend struct {
	DB *storm.DB
}

// OpenTimeout bounds waiting for the file lock held by another process.
var OpenTimeout = time.Second

// Open opens or creates the database file.
func Open(path string) (*Backend, error) {
	db, err := storm.Open(path, storm.BoltOptions(0600, &bolt.Options{Timeout: OpenTimeout}))
	if err != nil {
		return nil, err
	}
	return &Backend{DB: db}, nil
}

// Load implements calibration.Backend.
func (b *Backend) Load(feeder uint8) ([]byte, error) {
	var rec Record
	if err := b.DB.Get(Bucket, feeder, &rec); err != nil {
		if err == storm.ErrNotFound {
			return nil, calibration.ErrNotFound
		}
		return nil, err
	}
	return rec.Data, nil
}

// Save implements calibration.Backend.
func (b *Backend) Save(feeder uint8, data []byte) error {
	return b.DB.Set(Bucket, feeder, &Record{Data: data, UpdatedAt: time.Now()})
}

// Close implements io.Closer.
func (b *Backend) Close() error {
	return b.DB.Close()
}
