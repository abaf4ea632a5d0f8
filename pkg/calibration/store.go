// Package calibration keeps per-feeder calibration profiles and persists
// them through a Backend.
package calibration

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/feeder.go/pkg/fixed"
)

// Backend persists encoded records.
type Backend interface {
	// Load returns the record of a feeder, or ErrNotFound.
	Load(feeder uint8) ([]byte, error)
	// Save writes the record of a feeder.
	Save(feeder uint8, record []byte) error
}

var (
	// ErrNotFound is returned by Backend.Load when nothing is persisted.
	ErrNotFound = errors.New("calibration record not found")
	// ErrWriteFailed matches every error returned by Store.Set.
	ErrWriteFailed = errors.New("calibration write failed")
)

// StoreError describes a failed Set.
type StoreError struct {
	Feeder uint8
	Field  Field
	Err    error
}

// Error implements error.
func (e *StoreError) Error() string {
	return fmt.Sprintf("feeder %d: set %s: %v", e.Feeder, e.Field, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrWriteFailed) hold.
func (e *StoreError) Is(target error) bool {
	return target == ErrWriteFailed
}

// Store caches profiles in front of a Backend.
// All operations are serialized, the cache and the backend converge after
// every successful Set.
type Store struct {
	Backend Backend

	lock  sync.Mutex
	cache map[uint8]Profile
}

// NewStore creates a Store.
func NewStore(backend Backend) *Store {
	return &Store{Backend: backend, cache: make(map[uint8]Profile)}
}

// Get returns the profile of a feeder. It never fails: a missing or
// corrupt record yields Defaults. Defaults returned after a backend read
// error are not cached so the next Get retries the backend.
func (s *Store) Get(feeder uint8) Profile {
	s.lock.Lock()
	defer s.lock.Unlock()
	p, _ := s.getLocked(feeder)
	return p
}

// getLocked returns the cached or persisted profile. A non-nil error means
// the backend could not be read and the returned Defaults are a fallback.
func (s *Store) getLocked(feeder uint8) (Profile, error) {
	if p, ok := s.cache[feeder]; ok {
		return p, nil
	}
	p := Defaults()
	rec, err := s.Backend.Load(feeder)
	switch {
	case errors.Is(err, ErrNotFound):
		glog.V(2).Infof("feeder %d: no calibration persisted, using defaults", feeder)
	case err != nil:
		glog.Warningf("feeder %d: load calibration error: %v", feeder, err)
		return p, err
	default:
		if p, err = DecodeRecord(rec); err != nil {
			glog.Warningf("feeder %d: %v, using defaults", feeder, err)
		}
	}
	s.cache[feeder] = p
	return p, nil
}

// Set updates one field and persists the profile. The cache is updated
// only after the backend accepted the write. Set refuses when the current
// record can't be read, so a read failure never overwrites it.
func (s *Store) Set(feeder uint8, field Field, value fixed.Value) (Profile, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	cur, err := s.getLocked(feeder)
	if err != nil {
		return cur, &StoreError{Feeder: feeder, Field: field, Err: err}
	}
	updated, err := cur.With(field, value)
	if err != nil {
		return cur, &StoreError{Feeder: feeder, Field: field, Err: err}
	}
	if err = updated.Validate(); err != nil {
		return cur, &StoreError{Feeder: feeder, Field: field, Err: err}
	}
	if err = s.Backend.Save(feeder, EncodeRecord(updated)); err != nil {
		glog.Errorf("feeder %d: save calibration error: %v", feeder, err)
		return cur, &StoreError{Feeder: feeder, Field: field, Err: err}
	}
	s.cache[feeder] = updated
	glog.Infof("feeder %d: %s=%s", feeder, field, value)
	return updated, nil
}

// Reload drops cached profiles so the next Get reads the backend.
func (s *Store) Reload() {
	s.lock.Lock()
	s.cache = make(map[uint8]Profile)
	s.lock.Unlock()
}
