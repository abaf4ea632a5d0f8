package calibration

import (
	"errors"
	"sync"
)

// ErrInjected is returned by MemBackend when writes are set to fail.
var ErrInjected = errors.New("injected write failure")

// MemBackend keeps records in memory. It is used by the simulator and
// tests, and supports injecting write failures and corruption.
type MemBackend struct {
	records    map[uint8][]byte
	failWrites bool
	lock       sync.Mutex
}

// NewMemBackend creates a MemBackend.
func NewMemBackend() *MemBackend {
	return &MemBackend{records: make(map[uint8][]byte)}
}

// Load implements Backend.
func (m *MemBackend) Load(feeder uint8) ([]byte, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	rec, ok := m.records[feeder]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), rec...), nil
}

// Save implements Backend.
func (m *MemBackend) Save(feeder uint8, record []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.failWrites {
		return ErrInjected
	}
	m.records[feeder] = append([]byte(nil), record...)
	return nil
}

// FailWrites makes subsequent Saves fail or succeed.
func (m *MemBackend) FailWrites(fail bool) {
	m.lock.Lock()
	m.failWrites = fail
	m.lock.Unlock()
}

// Put stores raw bytes as the record of a feeder.
func (m *MemBackend) Put(feeder uint8, record []byte) {
	m.lock.Lock()
	m.records[feeder] = append([]byte(nil), record...)
	m.lock.Unlock()
}
