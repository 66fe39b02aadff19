package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"quorachain/storage"
)

// ServiceStore exposes a private key/value namespace to one service. Keys are
// prefixed with the service name and hashed, so two services can never
// observe or clobber each other's entries. Values are RLP encoded.
type ServiceStore struct {
	db      storage.Database
	service string
}

// NewServiceStore opens the namespace owned by the named service.
func NewServiceStore(db storage.Database, service string) *ServiceStore {
	return &ServiceStore{db: db, service: service}
}

// Service returns the owning service name.
func (s *ServiceStore) Service() string { return s.service }

func (s *ServiceStore) hashedKey(kind, key string) []byte {
	buf := make([]byte, 0, len(s.service)+len(kind)+len(key)+6)
	buf = append(buf, "svc/"...)
	buf = append(buf, s.service...)
	buf = append(buf, '/')
	buf = append(buf, kind...)
	buf = append(buf, '/')
	buf = append(buf, key...)
	return ethcrypto.Keccak256(buf)
}

// GetValue decodes the entry stored under key into out. The boolean reports
// whether the entry exists; a missing entry leaves out untouched.
func (s *ServiceStore) GetValue(key string, out interface{}) (bool, error) {
	raw, err := s.db.Get(s.hashedKey("value", key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s/%s: %w", s.service, key, err)
	}
	return true, nil
}

// SetValue persists v under key, replacing any previous entry.
func (s *ServiceStore) SetValue(key string, v interface{}) error {
	encoded, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("state: encode %s/%s: %w", s.service, key, err)
	}
	return s.db.Put(s.hashedKey("value", key), encoded)
}

// Map allocates or recovers the named persistent map inside the service's
// namespace. The map survives across blocks; callers must treat iteration
// order as arbitrary.
func (s *ServiceStore) Map(name string) *StoreMap {
	return &StoreMap{store: s, name: name}
}

// StoreMap is a byte-keyed persistent map with RLP-encoded values. The key
// index is kept sorted so state roots stay deterministic across nodes.
type StoreMap struct {
	store *ServiceStore
	name  string
}

func (m *StoreMap) entryKey(key []byte) []byte {
	return m.store.hashedKey("map/"+m.name+"/entry", string(key))
}

func (m *StoreMap) indexKey() []byte {
	return m.store.hashedKey("map/"+m.name, "index")
}

func (m *StoreMap) loadIndex() ([][]byte, error) {
	raw, err := m.store.db.Get(m.indexKey())
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var index [][]byte
	if err := rlp.DecodeBytes(raw, &index); err != nil {
		return nil, fmt.Errorf("state: decode map index %s/%s: %w", m.store.service, m.name, err)
	}
	return index, nil
}

func (m *StoreMap) writeIndex(index [][]byte) error {
	encoded, err := rlp.EncodeToBytes(index)
	if err != nil {
		return fmt.Errorf("state: encode map index %s/%s: %w", m.store.service, m.name, err)
	}
	return m.store.db.Put(m.indexKey(), encoded)
}

// Get decodes the value stored under key into out. The boolean reports
// whether the entry exists.
func (m *StoreMap) Get(key []byte, out interface{}) (bool, error) {
	raw, err := m.store.db.Get(m.entryKey(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode map entry %s/%s: %w", m.store.service, m.name, err)
	}
	return true, nil
}

// Insert stores v under key, creating or replacing the entry.
func (m *StoreMap) Insert(key []byte, v interface{}) error {
	encoded, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("state: encode map entry %s/%s: %w", m.store.service, m.name, err)
	}
	exists, err := m.store.db.Has(m.entryKey(key))
	if err != nil {
		return err
	}
	if err := m.store.db.Put(m.entryKey(key), encoded); err != nil {
		return err
	}
	if exists {
		return nil
	}
	index, err := m.loadIndex()
	if err != nil {
		return err
	}
	pos := sort.Search(len(index), func(i int) bool {
		return bytes.Compare(index[i], key) >= 0
	})
	entry := append([]byte(nil), key...)
	index = append(index, nil)
	copy(index[pos+1:], index[pos:])
	index[pos] = entry
	return m.writeIndex(index)
}

// IsEmpty reports whether the map holds no entries.
func (m *StoreMap) IsEmpty() (bool, error) {
	index, err := m.loadIndex()
	if err != nil {
		return false, err
	}
	return len(index) == 0, nil
}

// Len returns the number of entries.
func (m *StoreMap) Len() (int, error) {
	index, err := m.loadIndex()
	if err != nil {
		return 0, err
	}
	return len(index), nil
}

// Iterate invokes fn for every entry with its key and RLP-encoded value. A
// non-nil error from fn stops the walk and is returned to the caller.
func (m *StoreMap) Iterate(fn func(key []byte, value []byte) error) error {
	index, err := m.loadIndex()
	if err != nil {
		return err
	}
	for _, key := range index {
		raw, err := m.store.db.Get(m.entryKey(key))
		if err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every entry and resets the index.
func (m *StoreMap) Clear() error {
	index, err := m.loadIndex()
	if err != nil {
		return err
	}
	for _, key := range index {
		if err := m.store.db.Delete(m.entryKey(key)); err != nil {
			return err
		}
	}
	return m.writeIndex(nil)
}
