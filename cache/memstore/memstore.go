// Package memstore is the in-memory cache.Store: valid per the engine's
// "durability not prescribed" clause, and the default for tests and for
// any run that doesn't ask for sqlitestore.
package memstore

import (
	"sync"

	"github.com/trojita/goimap-engine/cache"
)

type partKey struct {
	uid  uint32
	part string
}

// Store is a map-backed cache.Store. The zero value is ready to use.
type Store struct {
	mu       sync.Mutex
	children map[string][]cache.MailboxEntry
	metadata map[uint32]*cache.MessageMetadata
	parts    map[partKey][]byte
}

func New() *Store {
	return &Store{
		children: make(map[string][]cache.MailboxEntry),
		metadata: make(map[uint32]*cache.MessageMetadata),
		parts:    make(map[partKey][]byte),
	}
}

func (s *Store) ChildMailboxes(parentName string) ([]cache.MailboxEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.children[parentName]
	return entries, ok
}

func (s *Store) ForgetChildMailboxes(parentName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.children, parentName)
}

func (s *Store) SetChildMailboxes(parentName string, entries []cache.MailboxEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[parentName] = entries
}

func (s *Store) MessageMetadata(uid uint32) (*cache.MessageMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metadata[uid]
	return m, ok
}

func (s *Store) SetMessageMetadata(uid uint32, meta *cache.MessageMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[uid] = meta
}

func (s *Store) MessagePart(uid uint32, partID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.parts[partKey{uid, partID}]
	return b, ok
}

func (s *Store) SetMessagePart(uid uint32, partID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts[partKey{uid, partID}] = data
}

func (s *Store) Close() error { return nil }
