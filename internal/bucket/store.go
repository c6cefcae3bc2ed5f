package bucket

import (
	"errors"
	"sort"
	"sync"

	"github.com/danmuck/ringctl/internal/ring"
)

var (
	ErrUnknownPeer = errors.New("bucket: unknown peer")
	ErrNotOwner    = errors.New("bucket: record not owned by this peer")
)

// Change is one observed bucket update, delivered to subscribers in
// publish order per owning peer.
type Change struct {
	Peer   string
	Record Record
}

// Store holds the local peer's writable record plus the last-published
// snapshot of every other peer's record. Reads of a peer record may be
// stale until the next publish is observed; that is the contract.
type Store struct {
	mu      sync.Mutex
	self    string
	records map[string]Record
	lastSeq map[string]uint64
	seq     uint64
	subs    []func(Change)
}

// NewStore builds a store with only the local peer joined.
func NewStore(self string) *Store {
	s := &Store{
		self:    self,
		records: make(map[string]Record),
		lastSeq: make(map[string]uint64),
	}
	s.records[self] = Record{Owner: self}
	return s
}

// Subscribe registers a change callback. Callbacks run on the goroutine
// that applied the change, after the store lock is released.
func (s *Store) Subscribe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Join creates an empty record for a peer entering the ring relation.
func (s *Store) Join(peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[peer]; !ok {
		s.records[peer] = Record{Owner: peer}
	}
}

// Leave destroys a departed peer's record.
func (s *Store) Leave(peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if peer == s.self {
		return
	}
	delete(s.records, peer)
	delete(s.lastSeq, peer)
}

// Self returns the local peer identifier.
func (s *Store) Self() string {
	return s.self
}

// Peers returns the joined peers excluding self, sorted for a stable ring
// order.
func (s *Store) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]string, 0, len(s.records)-1)
	for p := range s.records {
		if p != s.self {
			peers = append(peers, p)
		}
	}
	sort.Strings(peers)
	return peers
}

// Select returns a snapshot of a peer's record. Records of peers other
// than self are read-only views by construction (value copy).
func (s *Store) Select(peer string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[peer]
	if !ok {
		return Record{}, ErrUnknownPeer
	}
	return rec, nil
}

// Publish writes a token into the local peer's record and assigns the next
// sequence number. The caller (the fabric) replicates the returned record
// to peers; local subscribers are not notified of their own writes.
func (s *Store) Publish(tok ring.Token) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	rec := Record{Owner: s.self, Seq: s.seq, Token: tok}
	if err := Validate(rec); err != nil {
		s.seq--
		return Record{}, err
	}
	s.records[s.self] = rec
	return rec, nil
}

// ApplyRemote installs a replicated record from another peer and notifies
// subscribers. Stale or duplicate sequence numbers are dropped, which
// keeps delivery exactly-once in publish order per relation even across
// transport reconnects. Returns whether the record was applied.
func (s *Store) ApplyRemote(rec Record) (bool, error) {
	if err := Validate(rec); err != nil {
		return false, err
	}
	s.mu.Lock()
	if rec.Owner == s.self {
		s.mu.Unlock()
		return false, ErrNotOwner
	}
	if rec.Seq <= s.lastSeq[rec.Owner] {
		s.mu.Unlock()
		return false, nil
	}
	if _, ok := s.records[rec.Owner]; !ok {
		s.records[rec.Owner] = Record{Owner: rec.Owner}
	}
	s.lastSeq[rec.Owner] = rec.Seq
	s.records[rec.Owner] = rec
	subs := make([]func(Change), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	change := Change{Peer: rec.Owner, Record: rec}
	for _, fn := range subs {
		fn(change)
	}
	return true, nil
}
