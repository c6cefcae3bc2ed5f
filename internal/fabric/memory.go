package fabric

import (
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/ringctl/internal/bucket"
	"github.com/danmuck/ringctl/internal/ring"
)

// Hub is an in-process fabric connecting N peers. Publishes replicate
// synchronously to every other member's store in publish order, which
// makes it exactly-once and ordered per relation. Used by tests and the
// -mem demo mode.
type Hub struct {
	mu      sync.Mutex
	members map[string]*MemberPort
}

func NewHub() *Hub {
	return &Hub{members: make(map[string]*MemberPort)}
}

// MemberPort is one peer's handle on the hub.
type MemberPort struct {
	hub   *Hub
	store *bucket.Store
}

// Join adds a peer to the hub and wires mutual bucket creation with the
// existing members.
func (h *Hub) Join(self string) (*MemberPort, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.members[self]; ok {
		return nil, fmt.Errorf("fabric: peer %q already joined", self)
	}
	port := &MemberPort{hub: h, store: bucket.NewStore(self)}
	for id, other := range h.members {
		port.store.Join(id)
		other.store.Join(self)
	}
	h.members[self] = port
	return port, nil
}

// Leave removes a peer and destroys its bucket everywhere.
func (h *Hub) Leave(self string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.members, self)
	for _, other := range h.members {
		other.store.Leave(self)
	}
}

// Store exposes the member's bucket store for subscriptions and reads.
func (p *MemberPort) Store() *bucket.Store {
	return p.store
}

// Self returns the member's peer identifier.
func (p *MemberPort) Self() string {
	return p.store.Self()
}

// Peers returns the current candidate set for forwarding.
func (p *MemberPort) Peers() []string {
	return p.store.Peers()
}

// Publish writes the token into the member's own bucket and replicates the
// record to every other member.
func (p *MemberPort) Publish(tok ring.Token) error {
	rec, err := p.store.Publish(tok)
	if err != nil {
		return err
	}

	p.hub.mu.Lock()
	targets := make([]*MemberPort, 0, len(p.hub.members)-1)
	ids := make([]string, 0, len(p.hub.members))
	for id := range p.hub.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if id != p.Self() {
			targets = append(targets, p.hub.members[id])
		}
	}
	p.hub.mu.Unlock()

	for _, t := range targets {
		if _, err := t.store.ApplyRemote(rec); err != nil {
			return fmt.Errorf("fabric: replicate to %s: %w", t.Self(), err)
		}
	}
	return nil
}
