package ring

import "errors"

var ErrNoPeerAvailable = errors.New("ring: no peer available to forward to")

// Resolver picks the next token holder from the peers reachable on the
// forwarding channel.
type Resolver struct{}

// NextHolder returns the forwarding target for self: the successor of self
// in the cyclic lexicographic order of the candidate set. Repeated calls
// with the same membership always agree, and walking successors visits
// every member, which gives a fixed ring order for any peer count. An
// empty candidate set returns ErrNoPeerAvailable; the caller must not
// fabricate a destination.
func (Resolver) NextHolder(self string, peers []string) (string, error) {
	successor := ""
	smallest := ""
	for _, p := range peers {
		if p == "" || p == self {
			continue
		}
		if smallest == "" || p < smallest {
			smallest = p
		}
		if p > self && (successor == "" || p < successor) {
			successor = p
		}
	}
	if successor != "" {
		return successor, nil
	}
	if smallest != "" {
		return smallest, nil
	}
	return "", ErrNoPeerAvailable
}
