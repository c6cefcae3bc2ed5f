package fabric

import (
	"context"
	"testing"
	"time"

	"github.com/danmuck/ringctl/internal/bucket"
	"github.com/danmuck/ringctl/internal/ring"
	"github.com/danmuck/ringctl/internal/testutil/testlog"
)

func TestTCPReplicatesPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := testlog.Logger(t)

	storeA := bucket.NewStore("ring-a")
	changes := make(chan bucket.Change, 4)
	storeA.Subscribe(func(ch bucket.Change) { changes <- ch })

	endpointA := NewTCP(TCPConfig{
		Self:       "ring-a",
		ListenAddr: "127.0.0.1:0",
		Logger:     logger,
	}, storeA)
	if err := endpointA.Start(ctx); err != nil {
		t.Fatalf("start a: %v", err)
	}

	storeB := bucket.NewStore("ring-b")
	endpointB := NewTCP(TCPConfig{
		Self:       "ring-b",
		ListenAddr: "127.0.0.1:0",
		Peers:      []PeerAddr{{ID: "ring-a", Addr: endpointA.Addr()}},
		Logger:     logger,
	}, storeB)
	if err := endpointB.Start(ctx); err != nil {
		t.Fatalf("start b: %v", err)
	}

	// The static peer list populates B's candidate set immediately.
	peers := storeB.Peers()
	if len(peers) != 1 || peers[0] != "ring-a" {
		t.Fatalf("b peers: %v", peers)
	}

	tok := ring.Token{
		Message:     "hello",
		Origin:      "ring-b",
		NextHolder:  "ring-a",
		TimesPassed: 1,
		Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
	}
	if err := endpointB.Publish(tok); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ch := <-changes:
		if ch.Peer != "ring-b" {
			t.Fatalf("change from %q, want ring-b", ch.Peer)
		}
		if ch.Record.Token.Message != "hello" || ch.Record.Token.NextHolder != "ring-a" {
			t.Fatalf("replicated token: %+v", ch.Record.Token)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("publish was not replicated")
	}

	// The hello on the same connection joined B into A's store before the
	// publish was applied.
	if _, err := storeA.Select("ring-b"); err != nil {
		t.Fatalf("a did not join b: %v", err)
	}
}

func TestTCPPublishSurvivesUnreachablePeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := bucket.NewStore("ring-a")
	endpoint := NewTCP(TCPConfig{
		Self:        "ring-a",
		ListenAddr:  "127.0.0.1:0",
		Peers:       []PeerAddr{{ID: "ring-b", Addr: "127.0.0.1:1"}},
		DialTimeout: 100 * time.Millisecond,
		Logger:      testlog.Logger(t),
	}, store)
	if err := endpoint.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The local bucket write stands even when replication fails; the
	// publish contract is asynchronous and eventually visible.
	if err := endpoint.Publish(ring.Token{Message: "hello", Origin: "ring-a", NextHolder: "ring-b", TimesPassed: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	rec, err := store.Select("ring-a")
	if err != nil || rec.Token.Message != "hello" {
		t.Fatalf("own bucket: %+v, %v", rec, err)
	}
}
