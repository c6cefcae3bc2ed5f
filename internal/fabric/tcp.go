package fabric

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/ringctl/internal/bucket"
	"github.com/danmuck/ringctl/internal/ring"
	"github.com/danmuck/ringctl/internal/wire"
	"github.com/rs/zerolog"
)

// PeerAddr names one statically configured ring member.
type PeerAddr struct {
	ID   string
	Addr string
}

// TCPConfig wires a TCP fabric endpoint.
type TCPConfig struct {
	Self        string
	ListenAddr  string
	Peers       []PeerAddr
	Limits      wire.Limits
	DialTimeout time.Duration
	Logger      zerolog.Logger
}

func (c TCPConfig) withDefaults() TCPConfig {
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = wire.DefaultLimits()
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// TCP replicates bucket publishes over plain TCP. Connections are
// one-way: this peer dials every configured member and writes frames;
// inbound connections are read-only and identified by a hello frame.
// Membership is the static peer list; hello and leave frames only adjust
// buckets for peers joining or departing at runtime.
type TCP struct {
	cfg   TCPConfig
	store *bucket.Store

	mu       sync.Mutex
	outbound map[string]net.Conn

	msgID    atomic.Uint64
	listener net.Listener
	wg       sync.WaitGroup
}

func NewTCP(cfg TCPConfig, store *bucket.Store) *TCP {
	return &TCP{
		cfg:      cfg.withDefaults(),
		store:    store,
		outbound: make(map[string]net.Conn),
	}
}

// Start joins the configured members, begins accepting inbound
// connections, and makes a best-effort first dial to each peer so hello
// frames flow before the first publish.
func (t *TCP) Start(ctx context.Context) error {
	for _, p := range t.cfg.Peers {
		if p.ID != t.cfg.Self {
			t.store.Join(p.ID)
		}
	}

	ln, err := net.Listen("tcp", t.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("fabric: listen %s: %w", t.cfg.ListenAddr, err)
	}
	t.listener = ln
	t.cfg.Logger.Info().Str("addr", ln.Addr().String()).Msg("fabric listening")

	t.wg.Add(1)
	go t.acceptLoop(ctx)

	for _, p := range t.cfg.Peers {
		if p.ID == t.cfg.Self {
			continue
		}
		if _, err := t.conn(p); err != nil {
			t.cfg.Logger.Warn().Err(err).Str("peer", p.ID).Msg("initial dial failed, will retry on publish")
		}
	}

	go func() {
		<-ctx.Done()
		t.shutdown()
	}()
	return nil
}

// Addr returns the bound listen address, for tests using port 0.
func (t *TCP) Addr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Wait blocks until the accept and reader goroutines exit.
func (t *TCP) Wait() {
	t.wg.Wait()
}

// Publish writes the token into the local bucket and sends the record to
// every configured peer. Send failures drop the connection for redial on
// the next publish; the publish itself stands, matching the asynchronous
// eventually-visible bucket contract.
func (t *TCP) Publish(tok ring.Token) error {
	rec, err := t.store.Publish(tok)
	if err != nil {
		return err
	}
	frameBytes, err := t.encodeFrame(wire.MsgPublish, bucket.EncodeRecord(rec))
	if err != nil {
		return err
	}
	for _, p := range t.cfg.Peers {
		if p.ID == t.cfg.Self {
			continue
		}
		if err := t.send(p, frameBytes); err != nil {
			t.cfg.Logger.Error().Err(err).Str("peer", p.ID).Msg("publish replication failed")
		}
	}
	return nil
}

func (t *TCP) encodeFrame(msgType uint16, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := wire.WriteFrame(&buf, wire.Frame{
		Header: wire.Header{
			MsgType:   msgType,
			MessageID: t.msgID.Add(1),
		},
		Payload: payload,
	}, t.cfg.Limits)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *TCP) send(p PeerAddr, frameBytes []byte) error {
	conn, err := t.conn(p)
	if err != nil {
		return err
	}
	if _, err := conn.Write(frameBytes); err != nil {
		t.dropConn(p.ID)
		return fmt.Errorf("fabric: write to %s: %w", p.ID, err)
	}
	return nil
}

// conn returns the cached outbound connection to a peer, dialing and
// sending the hello frame on first use.
func (t *TCP) conn(p PeerAddr) (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.outbound[p.ID]; ok {
		return c, nil
	}
	c, err := net.DialTimeout("tcp", p.Addr, t.cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("fabric: dial %s (%s): %w", p.ID, p.Addr, err)
	}
	hello, err := t.encodeFrame(wire.MsgHello, wire.EncodeFields([]wire.Field{
		wire.StringField(bucket.FieldOwner, t.cfg.Self),
	}))
	if err != nil {
		c.Close()
		return nil, err
	}
	if _, err := c.Write(hello); err != nil {
		c.Close()
		return nil, fmt.Errorf("fabric: hello to %s: %w", p.ID, err)
	}
	t.outbound[p.ID] = c
	return c, nil
}

func (t *TCP) dropConn(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.outbound[id]; ok {
		c.Close()
		delete(t.outbound, id)
	}
}

func (t *TCP) acceptLoop(ctx context.Context) {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			t.cfg.Logger.Error().Err(err).Msg("accept failed")
			continue
		}
		t.wg.Add(1)
		go t.readConn(ctx, conn)
	}
}

// readConn drains one inbound connection. Frames on a single connection
// are processed sequentially, preserving publish order per relation.
func (t *TCP) readConn(ctx context.Context, conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	remote := "unknown"
	for {
		f, err := wire.ReadFrame(conn, t.cfg.Limits)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				t.cfg.Logger.Debug().Err(err).Str("remote", remote).Msg("connection closed")
			}
			return
		}
		switch f.Header.MsgType {
		case wire.MsgHello:
			id, err := decodePeerID(f.Payload)
			if err != nil {
				t.cfg.Logger.Warn().Err(err).Msg("malformed hello, dropping connection")
				return
			}
			remote = id
			t.store.Join(id)
			t.cfg.Logger.Info().Str("peer", id).Msg("peer connected")
		case wire.MsgPublish:
			rec, err := bucket.DecodeRecord(f.Payload)
			if err != nil {
				t.cfg.Logger.Warn().Err(err).Str("remote", remote).Msg("rejected bucket write")
				continue
			}
			if _, err := t.store.ApplyRemote(rec); err != nil {
				t.cfg.Logger.Warn().Err(err).Str("remote", remote).Msg("bucket apply failed")
			}
		case wire.MsgLeave:
			id, err := decodePeerID(f.Payload)
			if err != nil {
				t.cfg.Logger.Warn().Err(err).Msg("malformed leave")
				continue
			}
			t.store.Leave(id)
			t.cfg.Logger.Info().Str("peer", id).Msg("peer left")
		default:
			t.cfg.Logger.Warn().Uint16("msg_type", f.Header.MsgType).Msg("unknown message type")
		}
	}
}

func decodePeerID(payload []byte) (string, error) {
	fields, err := wire.DecodeFields(payload)
	if err != nil {
		return "", err
	}
	f, ok := wire.GetField(fields, bucket.FieldOwner)
	if !ok {
		return "", fmt.Errorf("fabric: missing peer id field")
	}
	id, err := wire.StringValue(f)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("fabric: empty peer id")
	}
	return id, nil
}

// shutdown announces departure to peers and tears down connections.
func (t *TCP) shutdown() {
	leave, err := t.encodeFrame(wire.MsgLeave, wire.EncodeFields([]wire.Field{
		wire.StringField(bucket.FieldOwner, t.cfg.Self),
	}))
	if err == nil {
		for _, p := range t.cfg.Peers {
			if p.ID == t.cfg.Self {
				continue
			}
			t.mu.Lock()
			c, ok := t.outbound[p.ID]
			t.mu.Unlock()
			if ok {
				c.Write(leave)
			}
		}
	}
	t.mu.Lock()
	for id, c := range t.outbound {
		c.Close()
		delete(t.outbound, id)
	}
	t.mu.Unlock()
	if t.listener != nil {
		t.listener.Close()
	}
}
