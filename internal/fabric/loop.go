// Package fabric is the messaging substrate between ring peers: it
// replicates bucket publishes, raises change notifications, and serializes
// every protocol entry point onto a single event loop.
package fabric

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/ringctl/internal/ring"
	"github.com/rs/zerolog"
)

// EventKind discriminates the events the loop dispatches to the engine.
type EventKind int

const (
	EventInject EventKind = iota
	EventTokenArrived
	EventConfigChanged
)

func (k EventKind) String() string {
	switch k {
	case EventInject:
		return "inject"
	case EventTokenArrived:
		return "token_arrived"
	case EventConfigChanged:
		return "config_changed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one queued engine entry point invocation.
type Event struct {
	Kind EventKind

	// EventInject
	Message string

	// EventTokenArrived
	From  string
	Token ring.Token

	// EventConfigChanged
	MaxCycles *int
	Delay     time.Duration
}

// Loop serializes Inject, TokenArrived, and ConfigChanged onto one
// goroutine, so the engine never processes two events concurrently and
// needs no locks. A configured forwarding delay blocks the loop for its
// full duration; no other event, including a second token arrival, is
// served during that window. That is a deliberate simplification carried
// over from the source system, not a correctness requirement.
type Loop struct {
	self     string
	engine   *ring.Engine
	settings *ring.Settings
	logger   zerolog.Logger
	events   chan Event
}

func NewLoop(self string, engine *ring.Engine, settings *ring.Settings, logger zerolog.Logger) *Loop {
	return &Loop{
		self:     self,
		engine:   engine,
		settings: settings,
		logger:   logger,
		events:   make(chan Event, 64),
	}
}

// Run dispatches events until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-l.events:
			l.dispatch(ev)
		}
	}
}

// Inject queues a new-token request.
func (l *Loop) Inject(message string) {
	l.events <- Event{Kind: EventInject, Message: message}
}

// TokenArrived queues a bucket change notification.
func (l *Loop) TokenArrived(from string, tok ring.Token) {
	l.events <- Event{Kind: EventTokenArrived, From: from, Token: tok}
}

// ConfigChanged queues a tunable update.
func (l *Loop) ConfigChanged(maxCycles *int, delay time.Duration) {
	l.events <- Event{Kind: EventConfigChanged, MaxCycles: maxCycles, Delay: delay}
}

func (l *Loop) dispatch(ev Event) {
	switch ev.Kind {
	case EventInject:
		if err := l.engine.Inject(ev.Message); err != nil {
			l.logger.Error().Err(err).Msg("inject failed")
		}
	case EventTokenArrived:
		// Every publish is replicated to every peer; only the addressed
		// holder processes it. Empty tokens still reach the engine so the
		// join-time guard applies.
		if !ev.Token.Empty() && ev.Token.NextHolder != l.self {
			l.logger.Debug().
				Str("from", ev.From).
				Str("next_holder", ev.Token.NextHolder).
				Msg("token not addressed to this peer, ignoring")
			return
		}
		if err := l.engine.OnTokenArrived(ev.Token); err != nil {
			l.logger.Error().Err(err).Str("from", ev.From).Msg("token handling failed")
		}
	case EventConfigChanged:
		l.settings.Update(ev.MaxCycles, ev.Delay)
	default:
		l.logger.Warn().Str("kind", ev.Kind.String()).Msg("unknown event kind")
	}
}
