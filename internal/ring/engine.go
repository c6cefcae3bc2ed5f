package ring

import (
	"fmt"
	"time"

	"github.com/danmuck/ringctl/internal/observability"
	"github.com/rs/zerolog"
)

// State is the protocol engine lifecycle phase.
type State int

const (
	// StateIdle means no token is held locally.
	StateIdle State = iota
	// StateForwarding means an inbound token is being processed.
	StateForwarding
	// StateHalted means the cycle limit was reached at the origin; the
	// ring is permanently stopped for this run.
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateForwarding:
		return "forwarding"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StatusFunc receives human-readable status transitions for the operator
// surface. Called on the event loop goroutine.
type StatusFunc func(state State, line string)

// Config wires an engine to its collaborators. Peers and Publish come from
// the fabric; Now and Sleep exist so tests can script time.
type Config struct {
	Self     string
	Peers    func() []string
	Publish  func(Token) error
	Settings *Settings
	Logger   zerolog.Logger

	Now      func() float64
	Sleep    func(time.Duration)
	OnStatus StatusFunc
}

func (c Config) withDefaults() Config {
	if c.Now == nil {
		c.Now = func() float64 {
			return float64(time.Now().UnixNano()) / float64(time.Second)
		}
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	if c.OnStatus == nil {
		c.OnStatus = func(State, string) {}
	}
	return c
}

// Engine drives the token-passing protocol for one peer. It reacts to two
// external signals, Inject and OnTokenArrived, and owns all counter,
// timing, and halt logic. The fabric event loop serializes every entry
// point, so the engine keeps no locks.
type Engine struct {
	cfg      Config
	resolver Resolver

	state       State
	completedIn float64
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	return e.state
}

// CompletedIn returns the total travel time reported at halt and whether
// the engine has halted.
func (e *Engine) CompletedIn() (float64, bool) {
	return e.completedIn, e.state == StateHalted
}

// Inject starts a new token carrying message, with this peer as origin.
// A halted engine starts a fresh run. The configured delay is applied
// before the token is considered sent.
func (e *Engine) Inject(message string) error {
	next, err := e.resolver.NextHolder(e.cfg.Self, e.cfg.Peers())
	if err != nil {
		e.cfg.Logger.Error().Err(err).Msg("inject: cannot resolve next holder")
		return err
	}
	if e.state == StateHalted {
		e.cfg.Logger.Info().Msg("inject on halted engine, starting new run")
		e.completedIn = 0
		observability.SetRingHalted(e.cfg.Self, false)
	}
	e.state = StateForwarding

	tok := Token{
		Message:        message,
		Origin:         e.cfg.Self,
		NextHolder:     next,
		CyclesComplete: 0,
		TimesPassed:    1,
		TimesReceived:  0,
		TimeElapsed:    0,
		Timestamp:      e.cfg.Now(),
	}
	e.cfg.Logger.Info().
		Str("next_holder", next).
		Str("message", message).
		Msg("constructed token, sending")

	e.applyDelay()
	if err := e.cfg.Publish(tok); err != nil {
		e.state = StateIdle
		return fmt.Errorf("inject: publish token: %w", err)
	}
	observability.RecordTokenInjected(e.cfg.Self)
	e.state = StateIdle
	return nil
}

// OnTokenArrived processes a token observed in a peer's bucket. Empty
// tokens (bucket not yet populated) are ignored. When the token is back at
// its origin a lap has completed; if that lap count reaches the configured
// limit the engine halts and nothing is forwarded. Otherwise counters and
// cumulative travel time are folded into an outgoing token, the configured
// delay is applied, and the token is published to the next holder.
func (e *Engine) OnTokenArrived(received Token) error {
	if received.Empty() {
		e.cfg.Logger.Debug().Msg("bucket change without a token message, ignoring")
		return nil
	}
	if e.state == StateHalted {
		e.cfg.Logger.Debug().Msg("token arrived after halt, ignoring")
		return nil
	}
	e.state = StateForwarding

	// Snapshot of the inbound token for the operator surface, taken
	// before the local status is overwritten.
	e.cfg.OnStatus(StateForwarding, received.StatusLine())

	candidate := received.CyclesComplete + 1
	cyclesOut := received.CyclesComplete
	if received.Origin == e.cfg.Self {
		if limit, ok := e.cfg.Settings.MaxCycles(); ok && candidate == limit {
			e.state = StateHalted
			e.completedIn = received.TimeElapsed
			line := fmt.Sprintf(
				"Max cycles reached. Time to completion is %.2f seconds.",
				received.TimeElapsed,
			)
			e.cfg.Logger.Info().
				Int("cycles", candidate).
				Float64("time_elapsed", received.TimeElapsed).
				Msg("max cycles reached, ring halted")
			e.cfg.OnStatus(StateHalted, line)
			observability.SetRingHalted(e.cfg.Self, true)
			return nil
		}
		cyclesOut = candidate
		observability.RecordCycleCompleted(e.cfg.Self)
	}

	next, err := e.resolver.NextHolder(e.cfg.Self, e.cfg.Peers())
	if err != nil {
		e.state = StateIdle
		e.cfg.Logger.Error().Err(err).Msg("cannot forward token, no next holder")
		return err
	}

	e.applyDelay()
	now := e.cfg.Now()
	hop := now - received.Timestamp
	out := Token{
		Message:        received.Message,
		Origin:         received.Origin,
		NextHolder:     next,
		CyclesComplete: cyclesOut,
		TimesPassed:    received.TimesPassed + 1,
		TimesReceived:  received.TimesReceived + 1,
		TimeElapsed:    received.TimeElapsed + hop,
		Timestamp:      now,
	}
	if err := e.cfg.Publish(out); err != nil {
		e.state = StateIdle
		return fmt.Errorf("forward token: publish: %w", err)
	}
	observability.RecordHop(e.cfg.Self, hop)
	e.cfg.Logger.Info().
		Str("next_holder", next).
		Int("times_passed", out.TimesPassed).
		Int("cycles_complete", out.CyclesComplete).
		Float64("time_elapsed", out.TimeElapsed).
		Msg("token forwarded")
	e.state = StateIdle
	return nil
}

// applyDelay blocks the event loop for the configured delay. The loop
// serves nothing else during that window; see the fabric loop contract.
func (e *Engine) applyDelay() {
	if d := e.cfg.Settings.Delay(); d > 0 {
		e.cfg.Sleep(d)
	}
}
