package ring

import (
	"time"

	"github.com/rs/zerolog"
)

// Settings caches the last-observed ring tunables so the engine does not
// query configuration on every event. MaxCycles may be unset, which means
// the ring never halts. Reads always reflect the last applied Update.
type Settings struct {
	maxCycles *int
	delay     time.Duration

	logger   zerolog.Logger
	onChange func(maxCycles *int, delay time.Duration)
}

// NewSettings returns a cache initialized to {max_cycles: unset, delay: 0}.
func NewSettings(logger zerolog.Logger) *Settings {
	return &Settings{logger: logger}
}

// OnChange registers a hook invoked after any applied change, used to
// persist the cache to the state file. The hook runs on the event loop
// goroutine.
func (s *Settings) OnChange(fn func(maxCycles *int, delay time.Duration)) {
	s.onChange = fn
}

// Update compares each tunable against the cached value and applies only
// the ones that differ, logging each applied change. Unchanged values are
// a no-op.
func (s *Settings) Update(maxCycles *int, delay time.Duration) {
	changed := false
	if !intPtrEqual(s.maxCycles, maxCycles) {
		if maxCycles == nil {
			s.logger.Info().Msg("updating max cycles to unset (unbounded)")
			s.maxCycles = nil
		} else {
			s.logger.Info().Int("max_cycles", *maxCycles).Msg("updating max cycles")
			v := *maxCycles
			s.maxCycles = &v
		}
		changed = true
	}
	if s.delay != delay {
		s.logger.Info().Dur("delay", delay).Msg("updating total delay")
		s.delay = delay
		changed = true
	}
	if changed && s.onChange != nil {
		s.onChange(s.maxCycles, s.delay)
	}
}

// MaxCycles returns the configured cycle limit and whether one is set.
func (s *Settings) MaxCycles() (int, bool) {
	if s.maxCycles == nil {
		return 0, false
	}
	return *s.maxCycles, true
}

// Delay returns the configured per-hop forwarding delay.
func (s *Settings) Delay() time.Duration {
	return s.delay
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
