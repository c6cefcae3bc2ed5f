// Package statefile persists the ring tunables across process restarts.
// The cache is loaded once at startup and saved on every applied change;
// there is no ambient state.
package statefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// State is the on-disk shape of the tunable cache.
type State struct {
	MaxCycles *int   `toml:"max_cycles,omitempty"`
	Delay     string `toml:"delay,omitempty"`
}

// Default is the initial cache: max_cycles unset, no delay.
func Default() State {
	return State{}
}

// Load reads the state file. A missing file is not an error; it yields the
// defaults.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return State{}, fmt.Errorf("statefile load (%s): %w", path, err)
	}
	var st State
	if err := toml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("statefile parse (%s): %w", path, err)
	}
	if _, err := st.DelayDuration(); err != nil {
		return State{}, fmt.Errorf("statefile parse (%s): %w", path, err)
	}
	return st, nil
}

// Save writes the state file atomically (temp file then rename).
func Save(path string, st State) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("statefile marshal: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("statefile save (%s): %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, ".ringctl-state-*")
	if err != nil {
		return fmt.Errorf("statefile save (%s): %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("statefile save (%s): %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("statefile save (%s): %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("statefile save (%s): %w", path, err)
	}
	return nil
}

// DelayDuration parses the delay field; empty means zero.
func (s State) DelayDuration() (time.Duration, error) {
	if s.Delay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Delay)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: %w", s.Delay, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid delay %q: negative", s.Delay)
	}
	return d, nil
}

// WithDelay returns a copy with the delay set from a duration.
func (s State) WithDelay(d time.Duration) State {
	if d == 0 {
		s.Delay = ""
	} else {
		s.Delay = d.String()
	}
	return s
}
