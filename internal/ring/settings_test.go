package ring

import (
	"testing"
	"time"

	"github.com/danmuck/ringctl/internal/testutil/testlog"
)

func TestSettingsStartUnset(t *testing.T) {
	s := NewSettings(testlog.Logger(t))
	if _, ok := s.MaxCycles(); ok {
		t.Fatal("max cycles must start unset")
	}
	if s.Delay() != 0 {
		t.Fatalf("delay must start at zero, got %v", s.Delay())
	}
}

func TestSettingsUpdateAppliesChanges(t *testing.T) {
	s := NewSettings(testlog.Logger(t))
	changes := 0
	s.OnChange(func(*int, time.Duration) { changes++ })

	limit := 4
	s.Update(&limit, 2*time.Second)
	if got, ok := s.MaxCycles(); !ok || got != 4 {
		t.Fatalf("max cycles: got %d (set=%v)", got, ok)
	}
	if s.Delay() != 2*time.Second {
		t.Fatalf("delay: got %v", s.Delay())
	}
	if changes != 1 {
		t.Fatalf("expected one change notification, got %d", changes)
	}

	// Unchanged values are a no-op.
	same := 4
	s.Update(&same, 2*time.Second)
	if changes != 1 {
		t.Fatalf("no-op update must not notify, got %d", changes)
	}

	// Back to unbounded.
	s.Update(nil, 2*time.Second)
	if _, ok := s.MaxCycles(); ok {
		t.Fatal("max cycles must be unset again")
	}
	if changes != 2 {
		t.Fatalf("expected second change notification, got %d", changes)
	}
}

func TestSettingsCopiesMaxCycles(t *testing.T) {
	s := NewSettings(testlog.Logger(t))
	limit := 2
	s.Update(&limit, 0)
	limit = 99
	if got, _ := s.MaxCycles(); got != 2 {
		t.Fatalf("cache must copy the value, got %d", got)
	}
}
