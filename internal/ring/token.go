package ring

import "fmt"

// Token is the structured message that circulates through the ring. One
// copy lives in each peer's bucket; the copy in the current holder's bucket
// is the live one.
type Token struct {
	Message        string
	Origin         string
	NextHolder     string
	CyclesComplete int
	TimesPassed    int
	TimesReceived  int
	TimeElapsed    float64
	Timestamp      float64
}

// Empty reports whether the token carries no message. A bucket raises a
// change notification on relation join before any real token exists; those
// arrivals decode to an empty token and are ignored.
func (t Token) Empty() bool {
	return t.Message == ""
}

// StatusLine renders the holder-facing status for an inbound token. The
// received counter is shown one ahead because the line describes the hop
// that is being processed.
func (t Token) StatusLine() string {
	return fmt.Sprintf(
		"M: %s H: %s P: %d R: %d C: %d T: %.2f",
		t.Message,
		t.NextHolder,
		t.TimesPassed,
		t.TimesReceived+1,
		t.CyclesComplete,
		t.TimeElapsed,
	)
}
