// Package bucket implements the peer-owned, peer-readable record that
// carries the ring token. Each peer owns exactly one record, writable only
// locally; publishes are replicated by the fabric and observed by other
// peers as change notifications. Field typing and range checks happen here
// so the protocol engine never sees an out-of-range value.
package bucket

import (
	"fmt"
	"math"

	"github.com/danmuck/ringctl/internal/ring"
)

// Record is one peer's bucket contents: the owning peer, a publish
// sequence number, and the token fields.
type Record struct {
	Owner string
	Seq   uint64
	Token ring.Token
}

// ValidationError reports a field that failed the bucket contract.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("bucket: field %s: %s", e.Field, e.Reason)
}

// Validate enforces the bucket field contract: counters are non-negative
// and the float fields are non-negative finite numbers. Message may be
// empty; an empty record is the state of a bucket before any token was
// written.
func Validate(rec Record) error {
	if rec.Owner == "" {
		return ValidationError{Field: "owner", Reason: "missing"}
	}
	if rec.Token.CyclesComplete < 0 {
		return ValidationError{Field: "cycles_complete", Reason: "negative"}
	}
	if rec.Token.TimesPassed < 0 {
		return ValidationError{Field: "times_passed", Reason: "negative"}
	}
	if rec.Token.TimesReceived < 0 {
		return ValidationError{Field: "times_received", Reason: "negative"}
	}
	if err := validFloat("time_elapsed", rec.Token.TimeElapsed); err != nil {
		return err
	}
	if err := validFloat("timestamp", rec.Token.Timestamp); err != nil {
		return err
	}
	return nil
}

func validFloat(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ValidationError{Field: field, Reason: "not finite"}
	}
	if v < 0 {
		return ValidationError{Field: field, Reason: "negative"}
	}
	return nil
}
