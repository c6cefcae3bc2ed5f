package bucket

import (
	"errors"
	"testing"

	"github.com/danmuck/ringctl/internal/ring"
	"github.com/danmuck/ringctl/internal/wire"
)

func sampleRecord() Record {
	return Record{
		Owner: "ring-a",
		Seq:   3,
		Token: ring.Token{
			Message:        "hello",
			Origin:         "ring-a",
			NextHolder:     "ring-b",
			CyclesComplete: 1,
			TimesPassed:    4,
			TimesReceived:  3,
			TimeElapsed:    2.5,
			Timestamp:      1000.25,
		},
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := sampleRecord()
	out, err := DecodeRecord(EncodeRecord(in))
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestDecodeRecordMissingField(t *testing.T) {
	fields, err := wire.DecodeFields(EncodeRecord(sampleRecord()))
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	// Drop the origin field.
	kept := fields[:0]
	for _, f := range fields {
		if f.ID != FieldOrigin {
			kept = append(kept, f)
		}
	}
	_, err = DecodeRecord(wire.EncodeFields(kept))
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "origin" {
		t.Fatalf("expected origin validation error, got %v", err)
	}
}

func TestDecodeRecordTypeMismatch(t *testing.T) {
	fields, err := wire.DecodeFields(EncodeRecord(sampleRecord()))
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	for i, f := range fields {
		if f.ID == FieldCycles {
			fields[i] = wire.StringField(FieldCycles, "1")
		}
	}
	_, err = DecodeRecord(wire.EncodeFields(fields))
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "cycles_complete" {
		t.Fatalf("expected cycles_complete type error, got %v", err)
	}
}

func TestDecodeRecordRejectsNegativeFloat(t *testing.T) {
	rec := sampleRecord()
	rec.Token.TimeElapsed = -1
	_, err := DecodeRecord(EncodeRecord(rec))
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "time_elapsed" {
		t.Fatalf("expected time_elapsed validation error, got %v", err)
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
		field  string
	}{
		{"missing owner", func(r *Record) { r.Owner = "" }, "owner"},
		{"negative cycles", func(r *Record) { r.Token.CyclesComplete = -1 }, "cycles_complete"},
		{"negative passed", func(r *Record) { r.Token.TimesPassed = -2 }, "times_passed"},
		{"negative received", func(r *Record) { r.Token.TimesReceived = -1 }, "times_received"},
		{"negative timestamp", func(r *Record) { r.Token.Timestamp = -5 }, "timestamp"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := sampleRecord()
			tc.mutate(&rec)
			err := Validate(rec)
			var verr ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected %s validation error, got %v", tc.field, err)
			}
		})
	}

	// Empty token in a joined bucket is legal.
	if err := Validate(Record{Owner: "ring-a"}); err != nil {
		t.Fatalf("empty record must validate: %v", err)
	}
}
