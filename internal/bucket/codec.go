package bucket

import (
	"math"

	"github.com/danmuck/ringctl/internal/wire"
)

// Field IDs for the bucket wire contract.
const (
	FieldOwner uint16 = 1
	FieldSeq   uint16 = 2

	FieldMessage    uint16 = 10
	FieldOrigin     uint16 = 11
	FieldNextHolder uint16 = 12
	FieldCycles     uint16 = 13
	FieldPassed     uint16 = 14
	FieldReceived   uint16 = 15
	FieldElapsed    uint16 = 16
	FieldTimestamp  uint16 = 17
)

type requirement struct {
	id   uint16
	typ  uint8
	name string
}

var publishRequirements = []requirement{
	{FieldOwner, wire.TypeString, "owner"},
	{FieldSeq, wire.TypeU64, "seq"},
	{FieldMessage, wire.TypeString, "message"},
	{FieldOrigin, wire.TypeString, "origin"},
	{FieldNextHolder, wire.TypeString, "next_holder"},
	{FieldCycles, wire.TypeU64, "cycles_complete"},
	{FieldPassed, wire.TypeU64, "times_passed"},
	{FieldReceived, wire.TypeU64, "times_received"},
	{FieldElapsed, wire.TypeF64, "time_elapsed"},
	{FieldTimestamp, wire.TypeF64, "timestamp"},
}

// EncodeRecord renders a record as a TLV payload for a publish frame.
func EncodeRecord(rec Record) []byte {
	fields := []wire.Field{
		wire.StringField(FieldOwner, rec.Owner),
		wire.U64Field(FieldSeq, rec.Seq),
		wire.StringField(FieldMessage, rec.Token.Message),
		wire.StringField(FieldOrigin, rec.Token.Origin),
		wire.StringField(FieldNextHolder, rec.Token.NextHolder),
		wire.U64Field(FieldCycles, uint64(rec.Token.CyclesComplete)),
		wire.U64Field(FieldPassed, uint64(rec.Token.TimesPassed)),
		wire.U64Field(FieldReceived, uint64(rec.Token.TimesReceived)),
		wire.F64Field(FieldElapsed, rec.Token.TimeElapsed),
		wire.F64Field(FieldTimestamp, rec.Token.Timestamp),
	}
	return wire.EncodeFields(fields)
}

// DecodeRecord parses and validates a publish payload. Required fields and
// field types are enforced before values are accepted; unknown fields are
// ignored.
func DecodeRecord(payload []byte) (Record, error) {
	fields, err := wire.DecodeFields(payload)
	if err != nil {
		return Record{}, err
	}
	byID := make(map[uint16]wire.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}
	for _, req := range publishRequirements {
		f, ok := byID[req.id]
		if !ok {
			return Record{}, ValidationError{Field: req.name, Reason: "missing required field"}
		}
		if f.Type != req.typ {
			return Record{}, ValidationError{Field: req.name, Reason: "type mismatch"}
		}
	}

	var rec Record
	rec.Owner, _ = wire.StringValue(byID[FieldOwner])
	rec.Seq, _ = wire.U64Value(byID[FieldSeq])
	rec.Token.Message, _ = wire.StringValue(byID[FieldMessage])
	rec.Token.Origin, _ = wire.StringValue(byID[FieldOrigin])
	rec.Token.NextHolder, _ = wire.StringValue(byID[FieldNextHolder])

	cycles, _ := wire.U64Value(byID[FieldCycles])
	passed, _ := wire.U64Value(byID[FieldPassed])
	received, _ := wire.U64Value(byID[FieldReceived])
	for name, v := range map[string]uint64{
		"cycles_complete": cycles,
		"times_passed":    passed,
		"times_received":  received,
	} {
		if v > math.MaxInt32 {
			return Record{}, ValidationError{Field: name, Reason: "out of range"}
		}
	}
	rec.Token.CyclesComplete = int(cycles)
	rec.Token.TimesPassed = int(passed)
	rec.Token.TimesReceived = int(received)
	rec.Token.TimeElapsed, _ = wire.F64Value(byID[FieldElapsed])
	rec.Token.Timestamp, _ = wire.F64Value(byID[FieldTimestamp])

	if err := Validate(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
