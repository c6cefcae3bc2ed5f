package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const fieldHeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("wire: short field header")
	ErrShortFieldValue  = errors.New("wire: short field value")
)

// Field type IDs. F64 carries IEEE 754 bits big-endian; the token's
// elapsed-time and timestamp fields need it.
const (
	TypeU64    uint8 = 1
	TypeF64    uint8 = 2
	TypeString uint8 = 3
)

// Field is one decoded TLV field: u16 id, u8 type, u32 length, value.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeFields(fields []Field) []byte {
	n := 0
	for _, f := range fields {
		n += fieldHeaderLen + len(f.Value)
	}
	out := make([]byte, 0, n)
	for _, f := range fields {
		var hdr [fieldHeaderLen]byte
		binary.BigEndian.PutUint16(hdr[0:2], f.ID)
		hdr[2] = f.Type
		binary.BigEndian.PutUint32(hdr[3:7], uint32(len(f.Value)))
		out = append(out, hdr[:]...)
		out = append(out, f.Value...)
	}
	return out
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < fieldHeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := int(binary.BigEndian.Uint32(payload[i+3 : i+7]))
		i += fieldHeaderLen
		if len(payload)-i < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+l])
		i += l
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func StringField(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func U64Field(id uint16, v uint64) Field {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return Field{ID: id, Type: TypeU64, Value: b}
}

func F64Field(id uint16, v float64) Field {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return Field{ID: id, Type: TypeF64, Value: b}
}

func U64Value(f Field) (uint64, error) {
	if f.Type != TypeU64 {
		return 0, fmt.Errorf("wire: field %d is not u64 (type %d)", f.ID, f.Type)
	}
	if len(f.Value) != 8 {
		return 0, fmt.Errorf("wire: field %d invalid u64 length %d", f.ID, len(f.Value))
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

func F64Value(f Field) (float64, error) {
	if f.Type != TypeF64 {
		return 0, fmt.Errorf("wire: field %d is not f64 (type %d)", f.ID, f.Type)
	}
	if len(f.Value) != 8 {
		return 0, fmt.Errorf("wire: field %d invalid f64 length %d", f.ID, len(f.Value))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(f.Value)), nil
}

func StringValue(f Field) (string, error) {
	if f.Type != TypeString {
		return "", fmt.Errorf("wire: field %d is not string (type %d)", f.ID, f.Type)
	}
	return string(f.Value), nil
}
