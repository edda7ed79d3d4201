package document

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Type tags a codec value so that encoded bytes compare correctly across
// mixed-type indexes (all strings sort before all numbers, etc).
type Type byte

const (
	TypeNull Type = iota + 1
	TypeBytes
	TypeString
	TypeInt
	TypeFloat
	TypeBool
)

// Value is a single indexable scalar: exactly what an indexed path or a
// primary key extracts a document field down to. Documents themselves
// (arbitrary nested BSON-like structures) are out of scope; the engine
// only ever needs to encode the scalar values extracted from them.
type Value struct {
	Type Type
	Str  string
	Int  int64
	Flt  float64
	Bool bool
	Byt  []byte
}

func Null() Value             { return Value{Type: TypeNull} }
func Str(s string) Value      { return Value{Type: TypeString, Str: s} }
func Bytes(b []byte) Value    { return Value{Type: TypeBytes, Byt: b} }
func Int(i int64) Value       { return Value{Type: TypeInt, Int: i} }
func Float(f float64) Value   { return Value{Type: TypeFloat, Flt: f} }
func Bool(b bool) Value       { return Value{Type: TypeBool, Bool: b} }

// NewObjectID generates a fresh primary key value the way Insert does
// when a caller omits _id: a random 16-byte identifier, stored as raw
// bytes so it sorts and encodes exactly like any other TypeBytes value.
func NewObjectID() Value {
	id := uuid.New()
	return Value{Type: TypeBytes, Byt: id[:]}
}

// EncodeKeyPart appends the order-preserving encoding of v to dst and
// returns the result. Values of different Type sort in Type order; within
// a Type, encoding preserves the natural order of the Go value. This is
// the engine's encode(x): an index entry's key is
// encode(v1) ++ ... ++ encode(vn) ++ encode(primary_key).
func EncodeKeyPart(dst []byte, v Value) []byte {
	dst = append(dst, byte(v.Type))
	switch v.Type {
	case TypeNull:
		// no payload
	case TypeBytes:
		dst = encodeVarBytes(dst, v.Byt)
	case TypeString:
		dst = encodeVarBytes(dst, []byte(v.Str))
	case TypeInt:
		// Flip the sign bit so two's-complement integers sort correctly
		// as unsigned big-endian bytes.
		u := uint64(v.Int) ^ (1 << 63)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], u)
		dst = append(dst, buf[:]...)
	case TypeFloat:
		bits := math.Float64bits(v.Flt)
		if v.Flt >= 0 {
			bits ^= 1 << 63
		} else {
			bits = ^bits
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], bits)
		dst = append(dst, buf[:]...)
	case TypeBool:
		if v.Bool {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	default:
		panic(fmt.Sprintf("document: unknown value type %d", v.Type))
	}
	return dst
}

// encodeVarBytes writes b escaped so that no encoded byte string is a
// prefix of another: 0x00 is escaped to 0x00 0xFF, and the whole run is
// terminated with 0x00 0x00. This is the standard FoundationDB tuple-layer
// escaping scheme and is what lets EncodeKeyPart calls be safely
// concatenated into a composite key.
func encodeVarBytes(dst, b []byte) []byte {
	for _, c := range b {
		if c == 0x00 {
			dst = append(dst, 0x00, 0xFF)
		} else {
			dst = append(dst, c)
		}
	}
	return append(dst, 0x00, 0x00)
}

// EncodeKey concatenates the encodings of vs, in order: the composite key
// construction used by both primary keys (a single value) and index
// entries (n indexed values plus a trailing primary key value).
func EncodeKey(vs ...Value) []byte {
	var out []byte
	for _, v := range vs {
		out = EncodeKeyPart(out, v)
	}
	return out
}

// EncodeValues concatenates the encodings of vs with no trailing value,
// the multi-valued sibling of EncodeKey used to store every element of an
// array-typed indexed field in a single cell. Arrays produce multiple
// index entries per document, and the dedup stage needs every element's
// encoded value to find the largest one below indexUpperBound.
func EncodeValues(vs []Value) []byte { return EncodeKey(vs...) }

// DecodeValues reverses EncodeValues, decoding every self-delimiting
// value out of b in order.
func DecodeValues(b []byte) ([]Value, error) {
	var out []Value
	for len(b) > 0 {
		v, n, err := DecodeKeyPart(b)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

// DecodeKeyPart reads one EncodeKeyPart-encoded value off the front of b
// and returns it along with the number of bytes it consumed. Composite
// keys (index entries, and cell keys built by document.Collection) are
// self-delimiting, so callers walk them one DecodeKeyPart call at a time
// to split a primary-key prefix off an index entry's tail or to find
// where one document's cells end and the next begins.
func DecodeKeyPart(b []byte) (Value, int, error) {
	if len(b) == 0 {
		return Value{}, 0, fmt.Errorf("document: empty key part")
	}
	typ := Type(b[0])
	switch typ {
	case TypeNull:
		return Value{Type: TypeNull}, 1, nil
	case TypeBytes, TypeString:
		raw, n, err := decodeVarBytes(b[1:])
		if err != nil {
			return Value{}, 0, err
		}
		if typ == TypeString {
			return Value{Type: TypeString, Str: string(raw)}, 1 + n, nil
		}
		return Value{Type: TypeBytes, Byt: raw}, 1 + n, nil
	case TypeInt:
		if len(b) < 9 {
			return Value{}, 0, fmt.Errorf("document: truncated int key part")
		}
		u := binary.BigEndian.Uint64(b[1:9])
		return Value{Type: TypeInt, Int: int64(u ^ (1 << 63))}, 9, nil
	case TypeFloat:
		if len(b) < 9 {
			return Value{}, 0, fmt.Errorf("document: truncated float key part")
		}
		bits := binary.BigEndian.Uint64(b[1:9])
		if bits&(1<<63) != 0 {
			bits ^= 1 << 63
		} else {
			bits = ^bits
		}
		return Value{Type: TypeFloat, Flt: math.Float64frombits(bits)}, 9, nil
	case TypeBool:
		if len(b) < 2 {
			return Value{}, 0, fmt.Errorf("document: truncated bool key part")
		}
		return Value{Type: TypeBool, Bool: b[1] != 0}, 2, nil
	default:
		return Value{}, 0, fmt.Errorf("document: unknown type tag %d", b[0])
	}
}

// decodeVarBytes reverses encodeVarBytes: it un-escapes 0x00 0xFF back to
// 0x00 and stops at the 0x00 0x00 terminator.
func decodeVarBytes(b []byte) ([]byte, int, error) {
	var out []byte
	i := 0
	for {
		if i >= len(b) {
			return nil, 0, fmt.Errorf("document: unterminated variable-length key part")
		}
		if b[i] == 0x00 {
			if i+1 >= len(b) {
				return nil, 0, fmt.Errorf("document: truncated escape sequence")
			}
			if b[i+1] == 0x00 {
				return out, i + 2, nil
			}
			if b[i+1] == 0xFF {
				out = append(out, 0x00)
				i += 2
				continue
			}
			return nil, 0, fmt.Errorf("document: invalid escape sequence")
		}
		out = append(out, b[i])
		i++
	}
}
