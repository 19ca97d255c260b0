package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// KeyType selects which attribute type an index is built over. It carries the
// key capability the node codecs, insertion, split, and scan drivers are
// written against: fixed byte width plus a total order over raw key bytes.
type KeyType uint32

const (
	// Integer keys are 4-byte signed integers in the host's byte order.
	Integer KeyType = 1
	// Double keys are 8-byte IEEE-754 binary64 values.
	Double KeyType = 2
	// String keys are 10 bytes of ASCII, right-padded with NUL and ordered
	// with C-string semantics (comparison stops at the first NUL).
	String KeyType = 3
)

// StringKeySize is the fixed width of String keys.
const StringKeySize int64 = 10

// Valid reports whether t is one of the supported key types.
func (t KeyType) Valid() bool {
	return t == Integer || t == Double || t == String
}

// Size returns the fixed byte width of keys of this type.
func (t KeyType) Size() int64 {
	switch t {
	case Integer:
		return 4
	case Double:
		return 8
	case String:
		return StringKeySize
	}
	return 0
}

func (t KeyType) String() string {
	switch t {
	case Integer:
		return "int"
	case Double:
		return "double"
	case String:
		return "string"
	}
	return fmt.Sprintf("KeyType(%d)", uint32(t))
}

// ParseKeyType maps a type name from the CLI to a KeyType.
func ParseKeyType(s string) (KeyType, error) {
	switch s {
	case "int":
		return Integer, nil
	case "double":
		return Double, nil
	case "string":
		return String, nil
	}
	return 0, fmt.Errorf("unknown key type %q (want int, double, or string)", s)
}

// cstring truncates a string key's bytes at the first NUL.
func cstring(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// Compare orders two raw keys of this type, returning a negative number,
// zero, or a positive number as a sorts before, equal to, or after b.
// Both slices must be exactly Size() bytes.
func (t KeyType) Compare(a, b []byte) int {
	switch t {
	case Integer:
		x := int32(binary.NativeEndian.Uint32(a))
		y := int32(binary.NativeEndian.Uint32(b))
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case Double:
		x := math.Float64frombits(binary.NativeEndian.Uint64(a))
		y := math.Float64frombits(binary.NativeEndian.Uint64(b))
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case String:
		return bytes.Compare(cstring(a), cstring(b))
	}
	return 0
}

// EncodeKey parses a key from its CLI text form into raw key bytes.
func (t KeyType) EncodeKey(s string) ([]byte, error) {
	key := make([]byte, t.Size())
	switch t {
	case Integer:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad int key %q: %w", s, err)
		}
		binary.NativeEndian.PutUint32(key, uint32(int32(v)))
	case Double:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad double key %q: %w", s, err)
		}
		binary.NativeEndian.PutUint64(key, math.Float64bits(v))
	case String:
		if int64(len(s)) > StringKeySize {
			return nil, fmt.Errorf("string key %q longer than %d bytes", s, StringKeySize)
		}
		copy(key, s)
	default:
		return nil, fmt.Errorf("unknown key type %d", uint32(t))
	}
	return key, nil
}

// FormatKey renders raw key bytes for display.
func (t KeyType) FormatKey(key []byte) string {
	switch t {
	case Integer:
		return strconv.FormatInt(int64(int32(binary.NativeEndian.Uint32(key))), 10)
	case Double:
		return strconv.FormatFloat(math.Float64frombits(binary.NativeEndian.Uint64(key)), 'g', -1, 64)
	case String:
		return string(cstring(key))
	}
	return fmt.Sprintf("%x", key)
}
