// Package val implements the engine's order-preserving tuple codec: it
// packs heterogeneous elements into a byte string whose bytewise ordering
// matches the natural, component-wise ordering on tuples, and it computes
// the half-open scan range covering every key sharing a given prefix.
//
// The encoding scheme follows the tagged-element layout used by ordered
// key-value tuple layers generally (FoundationDB's tuple layer is the
// best-known instance): each element is preceded by a one-byte type tag so
// that distinct kinds never compare equal, and within a kind the payload
// bytes are transformed so that bytewise order equals value order.
package val

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/dolthub/recordgraph/errs"
)

// Tuple is an ordered list of elements. Supported element Go types are:
// string, int64, float64, bool, []byte, nil, and Tuple (nested).
type Tuple []any

const (
	tagNull   byte = 0x00
	tagBytes  byte = 0x01
	tagString byte = 0x02
	tagNested byte = 0x05
	tagInt    byte = 0x0c
	tagDouble byte = 0x21
	tagFalse  byte = 0x26
	tagTrue   byte = 0x27
)

// escape terminator sequence used by bytes/string payloads: a literal 0x00
// byte is escaped as 0x00 0xff, and the payload is terminated by a bare
// 0x00 0x00.
func packEscaped(buf *bytes.Buffer, raw []byte) {
	for _, b := range raw {
		buf.WriteByte(b)
		if b == 0x00 {
			buf.WriteByte(0xff)
		}
	}
	buf.WriteByte(0x00)
	buf.WriteByte(0x00)
}

func unpackEscaped(b []byte) (raw []byte, rest []byte, err error) {
	var out []byte
	for i := 0; i < len(b); i++ {
		if b[i] == 0x00 {
			if i+1 >= len(b) {
				return nil, nil, errs.Wrap(errs.ErrCodec, "truncated escaped payload")
			}
			if b[i+1] == 0x00 {
				return out, b[i+2:], nil
			}
			// escaped literal 0x00
			out = append(out, 0x00)
			i++
			continue
		}
		out = append(out, b[i])
	}
	return nil, nil, errs.Wrap(errs.ErrCodec, "unterminated escaped payload")
}

// Pack encodes a Tuple into its ordered byte representation.
func Pack(t Tuple) ([]byte, error) {
	var buf bytes.Buffer
	if err := packInto(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func packInto(buf *bytes.Buffer, t Tuple) error {
	for _, el := range t {
		if err := packElement(buf, el); err != nil {
			return err
		}
	}
	return nil
}

func packElement(buf *bytes.Buffer, el any) error {
	switch v := el.(type) {
	case nil:
		buf.WriteByte(tagNull)
	case []byte:
		buf.WriteByte(tagBytes)
		packEscaped(buf, v)
	case string:
		buf.WriteByte(tagString)
		packEscaped(buf, []byte(v))
	case bool:
		if v {
			buf.WriteByte(tagTrue)
		} else {
			buf.WriteByte(tagFalse)
		}
	case int64:
		buf.WriteByte(tagInt)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v)^0x8000000000000000)
		buf.Write(b[:])
	case int:
		return packElement(buf, int64(v))
	case float64:
		buf.WriteByte(tagDouble)
		bits := math.Float64bits(v)
		if bits&0x8000000000000000 != 0 {
			// negative (including -0.0): flip every bit
			bits = ^bits
		} else {
			// positive (including +0.0): flip only the sign bit
			bits ^= 0x8000000000000000
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bits)
		buf.Write(b[:])
	case Tuple:
		buf.WriteByte(tagNested)
		if err := packInto(buf, v); err != nil {
			return err
		}
		buf.WriteByte(0x00)
	default:
		return errs.Wrap(errs.ErrCodec, "unsupported tuple element kind")
	}
	return nil
}

// Unpack decodes a byte string produced by Pack back into a Tuple.
func Unpack(b []byte) (Tuple, error) {
	t, rest, err := unpackInto(b, false)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errs.Wrap(errs.ErrCodec, "trailing bytes after tuple")
	}
	return t, nil
}

// unpackInto decodes elements until it hits either end-of-input or (inside
// a nested tuple) the nested-tuple terminator 0x00, and returns the unread
// remainder. At top level (nested false) 0x00 is decoded as a nil element.
func unpackInto(b []byte, nested bool) (Tuple, []byte, error) {
	var out Tuple
	for len(b) > 0 {
		if nested && b[0] == 0x00 {
			// terminator for an enclosing nested tuple; caller consumes it.
			return out, b, nil
		}
		el, rest, err := unpackElement(b)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, el)
		b = rest
	}
	return out, b, nil
}

func unpackElement(b []byte) (any, []byte, error) {
	if len(b) == 0 {
		return nil, nil, errs.Wrap(errs.ErrCodec, "empty input")
	}
	tag := b[0]
	rest := b[1:]
	switch tag {
	case tagNull:
		return nil, rest, nil
	case tagBytes:
		raw, r, err := unpackEscaped(rest)
		if err != nil {
			return nil, nil, err
		}
		return raw, r, nil
	case tagString:
		raw, r, err := unpackEscaped(rest)
		if err != nil {
			return nil, nil, err
		}
		return string(raw), r, nil
	case tagFalse:
		return false, rest, nil
	case tagTrue:
		return true, rest, nil
	case tagInt:
		if len(rest) < 8 {
			return nil, nil, errs.Wrap(errs.ErrCodec, "truncated int")
		}
		u := binary.BigEndian.Uint64(rest[:8])
		return int64(u ^ 0x8000000000000000), rest[8:], nil
	case tagDouble:
		if len(rest) < 8 {
			return nil, nil, errs.Wrap(errs.ErrCodec, "truncated double")
		}
		bits := binary.BigEndian.Uint64(rest[:8])
		if bits&0x8000000000000000 != 0 {
			bits ^= 0x8000000000000000
		} else {
			bits = ^bits
		}
		return math.Float64frombits(bits), rest[8:], nil
	case tagNested:
		inner, r, err := unpackInto(rest, true)
		if err != nil {
			return nil, nil, err
		}
		if len(r) == 0 || r[0] != 0x00 {
			return nil, nil, errs.Wrap(errs.ErrCodec, "missing nested tuple terminator")
		}
		return inner, r[1:], nil
	default:
		return nil, nil, errs.Wrap(errs.ErrCodec, "unrecognized tag byte")
	}
}

// Range returns the half-open [begin, end) key range covering every key
// for which prefix is a proper byte-string prefix.
func Range(prefix []byte) (begin, end []byte) {
	begin = append([]byte(nil), prefix...)
	end = prefixEnd(prefix)
	return begin, end
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix: prefix with its trailing 0xff bytes stripped and the last
// remaining byte incremented. An all-0xff prefix has no finite successor
// and yields nil, meaning "no upper bound".
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
