// Package shield talks to the I2C sensor/ADC shield: a registry of open
// device channels, fixed-width binary framing and the muxed ADC+pin sample.
package shield

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is a fixed-width integer field in a Layout.
type Kind int

const (
	Int8 Kind = iota + 1
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
)

var kindCodes = map[byte]Kind{
	'b': Int8,
	'B': Uint8,
	'h': Int16,
	'H': Uint16,
	'i': Int32,
	'I': Uint32,
	'q': Int64,
}

// Size returns the encoded width in bytes.
func (k Kind) Size() int {
	switch k {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32:
		return 4
	case Int64:
		return 8
	}
	return 0
}

func (k Kind) code() byte {
	for c, kk := range kindCodes {
		if kk == k {
			return c
		}
	}
	return '?'
}

func (k Kind) bounds() (lo, hi int64) {
	switch k {
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint8:
		return 0, math.MaxUint8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint16:
		return 0, math.MaxUint16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Uint32:
		return 0, math.MaxUint32
	}
	return math.MinInt64, math.MaxInt64
}

// Layout describes a packed frame: a byte order and a sequence of
// fixed-width integer fields.
type Layout struct {
	Order  binary.ByteOrder
	Fields []Kind
}

// Common single-field layouts.
var (
	U8    = Layout{Order: binary.BigEndian, Fields: []Kind{Uint8}}
	U16BE = Layout{Order: binary.BigEndian, Fields: []Kind{Uint16}}
	U16LE = Layout{Order: binary.LittleEndian, Fields: []Kind{Uint16}}
	U32BE = Layout{Order: binary.BigEndian, Fields: []Kind{Uint32}}
)

// ParseLayout parses a struct-style format string: an optional byte order
// prefix ('>' or '!' big-endian, '<' or '=' little-endian) followed by
// field codes b B h H i I q, each optionally preceded by a repeat count.
// Without a prefix the layout is big-endian.
func ParseLayout(format string) (Layout, error) {
	l := Layout{Order: binary.BigEndian}
	s := strings.TrimSpace(format)
	if s != "" {
		switch s[0] {
		case '>', '!':
			s = s[1:]
		case '<', '=':
			l.Order = binary.LittleEndian
			s = s[1:]
		}
	}
	for len(s) > 0 {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		count := 1
		if i > 0 {
			n, err := strconv.Atoi(s[:i])
			if err != nil || n <= 0 {
				return Layout{}, &FrameError{Layout: format, Reason: "bad repeat count"}
			}
			count = n
		}
		if i >= len(s) {
			return Layout{}, &FrameError{Layout: format, Reason: "repeat count without field code"}
		}
		k, ok := kindCodes[s[i]]
		if !ok {
			return Layout{}, &FrameError{Layout: format, Reason: fmt.Sprintf("unknown field code %q", s[i])}
		}
		for j := 0; j < count; j++ {
			l.Fields = append(l.Fields, k)
		}
		s = s[i+1:]
	}
	if len(l.Fields) == 0 {
		return Layout{}, &FrameError{Layout: format, Reason: "no fields"}
	}
	return l, nil
}

// Size returns the encoded frame length in bytes.
func (l Layout) Size() int {
	n := 0
	for _, k := range l.Fields {
		n += k.Size()
	}
	return n
}

func (l Layout) String() string {
	var b strings.Builder
	if l.Order == binary.LittleEndian {
		b.WriteByte('<')
	} else {
		b.WriteByte('>')
	}
	for _, k := range l.Fields {
		b.WriteByte(k.code())
	}
	return b.String()
}

// Pack encodes one value per field.
func (l Layout) Pack(values ...int64) ([]byte, error) {
	if len(values) != len(l.Fields) {
		return nil, &FrameError{Layout: l.String(), Reason: fmt.Sprintf("got %d values for %d fields", len(values), len(l.Fields))}
	}
	order := l.order()
	buf := make([]byte, l.Size())
	off := 0
	for i, k := range l.Fields {
		v := values[i]
		if lo, hi := k.bounds(); v < lo || v > hi {
			return nil, &FrameError{Layout: l.String(), Reason: fmt.Sprintf("value %d out of range [%d, %d] for field %d", v, lo, hi, i)}
		}
		switch k.Size() {
		case 1:
			buf[off] = byte(v)
		case 2:
			order.PutUint16(buf[off:], uint16(v))
		case 4:
			order.PutUint32(buf[off:], uint32(v))
		case 8:
			order.PutUint64(buf[off:], uint64(v))
		}
		off += k.Size()
	}
	return buf, nil
}

// Unpack decodes a frame of exactly Size bytes.
func (l Layout) Unpack(data []byte) ([]int64, error) {
	if len(data) != l.Size() {
		return nil, &FrameError{Layout: l.String(), Reason: fmt.Sprintf("got %d bytes, layout needs %d", len(data), l.Size())}
	}
	order := l.order()
	out := make([]int64, len(l.Fields))
	off := 0
	for i, k := range l.Fields {
		b := data[off : off+k.Size()]
		switch k {
		case Int8:
			out[i] = int64(int8(b[0]))
		case Uint8:
			out[i] = int64(b[0])
		case Int16:
			out[i] = int64(int16(order.Uint16(b)))
		case Uint16:
			out[i] = int64(order.Uint16(b))
		case Int32:
			out[i] = int64(int32(order.Uint32(b)))
		case Uint32:
			out[i] = int64(order.Uint32(b))
		case Int64:
			out[i] = int64(order.Uint64(b))
		}
		off += k.Size()
	}
	return out, nil
}

func (l Layout) order() binary.ByteOrder {
	if l.Order == nil {
		return binary.BigEndian
	}
	return l.Order
}
