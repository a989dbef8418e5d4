package shield_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/micro-nova/piblinker-go/internal/shield"
)

func TestParseLayout(t *testing.T) {
	tests := []struct {
		format string
		size   int
		str    string
		little bool
	}{
		{">H", 2, ">H", false},
		{"<H", 2, "<H", true},
		{"H", 2, ">H", false},
		{"!BBh", 4, ">BBh", false},
		{">2H", 4, ">HH", false},
		{"<iq", 12, "<iq", true},
	}
	for _, tc := range tests {
		l, err := shield.ParseLayout(tc.format)
		if err != nil {
			t.Errorf("ParseLayout(%q): %v", tc.format, err)
			continue
		}
		if l.Size() != tc.size {
			t.Errorf("ParseLayout(%q).Size() = %d, want %d", tc.format, l.Size(), tc.size)
		}
		if l.String() != tc.str {
			t.Errorf("ParseLayout(%q).String() = %q, want %q", tc.format, l.String(), tc.str)
		}
		if (l.Order == binary.LittleEndian) != tc.little {
			t.Errorf("ParseLayout(%q) little-endian = %v, want %v", tc.format, !tc.little, tc.little)
		}
	}
}

func TestParseLayout_Errors(t *testing.T) {
	for _, format := range []string{"", ">", ">x", ">3", ">0H"} {
		_, err := shield.ParseLayout(format)
		var fe *shield.FrameError
		if !errors.As(err, &fe) {
			t.Errorf("ParseLayout(%q) err = %v, want *FrameError", format, err)
		}
	}
}

func TestLayout_PackBigEndian(t *testing.T) {
	got, err := shield.U16BE.Pack(0x83FF)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x83, 0xFF}) {
		t.Errorf("U16BE.Pack(0x83FF) = % x, want 83 ff", got)
	}
	got, _ = shield.U16LE.Pack(0x83FF)
	if !bytes.Equal(got, []byte{0xFF, 0x83}) {
		t.Errorf("U16LE.Pack(0x83FF) = % x, want ff 83", got)
	}
}

func TestLayout_PackRange(t *testing.T) {
	tests := []struct {
		format string
		value  int64
		ok     bool
	}{
		{">B", 255, true},
		{">B", 256, false},
		{">B", -1, false},
		{">b", -128, true},
		{">b", 128, false},
		{">H", 65535, true},
		{">H", 65536, false},
		{">h", -32768, true},
		{">h", 32768, false},
		{">I", 1<<32 - 1, true},
		{">I", 1 << 32, false},
		{">i", -1 << 31, true},
	}
	for _, tc := range tests {
		l, err := shield.ParseLayout(tc.format)
		if err != nil {
			t.Fatal(err)
		}
		_, err = l.Pack(tc.value)
		var fe *shield.FrameError
		if tc.ok && err != nil {
			t.Errorf("%s Pack(%d): %v", tc.format, tc.value, err)
		}
		if !tc.ok && !errors.As(err, &fe) {
			t.Errorf("%s Pack(%d): err = %v, want *FrameError", tc.format, tc.value, err)
		}
	}
}

func TestLayout_PackValueCount(t *testing.T) {
	if _, err := shield.U16BE.Pack(1, 2); err == nil {
		t.Error("Pack with too many values: want error")
	}
	if _, err := shield.U16BE.Unpack([]byte{1}); err == nil {
		t.Error("Unpack short frame: want error")
	}
}

func TestLayout_UnpackSigned(t *testing.T) {
	l, _ := shield.ParseLayout("<hb")
	got, err := l.Unpack([]byte{0xFE, 0xFF, 0x80})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != -2 || got[1] != -128 {
		t.Errorf("Unpack = %v, want [-2 -128]", got)
	}
}
