//go:build linux

package hardware

import (
	"strings"
	"testing"
)

// These run without I2C hardware: they only exercise failure paths.

func TestLinuxI2C_MissingAdapter(t *testing.T) {
	_, err := NewI2C().OpenHandle(250, 0x04)
	if err == nil {
		t.Fatal("OpenHandle on /dev/i2c-250: want error")
	}
	if !strings.Contains(err.Error(), "/dev/i2c-250") {
		t.Errorf("error %q does not name the device", err)
	}
}

func TestI2CHandle_Closed(t *testing.T) {
	h := &i2cHandle{fd: -1, addr: 0x04}
	if _, err := h.Read(make([]byte, 2)); err == nil || !strings.Contains(err.Error(), "handle closed") {
		t.Errorf("Read on closed handle = %v, want handle closed", err)
	}
	if _, err := h.Write([]byte{1}); err == nil {
		t.Error("Write on closed handle: want error")
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close on closed handle = %v, want nil", err)
	}
}

func TestOpenSerial_MissingPort(t *testing.T) {
	if _, err := OpenSerial("/dev/ttyPIBLINKER-none", 9600, 0); err == nil {
		t.Fatal("OpenSerial on missing port: want error")
	}
}
