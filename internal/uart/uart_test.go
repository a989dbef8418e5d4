package uart_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/micro-nova/piblinker-go/internal/hardware"
	"github.com/micro-nova/piblinker-go/internal/uart"
)

func openMock(t *testing.T, port *hardware.MockSerial) *uart.Channel {
	t.Helper()
	opener := func(name string, baud int, timeout time.Duration) (hardware.SerialPort, error) {
		return port, nil
	}
	c, err := uart.Open("/dev/ttyAMA0", 9600, time.Second, uart.WithOpener(opener))
	if err != nil {
		t.Fatalf("uart.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpen_SerialInitError(t *testing.T) {
	failing := func(name string, baud int, timeout time.Duration) (hardware.SerialPort, error) {
		return nil, errors.New("no such device")
	}
	tests := []struct {
		name string
		port string
		baud int
	}{
		{"empty port", "", 9600},
		{"bad baud", "/dev/ttyAMA0", 0},
		{"transport failure", "/dev/ttyAMA0", 9600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uart.Open(tt.port, tt.baud, 0, uart.WithOpener(failing))
			var sie *uart.SerialInitError
			if !errors.As(err, &sie) {
				t.Errorf("err = %v, want *SerialInitError", err)
			}
		})
	}
}

func TestActivate_FreshlyActivated(t *testing.T) {
	port := hardware.NewMockSerial(func(w []byte) []byte {
		if string(w) == "O" {
			return []byte("OK")
		}
		return nil
	})
	c := openMock(t, port)
	got, err := c.Activate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != uart.Activated {
		t.Errorf("Activate = %v, want activated", got)
	}
	if string(port.Written()) != "O" {
		t.Errorf("wrote %q, want a single probe", port.Written())
	}
	if port.Timeout() != time.Second {
		t.Errorf("read timeout after Activate = %v, want restored 1s", port.Timeout())
	}
}

func TestActivate_AlreadyActiveNack(t *testing.T) {
	port := hardware.NewMockSerial(func(w []byte) []byte {
		if string(w) == "O" {
			return []byte("NO\n")
		}
		return nil
	})
	c := openMock(t, port)
	got, err := c.Activate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != uart.AlreadyActive {
		t.Errorf("Activate = %v, want already active", got)
	}
}

func TestActivate_FallbackProbe(t *testing.T) {
	// Active device that ignores the unsupported probe and only answers '2'.
	port := hardware.NewMockSerial(func(w []byte) []byte {
		if string(w) == "2" {
			return []byte("512\n")
		}
		return nil
	})
	c := openMock(t, port)
	got, err := c.Activate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != uart.AlreadyActive {
		t.Errorf("Activate = %v, want already active", got)
	}
	written := string(port.Written())
	if len(written) != 101 {
		t.Fatalf("wrote %d probes, want 101", len(written))
	}
	if written[:100] != strings.Repeat("O", 100) || written[100] != '2' {
		t.Errorf("probe sequence = %q, want 100 x 'O' then '2'", written)
	}

	// Leftover reply bytes were flushed; the next read sees only its own reply.
	line, err := c.Read(uart.ADC)
	if err != nil {
		t.Fatal(err)
	}
	if line != "512" {
		t.Errorf("Read(ADC) after activate = %q, want \"512\"", line)
	}
}

func TestActivate_NeverResponds(t *testing.T) {
	port := hardware.NewMockSerial(nil)
	c := openMock(t, port)

	done := make(chan uart.Activation, 1)
	go func() {
		got, err := c.Activate(context.Background())
		if err != nil {
			t.Error(err)
		}
		done <- got
	}()
	select {
	case got := <-done:
		if got != uart.NoReply {
			t.Errorf("Activate = %v, want no reply", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Activate did not terminate")
	}
	if n := len(port.Written()); n != 101 {
		t.Errorf("wrote %d probes, want 101", n)
	}
}

func TestActivate_TransportError(t *testing.T) {
	port := hardware.NewMockSerial(nil)
	c := openMock(t, port)
	port.SetFailWrite(true)
	if _, err := c.Activate(context.Background()); err == nil {
		t.Error("Activate with failing port: want error")
	}
}

func TestActivate_ContextCancelled(t *testing.T) {
	port := hardware.NewMockSerial(nil)
	c := openMock(t, port)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Activate(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Activate err = %v, want context.Canceled", err)
	}
}

func TestRead_Targets(t *testing.T) {
	port := hardware.NewMockSerial(func(w []byte) []byte {
		switch string(w) {
		case "2":
			return []byte("1023\r\n")
		case "1":
			return []byte("1\n")
		}
		return nil
	})
	c := openMock(t, port)

	line, err := c.Read(uart.ADC)
	if err != nil || line != "1023" {
		t.Errorf("Read(ADC) = %q, %v; want \"1023\", nil", line, err)
	}
	pin, err := c.ReadPin()
	if err != nil || pin != 1 {
		t.Errorf("ReadPin = %d, %v; want 1, nil", pin, err)
	}
	adc, err := c.ReadADC()
	if err != nil || adc != 1023 {
		t.Errorf("ReadADC = %d, %v; want 1023, nil", adc, err)
	}
	if got := string(port.Written()); got != "212" {
		t.Errorf("commands written = %q, want \"212\"", got)
	}
}

func TestRead_Errors(t *testing.T) {
	port := hardware.NewMockSerial(func(w []byte) []byte { return []byte("garbage\n") })
	c := openMock(t, port)

	if _, err := c.ReadADC(); err == nil {
		t.Error("ReadADC of non-numeric reply: want error")
	}
	if _, err := c.Read(uart.Target(9)); err == nil {
		t.Error("Read unknown target: want error")
	}
	port.SetFailRead(true)
	if _, err := c.Read(uart.Pin); err == nil {
		t.Error("Read with failing port: want error")
	}
}

func TestClose(t *testing.T) {
	port := hardware.NewMockSerial(nil)
	c := openMock(t, port)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !port.Closed() {
		t.Error("port not closed")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := c.Read(uart.ADC); err == nil {
		t.Error("Read after Close: want error")
	}
}
