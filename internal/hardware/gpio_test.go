package hardware

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func fakeRegistry(pins ...*gpiotest.Pin) func(string) gpio.PinIO {
	byName := make(map[string]*gpiotest.Pin)
	for _, p := range pins {
		byName[p.N] = p
	}
	return func(name string) gpio.PinIO {
		if p, ok := byName[name]; ok {
			return p
		}
		return nil
	}
}

func TestPeriphPins_WriteRead(t *testing.T) {
	led := &gpiotest.Pin{N: "GPIO17", Num: 17}
	s := newPeriphPins(fakeRegistry(led))

	if err := s.Write(17, High); err == nil {
		t.Fatal("Write before Configure succeeded")
	}
	if err := s.Configure(17, Out); err != nil {
		t.Fatal(err)
	}
	if err := s.Configure(17, Out); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if err := s.Write(17, High); err != nil {
		t.Fatal(err)
	}
	if led.Read() != gpio.High {
		t.Error("GPIO17 not driven high")
	}
	if got, _ := s.Read(17); got != High {
		t.Errorf("Read(17) = %v, want high", got)
	}
}

func TestPeriphPins_UnknownPin(t *testing.T) {
	s := newPeriphPins(fakeRegistry())
	var pe *PinError
	if err := s.Configure(99, Out); !errors.As(err, &pe) {
		t.Errorf("Configure(99) err = %v, want *PinError", err)
	}
}

func TestPeriphPins_WatchEdge(t *testing.T) {
	btn := &gpiotest.Pin{N: "GPIO5", Num: 5, EdgesChan: make(chan gpio.Level, 1)}
	s := newPeriphPins(fakeRegistry(btn))
	if err := s.Configure(5, In); err != nil {
		t.Fatal(err)
	}
	fired := make(chan int, 4)
	if err := s.WatchEdge(5, RisingEdge, 300*time.Millisecond, func(pin int) { fired <- pin }); err != nil {
		t.Fatal(err)
	}

	btn.EdgesChan <- gpio.High
	select {
	case pin := <-fired:
		if pin != 5 {
			t.Errorf("callback pin = %d, want 5", pin)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("edge callback did not fire")
	}

	if err := s.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(5); err == nil {
		t.Error("Read after Cleanup succeeded")
	}
}
