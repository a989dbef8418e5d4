package hardware

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edgePoll bounds each WaitForEdge so watchers notice Cleanup promptly.
const edgePoll = 250 * time.Millisecond

type periphPin struct {
	io   gpio.PinIO
	dir  Direction
	stop chan struct{}
}

// PeriphPins is a PinSet backed by periph.io. Pins are addressed by BCM
// number and looked up as "GPIO<n>" in the periph registry.
type PeriphPins struct {
	mu     sync.Mutex
	byName func(string) gpio.PinIO
	pins   map[int]*periphPin
	deb    *Debouncer
	wg     sync.WaitGroup
}

// NewPeriphPins initializes the periph.io host drivers and returns an empty
// PinSet.
func NewPeriphPins() (*PeriphPins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init failed: %w", err)
	}
	return newPeriphPins(gpioreg.ByName), nil
}

func newPeriphPins(byName func(string) gpio.PinIO) *PeriphPins {
	return &PeriphPins{
		byName: byName,
		pins:   make(map[int]*periphPin),
		deb:    NewDebouncer(nil),
	}
}

func (s *PeriphPins) Configure(pin int, dir Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pins[pin]; ok && p.dir == dir {
		return nil
	}
	p, ok := s.pins[pin]
	if !ok {
		io := s.byName(pinName(pin))
		if io == nil {
			return &PinError{Pin: pin, Op: "configure", Reason: "no such pin"}
		}
		p = &periphPin{io: io}
	}
	var err error
	if dir == Out {
		err = p.io.Out(gpio.Low)
	} else {
		err = p.io.In(gpio.PullDown, gpio.NoEdge)
	}
	if err != nil {
		return fmt.Errorf("gpio: configure %s as %s: %w", pinName(pin), dir, err)
	}
	p.dir = dir
	s.pins[pin] = p
	slog.Debug("gpio: pin configured", "pin", pin, "dir", dir.String())
	return nil
}

func (s *PeriphPins) Write(pin int, level Level) error {
	s.mu.Lock()
	p, ok := s.pins[pin]
	s.mu.Unlock()
	if !ok || p.dir != Out {
		return &PinError{Pin: pin, Op: "write", Reason: "not configured as output"}
	}
	l := gpio.Low
	if level == High {
		l = gpio.High
	}
	if err := p.io.Out(l); err != nil {
		return fmt.Errorf("gpio: write %s=%s: %w", pinName(pin), level, err)
	}
	return nil
}

func (s *PeriphPins) Read(pin int) (Level, error) {
	s.mu.Lock()
	p, ok := s.pins[pin]
	s.mu.Unlock()
	if !ok {
		return Low, &PinError{Pin: pin, Op: "read", Reason: "not configured"}
	}
	if p.io.Read() == gpio.High {
		return High, nil
	}
	return Low, nil
}

func (s *PeriphPins) WatchEdge(pin int, edge Edge, debounce time.Duration, callback func(pin int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pins[pin]
	if !ok || p.dir != In {
		return &PinError{Pin: pin, Op: "watch", Reason: "not configured as input"}
	}
	if p.stop != nil {
		return &PinError{Pin: pin, Op: "watch", Reason: "already watched"}
	}
	if err := p.io.In(gpio.PullDown, periphEdge(edge)); err != nil {
		return fmt.Errorf("gpio: enable edge detection on %s: %w", pinName(pin), err)
	}
	s.deb.SetWindow(pin, debounce)
	stop := make(chan struct{})
	p.stop = stop

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if !p.io.WaitForEdge(edgePoll) {
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
			if s.deb.Allow(pin) {
				callback(pin)
			}
		}
	}()
	return nil
}

func (s *PeriphPins) Cleanup() error {
	s.mu.Lock()
	for _, p := range s.pins {
		if p.stop != nil {
			close(p.stop)
			p.stop = nil
		}
	}
	s.mu.Unlock()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for pin, p := range s.pins {
		if err := p.io.In(gpio.Float, gpio.NoEdge); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("gpio: release %s: %w", pinName(pin), err)
		}
		s.deb.Forget(pin)
		delete(s.pins, pin)
	}
	slog.Debug("gpio: cleanup complete")
	return firstErr
}

func periphEdge(e Edge) gpio.Edge {
	switch e {
	case RisingEdge:
		return gpio.RisingEdge
	case FallingEdge:
		return gpio.FallingEdge
	case BothEdges:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}

var _ PinSet = (*PeriphPins)(nil)
